package session

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/fluentflow/internal/auth/jwt"
	"github.com/gokatarajesh/fluentflow/internal/exam"
	httperrors "github.com/gokatarajesh/fluentflow/pkg/http/errors"
	ws "github.com/gokatarajesh/fluentflow/pkg/http/ws"
)

type tokenIssuer interface {
	GenerateSessionToken(sessionID string) (string, time.Time, error)
	Authorize(tokenString, sessionID string) (*jwt.Claims, error)
}

// HTTPHandlers provides REST endpoints for exam sessions.
type HTTPHandlers struct {
	manager *Manager
	tokens  tokenIssuer
	logger  zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for session endpoints.
func NewHTTPHandlers(manager *Manager, tokens tokenIssuer, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		manager: manager,
		tokens:  tokens,
		logger:  logger.With().Str("component", "session_http").Logger(),
	}
}

// Register mounts the session routes on mux.
func (h *HTTPHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/sessions", h.CreateSession)
	mux.HandleFunc("/v1/sessions/{id}", h.GetSession)
	mux.HandleFunc("/v1/sessions/{id}/results", h.GetResults)
	mux.HandleFunc("/v1/sessions/{id}/ratings", h.RateQuestion)
	mux.HandleFunc("/v1/sessions/{id}/intents", h.ApplyIntent)
}

// CreateSessionRequest is the optional body of POST /v1/sessions.
type CreateSessionRequest struct {
	Difficulty string `json:"difficulty"`
}

// CreateSessionResponse carries the bearer token bound to the new session.
type CreateSessionResponse struct {
	SessionID string          `json:"session_id"`
	Token     string          `json:"token"`
	ExpiresAt string          `json:"expires_at"`
	State     ws.StatePayload `json:"state"`
}

// RateRequest is the body of POST /v1/sessions/{id}/ratings.
type RateRequest struct {
	SequenceID int `json:"sequence_id"`
	Rating     int `json:"rating"`
}

// ResultsResponse is the post-completion view of a session.
type ResultsResponse struct {
	SessionID  string             `json:"session_id"`
	Difficulty string             `json:"difficulty"`
	Reason     string             `json:"reason"`
	Summary    ws.SummaryPayload  `json:"summary"`
	Records    []ws.RecordPayload `json:"records"`
	Ratings    map[int]int        `json:"ratings"`
}

// CreateSession handles POST /v1/sessions
func (h *HTTPHandlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	s, err := h.manager.Create(req.Difficulty)
	if err != nil {
		respondError(w, err)
		return
	}

	token, expires, err := h.tokens.GenerateSessionToken(s.ID())
	if err != nil {
		h.logger.Error().Err(err).Str("session_id", s.ID()).Msg("failed to sign session token")
		h.manager.Remove(s.ID())
		httperrors.RespondError(w, http.StatusInternalServerError, httperrors.ErrCodeSessionCreationFailed, "Failed to create session")
		return
	}

	h.respondJSON(w, http.StatusCreated, CreateSessionResponse{
		SessionID: s.ID(),
		Token:     token,
		ExpiresAt: expires.UTC().Format(time.RFC3339),
		State:     StatePayload(s.ID(), s.Snapshot()),
	})
}

// GetSession handles GET /v1/sessions/{id}
func (h *HTTPHandlers) GetSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s, ok := h.authorizedSession(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, StatePayload(s.ID(), s.Snapshot()))
}

// GetResults handles GET /v1/sessions/{id}/results
func (h *HTTPHandlers) GetResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s, ok := h.authorizedSession(w, r)
	if !ok {
		return
	}

	res, err := s.Results()
	if err != nil {
		var te *exam.TransitionError
		if errors.As(err, &te) {
			httperrors.RespondConflict(w, httperrors.ErrCodeResultsNotReady, "Results are available once the session is completed", string(te.Status))
			return
		}
		respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, ResultsResponse{
		SessionID:  s.ID(),
		Difficulty: string(res.Difficulty),
		Reason:     string(res.Reason),
		Summary:    SummaryPayload(res.Summary),
		Records:    RecordPayloads(res.Records),
		Ratings:    res.Ratings,
	})
}

// RateQuestion handles POST /v1/sessions/{id}/ratings
func (h *HTTPHandlers) RateQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s, ok := h.authorizedSession(w, r)
	if !ok {
		return
	}

	var req RateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}

	if _, err := Apply(s, Intent{Type: ws.TypeRate, SequenceID: req.SequenceID, Rating: req.Rating}); err != nil {
		respondError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, ws.RatedPayload{
		SessionID:  s.ID(),
		SequenceID: req.SequenceID,
		Rating:     req.Rating,
	})
}

// ApplyIntent handles POST /v1/sessions/{id}/intents for clients without a WebSocket.
func (h *HTTPHandlers) ApplyIntent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s, ok := h.authorizedSession(w, r)
	if !ok {
		return
	}

	var in Intent
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	if in.Type == "" {
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "type is required", "type")
		return
	}

	fb, err := Apply(s, in)
	if err != nil {
		respondError(w, err)
		return
	}
	st := StatePayload(s.ID(), s.Snapshot())
	if fb != nil {
		// The next question may already be loaded, which clears the snapshot's feedback.
		p := feedbackPayload(*fb)
		st.Feedback = &p
	}
	h.respondJSON(w, http.StatusOK, st)
}

// authorizedSession resolves {id} and checks the caller's token. It writes the error response
// itself and reports false when the request must stop.
func (h *HTTPHandlers) authorizedSession(w http.ResponseWriter, r *http.Request) (*exam.Session, bool) {
	id := r.PathValue("id")
	if _, err := h.tokens.Authorize(jwt.TokenFromRequest(r), id); err != nil {
		respondError(w, err)
		return nil, false
	}
	s, err := h.manager.Get(id)
	if err != nil {
		respondError(w, err)
		return nil, false
	}
	return s, true
}

func (h *HTTPHandlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn().Err(err).Msg("failed to encode response")
	}
}
