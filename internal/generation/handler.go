package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const welcomeText = "Welcome to the AI exam"

// Handler serves the question generation endpoints.
type Handler struct {
	completer Completer
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewHandler builds a Handler. timeout bounds each upstream completion; zero means none.
func NewHandler(completer Completer, timeout time.Duration, logger zerolog.Logger) *Handler {
	return &Handler{
		completer: completer,
		timeout:   timeout,
		logger:    logger.With().Str("component", "generation_http").Logger(),
	}
}

// Register mounts the handler's routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/", h.Index)
	mux.HandleFunc("/generate-question", h.GenerateQuestion)
}

// Index handles GET /
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(welcomeText))
}

// GenerateQuestion handles POST /generate-question
func (h *Handler) GenerateQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	var req PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond(w, http.StatusBadRequest, ErrorResponse{Error: "invalid payload: " + err.Error()})
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		h.respond(w, http.StatusBadRequest, ErrorResponse{Error: "No prompt provided"})
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	start := time.Now()
	content, err := h.completer.Complete(ctx, req.Prompt)
	if err != nil {
		h.logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("completion failed")
		h.respond(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}

	h.logger.Debug().Dur("elapsed", time.Since(start)).Int("length", len(content)).Msg("question generated")
	h.respond(w, http.StatusOK, ContentResponse{Content: content})
}

func (h *Handler) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn().Err(err).Msg("failed to write response")
	}
}
