package archive

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/fluentflow/internal/db/repository"
	httperrors "github.com/gokatarajesh/fluentflow/pkg/http/errors"
)

// HTTPHandler serves archived session history.
type HTTPHandler struct {
	rec    *Recorder
	logger zerolog.Logger
}

// NewHTTPHandler constructs the history handler. rec may be nil when the archive is disabled.
func NewHTTPHandler(rec *Recorder, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		rec:    rec,
		logger: logger.With().Str("component", "archive_http").Logger(),
	}
}

// HandleHistory lists archived runs for a session.
// Route: GET /v1/sessions/{id}/history?limit=N
func (h *HTTPHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.rec == nil {
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeFeatureNotAvailable, "Session history is not enabled")
		return
	}

	sessionID := r.PathValue("id")
	if sessionID == "" {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "session id is required")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, "limit must be between 1 and 100", "limit")
			return
		}
		limit = n
	}

	runs, err := h.rec.History(r.Context(), sessionID, limit)
	if err != nil {
		h.logger.Warn().Err(err).Str("session_id", sessionID).Msg("history fetch failed")
		httperrors.RespondInternalError(w, "Failed to fetch session history")
		return
	}
	if runs == nil {
		runs = []repository.Run{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"session_id": sessionID,
		"runs":       runs,
	}); err != nil {
		h.logger.Warn().Err(err).Msg("failed to encode history response")
	}
}
