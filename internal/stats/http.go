package stats

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/fluentflow/internal/exam"
	httperrors "github.com/gokatarajesh/fluentflow/pkg/http/errors"
)

// HTTPHandler exposes REST endpoints for difficulty statistics.
type HTTPHandler struct {
	svc    *Service
	logger zerolog.Logger
}

// NewHTTPHandler constructs a stats HTTP handler. svc may be nil when Redis is not configured.
func NewHTTPHandler(svc *Service, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:    svc,
		logger: logger.With().Str("component", "stats_http").Logger(),
	}
}

// HandleGet responds with totals for every difficulty, or one when ?difficulty= is set.
// Route: GET /v1/stats
func (h *HTTPHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.svc == nil {
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeFeatureNotAvailable, "Statistics are not enabled")
		return
	}

	ctx := r.Context()
	var (
		totals []Totals
		err    error
	)
	if raw := r.URL.Query().Get("difficulty"); raw != "" {
		d, perr := exam.ParseDifficulty(raw)
		if perr != nil {
			httperrors.RespondValidationError(w, httperrors.ErrCodeUnknownDifficulty, perr.Error(), "difficulty")
			return
		}
		var t Totals
		t, err = h.svc.Get(ctx, d)
		totals = []Totals{t}
	} else {
		totals, err = h.svc.All(ctx)
	}
	if err != nil {
		h.logger.Warn().Err(err).Msg("stats fetch failed")
		httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeStatsFetchFailed, "Failed to fetch statistics")
		return
	}

	resp := map[string]interface{}{
		"difficulties": totals,
		"retrievedAt":  time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Warn().Err(err).Msg("failed to encode stats response")
	}
}
