package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/fluentflow/internal/config"
	"github.com/gokatarajesh/fluentflow/internal/logging"
)

// Routes groups the feature handlers mounted next to the base routes. Nil entries are skipped.
type Routes struct {
	Sessions  interface{ Register(mux *http.ServeMux) }
	SessionWS http.HandlerFunc
	History   http.HandlerFunc
	Stats     http.HandlerFunc
}

// NewUpgrader builds a WebSocket upgrader that accepts the configured CORS origins. Requests
// without an Origin header (non-browser clients) are accepted.
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			return originAllowed(origin, allowedOrigins)
		},
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// NewHTTPServer wires base routes (health, metrics) and the feature routes for the API service.
// pool and redis may be nil when the archive or stats are disabled.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, pool *pgxpool.Pool, redis *redis.Client, gatherer prometheus.Gatherer, routes Routes) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("/v1/ping", func(w http.ResponseWriter, r *http.Request) {
		if err := pingDependencies(r.Context(), pool, redis); err != nil {
			l := logging.FromContext(r.Context())
			l.Error().Err(err).Msg("dependency ping failed")
			http.Error(w, "upstream error", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	if routes.Sessions != nil {
		routes.Sessions.Register(mux)
	}
	if routes.SessionWS != nil {
		mux.HandleFunc("/ws/sessions/{id}", routes.SessionWS)
	}
	if routes.History != nil {
		mux.HandleFunc("/v1/sessions/{id}/history", routes.History)
	}
	if routes.Stats != nil {
		mux.HandleFunc("/v1/stats", routes.Stats)
	}

	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: WithCORS(cfg.CORS, withLogger(logger, mux)),
	}
}

// WithCORS wraps h with the configured Cross-Origin Resource Sharing policy.
func WithCORS(c config.CORS, h http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   c.AllowedOrigins,
		AllowedMethods:   c.AllowedMethods,
		AllowedHeaders:   c.AllowedHeaders,
		AllowCredentials: c.AllowCredentials,
		MaxAge:           c.MaxAge,
	}).Handler(h)
}

// withLogger stores a request scoped logger in the request context.
func withLogger(logger zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := logger.With().Str("method", r.Method).Str("path", r.URL.Path).Logger()
		next.ServeHTTP(w, r.WithContext(logging.IntoContext(r.Context(), l)))
	})
}

func pingDependencies(ctx context.Context, pool *pgxpool.Pool, redis *redis.Client) error {
	if pool != nil {
		if err := pool.Ping(ctx); err != nil {
			return err
		}
	}
	if redis != nil {
		if err := redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}

func originAllowed(origin string, allowed []string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(strings.TrimSuffix(a, "/"), origin) {
			return true
		}
	}
	return false
}
