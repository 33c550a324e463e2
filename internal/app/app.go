package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/fluentflow/internal/archive"
	"github.com/gokatarajesh/fluentflow/internal/auth/jwt"
	"github.com/gokatarajesh/fluentflow/internal/config"
	"github.com/gokatarajesh/fluentflow/internal/db/repository"
	"github.com/gokatarajesh/fluentflow/internal/exam"
	"github.com/gokatarajesh/fluentflow/internal/generation"
	"github.com/gokatarajesh/fluentflow/internal/logging"
	"github.com/gokatarajesh/fluentflow/internal/metrics"
	"github.com/gokatarajesh/fluentflow/internal/server"
	"github.com/gokatarajesh/fluentflow/internal/session"
	"github.com/gokatarajesh/fluentflow/internal/stats"
	ws "github.com/gokatarajesh/fluentflow/pkg/http/ws"
)

// worker is a background loop that runs until its context is cancelled.
type worker struct {
	name string
	run  func(ctx context.Context) error
}

// Application aggregates shared infrastructure (DB, cache, HTTP server) and the session registry.
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool     *pgxpool.Pool
	redis    *redis.Client
	http     *http.Server
	sessions *session.Manager

	workers   []worker
	bgCancels []context.CancelFunc
}

// New bootstraps logger, optional Postgres and Redis, the session engine and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env, logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger.Info().Msg("starting application bootstrap")

	difficulty, err := exam.ParseDifficulty(cfg.Exam.DefaultDifficulty)
	if err != nil {
		return nil, fmt.Errorf("default difficulty: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	a := &Application{
		cfg:       cfg,
		logger:    logger,
		bgCancels: make([]context.CancelFunc, 0, 4),
	}

	wsHub := ws.NewHub(logger)
	listeners := []exam.Listener{m}
	routes := server.Routes{}

	if cfg.StatsEnabled() {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		statsSvc := stats.NewService(a.redis, logger, stats.ServiceOptions{
			PubSubChannel:  cfg.Stats.Channel,
			RedisKeyPrefix: cfg.Stats.KeyPrefix,
		})
		listeners = append(listeners, statsSvc)
		routes.Stats = stats.NewHTTPHandler(statsSvc, logger).HandleGet

		broadcaster := stats.NewBroadcaster(a.redis, wsHub, statsSvc.Channel(), logger)
		a.workers = append(a.workers, worker{name: "stats broadcaster", run: broadcaster.Run})
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("difficulty statistics enabled")
	} else {
		routes.Stats = stats.NewHTTPHandler(nil, logger).HandleGet
		logger.Warn().Msg("REDIS_ADDR not set; difficulty statistics disabled")
	}

	var recorder *archive.Recorder
	if cfg.Archive.Enabled {
		poolCfg, err := pgxpool.ParseConfig(cfg.Postgres.DSN())
		if err != nil {
			return nil, fmt.Errorf("parse postgres config: %w", err)
		}
		poolCfg.MaxConns = cfg.Postgres.MaxConns
		a.pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}

		recorder = archive.NewRecorder(repository.NewRunRepository(a.pool), archive.Options{
			QueueSize:    cfg.Archive.QueueSize,
			WriteTimeout: cfg.Archive.WriteTimeout,
		}, logger)
		listeners = append(listeners, recorder)
		a.workers = append(a.workers, worker{name: "archive recorder", run: recorder.Run})
		logger.Info().Str("database", cfg.Postgres.Database).Msg("result archive enabled")
	}
	routes.History = archive.NewHTTPHandler(recorder, logger).HandleHistory

	source := generation.NewClient(generation.Config{
		GeneratorURL: cfg.Generator.URL,
		GeneratorKey: cfg.Generator.APIKey,
		Timeout:      cfg.Generator.Timeout,
		MaxRetries:   cfg.Generator.MaxRetries,
		RetryBase:    cfg.Generator.RetryBase,
	}, m, logger)

	a.sessions = session.NewManager(source, wsHub, session.Options{
		TotalQuestions:    cfg.Exam.TotalQuestions,
		TimeLimitSeconds:  cfg.Exam.TimeLimitSeconds(),
		TickInterval:      cfg.Exam.TickInterval,
		RequestTimeout:    cfg.Exam.RequestTimeout,
		DefaultDifficulty: difficulty,
		IdleTTL:           cfg.Exam.SessionIdleTTL,
		JanitorInterval:   cfg.Exam.JanitorInterval,
		Listeners:         listeners,
		Gauge:             m,
	}, logger)
	a.workers = append(a.workers, worker{name: "session janitor", run: a.sessions.Run})

	tokens := jwt.NewManager(jwt.TokenConfig{
		Secret: []byte(cfg.Security.JWTSecret),
		TTL:    cfg.Security.TokenTTL,
		Issuer: cfg.Name,
	})

	routes.Sessions = session.NewHTTPHandlers(a.sessions, tokens, logger)
	routes.SessionWS = session.NewWSHandler(a.sessions, wsHub, tokens, server.NewUpgrader(cfg.CORS.AllowedOrigins), logger).HandleWebSocket

	a.http = server.NewHTTPServer(cfg, logger, a.pool, a.redis, registry, routes)
	return a, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.startBackgroundWorkers(ctx)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		runErr = fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	a.sessions.Shutdown()

	for _, cancel := range a.bgCancels {
		cancel()
	}

	if a.pool != nil {
		a.pool.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error().Err(err).Msg("redis shutdown error")
		}
	}

	a.logger.Info().Msg("shutdown complete")
	return runErr
}

func (a *Application) startBackgroundWorkers(ctx context.Context) {
	for _, w := range a.workers {
		bgCtx, cancel := context.WithCancel(ctx)
		a.bgCancels = append(a.bgCancels, cancel)
		go func(w worker) {
			if err := w.run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn().Err(err).Str("worker", w.name).Msg("background worker stopped")
			}
		}(w)
	}
}
