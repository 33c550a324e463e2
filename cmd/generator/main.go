package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/gokatarajesh/fluentflow/internal/config"
	"github.com/gokatarajesh/fluentflow/internal/generation"
	"github.com/gokatarajesh/fluentflow/internal/logging"
	"github.com/gokatarajesh/fluentflow/internal/server"
)

func main() {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load("configs/.env"); err != nil {
			log.Printf("Warning: could not load .env file: %v", err)
		}
	}

	cfg, err := config.LoadGenerator(context.Background())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(cfg.Name, cfg.Env, logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	completer, err := generation.NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Model, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build completion client")
	}

	mux := http.NewServeMux()
	generation.NewHandler(completer, cfg.RequestTimeout, logger).Register(mux)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.WithCORS(cfg.CORS, mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Str("model", cfg.OpenAI.Model).Msg("generator listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		logger.Fatal().Err(err).Msg("http server error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("http shutdown error")
	}
	logger.Info().Msg("shutdown complete")
}
