// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

// Package main is the entry point for the Fairlens server application.
//
// Fairlens serves fairness-aware movie recommendations over a REST API. It
// trains a joint bias module and a neural collaborative filtering predictor
// on a MovieLens-format corpus, adapts online to new users from a handful of
// fresh ratings, and ranks candidates with a fairness penalty subtracted
// from the raw score. Every recommendation ships with a per-dimension bias
// attribution and a human-readable explanation.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Load settings from environment variables and config files (Koanf v2)
//  2. Profile store: Open BadgerDB and seed demographic profiles from the corpus
//  3. Corpus: Load interactions, users, and movies (MovieLens ::-separated format)
//  4. Artifact store: Versioned model snapshots (gob, gzip, sha256)
//  5. Engine: Restore persisted artifacts, or run batch training
//  6. Explanations: Optional LLM client behind a circuit breaker
//  7. Authentication: JWT or no-auth mode
//  8. HTTP server: Chi router with rate limiting and Prometheus metrics
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, config file (config.yaml),
// built-in defaults.
//
// Minimal development setup:
//
//	export AUTH_MODE=none
//	export INTERACTIONS_PATH=./ml-1m/ratings.dat
//	export USERS_PATH=./ml-1m/users.dat
//	export MOVIES_PATH=./ml-1m/movies.dat
//	./fairlens
//
// Production with JWT and LLM explanations:
//
//	export JWT_SECRET=$(openssl rand -base64 32)
//	export EXPLAIN_ENABLED=true
//	export EXPLAIN_BASE_URL=https://api.groq.com/openai/v1
//	export EXPLAIN_API_KEY=your-api-key
//	./fairlens
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM: it stops
// accepting new connections, waits for in-flight requests to complete
// (10s timeout), persists nothing extra (artifacts are written at train
// time), and closes the profile store.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/fairlens/internal/api"
	"github.com/tomtom215/fairlens/internal/auth"
	"github.com/tomtom215/fairlens/internal/config"
	"github.com/tomtom215/fairlens/internal/dataset"
	"github.com/tomtom215/fairlens/internal/explain"
	"github.com/tomtom215/fairlens/internal/logging"
	"github.com/tomtom215/fairlens/internal/profile"
	"github.com/tomtom215/fairlens/internal/recommend/engine"
	"github.com/tomtom215/fairlens/internal/recommend/storage"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("auth_mode", cfg.Security.AuthMode).
		Str("interactions", cfg.Data.InteractionsPath).
		Str("model_path", cfg.Data.ModelPath).
		Msg("Configuration loaded")

	if cfg.Security.AuthMode == "none" {
		logging.Warn().Msg("Authentication is DISABLED (AUTH_MODE=none) - all endpoints are publicly accessible")
		logging.Warn().Msg("Use AUTH_MODE=none only for local development and isolated networks")
	}
	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	// Demographic profile store. Profiles drive the bias features and the
	// explanation prompts; the API works without them, so seeding failures
	// are non-fatal.
	profiles, err := profile.Open(cfg.Data.ProfileStorePath)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Data.ProfileStorePath).Msg("Failed to open profile store")
	}
	defer func() {
		if err := profiles.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing profile store")
		}
	}()

	eng, err := buildEngine(cfg, profiles)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize recommendation engine")
	}

	var jwtManager *auth.JWTManager
	if cfg.Security.AuthMode == "jwt" {
		jwtManager, err = auth.NewJWTManager(&cfg.Security)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
		}
		logging.Info().Msg("JWT authentication enabled")
	}

	handler := api.NewHandler(eng, logging.Logger())
	router := api.NewRouter(
		handler,
		api.NewChiMiddleware(api.MiddlewareConfig{
			CORSAllowedOrigins: cfg.Security.CORSOrigins,
			RateLimitRequests:  cfg.Security.RateLimitReqs,
			RateLimitWindow:    cfg.Security.RateLimitWindow,
			RateLimitDisabled:  cfg.Security.RateLimitDisabled,
		}),
		auth.NewMiddleware(cfg.Security.AuthMode, jwtManager),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		serverErr <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("HTTP server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logging.Info().Msg("Application stopped gracefully")
}

// buildEngine loads the corpus, seeds the profile store, and either
// restores persisted model artifacts or runs batch training.
func buildEngine(cfg *config.Config, profiles *profile.Store) (*engine.Engine, error) {
	logger := logging.Logger()

	interactions, err := dataset.LoadInteractions(cfg.Data.InteractionsPath, logger)
	if err != nil {
		return nil, fmt.Errorf("load interactions: %w", err)
	}
	users, err := dataset.LoadUsers(cfg.Data.UsersPath, logger)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	movies, err := dataset.LoadMovies(cfg.Data.MoviesPath, logger)
	if err != nil {
		return nil, fmt.Errorf("load movies: %w", err)
	}
	logging.Info().
		Int("interactions", len(interactions)).
		Int("users", len(users)).
		Int("movies", len(movies)).
		Msg("Corpus loaded")

	seedCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := profiles.PutBatch(seedCtx, users); err != nil {
		logging.Warn().Err(err).Msg("Failed to seed profile store; explanations degrade to anonymous")
	}

	store, err := storage.NewStore(cfg.Data.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("open artifact store: %w", err)
	}

	engineCfg := engine.DefaultConfig()
	engineCfg.Eta = cfg.Engine.Eta
	engineCfg.Ranking.LambdaFair = cfg.Engine.LambdaFair
	engineCfg.Ranking.Alpha = cfg.Engine.Alpha
	engineCfg.DefaultK = cfg.Engine.DefaultK
	engineCfg.Predictor.Epochs = cfg.Engine.Epochs
	engineCfg.Adapt.Epochs = cfg.Engine.AdaptEpochs
	engineCfg.Adapt.LambdaFair = cfg.Engine.LambdaFair

	var explainer explain.Generator
	if cfg.Explain.Enabled {
		clientCfg := explain.DefaultClientConfig()
		clientCfg.BaseURL = cfg.Explain.BaseURL
		clientCfg.APIKey = cfg.Explain.APIKey
		clientCfg.Model = cfg.Explain.Model
		clientCfg.Timeout = cfg.Explain.Timeout
		explainer = explain.NewClient(clientCfg, logger)
		logging.Info().Str("model", cfg.Explain.Model).Msg("LLM explanations enabled")
	}

	eng := engine.New(engineCfg, engine.Options{
		Store:     store,
		Profiles:  profiles,
		Explainer: explainer,
		Logger:    logger,
	})

	// Restore persisted artifacts unless batch training was forced; fall
	// back to training when no usable snapshot exists.
	if !cfg.Engine.TrainOnStartup {
		if err := eng.LoadArtifacts(interactions, movies); err == nil {
			status := eng.Status()
			logging.Info().
				Int("model_version", status.ModelVersion).
				Int("users", status.UserCount).
				Int("items", status.ItemCount).
				Msg("Model artifacts restored")
			return eng, nil
		}
		logging.Info().Msg("No usable model artifacts; running batch training")
	}

	start := time.Now()
	if err := eng.TrainInitial(context.Background(), interactions, users, movies); err != nil {
		return nil, fmt.Errorf("batch training: %w", err)
	}
	logging.Info().
		Dur("duration", time.Since(start)).
		Int("model_version", eng.Status().ModelVersion).
		Msg("Batch training complete")

	return eng, nil
}
