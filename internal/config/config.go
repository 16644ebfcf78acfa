// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

// Package config provides layered configuration loading for Fairlens.
// Precedence: environment variables > YAML config file > built-in defaults.
package config

import (
	"fmt"
	"time"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Security SecurityConfig `koanf:"security"`
	Data     DataConfig     `koanf:"data"`
	Engine   EngineConfig   `koanf:"engine"`
	Explain  ExplainConfig  `koanf:"explain"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the listen address. Default: 0.0.0.0
	Host string `koanf:"host"`

	// Port is the listen port. Default: 8086
	Port int `koanf:"port"`

	// Timeout bounds request read/write. Default: 30s
	Timeout time.Duration `koanf:"timeout"`
}

// SecurityConfig holds authentication and rate limiting settings.
type SecurityConfig struct {
	// AuthMode selects the authentication scheme: "jwt" or "none".
	// Default: none (the API serves read-mostly recommendation data)
	AuthMode string `koanf:"auth_mode"`

	// JWTSecret signs bearer tokens when AuthMode is "jwt".
	// Required in jwt mode, minimum 32 characters.
	JWTSecret string `koanf:"jwt_secret"`

	// SessionTimeout is the JWT token lifetime. Default: 24h
	SessionTimeout time.Duration `koanf:"session_timeout"`

	// RateLimitReqs is the per-IP request budget per window. Default: 100
	RateLimitReqs int `koanf:"rate_limit_reqs"`

	// RateLimitWindow is the rate limit window. Default: 1m
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	// RateLimitDisabled turns rate limiting off entirely.
	RateLimitDisabled bool `koanf:"rate_limit_disabled"`

	// CORSOrigins lists allowed CORS origins. Empty means same-origin only.
	CORSOrigins []string `koanf:"cors_origins"`
}

// DataConfig holds dataset and storage paths.
type DataConfig struct {
	// InteractionsPath is the ratings file (user::item::rating::timestamp).
	InteractionsPath string `koanf:"interactions_path"`

	// UsersPath is the user demographics file.
	UsersPath string `koanf:"users_path"`

	// MoviesPath is the movie catalog file.
	MoviesPath string `koanf:"movies_path"`

	// ProfileStorePath is the Badger directory for demographic profiles.
	ProfileStorePath string `koanf:"profile_store_path"`

	// ModelPath is the directory for persisted model artifacts.
	ModelPath string `koanf:"model_path"`
}

// EngineConfig holds recommendation engine hyperparameters that operators
// commonly tune. Model architecture settings keep their code defaults.
type EngineConfig struct {
	// TrainOnStartup forces batch training even when artifacts exist.
	TrainOnStartup bool `koanf:"train_on_startup"`

	// Eta is the recency decay rate for interaction bias. Default: 0.01
	Eta float64 `koanf:"eta"`

	// LambdaFair weights the fairness penalty subtraction. Default: 1.0
	LambdaFair float64 `koanf:"lambda_fair"`

	// Alpha weights the session similarity blend. Default: 0.5
	Alpha float64 `koanf:"alpha"`

	// DefaultK is the recommendation count when requests omit one.
	// Default: 10
	DefaultK int `koanf:"default_k"`

	// Epochs is the batch training epoch count. Default: 5
	Epochs int `koanf:"epochs"`

	// AdaptEpochs is the per-user adaptation epoch count. Default: 30
	AdaptEpochs int `koanf:"adapt_epochs"`
}

// ExplainConfig holds the explanation LLM upstream settings.
type ExplainConfig struct {
	// Enabled turns LLM-backed explanations on. When off, template
	// explanations are served instead.
	Enabled bool `koanf:"enabled"`

	// BaseURL is the OpenAI-compatible chat completions endpoint base.
	BaseURL string `koanf:"base_url"`

	// APIKey is the bearer key for the upstream, if it requires one.
	APIKey string `koanf:"api_key"`

	// Model is the chat model identifier. Default: llama-3.1-8b-instant
	Model string `koanf:"model"`

	// Timeout bounds one upstream call. Default: 10s
	Timeout time.Duration `koanf:"timeout"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	// Level is the minimum log level. Default: info
	Level string `koanf:"level"`

	// Format is "json" or "console". Default: json
	Format string `koanf:"format"`

	// Caller includes file:line in log output.
	Caller bool `koanf:"caller"`
}

// Validate checks the configuration for invalid combinations.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d outside 1-65535", c.Server.Port)
	}

	switch c.Security.AuthMode {
	case "none":
	case "jwt":
		if len(c.Security.JWTSecret) < 32 {
			return fmt.Errorf("security.jwt_secret must be at least 32 characters in jwt mode")
		}
	default:
		return fmt.Errorf("security.auth_mode %q must be jwt or none", c.Security.AuthMode)
	}

	if !c.Security.RateLimitDisabled && c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("security.rate_limit_reqs must be positive")
	}

	if c.Engine.Eta <= 0 {
		return fmt.Errorf("engine.eta must be positive")
	}
	if c.Engine.LambdaFair < 0 {
		return fmt.Errorf("engine.lambda_fair must not be negative")
	}
	if c.Engine.DefaultK < 1 {
		return fmt.Errorf("engine.default_k must be positive")
	}

	if c.Explain.Enabled && c.Explain.BaseURL == "" {
		return fmt.Errorf("explain.base_url is required when explanations are enabled")
	}
	return nil
}
