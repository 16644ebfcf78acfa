// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fairlens/internal/logging"
)

type contextKey string

// claimsKey stores validated claims in the request context.
const claimsKey contextKey = "auth_claims"

// ClaimsFromContext returns the authenticated claims, or nil when the
// request was not authenticated (auth mode "none").
func ClaimsFromContext(ctx context.Context) *Claims {
	if claims, ok := ctx.Value(claimsKey).(*Claims); ok {
		return claims
	}
	return nil
}

// Middleware authenticates requests with bearer tokens. In "none" mode
// every request passes through unauthenticated.
type Middleware struct {
	mode string
	jwt  *JWTManager
}

// NewMiddleware builds the middleware. jwtManager may be nil when mode
// is "none".
func NewMiddleware(mode string, jwtManager *JWTManager) *Middleware {
	return &Middleware{mode: mode, jwt: jwtManager}
}

// Authenticate is a chi-compatible middleware that rejects requests
// without a valid bearer token when auth mode is "jwt".
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.mode != "jwt" {
			next.ServeHTTP(w, r)
			return
		}

		token := bearerToken(r)
		if token == "" {
			unauthorized(w, "Missing bearer token")
			return
		}

		claims, err := m.jwt.ValidateToken(token)
		if err != nil {
			logger := logging.Ctx(r.Context())
			logger.Warn().Err(err).
				Str("path", r.URL.Path).
				Msg("Rejected invalid bearer token")
			unauthorized(w, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	//nolint:errcheck // HTTP response write errors are not recoverable
	json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error": map[string]string{
			"code":    "UNAUTHORIZED",
			"message": message,
		},
	})
}
