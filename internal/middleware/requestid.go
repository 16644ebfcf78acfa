// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

// Package middleware provides HTTP middleware shared by all routes:
// request ID propagation and Prometheus instrumentation.
package middleware

import (
	"net/http"

	"github.com/tomtom215/fairlens/internal/logging"
)

// RequestID assigns each request a unique ID, honoring an existing
// X-Request-ID from an upstream proxy. The ID is echoed in the response
// header and stored in the request context for structured logging.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = logging.GenerateRequestID()
		}

		w.Header().Set("X-Request-ID", requestID)
		ctx := logging.ContextWithRequestID(r.Context(), requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
