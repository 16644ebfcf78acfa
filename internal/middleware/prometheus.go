// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

package middleware

import (
	"net/http"
	"time"

	"github.com/tomtom215/fairlens/internal/metrics"
)

// statusRecorder captures the response status code for instrumentation.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Prometheus records request count, latency, and in-flight gauge for
// every request passing through it. The endpoint label uses the routing
// pattern, not the raw path, to keep label cardinality bounded; callers
// provide it per route group.
func Prometheus(endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			metrics.APIActiveRequests.Inc()
			defer metrics.APIActiveRequests.Dec()

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			metrics.RecordAPIRequest(r.Method, endpoint, rec.status, time.Since(start))
		})
	}
}
