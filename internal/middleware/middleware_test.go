// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/fairlens/internal/logging"
	"github.com/tomtom215/fairlens/internal/metrics"
)

func TestRequestIDGenerated(t *testing.T) {
	t.Parallel()

	var ctxID string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = logging.RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	headerID := rec.Header().Get("X-Request-ID")
	if headerID == "" {
		t.Fatal("X-Request-ID header not set")
	}
	if ctxID != headerID {
		t.Errorf("context ID %q != header ID %q", ctxID, headerID)
	}
}

func TestRequestIDHonorsUpstream(t *testing.T) {
	t.Parallel()

	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "upstream-id-1")
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "upstream-id-1" {
		t.Errorf("X-Request-ID = %q, want upstream-id-1", got)
	}
}

func TestPrometheusRecordsStatus(t *testing.T) {
	before := testutil.ToFloat64(metrics.APIRequestsTotal.WithLabelValues("GET", "/api/v1/test", "418"))

	handler := Prometheus("/api/v1/test")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/test", nil))

	after := testutil.ToFloat64(metrics.APIRequestsTotal.WithLabelValues("GET", "/api/v1/test", "418"))
	if after != before+1 {
		t.Errorf("counter went %v -> %v, want +1", before, after)
	}

	if got := testutil.ToFloat64(metrics.APIActiveRequests); got != 0 {
		t.Errorf("active requests gauge = %v after completion, want 0", got)
	}
}
