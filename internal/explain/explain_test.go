// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

package explain

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/tomtom215/fairlens/internal/recommend"
)

func testRequest(theta float64) Request {
	return Request{
		// Gender dominates, then popularity, then interaction.
		Attribution: recommend.Attribution{0.3, 0.2, 0.4, 0.05, 0.03, 0.02},
		User:        &recommend.UserProfile{UserID: "42", ExplanationDepth: theta},
		Item: recommend.ItemProfile{
			ItemID: "1",
			Title:  "Toy Story (1995)",
			Genres: []string{"Animation", "Comedy"},
		},
		Theta: theta,
	}
}

func TestTopFactorsDepthTiers(t *testing.T) {
	t.Parallel()

	attr := recommend.Attribution{0.3, 0.2, 0.4, 0.05, 0.03, 0.02}
	tests := []struct {
		theta float64
		want  []string
	}{
		{0.1, []string{"gender preferences"}},
		{0.3, []string{"gender preferences"}},
		{0.5, []string{"gender preferences", "popularity bias"}},
		{0.7, []string{"gender preferences", "popularity bias"}},
		{0.9, []string{"gender preferences", "popularity bias", "interaction patterns"}},
	}
	for _, tt := range tests {
		got := topFactors(attr, tt.theta)
		if len(got) != len(tt.want) {
			t.Fatalf("theta %v: %d factors, want %d", tt.theta, len(got), len(tt.want))
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("theta %v factor %d = %q, want %q", tt.theta, i, got[i], tt.want[i])
			}
		}
	}
}

func TestBuildPromptTiers(t *testing.T) {
	t.Parallel()

	brief := BuildPrompt(testRequest(0.2))
	if !strings.Contains(brief, "one friendly sentence") {
		t.Errorf("brief prompt missing single-sentence instruction: %q", brief)
	}
	if !strings.Contains(brief, "Toy Story (1995) in the 'Animation/Comedy' category") {
		t.Errorf("brief prompt missing item context: %q", brief)
	}

	moderate := BuildPrompt(testRequest(0.5))
	if !strings.Contains(moderate, "up to two top contributing factors") {
		t.Errorf("moderate prompt missing two-factor instruction: %q", moderate)
	}

	detailed := BuildPrompt(testRequest(0.9))
	if !strings.Contains(detailed, "fairness-aware") || !strings.Contains(detailed, "transparent") {
		t.Errorf("detailed prompt missing fairness framing: %q", detailed)
	}
	if !strings.Contains(detailed, "gender preferences, popularity bias, interaction patterns") {
		t.Errorf("detailed prompt missing three factors: %q", detailed)
	}
}

func TestBuildPromptFallbackContexts(t *testing.T) {
	t.Parallel()

	req := Request{
		Attribution: recommend.Attribution{1, 0, 0, 0, 0, 0},
		Item:        recommend.ItemProfile{ItemID: "77"},
		Theta:       0.1,
	}
	prompt := BuildPrompt(req)
	if !strings.Contains(prompt, "item #77") {
		t.Errorf("prompt should fall back to item id: %q", prompt)
	}
	if !strings.Contains(prompt, "a viewer") {
		t.Errorf("prompt should fall back to anonymous user: %q", prompt)
	}
}

func TestStaticGenerator(t *testing.T) {
	t.Parallel()

	res := Static{}.Explain(context.Background(), testRequest(0.2))
	if res.Fallback {
		t.Error("static generator should not report fallback")
	}
	if !strings.Contains(res.Text, "gender preferences") {
		t.Errorf("static explanation = %q, want dominant factor mentioned", res.Text)
	}
}

func TestClientExplainSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" Because you like animation. "}}]}`))
	}))
	defer srv.Close()

	cfg := DefaultClientConfig()
	cfg.BaseURL = srv.URL
	cfg.APIKey = "test-key"
	c := NewClient(cfg, zerolog.Nop())

	res := c.Explain(context.Background(), testRequest(0.5))
	if res.Fallback {
		t.Fatalf("unexpected fallback: %s", res.Reason)
	}
	if res.Text != "Because you like animation." {
		t.Errorf("Text = %q, want trimmed completion", res.Text)
	}
}

func TestClientExplainFailureDegrades(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := DefaultClientConfig()
	cfg.BaseURL = srv.URL
	c := NewClient(cfg, zerolog.Nop())

	res := c.Explain(context.Background(), testRequest(0.5))
	if !res.Fallback {
		t.Fatal("expected fallback result")
	}
	if res.Text == "" {
		t.Error("fallback must still carry placeholder text")
	}
	if !strings.Contains(res.Reason, "502") {
		t.Errorf("Reason = %q, want upstream status mentioned", res.Reason)
	}
}

func TestClientBreakerShortCircuits(t *testing.T) {
	t.Parallel()

	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "upstream down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := DefaultClientConfig()
	cfg.BaseURL = srv.URL
	c := NewClient(cfg, zerolog.Nop())

	// Trip the breaker with consecutive failures, then verify calls stop
	// reaching the upstream.
	for i := 0; i < 8; i++ {
		_ = c.Explain(context.Background(), testRequest(0.5))
	}
	if calls >= 8 {
		t.Errorf("upstream saw %d calls; breaker never opened", calls)
	}
}
