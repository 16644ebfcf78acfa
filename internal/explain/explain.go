// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

// Package explain turns fairness attributions into human-readable
// recommendation rationales.
//
// Explanation text comes from an upstream LLM behind a circuit breaker and
// a request timeout. The boundary is a Result value, never an error: a
// ranking that succeeded must reach the user even when the explanation
// upstream is down, so failures degrade to placeholder text and the
// failure reason travels in the Result for logging.
package explain

import (
	"context"
	"fmt"
	"strings"

	"github.com/tomtom215/fairlens/internal/recommend"
)

// dimLabels maps bias dimensions to user-facing factor descriptions.
var dimLabels = [recommend.NumBiasDims]string{
	"popularity bias",
	"interaction patterns",
	"gender preferences",
	"age group tendencies",
	"profession-based interests",
	"regional viewing trends",
}

// Result is the outcome of one explanation attempt. Exactly one shape:
// either generated text, or placeholder text plus the reason generation
// failed.
type Result struct {
	// Text is the explanation shown to the user. Always non-empty.
	Text string

	// Fallback is true when Text is a placeholder.
	Fallback bool

	// Reason is the failure description when Fallback is set.
	Reason string
}

// success wraps generated text.
func success(text string) Result {
	return Result{Text: text}
}

// failure wraps a placeholder with the failure reason.
func failure(reason string) Result {
	return Result{
		Text:     "Recommended for you based on your viewing history.",
		Fallback: true,
		Reason:   reason,
	}
}

// Request carries the context an explanation needs.
type Request struct {
	// Attribution is the fairness attribution for the recommended item.
	Attribution recommend.Attribution

	// User is the profile of the recommendation's recipient; may be nil.
	User *recommend.UserProfile

	// Item is the recommended item.
	Item recommend.ItemProfile

	// Theta is the user's explanation depth in [0,1].
	Theta float64
}

// Generator produces explanation text for one recommendation.
type Generator interface {
	Explain(ctx context.Context, req Request) Result
}

// topFactors returns the friendly labels of the dominant attribution
// dimensions for a given depth: one factor for brief explanations, two for
// moderate, three for detailed.
func topFactors(attr recommend.Attribution, theta float64) []string {
	k := 1
	switch {
	case theta > 0.7:
		k = 3
	case theta > 0.3:
		k = 2
	}
	dims := attr.Top(k)
	labels := make([]string, len(dims))
	for i, d := range dims {
		labels[i] = dimLabels[d]
	}
	return labels
}

// BuildPrompt renders the LLM prompt for a recommendation. The depth
// parameter selects one of three templates: brief single-factor, moderate
// two-factor, or detailed fairness-framed.
func BuildPrompt(req Request) string {
	factors := strings.Join(topFactors(req.Attribution, req.Theta), ", ")

	userContext := "a viewer"
	if req.User != nil {
		if req.User.DisplayName != "" {
			userContext = req.User.DisplayName
		} else {
			userContext = fmt.Sprintf("user #%s", req.User.UserID)
		}
	}

	title := req.Item.Title
	if title == "" {
		title = fmt.Sprintf("item #%s", req.Item.ItemID)
	}
	itemContext := title
	if len(req.Item.Genres) > 0 {
		itemContext = fmt.Sprintf("%s in the '%s' category", title, strings.Join(req.Item.Genres, "/"))
	}

	switch {
	case req.Theta <= 0.3:
		return fmt.Sprintf(
			"Explain in one friendly sentence why %s was recommended to %s. "+
				"Base the explanation on the most relevant factor: %s.",
			itemContext, userContext, factors)
	case req.Theta <= 0.7:
		return fmt.Sprintf(
			"You're a helpful recommendation explanation assistant.\n\n"+
				"Explain why %s was recommended to %s.\n"+
				"Mention up to two top contributing factors such as: %s.\n"+
				"Keep the explanation concise, user-friendly, and clear.",
			itemContext, userContext, factors)
	default:
		return fmt.Sprintf(
			"You are a fairness-aware recommendation explanation assistant.\n\n"+
				"User Context: %s\n"+
				"Item Context: %s\n"+
				"Top contributing fairness-related factors: %s\n\n"+
				"Please generate a detailed, thoughtful, and transparent explanation "+
				"for this recommendation. Focus on fairness and personalization while "+
				"remaining easy to understand.",
			userContext, itemContext, factors)
	}
}

// Static is a Generator that never calls upstream: it renders a one-line
// template from the dominant factor. Used when no LLM endpoint is
// configured.
type Static struct{}

// Explain renders the template explanation.
func (Static) Explain(_ context.Context, req Request) Result {
	factors := topFactors(req.Attribution, req.Theta)
	title := req.Item.Title
	if title == "" {
		title = "This title"
	}
	return success(fmt.Sprintf("%s matches your %s.", title, factors[0]))
}
