// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

package api

// RatingInput is one fresh rating submitted with a recommendation
// request, used both for cold-start adaptation and the session blend.
type RatingInput struct {
	MovieID string  `json:"movie_id" validate:"required"`
	Rating  float64 `json:"rating"   validate:"gte=1,lte=5"`
}

// RecommendRequest is the body for POST /api/v1/recommend. UserID may be
// omitted when the request carries a JWT, in which case the token subject
// is used.
type RecommendRequest struct {
	UserID  string        `json:"user_id" validate:"omitempty,max=64"`
	Ratings []RatingInput `json:"ratings" validate:"omitempty,max=100,dive"`
	TopK    int           `json:"top_k"   validate:"omitempty,min=1,max=100"`
}
