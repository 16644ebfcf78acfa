// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/fairlens/internal/auth"
	"github.com/tomtom215/fairlens/internal/logging"
	"github.com/tomtom215/fairlens/internal/recommend"
	"github.com/tomtom215/fairlens/internal/recommend/engine"
	"github.com/tomtom215/fairlens/internal/validation"
)

// maxBodyBytes bounds request bodies; recommendation requests are small.
const maxBodyBytes = 1 << 20

// Handler serves the recommendation API endpoints.
type Handler struct {
	engine *engine.Engine
	logger zerolog.Logger
}

// NewHandler creates a handler backed by the given engine.
func NewHandler(eng *engine.Engine, logger zerolog.Logger) *Handler {
	return &Handler{
		engine: eng,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// Recommend handles POST /api/v1/recommend. The user is taken from the
// request body, falling back to the JWT subject. Unknown users must send
// ratings, which adapt the model before ranking.
func (h *Handler) Recommend(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req RecommendRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		rw.BadRequest("Invalid JSON body")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError(verr.Error(), verr.Fields())
		return
	}

	userID := req.UserID
	if userID == "" {
		if claims := auth.ClaimsFromContext(r.Context()); claims != nil {
			userID = claims.Subject
		}
	}
	if userID == "" {
		rw.BadRequest("user_id is required")
		return
	}

	ratings := make([]recommend.NewRating, 0, len(req.Ratings))
	for _, in := range req.Ratings {
		ratings = append(ratings, recommend.NewRating{
			ItemID: in.MovieID,
			Rating: in.Rating,
		})
	}

	resp, err := h.engine.Recommend(r.Context(), recommend.Request{
		UserID:    userID,
		Ratings:   ratings,
		K:         req.TopK,
		RequestID: logging.RequestIDFromContext(r.Context()),
	})
	if err != nil {
		h.respondEngineError(rw, r, err)
		return
	}

	rw.Success(resp)
}

// Favorites handles GET /api/v1/favorites/{userID}.
func (h *Handler) Favorites(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID := chi.URLParam(r, "userID")
	if userID == "" {
		rw.BadRequest("User ID required")
		return
	}

	limit := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 || parsed > 100 {
			rw.BadRequest("limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	favorites := h.engine.Favorites(userID, limit)
	if favorites == nil {
		favorites = []engine.Favorite{}
	}

	rw.Success(map[string]interface{}{
		"user_id":   userID,
		"favorites": favorites,
		"count":     len(favorites),
	})
}

// Status handles GET /api/v1/recommend/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(h.engine.Status())
}

// Health handles GET /health. It reports degraded (but still 200) while
// the model is untrained so orchestrators keep the process alive during
// initial training.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if !h.engine.Status().Trained {
		status = "degraded"
	}
	NewResponseWriter(w, r).Success(map[string]string{"status": status})
}

// respondEngineError maps engine errors to API error codes.
func (h *Handler) respondEngineError(rw *ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, recommend.ErrUnknownUser):
		rw.NotFound(ErrCodeUnknownIdentity, "Unknown user; include ratings to onboard")
	case errors.Is(err, recommend.ErrUnknownItem):
		rw.NotFound(ErrCodeUnknownIdentity, "Unknown movie in ratings")
	case errors.Is(err, recommend.ErrNotTrained):
		rw.Error(http.StatusServiceUnavailable, ErrCodeModelNotTrained, "Model is not trained yet")
	case errors.Is(err, recommend.ErrModelState):
		h.logger.Error().Err(err).Msg("Model state error")
		rw.Error(http.StatusInternalServerError, ErrCodeModelState, "Model state inconsistency")
	default:
		logger := logging.Ctx(r.Context())
		logger.Error().Err(err).Msg("Recommendation failed")
		rw.InternalError("Failed to generate recommendations")
	}
}
