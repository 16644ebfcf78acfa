// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/fairlens/internal/explain"
	"github.com/tomtom215/fairlens/internal/metrics"
	"github.com/tomtom215/fairlens/internal/recommend"
	"github.com/tomtom215/fairlens/internal/recommend/model"
	"github.com/tomtom215/fairlens/internal/recommend/ranking"
)

// Adapt extends the model to a user from a batch of fresh ratings. Known
// users are fine-tuned in place; unknown users (and unknown items in the
// batch) get appended encoder entries and mean-initialized embedding rows
// first. An empty batch is a no-op: no degenerate user row is created.
//
// Adapt holds the write lock for its whole duration, serializing
// adaptations against each other and against scoring.
func (e *Engine) Adapt(ctx context.Context, userID string, ratings []recommend.NewRating) error {
	if userID == "" {
		return recommend.ErrUnknownUser
	}
	if len(ratings) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.trained {
		return recommend.ErrNotTrained
	}

	userIdx, existed := e.users.Lookup(userID)
	if !existed {
		userIdx, _ = e.users.Append(userID)
		if rowIdx := e.cf.AppendUser(); rowIdx != userIdx {
			return fmt.Errorf("%w: encoder index %d but embedding row %d",
				recommend.ErrModelState, userIdx, rowIdx)
		}
	}

	samples := make([]model.AdaptSample, 0, len(ratings))
	for _, r := range ratings {
		itemIdx, known := e.items.Lookup(r.ItemID)
		if !known {
			itemIdx, _ = e.items.Append(r.ItemID)
			if rowIdx := e.cf.AppendItem(); rowIdx != itemIdx {
				return fmt.Errorf("%w: item encoder index %d but embedding row %d",
					recommend.ErrModelState, itemIdx, rowIdx)
			}
		}
		// The joint bias module is frozen here, so each sample's penalty is
		// a constant. Items without a bias vector get the neutral zero
		// vector rather than failing the batch.
		vec := e.biasVectorLocked(userID, r.ItemID)
		samples = append(samples, model.AdaptSample{
			Item:    itemIdx,
			Rating:  r.Rating,
			Penalty: e.jbf.Penalty(vec),
		})
	}

	if err := e.cf.AdaptUser(ctx, userIdx, samples, e.cfg.Adapt); err != nil {
		return err
	}

	if e.rated[userIdx] == nil {
		e.rated[userIdx] = make(map[int]struct{})
	}
	for _, s := range samples {
		e.rated[userIdx][s.Item] = struct{}{}
	}
	e.version++
	metrics.SetModelState(e.users.Len(), e.items.Len(), e.version, e.biasTable.Len())

	e.logger.Debug().
		Str("user_id", userID).
		Bool("new_user", !existed).
		Int("ratings", len(samples)).
		Int("version", e.version).
		Msg("Adapted model to user")
	return nil
}

// biasVectorLocked resolves the bias vector for a pair: the exact
// (user,item) row when present, the item's aggregated vector otherwise,
// and the neutral zero vector for cold items. Callers hold e.mu.
func (e *Engine) biasVectorLocked(userID, itemID string) recommend.BiasVector {
	if vec, ok := e.biasTable.Vector(userID, itemID); ok {
		return vec
	}
	if vec, ok := e.biasTable.ItemVector(itemID); ok {
		return vec
	}
	return recommend.BiasVector{}
}

// scored carries one candidate through ranking with its bias vector.
type scored struct {
	candidates   []ranking.Candidate
	similarities []float64
	vectors      map[int]recommend.BiasVector
	itemIDs      map[int]string
}

// Recommend produces a ranked, explained top-K recommendation list.
// Unknown users with fresh ratings are adapted first; unknown users
// without any ratings are rejected with ErrUnknownUser. Fresh ratings also
// drive the session-similarity blend.
func (e *Engine) Recommend(ctx context.Context, req recommend.Request) (*recommend.Response, error) {
	start := time.Now()
	if req.UserID == "" {
		return nil, recommend.ErrUnknownUser
	}
	if req.K <= 0 {
		req.K = e.cfg.DefaultK
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	e.mu.RLock()
	trained := e.trained
	_, known := e.users.Lookup(req.UserID)
	e.mu.RUnlock()
	if !trained {
		return nil, recommend.ErrNotTrained
	}

	adapted := false
	if !known {
		if len(req.Ratings) == 0 {
			return nil, recommend.ErrUnknownUser
		}
		adaptStart := time.Now()
		err := e.Adapt(ctx, req.UserID, req.Ratings)
		metrics.RecordAdaptation(err, time.Since(adaptStart))
		if err != nil {
			return nil, fmt.Errorf("adapt user: %w", err)
		}
		adapted = true
		if e.store != nil {
			// Persistence failure must not fail a served recommendation;
			// the adapted rows survive in memory and re-save next time.
			if err := e.persist(false); err != nil {
				e.logger.Warn().Err(err).Msg("Failed to persist adapted predictor")
			}
		}
	}

	sc, version, err := e.score(req)
	if err != nil {
		return nil, err
	}

	ranked := e.ranker.Rank(sc.candidates, sc.similarities, req.K)
	items := e.explainRanked(ctx, req.UserID, ranked, sc)

	metrics.RecommendDuration.Observe(time.Since(start).Seconds())
	metrics.RecommendCandidates.Observe(float64(len(sc.candidates)))

	return &recommend.Response{
		UserID: req.UserID,
		Items:  items,
		Metadata: recommend.ResponseMetadata{
			RequestID:    req.RequestID,
			Adapted:      adapted,
			Candidates:   len(sc.candidates),
			LatencyMS:    time.Since(start).Milliseconds(),
			ModelVersion: version,
			Timestamp:    time.Now().UTC(),
		},
	}, nil
}

// score computes raw scores, penalties, and session similarities for every
// candidate item under the read lock.
func (e *Engine) score(req recommend.Request) (*scored, int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	userIdx, ok := e.users.Lookup(req.UserID)
	if !ok {
		return nil, 0, recommend.ErrUnknownUser
	}

	// Session preference vector from the just-rated items' embeddings.
	var pref []float64
	if len(req.Ratings) > 0 {
		var embeds [][]float64
		var weights []float64
		for _, r := range req.Ratings {
			itemIdx, known := e.items.Lookup(r.ItemID)
			if !known {
				continue
			}
			emb, err := e.cf.ItemEmbedding(itemIdx)
			if err != nil {
				continue
			}
			embeds = append(embeds, emb)
			weights = append(weights, r.Rating)
		}
		pref = ranking.PreferenceVector(embeds, weights)
	}

	excluded := e.rated[userIdx]
	sc := &scored{
		vectors: make(map[int]recommend.BiasVector),
		itemIDs: make(map[int]string),
	}
	if pref != nil {
		sc.similarities = make([]float64, 0, e.items.Len())
	}

	for itemIdx := 0; itemIdx < e.items.Len(); itemIdx++ {
		if _, seen := excluded[itemIdx]; seen {
			continue
		}
		itemID, _ := e.items.ID(itemIdx)
		raw, err := e.cf.Predict(userIdx, itemIdx)
		if err != nil {
			return nil, 0, err
		}
		vec := e.biasVectorLocked(req.UserID, itemID)

		sc.candidates = append(sc.candidates, ranking.Candidate{
			Item:     itemIdx,
			RawScore: raw,
			Penalty:  e.jbf.Penalty(vec),
		})
		sc.vectors[itemIdx] = vec
		sc.itemIDs[itemIdx] = itemID

		if pref != nil {
			emb, err := e.cf.ItemEmbedding(itemIdx)
			if err != nil {
				return nil, 0, err
			}
			sc.similarities = append(sc.similarities, ranking.Cosine(emb, pref))
		}
	}
	return sc, e.version, nil
}

// explainRanked attaches metadata, attributions, and explanation text to
// the ranked items. Explanation failures degrade to placeholder text; they
// never fail the response.
func (e *Engine) explainRanked(ctx context.Context, userID string, ranked []ranking.Ranked, sc *scored) []recommend.ScoredItem {
	var profile *recommend.UserProfile
	if e.profiles != nil {
		p, err := e.profiles.Get(ctx, userID)
		if err == nil {
			profile = p
		} else {
			e.logger.Debug().Err(err).Str("user_id", userID).Msg("No profile for explanations")
		}
	}
	theta := 0.0
	if profile != nil {
		theta = profile.ExplanationDepth
	}

	e.mu.RLock()
	attributions := make([]recommend.Attribution, len(ranked))
	metas := make([]recommend.ItemProfile, len(ranked))
	for i, r := range ranked {
		attributions[i] = e.jbf.Attribution(sc.vectors[r.Item])
		itemID := sc.itemIDs[r.Item]
		if meta, ok := e.catalog[itemID]; ok {
			metas[i] = meta
		} else {
			metas[i] = recommend.ItemProfile{ItemID: itemID}
		}
	}
	e.mu.RUnlock()

	items := make([]recommend.ScoredItem, len(ranked))
	for i, r := range ranked {
		result := e.explainer.Explain(ctx, explain.Request{
			Attribution: attributions[i],
			User:        profile,
			Item:        metas[i],
			Theta:       theta,
		})
		metrics.RecordExplanation(result.Fallback)
		if result.Fallback {
			e.logger.Debug().Str("item_id", metas[i].ItemID).Str("reason", result.Reason).
				Msg("Explanation fell back to placeholder")
		}

		items[i] = recommend.ScoredItem{
			ItemID:      metas[i].ItemID,
			Title:       metas[i].Title,
			Genres:      metas[i].Genres,
			Score:       r.Score,
			RawScore:    r.RawScore,
			Penalty:     r.Penalty,
			Attribution: attributions[i],
			Explanation: result.Text,
		}
	}
	return items
}
