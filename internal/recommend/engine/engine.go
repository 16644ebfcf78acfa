// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

// Package engine wires the recommendation pipeline into one service
// object: bias features, the joint bias module, the rating predictor,
// online adaptation, ranking, and explanations.
//
// # Concurrency
//
// The engine holds all mutable model state behind a single RWMutex.
// Batch training and online adaptation take the write lock, so adaptation
// is single-flight per engine: two users cannot race on appending "the
// next" embedding row. Scoring takes the read lock and runs concurrently
// against a stable model.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/fairlens/internal/explain"
	"github.com/tomtom215/fairlens/internal/recommend"
	"github.com/tomtom215/fairlens/internal/recommend/bias"
	"github.com/tomtom215/fairlens/internal/recommend/identity"
	"github.com/tomtom215/fairlens/internal/recommend/model"
	"github.com/tomtom215/fairlens/internal/recommend/ranking"
	"github.com/tomtom215/fairlens/internal/recommend/storage"
)

// Config contains the engine's model and ranking hyperparameters.
type Config struct {
	// Eta is the recency decay rate for interaction bias. Default: 0.01.
	Eta float64

	// JointBias configures the fairness penalty module.
	JointBias model.JointBiasConfig

	// JointBiasEpochs is the penalty head's training epoch count.
	// Default: 50.
	JointBiasEpochs int

	// JointBiasLearningRate is the penalty head's Adam step size.
	// Default: 0.001.
	JointBiasLearningRate float64

	// Predictor configures the NeuralCF rating predictor.
	Predictor model.NeuralCFConfig

	// Adapt configures online user adaptation.
	Adapt model.AdaptConfig

	// Ranking configures score adjustment and the session blend.
	Ranking ranking.Config

	// DefaultK is the recommendation count when a request leaves K zero.
	// Default: 10.
	DefaultK int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Eta:                   bias.DefaultEta,
		JointBias:             model.DefaultJointBiasConfig(),
		JointBiasEpochs:       50,
		JointBiasLearningRate: 0.001,
		Predictor:             model.DefaultNeuralCFConfig(),
		Adapt:                 model.DefaultAdaptConfig(),
		Ranking:               ranking.DefaultConfig(),
		DefaultK:              10,
	}
}

// ProfileSource supplies demographic profiles at request time. A miss is
// reported by error; the engine degrades to an anonymous profile.
type ProfileSource interface {
	Get(ctx context.Context, userID string) (*recommend.UserProfile, error)
}

// Options are the engine's external collaborators. All fields are
// optional: a nil Store disables persistence, a nil Profiles serves
// anonymous explanations, a nil Explainer falls back to templates.
type Options struct {
	Store     *storage.Store
	Profiles  ProfileSource
	Explainer explain.Generator
	Logger    zerolog.Logger
}

// Engine is the recommendation service object.
type Engine struct {
	cfg       Config
	logger    zerolog.Logger
	store     *storage.Store
	profiles  ProfileSource
	explainer explain.Generator
	ranker    *ranking.Ranker

	mu        sync.RWMutex
	users     *identity.Encoder
	items     *identity.Encoder
	biasTable *bias.Table
	jbf       *model.JointBias
	cf        *model.NeuralCF

	// catalog holds item metadata by external id; byUser holds the corpus
	// interactions per user for favorites; rated marks corpus and
	// session-rated (user,item) index pairs excluded from candidates.
	catalog map[string]recommend.ItemProfile
	byUser  map[string][]recommend.Interaction
	rated   map[int]map[int]struct{}

	interactionCount int
	version          int
	trained          bool
	trainedAt        time.Time
}

// New creates an engine. Zero config fields fall back to defaults.
func New(cfg Config, opts Options) *Engine {
	if cfg.Eta <= 0 {
		cfg.Eta = bias.DefaultEta
	}
	if cfg.JointBiasEpochs <= 0 {
		cfg.JointBiasEpochs = 50
	}
	if cfg.JointBiasLearningRate <= 0 {
		cfg.JointBiasLearningRate = 0.001
	}
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = 10
	}
	explainer := opts.Explainer
	if explainer == nil {
		explainer = explain.Static{}
	}

	return &Engine{
		cfg:       cfg,
		logger:    opts.Logger.With().Str("component", "engine").Logger(),
		store:     opts.Store,
		profiles:  opts.Profiles,
		explainer: explainer,
		ranker:    ranking.New(cfg.Ranking),
		users:     identity.NewEncoder(),
		items:     identity.NewEncoder(),
		biasTable: bias.FromSnapshot(bias.Snapshot{}),
		catalog:   make(map[string]recommend.ItemProfile),
		byUser:    make(map[string][]recommend.Interaction),
		rated:     make(map[int]map[int]struct{}),
	}
}

// Status reports the engine's model state.
func (e *Engine) Status() recommend.TrainingStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return recommend.TrainingStatus{
		Trained:          e.trained,
		ModelVersion:     e.version,
		TrainedAt:        e.trainedAt,
		UserCount:        e.users.Len(),
		ItemCount:        e.items.Len(),
		InteractionCount: e.interactionCount,
		BiasRowCount:     e.biasTable.Len(),
	}
}

// Favorite is one of a user's top-rated corpus items.
type Favorite struct {
	ItemID  string    `json:"item_id"`
	Title   string    `json:"title"`
	Genres  []string  `json:"genres"`
	Rating  float64   `json:"rating"`
	RatedAt time.Time `json:"rated_at"`
}

// Favorites returns a user's n highest-rated corpus items, rating
// descending, most recent first on ties. Unknown users get an empty list.
func (e *Engine) Favorites(userID string, n int) []Favorite {
	e.mu.RLock()
	defer e.mu.RUnlock()

	interactions := e.byUser[userID]
	if len(interactions) == 0 || n <= 0 {
		return nil
	}

	sorted := make([]recommend.Interaction, len(interactions))
	copy(sorted, interactions)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && favoriteLess(sorted[j-1], sorted[j]); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	if n > len(sorted) {
		n = len(sorted)
	}

	out := make([]Favorite, 0, n)
	for _, in := range sorted[:n] {
		fav := Favorite{
			ItemID:  in.ItemID,
			Rating:  in.Rating,
			RatedAt: in.Timestamp,
		}
		if meta, ok := e.catalog[in.ItemID]; ok {
			fav.Title = meta.Title
			fav.Genres = meta.Genres
		}
		out = append(out, fav)
	}
	return out
}

// favoriteLess reports whether a ranks below b: higher rating first, then
// more recent, then item id for determinism.
func favoriteLess(a, b recommend.Interaction) bool {
	if a.Rating != b.Rating {
		return a.Rating < b.Rating
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.ItemID > b.ItemID
}
