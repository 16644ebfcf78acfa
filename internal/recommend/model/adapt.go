// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

package model

import (
	"context"

	"github.com/tomtom215/fairlens/internal/recommend"
)

// AdaptConfig contains hyperparameters for online user adaptation.
type AdaptConfig struct {
	// Epochs is the number of full-batch fine-tuning passes. Default: 30.
	Epochs int

	// LearningRate is the Adam step size. Default: 0.001.
	LearningRate float64

	// LambdaFair scales the fairness penalty inside the fitting target.
	// Default: 1.0.
	LambdaFair float64

	// Mu is the L2 regularization weight on the adapted embedding rows.
	// Default: 1e-4.
	Mu float64
}

// DefaultAdaptConfig returns the default adaptation configuration.
func DefaultAdaptConfig() AdaptConfig {
	return AdaptConfig{
		Epochs:       30,
		LearningRate: 0.001,
		LambdaFair:   1.0,
		Mu:           1e-4,
	}
}

// AdaptSample is one fresh rating for online adaptation. Penalty is the
// frozen fairness penalty for the (user, item) pair, precomputed by the
// caller: the joint bias module never updates during adaptation, so its
// output per sample is a constant.
type AdaptSample struct {
	Item    int
	Rating  float64
	Penalty float64
}

// AdaptUser fine-tunes the model to one user from a batch of fresh ratings.
// Only the user's two embedding rows are trainable; every other parameter
// is frozen, so adaptation for one user cannot perturb predictions for any
// other. The objective per sample is
//
//	(pred - lambda*penalty - rating)^2 + mu*||user rows||^2
//
// which fits the fairness-adjusted score, not the raw score, to the
// observed rating.
func (m *NeuralCF) AdaptUser(ctx context.Context, user int, samples []AdaptSample, cfg AdaptConfig) error {
	if user < 0 || user >= m.Users() {
		return recommend.ErrUnknownUser
	}
	if len(samples) == 0 {
		return recommend.ErrEmptyBatch
	}
	for _, s := range samples {
		if s.Item < 0 || s.Item >= m.Items() {
			return recommend.ErrUnknownItem
		}
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = 30
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.001
	}
	if cfg.LambdaFair <= 0 {
		cfg.LambdaFair = 1.0
	}
	if cfg.Mu < 0 {
		cfg.Mu = 1e-4
	}

	uG := m.userGMF.Row(user)
	uM := m.userMLP.Row(user)
	opt := newAdam(cfg.LearningRate, uG, uM)

	n := float64(len(samples))
	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		gUG := make([]float64, len(uG))
		gUM := make([]float64, len(uM))

		for _, s := range samples {
			f := m.forward(user, s.Item)
			g := 2 * (f.pred - cfg.LambdaFair*s.Penalty - s.Rating) / n
			m.backprop(f, g, user, s.Item, gUG, gUM, nil, nil, nil, nil, nil, nil, nil, nil)
		}

		for d := range uG {
			gUG[d] += 2 * cfg.Mu * uG[d]
		}
		for d := range uM {
			gUM[d] += 2 * cfg.Mu * uM[d]
		}

		opt.step([][]float64{gUG, gUM})
	}
	return nil
}
