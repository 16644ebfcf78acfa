// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

// Package ranking combines raw relevance, fairness penalty, and an optional
// session-similarity signal into a final deterministic top-K ordering.
//
// The core adjustment is subtractive: adjusted = raw - lambda*penalty, with
// full weight (lambda=1) on the fairness correction by default. When a
// session preference vector is available, the adjusted score and a cosine
// similarity score are z-scored independently and blended; the z-score's
// standard deviation is floored so a near-constant distribution cannot blow
// the blend up.
package ranking

import (
	"math"
	"sort"
)

// Config contains ranking weights.
type Config struct {
	// LambdaFair scales the fairness penalty subtracted from the raw score.
	// Default: 1.0.
	LambdaFair float64

	// Alpha is the blend weight on the session-similarity z-score.
	// Default: 0.5.
	Alpha float64

	// StdFloor is the minimum standard deviation used in z-score
	// normalization. Default: 0.2.
	StdFloor float64
}

// DefaultConfig returns the default ranking configuration.
func DefaultConfig() Config {
	return Config{
		LambdaFair: 1.0,
		Alpha:      0.5,
		StdFloor:   0.2,
	}
}

// Candidate is one scorable item.
type Candidate struct {
	// Item is the encoded item index; it is also the deterministic
	// tie-break key.
	Item int

	// RawScore is the unadjusted predictor output.
	RawScore float64

	// Penalty is the fairness penalty in [0,1].
	Penalty float64
}

// Ranked is one scored item in final order.
type Ranked struct {
	Item     int
	Score    float64
	RawScore float64
	Penalty  float64
}

// Ranker ranks candidates by fairness-adjusted score.
type Ranker struct {
	cfg Config
}

// New creates a ranker, filling zero config fields with defaults.
func New(cfg Config) *Ranker {
	if cfg.LambdaFair <= 0 {
		cfg.LambdaFair = 1.0
	}
	if cfg.Alpha <= 0 {
		cfg.Alpha = 0.5
	}
	if cfg.StdFloor <= 0 {
		cfg.StdFloor = 0.2
	}
	return &Ranker{cfg: cfg}
}

// Rank orders candidates by final score descending, ties broken by item
// index ascending, and returns the top k. similarities, when non-nil, must
// be parallel to candidates; nil skips the session blend entirely and ranks
// purely by adjusted score.
func (r *Ranker) Rank(candidates []Candidate, similarities []float64, k int) []Ranked {
	if len(candidates) == 0 || k <= 0 {
		return nil
	}

	out := make([]Ranked, len(candidates))
	adjusted := make([]float64, len(candidates))
	for i, c := range candidates {
		adjusted[i] = c.RawScore - r.cfg.LambdaFair*c.Penalty
		out[i] = Ranked{
			Item:     c.Item,
			Score:    adjusted[i],
			RawScore: c.RawScore,
			Penalty:  c.Penalty,
		}
	}

	if similarities != nil && len(similarities) == len(candidates) {
		zAdj := zscore(adjusted, r.cfg.StdFloor)
		zSim := zscore(similarities, r.cfg.StdFloor)
		for i := range out {
			out[i].Score = zAdj[i] + r.cfg.Alpha*zSim[i]
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Item < out[j].Item
	})

	if k > len(out) {
		k = len(out)
	}
	return out[:k]
}

// PreferenceVector builds the session preference vector: the rating-weighted
// average of the just-rated items' embeddings. embeddings and ratings must
// be parallel. Returns nil when there is no usable signal.
func PreferenceVector(embeddings [][]float64, ratings []float64) []float64 {
	if len(embeddings) == 0 || len(embeddings) != len(ratings) {
		return nil
	}
	dim := len(embeddings[0])
	pref := make([]float64, dim)
	var total float64
	for i, e := range embeddings {
		if len(e) != dim || ratings[i] <= 0 {
			continue
		}
		for d := 0; d < dim; d++ {
			pref[d] += ratings[i] * e[d]
		}
		total += ratings[i]
	}
	if total == 0 {
		return nil
	}
	for d := range pref {
		pref[d] /= total
	}
	return pref
}

// Cosine returns the cosine similarity of two vectors, 0 when either has
// zero norm.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// zscore normalizes values to zero mean and unit-ish variance, flooring the
// standard deviation.
func zscore(values []float64, floor float64) []float64 {
	n := float64(len(values))
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= n

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	std := math.Sqrt(variance / n)
	if std < floor {
		std = floor
	}

	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - mean) / std
	}
	return out
}
