// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

// Package bias computes per-(user,item) bias feature vectors from the
// interaction corpus and user profiles.
//
// Three families of signals are produced:
//
//   - Popularity bias (PB): an item's share of all interactions
//   - Interaction bias (IB): recency-weighted mean rating per (user,item)
//   - Demographic bias (DB): per tracked attribute, the proportion of the
//     user's demographic group that interacted with the item
//
// Each of the six dimensions is min-max normalized independently with a
// single global fit over the whole corpus. Normalization parameters are
// refit on every rebuild; they are never reused across corpora.
//
// Sparse input is the normal case: users with missing demographic
// attributes contribute zero to that dimension, an attribute absent from
// the entire profile table zeroes its whole dimension, and an empty corpus
// yields an empty table whose lookups fall back to all-zero vectors.
package bias

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/tomtom215/fairlens/internal/recommend"
)

// DefaultEta is the default time-decay constant for interaction bias.
const DefaultEta = 0.01

// Pair identifies one (user, item) feature row.
type Pair struct {
	UserID string
	ItemID string
}

// Builder computes bias feature tables from interaction corpora.
type Builder struct {
	// eta is the exponential time-decay constant for interaction bias.
	eta    float64
	logger zerolog.Logger
}

// NewBuilder creates a builder with the given decay constant.
// A non-positive eta falls back to DefaultEta.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewBuilder(eta float64, logger zerolog.Logger) *Builder {
	if eta <= 0 {
		eta = DefaultEta
	}
	return &Builder{
		eta:    eta,
		logger: logger.With().Str("component", "bias").Logger(),
	}
}

// Build computes a bias vector for every (user, item) pair with at least one
// interaction. Duplicate (user,item) interactions collapse through the
// aggregation rules of each dimension; they are never dropped.
//
// An empty corpus produces an empty table, not an error.
func (b *Builder) Build(interactions []recommend.Interaction, profiles []recommend.UserProfile) *Table {
	t := &Table{
		rows:  make(map[Pair]recommend.BiasVector),
		items: make(map[string]recommend.BiasVector),
	}
	if len(interactions) == 0 {
		return t
	}

	pairs := collectPairs(interactions)
	raw := make(map[Pair][recommend.NumBiasDims]float64, len(pairs))
	for _, p := range pairs {
		raw[p] = [recommend.NumBiasDims]float64{}
	}

	// Popularity: normalization is fit across items, then applied per row.
	fractions := rawPopularity(interactions)
	normalize(fractions)
	assign(raw, recommend.DimPopularity, func(p Pair) float64 { return fractions[p.ItemID] })

	// Interaction: normalization is fit across (user,item) pairs.
	ib := b.rawInteraction(interactions)
	normalize(ib)
	assign(raw, recommend.DimInteraction, func(p Pair) float64 { return ib[p] })

	profileByUser := make(map[string]*recommend.UserProfile, len(profiles))
	for i := range profiles {
		profileByUser[profiles[i].UserID] = &profiles[i]
	}
	for _, dim := range []int{recommend.DimGender, recommend.DimAge, recommend.DimOccupation, recommend.DimRegion} {
		db := rawDemographic(interactions, profileByUser, dim, pairs)
		normalize(db)
		d := dim
		assign(raw, d, func(p Pair) float64 { return db[p] })
	}

	for p, v := range raw {
		t.rows[p] = recommend.BiasVectorFromValues(v)
	}
	t.buildItemVectors()

	b.logger.Info().
		Int("interactions", len(interactions)).
		Int("pairs", len(t.rows)).
		Int("items", len(t.items)).
		Msg("bias feature table built")

	return t
}

// collectPairs returns the distinct (user,item) pairs in first-seen order.
func collectPairs(interactions []recommend.Interaction) []Pair {
	seen := make(map[Pair]struct{}, len(interactions))
	pairs := make([]Pair, 0, len(interactions))
	for _, in := range interactions {
		p := Pair{UserID: in.UserID, ItemID: in.ItemID}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		pairs = append(pairs, p)
	}
	return pairs
}

// rawPopularity returns each item's raw interaction fraction: the item's
// interaction count divided by the total interaction count.
func rawPopularity(interactions []recommend.Interaction) map[string]float64 {
	counts := make(map[string]int)
	for _, in := range interactions {
		counts[in.ItemID]++
	}

	total := float64(len(interactions))
	fractions := make(map[string]float64, len(counts))
	for item, c := range counts {
		fractions[item] = float64(c) / total
	}
	return fractions
}

// rawInteraction returns the raw interaction bias per (user,item) pair.
// Each user's interactions are ordered by timestamp ascending (ties keep
// ingestion order) and assigned a zero-based recency index i with decay
// weight exp(-eta*i). Pairs aggregate as sum(rating*w)/sum(w), which
// collapses repeated ratings of the same item by one user.
func (b *Builder) rawInteraction(interactions []recommend.Interaction) map[Pair]float64 {
	byUser := make(map[string][]int)
	for i, in := range interactions {
		byUser[in.UserID] = append(byUser[in.UserID], i)
	}

	type accum struct{ weighted, weight float64 }
	acc := make(map[Pair]*accum)

	for _, idxs := range byUser {
		// Stable sort keeps ingestion order for equal timestamps.
		sort.SliceStable(idxs, func(a, c int) bool {
			return interactions[idxs[a]].Timestamp.Before(interactions[idxs[c]].Timestamp)
		})
		for recencyIdx, i := range idxs {
			in := interactions[i]
			w := math.Exp(-b.eta * float64(recencyIdx))
			p := Pair{UserID: in.UserID, ItemID: in.ItemID}
			a := acc[p]
			if a == nil {
				a = &accum{}
				acc[p] = a
			}
			a.weighted += in.Rating * w
			a.weight += w
		}
	}

	values := make(map[Pair]float64, len(acc))
	for p, a := range acc {
		values[p] = a.weighted / a.weight
	}
	return values
}

// rawDemographic returns the raw demographic proportion per (user,item)
// pair for one attribute dimension: the number of distinct users holding
// the user's attribute value who interacted with the item, divided by the
// group size (distinct profile-table users holding that value).
//
// Users without the attribute get zero. If no profile carries the attribute
// at all, every pair gets zero (the dimension degrades, it does not fail).
func rawDemographic(
	interactions []recommend.Interaction,
	profiles map[string]*recommend.UserProfile,
	dim int,
	pairs []Pair,
) map[Pair]float64 {
	values := make(map[Pair]float64, len(pairs))
	for _, p := range pairs {
		values[p] = 0
	}

	attrOf := func(userID string) string {
		p, ok := profiles[userID]
		if !ok {
			return ""
		}
		return p.Attribute(dim)
	}

	// Group sizes: distinct users holding each attribute value.
	groupSize := make(map[string]int)
	for _, p := range profiles {
		if v := p.Attribute(dim); v != "" {
			groupSize[v]++
		}
	}
	if len(groupSize) == 0 {
		return values
	}

	// Distinct users per (attribute value, item).
	type groupItem struct {
		value  string
		itemID string
	}
	groupUsers := make(map[groupItem]map[string]struct{})
	for _, in := range interactions {
		v := attrOf(in.UserID)
		if v == "" {
			continue
		}
		gi := groupItem{value: v, itemID: in.ItemID}
		if groupUsers[gi] == nil {
			groupUsers[gi] = make(map[string]struct{})
		}
		groupUsers[gi][in.UserID] = struct{}{}
	}

	for _, p := range pairs {
		v := attrOf(p.UserID)
		if v == "" {
			continue
		}
		count := len(groupUsers[groupItem{value: v, itemID: p.ItemID}])
		values[p] = float64(count) / float64(groupSize[v])
	}
	return values
}

// assign writes one dimension into every raw feature row.
func assign(raw map[Pair][recommend.NumBiasDims]float64, dim int, value func(Pair) float64) {
	for p, v := range raw {
		v[dim] = value(p)
		raw[p] = v
	}
}

// buildItemVectors derives a per-item vector as the mean of the item's
// (user,item) rows. The ranker scores every candidate item with this
// aggregate when no row exists for the requesting user.
func (t *Table) buildItemVectors() {
	sums := make(map[string][recommend.NumBiasDims]float64)
	counts := make(map[string]int)
	for p, vec := range t.rows {
		s := sums[p.ItemID]
		v := vec.Values()
		for d := 0; d < recommend.NumBiasDims; d++ {
			s[d] += v[d]
		}
		sums[p.ItemID] = s
		counts[p.ItemID]++
	}
	for item, s := range sums {
		n := float64(counts[item])
		for d := 0; d < recommend.NumBiasDims; d++ {
			s[d] /= n
		}
		t.items[item] = recommend.BiasVectorFromValues(s)
	}
}

// normalize min-max normalizes values in place over the map's values.
// A constant distribution (max == min) maps to zero, matching the scaler
// behavior the feature pipeline was fit with.
func normalize[K comparable](m map[K]float64) {
	first := true
	var lo, hi float64
	for _, v := range m {
		if first {
			lo, hi = v, v
			first = false
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if first || hi == lo {
		for k := range m {
			m[k] = 0
		}
		return
	}
	for k, v := range m {
		m[k] = (v - lo) / (hi - lo)
	}
}
