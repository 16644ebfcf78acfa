// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

// Package identity maps external user and item identifiers to dense
// zero-based indices used by the embedding tables.
//
// Encoders are append-only: a new identity always receives the next free
// index and existing assignments are never reassigned or removed. This keeps
// encoder cardinality in lockstep with embedding-table row counts, which the
// engine verifies before serving.
//
// External identifiers are opaque strings. Mapping is by exact lookup, not
// hashing, so distinct external identifiers can never collide. (The original
// deployment derived numeric ids by hashing opaque uids, which made
// collisions across identities an accepted risk; the lookup table removes
// that risk entirely.)
package identity

import "sort"

// Encoder is an append-only bijection between external identifiers and
// dense zero-based indices. The zero value is not usable; use NewEncoder.
//
// Encoder is not safe for concurrent mutation; the owning engine serializes
// writes (see the engine's adaptation lock).
type Encoder struct {
	index map[string]int
	ids   []string
}

// NewEncoder creates an empty encoder.
func NewEncoder() *Encoder {
	return &Encoder{index: make(map[string]int)}
}

// Fit assigns indices to all identifiers in sorted order, replacing any
// existing assignments. Sorting makes the initial encoding deterministic
// regardless of corpus iteration order. Duplicates are assigned once.
func (e *Encoder) Fit(ids []string) {
	uniq := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		uniq[id] = struct{}{}
	}

	sorted := make([]string, 0, len(uniq))
	for id := range uniq {
		sorted = append(sorted, id)
	}
	sort.Strings(sorted)

	e.index = make(map[string]int, len(sorted))
	e.ids = sorted
	for i, id := range sorted {
		e.index[id] = i
	}
}

// Lookup returns the index for an external identifier.
func (e *Encoder) Lookup(id string) (int, bool) {
	idx, ok := e.index[id]
	return idx, ok
}

// Append assigns the next free index to the identifier and returns it.
// If the identifier is already encoded, its existing index is returned and
// no structural change occurs.
func (e *Encoder) Append(id string) (idx int, added bool) {
	if idx, ok := e.index[id]; ok {
		return idx, false
	}
	idx = len(e.ids)
	e.index[id] = idx
	e.ids = append(e.ids, id)
	return idx, true
}

// ID returns the external identifier for an index.
func (e *Encoder) ID(idx int) (string, bool) {
	if idx < 0 || idx >= len(e.ids) {
		return "", false
	}
	return e.ids[idx], true
}

// Len returns the number of encoded identities.
func (e *Encoder) Len() int {
	return len(e.ids)
}

// IDs returns a copy of all encoded identifiers in index order.
func (e *Encoder) IDs() []string {
	out := make([]string, len(e.ids))
	copy(out, e.ids)
	return out
}

// Snapshot returns the encoder's state for persistence.
func (e *Encoder) Snapshot() []string {
	return e.IDs()
}

// Restore rebuilds the encoder from a persisted snapshot, preserving the
// original index assignment.
func (e *Encoder) Restore(ids []string) {
	e.index = make(map[string]int, len(ids))
	e.ids = make([]string, len(ids))
	copy(e.ids, ids)
	for i, id := range e.ids {
		e.index[id] = i
	}
}
