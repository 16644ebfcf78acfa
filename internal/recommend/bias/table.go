// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

package bias

import (
	"github.com/tomtom215/fairlens/internal/recommend"
)

// Table is the precomputed bias feature table: one vector per (user,item)
// pair plus an aggregated per-item vector for scoring candidates the user
// has never interacted with.
//
// Tables are immutable after Build; rebuilding the corpus produces a new
// table. Lookups for unknown pairs or items return the neutral zero vector.
type Table struct {
	rows  map[Pair]recommend.BiasVector
	items map[string]recommend.BiasVector
}

// Vector returns the bias vector for a (user,item) pair.
// Unknown pairs return the zero vector and false.
func (t *Table) Vector(userID, itemID string) (recommend.BiasVector, bool) {
	v, ok := t.rows[Pair{UserID: userID, ItemID: itemID}]
	return v, ok
}

// ItemVector returns the aggregated bias vector for an item.
// Cold items return the zero vector and false.
func (t *Table) ItemVector(itemID string) (recommend.BiasVector, bool) {
	v, ok := t.items[itemID]
	return v, ok
}

// Len returns the number of (user,item) rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Snapshot is the serializable form of a table.
type Snapshot struct {
	Rows  map[Pair]recommend.BiasVector
	Items map[string]recommend.BiasVector
}

// Snapshot returns the table state for persistence.
func (t *Table) Snapshot() Snapshot {
	return Snapshot{Rows: t.rows, Items: t.items}
}

// FromSnapshot rebuilds a table from persisted state.
func FromSnapshot(s Snapshot) *Table {
	t := &Table{rows: s.Rows, items: s.Items}
	if t.rows == nil {
		t.rows = make(map[Pair]recommend.BiasVector)
	}
	if t.items == nil {
		t.items = make(map[string]recommend.BiasVector)
	}
	return t
}
