// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

package model

import (
	"fmt"
	"math/rand"
)

// EmbeddingTable is an owned, resizable embedding matrix. Rows are dense
// vectors indexed by the dense indices an identity encoder assigns, so the
// table's row count must always equal the encoder's cardinality. Growth is
// append-only through AppendMeanRow; rows are never reordered or removed.
type EmbeddingTable struct {
	rows [][]float64
	dim  int
}

// NewEmbeddingTable creates a table of n rows of the given dimension,
// initialized with small uniform values from rng.
func NewEmbeddingTable(n, dim int, rng *rand.Rand) *EmbeddingTable {
	t := &EmbeddingTable{
		rows: make([][]float64, n),
		dim:  dim,
	}
	for i := range t.rows {
		t.rows[i] = make([]float64, dim)
		for d := 0; d < dim; d++ {
			t.rows[i][d] = (rng.Float64() - 0.5) * 0.1
		}
	}
	return t
}

// Len returns the number of rows.
func (t *EmbeddingTable) Len() int {
	return len(t.rows)
}

// Dim returns the embedding dimension.
func (t *EmbeddingTable) Dim() int {
	return t.dim
}

// Row returns the backing slice for one row. Callers that mutate it own
// the training lock.
func (t *EmbeddingTable) Row(i int) []float64 {
	return t.rows[i]
}

// AppendMeanRow appends one row initialized to the column-wise mean of all
// existing rows and returns its index. The mean is a neutral prior: a fresh
// row starts at the center of the learned embedding space instead of a
// random point that would dominate early gradient steps. An empty table
// appends a zero row.
func (t *EmbeddingTable) AppendMeanRow() int {
	row := make([]float64, t.dim)
	if n := len(t.rows); n > 0 {
		for _, r := range t.rows {
			for d := 0; d < t.dim; d++ {
				row[d] += r[d]
			}
		}
		for d := 0; d < t.dim; d++ {
			row[d] /= float64(n)
		}
	}
	t.rows = append(t.rows, row)
	return len(t.rows) - 1
}

// Snapshot returns a deep copy of the table's rows for persistence.
func (t *EmbeddingTable) Snapshot() [][]float64 {
	out := make([][]float64, len(t.rows))
	for i, r := range t.rows {
		out[i] = make([]float64, len(r))
		copy(out[i], r)
	}
	return out
}

// RestoreEmbeddingTable rebuilds a table from persisted rows.
// All rows must share one dimension.
func RestoreEmbeddingTable(rows [][]float64) (*EmbeddingTable, error) {
	t := &EmbeddingTable{rows: rows}
	if len(rows) == 0 {
		return nil, fmt.Errorf("embedding table restore: no rows")
	}
	t.dim = len(rows[0])
	for i, r := range rows {
		if len(r) != t.dim {
			return nil, fmt.Errorf("embedding table restore: row %d has dim %d, want %d", i, len(r), t.dim)
		}
	}
	return t, nil
}
