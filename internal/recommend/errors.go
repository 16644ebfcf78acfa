// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

package recommend

import "errors"

// Error taxonomy for the recommendation pipeline.
//
// Data-level gaps (missing demographics, cold items, empty corpora) are not
// errors; they degrade to neutral defaults inside the pipeline. The errors
// below are the conditions that must surface to callers.
var (
	// ErrUnknownUser is returned when scoring is requested for a user
	// identity the encoder has never seen and no adaptation ratings were
	// provided. Scoring against an uninitialized embedding row would
	// produce silently wrong results.
	ErrUnknownUser = errors.New("unknown user identity")

	// ErrUnknownItem is returned when an item identity cannot be resolved
	// at a point where a valid embedding row is required.
	ErrUnknownItem = errors.New("unknown item identity")

	// ErrNotTrained is returned when serving is attempted before the
	// initial batch training (or a model load) has completed.
	ErrNotTrained = errors.New("model not trained")

	// ErrModelState is returned when loaded state is inconsistent, e.g.
	// an encoder's cardinality does not match its embedding table's row
	// count. The engine refuses to serve rather than score incorrectly.
	ErrModelState = errors.New("inconsistent model state")

	// ErrEmptyBatch is returned when an adaptation is explicitly requested
	// with no ratings. Creating a user row with no signal would leave a
	// degenerate embedding.
	ErrEmptyBatch = errors.New("empty ratings batch")
)
