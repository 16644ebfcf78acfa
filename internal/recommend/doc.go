// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

// Package recommend implements the fairness-aware recommendation pipeline.
//
// # Architecture
//
// The pipeline composes five stages:
//
//   - Bias feature engineering: per-(user,item) popularity, interaction,
//     and demographic bias signals (subpackage bias)
//   - Joint bias model: nonlinear fusion of the six bias signals into a
//     scalar fairness penalty plus an attribution vector (subpackage model)
//   - Rating prediction: neural collaborative filtering with multiplicative
//     and deep embedding paths (subpackage model)
//   - Online adaptation: per-user embedding fine-tuning for cold-start
//     users without retraining the shared model (subpackage model)
//   - Ranking: fairness-adjusted scoring, optional session-preference
//     similarity blend, deterministic top-K selection (subpackage ranking)
//
// The Engine in this package owns the trained models, the identity encoders,
// and the precomputed bias-feature table, and exposes the serving operations
// (Recommend, AdaptUser, TrainInitial). It is an explicitly constructed
// service object; there is no package-level model state.
//
// # Design Principles
//
//   - Deterministic: same model state and inputs produce identical rankings,
//     including tie-break order (item index ascending)
//   - Isolated adaptation: fine-tuning a new user updates only that user's
//     embedding rows; all other parameters are frozen
//   - Degrade, don't fail: sparse demographics and cold items fall back to
//     neutral zero bias instead of erroring
//   - Auditable: all operations are logged with structured fields
//
// # Thread Safety
//
// The Engine is safe for concurrent use. Online adaptation is single-flight
// per engine instance (exclusive lock); scoring takes a shared lock so
// concurrent read-only recommendation requests proceed against a stable
// snapshot.
package recommend
