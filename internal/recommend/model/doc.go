// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

// Package model implements the two learned components of the pipeline:
//
//   - JointBias: a nonlinear module mapping a six-dimensional bias vector
//     to a scalar fairness penalty in [0,1] plus a softmax attribution
//     vector over the bias dimensions
//   - NeuralCF: a neural collaborative-filtering rating predictor with a
//     multiplicative (GMF) path and a deep (MLP) path over independent
//     user/item embedding pairs
//
// Both are plain Go: flat float64 slices, explicit forward passes, and
// hand-derived gradients optimized with Adam. Model sizes here are small
// enough that full-batch training is cheap and keeps the math auditable.
//
// # Online Adaptation
//
// NeuralCF supports cold-start users through AdaptUser: the identity
// encoders and embedding tables grow append-only (new rows initialized to
// the mean of existing rows), and fine-tuning updates only the new user's
// rows. Parameters are partitioned structurally into a trainable set (the
// one user's rows) and a frozen set (everything else); the optimizer only
// ever sees the trainable set.
//
// # Determinism
//
// All random initialization is driven by a caller-supplied seed. Training
// is full-batch with a fixed epoch count, so identical inputs produce
// identical parameters.
package model
