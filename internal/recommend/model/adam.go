// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

package model

import "math"

// adam is a first-order adaptive gradient optimizer (Kingma & Ba, 2015)
// over a fixed partition of parameter tensors. The partition is decided at
// construction: tensors registered here form the trainable set and nothing
// else ever receives an update. This replaces per-parameter freeze flags
// with a structural grouping.
type adam struct {
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64

	params [][]float64
	m      [][]float64
	v      [][]float64
	t      int
}

// newAdam creates an optimizer over the given parameter tensors with the
// standard moment decay rates.
func newAdam(lr float64, params ...[]float64) *adam {
	a := &adam{
		lr:     lr,
		beta1:  0.9,
		beta2:  0.999,
		eps:    1e-8,
		params: params,
		m:      make([][]float64, len(params)),
		v:      make([][]float64, len(params)),
	}
	for i, p := range params {
		a.m[i] = make([]float64, len(p))
		a.v[i] = make([]float64, len(p))
	}
	return a
}

// step applies one Adam update. grads must be parallel to the registered
// parameter tensors (same count, same lengths).
func (a *adam) step(grads [][]float64) {
	a.t++
	bc1 := 1 - math.Pow(a.beta1, float64(a.t))
	bc2 := 1 - math.Pow(a.beta2, float64(a.t))

	for i, p := range a.params {
		g := grads[i]
		m := a.m[i]
		v := a.v[i]
		for j := range p {
			m[j] = a.beta1*m[j] + (1-a.beta1)*g[j]
			v[j] = a.beta2*v[j] + (1-a.beta2)*g[j]*g[j]
			mHat := m[j] / bc1
			vHat := v[j] / bc2
			p[j] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
		}
	}
}
