// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

package model

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/tomtom215/fairlens/internal/recommend"
)

// JointBiasConfig contains hyperparameters for the joint bias module.
type JointBiasConfig struct {
	// LatentDim is the width k of each per-dimension latent projection.
	// Default: 16.
	LatentDim int

	// HiddenDim is the width h of the interaction network's hidden layer.
	// Default: 32.
	HiddenDim int

	// Seed drives deterministic parameter initialization.
	// If 0, uses a default seed.
	Seed int64
}

// DefaultJointBiasConfig returns the default joint bias configuration.
func DefaultJointBiasConfig() JointBiasConfig {
	return JointBiasConfig{
		LatentDim: 16,
		HiddenDim: 32,
		Seed:      42,
	}
}

// numPairs is the number of unordered bias-dimension pairs (6 choose 2).
const numPairs = recommend.NumBiasDims * (recommend.NumBiasDims - 1) / 2

// JointBias maps a bias vector to a scalar fairness penalty in [0,1] and a
// softmax attribution vector over the bias dimensions.
//
// Each bias scalar is rectified and projected into a k-dimensional latent
// vector with its own learned projection (no weight sharing across
// dimensions). All 15 pairwise element-wise products of the 6 latent
// vectors are concatenated with the 6 first-order vectors (21 blocks of
// width k) and fed through a one-hidden-layer network ending in a sigmoid.
// The explicit second-order products exist because bias dimensions compound
// (popularity and regional bias reinforce each other); a linear combination
// cannot express that.
//
// The attribution head is a separate linear projection from the same
// feature block to 6 softmax-normalized outputs. It explains which
// dimension dominated a penalty and feeds only the explanation layer; it
// plays no part in penalty computation.
//
// At serving time the module is read-only. Online adaptation never updates
// it.
type JointBias struct {
	cfg JointBiasConfig

	// proj holds one k-wide projection per bias dimension.
	proj [recommend.NumBiasDims][]float64

	// w1 (hidden x featureDim, row-major) and b1 form the hidden layer.
	w1 []float64
	b1 []float64

	// w2 (hidden) and b2 form the sigmoid output unit.
	w2 []float64
	b2 []float64

	// attrW (6 x featureDim, row-major) and attrB form the attribution head.
	attrW []float64
	attrB []float64
}

// NewJointBias creates a joint bias module with deterministically seeded
// parameters.
func NewJointBias(cfg JointBiasConfig) *JointBias {
	if cfg.LatentDim <= 0 {
		cfg.LatentDim = 16
	}
	if cfg.HiddenDim <= 0 {
		cfg.HiddenDim = 32
	}
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}

	//nolint:gosec // G404: math/rand is acceptable for ML initialization (not security)
	rng := rand.New(rand.NewSource(cfg.Seed))

	j := &JointBias{cfg: cfg}
	k := cfg.LatentDim
	fd := j.featureDim()
	h := cfg.HiddenDim

	for d := 0; d < recommend.NumBiasDims; d++ {
		j.proj[d] = make([]float64, k)
		for i := range j.proj[d] {
			j.proj[d][i] = rng.NormFloat64()
		}
	}

	j.w1 = heInit(rng, h*fd, fd)
	j.b1 = make([]float64, h)
	j.w2 = heInit(rng, h, h)
	j.b2 = make([]float64, 1)
	j.attrW = heInit(rng, recommend.NumBiasDims*fd, fd)
	j.attrB = make([]float64, recommend.NumBiasDims)

	return j
}

// heInit returns n weights scaled for a rectified layer with the given fan-in.
func heInit(rng *rand.Rand, n, fanIn int) []float64 {
	scale := math.Sqrt(2.0 / float64(fanIn))
	w := make([]float64, n)
	for i := range w {
		w[i] = rng.NormFloat64() * scale
	}
	return w
}

// featureDim is the width of the concatenated first+second-order block.
func (j *JointBias) featureDim() int {
	return (recommend.NumBiasDims + numPairs) * j.cfg.LatentDim
}

// features computes the latent vectors and the concatenated feature block.
func (j *JointBias) features(x [recommend.NumBiasDims]float64) (emb [recommend.NumBiasDims][]float64, z []float64) {
	k := j.cfg.LatentDim
	for d := 0; d < recommend.NumBiasDims; d++ {
		a := relu(x[d])
		e := make([]float64, k)
		for i := 0; i < k; i++ {
			e[i] = a * j.proj[d][i]
		}
		emb[d] = e
	}

	z = make([]float64, 0, j.featureDim())
	for d := 0; d < recommend.NumBiasDims; d++ {
		z = append(z, emb[d]...)
	}
	for a := 0; a < recommend.NumBiasDims; a++ {
		for b := a + 1; b < recommend.NumBiasDims; b++ {
			for i := 0; i < k; i++ {
				z = append(z, emb[a][i]*emb[b][i])
			}
		}
	}
	return emb, z
}

// forward runs the penalty head, returning intermediates for backprop.
func (j *JointBias) forward(x [recommend.NumBiasDims]float64) (emb [recommend.NumBiasDims][]float64, z, pre1, hidden []float64, s float64) {
	emb, z = j.features(x)
	h := j.cfg.HiddenDim
	fd := j.featureDim()

	pre1 = make([]float64, h)
	hidden = make([]float64, h)
	for r := 0; r < h; r++ {
		sum := j.b1[r]
		row := j.w1[r*fd : (r+1)*fd]
		for c, v := range z {
			sum += row[c] * v
		}
		pre1[r] = sum
		hidden[r] = relu(sum)
	}

	u := j.b2[0]
	for r := 0; r < h; r++ {
		u += j.w2[r] * hidden[r]
	}
	return emb, z, pre1, hidden, sigmoid(u)
}

// Penalty returns the fairness penalty in [0,1] for a bias vector.
func (j *JointBias) Penalty(b recommend.BiasVector) float64 {
	_, _, _, _, s := j.forward(b.Values())
	return s
}

// Attribution returns the softmax-normalized attribution vector for a bias
// vector. The result always sums to 1, including for the zero vector.
func (j *JointBias) Attribution(b recommend.BiasVector) recommend.Attribution {
	_, z := j.features(b.Values())
	fd := j.featureDim()

	var logits [recommend.NumBiasDims]float64
	for d := 0; d < recommend.NumBiasDims; d++ {
		sum := j.attrB[d]
		row := j.attrW[d*fd : (d+1)*fd]
		for c, v := range z {
			sum += row[c] * v
		}
		logits[d] = sum
	}
	return softmax(logits)
}

// JointBiasSample is one training example for the penalty head.
type JointBiasSample struct {
	// Bias is the feature vector for the (user,item) pair.
	Bias recommend.BiasVector

	// Residual is the predictor's raw score minus the observed rating.
	// The penalty head learns to close this gap: the training objective is
	// mean squared (Residual - lambda*penalty)^2, matching the serving-time
	// adjustment raw - lambda*penalty.
	Residual float64
}

// Train fits the penalty head on the given samples with full-batch Adam.
// The attribution head has no supervised target and is left at its seeded
// initialization; it is diagnostic, not causal.
func (j *JointBias) Train(ctx context.Context, samples []JointBiasSample, epochs int, lr, lambda float64) error {
	if len(samples) == 0 || epochs <= 0 {
		return nil
	}
	if lr <= 0 {
		lr = 0.001
	}
	if lambda <= 0 {
		lambda = 1.0
	}

	params := make([][]float64, 0, recommend.NumBiasDims+4)
	for d := 0; d < recommend.NumBiasDims; d++ {
		params = append(params, j.proj[d])
	}
	params = append(params, j.w1, j.b1, j.w2, j.b2)
	opt := newAdam(lr, params...)

	k := j.cfg.LatentDim
	h := j.cfg.HiddenDim
	fd := j.featureDim()
	n := float64(len(samples))

	for epoch := 0; epoch < epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		grads := make([][]float64, len(params))
		for i, p := range params {
			grads[i] = make([]float64, len(p))
		}
		gProj := grads[:recommend.NumBiasDims]
		gW1 := grads[recommend.NumBiasDims]
		gB1 := grads[recommend.NumBiasDims+1]
		gW2 := grads[recommend.NumBiasDims+2]
		gB2 := grads[recommend.NumBiasDims+3]

		for _, sample := range samples {
			x := sample.Bias.Values()
			emb, z, pre1, hidden, s := j.forward(x)

			// L = mean (residual - lambda*s)^2
			e := sample.Residual - lambda*s
			gs := 2 * e * (-lambda) / n
			gu := gs * s * (1 - s)

			gB2[0] += gu
			gHidden := make([]float64, h)
			for r := 0; r < h; r++ {
				gW2[r] += gu * hidden[r]
				gHidden[r] = gu * j.w2[r]
			}

			gz := make([]float64, fd)
			for r := 0; r < h; r++ {
				if pre1[r] <= 0 {
					continue
				}
				g := gHidden[r]
				gB1[r] += g
				row := j.w1[r*fd : (r+1)*fd]
				gRow := gW1[r*fd : (r+1)*fd]
				for c, v := range z {
					gRow[c] += g * v
					gz[c] += g * row[c]
				}
			}

			// Split gz into first-order and pairwise blocks.
			gEmb := make([][]float64, recommend.NumBiasDims)
			for d := 0; d < recommend.NumBiasDims; d++ {
				gEmb[d] = make([]float64, k)
				copy(gEmb[d], gz[d*k:(d+1)*k])
			}
			off := recommend.NumBiasDims * k
			for a := 0; a < recommend.NumBiasDims; a++ {
				for b := a + 1; b < recommend.NumBiasDims; b++ {
					for i := 0; i < k; i++ {
						g := gz[off+i]
						gEmb[a][i] += g * emb[b][i]
						gEmb[b][i] += g * emb[a][i]
					}
					off += k
				}
			}

			// emb[d] = relu(x[d]) * proj[d]
			for d := 0; d < recommend.NumBiasDims; d++ {
				a := relu(x[d])
				if a == 0 {
					continue
				}
				for i := 0; i < k; i++ {
					gProj[d][i] += a * gEmb[d][i]
				}
			}
		}

		opt.step(grads)
	}
	return nil
}

// JointBiasSnapshot is the serializable parameter state of a JointBias.
type JointBiasSnapshot struct {
	LatentDim int
	HiddenDim int
	Proj      [][]float64
	W1        []float64
	B1        []float64
	W2        []float64
	B2        []float64
	AttrW     []float64
	AttrB     []float64
}

// Snapshot returns the module's parameters for persistence.
func (j *JointBias) Snapshot() JointBiasSnapshot {
	s := JointBiasSnapshot{
		LatentDim: j.cfg.LatentDim,
		HiddenDim: j.cfg.HiddenDim,
		W1:        append([]float64(nil), j.w1...),
		B1:        append([]float64(nil), j.b1...),
		W2:        append([]float64(nil), j.w2...),
		B2:        append([]float64(nil), j.b2...),
		AttrW:     append([]float64(nil), j.attrW...),
		AttrB:     append([]float64(nil), j.attrB...),
	}
	s.Proj = make([][]float64, recommend.NumBiasDims)
	for d := 0; d < recommend.NumBiasDims; d++ {
		s.Proj[d] = append([]float64(nil), j.proj[d]...)
	}
	return s
}

// RestoreJointBias rebuilds a module from persisted parameters.
func RestoreJointBias(s JointBiasSnapshot) (*JointBias, error) {
	j := &JointBias{
		cfg:   JointBiasConfig{LatentDim: s.LatentDim, HiddenDim: s.HiddenDim},
		w1:    s.W1,
		b1:    s.B1,
		w2:    s.W2,
		b2:    s.B2,
		attrW: s.AttrW,
		attrB: s.AttrB,
	}
	if s.LatentDim <= 0 || s.HiddenDim <= 0 {
		return nil, errBadSnapshot("joint bias", "non-positive dimensions")
	}
	if len(s.Proj) != recommend.NumBiasDims {
		return nil, errBadSnapshot("joint bias", "projection count mismatch")
	}
	for d := 0; d < recommend.NumBiasDims; d++ {
		if len(s.Proj[d]) != s.LatentDim {
			return nil, errBadSnapshot("joint bias", "projection width mismatch")
		}
		j.proj[d] = s.Proj[d]
	}
	fd := j.featureDim()
	if len(s.W1) != s.HiddenDim*fd || len(s.B1) != s.HiddenDim ||
		len(s.W2) != s.HiddenDim || len(s.B2) != 1 ||
		len(s.AttrW) != recommend.NumBiasDims*fd || len(s.AttrB) != recommend.NumBiasDims {
		return nil, errBadSnapshot("joint bias", "parameter shape mismatch")
	}
	return j, nil
}

// errBadSnapshot wraps recommend.ErrModelState with the failing artifact
// and reason.
func errBadSnapshot(what, reason string) error {
	return fmt.Errorf("%w: %s snapshot: %s", recommend.ErrModelState, what, reason)
}

// relu is the rectifying nonlinearity.
func relu(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// sigmoid maps a real number into (0,1).
func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

// softmax returns the normalized exponential of the logits.
// Shifted by the max logit for numerical stability.
func softmax(logits [recommend.NumBiasDims]float64) recommend.Attribution {
	maxLogit := logits[0]
	for _, v := range logits[1:] {
		if v > maxLogit {
			maxLogit = v
		}
	}

	var out recommend.Attribution
	var sum float64
	for d, v := range logits {
		out[d] = math.Exp(v - maxLogit)
		sum += out[d]
	}
	for d := range out {
		out[d] /= sum
	}
	return out
}
