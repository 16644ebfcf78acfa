// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

package model

import (
	"context"
	"math/rand"

	"github.com/tomtom215/fairlens/internal/recommend"
)

// NeuralCFConfig contains hyperparameters for the rating predictor.
type NeuralCFConfig struct {
	// EmbeddingDim is the width of each user/item embedding. Default: 32.
	EmbeddingDim int

	// Hidden1 is the width of the first MLP hidden layer. Default: 64.
	Hidden1 int

	// Hidden2 is the width of the second MLP hidden layer. Default: 32.
	Hidden2 int

	// LearningRate is the Adam step size for batch training. Default: 0.001.
	LearningRate float64

	// Epochs is the number of full-batch training passes. Default: 5.
	Epochs int

	// Seed drives deterministic parameter initialization. Default: 42.
	Seed int64
}

// DefaultNeuralCFConfig returns the default predictor configuration.
func DefaultNeuralCFConfig() NeuralCFConfig {
	return NeuralCFConfig{
		EmbeddingDim: 32,
		Hidden1:      64,
		Hidden2:      32,
		LearningRate: 0.001,
		Epochs:       5,
		Seed:         42,
	}
}

// NeuralCF is a neural collaborative-filtering rating predictor with two
// paths over independent embedding pairs:
//
//   - GMF: element-wise product of a user/item embedding pair, capturing
//     multiplicative affinity
//   - MLP: a two-hidden-layer network over the concatenation of a second
//     user/item embedding pair, capturing nonlinear interaction
//
// The two path outputs are concatenated and projected to a scalar score.
// Scores are unbounded; calibration to the rating scale comes from the MSE
// objective, not from clamping.
//
// NeuralCF is not safe for concurrent use. The engine serializes training
// and adaptation and takes a shared lock for scoring.
type NeuralCF struct {
	cfg NeuralCFConfig

	userGMF *EmbeddingTable
	itemGMF *EmbeddingTable
	userMLP *EmbeddingTable
	itemMLP *EmbeddingTable

	// w1 (hidden1 x 2*dim) and b1 form the first MLP layer,
	// w2 (hidden2 x hidden1) and b2 the second.
	w1 []float64
	b1 []float64
	w2 []float64
	b2 []float64

	// wOut (dim + hidden2) and bOut project the concatenated paths.
	wOut []float64
	bOut []float64
}

// NewNeuralCF creates a predictor for the given user/item cardinalities
// with deterministically seeded parameters.
func NewNeuralCF(cfg NeuralCFConfig, users, items int) *NeuralCF {
	if cfg.EmbeddingDim <= 0 {
		cfg.EmbeddingDim = 32
	}
	if cfg.Hidden1 <= 0 {
		cfg.Hidden1 = 64
	}
	if cfg.Hidden2 <= 0 {
		cfg.Hidden2 = 32
	}
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = 0.001
	}
	if cfg.Epochs <= 0 {
		cfg.Epochs = 5
	}
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}

	//nolint:gosec // G404: math/rand is acceptable for ML initialization (not security)
	rng := rand.New(rand.NewSource(cfg.Seed))
	dim := cfg.EmbeddingDim

	return &NeuralCF{
		cfg:     cfg,
		userGMF: NewEmbeddingTable(users, dim, rng),
		itemGMF: NewEmbeddingTable(items, dim, rng),
		userMLP: NewEmbeddingTable(users, dim, rng),
		itemMLP: NewEmbeddingTable(items, dim, rng),
		w1:      heInit(rng, cfg.Hidden1*2*dim, 2*dim),
		b1:      make([]float64, cfg.Hidden1),
		w2:      heInit(rng, cfg.Hidden2*cfg.Hidden1, cfg.Hidden1),
		b2:      make([]float64, cfg.Hidden2),
		wOut:    heInit(rng, dim+cfg.Hidden2, dim+cfg.Hidden2),
		bOut:    make([]float64, 1),
	}
}

// Users returns the number of user embedding rows.
func (m *NeuralCF) Users() int { return m.userGMF.Len() }

// Items returns the number of item embedding rows.
func (m *NeuralCF) Items() int { return m.itemGMF.Len() }

// cfForward holds per-sample forward intermediates for backprop.
type cfForward struct {
	gmf  []float64
	in   []float64
	pre1 []float64
	h1   []float64
	pre2 []float64
	h2   []float64
	pred float64
}

func (m *NeuralCF) forward(user, item int) cfForward {
	dim := m.cfg.EmbeddingDim
	h1n := m.cfg.Hidden1
	h2n := m.cfg.Hidden2

	uG := m.userGMF.Row(user)
	iG := m.itemGMF.Row(item)
	uM := m.userMLP.Row(user)
	iM := m.itemMLP.Row(item)

	f := cfForward{
		gmf:  make([]float64, dim),
		in:   make([]float64, 2*dim),
		pre1: make([]float64, h1n),
		h1:   make([]float64, h1n),
		pre2: make([]float64, h2n),
		h2:   make([]float64, h2n),
	}
	for d := 0; d < dim; d++ {
		f.gmf[d] = uG[d] * iG[d]
		f.in[d] = uM[d]
		f.in[dim+d] = iM[d]
	}

	for r := 0; r < h1n; r++ {
		sum := m.b1[r]
		row := m.w1[r*2*dim : (r+1)*2*dim]
		for c, v := range f.in {
			sum += row[c] * v
		}
		f.pre1[r] = sum
		f.h1[r] = relu(sum)
	}
	for r := 0; r < h2n; r++ {
		sum := m.b2[r]
		row := m.w2[r*h1n : (r+1)*h1n]
		for c, v := range f.h1 {
			sum += row[c] * v
		}
		f.pre2[r] = sum
		f.h2[r] = relu(sum)
	}

	out := m.bOut[0]
	for d := 0; d < dim; d++ {
		out += m.wOut[d] * f.gmf[d]
	}
	for r := 0; r < h2n; r++ {
		out += m.wOut[dim+r] * f.h2[r]
	}
	f.pred = out
	return f
}

// Predict returns the raw score for an encoded (user, item) pair.
// Indices must be within the current cardinalities.
func (m *NeuralCF) Predict(user, item int) (float64, error) {
	if user < 0 || user >= m.Users() {
		return 0, recommend.ErrUnknownUser
	}
	if item < 0 || item >= m.Items() {
		return 0, recommend.ErrUnknownItem
	}
	return m.forward(user, item).pred, nil
}

// PredictBatch scores one user against many items.
func (m *NeuralCF) PredictBatch(user int, items []int) ([]float64, error) {
	if user < 0 || user >= m.Users() {
		return nil, recommend.ErrUnknownUser
	}
	out := make([]float64, len(items))
	for i, item := range items {
		if item < 0 || item >= m.Items() {
			return nil, recommend.ErrUnknownItem
		}
		out[i] = m.forward(user, item).pred
	}
	return out, nil
}

// Sample is one training example: an encoded (user, item) pair and its
// observed rating.
type Sample struct {
	User   int
	Item   int
	Rating float64
}

// Train fits all parameters on the given samples with full-batch Adam
// minimizing mean squared rating error. Indices must be within the current
// cardinalities.
func (m *NeuralCF) Train(ctx context.Context, samples []Sample) error {
	if len(samples) == 0 {
		return recommend.ErrEmptyBatch
	}
	for _, s := range samples {
		if s.User < 0 || s.User >= m.Users() {
			return recommend.ErrUnknownUser
		}
		if s.Item < 0 || s.Item >= m.Items() {
			return recommend.ErrUnknownItem
		}
	}

	// Every embedding row plus the dense layers forms the trainable set.
	params := make([][]float64, 0, 2*m.Users()+2*m.Items()+6)
	for u := 0; u < m.Users(); u++ {
		params = append(params, m.userGMF.Row(u), m.userMLP.Row(u))
	}
	userParams := len(params)
	for i := 0; i < m.Items(); i++ {
		params = append(params, m.itemGMF.Row(i), m.itemMLP.Row(i))
	}
	itemParams := len(params)
	params = append(params, m.w1, m.b1, m.w2, m.b2, m.wOut, m.bOut)
	opt := newAdam(m.cfg.LearningRate, params...)

	n := float64(len(samples))
	for epoch := 0; epoch < m.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		grads := make([][]float64, len(params))
		for i, p := range params {
			grads[i] = make([]float64, len(p))
		}
		gW1 := grads[itemParams]
		gB1 := grads[itemParams+1]
		gW2 := grads[itemParams+2]
		gB2 := grads[itemParams+3]
		gWOut := grads[itemParams+4]
		gBOut := grads[itemParams+5]

		for _, s := range samples {
			f := m.forward(s.User, s.Item)
			g := 2 * (f.pred - s.Rating) / n

			gUG := grads[2*s.User]
			gUM := grads[2*s.User+1]
			gIG := grads[userParams+2*s.Item]
			gIM := grads[userParams+2*s.Item+1]

			m.backprop(f, g, s.User, s.Item, gUG, gUM, gIG, gIM, gW1, gB1, gW2, gB2, gWOut, gBOut)
		}

		opt.step(grads)
	}
	return nil
}

// backprop accumulates the gradients of one sample's squared-error term
// into the supplied gradient tensors. Pass nil for any tensor that is
// frozen; its contribution is skipped.
func (m *NeuralCF) backprop(f cfForward, g float64, user, item int, gUG, gUM, gIG, gIM, gW1, gB1, gW2, gB2, gWOut, gBOut []float64) {
	dim := m.cfg.EmbeddingDim
	h1n := m.cfg.Hidden1
	h2n := m.cfg.Hidden2

	uG := m.userGMF.Row(user)
	iG := m.itemGMF.Row(item)

	if gBOut != nil {
		gBOut[0] += g
	}
	gH2 := make([]float64, h2n)
	for d := 0; d < dim; d++ {
		if gWOut != nil {
			gWOut[d] += g * f.gmf[d]
		}
		gGmf := g * m.wOut[d]
		if gUG != nil {
			gUG[d] += gGmf * iG[d]
		}
		if gIG != nil {
			gIG[d] += gGmf * uG[d]
		}
	}
	for r := 0; r < h2n; r++ {
		if gWOut != nil {
			gWOut[dim+r] += g * f.h2[r]
		}
		gH2[r] = g * m.wOut[dim+r]
	}

	gH1 := make([]float64, h1n)
	for r := 0; r < h2n; r++ {
		if f.pre2[r] <= 0 {
			continue
		}
		gp := gH2[r]
		if gB2 != nil {
			gB2[r] += gp
		}
		row := m.w2[r*h1n : (r+1)*h1n]
		for c := 0; c < h1n; c++ {
			if gW2 != nil {
				gW2[r*h1n+c] += gp * f.h1[c]
			}
			gH1[c] += gp * row[c]
		}
	}

	gIn := make([]float64, 2*dim)
	for r := 0; r < h1n; r++ {
		if f.pre1[r] <= 0 {
			continue
		}
		gp := gH1[r]
		if gB1 != nil {
			gB1[r] += gp
		}
		row := m.w1[r*2*dim : (r+1)*2*dim]
		for c := 0; c < 2*dim; c++ {
			if gW1 != nil {
				gW1[r*2*dim+c] += gp * f.in[c]
			}
			gIn[c] += gp * row[c]
		}
	}
	for d := 0; d < dim; d++ {
		if gUM != nil {
			gUM[d] += gIn[d]
		}
		if gIM != nil {
			gIM[d] += gIn[dim+d]
		}
	}
}

// ItemEmbedding returns a copy of an item's GMF embedding row, used as the
// item's content vector for session-similarity scoring.
func (m *NeuralCF) ItemEmbedding(item int) ([]float64, error) {
	if item < 0 || item >= m.Items() {
		return nil, recommend.ErrUnknownItem
	}
	row := m.itemGMF.Row(item)
	out := make([]float64, len(row))
	copy(out, row)
	return out, nil
}

// AppendUser grows both user embedding tables by one mean-initialized row
// and returns the new user index.
func (m *NeuralCF) AppendUser() int {
	idx := m.userGMF.AppendMeanRow()
	m.userMLP.AppendMeanRow()
	return idx
}

// AppendItem grows both item embedding tables by one mean-initialized row
// and returns the new item index.
func (m *NeuralCF) AppendItem() int {
	idx := m.itemGMF.AppendMeanRow()
	m.itemMLP.AppendMeanRow()
	return idx
}

// NeuralCFSnapshot is the serializable parameter state of a NeuralCF.
type NeuralCFSnapshot struct {
	EmbeddingDim int
	Hidden1      int
	Hidden2      int
	UserGMF      [][]float64
	ItemGMF      [][]float64
	UserMLP      [][]float64
	ItemMLP      [][]float64
	W1           []float64
	B1           []float64
	W2           []float64
	B2           []float64
	WOut         []float64
	BOut         []float64
}

// Snapshot returns the predictor's parameters for persistence.
func (m *NeuralCF) Snapshot() NeuralCFSnapshot {
	return NeuralCFSnapshot{
		EmbeddingDim: m.cfg.EmbeddingDim,
		Hidden1:      m.cfg.Hidden1,
		Hidden2:      m.cfg.Hidden2,
		UserGMF:      m.userGMF.Snapshot(),
		ItemGMF:      m.itemGMF.Snapshot(),
		UserMLP:      m.userMLP.Snapshot(),
		ItemMLP:      m.itemMLP.Snapshot(),
		W1:           append([]float64(nil), m.w1...),
		B1:           append([]float64(nil), m.b1...),
		W2:           append([]float64(nil), m.w2...),
		B2:           append([]float64(nil), m.b2...),
		WOut:         append([]float64(nil), m.wOut...),
		BOut:         append([]float64(nil), m.bOut...),
	}
}

// RestoreNeuralCF rebuilds a predictor from persisted parameters.
// The snapshot's cardinalities must agree across the paired tables.
func RestoreNeuralCF(s NeuralCFSnapshot) (*NeuralCF, error) {
	if s.EmbeddingDim <= 0 || s.Hidden1 <= 0 || s.Hidden2 <= 0 {
		return nil, errBadSnapshot("predictor", "non-positive dimensions")
	}
	if len(s.UserGMF) != len(s.UserMLP) {
		return nil, errBadSnapshot("predictor", "user table cardinality mismatch")
	}
	if len(s.ItemGMF) != len(s.ItemMLP) {
		return nil, errBadSnapshot("predictor", "item table cardinality mismatch")
	}

	dim := s.EmbeddingDim
	tables := make([]*EmbeddingTable, 4)
	for i, rows := range [][][]float64{s.UserGMF, s.ItemGMF, s.UserMLP, s.ItemMLP} {
		t, err := RestoreEmbeddingTable(rows)
		if err != nil {
			return nil, errBadSnapshot("predictor", err.Error())
		}
		if t.Dim() != dim {
			return nil, errBadSnapshot("predictor", "embedding dimension mismatch")
		}
		tables[i] = t
	}

	if len(s.W1) != s.Hidden1*2*dim || len(s.B1) != s.Hidden1 ||
		len(s.W2) != s.Hidden2*s.Hidden1 || len(s.B2) != s.Hidden2 ||
		len(s.WOut) != dim+s.Hidden2 || len(s.BOut) != 1 {
		return nil, errBadSnapshot("predictor", "dense layer shape mismatch")
	}

	return &NeuralCF{
		cfg: NeuralCFConfig{
			EmbeddingDim: dim,
			Hidden1:      s.Hidden1,
			Hidden2:      s.Hidden2,
			LearningRate: 0.001,
			Epochs:       5,
		},
		userGMF: tables[0],
		itemGMF: tables[1],
		userMLP: tables[2],
		itemMLP: tables[3],
		w1:      s.W1,
		b1:      s.B1,
		w2:      s.W2,
		b2:      s.B2,
		wOut:    s.WOut,
		bOut:    s.BOut,
	}, nil
}
