// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

package model

import (
	"context"
	"errors"
	"testing"

	"github.com/tomtom215/fairlens/internal/recommend"
)

func smallCF(t *testing.T) *NeuralCF {
	t.Helper()
	cfg := DefaultNeuralCFConfig()
	cfg.EmbeddingDim = 8
	cfg.Hidden1 = 16
	cfg.Hidden2 = 8
	return NewNeuralCF(cfg, 3, 4)
}

func trainingCorpus() []Sample {
	return []Sample{
		{User: 0, Item: 0, Rating: 5},
		{User: 0, Item: 1, Rating: 3},
		{User: 1, Item: 0, Rating: 4},
		{User: 2, Item: 2, Rating: 5},
		{User: 2, Item: 3, Rating: 2},
	}
}

func mse(t *testing.T, m *NeuralCF, samples []Sample) float64 {
	t.Helper()
	var sum float64
	for _, s := range samples {
		pred, err := m.Predict(s.User, s.Item)
		if err != nil {
			t.Fatalf("Predict(%d,%d): %v", s.User, s.Item, err)
		}
		e := pred - s.Rating
		sum += e * e
	}
	return sum / float64(len(samples))
}

func TestNeuralCFDeterministicInit(t *testing.T) {
	t.Parallel()

	a := smallCF(t)
	b := smallCF(t)

	pa, _ := a.Predict(1, 2)
	pb, _ := b.Predict(1, 2)
	if pa != pb {
		t.Errorf("same seed predictions differ: %v vs %v", pa, pb)
	}
}

func TestNeuralCFPredictBounds(t *testing.T) {
	t.Parallel()

	m := smallCF(t)

	if _, err := m.Predict(-1, 0); !errors.Is(err, recommend.ErrUnknownUser) {
		t.Errorf("Predict(-1,0) err = %v, want ErrUnknownUser", err)
	}
	if _, err := m.Predict(3, 0); !errors.Is(err, recommend.ErrUnknownUser) {
		t.Errorf("Predict(3,0) err = %v, want ErrUnknownUser", err)
	}
	if _, err := m.Predict(0, 4); !errors.Is(err, recommend.ErrUnknownItem) {
		t.Errorf("Predict(0,4) err = %v, want ErrUnknownItem", err)
	}
	if _, err := m.PredictBatch(0, []int{0, 4}); !errors.Is(err, recommend.ErrUnknownItem) {
		t.Errorf("PredictBatch with bad item err = %v, want ErrUnknownItem", err)
	}
}

func TestNeuralCFTrainReducesError(t *testing.T) {
	t.Parallel()

	cfg := DefaultNeuralCFConfig()
	cfg.EmbeddingDim = 8
	cfg.Hidden1 = 16
	cfg.Hidden2 = 8
	cfg.Epochs = 200
	cfg.LearningRate = 0.01
	m := NewNeuralCF(cfg, 3, 4)

	samples := trainingCorpus()
	before := mse(t, m, samples)
	if err := m.Train(context.Background(), samples); err != nil {
		t.Fatalf("Train: %v", err)
	}
	after := mse(t, m, samples)

	if after >= before {
		t.Errorf("MSE did not decrease: before %v, after %v", before, after)
	}
}

func TestNeuralCFTrainValidation(t *testing.T) {
	t.Parallel()

	m := smallCF(t)

	if err := m.Train(context.Background(), nil); !errors.Is(err, recommend.ErrEmptyBatch) {
		t.Errorf("empty batch err = %v, want ErrEmptyBatch", err)
	}
	bad := []Sample{{User: 9, Item: 0, Rating: 3}}
	if err := m.Train(context.Background(), bad); !errors.Is(err, recommend.ErrUnknownUser) {
		t.Errorf("out-of-range user err = %v, want ErrUnknownUser", err)
	}
}

func TestNeuralCFTrainHonorsContext(t *testing.T) {
	t.Parallel()

	m := smallCF(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := m.Train(ctx, trainingCorpus()); !errors.Is(err, context.Canceled) {
		t.Errorf("Train with canceled context = %v, want context.Canceled", err)
	}
}

func TestNeuralCFAppendGrowsBothTables(t *testing.T) {
	t.Parallel()

	m := smallCF(t)

	idx := m.AppendUser()
	if idx != 3 || m.Users() != 4 {
		t.Fatalf("AppendUser = %d (Users %d), want index 3 of 4", idx, m.Users())
	}
	if _, err := m.Predict(idx, 0); err != nil {
		t.Errorf("Predict for appended user: %v", err)
	}

	itemIdx := m.AppendItem()
	if itemIdx != 4 || m.Items() != 5 {
		t.Fatalf("AppendItem = %d (Items %d), want index 4 of 5", itemIdx, m.Items())
	}
	if _, err := m.Predict(0, itemIdx); err != nil {
		t.Errorf("Predict for appended item: %v", err)
	}
}

func TestNeuralCFSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	m := smallCF(t)
	if err := m.Train(context.Background(), trainingCorpus()); err != nil {
		t.Fatalf("Train: %v", err)
	}

	restored, err := RestoreNeuralCF(m.Snapshot())
	if err != nil {
		t.Fatalf("RestoreNeuralCF: %v", err)
	}
	if restored.Users() != m.Users() || restored.Items() != m.Items() {
		t.Fatalf("restored cardinalities %d/%d, want %d/%d",
			restored.Users(), restored.Items(), m.Users(), m.Items())
	}
	for u := 0; u < m.Users(); u++ {
		for i := 0; i < m.Items(); i++ {
			want, _ := m.Predict(u, i)
			got, _ := restored.Predict(u, i)
			if got != want {
				t.Errorf("restored Predict(%d,%d) = %v, want %v", u, i, got, want)
			}
		}
	}
}

func TestRestoreNeuralCFRejectsBadShapes(t *testing.T) {
	t.Parallel()

	good := smallCF(t).Snapshot()

	mutations := map[string]func(s NeuralCFSnapshot) NeuralCFSnapshot{
		"user table cardinality mismatch": func(s NeuralCFSnapshot) NeuralCFSnapshot {
			s.UserMLP = s.UserMLP[:len(s.UserMLP)-1]
			return s
		},
		"item table cardinality mismatch": func(s NeuralCFSnapshot) NeuralCFSnapshot {
			s.ItemGMF = s.ItemGMF[:len(s.ItemGMF)-1]
			return s
		},
		"truncated output weights": func(s NeuralCFSnapshot) NeuralCFSnapshot {
			s.WOut = s.WOut[:len(s.WOut)-1]
			return s
		},
		"zero embedding dim": func(s NeuralCFSnapshot) NeuralCFSnapshot {
			s.EmbeddingDim = 0
			return s
		},
	}
	for name, mutate := range mutations {
		if _, err := RestoreNeuralCF(mutate(good)); !errors.Is(err, recommend.ErrModelState) {
			t.Errorf("%s: err = %v, want ErrModelState", name, err)
		}
	}
}
