// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/fairlens/internal/recommend"
	"github.com/tomtom215/fairlens/internal/recommend/storage"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Predictor.EmbeddingDim = 8
	cfg.Predictor.Hidden1 = 16
	cfg.Predictor.Hidden2 = 8
	cfg.Predictor.Epochs = 20
	cfg.JointBias.LatentDim = 4
	cfg.JointBias.HiddenDim = 8
	cfg.JointBiasEpochs = 10
	cfg.Adapt.Epochs = 10
	return cfg
}

func ts(offset int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(offset) * time.Hour)
}

func testCorpus() ([]recommend.Interaction, []recommend.UserProfile, []recommend.ItemProfile) {
	interactions := []recommend.Interaction{
		{UserID: "u1", ItemID: "i1", Rating: 5, Timestamp: ts(0)},
		{UserID: "u1", ItemID: "i2", Rating: 3, Timestamp: ts(1)},
		{UserID: "u2", ItemID: "i1", Rating: 4, Timestamp: ts(2)},
		{UserID: "u2", ItemID: "i3", Rating: 2, Timestamp: ts(3)},
		{UserID: "u3", ItemID: "i3", Rating: 5, Timestamp: ts(4)},
		{UserID: "u3", ItemID: "i4", Rating: 1, Timestamp: ts(5)},
	}
	profiles := []recommend.UserProfile{
		{UserID: "u1", Gender: "M", AgeBracket: "25"},
		{UserID: "u2", Gender: "F", AgeBracket: "35"},
		{UserID: "u3", Gender: "M", AgeBracket: "25"},
	}
	items := []recommend.ItemProfile{
		{ItemID: "i1", Title: "First", Genres: []string{"Drama"}},
		{ItemID: "i2", Title: "Second", Genres: []string{"Comedy"}},
		{ItemID: "i3", Title: "Third", Genres: []string{"Drama", "Crime"}},
		{ItemID: "i4", Title: "Fourth", Genres: []string{"Horror"}},
	}
	return interactions, profiles, items
}

func trainedEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	opts.Logger = zerolog.Nop()
	e := New(testConfig(), opts)
	interactions, profiles, items := testCorpus()
	if err := e.TrainInitial(context.Background(), interactions, profiles, items); err != nil {
		t.Fatalf("TrainInitial: %v", err)
	}
	return e
}

func TestTrainInitialStatus(t *testing.T) {
	t.Parallel()

	e := trainedEngine(t, Options{})
	status := e.Status()

	if !status.Trained {
		t.Fatal("Trained = false after TrainInitial")
	}
	if status.UserCount != 3 || status.ItemCount != 4 {
		t.Errorf("cardinalities %d/%d, want 3/4", status.UserCount, status.ItemCount)
	}
	if status.InteractionCount != 6 || status.BiasRowCount != 6 {
		t.Errorf("counts %d/%d, want 6/6", status.InteractionCount, status.BiasRowCount)
	}
	if status.ModelVersion != 1 {
		t.Errorf("ModelVersion = %d, want 1", status.ModelVersion)
	}
}

func TestTrainInitialEmptyCorpus(t *testing.T) {
	t.Parallel()

	e := New(testConfig(), Options{Logger: zerolog.Nop()})
	if err := e.TrainInitial(context.Background(), nil, nil, nil); !errors.Is(err, recommend.ErrEmptyBatch) {
		t.Errorf("err = %v, want ErrEmptyBatch", err)
	}
}

func TestRecommendBeforeTraining(t *testing.T) {
	t.Parallel()

	e := New(testConfig(), Options{Logger: zerolog.Nop()})
	_, err := e.Recommend(context.Background(), recommend.Request{UserID: "u1"})
	if !errors.Is(err, recommend.ErrNotTrained) {
		t.Errorf("err = %v, want ErrNotTrained", err)
	}
}

func TestRecommendKnownUser(t *testing.T) {
	t.Parallel()

	e := trainedEngine(t, Options{})
	resp, err := e.Recommend(context.Background(), recommend.Request{UserID: "u1", K: 5})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}

	// u1 rated i1 and i2; only i3 and i4 remain as candidates.
	if len(resp.Items) != 2 {
		t.Fatalf("got %d items, want 2 (rated items excluded): %+v", len(resp.Items), resp.Items)
	}
	for _, item := range resp.Items {
		if item.ItemID == "i1" || item.ItemID == "i2" {
			t.Errorf("already-rated item %s recommended", item.ItemID)
		}
		if item.Penalty < 0 || item.Penalty > 1 {
			t.Errorf("penalty %v outside [0,1]", item.Penalty)
		}
		if item.Explanation == "" {
			t.Errorf("item %s missing explanation", item.ItemID)
		}
		var sum float64
		for _, a := range item.Attribution {
			sum += a
		}
		if sum < 0.999 || sum > 1.001 {
			t.Errorf("attribution sums to %v, want 1", sum)
		}
		if item.Title == "" {
			t.Errorf("item %s missing catalog title", item.ItemID)
		}
	}
	if len(resp.Items) == 2 && resp.Items[0].Score < resp.Items[1].Score {
		t.Error("items not sorted by score descending")
	}

	meta := resp.Metadata
	if meta.Adapted {
		t.Error("known user should not trigger adaptation")
	}
	if meta.Candidates != 2 || meta.ModelVersion != 1 || meta.RequestID == "" {
		t.Errorf("metadata = %+v", meta)
	}
}

func TestRecommendDeterministic(t *testing.T) {
	t.Parallel()

	e := trainedEngine(t, Options{})
	req := recommend.Request{UserID: "u2", K: 3}

	first, err := e.Recommend(context.Background(), req)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	second, err := e.Recommend(context.Background(), req)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if len(first.Items) != len(second.Items) {
		t.Fatal("repeat request returned different item counts")
	}
	for i := range first.Items {
		if first.Items[i].ItemID != second.Items[i].ItemID || first.Items[i].Score != second.Items[i].Score {
			t.Errorf("position %d differs across identical requests", i)
		}
	}
}

func TestRecommendUnknownUserWithoutRatings(t *testing.T) {
	t.Parallel()

	e := trainedEngine(t, Options{})
	_, err := e.Recommend(context.Background(), recommend.Request{UserID: "stranger"})
	if !errors.Is(err, recommend.ErrUnknownUser) {
		t.Errorf("err = %v, want ErrUnknownUser", err)
	}
}

func TestRecommendAdaptsUnknownUser(t *testing.T) {
	t.Parallel()

	e := trainedEngine(t, Options{})
	resp, err := e.Recommend(context.Background(), recommend.Request{
		UserID: "newcomer",
		Ratings: []recommend.NewRating{
			{ItemID: "i1", Rating: 5},
			{ItemID: "i2", Rating: 1},
		},
		K: 4,
	})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}

	if !resp.Metadata.Adapted {
		t.Error("Adapted = false for unknown user with ratings")
	}
	// The session-rated items are excluded from candidates.
	for _, item := range resp.Items {
		if item.ItemID == "i1" || item.ItemID == "i2" {
			t.Errorf("session-rated item %s recommended", item.ItemID)
		}
	}

	status := e.Status()
	if status.UserCount != 4 {
		t.Errorf("UserCount = %d after adaptation, want 4", status.UserCount)
	}
	if status.ModelVersion != 2 {
		t.Errorf("ModelVersion = %d after adaptation, want 2", status.ModelVersion)
	}

	// Second request needs no adaptation.
	again, err := e.Recommend(context.Background(), recommend.Request{UserID: "newcomer", K: 2})
	if err != nil {
		t.Fatalf("Recommend after adaptation: %v", err)
	}
	if again.Metadata.Adapted {
		t.Error("already-adapted user re-adapted")
	}
}

func TestAdaptUnknownItemDegrades(t *testing.T) {
	t.Parallel()

	e := trainedEngine(t, Options{})
	err := e.Adapt(context.Background(), "newcomer", []recommend.NewRating{
		{ItemID: "brand-new-item", Rating: 4},
	})
	if err != nil {
		t.Fatalf("Adapt with unknown item: %v", err)
	}
	if got := e.Status().ItemCount; got != 5 {
		t.Errorf("ItemCount = %d, want 5 (unknown item appended)", got)
	}
}

func TestAdaptEmptyBatchNoOp(t *testing.T) {
	t.Parallel()

	e := trainedEngine(t, Options{})
	before := e.Status()

	if err := e.Adapt(context.Background(), "newcomer", nil); err != nil {
		t.Fatalf("Adapt: %v", err)
	}
	after := e.Status()
	if after.UserCount != before.UserCount || after.ModelVersion != before.ModelVersion {
		t.Errorf("empty batch changed state: %+v -> %+v", before, after)
	}
}

func TestFavorites(t *testing.T) {
	t.Parallel()

	e := trainedEngine(t, Options{})
	favs := e.Favorites("u1", 10)

	if len(favs) != 2 {
		t.Fatalf("got %d favorites, want 2", len(favs))
	}
	if favs[0].ItemID != "i1" || favs[0].Rating != 5 {
		t.Errorf("top favorite = %+v, want i1 rated 5", favs[0])
	}
	if favs[0].Title != "First" {
		t.Errorf("favorite missing catalog title: %+v", favs[0])
	}

	if got := e.Favorites("u1", 1); len(got) != 1 {
		t.Errorf("n=1 returned %d favorites", len(got))
	}
	if got := e.Favorites("stranger", 5); got != nil {
		t.Errorf("unknown user favorites = %v, want nil", got)
	}
}

func TestPersistAndReload(t *testing.T) {
	t.Parallel()

	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	e := trainedEngine(t, Options{Store: store})

	req := recommend.Request{UserID: "u3", K: 3}
	want, err := e.Recommend(context.Background(), req)
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}

	// A fresh engine restores the artifacts and reproduces the ranking.
	interactions, _, items := testCorpus()
	restored := New(testConfig(), Options{Store: store, Logger: zerolog.Nop()})
	if err := restored.LoadArtifacts(interactions, items); err != nil {
		t.Fatalf("LoadArtifacts: %v", err)
	}

	status := restored.Status()
	if !status.Trained || status.UserCount != 3 || status.ItemCount != 4 {
		t.Fatalf("restored status = %+v", status)
	}

	got, err := restored.Recommend(context.Background(), req)
	if err != nil {
		t.Fatalf("Recommend after reload: %v", err)
	}
	if len(got.Items) != len(want.Items) {
		t.Fatalf("restored item count %d, want %d", len(got.Items), len(want.Items))
	}
	for i := range got.Items {
		if got.Items[i].ItemID != want.Items[i].ItemID {
			t.Errorf("position %d: %s, want %s", i, got.Items[i].ItemID, want.Items[i].ItemID)
		}
		if got.Items[i].RawScore != want.Items[i].RawScore {
			t.Errorf("position %d raw score %v, want %v", i, got.Items[i].RawScore, want.Items[i].RawScore)
		}
	}
}
