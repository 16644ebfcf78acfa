// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

package bias

import (
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/fairlens/internal/recommend"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func ts(offset int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(offset) * time.Hour)
}

// referenceCorpus is the shared end-to-end scenario:
// 3 users, 4 items, gender known for all users.
func referenceCorpus() ([]recommend.Interaction, []recommend.UserProfile) {
	interactions := []recommend.Interaction{
		{UserID: "u1", ItemID: "i1", Rating: 5, Timestamp: ts(0)},
		{UserID: "u1", ItemID: "i2", Rating: 3, Timestamp: ts(1)},
		{UserID: "u2", ItemID: "i1", Rating: 4, Timestamp: ts(2)},
		{UserID: "u3", ItemID: "i3", Rating: 5, Timestamp: ts(3)},
		{UserID: "u3", ItemID: "i4", Rating: 2, Timestamp: ts(4)},
	}
	profiles := []recommend.UserProfile{
		{UserID: "u1", Gender: "M"},
		{UserID: "u2", Gender: "F"},
		{UserID: "u3", Gender: "M"},
	}
	return interactions, profiles
}

func TestBuildEmptyCorpus(t *testing.T) {
	t.Parallel()

	b := NewBuilder(0, testLogger())
	table := b.Build(nil, nil)

	if table.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", table.Len())
	}
	v, ok := table.Vector("u1", "i1")
	if ok {
		t.Error("Vector on empty table should report not found")
	}
	if v != (recommend.BiasVector{}) {
		t.Errorf("empty-table lookup = %+v, want zero vector", v)
	}
}

func TestRawPopularityFractions(t *testing.T) {
	t.Parallel()

	interactions, _ := referenceCorpus()
	fractions := rawPopularity(interactions)

	// i1 has 2 of 5 interactions.
	if got, want := fractions["i1"], 2.0/5.0; math.Abs(got-want) > 1e-12 {
		t.Errorf("raw PB(i1) = %v, want %v", got, want)
	}
	for _, item := range []string{"i2", "i3", "i4"} {
		if got, want := fractions[item], 1.0/5.0; math.Abs(got-want) > 1e-12 {
			t.Errorf("raw PB(%s) = %v, want %v", item, got, want)
		}
	}
}

func TestRawDemographicProportions(t *testing.T) {
	t.Parallel()

	interactions, profiles := referenceCorpus()
	profileByUser := make(map[string]*recommend.UserProfile)
	for i := range profiles {
		profileByUser[profiles[i].UserID] = &profiles[i]
	}

	values := rawDemographic(interactions, profileByUser, recommend.DimGender, collectPairs(interactions))

	// 1 of 2 M users rated i1.
	if got := values[Pair{UserID: "u1", ItemID: "i1"}]; math.Abs(got-0.5) > 1e-12 {
		t.Errorf("raw DB_gender(u1,i1) = %v, want 0.5", got)
	}
	// 1 of 1 F users rated i1.
	if got := values[Pair{UserID: "u2", ItemID: "i1"}]; math.Abs(got-1.0) > 1e-12 {
		t.Errorf("raw DB_gender(u2,i1) = %v, want 1.0", got)
	}
}

func TestDemographicGroupProportionExact(t *testing.T) {
	t.Parallel()

	// Group G = {a,b,c,d} (|G|=4), exactly 3 members interacted with item X.
	interactions := []recommend.Interaction{
		{UserID: "a", ItemID: "X", Rating: 5, Timestamp: ts(0)},
		{UserID: "b", ItemID: "X", Rating: 4, Timestamp: ts(1)},
		{UserID: "c", ItemID: "X", Rating: 3, Timestamp: ts(2)},
		// Repeat interaction must not inflate the distinct-user count.
		{UserID: "a", ItemID: "X", Rating: 2, Timestamp: ts(3)},
	}
	profiles := []recommend.UserProfile{
		{UserID: "a", Gender: "G"},
		{UserID: "b", Gender: "G"},
		{UserID: "c", Gender: "G"},
		{UserID: "d", Gender: "G"},
	}
	profileByUser := make(map[string]*recommend.UserProfile)
	for i := range profiles {
		profileByUser[profiles[i].UserID] = &profiles[i]
	}

	values := rawDemographic(interactions, profileByUser, recommend.DimGender, collectPairs(interactions))
	if got := values[Pair{UserID: "a", ItemID: "X"}]; math.Abs(got-0.75) > 1e-12 {
		t.Errorf("raw DB = %v, want 3/4", got)
	}
}

func TestInteractionBiasSortsByTimestamp(t *testing.T) {
	t.Parallel()

	b := NewBuilder(0.01, testLogger())

	// One user rates the same item three times; rows supplied out of order.
	sorted := []recommend.Interaction{
		{UserID: "u", ItemID: "i", Rating: 5, Timestamp: ts(0)},
		{UserID: "u", ItemID: "i", Rating: 3, Timestamp: ts(1)},
		{UserID: "u", ItemID: "i", Rating: 1, Timestamp: ts(2)},
	}
	shuffled := []recommend.Interaction{sorted[2], sorted[0], sorted[1]}

	w0, w1, w2 := 1.0, math.Exp(-0.01), math.Exp(-0.02)
	want := (5*w0 + 3*w1 + 1*w2) / (w0 + w1 + w2)

	for name, input := range map[string][]recommend.Interaction{
		"sorted":   sorted,
		"shuffled": shuffled,
	} {
		got := b.rawInteraction(input)[Pair{UserID: "u", ItemID: "i"}]
		if math.Abs(got-want) > 1e-12 {
			t.Errorf("%s: raw IB = %v, want %v (recency index must follow timestamps)", name, got, want)
		}
	}
}

func TestInteractionBiasTieKeepsIngestionOrder(t *testing.T) {
	t.Parallel()

	b := NewBuilder(0.01, testLogger())

	// Equal timestamps: first ingested row gets recency index 0.
	interactions := []recommend.Interaction{
		{UserID: "u", ItemID: "i1", Rating: 5, Timestamp: ts(0)},
		{UserID: "u", ItemID: "i2", Rating: 5, Timestamp: ts(0)},
	}
	values := b.rawInteraction(interactions)

	// Single-interaction pairs aggregate to the plain rating; the tie-break
	// is observable through repeated runs being identical.
	first := values[Pair{UserID: "u", ItemID: "i1"}]
	for run := 0; run < 5; run++ {
		again := b.rawInteraction(interactions)[Pair{UserID: "u", ItemID: "i1"}]
		if again != first {
			t.Fatalf("raw IB unstable across runs: %v vs %v", first, again)
		}
	}
}

func TestBuildNormalizedRange(t *testing.T) {
	t.Parallel()

	interactions, profiles := referenceCorpus()
	table := NewBuilder(0, testLogger()).Build(interactions, profiles)

	if table.Len() != 5 {
		t.Fatalf("Len() = %d, want 5 pairs", table.Len())
	}

	var sawZero, sawOne [recommend.NumBiasDims]bool
	for _, in := range interactions {
		vec, ok := table.Vector(in.UserID, in.ItemID)
		if !ok {
			t.Fatalf("missing vector for (%s,%s)", in.UserID, in.ItemID)
		}
		for d, v := range vec.Values() {
			if v < 0 || v > 1 || math.IsNaN(v) {
				t.Errorf("dim %s value %v outside [0,1]", recommend.BiasDimNames[d], v)
			}
			if v == 0 {
				sawZero[d] = true
			}
			if v == 1 {
				sawOne[d] = true
			}
		}
	}

	// Min-max with a non-constant distribution maps extremes to exactly 0 and 1.
	for _, d := range []int{recommend.DimPopularity, recommend.DimGender} {
		if !sawZero[d] || !sawOne[d] {
			t.Errorf("dim %s: expected min to map to 0 and max to 1", recommend.BiasDimNames[d])
		}
	}
}

func TestBuildMissingAttributeDegrades(t *testing.T) {
	t.Parallel()

	interactions, profiles := referenceCorpus()
	// u2 loses its gender; the whole region attribute is absent.
	profiles[1].Gender = ""

	table := NewBuilder(0, testLogger()).Build(interactions, profiles)

	for _, in := range interactions {
		vec, _ := table.Vector(in.UserID, in.ItemID)
		if vec.Region != 0 {
			t.Errorf("region bias = %v, want 0 when attribute absent from all profiles", vec.Region)
		}
	}

	// u2's gender rows are zero before normalization, so they stay the minimum.
	vec, _ := table.Vector("u2", "i1")
	if vec.Gender != 0 {
		t.Errorf("gender bias for attribute-less user = %v, want 0", vec.Gender)
	}
}

func TestBuildDuplicatePairsCollapse(t *testing.T) {
	t.Parallel()

	interactions := []recommend.Interaction{
		{UserID: "u", ItemID: "i", Rating: 5, Timestamp: ts(0)},
		{UserID: "u", ItemID: "i", Rating: 1, Timestamp: ts(1)},
		{UserID: "v", ItemID: "i", Rating: 3, Timestamp: ts(2)},
	}
	table := NewBuilder(0, testLogger()).Build(interactions, nil)

	if table.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (duplicate (u,i) collapses)", table.Len())
	}
}

func TestItemVectorAggregation(t *testing.T) {
	t.Parallel()

	interactions, profiles := referenceCorpus()
	table := NewBuilder(0, testLogger()).Build(interactions, profiles)

	// i1 has rows for u1 and u2; the item vector is their mean.
	v1, _ := table.Vector("u1", "i1")
	v2, _ := table.Vector("u2", "i1")
	item, ok := table.ItemVector("i1")
	if !ok {
		t.Fatal("ItemVector(i1) not found")
	}
	if got, want := item.Gender, (v1.Gender+v2.Gender)/2; math.Abs(got-want) > 1e-12 {
		t.Errorf("item gender bias = %v, want mean %v", got, want)
	}

	if _, ok := table.ItemVector("cold-item"); ok {
		t.Error("ItemVector for cold item should report not found")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	t.Parallel()

	interactions, profiles := referenceCorpus()
	table := NewBuilder(0, testLogger()).Build(interactions, profiles)

	restored := FromSnapshot(table.Snapshot())
	if restored.Len() != table.Len() {
		t.Fatalf("restored Len() = %d, want %d", restored.Len(), table.Len())
	}
	want, _ := table.Vector("u1", "i1")
	got, ok := restored.Vector("u1", "i1")
	if !ok || got != want {
		t.Errorf("restored Vector = %+v, want %+v", got, want)
	}
}
