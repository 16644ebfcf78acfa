// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

package storage

import (
	"bytes"
	"encoding/gob"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/fairlens/internal/recommend"
	"github.com/tomtom215/fairlens/internal/recommend/model"
)

func testBundle(t *testing.T) *PredictorBundle {
	t.Helper()
	cfg := model.DefaultNeuralCFConfig()
	cfg.EmbeddingDim = 4
	cfg.Hidden1 = 8
	cfg.Hidden2 = 4
	m := model.NewNeuralCF(cfg, 2, 3)
	return &PredictorBundle{
		Users:     []string{"u1", "u2"},
		Items:     []string{"i1", "i2", "i3"},
		Predictor: m.Snapshot(),
	}
}

func TestParseArtifactFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		filename    string
		wantName    string
		wantVersion int
		wantOK      bool
	}{
		{"predictor_v1.gob.gz", "predictor", 1, true},
		{"bias_table_v12.gob.gz", "bias_table", 12, true},
		{"predictor_v0.gob.gz", "", 0, false},
		{"predictor.gob.gz", "", 0, false},
		{"predictor_v1.gob", "", 0, false},
		{"_v1.gob.gz", "", 0, false},
		{"notes.txt", "", 0, false},
	}
	for _, tt := range tests {
		name, version, ok := parseArtifactFilename(tt.filename)
		if name != tt.wantName || version != tt.wantVersion || ok != tt.wantOK {
			t.Errorf("parseArtifactFilename(%q) = (%q, %d, %v), want (%q, %d, %v)",
				tt.filename, name, version, ok, tt.wantName, tt.wantVersion, tt.wantOK)
		}
	}
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	bundle := testBundle(t)
	meta := ArtifactMetadata{
		TrainedAt:        time.Now(),
		InteractionCount: 5,
	}
	if err := s.SavePredictor(bundle, 1, meta); err != nil {
		t.Fatalf("SavePredictor: %v", err)
	}

	loaded, loadedMeta, err := s.LoadPredictor(0)
	if err != nil {
		t.Fatalf("LoadPredictor: %v", err)
	}
	if loadedMeta.Name != ArtifactPredictor || loadedMeta.Version != 1 {
		t.Errorf("metadata = %s v%d, want %s v1", loadedMeta.Name, loadedMeta.Version, ArtifactPredictor)
	}
	if loadedMeta.UserCount != 2 || loadedMeta.ItemCount != 3 {
		t.Errorf("metadata cardinalities %d/%d, want 2/3", loadedMeta.UserCount, loadedMeta.ItemCount)
	}
	if loadedMeta.Checksum == "" || loadedMeta.SizeBytes == 0 {
		t.Error("metadata missing checksum or size")
	}

	if len(loaded.Users) != 2 || loaded.Users[0] != "u1" {
		t.Errorf("restored users = %v", loaded.Users)
	}
	if _, err := model.RestoreNeuralCF(loaded.Predictor); err != nil {
		t.Errorf("restored predictor snapshot invalid: %v", err)
	}
}

func TestStoreLatestVersionWins(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	bundle := testBundle(t)
	for v := 1; v <= 3; v++ {
		bundle.Users = append([]string(nil), bundle.Users...)
		if err := s.SavePredictor(bundle, v, ArtifactMetadata{}); err != nil {
			t.Fatalf("SavePredictor v%d: %v", v, err)
		}
	}

	if v, ok := s.LatestVersion(ArtifactPredictor); !ok || v != 3 {
		t.Errorf("LatestVersion = %d/%v, want 3/true", v, ok)
	}

	// A fresh store over the same directory re-indexes from filenames.
	reopened, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore reopen: %v", err)
	}
	if v, ok := reopened.LatestVersion(ArtifactPredictor); !ok || v != 3 {
		t.Errorf("reopened LatestVersion = %d/%v, want 3/true", v, ok)
	}
}

func TestStoreLoadMissingArtifact(t *testing.T) {
	t.Parallel()

	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, _, err := s.LoadPredictor(0); err == nil {
		t.Error("loading from empty store should fail")
	}
}

func TestStoreDetectsCorruption(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if err := s.SavePredictor(testBundle(t), 1, ArtifactMetadata{}); err != nil {
		t.Fatalf("SavePredictor: %v", err)
	}

	// Flip one payload byte behind the checksum's back.
	path := filepath.Join(dir, "predictor_v1.gob.gz")
	raw, err := os.ReadFile(path) //nolint:gosec // test-owned temp path
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	var sf storedFile
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&sf); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	sf.Compressed[len(sf.Compressed)/2] ^= 0xFF
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(sf); err != nil {
		t.Fatalf("re-encode envelope: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write corrupted artifact: %v", err)
	}

	if _, _, err := s.LoadPredictor(1); err == nil {
		t.Error("corrupted artifact loaded without error")
	}
}

func TestPredictorBundleCardinalityCheck(t *testing.T) {
	t.Parallel()

	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	bundle := testBundle(t)
	bundle.Users = bundle.Users[:1] // 1 encoded user, 2 table rows

	if err := s.SavePredictor(bundle, 1, ArtifactMetadata{}); !errors.Is(err, recommend.ErrModelState) {
		t.Errorf("SavePredictor with mismatched encoder err = %v, want ErrModelState", err)
	}
}

func TestStorePrune(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	bundle := testBundle(t)
	for v := 1; v <= 4; v++ {
		if err := s.SavePredictor(bundle, v, ArtifactMetadata{}); err != nil {
			t.Fatalf("SavePredictor v%d: %v", v, err)
		}
	}
	if err := s.Prune(ArtifactPredictor, 2); err != nil {
		t.Fatalf("Prune: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("after prune: %d files, want 2", len(entries))
	}
	if _, _, err := s.LoadPredictor(4); err != nil {
		t.Errorf("latest version pruned away: %v", err)
	}
	if _, _, err := s.LoadPredictor(1); err == nil {
		t.Error("oldest version should be pruned")
	}
}
