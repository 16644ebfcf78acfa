// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

// Package storage persists trained model artifacts.
//
// Artifacts are gob-encoded, gzip-compressed, and written with a SHA-256
// checksum plus metadata in a single versioned file per artifact. Each
// artifact versions independently: online adaptation re-saves only the
// encoders and embedding tables, leaving the frozen joint bias module at
// its batch-trained version.
//
// # Integrity
//
// Load verifies the checksum before decoding; LoadBundle additionally
// verifies that encoder cardinalities match the embedding tables, since an
// encoder/table mismatch silently mis-addresses every prediction.
package storage

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ArtifactMetadata describes one stored artifact.
type ArtifactMetadata struct {
	// Name is the artifact name (e.g. "bundle").
	Name string `json:"name"`

	// Version is the artifact version, monotonically increasing.
	Version int `json:"version"`

	// TrainedAt is when the underlying model finished training.
	TrainedAt time.Time `json:"trained_at"`

	// SavedAt is when the artifact was written.
	SavedAt time.Time `json:"saved_at"`

	// InteractionCount is the training corpus size.
	InteractionCount int `json:"interaction_count"`

	// UserCount and ItemCount are the encoder cardinalities at save time.
	UserCount int `json:"user_count"`
	ItemCount int `json:"item_count"`

	// Checksum is the SHA-256 hex digest of the uncompressed payload.
	Checksum string `json:"checksum"`

	// SizeBytes is the compressed payload size.
	SizeBytes int64 `json:"size_bytes"`
}

// storedFile is the on-disk envelope.
type storedFile struct {
	Metadata   ArtifactMetadata
	Compressed []byte
}

// Store manages versioned artifact files in one directory.
type Store struct {
	dir string

	mu       sync.RWMutex
	versions map[string]int
}

// NewStore opens (creating if needed) an artifact store at dir and indexes
// any existing artifact versions.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil { //nolint:gosec // 0750 is acceptable for model storage
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	s := &Store{
		dir:      dir,
		versions: make(map[string]int),
	}
	if err := s.scan(); err != nil {
		return nil, fmt.Errorf("scan artifacts: %w", err)
	}
	return s, nil
}

// scan indexes the latest version per artifact from existing filenames.
func (s *Store) scan() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, version, ok := parseArtifactFilename(entry.Name())
		if !ok {
			continue
		}
		if current, seen := s.versions[name]; !seen || version > current {
			s.versions[name] = version
		}
	}
	return nil
}

// parseArtifactFilename splits "name_v3.gob.gz" into ("name", 3).
func parseArtifactFilename(filename string) (name string, version int, ok bool) {
	base, found := strings.CutSuffix(filename, ".gob.gz")
	if !found {
		return "", 0, false
	}
	idx := strings.LastIndex(base, "_v")
	if idx < 1 {
		return "", 0, false
	}
	version, err := strconv.Atoi(base[idx+2:])
	if err != nil || version < 1 {
		return "", 0, false
	}
	return base[:idx], version, true
}

func (s *Store) path(name string, version int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_v%d.gob.gz", name, version))
}

// Save gob-encodes, compresses, checksums, and writes an artifact. The
// metadata's Name, Version, Checksum, SizeBytes, and SavedAt fields are
// filled here.
func (s *Store) Save(name string, version int, payload any, meta ArtifactMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(payload); err != nil {
		return fmt.Errorf("encode artifact %s: %w", name, err)
	}

	hash := sha256.Sum256(raw.Bytes())
	meta.Checksum = hex.EncodeToString(hash[:])

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return fmt.Errorf("compress artifact %s: %w", name, err)
	}
	if err := gzw.Close(); err != nil {
		return fmt.Errorf("finalize compression for %s: %w", name, err)
	}

	meta.Name = name
	meta.Version = version
	meta.SizeBytes = int64(compressed.Len())
	meta.SavedAt = time.Now()

	f, err := os.Create(s.path(name, version)) //nolint:gosec // path is built from trusted artifact names
	if err != nil {
		return fmt.Errorf("create artifact file: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // close after write error surfaces via Encode

	if err := gob.NewEncoder(f).Encode(storedFile{
		Metadata:   meta,
		Compressed: compressed.Bytes(),
	}); err != nil {
		return fmt.Errorf("write artifact file: %w", err)
	}

	if current, seen := s.versions[name]; !seen || version > current {
		s.versions[name] = version
	}
	return nil
}

// Load reads an artifact into target, verifying the checksum.
// Version 0 loads the latest.
func (s *Store) Load(name string, version int, target any) (*ArtifactMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if version == 0 {
		latest, ok := s.versions[name]
		if !ok {
			return nil, fmt.Errorf("no stored artifact %q", name)
		}
		version = latest
	}

	f, err := os.Open(s.path(name, version)) //nolint:gosec // path is built from trusted artifact names
	if err != nil {
		return nil, fmt.Errorf("open artifact file: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // close after read is not actionable

	var sf storedFile
	if err := gob.NewDecoder(f).Decode(&sf); err != nil {
		return nil, fmt.Errorf("read artifact file: %w", err)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(sf.Compressed))
	if err != nil {
		return nil, fmt.Errorf("decompress artifact %s: %w", name, err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // close after read is not actionable

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, fmt.Errorf("read artifact payload: %w", err)
	}

	hash := sha256.Sum256(raw)
	if got := hex.EncodeToString(hash[:]); got != sf.Metadata.Checksum {
		return nil, fmt.Errorf("artifact %s checksum mismatch: stored %s, computed %s",
			name, sf.Metadata.Checksum, got)
	}

	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(target); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", name, err)
	}
	return &sf.Metadata, nil
}

// LatestVersion returns the newest stored version of an artifact.
func (s *Store) LatestVersion(name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.versions[name]
	return v, ok
}

// Prune deletes old versions of an artifact, keeping the newest keep
// versions. Best effort: missing files are skipped.
func (s *Store) Prune(name string, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keep < 1 {
		keep = 1
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read storage directory: %w", err)
	}

	var versions []int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		n, v, ok := parseArtifactFilename(entry.Name())
		if !ok || n != name {
			continue
		}
		versions = append(versions, v)
	}

	// Descending insertion sort; version lists are short.
	for i := 1; i < len(versions); i++ {
		for j := i; j > 0 && versions[j] > versions[j-1]; j-- {
			versions[j], versions[j-1] = versions[j-1], versions[j]
		}
	}
	for i := keep; i < len(versions); i++ {
		_ = os.Remove(s.path(name, versions[i])) //nolint:errcheck // best-effort cleanup
	}
	return nil
}
