// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

package storage

import (
	"encoding/gob"
	"fmt"

	"github.com/tomtom215/fairlens/internal/recommend"
	"github.com/tomtom215/fairlens/internal/recommend/bias"
	"github.com/tomtom215/fairlens/internal/recommend/model"
)

// Artifact names. The predictor bundle re-saves on every adaptation; the
// joint bias module only on batch training.
const (
	ArtifactPredictor = "predictor"
	ArtifactJointBias = "jointbias"
	ArtifactBiasTable = "biastable"
)

// PredictorBundle couples the identity encoders with the embedding tables
// they address. The two always persist together: a predictor restored
// against a different encoder generation mis-addresses every row.
type PredictorBundle struct {
	// Users and Items are the encoder snapshots, in dense-index order.
	Users []string
	Items []string

	// Predictor is the NeuralCF parameter state.
	Predictor model.NeuralCFSnapshot
}

// Validate checks encoder/table cardinality agreement.
func (b *PredictorBundle) Validate() error {
	if got, want := len(b.Predictor.UserGMF), len(b.Users); got != want {
		return fmt.Errorf("%w: user table has %d rows for %d encoded users",
			recommend.ErrModelState, got, want)
	}
	if got, want := len(b.Predictor.ItemGMF), len(b.Items); got != want {
		return fmt.Errorf("%w: item table has %d rows for %d encoded items",
			recommend.ErrModelState, got, want)
	}
	return nil
}

// SavePredictor persists the predictor bundle at the given version.
func (s *Store) SavePredictor(b *PredictorBundle, version int, meta ArtifactMetadata) error {
	if err := b.Validate(); err != nil {
		return err
	}
	meta.UserCount = len(b.Users)
	meta.ItemCount = len(b.Items)
	return s.Save(ArtifactPredictor, version, b, meta)
}

// LoadPredictor loads and validates a predictor bundle.
// Version 0 loads the latest.
func (s *Store) LoadPredictor(version int) (*PredictorBundle, *ArtifactMetadata, error) {
	var b PredictorBundle
	meta, err := s.Load(ArtifactPredictor, version, &b)
	if err != nil {
		return nil, nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, nil, err
	}
	return &b, meta, nil
}

// SaveJointBias persists the joint bias parameters.
func (s *Store) SaveJointBias(snap model.JointBiasSnapshot, version int, meta ArtifactMetadata) error {
	return s.Save(ArtifactJointBias, version, snap, meta)
}

// LoadJointBias loads the joint bias parameters. Version 0 loads the latest.
func (s *Store) LoadJointBias(version int) (model.JointBiasSnapshot, *ArtifactMetadata, error) {
	var snap model.JointBiasSnapshot
	meta, err := s.Load(ArtifactJointBias, version, &snap)
	if err != nil {
		return model.JointBiasSnapshot{}, nil, err
	}
	return snap, meta, nil
}

// SaveBiasTable persists the bias feature table.
func (s *Store) SaveBiasTable(snap bias.Snapshot, version int, meta ArtifactMetadata) error {
	return s.Save(ArtifactBiasTable, version, snap, meta)
}

// LoadBiasTable loads the bias feature table. Version 0 loads the latest.
func (s *Store) LoadBiasTable(version int) (bias.Snapshot, *ArtifactMetadata, error) {
	var snap bias.Snapshot
	meta, err := s.Load(ArtifactBiasTable, version, &snap)
	if err != nil {
		return bias.Snapshot{}, nil, err
	}
	return snap, meta, nil
}

//nolint:gochecknoinits // gob.Register must run at package init for envelope decoding
func init() {
	gob.Register(storedFile{})
	gob.Register(PredictorBundle{})
	gob.Register(model.NeuralCFSnapshot{})
	gob.Register(model.JointBiasSnapshot{})
	gob.Register(bias.Snapshot{})
}
