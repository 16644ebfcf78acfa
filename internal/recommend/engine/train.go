// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/fairlens/internal/metrics"
	"github.com/tomtom215/fairlens/internal/recommend"
	"github.com/tomtom215/fairlens/internal/recommend/bias"
	"github.com/tomtom215/fairlens/internal/recommend/identity"
	"github.com/tomtom215/fairlens/internal/recommend/model"
	"github.com/tomtom215/fairlens/internal/recommend/storage"
)

// TrainInitial runs the full batch pipeline: bias features, encoder fit,
// predictor training, and penalty-head training, then persists all
// artifacts if a store is configured. It replaces any previous model state.
func (e *Engine) TrainInitial(ctx context.Context, interactions []recommend.Interaction, profiles []recommend.UserProfile, items []recommend.ItemProfile) error {
	if len(interactions) == 0 {
		return recommend.ErrEmptyBatch
	}
	start := time.Now()

	builder := bias.NewBuilder(e.cfg.Eta, e.logger)
	table := builder.Build(interactions, profiles)

	userIDs := make([]string, 0, len(interactions))
	itemIDs := make([]string, 0, len(interactions))
	for _, in := range interactions {
		userIDs = append(userIDs, in.UserID)
		itemIDs = append(itemIDs, in.ItemID)
	}
	users := identity.NewEncoder()
	users.Fit(userIDs)
	itemEnc := identity.NewEncoder()
	itemEnc.Fit(itemIDs)

	cf := model.NewNeuralCF(e.cfg.Predictor, users.Len(), itemEnc.Len())
	samples := make([]model.Sample, 0, len(interactions))
	for _, in := range interactions {
		u, _ := users.Lookup(in.UserID)
		i, _ := itemEnc.Lookup(in.ItemID)
		samples = append(samples, model.Sample{User: u, Item: i, Rating: in.Rating})
	}
	if err := cf.Train(ctx, samples); err != nil {
		return fmt.Errorf("train predictor: %w", err)
	}

	// The penalty head fits the gap between the frozen predictor's output
	// and the observed rating, so the serving-time subtraction
	// raw - lambda*penalty lands near the truth.
	jbf := model.NewJointBias(e.cfg.JointBias)
	jbfSamples := make([]model.JointBiasSample, 0, len(interactions))
	for idx, in := range interactions {
		pred, err := cf.Predict(samples[idx].User, samples[idx].Item)
		if err != nil {
			return fmt.Errorf("score training pair: %w", err)
		}
		vec, _ := table.Vector(in.UserID, in.ItemID)
		jbfSamples = append(jbfSamples, model.JointBiasSample{
			Bias:     vec,
			Residual: pred - in.Rating,
		})
	}
	if err := jbf.Train(ctx, jbfSamples, e.cfg.JointBiasEpochs, e.cfg.JointBiasLearningRate, e.cfg.Ranking.LambdaFair); err != nil {
		return fmt.Errorf("train joint bias: %w", err)
	}

	catalog := make(map[string]recommend.ItemProfile, len(items))
	for _, item := range items {
		catalog[item.ItemID] = item
	}
	byUser := make(map[string][]recommend.Interaction)
	rated := make(map[int]map[int]struct{})
	for idx, in := range interactions {
		byUser[in.UserID] = append(byUser[in.UserID], in)
		u, i := samples[idx].User, samples[idx].Item
		if rated[u] == nil {
			rated[u] = make(map[int]struct{})
		}
		rated[u][i] = struct{}{}
	}

	e.mu.Lock()
	e.users = users
	e.items = itemEnc
	e.biasTable = table
	e.jbf = jbf
	e.cf = cf
	e.catalog = catalog
	e.byUser = byUser
	e.rated = rated
	e.interactionCount = len(interactions)
	e.version++
	e.trained = true
	e.trainedAt = time.Now()
	version := e.version
	e.mu.Unlock()

	metrics.TrainingRuns.Inc()
	metrics.TrainingDuration.Observe(time.Since(start).Seconds())
	metrics.SetModelState(users.Len(), itemEnc.Len(), version, table.Len())

	e.logger.Info().
		Int("users", users.Len()).
		Int("items", itemEnc.Len()).
		Int("interactions", len(interactions)).
		Int("bias_rows", table.Len()).
		Int("version", version).
		Dur("duration", time.Since(start)).
		Msg("Batch training complete")

	if e.store != nil {
		if err := e.persist(true); err != nil {
			return fmt.Errorf("persist artifacts: %w", err)
		}
	}
	return nil
}

// persist saves the predictor bundle (always) and, after batch training,
// the joint bias parameters and bias table. Online adaptation leaves the
// frozen artifacts at their batch-trained version.
func (e *Engine) persist(full bool) error {
	e.mu.RLock()
	bundle := &storage.PredictorBundle{
		Users:     e.users.Snapshot(),
		Items:     e.items.Snapshot(),
		Predictor: e.cf.Snapshot(),
	}
	var jbfSnap model.JointBiasSnapshot
	var tableSnap bias.Snapshot
	if full {
		jbfSnap = e.jbf.Snapshot()
		tableSnap = e.biasTable.Snapshot()
	}
	meta := storage.ArtifactMetadata{
		TrainedAt:        e.trainedAt,
		InteractionCount: e.interactionCount,
	}
	version := e.version
	e.mu.RUnlock()

	if err := e.store.SavePredictor(bundle, version, meta); err != nil {
		return err
	}
	if full {
		if err := e.store.SaveJointBias(jbfSnap, version, meta); err != nil {
			return err
		}
		if err := e.store.SaveBiasTable(tableSnap, version, meta); err != nil {
			return err
		}
	}
	return nil
}

// LoadArtifacts restores the latest persisted model state. The corpus-side
// indexes (favorites, rated sets) are rebuilt from the given interactions,
// which should be the same corpus the artifacts were trained on.
func (e *Engine) LoadArtifacts(interactions []recommend.Interaction, items []recommend.ItemProfile) error {
	if e.store == nil {
		return fmt.Errorf("no artifact store configured")
	}

	bundle, meta, err := e.store.LoadPredictor(0)
	if err != nil {
		return fmt.Errorf("load predictor: %w", err)
	}
	cf, err := model.RestoreNeuralCF(bundle.Predictor)
	if err != nil {
		return err
	}
	jbfSnap, _, err := e.store.LoadJointBias(0)
	if err != nil {
		return fmt.Errorf("load joint bias: %w", err)
	}
	jbf, err := model.RestoreJointBias(jbfSnap)
	if err != nil {
		return err
	}
	tableSnap, _, err := e.store.LoadBiasTable(0)
	if err != nil {
		return fmt.Errorf("load bias table: %w", err)
	}

	users := identity.NewEncoder()
	users.Restore(bundle.Users)
	itemEnc := identity.NewEncoder()
	itemEnc.Restore(bundle.Items)

	catalog := make(map[string]recommend.ItemProfile, len(items))
	for _, item := range items {
		catalog[item.ItemID] = item
	}
	byUser := make(map[string][]recommend.Interaction)
	rated := make(map[int]map[int]struct{})
	for _, in := range interactions {
		byUser[in.UserID] = append(byUser[in.UserID], in)
		u, okU := users.Lookup(in.UserID)
		i, okI := itemEnc.Lookup(in.ItemID)
		if !okU || !okI {
			continue
		}
		if rated[u] == nil {
			rated[u] = make(map[int]struct{})
		}
		rated[u][i] = struct{}{}
	}

	e.mu.Lock()
	e.users = users
	e.items = itemEnc
	e.biasTable = bias.FromSnapshot(tableSnap)
	e.jbf = jbf
	e.cf = cf
	e.catalog = catalog
	e.byUser = byUser
	e.rated = rated
	e.interactionCount = meta.InteractionCount
	e.version = meta.Version
	e.trained = true
	e.trainedAt = meta.TrainedAt
	biasRows := e.biasTable.Len()
	e.mu.Unlock()

	metrics.SetModelState(users.Len(), itemEnc.Len(), meta.Version, biasRows)
	e.logger.Info().
		Int("users", users.Len()).
		Int("items", itemEnc.Len()).
		Int("version", meta.Version).
		Msg("Restored model artifacts")
	return nil
}
