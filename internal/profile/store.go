// Fairlens - Fairness-Aware Movie Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fairlens

// Package profile stores user demographic profiles in BadgerDB.
//
// The engine treats the profile store as an external collaborator: it maps
// an opaque user identity to demographic attributes at request time. A
// missing profile is not an error — the bias pipeline degrades the
// demographic dimensions to neutral when attributes are unknown.
package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/fairlens/internal/recommend"
)

// ErrNotFound is returned when no profile exists for a user.
var ErrNotFound = errors.New("profile not found")

const profileKeyPrefix = "profile:"

// Store is a BadgerDB-backed profile store.
type Store struct {
	db *badger.DB
}

// NewStore wraps an open BadgerDB handle. The caller owns the handle's
// lifecycle.
func NewStore(db *badger.DB) *Store {
	return &Store{db: db}
}

// Open opens a BadgerDB at dir and returns a store owning the handle.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open profile store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func profileKey(userID string) []byte {
	return []byte(profileKeyPrefix + userID)
}

// Put stores or replaces a user profile.
func (s *Store) Put(ctx context.Context, p *recommend.UserProfile) error {
	if p.UserID == "" {
		return errors.New("profile missing user id")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(profileKey(p.UserID), data)
	})
}

// PutBatch stores many profiles in chunked transactions.
func (s *Store) PutBatch(ctx context.Context, profiles []recommend.UserProfile) error {
	const chunk = 500
	for start := 0; start < len(profiles); start += chunk {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + chunk
		if end > len(profiles) {
			end = len(profiles)
		}
		err := s.db.Update(func(txn *badger.Txn) error {
			for i := start; i < end; i++ {
				data, err := json.Marshal(&profiles[i])
				if err != nil {
					return fmt.Errorf("marshal profile %s: %w", profiles[i].UserID, err)
				}
				if err := txn.Set(profileKey(profiles[i].UserID), data); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("store profile batch: %w", err)
		}
	}
	return nil
}

// Get retrieves a user profile. Returns ErrNotFound for unknown users.
func (s *Store) Get(ctx context.Context, userID string) (*recommend.UserProfile, error) {
	var p recommend.UserProfile
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(profileKey(userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get profile: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		})
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Count returns the number of stored profiles.
func (s *Store) Count(ctx context.Context) (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(profileKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}
