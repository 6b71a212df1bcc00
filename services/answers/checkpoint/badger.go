// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package checkpoint persists conversation snapshots in BadgerDB.
//
// Checkpointing gives a run resumability across process restarts. It is
// best effort by contract: the loop continues when a save fails, and
// nothing in the answering path reads checkpoints back. BadgerDB gives
// local embedded storage with low-latency access and no external service.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianAnswers/services/answers/agent"
)

// ErrNotFound indicates no checkpoint exists for the requested run.
var ErrNotFound = errors.New("checkpoint not found")

// keyPrefix namespaces run snapshots within the database.
const keyPrefix = "run:"

// Config holds configuration for the checkpoint store.
type Config struct {
	// Path is the directory for BadgerDB files.
	// Ignored when InMemory is true.
	Path string

	// InMemory enables in-memory mode (no disk persistence).
	// Useful for testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// TTL is how long snapshots live before Badger expires them.
	// Zero keeps them forever.
	TTL time.Duration

	// Logger is the logger for BadgerDB operations.
	// If nil, BadgerDB's internal logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns production defaults: durable writes and a 24h TTL,
// long enough to inspect a day's runs without unbounded growth.
func DefaultConfig(path string) Config {
	return Config{
		Path:       path,
		SyncWrites: true,
		TTL:        24 * time.Hour,
	}
}

// InMemoryConfig returns configuration optimized for testing.
func InMemoryConfig() Config {
	return Config{
		InMemory:   true,
		SyncWrites: false,
	}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is a BadgerDB-backed checkpoint store.
//
// Thread Safety: Store is safe for concurrent use.
type Store struct {
	db  *badger.DB
	ttl time.Duration
}

// Open creates a checkpoint store with the given configuration.
//
// Inputs:
//
//	cfg - Store configuration. Path is required unless InMemory is true.
//
// Outputs:
//
//	*Store - The opened store. Caller must call Close() when done.
//	error - Non-nil if the database cannot be opened.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("checkpoint: path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("checkpoint: create directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: open database: %w", err)
	}

	return &Store{db: db, ttl: cfg.TTL}, nil
}

// Save persists a conversation snapshot keyed by its run ID.
//
// Thread Safety: This method is safe for concurrent use.
func (s *Store) Save(_ context.Context, conv *agent.Conversation) error {
	data, err := conv.MarshalSnapshot()
	if err != nil {
		return fmt.Errorf("checkpoint: marshaling conversation: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(keyPrefix+conv.RunID), data)
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Load retrieves a previously saved conversation.
//
// Outputs:
//
//	*agent.Conversation - The restored conversation.
//	error - ErrNotFound if no snapshot exists for the run ID.
func (s *Store) Load(_ context.Context, runID string) (*agent.Conversation, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + runID))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("checkpoint: reading snapshot: %w", err)
	}

	return agent.UnmarshalSnapshot(data)
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
