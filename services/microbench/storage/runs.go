// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package storage keeps the history of benchmark runs in BadgerDB.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/microbench/services/microbench/results"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrRunNotFound is returned when no run has the requested ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrNilRecord is returned when saving a nil record.
	ErrNilRecord = errors.New("record must not be nil")

	// ErrInvalidID is returned for IDs that are not UUIDs.
	ErrInvalidID = errors.New("invalid run id")

	// ErrNoPath is returned when a persistent store has no directory.
	ErrNoPath = errors.New("run history path is required")
)

const runPrefix = "run/"

// -----------------------------------------------------------------------------
// Records
// -----------------------------------------------------------------------------

// RunRecord is the persisted form of one suite run.
type RunRecord struct {
	ID          string             `json:"id"`
	Suite       string             `json:"suite"`
	CreatedAt   time.Time          `json:"created_at"`
	Grouped     bool               `json:"grouped"`
	Table       string             `json:"table"`
	Entries     []Entry            `json:"entries"`
	Diagnostics []DiagnosticRecord `json:"diagnostics,omitempty"`
}

// Entry is one persisted unit result.
type Entry struct {
	Name       string `json:"name"`
	Unit       string `json:"unit"`
	Output     string `json:"output"`
	ReturnType string `json:"return_type"`
	Nanos      int64  `json:"nanos"`
	Ticks      int64  `json:"ticks"`
	Order      *int   `json:"order,omitempty"`
	Arguments  string `json:"arguments,omitempty"`
}

// DiagnosticRecord is one persisted diagnostic.
type DiagnosticRecord struct {
	Unit    string `json:"unit,omitempty"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// TotalNanos sums the elapsed time of every entry.
func (r *RunRecord) TotalNanos() int64 {
	var total int64
	for _, e := range r.Entries {
		total += e.Nanos
	}
	return total
}

// NewRecord snapshots a container and its rendered table.
func NewRecord(c *results.Container, rendered string, grouped bool) *RunRecord {
	rec := &RunRecord{
		Suite:   c.UID(),
		Grouped: grouped,
		Table:   rendered,
	}

	for _, r := range c.Results() {
		e := Entry{
			Name:       r.Name,
			Output:     r.Output(),
			ReturnType: r.ReturnType,
			Nanos:      r.Time.Nanos,
			Ticks:      r.Time.Ticks(),
		}
		if r.Origin != nil {
			e.Unit = r.Origin.Template()
		}
		if order, ok := r.Order(); ok {
			e.Order = &order
		}
		if r.Injected != nil {
			e.Arguments = r.Injected.String()
		}
		rec.Entries = append(rec.Entries, e)
	}

	for _, d := range c.Diagnostics() {
		msg := ""
		if d.Err != nil {
			msg = d.Err.Error()
		}
		rec.Diagnostics = append(rec.Diagnostics, DiagnosticRecord{
			Unit:    d.Unit,
			Stage:   string(d.Stage),
			Message: msg,
		})
	}
	return rec
}

// -----------------------------------------------------------------------------
// RunStore
// -----------------------------------------------------------------------------

// Options selects where run history lives.
type Options struct {
	// Path is the history directory, created with 0750 if missing.
	// Required unless InMemory.
	Path string

	// InMemory keeps history in RAM for the life of the store.
	InMemory bool

	// SyncWrites makes every Save durable before it returns.
	SyncWrites bool
}

// RunStore persists run records, one JSON value per run under "run/<id>".
//
// Thread Safety: Safe for concurrent use.
type RunStore struct {
	db     *badger.DB
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// OpenRunStore opens the history database described by opts. logger
// receives store events and BadgerDB's warnings and errors; nil means
// slog.Default. Close releases the database.
func OpenRunStore(opts Options, logger *slog.Logger) (*RunStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	bopts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if opts.Path == "" {
			return nil, ErrNoPath
		}
		if err := os.MkdirAll(opts.Path, 0750); err != nil {
			return nil, fmt.Errorf("create run history directory %s: %w", opts.Path, err)
		}
	}
	bopts = bopts.
		WithSyncWrites(opts.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLog{logger.With(slog.String("component", "badger"))})

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", opts.Path, err)
	}

	s := &RunStore{db: db, logger: logger, now: time.Now}
	if !opts.InMemory {
		s.path = opts.Path
	}
	return s, nil
}

// Path returns the history directory, or "" for an in-memory store.
func (s *RunStore) Path() string {
	return s.path
}

// Close closes the database.
func (s *RunStore) Close() error {
	return s.db.Close()
}

func (s *RunStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(fn)
}

func (s *RunStore) view(ctx context.Context, fn func(txn *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(fn)
}

// Save assigns an ID and creation time to rec and persists it.
//
// Outputs:
//
//	string - The new run ID.
//	error  - ErrNilRecord, or a storage failure.
func (s *RunStore) Save(ctx context.Context, rec *RunRecord) (string, error) {
	if rec == nil {
		return "", ErrNilRecord
	}

	rec.ID = uuid.NewString()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode run: %w", err)
	}

	err = s.update(ctx, func(txn *badger.Txn) error {
		return txn.Set(runKey(rec.ID), data)
	})
	if err != nil {
		return "", fmt.Errorf("save run %s: %w", rec.ID, err)
	}

	s.logger.Debug("run saved",
		slog.String("id", rec.ID),
		slog.String("suite", rec.Suite),
		slog.Int("entries", len(rec.Entries)),
	)
	return rec.ID, nil
}

// Get loads the run with id.
func (s *RunStore) Get(ctx context.Context, id string) (*RunRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	var rec RunRecord
	err := s.view(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(runKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrRunNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return &rec, nil
}

// List returns runs newest first. A non-empty suite filters by suite
// name; a positive limit caps the number returned.
func (s *RunStore) List(ctx context.Context, suite string, limit int) ([]*RunRecord, error) {
	var out []*RunRecord
	prefix := []byte(runPrefix)

	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec RunRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				s.logger.Warn("skipping unreadable run",
					slog.String("key", string(it.Item().Key())),
					slog.String("error", err.Error()),
				)
				continue
			}
			if suite != "" && !strings.EqualFold(rec.Suite, suite) {
				continue
			}
			out = append(out, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	slices.SortFunc(out, func(a, b *RunRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes the run with id.
func (s *RunStore) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	err := s.update(ctx, func(txn *badger.Txn) error {
		return txn.Delete(runKey(id))
	})
	if err != nil {
		return fmt.Errorf("delete run %s: %w", id, err)
	}
	return nil
}

func runKey(id string) []byte {
	return []byte(runPrefix + id)
}

// badgerLog forwards BadgerDB's warnings and errors. Its info and debug
// chatter (compactions, value log replay) is dropped.
type badgerLog struct {
	logger *slog.Logger
}

func (b badgerLog) Errorf(format string, args ...any) {
	b.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (b badgerLog) Warningf(format string, args ...any) {
	b.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (badgerLog) Infof(string, ...any)  {}
func (badgerLog) Debugf(string, ...any) {}
