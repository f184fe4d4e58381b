// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/microbench/services/microbench/results"
	"github.com/AleutianAI/microbench/services/microbench/suite"
)

func newStore(t *testing.T) *RunStore {
	t.Helper()
	store, err := OpenRunStore(Options{InMemory: true}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleContainer() *results.Container {
	s := suite.New[int]("strings", nil)
	concat := s.Unit("concat-$i", func(int, suite.Arguments) (any, error) { return nil, nil }).Order(2)
	noop := s.Action("noop", func(int, suite.Arguments) error { return nil })

	c := results.NewContainer("strings", suite.DefaultColumns())
	args := suite.Args(10)
	c.AddResult(&results.UnitResult{Name: "concat-0", Value: "ab", ReturnType: suite.ReturnAny, Time: suite.Time{Nanos: 1234}, Injected: &args, Origin: concat})
	c.AddResult(&results.UnitResult{Name: "noop", ReturnType: suite.ReturnVoid, Time: suite.Time{Nanos: 100}, Origin: noop})
	c.AddDiagnostic(results.Diagnostic{Suite: "strings", Unit: "split", Stage: results.StageMeasure, Err: errors.New("boom")})
	return c
}

func TestNewRecord(t *testing.T) {
	rec := NewRecord(sampleContainer(), "rendered", true)

	assert.Equal(t, "strings", rec.Suite)
	assert.True(t, rec.Grouped)
	assert.Equal(t, "rendered", rec.Table)
	require.Len(t, rec.Entries, 2)

	first := rec.Entries[0]
	assert.Equal(t, "concat-0", first.Name)
	assert.Equal(t, "concat-$i", first.Unit)
	assert.Equal(t, "ab", first.Output)
	assert.Equal(t, int64(12), first.Ticks)
	require.NotNil(t, first.Order)
	assert.Equal(t, 2, *first.Order)
	assert.Equal(t, "(10)", first.Arguments)

	second := rec.Entries[1]
	assert.Equal(t, "void", second.Output)
	assert.Nil(t, second.Order)

	require.Len(t, rec.Diagnostics, 1)
	assert.Equal(t, DiagnosticRecord{Unit: "split", Stage: "measure", Message: "boom"}, rec.Diagnostics[0])
	assert.Equal(t, int64(1334), rec.TotalNanos())
}

func TestRunStore_SaveGetDelete(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	rec := NewRecord(sampleContainer(), "table text", false)
	id, err := store.Save(ctx, rec)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "table text", got.Table)
	assert.Equal(t, rec.Entries, got.Entries)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))

	require.NoError(t, store.Delete(ctx, id))
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, store.Delete(ctx, id), ErrRunNotFound)
}

func TestRunStore_Errors(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, nil)
	assert.ErrorIs(t, err, ErrNilRecord)

	_, err = store.Get(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidID)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = store.Save(cancelled, &RunRecord{Suite: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunStore_List(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, name := range []string{"alpha", "beta", "alpha"} {
		rec := &RunRecord{Suite: name, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		_, err := store.Save(ctx, rec)
		require.NoError(t, err)
	}

	all, err := store.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, base.Add(2*time.Minute), all[0].CreatedAt)
	assert.Equal(t, base, all[2].CreatedAt)

	alpha, err := store.List(ctx, "ALPHA", 0)
	require.NoError(t, err)
	assert.Len(t, alpha, 2)

	limited, err := store.List(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "alpha", limited[0].Suite)
}

func TestRunStore_Persistent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "history")
	cfg := Options{Path: dir, SyncWrites: true}

	store, err := OpenRunStore(cfg, nil)
	require.NoError(t, err)
	id, err := store.Save(context.Background(), &RunRecord{Suite: "disk"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := OpenRunStore(cfg, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "disk", got.Suite)
	assert.Equal(t, dir, reopened.Path())
}

func TestOpenRunStore_Options(t *testing.T) {
	_, err := OpenRunStore(Options{}, nil)
	assert.ErrorIs(t, err, ErrNoPath)

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))
	_, err = OpenRunStore(Options{Path: filepath.Join(blocker, "history")}, nil)
	assert.Error(t, err)

	mem, err := OpenRunStore(Options{InMemory: true, Path: "ignored"}, nil)
	require.NoError(t, err)
	defer mem.Close()
	assert.Empty(t, mem.Path())
}

func TestBadgerLog(t *testing.T) {
	var buf bytes.Buffer
	log := badgerLog{logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}

	log.Infof("replaying value log %d\n", 3)
	log.Debugf("compaction done")
	assert.Empty(t, buf.String())

	log.Warningf("disk nearly full: %s\n", "93%")
	log.Errorf("write failed")
	out := buf.String()
	assert.Contains(t, out, `level=WARN msg="disk nearly full: 93%"`)
	assert.Contains(t, out, `level=ERROR msg="write failed"`)
}
