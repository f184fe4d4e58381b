// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/AleutianAI/microbench/services/microbench/storage"
)

// errStorageDisabled is returned by history commands when storage is off.
var errStorageDisabled = errors.New("run history is disabled (storage.enabled: false)")

func (a *app) requireStore() (*storage.RunStore, error) {
	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errStorageDisabled
	}
	return store, nil
}

// history lists saved runs, newest first.
func (a *app) history(ctx context.Context, suiteName string, limit int) error {
	store, err := a.requireStore()
	if err != nil {
		return err
	}

	runs, err := store.List(ctx, suiteName, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.out, a.style.Muted("no saved runs"))
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.ID,
			r.Suite,
			strconv.Itoa(len(r.Entries)),
			strconv.Itoa(len(r.Diagnostics)),
			time.Duration(r.TotalNanos()).String(),
			humanize.Time(r.CreatedAt),
		})
	}
	fmt.Fprintln(a.out, a.grid([]string{"ID", "Suite", "Results", "Diagnostics", "Total", "When"}, rows))
	return nil
}

// show prints a saved run's table exactly as it was rendered.
func (a *app) show(ctx context.Context, id string) error {
	store, err := a.requireStore()
	if err != nil {
		return err
	}

	rec, err := store.Get(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, a.style.Title(fmt.Sprintf("Run %s", rec.ID)))
	fmt.Fprintln(a.out, a.style.Muted(fmt.Sprintf("suite %s, %s (%s), grouped=%t",
		rec.Suite,
		humanize.Time(rec.CreatedAt),
		rec.CreatedAt.Local().Format(time.RFC3339),
		rec.Grouped,
	)))
	fmt.Fprintln(a.out, rec.Table)

	for _, d := range rec.Diagnostics {
		line := fmt.Sprintf("%s [%s]: %s", rec.Suite, d.Stage, d.Message)
		if d.Unit != "" {
			line = fmt.Sprintf("%s/%s [%s]: %s", rec.Suite, d.Unit, d.Stage, d.Message)
		}
		fmt.Fprintln(a.out, a.style.Warn(line))
	}
	return nil
}

func (a *app) delete(ctx context.Context, id string) error {
	store, err := a.requireStore()
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, a.style.OK("deleted "+id))
	return nil
}
