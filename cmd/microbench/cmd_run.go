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
	"log/slog"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/microbench/cmd/microbench/config"
	"github.com/AleutianAI/microbench/services/microbench/results"
	"github.com/AleutianAI/microbench/services/microbench/runner"
	"github.com/AleutianAI/microbench/services/microbench/storage"
	"github.com/AleutianAI/microbench/services/microbench/suite"
	"github.com/AleutianAI/microbench/services/microbench/table"
)

// runOptions are the run command's flags.
type runOptions struct {
	group    bool
	noWarmup bool
	noStore  bool
}

// runSettings are the effective settings after merging flags over config.
type runSettings struct {
	group  bool
	warmup bool
	store  bool
}

func (o runOptions) resolve(cmd *cobra.Command, cfg *config.MicrobenchConfig) runSettings {
	s := runSettings{
		group:  cfg.Output.Group,
		warmup: cfg.Output.Warmup,
		store:  cfg.Storage.Enabled,
	}
	if cmd.Flags().Changed("group") {
		s.group = o.group
	}
	if o.noWarmup {
		s.warmup = false
	}
	if o.noStore {
		s.store = false
	}
	return s
}

// run measures the named suites one at a time and prints each table as
// soon as it is ready. Suite failures are reported and the remaining
// suites still run unless ctx is done.
func (a *app) run(ctx context.Context, names []string, s runSettings) error {
	benchmarks, err := a.registry.Resolve(names...)
	if err != nil {
		return err
	}
	if len(benchmarks) == 0 {
		fmt.Fprintln(a.out, a.style.Muted("no suites registered"))
		return nil
	}

	ids := make([]string, len(benchmarks))
	for i, b := range benchmarks {
		ids[i] = b.Name()
	}
	sink, err := a.startTelemetry(ctx, ids)
	if err != nil {
		return err
	}

	var store *storage.RunStore
	if s.store {
		if store, err = a.openStore(); err != nil {
			return err
		}
	}

	r := runner.New(
		runner.WithLogger(a.logger.Slog()),
		runner.WithSink(sink),
		runner.WithWarmup(s.warmup),
	)

	var errs []error
	for i, b := range benchmarks {
		if i > 0 {
			fmt.Fprintln(a.out)
		}

		c, err := r.Measure(ctx, b)
		if c != nil {
			rendered := a.printRun(c, s.group)
			if store != nil {
				a.saveRun(ctx, store, c, rendered, s.group)
			}
		}
		if err != nil {
			fmt.Fprintln(a.out, a.style.Fail(err.Error()))
			errs = append(errs, err)
			if ctx.Err() != nil {
				break
			}
		}
	}
	return errors.Join(errs...)
}

// printRun writes the table for c followed by a summary and any
// diagnostics, and returns the plain table text.
func (a *app) printRun(c *results.Container, group bool) string {
	t := table.FromContainer(c)
	t.SetGrouping(group)
	rendered := t.Render()
	fmt.Fprintln(a.out, rendered)

	var total suite.Time
	for _, r := range c.Results() {
		total = total.Add(r.Time)
	}
	diags := c.Diagnostics()

	summary := fmt.Sprintf("%s: %d %s in %s (%s ticks)",
		c.UID(),
		c.Len(), plural(c.Len(), "result", "results"),
		total.Duration(),
		humanize.Comma(total.Ticks()),
	)
	if len(diags) == 0 {
		fmt.Fprintln(a.out, a.style.OK(summary))
		return rendered
	}

	summary += fmt.Sprintf(", %d %s", len(diags), plural(len(diags), "diagnostic", "diagnostics"))
	fmt.Fprintln(a.out, a.style.Warn(summary))
	for _, d := range diags {
		fmt.Fprintln(a.out, "  "+a.style.Muted(d.Error()))
	}
	return rendered
}

func (a *app) saveRun(ctx context.Context, store *storage.RunStore, c *results.Container, rendered string, group bool) {
	id, err := store.Save(ctx, storage.NewRecord(c, rendered, group))
	if err != nil {
		a.logger.Warn("run not saved",
			slog.String("suite", c.UID()),
			slog.String("error", err.Error()),
		)
		return
	}
	fmt.Fprintln(a.out, a.style.Muted("saved as "+id))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
