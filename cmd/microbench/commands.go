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
	"github.com/spf13/cobra"

	"github.com/AleutianAI/microbench/services/microbench/registry"
)

// newRootCmd builds the command tree over reg.
func newRootCmd(reg *registry.Registry) *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "microbench",
		Short: "Run micro-benchmark suites and render timing tables",
		Long: `microbench measures registered benchmark suites. Each unit is timed
once per parameter set and results are printed as a text table sorted by
explicit order and then by elapsed ticks (100ns each).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default ~/.microbench/microbench.yaml)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flags.color, "color", "", "styled summary lines: auto, always, never")

	// withApp wraps a command body with app setup and teardown.
	withApp := func(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp(flags, reg, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() {
				if cerr := a.close(); cerr != nil && err == nil {
					err = cerr
				}
			}()
			return fn(cmd, a, args)
		}
	}

	var runOpts runOptions
	runCmd := &cobra.Command{
		Use:   "run [suite...]",
		Short: "Measure suites (all registered suites when none are named)",
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			return a.run(cmd.Context(), args, runOpts.resolve(cmd, a.cfg))
		}),
	}
	runCmd.Flags().BoolVar(&runOpts.group, "group", false, "fold parameterized rows into one row per unit")
	runCmd.Flags().BoolVar(&runOpts.noWarmup, "no-warmup", false, "skip the warmup pass")
	runCmd.Flags().BoolVar(&runOpts.noStore, "no-store", false, "do not save the run to history")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered suites",
		Args:  cobra.NoArgs,
		RunE: withApp(func(cmd *cobra.Command, a *app, _ []string) error {
			return a.list(cmd.Context())
		}),
	}

	var historyLimit int
	historyCmd := &cobra.Command{
		Use:   "history [suite]",
		Short: "Show saved runs, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			suiteName := ""
			if len(args) == 1 {
				suiteName = args[0]
			}
			return a.history(cmd.Context(), suiteName, historyLimit)
		}),
	}
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum runs to show (0 for all)")

	showCmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			return a.show(cmd.Context(), args[0])
		}),
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Remove a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app, args []string) error {
			return a.delete(cmd.Context(), args[0])
		}),
	}

	rootCmd.AddCommand(runCmd, listCmd, historyCmd, showCmd, deleteCmd)
	return rootCmd
}
