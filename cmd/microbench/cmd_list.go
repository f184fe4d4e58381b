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
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"

	"github.com/AleutianAI/microbench/services/microbench/suite"
)

// list prints every registered suite with its measurable unit count.
func (a *app) list(ctx context.Context) error {
	benchmarks := a.registry.List()
	if len(benchmarks) == 0 {
		fmt.Fprintln(a.out, a.style.Muted("no suites registered"))
		return nil
	}

	rows := make([][]string, 0, len(benchmarks))
	for _, b := range benchmarks {
		units, err := suite.Discover(ctx, b)
		if err != nil {
			return fmt.Errorf("discover %s: %w", b.Name(), err)
		}
		params := 0
		for _, u := range units {
			if u.Parameterized() {
				params++
			}
		}
		rows = append(rows, []string{
			b.Name(),
			strconv.Itoa(len(units)),
			strconv.Itoa(params),
			b.Description(),
		})
	}

	fmt.Fprintln(a.out, a.grid([]string{"Suite", "Units", "Parameterized", "Description"}, rows))
	return nil
}

// grid renders a bordered listing. Result tables use the table package;
// this is only for command listings.
func (a *app) grid(headers []string, rows [][]string) string {
	t := lgtable.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...)
	if a.style.enabled {
		t = t.BorderStyle(a.style.muted).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == lgtable.HeaderRow {
					return a.style.title.Padding(0, 1)
				}
				return lipgloss.NewStyle().Padding(0, 1)
			})
	} else {
		t = t.StyleFunc(func(int, int) lipgloss.Style {
			return lipgloss.NewStyle().Padding(0, 1)
		})
	}
	return t.Render()
}
