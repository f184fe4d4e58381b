// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package table

import (
	"cmp"
	"runtime"
	"slices"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/microbench/services/microbench/results"
	"github.com/AleutianAI/microbench/services/microbench/suite"
)

const separator = "| "

// Rows returns the rows as they will be rendered: grouped when grouping is
// on, then sorted.
func (t *Table) Rows() []results.Row {
	rows := slices.Clone(t.data)
	if t.grouped {
		rows = group(rows)
	}
	slices.SortStableFunc(rows, t.compare)
	return rows
}

// compare uses the explicit order when both rows carry one and the orders
// differ; otherwise it falls through to the fallback comparator.
func (t *Table) compare(a, b results.Row) int {
	ao, aok := a.Order()
	bo, bok := b.Order()
	if aok && bok && ao != bo {
		return cmp.Compare(ao, bo)
	}
	return t.orderBy(a, b)
}

// Widths returns the display width of every column for the current data.
func (t *Table) Widths() []int {
	_, widths := t.layout(t.Rows())
	return widths
}

// String renders the table.
func (t *Table) String() string {
	return t.Render()
}

// Render produces the table text.
//
// Description:
//
//	Writes the name line, a dash border sized to the header row, the header,
//	another border, one line per row and a closing border without a
//	trailing newline. An empty table renders a single empty body line.
//
// Outputs:
//
//	string - The rendered table.
func (t *Table) Render() string {
	rows := t.Rows()
	cells, widths := t.layout(rows)

	headers := make([]string, len(t.columns))
	for i, col := range t.columns {
		headers[i] = pad(col.title, widths[i])
	}
	header := strings.Join(headers, separator)
	border := strings.Repeat("-", runewidth.StringWidth(header))

	var b strings.Builder
	b.WriteString(t.name)
	b.WriteString("\n")
	b.WriteString(border)
	b.WriteString("\n")
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(border)
	b.WriteString("\n")

	line := make([]string, len(t.columns))
	for r := range rows {
		if r > 0 {
			b.WriteString("\n")
		}
		for c := range t.columns {
			line[c] = pad(cells[c][r], widths[c])
		}
		b.WriteString(strings.Join(line, separator))
	}
	b.WriteString("\n")
	b.WriteString(border)
	return b.String()
}

// layout stringifies every cell and computes each column's width as the
// widest of its header and cells, plus one. Columns are processed
// concurrently; each worker writes only its own column.
func (t *Table) layout(rows []results.Row) ([][]string, []int) {
	cells := make([][]string, len(t.columns))
	widths := make([]int, len(t.columns))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for c, col := range t.columns {
		g.Go(func() error {
			values := make([]string, len(rows))
			width := runewidth.StringWidth(col.title)
			for r, row := range rows {
				values[r] = col.extract(row)
				width = max(width, runewidth.StringWidth(values[r]))
			}
			cells[c] = values
			widths[c] = width + 1
			return nil
		})
	}
	_ = g.Wait()
	return cells, widths
}

func pad(value string, width int) string {
	return runewidth.FillRight(value, width)
}

// group partitions unit results by origin and folds each partition into a
// GroupResult. Partitions are folded concurrently and returned in the order
// their first member appeared. Rows that are not unit results pass through.
func group(rows []results.Row) []results.Row {
	type partition struct {
		origin  *suite.Declaration
		members []*results.UnitResult
		passed  results.Row
	}

	var parts []*partition
	index := make(map[*suite.Declaration]*partition)
	for _, row := range rows {
		unit, ok := row.(*results.UnitResult)
		if !ok {
			parts = append(parts, &partition{passed: row})
			continue
		}
		p, seen := index[unit.Origin]
		if !seen {
			p = &partition{origin: unit.Origin}
			index[unit.Origin] = p
			parts = append(parts, p)
		}
		p.members = append(p.members, unit)
	}

	out := make([]results.Row, len(parts))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, p := range parts {
		g.Go(func() error {
			if p.passed != nil {
				out[i] = p.passed
				return nil
			}
			gr := results.NewGroup(p.origin)
			for _, m := range p.members {
				gr.Add(m)
			}
			out[i] = gr
			return nil
		})
	}
	_ = g.Wait()
	return out
}
