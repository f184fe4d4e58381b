// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package table renders benchmark results as a fixed-width text table.
//
// # Layout
//
//	<name>
//	-------------------------
//	Name   | Ticks | Result
//	-------------------------
//	add    | 3     | 42
//	concat | 12    | void
//	-------------------------
//
// Column widths are recomputed on every render from the rows being
// rendered. Rows are sorted by explicit order when both compared rows carry
// one, and by a fallback comparator (ascending ticks by default) otherwise.
// With grouping enabled, rows sharing an origin unit collapse into one
// group row whose time is the sum of its members.
//
// # Thread Safety
//
// A Table is not safe for concurrent mutation. Rendering never mutates the
// rows it was given.
package table

import (
	"cmp"
	"errors"
	"fmt"
	"strconv"

	"github.com/AleutianAI/microbench/services/microbench/results"
	"github.com/AleutianAI/microbench/services/microbench/suite"
)

// ErrColumnPosition is returned when a column is inserted outside the
// current column range.
var ErrColumnPosition = errors.New("column position out of range")

// Extractor stringifies one cell of a row.
type Extractor func(results.Row) string

// Comparator orders two rows; negative when a sorts before b.
type Comparator func(a, b results.Row) int

// ByTicks orders rows by ascending elapsed ticks.
func ByTicks(a, b results.Row) int {
	return cmp.Compare(a.Elapsed().Ticks(), b.Elapsed().Ticks())
}

// ExtractorFor returns the cell extractor of a built-in column kind.
func ExtractorFor(kind suite.Column) (Extractor, error) {
	switch kind {
	case suite.ColumnName:
		return func(r results.Row) string { return r.Label() }, nil
	case suite.ColumnTicks:
		return func(r results.Row) string { return strconv.FormatInt(r.Elapsed().Ticks(), 10) }, nil
	case suite.ColumnOutput:
		return func(r results.Row) string { return r.Output() }, nil
	default:
		return nil, fmt.Errorf("unknown column kind %d", kind)
	}
}

type column struct {
	id      int
	title   string
	extract Extractor
}

// Table is a renderable set of rows and column definitions.
type Table struct {
	name    string
	nextID  int
	columns []*column
	data    []results.Row
	grouped bool
	orderBy Comparator
}

// New creates an empty table sorted by ascending ticks.
func New() *Table {
	return &Table{orderBy: ByTicks}
}

// FromContainer builds a table with the container's active columns and
// results. The table name defaults to the container UID.
func FromContainer(c *results.Container) *Table {
	t := New()
	t.name = c.UID()
	for _, spec := range c.Columns() {
		extract, err := ExtractorFor(spec.Kind)
		if err != nil {
			continue
		}
		t.AddColumn(spec.Title, extract)
	}
	t.AddData(c.Rows()...)
	return t
}

// AddColumn appends a column and returns its id.
func (t *Table) AddColumn(title string, extract Extractor) int {
	id, _ := t.InsertColumn(title, extract, len(t.columns))
	return id
}

// InsertColumn inserts a column at position and returns its id. Ids are
// unique within the table and never reused.
func (t *Table) InsertColumn(title string, extract Extractor, position int) (int, error) {
	if position < 0 || position > len(t.columns) {
		return 0, fmt.Errorf("insert %q at %d of %d: %w", title, position, len(t.columns), ErrColumnPosition)
	}
	col := &column{id: t.nextID, title: title, extract: extract}
	t.nextID++

	t.columns = append(t.columns, nil)
	copy(t.columns[position+1:], t.columns[position:])
	t.columns[position] = col
	return col.id, nil
}

// RemoveColumn removes the column with id. It reports whether one was
// removed.
func (t *Table) RemoveColumn(id int) bool {
	for i, col := range t.columns {
		if col.id == id {
			t.columns = append(t.columns[:i], t.columns[i+1:]...)
			return true
		}
	}
	return false
}

// ColumnTitles returns the column headers in display order.
func (t *Table) ColumnTitles() []string {
	titles := make([]string, len(t.columns))
	for i, col := range t.columns {
		titles[i] = col.title
	}
	return titles
}

// AddData appends rows. Nil rows are ignored.
func (t *Table) AddData(rows ...results.Row) {
	for _, r := range rows {
		if r != nil {
			t.data = append(t.data, r)
		}
	}
}

// SetGrouping toggles per-unit grouping.
func (t *Table) SetGrouping(on bool) { t.grouped = on }

// SetName sets the title line.
func (t *Table) SetName(name string) { t.name = name }

// Name returns the title line.
func (t *Table) Name() string { return t.name }

// SetOrderBy sets the fallback comparator. Nil restores ByTicks.
func (t *Table) SetOrderBy(c Comparator) {
	if c == nil {
		c = ByTicks
	}
	t.orderBy = c
}
