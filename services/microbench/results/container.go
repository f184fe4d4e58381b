// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package results

import (
	"strings"
	"sync"

	"github.com/AleutianAI/microbench/services/microbench/suite"
)

// Container is the full output of one benchmark run.
//
// Description:
//
//	Holds the suite identifier, the active column configuration and the
//	results in insertion order. Diagnostics are kept beside the results and
//	never show up as table data. The container is append-only.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Container struct {
	mu          sync.RWMutex
	uid         string
	columns     []suite.ColumnSpec
	results     []*UnitResult
	diagnostics []Diagnostic
}

// NewContainer creates a container for the suite uid. Only active specs
// are kept; their order is the column order.
func NewContainer(uid string, columns []suite.ColumnSpec) *Container {
	c := &Container{uid: uid}
	for _, spec := range columns {
		if spec.Active {
			c.AddColumn(spec.Kind, spec.Title)
		}
	}
	return c
}

// UID returns the suite identifier.
func (c *Container) UID() string { return c.uid }

// AddColumn activates kind with the given title. Re-adding a kind updates
// its title in place.
func (c *Container) AddColumn(kind suite.Column, title string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.columns {
		if c.columns[i].Kind == kind {
			c.columns[i].Title = title
			return
		}
	}
	c.columns = append(c.columns, suite.ColumnSpec{Kind: kind, Title: title, Active: true})
}

// Columns returns the active columns in order.
func (c *Container) Columns() []suite.ColumnSpec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]suite.ColumnSpec(nil), c.columns...)
}

// AddResult appends r. Nil results are ignored.
func (c *Container) AddResult(r *UnitResult) {
	if r == nil {
		return
	}
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
}

// Results returns the results in insertion order.
func (c *Container) Results() []*UnitResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*UnitResult(nil), c.results...)
}

// Rows returns the results as table rows.
func (c *Container) Rows() []Row {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rows := make([]Row, len(c.results))
	for i, r := range c.results {
		rows[i] = r
	}
	return rows
}

// Len returns the number of results.
func (c *Container) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.results)
}

// AddDiagnostic records a non-fatal failure.
func (c *Container) AddDiagnostic(d Diagnostic) {
	c.mu.Lock()
	c.diagnostics = append(c.diagnostics, d)
	c.mu.Unlock()
}

// Diagnostics returns the recorded failures in order.
func (c *Container) Diagnostics() []Diagnostic {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Diagnostic(nil), c.diagnostics...)
}

// String dumps every result.
func (c *Container) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var b strings.Builder
	b.WriteString("Measure results:\n")
	b.WriteString("UID: '" + c.uid + "'\n")
	b.WriteString("Results:\n")
	for _, r := range c.results {
		b.WriteString(r.String())
		b.WriteString("\n")
	}
	return b.String()
}
