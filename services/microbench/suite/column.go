// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package suite

// Column is the closed set of built-in result columns.
type Column int

const (
	// ColumnName renders the resolved unit name.
	ColumnName Column = iota

	// ColumnTicks renders elapsed ticks as a decimal integer.
	ColumnTicks

	// ColumnOutput renders the unit result.
	ColumnOutput
)

// Columns lists every built-in column in display order.
var Columns = []Column{ColumnName, ColumnTicks, ColumnOutput}

// String returns the column kind name.
func (c Column) String() string {
	switch c {
	case ColumnName:
		return "NAME"
	case ColumnTicks:
		return "TICKS"
	case ColumnOutput:
		return "OUTPUT"
	default:
		return "UNKNOWN"
	}
}

// DefaultTitle returns the header used when the suite does not override it.
func (c Column) DefaultTitle() string {
	switch c {
	case ColumnName:
		return "Name"
	case ColumnTicks:
		return "Ticks"
	case ColumnOutput:
		return "Result"
	default:
		return ""
	}
}

// ColumnSpec is the per-suite configuration of one built-in column.
type ColumnSpec struct {
	Kind   Column
	Title  string
	Active bool
}

// DefaultColumns returns every built-in column, active, with default titles.
func DefaultColumns() []ColumnSpec {
	specs := make([]ColumnSpec, len(Columns))
	for i, kind := range Columns {
		specs[i] = ColumnSpec{Kind: kind, Title: kind.DefaultTitle(), Active: true}
	}
	return specs
}
