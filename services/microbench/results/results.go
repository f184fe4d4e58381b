// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package results holds the output model of a benchmark run.
package results

import (
	"fmt"

	"github.com/AleutianAI/microbench/services/microbench/suite"
)

// Row is the read-only view of one table row.
//
// Both *UnitResult and *GroupResult implement Row.
type Row interface {
	// Label returns the resolved display name.
	Label() string

	// Elapsed returns the measured time.
	Elapsed() suite.Time

	// Output returns the stringified result value.
	Output() string

	// Order returns the explicit priority and whether one is set.
	Order() (int, bool)

	// Unit returns the originating declaration, nil if unknown.
	Unit() *suite.Declaration
}

// -----------------------------------------------------------------------------
// UnitResult
// -----------------------------------------------------------------------------

// UnitResult is the outcome of one successful unit invocation.
type UnitResult struct {
	// Name is the resolved display name.
	Name string

	// Value is what the unit returned; nil for void units.
	Value any

	// ReturnType is the declared return type tag of the origin unit.
	ReturnType string

	// Time is the elapsed time of the invocation.
	Time suite.Time

	// Injected holds the arguments of a parameterized invocation, nil otherwise.
	Injected *suite.Arguments

	// Origin is the declaration that produced this result.
	Origin *suite.Declaration
}

// Result returns the captured value, the literal "void" for a void unit
// that captured nothing, or "" when a value-returning unit returned nil.
func (r *UnitResult) Result() any {
	if r.Value != nil {
		return r.Value
	}
	if r.ReturnType == suite.ReturnVoid {
		return "void"
	}
	return ""
}

// Label implements Row.
func (r *UnitResult) Label() string { return r.Name }

// Elapsed implements Row.
func (r *UnitResult) Elapsed() suite.Time { return r.Time }

// Output implements Row.
func (r *UnitResult) Output() string { return fmt.Sprint(r.Result()) }

// Order implements Row.
func (r *UnitResult) Order() (int, bool) {
	if r.Origin == nil {
		return 0, false
	}
	return r.Origin.OrderValue()
}

// Unit implements Row.
func (r *UnitResult) Unit() *suite.Declaration { return r.Origin }

// String renders the result as a multi-line block.
func (r *UnitResult) String() string {
	return fmt.Sprintf("%s: {\n   Output: %v\n   Return type: %s\n   Ticks: %d\n   Nanos: %d\n}",
		r.Name, r.Value, r.ReturnType, r.Time.Ticks(), r.Time.Nanos)
}

// -----------------------------------------------------------------------------
// GroupResult
// -----------------------------------------------------------------------------

// GroupResult aggregates results sharing one origin unit.
//
// The group's name is its first member's name and its time is the sum of
// all members' times. Its order comes from the origin unit itself.
type GroupResult struct {
	Name    string
	Time    suite.Time
	Origin  *suite.Declaration
	Members []*UnitResult
}

// NewGroup creates an empty group for origin.
func NewGroup(origin *suite.Declaration) *GroupResult {
	return &GroupResult{Origin: origin}
}

// Add folds one member into the group.
func (g *GroupResult) Add(r *UnitResult) {
	if r == nil {
		return
	}
	if len(g.Members) == 0 {
		g.Name = r.Name
	}
	g.Time = g.Time.Add(r.Time)
	g.Members = append(g.Members, r)
}

// Label implements Row.
func (g *GroupResult) Label() string { return g.Name }

// Elapsed implements Row.
func (g *GroupResult) Elapsed() suite.Time { return g.Time }

// Output implements Row. Groups carry no single value.
func (g *GroupResult) Output() string { return "" }

// Order implements Row.
func (g *GroupResult) Order() (int, bool) {
	if g.Origin == nil {
		return 0, false
	}
	return g.Origin.OrderValue()
}

// Unit implements Row.
func (g *GroupResult) Unit() *suite.Declaration { return g.Origin }
