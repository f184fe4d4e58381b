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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/microbench/services/microbench/suite"
)

func declare(t *testing.T) (*suite.Declaration, *suite.Declaration) {
	t.Helper()
	s := suite.New[int]("results", nil)
	value := s.Unit("value", func(int, suite.Arguments) (any, error) { return 1, nil }).Order(4)
	action := s.Action("action", func(int, suite.Arguments) error { return nil })
	return value, action
}

func TestUnitResult_Result(t *testing.T) {
	value, action := declare(t)

	tests := []struct {
		name   string
		result *UnitResult
		want   any
		output string
	}{
		{
			name:   "captured value",
			result: &UnitResult{Value: 42, ReturnType: suite.ReturnAny, Origin: value},
			want:   42,
			output: "42",
		},
		{
			name:   "void unit",
			result: &UnitResult{ReturnType: suite.ReturnVoid, Origin: action},
			want:   "void",
			output: "void",
		},
		{
			name:   "nil from value unit",
			result: &UnitResult{ReturnType: suite.ReturnAny, Origin: value},
			want:   "",
			output: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.Result())
			assert.Equal(t, tt.output, tt.result.Output())
		})
	}
}

func TestUnitResult_Order(t *testing.T) {
	value, action := declare(t)

	order, ok := (&UnitResult{Origin: value}).Order()
	assert.True(t, ok)
	assert.Equal(t, 4, order)

	_, ok = (&UnitResult{Origin: action}).Order()
	assert.False(t, ok)

	_, ok = (&UnitResult{}).Order()
	assert.False(t, ok)
}

func TestGroupResult_Fold(t *testing.T) {
	value, _ := declare(t)

	members := []*UnitResult{
		{Name: "value-0", Time: suite.Time{Nanos: 150}, Origin: value},
		{Name: "value-1", Time: suite.Time{Nanos: 250}, Origin: value},
		{Name: "value-2", Time: suite.Time{Nanos: 1000}, Origin: value},
	}

	g := NewGroup(value)
	for _, m := range members {
		g.Add(m)
	}
	g.Add(nil)

	var sum int64
	for _, m := range members {
		sum += m.Time.Nanos
	}

	assert.Equal(t, "value-0", g.Label())
	assert.Equal(t, sum, g.Elapsed().Nanos)
	assert.Equal(t, int64(14), g.Elapsed().Ticks())
	assert.Len(t, g.Members, len(members))
	assert.Equal(t, members, g.Members)
	assert.Equal(t, "", g.Output())
	assert.Same(t, value, g.Unit())

	order, ok := g.Order()
	assert.True(t, ok)
	assert.Equal(t, 4, order)
}

func TestContainer(t *testing.T) {
	value, action := declare(t)

	cols := suite.DefaultColumns()
	cols[2].Active = false
	cols[1].Title = "100ns"

	c := NewContainer("results", cols)
	assert.Equal(t, "results", c.UID())
	require.Len(t, c.Columns(), 2)
	assert.Equal(t, "100ns", c.Columns()[1].Title)

	c.AddColumn(suite.ColumnOutput, "Out")
	c.AddColumn(suite.ColumnName, "Unit")
	got := c.Columns()
	require.Len(t, got, 3)
	assert.Equal(t, "Unit", got[0].Title)
	assert.Equal(t, suite.ColumnOutput, got[2].Kind)

	first := &UnitResult{Name: "first", Value: 1, Origin: value, Time: suite.Time{Nanos: 300}}
	second := &UnitResult{Name: "second", ReturnType: suite.ReturnVoid, Origin: action}
	c.AddResult(first)
	c.AddResult(nil)
	c.AddResult(second)

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []*UnitResult{first, second}, c.Results())
	rows := c.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "first", rows[0].Label())

	boom := errors.New("boom")
	c.AddDiagnostic(Diagnostic{Suite: "results", Unit: "value", Stage: StageMeasure, Err: boom})
	diags := c.Diagnostics()
	require.Len(t, diags, 1)
	assert.ErrorIs(t, diags[0], boom)
	assert.Equal(t, "results/value [measure]: boom", diags[0].Error())

	dump := c.String()
	assert.Contains(t, dump, "UID: 'results'")
	assert.Contains(t, dump, "first: {")
	assert.Contains(t, dump, "Ticks: 3")
	assert.Contains(t, dump, "Nanos: 300")
}

func TestDiagnostic_Error(t *testing.T) {
	d := Diagnostic{Suite: "s", Stage: StageInstantiate, Err: errors.New("no state")}
	assert.Equal(t, "s [instantiate]: no state", d.Error())
}
