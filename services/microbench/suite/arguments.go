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

import (
	"fmt"
	"strings"
)

// Arguments is an ordered tuple of opaque values passed positionally to a
// unit invocation.
//
// The zero value is an empty tuple.
type Arguments struct {
	values []any
}

// Args builds an Arguments tuple from the given values.
//
// Example:
//
//	args := suite.Args(7, "seven")
//	v, ok := args.Get(1) // "seven", true
func Args(values ...any) Arguments {
	copied := make([]any, len(values))
	copy(copied, values)
	return Arguments{values: copied}
}

// Get returns the value at index. Out-of-range indexes, negative ones
// included, report absent instead of panicking.
func (a Arguments) Get(index int) (any, bool) {
	if index < 0 || index >= len(a.values) {
		return nil, false
	}
	return a.values[index], true
}

// Len returns the number of values in the tuple.
func (a Arguments) Len() int {
	return len(a.values)
}

// Values returns a copy of the underlying values.
func (a Arguments) Values() []any {
	copied := make([]any, len(a.values))
	copy(copied, a.values)
	return copied
}

// String renders the tuple as "(v1, v2, ...)".
func (a Arguments) String() string {
	parts := make([]string, len(a.values))
	for i, v := range a.values {
		parts[i] = fmt.Sprint(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
