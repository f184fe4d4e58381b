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

// Return type tags recorded on a declaration.
const (
	// ReturnVoid marks a unit that produces no value.
	ReturnVoid = "void"

	// ReturnAny is the default tag for value-returning units.
	ReturnAny = "any"
)

// Declaration is the registration record of one unit.
//
// Declarations are created by Suite.Unit and Suite.Action and configured
// through the chained builder methods. The pointer identity of a
// Declaration is the unit identity used for grouping results.
//
// Thread Safety: builder methods must only be called while the suite is
// being assembled. Accessors are safe for concurrent use afterwards.
type Declaration struct {
	template   string
	order      *int
	source     string
	params     []string
	returns    string
	measurable bool

	// index of the callable inside the owning suite.
	index int
	owner any
}

// Order sets the explicit priority used when sorting results.
func (d *Declaration) Order(priority int) *Declaration {
	d.order = &priority
	return d
}

// Source names the parameter-source producer that feeds this unit.
func (d *Declaration) Source(name string) *Declaration {
	d.source = name
	return d
}

// Params sets the formal parameter names, positionally, used for
// "$name" placeholders in the template.
func (d *Declaration) Params(names ...string) *Declaration {
	d.params = append([]string(nil), names...)
	return d
}

// Returns overrides the declared return type tag.
func (d *Declaration) Returns(tag string) *Declaration {
	d.returns = tag
	return d
}

// Disable removes the measurable marker; discovery ignores the unit.
func (d *Declaration) Disable() *Declaration {
	d.measurable = false
	return d
}

// Template returns the display-name template.
func (d *Declaration) Template() string { return d.template }

// OrderValue returns the explicit priority and whether one was set.
func (d *Declaration) OrderValue() (int, bool) {
	if d.order == nil {
		return 0, false
	}
	return *d.order, true
}

// SourceName returns the parameter-source reference, or "" for none.
func (d *Declaration) SourceName() string { return d.source }

// ParamNames returns a copy of the formal parameter names.
func (d *Declaration) ParamNames() []string {
	return append([]string(nil), d.params...)
}

// ReturnType returns the declared return type tag.
func (d *Declaration) ReturnType() string { return d.returns }

// Measurable reports whether the unit carries the measurable marker.
func (d *Declaration) Measurable() bool { return d.measurable }

// Parameterized reports whether the unit is fed by a parameter source.
func (d *Declaration) Parameterized() bool { return d.source != "" }
