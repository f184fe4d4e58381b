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
	"errors"
	"fmt"
	"iter"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNotBenchmark is returned when a suite lacks the benchmark marker
	// (a nil suite or an empty identifier).
	ErrNotBenchmark = errors.New("suite is not a benchmark")

	// ErrSourceNotFound is returned when a named parameter source is not
	// declared on the suite.
	ErrSourceNotFound = errors.New("parameter source not found")

	// ErrUnknownUnit is returned when a declaration does not belong to the
	// suite it is invoked on.
	ErrUnknownUnit = errors.New("unit not declared on this suite")

	// ErrNilInstance is returned when invoking through a nil instance.
	ErrNilInstance = errors.New("instance must not be nil")
)

// -----------------------------------------------------------------------------
// Interfaces
// -----------------------------------------------------------------------------

// Benchmark is the non-generic view of a suite consumed by the runner.
type Benchmark interface {
	// Name returns the suite identifier used as the results UID.
	Name() string

	// Description returns a short human-readable summary, possibly empty.
	Description() string

	// Columns returns the built-in column configuration in display order.
	Columns() []ColumnSpec

	// Declarations returns every registered unit in registration order,
	// including ones without the measurable marker.
	Declarations() []*Declaration

	// Instantiate builds a fresh bound instance of the suite state.
	Instantiate() (Instance, error)
}

// Instance is a suite bound to one freshly constructed state value.
type Instance interface {
	// Invoke calls the unit with the given arguments.
	Invoke(d *Declaration, args Arguments) (any, error)

	// Source resolves a named parameter source into a lazy sequence.
	Source(name string) (iter.Seq[Arguments], error)
}

// -----------------------------------------------------------------------------
// Options
// -----------------------------------------------------------------------------

// Option configures a suite at construction time.
type Option func(*options)

type options struct {
	description string
	columns     []ColumnSpec
}

// WithDescription sets the human-readable summary shown by listings.
func WithDescription(text string) Option {
	return func(o *options) {
		o.description = text
	}
}

// WithColumn activates a built-in column and sets its header title.
// An empty title keeps the default.
func WithColumn(kind Column, title string) Option {
	return func(o *options) {
		for i := range o.columns {
			if o.columns[i].Kind != kind {
				continue
			}
			o.columns[i].Active = true
			if title != "" {
				o.columns[i].Title = title
			}
		}
	}
}

// WithoutColumn deactivates a built-in column.
func WithoutColumn(kind Column) Option {
	return func(o *options) {
		for i := range o.columns {
			if o.columns[i].Kind == kind {
				o.columns[i].Active = false
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Suite
// -----------------------------------------------------------------------------

// Suite is an ordered registry of units sharing a bound state of type S.
type Suite[S any] struct {
	name     string
	newState func() (S, error)
	opts     options

	decls   []*Declaration
	units   []func(S, Arguments) (any, error)
	sources map[string]func(S) iter.Seq[Arguments]
}

// New creates a suite identified by name. newState builds the bound state
// for each instantiation; a nil constructor yields the zero value of S.
func New[S any](name string, newState func() (S, error), opts ...Option) *Suite[S] {
	o := options{columns: DefaultColumns()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Suite[S]{
		name:     name,
		newState: newState,
		opts:     o,
		sources:  make(map[string]func(S) iter.Seq[Arguments]),
	}
}

// Unit registers a value-returning unit and returns its declaration for
// further configuration.
func (s *Suite[S]) Unit(template string, fn func(S, Arguments) (any, error)) *Declaration {
	d := &Declaration{
		template:   template,
		returns:    ReturnAny,
		measurable: true,
		index:      len(s.units),
		owner:      s,
	}
	s.decls = append(s.decls, d)
	s.units = append(s.units, fn)
	return d
}

// Action registers a unit that produces no value.
func (s *Suite[S]) Action(template string, fn func(S, Arguments) error) *Declaration {
	d := s.Unit(template, func(state S, args Arguments) (any, error) {
		return nil, fn(state, args)
	})
	d.returns = ReturnVoid
	return d
}

// Source registers a named parameter-source producer. Registering the same
// name twice replaces the earlier producer.
func (s *Suite[S]) Source(name string, producer func(S) iter.Seq[Arguments]) {
	s.sources[name] = producer
}

// Name implements Benchmark.
func (s *Suite[S]) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

// Description implements Benchmark.
func (s *Suite[S]) Description() string {
	if s == nil {
		return ""
	}
	return s.opts.description
}

// Columns implements Benchmark.
func (s *Suite[S]) Columns() []ColumnSpec {
	return append([]ColumnSpec(nil), s.opts.columns...)
}

// Declarations implements Benchmark.
func (s *Suite[S]) Declarations() []*Declaration {
	return append([]*Declaration(nil), s.decls...)
}

// Instantiate implements Benchmark.
func (s *Suite[S]) Instantiate() (Instance, error) {
	var state S
	if s.newState != nil {
		var err error
		state, err = s.newState()
		if err != nil {
			return nil, fmt.Errorf("instantiate %s: %w", s.name, err)
		}
	}
	return &instance[S]{suite: s, state: state}, nil
}

type instance[S any] struct {
	suite *Suite[S]
	state S
}

func (in *instance[S]) Invoke(d *Declaration, args Arguments) (any, error) {
	if in == nil {
		return nil, ErrNilInstance
	}
	if d == nil || d.owner != any(in.suite) || d.index >= len(in.suite.units) {
		return nil, ErrUnknownUnit
	}
	return in.suite.units[d.index](in.state, args)
}

func (in *instance[S]) Source(name string) (iter.Seq[Arguments], error) {
	if in == nil {
		return nil, ErrNilInstance
	}
	producer, ok := in.suite.sources[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrSourceNotFound)
	}
	seq := producer(in.state)
	if seq == nil {
		return func(func(Arguments) bool) {}, nil
	}
	return seq, nil
}

// Validate checks the benchmark marker.
func Validate(b Benchmark) error {
	if b == nil || b.Name() == "" {
		return ErrNotBenchmark
	}
	return nil
}
