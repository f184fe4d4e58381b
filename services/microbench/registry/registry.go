// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package registry indexes benchmark suites by name so that front ends can
// list them and select which ones to measure.
package registry

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/AleutianAI/microbench/services/microbench/suite"
)

var (
	// ErrNotFound is returned when no suite has the requested name.
	ErrNotFound = errors.New("suite not found")

	// ErrAlreadyRegistered is returned when a name is taken.
	ErrAlreadyRegistered = errors.New("suite already registered")
)

// RegistrationHook is called when a suite is registered or unregistered.
type RegistrationHook func(name string, b suite.Benchmark, registered bool)

// Registry holds benchmark suites keyed by name.
//
// Description:
//
//	Names are matched case-insensitively. List returns suites in name
//	order; Resolve returns them in the order requested.
//
// Thread Safety: Safe for concurrent use via read-write mutex.
type Registry struct {
	mu     sync.RWMutex
	suites map[string]suite.Benchmark
	hooks  []RegistrationHook
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{suites: make(map[string]suite.Benchmark)}
}

// Default is the process-wide registry populated by init functions.
var Default = New()

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Register adds b under its Name.
//
// Outputs:
//   - error: suite.ErrNotBenchmark if b is nil or unnamed,
//     ErrAlreadyRegistered if the name is taken.
//
// Thread Safety: Safe for concurrent use.
func (r *Registry) Register(b suite.Benchmark) error {
	if err := suite.Validate(b); err != nil {
		return err
	}

	name := b.Name()
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.suites[key(name)]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	r.suites[key(name)] = b

	for _, hook := range r.hooks {
		hook(name, b, true)
	}
	return nil
}

// MustRegister registers b and panics on error. Use during initialization.
func (r *Registry) MustRegister(b suite.Benchmark) {
	if err := r.Register(b); err != nil {
		panic(fmt.Sprintf("registry: register: %v", err))
	}
}

// Unregister removes the suite with name.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, exists := r.suites[key(name)]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(r.suites, key(name))

	for _, hook := range r.hooks {
		hook(b.Name(), b, false)
	}
	return nil
}

// Get returns the suite with name.
func (r *Registry) Get(name string) (suite.Benchmark, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.suites[key(name)]
	return b, ok
}

// List returns every suite sorted by name.
func (r *Registry) List() []suite.Benchmark {
	r.mu.RLock()
	out := make([]suite.Benchmark, 0, len(r.suites))
	for _, b := range r.suites {
		out = append(out, b)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b suite.Benchmark) int {
		return strings.Compare(key(a.Name()), key(b.Name()))
	})
	return out
}

// Count returns the number of registered suites.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.suites)
}

// Resolve returns the named suites in the order given, or every suite when
// names is empty. Duplicate names are returned once. All unknown names are
// reported together.
func (r *Registry) Resolve(names ...string) ([]suite.Benchmark, error) {
	if len(names) == 0 {
		return r.List(), nil
	}

	var (
		out     []suite.Benchmark
		missing []string
		seen    = make(map[string]bool, len(names))
	)
	for _, name := range names {
		if seen[key(name)] {
			continue
		}
		seen[key(name)] = true

		b, ok := r.Get(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		out = append(out, b)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, strings.Join(missing, ", "))
	}
	return out, nil
}

// AddHook adds a registration hook.
func (r *Registry) AddHook(hook RegistrationHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, hook)
}
