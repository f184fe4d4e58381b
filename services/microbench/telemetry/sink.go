// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNilContext is returned when a nil context is provided.
	ErrNilContext = errors.New("context must not be nil")

	// ErrNilData is returned when nil data is provided to a recording method.
	ErrNilData = errors.New("data must not be nil")

	// ErrSinkClosed is returned when attempting to use a closed sink.
	ErrSinkClosed = errors.New("sink has been closed")

	// ErrNoSinks is returned when creating a composite sink with no children.
	ErrNoSinks = errors.New("at least one sink is required")
)

// -----------------------------------------------------------------------------
// Interface
// -----------------------------------------------------------------------------

// Sink receives telemetry for benchmark runs.
//
// Description:
//
//	The runner reports every measured result, every diagnostic and one
//	summary per completed run. Implementations decide the export format.
//
// Thread Safety: All implementations must be safe for concurrent use.
type Sink interface {
	// RecordResult records one measured invocation.
	RecordResult(ctx context.Context, data *ResultData) error

	// RecordDiagnostic records one non-fatal failure.
	RecordDiagnostic(ctx context.Context, data *DiagnosticData) error

	// RecordRun records the summary of a finished run.
	RecordRun(ctx context.Context, data *RunData) error

	// Flush exports buffered data.
	Flush(ctx context.Context) error

	// Close releases resources. Idempotent.
	Close() error
}

// -----------------------------------------------------------------------------
// Data Types
// -----------------------------------------------------------------------------

// ResultData describes one measured invocation.
type ResultData struct {
	// Suite is the suite identifier.
	Suite string

	// Unit is the unit's name template, not the resolved name, so that
	// parameterized units share one label value.
	Unit string

	// Elapsed is the measured time.
	Elapsed time.Duration
}

// DiagnosticData describes one non-fatal failure.
type DiagnosticData struct {
	Suite   string
	Unit    string
	Stage   string
	Message string
}

// RunData summarizes one finished run.
type RunData struct {
	Suite       string
	Results     int
	Diagnostics int
	Duration    time.Duration
}

// -----------------------------------------------------------------------------
// Composite Sink
// -----------------------------------------------------------------------------

// CompositeSink forwards telemetry to several sinks. One child's failure
// does not stop the others; errors are joined.
type CompositeSink struct {
	sinks  []Sink
	mu     sync.RWMutex
	closed bool
}

// NewCompositeSink creates a sink forwarding to every non-nil child.
func NewCompositeSink(sinks ...Sink) (*CompositeSink, error) {
	valid := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return nil, ErrNoSinks
	}
	return &CompositeSink{sinks: valid}, nil
}

func (c *CompositeSink) children() ([]Sink, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrSinkClosed
	}
	return c.sinks, nil
}

func (c *CompositeSink) each(fn func(Sink) error) error {
	sinks, err := c.children()
	if err != nil {
		return err
	}
	var errs []error
	for _, s := range sinks {
		if err := fn(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordResult implements Sink.
func (c *CompositeSink) RecordResult(ctx context.Context, data *ResultData) error {
	if ctx == nil {
		return ErrNilContext
	}
	if data == nil {
		return ErrNilData
	}
	return c.each(func(s Sink) error { return s.RecordResult(ctx, data) })
}

// RecordDiagnostic implements Sink.
func (c *CompositeSink) RecordDiagnostic(ctx context.Context, data *DiagnosticData) error {
	if ctx == nil {
		return ErrNilContext
	}
	if data == nil {
		return ErrNilData
	}
	return c.each(func(s Sink) error { return s.RecordDiagnostic(ctx, data) })
}

// RecordRun implements Sink.
func (c *CompositeSink) RecordRun(ctx context.Context, data *RunData) error {
	if ctx == nil {
		return ErrNilContext
	}
	if data == nil {
		return ErrNilData
	}
	return c.each(func(s Sink) error { return s.RecordRun(ctx, data) })
}

// Flush flushes every child concurrently.
func (c *CompositeSink) Flush(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	sinks, err := c.children()
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	errChan := make(chan error, len(sinks))
	for _, s := range sinks {
		wg.Add(1)
		go func(s Sink) {
			defer wg.Done()
			if err := s.Flush(ctx); err != nil {
				errChan <- err
			}
		}(s)
	}
	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close closes every child. Idempotent.
func (c *CompositeSink) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sinks := c.sinks
	c.mu.Unlock()

	var errs []error
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// -----------------------------------------------------------------------------
// No-Op Sink
// -----------------------------------------------------------------------------

// NoOpSink discards all data. It is the runner's default.
type NoOpSink struct{}

// NewNoOpSink creates a sink that accepts and discards everything.
func NewNoOpSink() *NoOpSink {
	return &NoOpSink{}
}

// RecordResult discards the data.
func (n *NoOpSink) RecordResult(ctx context.Context, data *ResultData) error {
	if ctx == nil {
		return ErrNilContext
	}
	if data == nil {
		return ErrNilData
	}
	return nil
}

// RecordDiagnostic discards the data.
func (n *NoOpSink) RecordDiagnostic(ctx context.Context, data *DiagnosticData) error {
	if ctx == nil {
		return ErrNilContext
	}
	if data == nil {
		return ErrNilData
	}
	return nil
}

// RecordRun discards the data.
func (n *NoOpSink) RecordRun(ctx context.Context, data *RunData) error {
	if ctx == nil {
		return ErrNilContext
	}
	if data == nil {
		return ErrNilData
	}
	return nil
}

// Flush does nothing.
func (n *NoOpSink) Flush(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// Close does nothing.
func (n *NoOpSink) Close() error {
	return nil
}

var (
	_ Sink = (*CompositeSink)(nil)
	_ Sink = (*NoOpSink)(nil)
)
