// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package runner executes benchmark suites: discovery, one warmup pass and
// one timed invocation per unit and parameter set.
//
// Unit invocations never run concurrently. Only the timed call sits between
// the start and end marks; argument production, name templating, tracing
// and metrics all happen outside it.
package runner

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/microbench/services/microbench/results"
	"github.com/AleutianAI/microbench/services/microbench/suite"
	"github.com/AleutianAI/microbench/services/microbench/telemetry"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNilContext is returned when a nil context is provided.
	ErrNilContext = errors.New("context must not be nil")

	// ErrUnitPanicked wraps a panic raised by a unit invocation.
	ErrUnitPanicked = errors.New("unit panicked")

	// ErrSourcePanicked wraps a panic raised by a parameter source.
	ErrSourcePanicked = errors.New("parameter source panicked")
)

// -----------------------------------------------------------------------------
// Options
// -----------------------------------------------------------------------------

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithSink sets the telemetry sink. Nil is ignored.
func WithSink(sink telemetry.Sink) Option {
	return func(r *Runner) {
		if sink != nil {
			r.sink = sink
		}
	}
}

// WithWarmup enables or disables the warmup pass. Enabled by default.
func WithWarmup(enabled bool) Option {
	return func(r *Runner) {
		r.warmup = enabled
	}
}

// -----------------------------------------------------------------------------
// Runner
// -----------------------------------------------------------------------------

// Runner measures benchmark suites.
//
// Thread Safety: Safe for concurrent use across different suites. Running
// several suites at once skews their timings; callers wanting clean numbers
// run one Measure at a time.
type Runner struct {
	logger *slog.Logger
	sink   telemetry.Sink
	warmup bool
}

// New creates a runner. It logs to slog.Default() and reports to a no-op
// sink unless configured otherwise.
func New(opts ...Option) *Runner {
	r := &Runner{
		logger: slog.Default(),
		sink:   telemetry.NewNoOpSink(),
		warmup: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetLogger replaces the runner's logger. Nil is ignored.
func (r *Runner) SetLogger(logger *slog.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Measure runs one suite.
//
// Description:
//
//	Rejects suites without the benchmark marker, discovers the measurable
//	units, runs a warmup pass on its own instance and then measures every
//	unit on a fresh instance. Each unit is invoked once, or once per
//	Arguments its parameter source produces. Failures local to a unit or
//	a parameter set become diagnostics on the container; they never abort
//	the run.
//
// Inputs:
//
//	ctx - Checked between invocations, never inside a timed region.
//	b   - The suite to measure.
//
// Outputs:
//
//	*results.Container - The results; partial when ctx is cancelled.
//	error              - suite.ErrNotBenchmark, a failure to construct the
//	                     measurement instance, or ctx.Err().
//
// Example:
//
//	c, err := runner.New().Measure(ctx, mySuite)
//	if err != nil {
//	    return fmt.Errorf("measure: %w", err)
//	}
//	fmt.Println(table.FromContainer(c))
func (r *Runner) Measure(ctx context.Context, b suite.Benchmark) (*results.Container, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}
	if err := suite.Validate(b); err != nil {
		return nil, fmt.Errorf("measure: %w", err)
	}

	name := b.Name()
	ctx, span := startSuiteSpan(ctx, name)
	defer span.End()
	started := time.Now()

	units, err := suite.Discover(ctx, b)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "discovery failed")
		return nil, fmt.Errorf("discover %s: %w", name, err)
	}
	span.SetAttributes(attribute.Int("microbench.units", len(units)))

	container := results.NewContainer(name, b.Columns())

	if r.warmup {
		r.runWarmup(ctx, b, units, container)
	}

	inst, err := b.Instantiate()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "instantiate failed")
		return nil, fmt.Errorf("measure %s: %w", name, err)
	}

	for _, d := range units {
		if err := ctx.Err(); err != nil {
			return r.finish(ctx, span, container, started, err)
		}
		if err := r.measureUnit(ctx, name, inst, d, container); err != nil {
			return r.finish(ctx, span, container, started, err)
		}
	}

	return r.finish(ctx, span, container, started, nil)
}

// MeasureAll measures suites one after another. A failing suite is logged
// and skipped; its error is joined into the returned error.
func (r *Runner) MeasureAll(ctx context.Context, benchmarks ...suite.Benchmark) ([]*results.Container, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	out := make([]*results.Container, 0, len(benchmarks))
	var errs []error
	for _, b := range benchmarks {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		c, err := r.Measure(ctx, b)
		if c != nil {
			out = append(out, c)
		}
		if err != nil {
			name := "<nil>"
			if b != nil {
				name = b.Name()
			}
			r.logger.Warn("suite failed",
				slog.String("suite", name),
				slog.String("error", err.Error()),
			)
			errs = append(errs, err)
		}
	}
	return out, errors.Join(errs...)
}

// runWarmup invokes every unit once per parameter set on its own instance
// and discards the outcomes. A constructor failure abandons warmup only.
func (r *Runner) runWarmup(ctx context.Context, b suite.Benchmark, units []*suite.Declaration, c *results.Container) {
	name := b.Name()
	inst, err := b.Instantiate()
	if err != nil {
		r.report(ctx, c, results.Diagnostic{Suite: name, Stage: results.StageInstantiate, Err: err})
		return
	}

	for _, d := range units {
		if ctx.Err() != nil {
			return
		}
		if !d.Parameterized() {
			if _, _, err := invoke(inst, d, suite.Arguments{}); err != nil {
				r.report(ctx, c, results.Diagnostic{Suite: name, Unit: d.Template(), Stage: results.StageWarmup, Err: err})
			}
			continue
		}

		seq, err := inst.Source(d.SourceName())
		if err != nil {
			r.logger.Debug("warmup skipped unit",
				slog.String("suite", name),
				slog.String("unit", d.Template()),
				slog.String("error", err.Error()),
			)
			continue
		}
		err = drain(seq, func(args suite.Arguments) bool {
			if _, _, err := invoke(inst, d, args); err != nil {
				r.report(ctx, c, results.Diagnostic{Suite: name, Unit: d.Template(), Stage: results.StageWarmup, Err: err})
			}
			return ctx.Err() == nil
		})
		if err != nil {
			r.report(ctx, c, results.Diagnostic{Suite: name, Unit: d.Template(), Stage: results.StageWarmup, Err: err})
		}
	}
}

// measureUnit measures one unit and appends its results. It only returns
// an error for cancellation.
func (r *Runner) measureUnit(ctx context.Context, name string, inst suite.Instance, d *suite.Declaration, c *results.Container) error {
	ctx, span := startUnitSpan(ctx, name, d.Template())
	defer span.End()

	if !d.Parameterized() {
		r.measureOnce(ctx, name, inst, d, d.Template(), nil, c)
		return nil
	}

	seq, err := inst.Source(d.SourceName())
	if err != nil {
		span.RecordError(err)
		r.report(ctx, c, results.Diagnostic{Suite: name, Unit: d.Template(), Stage: results.StageSource, Err: err})
		return nil
	}

	index := 0
	err = drain(seq, func(args suite.Arguments) bool {
		resolved := ResolveName(d.Template(), index, d.ParamNames(), args)
		index++
		r.measureOnce(ctx, name, inst, d, resolved, &args, c)
		return ctx.Err() == nil
	})
	span.SetAttributes(attribute.Int("microbench.parameter_sets", index))
	if err != nil {
		span.RecordError(err)
		r.report(ctx, c, results.Diagnostic{Suite: name, Unit: d.Template(), Stage: results.StageSource, Err: err})
	}
	return ctx.Err()
}

// measureOnce performs one timed invocation.
func (r *Runner) measureOnce(ctx context.Context, name string, inst suite.Instance, d *suite.Declaration, resolved string, args *suite.Arguments, c *results.Container) {
	in := suite.Arguments{}
	if args != nil {
		in = *args
	}

	value, elapsed, err := invoke(inst, d, in)

	if err != nil {
		r.report(ctx, c, results.Diagnostic{Suite: name, Unit: resolved, Stage: results.StageMeasure, Err: err})
		return
	}

	c.AddResult(&results.UnitResult{
		Name:       resolved,
		Value:      value,
		ReturnType: d.ReturnType(),
		Time:       suite.FromDuration(elapsed),
		Injected:   args,
		Origin:     d,
	})

	if err := r.sink.RecordResult(ctx, &telemetry.ResultData{Suite: name, Unit: d.Template(), Elapsed: elapsed}); err != nil {
		r.logger.Debug("telemetry sink rejected result", slog.String("error", err.Error()))
	}
}

// invoke times a single call. The clock starts after the arguments are
// ready and stops right after the call returns or panics.
func invoke(inst suite.Instance, d *suite.Declaration, args suite.Arguments) (value any, elapsed time.Duration, err error) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			elapsed = time.Since(start)
			value = nil
			err = fmt.Errorf("%w: %v", ErrUnitPanicked, p)
		}
	}()
	value, err = inst.Invoke(d, args)
	elapsed = time.Since(start)
	return value, elapsed, err
}

// drain ranges over seq, recovering a panic raised by the producer itself.
func drain(seq iter.Seq[suite.Arguments], yield func(suite.Arguments) bool) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrSourcePanicked, p)
		}
	}()
	for args := range seq {
		if !yield(args) {
			break
		}
	}
	return nil
}

func (r *Runner) report(ctx context.Context, c *results.Container, d results.Diagnostic) {
	c.AddDiagnostic(d)
	r.logger.Warn("benchmark diagnostic",
		slog.String("suite", d.Suite),
		slog.String("unit", d.Unit),
		slog.String("stage", string(d.Stage)),
		slog.String("error", d.Err.Error()),
	)
	data := &telemetry.DiagnosticData{Suite: d.Suite, Unit: d.Unit, Stage: string(d.Stage), Message: d.Err.Error()}
	if err := r.sink.RecordDiagnostic(ctx, data); err != nil {
		r.logger.Debug("telemetry sink rejected diagnostic", slog.String("error", err.Error()))
	}
}

func (r *Runner) finish(ctx context.Context, span trace.Span, c *results.Container, started time.Time, err error) (*results.Container, error) {
	elapsed := time.Since(started)
	span.SetAttributes(
		attribute.Int("microbench.results", c.Len()),
		attribute.Int("microbench.diagnostics", len(c.Diagnostics())),
	)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "measurement interrupted")
		r.logger.Warn("suite interrupted",
			slog.String("suite", c.UID()),
			slog.Int("results", c.Len()),
			slog.String("error", err.Error()),
		)
		return c, fmt.Errorf("measure %s: %w", c.UID(), err)
	}

	span.SetStatus(codes.Ok, "suite measured")
	r.logger.Info("suite measured",
		slog.String("suite", c.UID()),
		slog.Int("results", c.Len()),
		slog.Int("diagnostics", len(c.Diagnostics())),
		slog.Duration("elapsed", elapsed),
	)
	run := &telemetry.RunData{Suite: c.UID(), Results: c.Len(), Diagnostics: len(c.Diagnostics()), Duration: elapsed}
	if err := r.sink.RecordRun(ctx, run); err != nil {
		r.logger.Debug("telemetry sink rejected run", slog.String("error", err.Error()))
	}
	return c, nil
}
