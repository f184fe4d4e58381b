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

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterSink records benchmark telemetry through OpenTelemetry instruments.
// Init uses it for the stdout metric exporter; the Prometheus exporter gets
// a PrometheusSink instead, so each event is counted on exactly one path.
//
// Thread Safety: Safe for concurrent use.
type MeterSink struct {
	unitDuration    metric.Float64Histogram
	unitInvocations metric.Int64Counter
	diagnostics     metric.Int64Counter
	runs            metric.Int64Counter
	runDuration     metric.Float64Histogram

	mu     sync.RWMutex
	closed bool
}

// NewMeterSink creates the sink's instruments on meter.
func NewMeterSink(meter metric.Meter) (*MeterSink, error) {
	if meter == nil {
		return nil, errors.New("meter must not be nil")
	}

	s := &MeterSink{}
	var err error

	s.unitDuration, err = meter.Float64Histogram(
		"microbench.unit.duration",
		metric.WithDescription("Measured duration of unit invocations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	s.unitInvocations, err = meter.Int64Counter(
		"microbench.unit.invocations",
		metric.WithDescription("Measured unit invocations"),
	)
	if err != nil {
		return nil, err
	}

	s.diagnostics, err = meter.Int64Counter(
		"microbench.diagnostics",
		metric.WithDescription("Non-fatal failures by stage"),
	)
	if err != nil {
		return nil, err
	}

	s.runs, err = meter.Int64Counter(
		"microbench.runs",
		metric.WithDescription("Completed suite runs"),
	)
	if err != nil {
		return nil, err
	}

	s.runDuration, err = meter.Float64Histogram(
		"microbench.run.duration",
		metric.WithDescription("Wall time of whole suite runs including warmup"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *MeterSink) open() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}
	return nil
}

func (s *MeterSink) check(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return s.open()
}

// RecordResult records the unit duration and counts the invocation.
func (s *MeterSink) RecordResult(ctx context.Context, data *ResultData) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if data == nil {
		return ErrNilData
	}
	attrs := metric.WithAttributes(
		attribute.String("suite", orUnknown(data.Suite)),
		attribute.String("unit", orUnknown(data.Unit)),
	)
	s.unitDuration.Record(ctx, data.Elapsed.Seconds(), attrs)
	s.unitInvocations.Add(ctx, 1, attrs)
	return nil
}

// RecordDiagnostic counts the failure by stage.
func (s *MeterSink) RecordDiagnostic(ctx context.Context, data *DiagnosticData) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if data == nil {
		return ErrNilData
	}
	s.diagnostics.Add(ctx, 1, metric.WithAttributes(
		attribute.String("suite", orUnknown(data.Suite)),
		attribute.String("stage", orUnknown(data.Stage)),
	))
	return nil
}

// RecordRun counts the run and records its wall time.
func (s *MeterSink) RecordRun(ctx context.Context, data *RunData) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	if data == nil {
		return ErrNilData
	}
	attrs := metric.WithAttributes(attribute.String("suite", orUnknown(data.Suite)))
	s.runs.Add(ctx, 1, attrs)
	s.runDuration.Record(ctx, data.Duration.Seconds(), attrs)
	return nil
}

// Flush is a no-op; the meter provider's reader exports on its own
// schedule and on shutdown.
func (s *MeterSink) Flush(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return s.open()
}

// Close stops recording. Idempotent.
func (s *MeterSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ Sink = (*MeterSink)(nil)
