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

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrInvalidConfig is returned when the Prometheus configuration is invalid.
	ErrInvalidConfig = errors.New("invalid prometheus configuration")

	// ErrRegistrationFailed is returned when metric registration fails.
	ErrRegistrationFailed = errors.New("metric registration failed")
)

const otherLabel = "_other"

// PrometheusConfig configures the Prometheus sink.
type PrometheusConfig struct {
	// Namespace is the metrics namespace. Required.
	Namespace string

	// Subsystem is the metrics subsystem. Required.
	Subsystem string

	// Registry receives the collectors. Nil means prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// DurationBuckets are the histogram buckets for unit durations, in
	// seconds. Nil means the defaults.
	DurationBuckets []float64

	// MaxLabelCardinality caps distinct values per label; further values
	// are reported as "_other". Default: 1000.
	MaxLabelCardinality int
}

// DefaultPrometheusConfig returns the default configuration.
func DefaultPrometheusConfig() *PrometheusConfig {
	return &PrometheusConfig{
		Namespace: "microbench",
		Subsystem: "runner",
		DurationBuckets: []float64{
			1e-7, 1e-6, 1e-5, 1e-4, 1e-3, 1e-2, 0.1, 1, 10,
		},
		MaxLabelCardinality: 1000,
	}
}

// Validate checks that required fields are set.
func (c *PrometheusConfig) Validate() error {
	if c.Namespace == "" {
		return errors.New("namespace is required")
	}
	if c.Subsystem == "" {
		return errors.New("subsystem is required")
	}
	return nil
}

// PrometheusSink exports benchmark telemetry as Prometheus metrics.
//
// Description:
//
//	Registers its collectors on creation, adopting ones another sink
//	already registered, and unregisters the ones it registered on Close. Label values are tracked
//	per label name and capped at MaxLabelCardinality.
//
// Thread Safety: Safe for concurrent use.
//
// Example:
//
//	sink, err := telemetry.NewPrometheusSink(telemetry.DefaultPrometheusConfig())
//	if err != nil {
//	    return fmt.Errorf("create prometheus sink: %w", err)
//	}
//	defer sink.Close()
type PrometheusSink struct {
	config   *PrometheusConfig
	registry prometheus.Registerer

	unitDuration    *prometheus.HistogramVec
	unitInvocations *prometheus.CounterVec
	diagnostics     *prometheus.CounterVec
	runsTotal       *prometheus.CounterVec
	runResults      *prometheus.GaugeVec
	runDuration     *prometheus.HistogramVec

	collectors []prometheus.Collector

	mu     sync.RWMutex
	closed bool

	labelMu        sync.RWMutex
	seenLabels     map[string]map[string]struct{}
	maxCardinality int
}

// NewPrometheusSink creates and registers the sink's collectors.
//
// Inputs:
//
//	config - Must not be nil and must validate.
//
// Outputs:
//
//	*PrometheusSink - Never nil on success.
//	error           - ErrInvalidConfig or ErrRegistrationFailed. A collector
//	                  that is already registered with the same descriptor is
//	                  adopted instead of failing.
func NewPrometheusSink(config *PrometheusConfig) (*PrometheusSink, error) {
	if config == nil {
		return nil, ErrInvalidConfig
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	cfg := *config
	if cfg.DurationBuckets == nil {
		cfg.DurationBuckets = DefaultPrometheusConfig().DurationBuckets
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	maxCard := cfg.MaxLabelCardinality
	if maxCard <= 0 {
		maxCard = 1000
	}

	s := &PrometheusSink{
		config:         &cfg,
		registry:       registry,
		seenLabels:     make(map[string]map[string]struct{}),
		maxCardinality: maxCard,
	}

	s.unitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "unit_duration_seconds",
			Help:      "Measured duration of unit invocations in seconds",
			Buckets:   cfg.DurationBuckets,
		},
		[]string{"suite", "unit"},
	)
	s.unitInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "unit_invocations_total",
			Help:      "Total measured unit invocations",
		},
		[]string{"suite", "unit"},
	)
	s.diagnostics = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "diagnostics_total",
			Help:      "Total non-fatal failures by stage",
		},
		[]string{"suite", "stage"},
	)
	s.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "runs_total",
			Help:      "Total completed suite runs",
		},
		[]string{"suite"},
	)
	s.runResults = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "run_results",
			Help:      "Number of results produced by the last run",
		},
		[]string{"suite"},
	)
	s.runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "run_duration_seconds",
			Help:      "Wall time of whole suite runs including warmup",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"suite"},
	)

	var err error
	if s.unitDuration, err = adopt(s, s.unitDuration); err != nil {
		s.unregister()
		return nil, err
	}
	if s.unitInvocations, err = adopt(s, s.unitInvocations); err != nil {
		s.unregister()
		return nil, err
	}
	if s.diagnostics, err = adopt(s, s.diagnostics); err != nil {
		s.unregister()
		return nil, err
	}
	if s.runsTotal, err = adopt(s, s.runsTotal); err != nil {
		s.unregister()
		return nil, err
	}
	if s.runResults, err = adopt(s, s.runResults); err != nil {
		s.unregister()
		return nil, err
	}
	if s.runDuration, err = adopt(s, s.runDuration); err != nil {
		s.unregister()
		return nil, err
	}

	return s, nil
}

// adopt registers c on the sink's registry. When an identical collector is
// already registered, that one is returned so every sink on the registry
// feeds the same series. Only collectors registered here are unregistered
// on Close.
func adopt[C prometheus.Collector](s *PrometheusSink, c C) (C, error) {
	err := s.registry.Register(c)
	if err == nil {
		s.collectors = append(s.collectors, c)
		return c, nil
	}
	var alreadyErr prometheus.AlreadyRegisteredError
	if errors.As(err, &alreadyErr) {
		if existing, ok := alreadyErr.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, errors.Join(ErrRegistrationFailed, err)
}

func (s *PrometheusSink) open() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}
	return nil
}

// RecordResult observes the unit duration and counts the invocation.
func (s *PrometheusSink) RecordResult(ctx context.Context, data *ResultData) error {
	if ctx == nil {
		return ErrNilContext
	}
	if data == nil {
		return ErrNilData
	}
	if err := s.open(); err != nil {
		return err
	}

	suite := s.sanitizeLabel("suite", orUnknown(data.Suite))
	unit := s.sanitizeLabel("unit", orUnknown(data.Unit))

	s.unitDuration.WithLabelValues(suite, unit).Observe(data.Elapsed.Seconds())
	s.unitInvocations.WithLabelValues(suite, unit).Inc()
	return nil
}

// RecordDiagnostic counts the failure by stage.
func (s *PrometheusSink) RecordDiagnostic(ctx context.Context, data *DiagnosticData) error {
	if ctx == nil {
		return ErrNilContext
	}
	if data == nil {
		return ErrNilData
	}
	if err := s.open(); err != nil {
		return err
	}

	suite := s.sanitizeLabel("suite", orUnknown(data.Suite))
	stage := s.sanitizeLabel("stage", orUnknown(data.Stage))
	s.diagnostics.WithLabelValues(suite, stage).Inc()
	return nil
}

// RecordRun counts the run and records its size and wall time.
func (s *PrometheusSink) RecordRun(ctx context.Context, data *RunData) error {
	if ctx == nil {
		return ErrNilContext
	}
	if data == nil {
		return ErrNilData
	}
	if err := s.open(); err != nil {
		return err
	}

	suite := s.sanitizeLabel("suite", orUnknown(data.Suite))
	s.runsTotal.WithLabelValues(suite).Inc()
	s.runResults.WithLabelValues(suite).Set(float64(data.Results))
	s.runDuration.WithLabelValues(suite).Observe(data.Duration.Seconds())
	return nil
}

// Flush is a no-op; Prometheus is scraped.
func (s *PrometheusSink) Flush(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return s.open()
}

// Close unregisters the collectors. Idempotent.
func (s *PrometheusSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.unregister()
	return nil
}

func (s *PrometheusSink) unregister() {
	for _, c := range s.collectors {
		s.registry.Unregister(c)
	}
	s.collectors = nil
}

// sanitizeLabel caps distinct values per label name at maxCardinality.
func (s *PrometheusSink) sanitizeLabel(labelName, labelValue string) string {
	s.labelMu.RLock()
	seen := s.seenLabels[labelName]
	if seen != nil {
		if _, exists := seen[labelValue]; exists {
			s.labelMu.RUnlock()
			return labelValue
		}
		if len(seen) >= s.maxCardinality {
			s.labelMu.RUnlock()
			return otherLabel
		}
	}
	s.labelMu.RUnlock()

	s.labelMu.Lock()
	defer s.labelMu.Unlock()

	if s.seenLabels[labelName] == nil {
		s.seenLabels[labelName] = make(map[string]struct{})
	}
	if _, exists := s.seenLabels[labelName][labelValue]; exists {
		return labelValue
	}
	if len(s.seenLabels[labelName]) >= s.maxCardinality {
		return otherLabel
	}
	s.seenLabels[labelName][labelValue] = struct{}{}
	return labelValue
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

var _ Sink = (*PrometheusSink)(nil)
