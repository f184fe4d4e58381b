// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry wires OpenTelemetry providers and result sinks for
// benchmark runs.
//
// Init builds everything one CLI invocation reports through: the tracer
// provider behind the runner's spans, the metrics Sink the runner feeds
// and, for the Prometheus exporter, the registry and /metrics handler
// that expose it. Every span and metric carries the run ID as a resource
// attribute so that traces and scrapes from one invocation line up.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"slices"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
)

// ErrUnknownExporter is returned for an unsupported exporter name.
var ErrUnknownExporter = errors.New("unknown exporter")

// Exporter names accepted by Config.
const (
	ExporterNone       = "none"
	ExporterStdout     = "stdout"
	ExporterOTLP       = "otlp"
	ExporterPrometheus = "prometheus"
)

// Resource attribute keys describing one invocation.
const (
	AttrRunID  = "microbench.run_id"
	AttrSuites = "microbench.suites"
)

const meterName = "microbench.runner"

// Config controls what one invocation reports and where.
type Config struct {
	ServiceName    string `json:"service_name"`
	ServiceVersion string `json:"service_version"`
	Environment    string `json:"environment"`

	// RunID identifies this invocation. Empty means a fresh UUID.
	RunID string `json:"run_id"`

	// Suites are the suite IDs the invocation will measure.
	Suites []string `json:"suites"`

	// TraceExporter is "otlp", "stdout" or "none".
	TraceExporter string `json:"trace_exporter"`

	// MetricExporter is "prometheus", "stdout" or "none".
	MetricExporter string `json:"metric_exporter"`

	OTLPEndpoint string `json:"otlp_endpoint"`
	OTLPInsecure bool   `json:"otlp_insecure"`

	// Prometheus configures the sink used by the Prometheus exporter.
	// Nil means DefaultPrometheusConfig. Its Registry is ignored; Init
	// always creates a dedicated one.
	Prometheus *PrometheusConfig `json:"-"`

	// Output receives stdout exporter data. Defaults to os.Stderr so the
	// rendered tables on stdout stay clean.
	Output io.Writer `json:"-"`
}

// DefaultConfig returns a configuration with exporters disabled.
// MICROBENCH_ENV, OTEL_TRACES_EXPORTER, OTEL_METRICS_EXPORTER and
// OTEL_EXPORTER_OTLP_ENDPOINT override the defaults.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "microbench",
		ServiceVersion: "1.0.0",
		Environment:    getEnvOr("MICROBENCH_ENV", "development"),
		TraceExporter:  getEnvOr("OTEL_TRACES_EXPORTER", ExporterNone),
		MetricExporter: getEnvOr("OTEL_METRICS_EXPORTER", ExporterNone),
		OTLPEndpoint:   getEnvOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTLPInsecure:   true,
	}
}

// Providers owns the telemetry of one invocation.
type Providers struct {
	runID    string
	sink     Sink
	registry *prometheus.Registry
	handler  http.Handler
	closers  []func(context.Context) error
}

// Init installs the global tracer and meter providers and builds the
// metrics sink for one invocation.
//
// Description:
//
//	Builds a resource carrying the service, the run ID and the suites to
//	be measured, then configures the requested exporters. Metrics take
//	exactly one path per exporter:
//
//	  prometheus - A PrometheusSink on a dedicated registry. The OTel
//	               Prometheus reader shares that registry and publishes
//	               the resource as target_info; MetricsHandler serves both.
//	  stdout     - A MeterSink on a meter provider with a periodic
//	               stdout reader.
//	  none       - A NoOpSink.
//
// Inputs:
//
//	ctx - Used for exporter connections.
//	cfg - Provider configuration.
//
// Outputs:
//
//	*Providers - Call Shutdown on exit.
//	error      - ErrUnknownExporter or an exporter construction failure.
//
// Example:
//
//	p, err := telemetry.Init(ctx, cfg)
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer p.Shutdown(context.Background())
//	r := runner.New(runner.WithSink(p.Sink()))
func Init(ctx context.Context, cfg Config) (*Providers, error) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}

	p := &Providers{runID: cfg.RunID, sink: NewNoOpSink()}
	res := newResource(cfg)

	if cfg.TraceExporter != "" && cfg.TraceExporter != ExporterNone {
		tp, err := newTracerProvider(ctx, cfg, res)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		otel.SetTracerProvider(tp)
		p.closers = append(p.closers, tp.Shutdown)
	}

	if cfg.MetricExporter != "" && cfg.MetricExporter != ExporterNone {
		if err := p.initMetrics(cfg, res); err != nil {
			_ = p.Shutdown(ctx)
			return nil, fmt.Errorf("init metrics: %w", err)
		}
	}

	return p, nil
}

func newResource(cfg Config) *resource.Resource {
	suites := slices.Clone(cfg.Suites)
	slices.Sort(suites)
	return resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
		attribute.String(AttrRunID, cfg.RunID),
		attribute.StringSlice(AttrSuites, suites),
	)
}

func newTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*trace.TracerProvider, error) {
	var exporter trace.SpanExporter
	var err error

	switch cfg.TraceExporter {
	case ExporterOTLP:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exporter, err = otlptracegrpc.New(ctx, opts...)
	case ExporterStdout:
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(cfg.Output), stdouttrace.WithPrettyPrint())
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.TraceExporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.AlwaysSample()),
	), nil
}

func (p *Providers) initMetrics(cfg Config, res *resource.Resource) error {
	switch cfg.MetricExporter {
	case ExporterPrometheus:
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())

		pcfg := DefaultPrometheusConfig()
		if cfg.Prometheus != nil {
			copied := *cfg.Prometheus
			pcfg = &copied
		}
		pcfg.Registry = reg
		sink, err := NewPrometheusSink(pcfg)
		if err != nil {
			return err
		}
		p.registry = reg
		p.sink = sink
		p.handler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})

		exporter, err := promexporter.New(promexporter.WithRegisterer(reg))
		if err != nil {
			return fmt.Errorf("create prometheus exporter: %w", err)
		}
		mp := metric.NewMeterProvider(metric.WithResource(res), metric.WithReader(exporter))
		otel.SetMeterProvider(mp)
		p.closers = append(p.closers, mp.Shutdown)
		return nil

	case ExporterStdout:
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(cfg.Output), stdoutmetric.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("create stdout metric exporter: %w", err)
		}
		mp := metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(metric.NewPeriodicReader(exporter)),
		)
		otel.SetMeterProvider(mp)
		p.closers = append(p.closers, mp.Shutdown)

		sink, err := NewMeterSink(mp.Meter(meterName))
		if err != nil {
			return err
		}
		p.sink = sink
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.MetricExporter)
	}
}

// RunID returns the ID attached to every span and metric.
func (p *Providers) RunID() string { return p.runID }

// Sink returns the metrics sink for the runner. Never nil.
func (p *Providers) Sink() Sink { return p.sink }

// Registry returns the Prometheus registry, or nil unless the Prometheus
// exporter is enabled.
func (p *Providers) Registry() *prometheus.Registry { return p.registry }

// MetricsHandler returns the /metrics handler, or nil unless the
// Prometheus exporter is enabled.
func (p *Providers) MetricsHandler() http.Handler { return p.handler }

// Shutdown flushes and closes the sink, then the providers in reverse
// order of creation.
func (p *Providers) Shutdown(ctx context.Context) error {
	var errs []error
	if err := p.sink.Flush(ctx); err != nil && !errors.Is(err, ErrSinkClosed) {
		errs = append(errs, err)
	}
	errs = append(errs, p.sink.Close())
	for _, fn := range slices.Backward(p.closers) {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
