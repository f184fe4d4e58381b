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
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestInit_None(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.TraceExporter = ExporterNone
	cfg.MetricExporter = ExporterNone

	p, err := Init(ctx, cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if _, ok := p.Sink().(*NoOpSink); !ok {
		t.Errorf("Sink() = %T, want *NoOpSink", p.Sink())
	}
	if p.MetricsHandler() != nil || p.Registry() != nil {
		t.Error("no metrics handler expected without the prometheus exporter")
	}
	if p.RunID() == "" {
		t.Error("RunID should default to a fresh ID")
	}
	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestInit_Stdout(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	cfg := DefaultConfig()
	cfg.TraceExporter = ExporterStdout
	cfg.MetricExporter = ExporterStdout
	cfg.RunID = "run-stdout"
	cfg.Output = &buf

	p, err := Init(ctx, cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if _, ok := p.Sink().(*MeterSink); !ok {
		t.Fatalf("Sink() = %T, want *MeterSink", p.Sink())
	}
	if err := p.Sink().RecordRun(ctx, &RunData{Suite: "strings", Duration: time.Millisecond}); err != nil {
		t.Fatalf("RecordRun() error = %v", err)
	}
	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"microbench.runs", "run-stdout"} {
		if !strings.Contains(out, want) {
			t.Errorf("stdout export missing %q", want)
		}
	}
}

func TestInit_Prometheus(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.TraceExporter = ExporterNone
	cfg.MetricExporter = ExporterPrometheus
	cfg.RunID = "run-42"
	cfg.Suites = []string{"strings", "maps"}

	p, err := Init(ctx, cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer p.Shutdown(ctx)

	if _, ok := p.Sink().(*PrometheusSink); !ok {
		t.Fatalf("Sink() = %T, want *PrometheusSink", p.Sink())
	}
	if err := p.Sink().RecordResult(ctx, &ResultData{Suite: "strings", Unit: "concat", Elapsed: time.Microsecond}); err != nil {
		t.Fatalf("RecordResult() error = %v", err)
	}
	if n, err := testutil.GatherAndCount(p.Registry(), "microbench_runner_unit_invocations_total"); err != nil || n != 1 {
		t.Errorf("invocation series = %d (err %v), want 1", n, err)
	}

	srv := httptest.NewServer(p.MetricsHandler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	scrape := string(body)

	for _, want := range []string{
		`microbench_runner_unit_invocations_total{suite="strings",unit="concat"} 1`,
		"target_info",
		`microbench_run_id="run-42"`,
		"go_goroutines",
	} {
		if !strings.Contains(scrape, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
	if strings.Contains(scrape, "microbench_unit_duration_seconds") {
		t.Error("unit durations must only be exported by the sink")
	}
}

func TestInit_PrometheusConfigOverride(t *testing.T) {
	ctx := context.Background()
	pcfg := DefaultPrometheusConfig()
	pcfg.Subsystem = "nightly"

	cfg := DefaultConfig()
	cfg.TraceExporter = ExporterNone
	cfg.MetricExporter = ExporterPrometheus
	cfg.Prometheus = pcfg

	p, err := Init(ctx, cfg)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer p.Shutdown(ctx)

	_ = p.Sink().RecordRun(ctx, &RunData{Suite: "s"})
	if n, _ := testutil.GatherAndCount(p.Registry(), "microbench_nightly_runs_total"); n != 1 {
		t.Errorf("runs_total series under custom subsystem = %d, want 1", n)
	}
	if pcfg.Registry != nil {
		t.Error("Init must not mutate the caller's PrometheusConfig")
	}
}

func TestInit_UnknownExporter(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.TraceExporter = "zipkin"
	if _, err := Init(ctx, cfg); !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("error = %v, want ErrUnknownExporter", err)
	}

	cfg.TraceExporter = ExporterNone
	cfg.MetricExporter = "carrier-pigeon"
	if _, err := Init(ctx, cfg); !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("error = %v, want ErrUnknownExporter", err)
	}
}

func TestNewResource(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RunID = "abc"
	cfg.Suites = []string{"b", "a"}

	res := newResource(cfg)
	got := make(map[string]string)
	for _, kv := range res.Attributes() {
		got[string(kv.Key)] = kv.Value.Emit()
	}

	if got[AttrRunID] != "abc" {
		t.Errorf("%s = %q, want abc", AttrRunID, got[AttrRunID])
	}
	if got[AttrSuites] != `["a","b"]` {
		t.Errorf("%s = %q, want sorted suites", AttrSuites, got[AttrSuites])
	}
	if got["service.name"] != "microbench" {
		t.Errorf("service.name = %q", got["service.name"])
	}
	if cfg.Suites[0] != "b" {
		t.Error("newResource must not reorder the caller's slice")
	}
}

func TestMeterSink(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	sink, err := NewMeterSink(mp.Meter(meterName))
	if err != nil {
		t.Fatalf("NewMeterSink() error = %v", err)
	}

	ctx := context.Background()
	_ = sink.RecordResult(ctx, &ResultData{Suite: "s", Unit: "u", Elapsed: time.Microsecond})
	_ = sink.RecordResult(ctx, &ResultData{Suite: "s", Unit: "u", Elapsed: 2 * time.Microsecond})
	_ = sink.RecordDiagnostic(ctx, &DiagnosticData{Suite: "s", Stage: "measure"})
	_ = sink.RecordRun(ctx, &RunData{Suite: "s", Duration: time.Millisecond})

	if err := sink.RecordResult(ctx, nil); !errors.Is(err, ErrNilData) {
		t.Errorf("nil data error = %v, want ErrNilData", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	sums := make(map[string]int64)
	histograms := make(map[string]uint64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					sums[m.Name] += dp.Value
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					histograms[m.Name] += dp.Count
				}
			}
		}
	}

	if sums["microbench.unit.invocations"] != 2 {
		t.Errorf("invocations = %d, want 2", sums["microbench.unit.invocations"])
	}
	if histograms["microbench.unit.duration"] != 2 {
		t.Errorf("duration samples = %d, want 2", histograms["microbench.unit.duration"])
	}
	if sums["microbench.diagnostics"] != 1 || sums["microbench.runs"] != 1 {
		t.Errorf("diagnostics = %d, runs = %d, want 1 and 1", sums["microbench.diagnostics"], sums["microbench.runs"])
	}

	if err := sink.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := sink.RecordRun(ctx, &RunData{}); !errors.Is(err, ErrSinkClosed) {
		t.Errorf("RecordRun after close = %v, want ErrSinkClosed", err)
	}
	if _, err := NewMeterSink(nil); err == nil {
		t.Error("NewMeterSink(nil) should fail")
	}
}
