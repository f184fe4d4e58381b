// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/AleutianAI/microbench/cmd/microbench/config"
	"github.com/AleutianAI/microbench/pkg/logging"
	"github.com/AleutianAI/microbench/services/microbench/registry"
	"github.com/AleutianAI/microbench/services/microbench/storage"
	"github.com/AleutianAI/microbench/services/microbench/telemetry"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	logLevel   string
	color      string
}

// app holds the resources a command needs. Build one per invocation with
// newApp and release it with close.
type app struct {
	cfg      *config.MicrobenchConfig
	logger   *logging.Logger
	registry *registry.Registry
	out      io.Writer
	style    palette

	errOut    io.Writer
	telemetry *telemetry.Providers
	store     *storage.RunStore
	metrics   *http.Server
}

// newApp loads configuration and wires logging. Telemetry and storage are
// started lazily by startTelemetry and openStore.
func newApp(flags *globalFlags, reg *registry.Registry, out, errOut io.Writer) (*app, error) {
	cfg, err := config.Load(flags.configPath, errOut)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if flags.color != "" {
		cfg.Output.Color = flags.color
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Log.Dir,
		Service: "microbench",
		JSON:    cfg.Log.JSON,
		Output:  errOut,
	})

	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		out:      out,
		style:    newPalette(colorEnabled(cfg.Output.Color, out)),
		errOut:   errOut,
	}
	return a, nil
}

// startTelemetry initialises tracing and metrics for a run over suites
// and returns the sink the runner reports to. Later calls reuse the
// providers from the first.
func (a *app) startTelemetry(ctx context.Context, suites []string) (telemetry.Sink, error) {
	if a.telemetry != nil {
		return a.telemetry.Sink(), nil
	}

	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = version
	tcfg.Suites = suites
	tcfg.TraceExporter = a.cfg.Telemetry.TraceExporter
	tcfg.MetricExporter = a.cfg.Telemetry.MetricExporter
	tcfg.OTLPEndpoint = a.cfg.Telemetry.OTLPEndpoint
	tcfg.OTLPInsecure = a.cfg.Telemetry.OTLPInsecure
	tcfg.Output = a.errOut

	p, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	a.telemetry = p
	a.logger.Debug("telemetry started",
		slog.String("run_id", p.RunID()),
		slog.String("metrics", tcfg.MetricExporter),
		slog.String("traces", tcfg.TraceExporter),
	)

	if h := p.MetricsHandler(); h != nil && a.cfg.Telemetry.MetricsAddr != "" {
		if err := a.serveMetrics(a.cfg.Telemetry.MetricsAddr, h); err != nil {
			return nil, err
		}
	}
	return p.Sink(), nil
}

// serveMetrics exposes /metrics on addr until close.
func (a *app) serveMetrics(addr string, handler http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	a.metrics = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := a.metrics.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", slog.String("error", err.Error()))
		}
	}()
	a.logger.Info("serving metrics", slog.String("addr", ln.Addr().String()))
	return nil
}

// openStore opens the run history database once. It returns nil when
// storage is disabled.
func (a *app) openStore() (*storage.RunStore, error) {
	if a.store != nil || !a.cfg.Storage.Enabled {
		return a.store, nil
	}

	opts := storage.Options{InMemory: a.cfg.Storage.InMemory, SyncWrites: true}
	if !opts.InMemory {
		opts.Path = config.ExpandPath(a.cfg.Storage.Path)
	}

	store, err := storage.OpenRunStore(opts, a.logger.Slog())
	if err != nil {
		return nil, fmt.Errorf("open run history: %w", err)
	}
	a.store = store
	return a.store, nil
}

// close releases everything newApp, startTelemetry and openStore acquired.
func (a *app) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if a.metrics != nil {
		errs = append(errs, a.metrics.Shutdown(ctx))
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx))
	}
	errs = append(errs, a.logger.Close())
	return errors.Join(errs...)
}
