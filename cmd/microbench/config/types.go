// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

// MicrobenchConfig is the on-disk configuration of the microbench CLI.
type MicrobenchConfig struct {
	Log       LogConfig       `yaml:"log"`
	Output    OutputConfig    `yaml:"output"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Storage   StorageConfig   `yaml:"storage"`
}

// LogConfig controls pkg/logging.
type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// OutputConfig controls how result tables are rendered.
type OutputConfig struct {
	// Group folds parameterized rows into one row per unit.
	Group bool `yaml:"group"`
	// Warmup runs every unit once before measuring.
	Warmup bool `yaml:"warmup"`
	// Color forces styled summary lines: auto, always or never.
	Color string `yaml:"color" validate:"omitempty,oneof=auto always never"`
}

// TelemetryConfig selects OpenTelemetry exporters.
type TelemetryConfig struct {
	TraceExporter  string `yaml:"trace_exporter" validate:"omitempty,oneof=none stdout otlp"`
	MetricExporter string `yaml:"metric_exporter" validate:"omitempty,oneof=none stdout prometheus"`
	OTLPEndpoint   string `yaml:"otlp_endpoint" validate:"required_if=TraceExporter otlp"`
	OTLPInsecure   bool   `yaml:"otlp_insecure"`
	// MetricsAddr serves /metrics while suites run when the metric
	// exporter is prometheus.
	MetricsAddr string `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
}

// StorageConfig controls the run history database.
type StorageConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Path     string `yaml:"path" validate:"required_if=Enabled true InMemory false"`
	InMemory bool   `yaml:"in_memory"`
}

// DefaultConfig returns the configuration written on first run.
func DefaultConfig() MicrobenchConfig {
	return MicrobenchConfig{
		Log: LogConfig{
			Level: "info",
		},
		Output: OutputConfig{
			Warmup: true,
			Color:  "auto",
		},
		Telemetry: TelemetryConfig{
			TraceExporter:  "none",
			MetricExporter: "none",
			OTLPEndpoint:   "localhost:4317",
			OTLPInsecure:   true,
			MetricsAddr:    "localhost:9464",
		},
		Storage: StorageConfig{
			Enabled: true,
			Path:    "~/.microbench/history",
		},
	}
}
