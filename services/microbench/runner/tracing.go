// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package runner

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// The runner only traces. Metrics for the same events go through the
// telemetry.Sink so each one is counted once.
var tracer = otel.Tracer("microbench.runner")

func startSuiteSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "runner.Runner.Measure",
		trace.WithAttributes(
			attribute.String("microbench.suite", name),
		),
	)
}

func startUnitSpan(ctx context.Context, suiteName, template string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "runner.Runner.measureUnit",
		trace.WithAttributes(
			attribute.String("microbench.suite", suiteName),
			attribute.String("microbench.unit", template),
		),
	)
}
