// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package suite

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Discover returns the measurable units of b.
//
// Description:
//
//	Filters the registered declarations down to those carrying the
//	measurable marker. The filter runs on a bounded worker pool; each
//	worker writes only its own slot, so the result is compacted back into
//	registration order. Callers must not rely on that order for execution;
//	result ordering is decided at render time.
//
// Inputs:
//
//	ctx - Cancels the filter early.
//	b   - The benchmark. Must carry the benchmark marker.
//
// Outputs:
//
//	[]*Declaration - Measurable units, possibly empty.
//	error          - ErrNotBenchmark, or ctx.Err() on cancellation.
func Discover(ctx context.Context, b Benchmark) ([]*Declaration, error) {
	if err := Validate(b); err != nil {
		return nil, err
	}

	decls := b.Declarations()
	keep := make([]bool, len(decls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, d := range decls {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			keep[i] = d != nil && d.Measurable()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*Declaration, 0, len(decls))
	for i, d := range decls {
		if keep[i] {
			out = append(out, d)
		}
	}
	return out, nil
}
