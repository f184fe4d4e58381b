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
	"bytes"
	"context"
	"errors"
	"iter"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/AleutianAI/microbench/services/microbench/results"
	"github.com/AleutianAI/microbench/services/microbench/suite"
	"github.com/AleutianAI/microbench/services/microbench/telemetry"
)

type state struct {
	calls map[string]int
}

func newState() (*state, error) {
	return &state{calls: make(map[string]int)}, nil
}

func seqOf(values ...any) func(*state) iter.Seq[suite.Arguments] {
	return func(*state) iter.Seq[suite.Arguments] {
		return func(yield func(suite.Arguments) bool) {
			for _, v := range values {
				if !yield(suite.Args(v)) {
					return
				}
			}
		}
	}
}

func quietRunner(opts ...Option) *Runner {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return New(append([]Option{WithLogger(logger)}, opts...)...)
}

func names(c *results.Container) []string {
	var out []string
	for _, r := range c.Results() {
		out = append(out, r.Name)
	}
	return out
}

type countingSink struct {
	telemetry.NoOpSink
	mu          sync.Mutex
	results     []*telemetry.ResultData
	diagnostics []*telemetry.DiagnosticData
	runs        []*telemetry.RunData
}

func (s *countingSink) RecordResult(_ context.Context, d *telemetry.ResultData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, d)
	return nil
}

func (s *countingSink) RecordDiagnostic(_ context.Context, d *telemetry.DiagnosticData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diagnostics = append(s.diagnostics, d)
	return nil
}

func (s *countingSink) RecordRun(_ context.Context, d *telemetry.RunData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, d)
	return nil
}

func TestMeasure_SingleUnit(t *testing.T) {
	s := suite.New("arith", newState)
	add := s.Unit("add", func(*state, suite.Arguments) (any, error) { return 40 + 2, nil })

	c, err := quietRunner().Measure(context.Background(), s)
	require.NoError(t, err)

	require.Equal(t, 1, c.Len())
	r := c.Results()[0]
	assert.Equal(t, "add", r.Name)
	assert.Equal(t, 42, r.Result())
	assert.Equal(t, suite.ReturnAny, r.ReturnType)
	assert.GreaterOrEqual(t, r.Time.Nanos, int64(0))
	assert.Nil(t, r.Injected)
	assert.Same(t, add, r.Origin)
	assert.Empty(t, c.Diagnostics())
	assert.Equal(t, "arith", c.UID())
	assert.Len(t, c.Columns(), 3)
}

func TestMeasure_RejectsUnmarkedSuite(t *testing.T) {
	constructed := false
	s := suite.New("", func() (*state, error) {
		constructed = true
		return newState()
	})
	s.Unit("x", func(*state, suite.Arguments) (any, error) { return nil, nil })

	c, err := quietRunner().Measure(context.Background(), s)
	assert.ErrorIs(t, err, suite.ErrNotBenchmark)
	assert.Nil(t, c)
	assert.False(t, constructed)

	_, err = quietRunner().Measure(context.Background(), nil)
	assert.ErrorIs(t, err, suite.ErrNotBenchmark)
}

func TestMeasure_Parameterized(t *testing.T) {
	s := suite.New("params", newState)
	s.Unit("run-$i-$x", func(_ *state, args suite.Arguments) (any, error) {
		v, _ := args.Get(0)
		return v.(int) * 2, nil
	}).Source("xs").Params("x")
	s.Source("xs", seqOf(7, 11, 13))

	c, err := quietRunner().Measure(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, []string{"run-0-7", "run-1-11", "run-2-13"}, names(c))
	res := c.Results()
	assert.Equal(t, 14, res[0].Value)
	require.NotNil(t, res[1].Injected)
	assert.Equal(t, "(11)", res[1].Injected.String())
}

func TestMeasure_MissingSource(t *testing.T) {
	s := suite.New("missing", newState)
	s.Unit("ghost-$i", func(st *state, _ suite.Arguments) (any, error) {
		st.calls["ghost"]++
		return nil, nil
	}).Source("missingProducer")
	s.Unit("ok", func(*state, suite.Arguments) (any, error) { return "fine", nil })

	c, err := quietRunner().Measure(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, []string{"ok"}, names(c))
	diags := c.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, results.StageSource, diags[0].Stage)
	assert.Equal(t, "ghost-$i", diags[0].Unit)
	assert.ErrorIs(t, diags[0], suite.ErrSourceNotFound)
}

func TestMeasure_InvocationFailure(t *testing.T) {
	boom := errors.New("boom")
	s := suite.New("failing", newState)
	s.Unit("item-$i-$n", func(_ *state, args suite.Arguments) (any, error) {
		v, _ := args.Get(0)
		if v.(int) == 2 {
			return nil, boom
		}
		return v, nil
	}).Source("ns").Params("n")
	s.Source("ns", seqOf(1, 2, 3))
	s.Unit("after", func(*state, suite.Arguments) (any, error) { return 1, nil })

	c, err := quietRunner().Measure(context.Background(), s)
	require.NoError(t, err)

	// The counter advances past the failed invocation.
	assert.Equal(t, []string{"item-0-1", "item-2-3", "after"}, names(c))

	diags := c.Diagnostics()
	require.Len(t, diags, 2)
	assert.Equal(t, results.StageWarmup, diags[0].Stage)
	assert.Equal(t, results.StageMeasure, diags[1].Stage)
	assert.Equal(t, "item-1-2", diags[1].Unit)
	assert.ErrorIs(t, diags[1], boom)
}

func TestMeasure_Panics(t *testing.T) {
	s := suite.New("panics", newState)
	s.Unit("explode", func(*state, suite.Arguments) (any, error) { panic("kaboom") })
	s.Unit("stream-$i", func(*state, suite.Arguments) (any, error) { return 1, nil }).Source("bad")
	s.Source("bad", func(*state) iter.Seq[suite.Arguments] {
		return func(yield func(suite.Arguments) bool) {
			if !yield(suite.Args(1)) {
				return
			}
			panic("producer broke")
		}
	})
	s.Unit("survivor", func(*state, suite.Arguments) (any, error) { return "alive", nil })

	c, err := quietRunner(WithWarmup(false)).Measure(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, []string{"stream-0", "survivor"}, names(c))
	diags := c.Diagnostics()
	require.Len(t, diags, 2)
	assert.ErrorIs(t, diags[0], ErrUnitPanicked)
	assert.Equal(t, results.StageMeasure, diags[0].Stage)
	assert.ErrorIs(t, diags[1], ErrSourcePanicked)
	assert.Equal(t, results.StageSource, diags[1].Stage)
}

func TestMeasure_VoidUnit(t *testing.T) {
	s := suite.New("void", newState)
	s.Action("noop", func(*state, suite.Arguments) error { return nil })

	c, err := quietRunner().Measure(context.Background(), s)
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())
	assert.Equal(t, "void", c.Results()[0].Output())
}

func TestMeasure_Warmup(t *testing.T) {
	var mu sync.Mutex
	var instances []*state
	s := suite.New("warm", func() (*state, error) {
		st, _ := newState()
		mu.Lock()
		instances = append(instances, st)
		mu.Unlock()
		return st, nil
	})
	s.Unit("plain", func(st *state, _ suite.Arguments) (any, error) {
		st.calls["plain"]++
		return nil, nil
	})
	s.Unit("param-$i", func(st *state, _ suite.Arguments) (any, error) {
		st.calls["param"]++
		return nil, nil
	}).Source("two")
	s.Source("two", seqOf(1, 2))
	s.Unit("disabled", func(st *state, _ suite.Arguments) (any, error) {
		st.calls["disabled"]++
		return nil, nil
	}).Disable()

	t.Run("separate warmup instance", func(t *testing.T) {
		instances = nil
		c, err := quietRunner().Measure(context.Background(), s)
		require.NoError(t, err)
		require.Len(t, instances, 2)

		for _, st := range instances {
			assert.Equal(t, 1, st.calls["plain"])
			assert.Equal(t, 2, st.calls["param"])
			assert.Zero(t, st.calls["disabled"])
		}
		assert.Equal(t, 3, c.Len())
	})

	t.Run("warmup disabled", func(t *testing.T) {
		instances = nil
		_, err := quietRunner(WithWarmup(false)).Measure(context.Background(), s)
		require.NoError(t, err)
		assert.Len(t, instances, 1)
	})
}

func TestMeasure_ConstructorFailures(t *testing.T) {
	boom := errors.New("no state")

	t.Run("warmup instance only", func(t *testing.T) {
		calls := 0
		s := suite.New("cold", func() (*state, error) {
			calls++
			if calls == 1 {
				return nil, boom
			}
			return newState()
		})
		s.Unit("u", func(*state, suite.Arguments) (any, error) { return 1, nil })

		c, err := quietRunner().Measure(context.Background(), s)
		require.NoError(t, err)
		assert.Equal(t, 1, c.Len())

		diags := c.Diagnostics()
		require.Len(t, diags, 1)
		assert.Equal(t, results.StageInstantiate, diags[0].Stage)
		assert.ErrorIs(t, diags[0], boom)
	})

	t.Run("measurement instance aborts", func(t *testing.T) {
		s := suite.New("broken", func() (*state, error) { return nil, boom })
		s.Unit("u", func(*state, suite.Arguments) (any, error) { return 1, nil })

		c, err := quietRunner().Measure(context.Background(), s)
		assert.ErrorIs(t, err, boom)
		assert.Nil(t, c)
	})
}

func TestMeasure_TimingIsolation(t *testing.T) {
	const producerDelay = 30 * time.Millisecond
	const unitDelay = 5 * time.Millisecond

	s := suite.New("timing", newState)
	s.Unit("fast-$i", func(*state, suite.Arguments) (any, error) { return nil, nil }).Source("slow")
	s.Source("slow", func(*state) iter.Seq[suite.Arguments] {
		return func(yield func(suite.Arguments) bool) {
			time.Sleep(producerDelay)
			yield(suite.Args(1))
		}
	})
	s.Unit("sleeper", func(*state, suite.Arguments) (any, error) {
		time.Sleep(unitDelay)
		return nil, nil
	})

	c, err := quietRunner(WithWarmup(false)).Measure(context.Background(), s)
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	res := c.Results()
	assert.Less(t, res[0].Time.Duration(), producerDelay)
	assert.GreaterOrEqual(t, res[1].Time.Duration(), unitDelay)
}

func TestMeasure_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := suite.New("cancel", newState)
	s.Unit("first-$i", func(_ *state, args suite.Arguments) (any, error) {
		if v, _ := args.Get(0); v.(int) == 2 {
			cancel()
		}
		return nil, nil
	}).Source("many")
	s.Source("many", seqOf(1, 2, 3, 4))
	s.Unit("second", func(*state, suite.Arguments) (any, error) { return nil, nil })

	c, err := quietRunner(WithWarmup(false)).Measure(ctx, s)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, c)
	assert.Equal(t, []string{"first-0", "first-1"}, names(c))
}

func TestMeasure_ReportsToSinkAndLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	sink := &countingSink{}

	s := suite.New("observed", newState)
	s.Unit("ok-$i", func(*state, suite.Arguments) (any, error) { return 1, nil }).Source("xs")
	s.Source("xs", seqOf(1, 2))
	s.Unit("bad", func(*state, suite.Arguments) (any, error) { return nil, errors.New("nope") })

	_, err := New(WithLogger(logger), WithSink(sink), WithWarmup(false)).Measure(context.Background(), s)
	require.NoError(t, err)

	require.Len(t, sink.results, 2)
	assert.Equal(t, "ok-$i", sink.results[0].Unit)
	require.Len(t, sink.diagnostics, 1)
	assert.Equal(t, "measure", sink.diagnostics[0].Stage)
	require.Len(t, sink.runs, 1)
	assert.Equal(t, 2, sink.runs[0].Results)
	assert.Equal(t, 1, sink.runs[0].Diagnostics)

	logged := buf.String()
	assert.Contains(t, logged, "benchmark diagnostic")
	assert.Contains(t, logged, "unit=bad")
	assert.Contains(t, logged, "suite measured")
}

func TestMeasure_MetricsRecordedOnce(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	previous := otel.GetMeterProvider()
	otel.SetMeterProvider(mp)
	t.Cleanup(func() { otel.SetMeterProvider(previous) })

	sink, err := telemetry.NewMeterSink(mp.Meter("microbench.runner"))
	require.NoError(t, err)

	s := suite.New("metered", newState)
	s.Unit("ok-$i", func(*state, suite.Arguments) (any, error) { return 1, nil }).Source("xs")
	s.Source("xs", seqOf(1, 2, 3))
	s.Unit("bad", func(*state, suite.Arguments) (any, error) { return nil, errors.New("nope") })

	_, err = quietRunner(WithSink(sink), WithWarmup(false)).Measure(context.Background(), s)
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	// Only the sink's instruments may report; the runner itself only traces.
	require.Len(t, rm.ScopeMetrics, 1)
	sums := make(map[string]int64)
	for _, m := range rm.ScopeMetrics[0].Metrics {
		if data, ok := m.Data.(metricdata.Sum[int64]); ok {
			for _, dp := range data.DataPoints {
				sums[m.Name] += dp.Value
			}
		}
	}
	assert.Equal(t, int64(3), sums["microbench.unit.invocations"])
	assert.Equal(t, int64(1), sums["microbench.diagnostics"])
	assert.Equal(t, int64(1), sums["microbench.runs"])
}

func TestMeasureAll(t *testing.T) {
	good := suite.New("good", newState)
	good.Unit("u", func(*state, suite.Arguments) (any, error) { return 1, nil })
	unmarked := suite.New[*state]("", nil)

	out, err := quietRunner().MeasureAll(context.Background(), good, unmarked)
	assert.ErrorIs(t, err, suite.ErrNotBenchmark)
	require.Len(t, out, 1)
	assert.Equal(t, "good", out[0].UID())
}
