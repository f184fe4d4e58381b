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
	"fmt"
	"iter"
	"maps"
	"math/rand/v2"
	"slices"
	"strings"

	"github.com/AleutianAI/microbench/services/microbench/registry"
	"github.com/AleutianAI/microbench/services/microbench/suite"
)

func init() {
	registry.Default.MustRegister(stringsSuite())
	registry.Default.MustRegister(sortingSuite())
	registry.Default.MustRegister(mapsSuite())
}

// sizes yields one argument per value.
func sizes(values ...int) iter.Seq[suite.Arguments] {
	return func(yield func(suite.Arguments) bool) {
		for _, v := range values {
			if !yield(suite.Args(v)) {
				return
			}
		}
	}
}

func intArg(args suite.Arguments, i int) int {
	v, _ := args.Get(i)
	n, _ := v.(int)
	return n
}

// -----------------------------------------------------------------------------
// strings
// -----------------------------------------------------------------------------

type wordState struct {
	words []string
}

func stringsSuite() suite.Benchmark {
	s := suite.New("strings", func() (*wordState, error) {
		words := make([]string, 4096)
		for i := range words {
			words[i] = fmt.Sprintf("w%d", i)
		}
		return &wordState{words: words}, nil
	},
		suite.WithDescription("String concatenation strategies"),
		suite.WithColumn(suite.ColumnOutput, "Length"),
	)

	s.Source("counts", func(*wordState) iter.Seq[suite.Arguments] {
		return sizes(16, 256, 4096)
	})

	s.Unit("plus-$n", func(st *wordState, args suite.Arguments) (any, error) {
		var out string
		for _, w := range st.words[:intArg(args, 0)] {
			out += w
		}
		return len(out), nil
	}).Source("counts").Params("n").Order(1)

	s.Unit("builder-$n", func(st *wordState, args suite.Arguments) (any, error) {
		var b strings.Builder
		for _, w := range st.words[:intArg(args, 0)] {
			b.WriteString(w)
		}
		return b.Len(), nil
	}).Source("counts").Params("n").Order(2)

	s.Unit("join-$n", func(st *wordState, args suite.Arguments) (any, error) {
		return len(strings.Join(st.words[:intArg(args, 0)], "")), nil
	}).Source("counts").Params("n").Order(3)

	s.Action("sprintf-all", func(st *wordState, _ suite.Arguments) error {
		_ = fmt.Sprint(st.words)
		return nil
	}).Disable()

	return s
}

// -----------------------------------------------------------------------------
// sorting
// -----------------------------------------------------------------------------

type sortState struct {
	rng *rand.Rand
}

func (st *sortState) shuffled(n int) []int {
	out := st.rng.Perm(n)
	return out
}

func sortingSuite() suite.Benchmark {
	s := suite.New("sorting", func() (*sortState, error) {
		return &sortState{rng: rand.New(rand.NewPCG(1, 2))}, nil
	}, suite.WithDescription("slices.Sort against insertion sort"))

	s.Source("lengths", func(*sortState) iter.Seq[suite.Arguments] {
		return sizes(10, 100, 1000)
	})

	s.Unit("slices-$i-$len", func(st *sortState, args suite.Arguments) (any, error) {
		data := st.shuffled(intArg(args, 0))
		slices.Sort(data)
		return slices.IsSorted(data), nil
	}).Source("lengths").Params("len")

	s.Unit("insertion-$i-$len", func(st *sortState, args suite.Arguments) (any, error) {
		data := st.shuffled(intArg(args, 0))
		for i := 1; i < len(data); i++ {
			for j := i; j > 0 && data[j-1] > data[j]; j-- {
				data[j-1], data[j] = data[j], data[j-1]
			}
		}
		return slices.IsSorted(data), nil
	}).Source("lengths").Params("len")

	return s
}

// -----------------------------------------------------------------------------
// maps
// -----------------------------------------------------------------------------

type mapState struct {
	m map[int]int
}

func mapsSuite() suite.Benchmark {
	s := suite.New("maps", func() (*mapState, error) {
		return &mapState{m: make(map[int]int)}, nil
	},
		suite.WithDescription("Map insertion, lookup and iteration"),
		suite.WithoutColumn(suite.ColumnOutput),
	)

	s.Action("insert", func(st *mapState, _ suite.Arguments) error {
		for i := range 10000 {
			st.m[i] = i
		}
		return nil
	}).Order(1)

	s.Unit("lookup", func(st *mapState, _ suite.Arguments) (any, error) {
		hits := 0
		for i := range 10000 {
			if _, ok := st.m[i]; ok {
				hits++
			}
		}
		return hits, nil
	}).Order(2)

	s.Unit("keys", func(st *mapState, _ suite.Arguments) (any, error) {
		return len(slices.Collect(maps.Keys(st.m))), nil
	}).Order(3)

	return s
}
