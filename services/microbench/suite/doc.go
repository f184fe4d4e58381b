// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package suite declares benchmark suites and the units they measure.
//
// # Overview
//
// A suite is a named collection of measurable operations ("units") that share
// a piece of bound state. Units are registered explicitly through a builder;
// nothing is discovered by introspection. Each registration records the
// callable together with its metadata: the display-name template, an optional
// order priority, an optional parameter-source reference, the formal
// parameter names used for templating and the declared return type.
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                        Suite[S]                              │
//	│                                                              │
//	│  name ("UID")      columns (NAME / TICKS / OUTPUT)           │
//	│                                                              │
//	│  units:   Declaration ──► func(S, Arguments) (any, error)    │
//	│  sources: "name"      ──► func(S) iter.Seq[Arguments]        │
//	│                                                              │
//	│  Instantiate() ──► Instance{state S}                         │
//	└──────────────────────────────────────────────────────────────┘
//
// # Usage
//
//	s := suite.New("strings", func() (*fixture, error) { return newFixture(), nil },
//	    suite.WithColumn(suite.ColumnTicks, "100ns"),
//	)
//	s.Unit("concat-$i-$n", concat).Source("sizes").Params("n").Order(1)
//	s.Source("sizes", func(f *fixture) iter.Seq[suite.Arguments] {
//	    return func(yield func(suite.Arguments) bool) {
//	        for _, n := range []int{10, 100, 1000} {
//	            if !yield(suite.Args(n)) {
//	                return
//	            }
//	        }
//	    }
//	})
//
// # Thread Safety
//
// Suites are built once and then read. Registration is not safe for
// concurrent use; everything else is.
package suite
