// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package results

import "fmt"

// Stage identifies where in a run a diagnostic was raised.
type Stage string

const (
	StageInstantiate Stage = "instantiate"
	StageWarmup      Stage = "warmup"
	StageSource      Stage = "source"
	StageMeasure     Stage = "measure"
)

// Diagnostic is a non-fatal failure surfaced beside the results.
type Diagnostic struct {
	Suite string
	Unit  string
	Stage Stage
	Err   error
}

// Error implements error.
func (d Diagnostic) Error() string {
	if d.Unit == "" {
		return fmt.Sprintf("%s [%s]: %v", d.Suite, d.Stage, d.Err)
	}
	return fmt.Sprintf("%s/%s [%s]: %v", d.Suite, d.Unit, d.Stage, d.Err)
}

// Unwrap returns the underlying cause.
func (d Diagnostic) Unwrap() error { return d.Err }
