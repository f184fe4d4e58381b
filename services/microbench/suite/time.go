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

import "time"

// NanosPerTick is the number of nanoseconds in one tick.
const NanosPerTick = 100

// Time is a single elapsed-duration measurement.
//
// Ticks are always derived from Nanos and never stored.
type Time struct {
	Nanos int64 `json:"nanos"`
}

// FromDuration converts a time.Duration into a Time.
func FromDuration(d time.Duration) Time {
	return Time{Nanos: d.Nanoseconds()}
}

// Ticks returns Nanos / 100 using integer division.
func (t Time) Ticks() int64 {
	return t.Nanos / NanosPerTick
}

// Duration returns the measurement as a time.Duration.
func (t Time) Duration() time.Duration {
	return time.Duration(t.Nanos)
}

// Add returns the sum of two measurements.
func (t Time) Add(other Time) Time {
	return Time{Nanos: t.Nanos + other.Nanos}
}
