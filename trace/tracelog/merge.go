// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package tracelog

// Merge tells whether s coalesces into tail, the most recently reported span, and returns the merged span if so.
// Spans merge when they are of the same kind and recorded against the same resource, e.g. the same data source.
// The merged span keeps the name of tail and the earlier start time. Durations and query counts are summed.
//
// Only the tail is ever inspected. A, B, A sequences are intentionally not merged.
func Merge(tail *Span, s Span) (Span, bool) {
	if tail == nil || tail.Kind != s.Kind {
		return s, false
	}

	tailRes, ok := tail.resource()
	if !ok {
		return s, false
	}
	if res, ok := s.resource(); !ok || res != tailRes {
		return s, false
	}

	merged := *tail
	merged.Duration = tail.Duration + s.Duration
	if tail.StartTime > s.StartTime {
		merged.StartTime = s.StartTime
	}
	if tail.Query != nil {
		q := *tail.Query
		q.Count += s.Query.Count
		merged.Query = &q
	}
	return merged, true
}
