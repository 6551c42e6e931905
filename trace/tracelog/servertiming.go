// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package tracelog

import (
	"strconv"
	"strings"
)

var descEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func timingEntry(id, desc string, dur int64) string {
	return id + `;desc="` + descEscaper.Replace(desc) + `";dur=` + strconv.FormatInt(dur, 10)
}

// ServerTiming returns the Server-Timing header values of the trace log.
// The first one is the total, followed by one entry per span, S0, S1, ...
func (l *TraceLog) ServerTiming() []string {
	entries := make([]string, 0, len(l.Spans)+1)
	entries = append(entries, timingEntry("total", "Total", l.Duration))
	for i, s := range l.Spans {
		entries = append(entries, timingEntry("S"+strconv.Itoa(i), s.Name, s.Duration))
	}
	return entries
}
