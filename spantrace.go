// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

// Package spantrace collects timing spans of the downstream calls an HTTP request makes,
// and returns them to the caller on demand.
//
// The caller asks for the trace by sending the trace header, with any value.
// In that case the response carries the trace log in the same header,
// and a Server-Timing header entry per span.
// Outbound calls made by Client forward the header, so the whole call chain is traced,
// each hop's trace log nested in the span of the call that reached it.
//
//	r := spantrace.NewRouter()
//	r.HandleFunc("/users/{id}", getUser)
//	spantrace.NewServer().Addr(":8080").Handler(r).ListenAndServe()
package spantrace

// TraceHeader is the default name of the header turning tracing output on for a request.
// The same header carries the trace log on the response. Config.TraceHeader overrides it per Tracer.
const TraceHeader = "THALIATRACE"

// ServerTimingHeader is the name of the header carrying the per-span timing entries.
const ServerTimingHeader = "Server-Timing"

const traceHeaderValue = "true"
