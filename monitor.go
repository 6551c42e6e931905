// Copyright 2021 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package spantrace

import (
	"net/http"
)

// MonitorFuncPost is a type of user defined function to be called after the request was served.
// Handle ResponseWriter with care.
type MonitorFuncPost func(w http.ResponseWriter, r *http.Request, statusCode int)

// MonitorFuncPre is a type of user defined function to be called before the request is served.
// If calls WriteHeader, then serving is aborted, the original handler and monitor post functions are not called.
// Pre may modify the request, especially its context, and return the modified request, or nil if not modified.
type MonitorFuncPre func(w http.ResponseWriter, r *http.Request) *http.Request

type monitor struct {
	pre  MonitorFuncPre
	post MonitorFuncPost
}

type monitors []monitor

func (m *monitors) append(pre MonitorFuncPre, post MonitorFuncPost) {
	*m = append(*m, monitor{pre: pre, post: post})
}

// wrap applies the monitors, the first one added being the innermost.
func (m monitors) wrap(h http.Handler) http.Handler {
	for _, mon := range m {
		h = Monitor(h, mon.pre, mon.post)
	}
	return h
}

// statusWriter remembers the status code sent.
type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader sends HTTP status code.
func (w *statusWriter) WriteHeader(statusCode int) {
	if w.statusCode == 0 {
		w.statusCode = statusCode
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

// Write writes supplied bytes to HTTP response. Status 200 is assumed, if not set before.
func (w *statusWriter) Write(b []byte) (int, error) {
	if w.statusCode == 0 {
		w.statusCode = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap returns the original writer, for http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

type monitorHandler struct {
	next http.Handler
	pre  MonitorFuncPre
	post MonitorFuncPost
}

// ServeHTTP serves HTTP request.
func (m monitorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if m.pre != nil {
		sw := &statusWriter{ResponseWriter: w}
		newR := m.pre(sw, r)
		if sw.statusCode != 0 { // Do not process any further.
			return
		}
		if newR != nil {
			r = newR
		}
	}

	sw := &statusWriter{ResponseWriter: w}
	m.next.ServeHTTP(sw, r)

	if m.post != nil {
		m.post(w, r, sw.statusCode)
	}
}

// Monitor wraps http.Handler, adding user defined pre and post function calls around serving.
// You may prefer Server's or Router's Monitor functions.
func Monitor(h http.Handler, pre MonitorFuncPre, post MonitorFuncPost) http.Handler {
	return monitorHandler{next: h, pre: pre, post: post}
}
