// Copyright 2021-2023 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package spantrace

import (
	"context"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/thalia/spantrace/trace/tracecommon"
)

type loggerCtxKey string

const loggerCtxName = loggerCtxKey("spantraceLoggerTag")

var (
	// HealthCheckPath is the path of health checking, such as liveness and readiness probes.
	// Handled by default, 200 OK sent.
	// Ignored at logging and tracing. By default "/healthz".
	HealthCheckPath = "/healthz"

	// LivenessProbePath is the path of liveness probes.
	// Handled by default, 200 OK sent.
	// Ignored at logging and tracing. By default "/livez".
	LivenessProbePath = "/livez"

	// ReadinessProbePath is the path of readiess probes.
	// Not handled.
	// Ignored at logging. By default "/readyz".
	ReadinessProbePath = "/readyz"
)

// requestTag returns the log tag of the request being served, or a new random one.
func requestTag(ctx context.Context) string {
	if tag, ok := ctx.Value(loggerCtxName).(string); ok {
		return tag
	}
	return tracecommon.NewRequestTag()
}

func loggerPost(w http.ResponseWriter, r *http.Request, statusCode int) {
	if tag, ok := r.Context().Value(loggerCtxName).(string); ok {
		log.Debugf("[%s] Sent rsp: %d", tag, statusCode)
	}
}

func loggerPre(w http.ResponseWriter, r *http.Request) *http.Request {
	if r.URL.Path == LivenessProbePath || r.URL.Path == HealthCheckPath {
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(http.StatusOK) // No logs, stop processing.
	} else if r.URL.Path != ReadinessProbePath {
		tag := tracecommon.NewRequestTag()
		r = r.WithContext(context.WithValue(r.Context(), loggerCtxName, tag))
		log.Debugf("[%s] Recv req: %s %s", tag, r.Method, r.URL.Path)
	}
	return r
}

// Logger wraps original handler and returns a handler that logs.
// Logs start with a semi-random tag to be able to match requests to responses.
// Outbound calls made with the request context log the same tag.
// If path matches LivenessProbePath or HealthCheckPath then does not log and responds with 200 OK.
// If path matches ReadinessProbePath then does not log, but processed as usual.
func Logger(h http.Handler) http.Handler {
	return Monitor(h, loggerPre, loggerPost)
}
