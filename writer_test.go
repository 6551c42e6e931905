// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package spantrace

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thalia/spantrace/trace/tracelog"
)

func TestBufferedWriterHoldsResponse(t *testing.T) {
	assert := assert.New(t)
	rr := httptest.NewRecorder()
	bw := newBufferedWriter(rr)

	bw.Header().Set("X-A", "a")
	bw.WriteHeader(http.StatusCreated)
	bw.WriteHeader(http.StatusTeapot)
	_, _ = bw.Write([]byte("hello "))
	_, _ = bw.Write([]byte("world"))
	assert.False(rr.Flushed)
	assert.Empty(rr.Body.String())

	bw.Header().Set("X-B", "b")
	assert.NoError(bw.flush(func(h http.Header) { h.Set("X-C", "c") }))
	assert.Equal(http.StatusCreated, rr.Code)
	assert.Equal("hello world", rr.Body.String())
	assert.Equal("11", rr.Header().Get("Content-Length"))
	assert.Equal("a", rr.Header().Get("X-A"))
	assert.Empty(rr.Header().Get("X-B"), "set after WriteHeader")
	assert.Equal("c", rr.Header().Get("X-C"))
}

func TestBufferedWriterDefaults(t *testing.T) {
	rr := httptest.NewRecorder()
	bw := newBufferedWriter(rr)
	bw.Header().Set("X-A", "a")
	assert.NoError(t, bw.flush(nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "a", rr.Header().Get("X-A"))
	assert.Empty(t, rr.Header().Get("Content-Length"))
}

func TestBufferedWriterFlushAndUnwrap(t *testing.T) {
	assert := assert.New(t)
	rr := httptest.NewRecorder()
	bw := newBufferedWriter(rr)

	bw.Header().Set("X-A", "a")
	require.NoError(t, http.NewResponseController(bw).Flush())
	bw.Header().Set("X-B", "b")
	_, _ = bw.Write([]byte("body"))
	assert.False(rr.Flushed)
	assert.Empty(rr.Body.String())
	assert.Same(rr, bw.Unwrap())

	assert.NoError(bw.flush(nil))
	assert.Equal(http.StatusOK, rr.Code)
	assert.Equal("body", rr.Body.String())
	assert.Equal("a", rr.Header().Get("X-A"))
	assert.Empty(rr.Header().Get("X-B"))
}

// Toggling tracing adds the trace headers, and changes nothing else the handler sees or sends.
func TestToggledResponseMatchesUntoggled(t *testing.T) {
	assert := assert.New(t)
	h := testTracer("front").Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, flusher := w.(http.Flusher)
		w.Header().Set("X-Early", "set-before-writeheader")
		w.WriteHeader(http.StatusAccepted)
		w.Header().Set("X-Late", "set-after-writeheader")
		fmt.Fprintf(w, "flusher=%t", flusher)
		_ = http.NewResponseController(w).Flush()
		_, _ = w.Write([]byte(" done"))
	}))
	srv := httptest.NewServer(h)
	defer srv.Close()

	type result struct {
		status      int
		body        string
		early, late string
	}
	get := func(traced bool) (result, http.Header) {
		req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
		if traced {
			req.Header.Set(TraceHeader, "1")
		}
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return result{resp.StatusCode, string(body), resp.Header.Get("X-Early"), resp.Header.Get("X-Late")}, resp.Header
	}

	plain, plainHeaders := get(false)
	traced, tracedHeaders := get(true)
	assert.Equal(result{http.StatusAccepted, "flusher=true done", "set-before-writeheader", ""}, plain)
	assert.Equal(plain, traced)

	assert.Empty(plainHeaders.Get(TraceHeader))
	assert.Empty(plainHeaders.Values(ServerTimingHeader))
	_, err := tracelog.FromJSON(tracedHeaders.Get(TraceHeader))
	assert.NoError(err)
	assert.Len(tracedHeaders.Values(ServerTimingHeader), 1)
}
