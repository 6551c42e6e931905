// Copyright 2021-2023 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package spantrace

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoggerTagsRequest(t *testing.T) {
	assert := assert.New(t)

	var tag string
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tag = requestTag(r.Context())
		assert.Equal(tag, requestTag(r.Context()), "tag is stable within a request")
		w.WriteHeader(http.StatusCreated)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/users", nil))
	assert.Equal(http.StatusCreated, rr.Code)
	assert.NotEmpty(tag)
}

func TestLoggerProbes(t *testing.T) {
	assert := assert.New(t)

	served := 0
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	for _, path := range []string{HealthCheckPath, LivenessProbePath} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(http.StatusOK, rr.Code)
	}
	assert.Zero(served)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, ReadinessProbePath, nil))
	assert.Equal(http.StatusServiceUnavailable, rr.Code)
	assert.Equal(1, served)
}
