// Copyright 2021- Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package spantrace

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thalia/spantrace/trace/scope"
)

func TestClientMonitorAddHeader(t *testing.T) {
	assert := assert.New(t)

	var preCount, postCount int
	pre := func(req *http.Request) (*http.Response, error) {
		req.Header.Add("X-My-Req-Header", strconv.Itoa(preCount))
		preCount++
		return nil, nil
	}
	post := func(req *http.Request, resp *http.Response, err error) *http.Response {
		resp.Header.Add("X-My-Resp-Header", strconv.Itoa(postCount))
		postCount++
		return nil
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal([]string{"0", "1"}, r.Header.Values("X-My-Req-Header"))
	}))
	defer srv.Close()

	client := NewClient().Monitor(pre, post).Monitor(pre, nil).Monitor(nil, post)
	resp, err := client.SendRecv2xx(context.Background(), http.MethodGet, srv.URL, nil, nil, nil)
	assert.NoError(err)
	assert.Equal([]string{"0", "1"}, resp.Header.Values("X-My-Resp-Header"))
	assert.Equal(2, preCount)
	assert.Equal(2, postCount)
}

func TestClientMonitorPostStatusInSpan(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	post := func(req *http.Request, resp *http.Response, err error) *http.Response {
		return &http.Response{StatusCode: http.StatusTeapot, Header: http.Header{}, Body: http.NoBody}
	}
	sc := scope.New(time.Now())
	ctx := scope.NewContext(context.Background(), sc)
	resp, err := NewClient().Monitor(nil, post).SendRequest(ctx, http.MethodGet, srv.URL, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)

	spans := sc.Spans()
	require.Len(t, spans, 1)
	assert.Equal(t, http.StatusTeapot, *spans[0].HTTP.Status)
}

func TestClientMonitorPreBlocks(t *testing.T) {
	assert := assert.New(t)

	preCount := 0
	pre := func(req *http.Request) (*http.Response, error) {
		preCount++
		return nil, errors.New("blocking")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request sent")
	}))
	defer srv.Close()

	sc := scope.New(time.Now())
	ctx := scope.NewContext(context.Background(), sc)
	err := NewClient().Monitor(pre, nil).Monitor(pre, nil).Get(ctx, srv.URL, nil)
	assert.Error(err)
	assert.Equal(1, preCount)
	assert.Zero(sc.Len(), "blocked calls are not traced")
}
