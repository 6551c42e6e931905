// Copyright 2021 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package spantrace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thalia/spantrace/trace/scope"
	"github.com/thalia/spantrace/trace/tracelog"
)

type strType struct {
	Str string
}

func tracedContext() (context.Context, *scope.Scope) {
	sc := scope.New(time.Now())
	return scope.NewContext(context.Background(), sc), sc
}

func TestMethods(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var a strType
		if r.ContentLength > 0 {
			assert.NoError(json.NewDecoder(r.Body).Decode(&a))
		}

		w.Header().Set(ContentTypeHeader, ContentTypeApplicationJSON)
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"str":"b"}`))
		case http.MethodHead:
			w.Header().Set("LastModified", "1970-01-01T00:00:00")
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		case http.MethodPost:
			assert.Equal("b", a.Str)
			w.Header().Set("Location", "/users/1")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"str":"b"}`))
		case http.MethodPatch:
			assert.Equal(ContentTypeMergeJSON, GetBaseContentType(r.Header))
			fallthrough
		default:
			assert.Equal("b", a.Str)
			_, _ = w.Write([]byte(`{"str":"b"}`))
		}
	}))
	defer srv.Close()

	reqData := strType{Str: "b"}
	respData := strType{}
	ctx, sc := tracedContext()
	client := NewClient().Root(srv.URL).Name("users")
	location, err := client.Post(ctx, "/users", &reqData, &respData)
	assert.NoError(err)
	locationStr := location.String()
	assert.Equal(srv.URL+"/users/1", locationStr)
	assert.EqualValues(reqData, respData)

	_, err = Post(ctx, locationStr, &reqData, &respData)
	assert.NoError(err)

	_, err = client.Put(ctx, locationStr, &reqData, &respData)
	assert.NoError(err)
	_, err = Put(ctx, locationStr, &reqData, &respData)
	assert.NoError(err)

	assert.NoError(client.Patch(ctx, locationStr, &reqData, &respData))
	assert.NoError(Patch(ctx, locationStr, &reqData, &respData))

	respData = strType{}
	assert.NoError(client.Get(ctx, locationStr, &respData))
	assert.EqualValues(reqData, respData)
	assert.NoError(Get(ctx, locationStr, &respData))

	headers, err := client.Head(ctx, locationStr)
	assert.NoError(err)
	assert.Equal("1970-01-01T00:00:00", headers.Get("LastModified"))

	assert.NoError(client.Delete(ctx, locationStr))
	assert.NoError(Delete(ctx, locationStr))

	spans := sc.Spans()
	require.Len(t, spans, 11)
	assert.Equal("users", spans[0].Name)
	assert.Equal(http.MethodPost, spans[0].HTTP.Method)
	assert.Equal(srv.URL+"/users", spans[0].HTTP.URI)
	assert.Equal(http.StatusCreated, *spans[0].HTTP.Status)
	u, _ := url.Parse(srv.URL)
	assert.Equal(u.Host, spans[1].Name, "default client spans are named after the host")
}

func TestGetTooLongAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(ContentTypeHeader, ContentTypeApplicationJSON)
		_, _ = w.Write([]byte(`{"str":"b"}`))
	}))
	defer srv.Close()

	var empty struct{}
	err := NewClient().Root(srv.URL).SetMaxBytesToParse(5).Get(context.Background(), "/", &empty)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestRetryReportsOneSpan(t *testing.T) {
	assert := assert.New(t)

	reqCount := 0
	retries := 4
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal("hello", r.Header.Get("User-Agent"))
		w.Header().Set(ContentTypeHeader, ContentTypeApplicationJSON)
		if reqCount < retries {
			w.WriteHeader(http.StatusGatewayTimeout)
		}
		_, _ = w.Write([]byte(`{"str":"` + time.Now().String() + `"}`))
		reqCount++
	}))
	defer srv.Close()

	ctx, sc := tracedContext()
	respData := strType{}
	client := NewClient().Root(srv.URL).Retry(retries, 10*time.Millisecond, 0).UserAgent("hello")
	err := client.Get(ctx, "/", &respData)
	assert.NoError(err)
	assert.Equal(http.StatusOK, GetErrStatusCode(err))
	assert.Equal(retries+1, reqCount)

	spans := sc.Spans()
	require.Len(t, spans, 1)
	assert.Equal(http.StatusOK, *spans[0].HTTP.Status)
	assert.GreaterOrEqual(spans[0].Duration, int64(10+20+40+80))
}

func TestMethodsError(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(ContentTypeHeader, ContentTypeProblemJSON)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"title":"nope"}`))
	}))
	defer srv.Close()

	reqData := strType{Str: "b"}
	respData := strType{}
	ctx, sc := tracedContext()
	client := NewClient().Root(srv.URL).SetMaxBytesToParse(100000)
	location, err := client.Post(ctx, "/users", &reqData, &respData)
	assert.Error(err)
	assert.Nil(location)
	assert.Equal(`{"title":"nope"}`, err.Error())
	assert.Equal(http.StatusNotFound, GetErrStatusCode(err))

	_, err = client.Put(ctx, "/users/1", &reqData, &respData)
	assert.Error(err)
	assert.Error(client.Patch(ctx, "/users/1", &reqData, &respData))
	assert.Error(client.Get(ctx, "/users/1", &respData))
	_, err = client.Head(ctx, "/users/1")
	assert.Error(err)
	assert.Error(client.Delete(ctx, "/users/1"))

	for _, s := range sc.Spans() {
		assert.Equal(http.StatusNotFound, *s.HTTP.Status)
	}
}

func TestGetBadURL(t *testing.T) {
	ctx, sc := tracedContext()
	err := NewClient().Retry(3000, time.Second, 0).Get(ctx, ":::", nil)
	assert.Error(t, err)
	assert.Zero(t, sc.Len())
}

func TestConnectionFailureSpan(t *testing.T) {
	assert := assert.New(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	target := srv.URL
	srv.Close()

	ctx, sc := tracedContext()
	err := NewClient().Get(ctx, target, nil)
	assert.Error(err)
	assert.True(IsConnectError(err))

	spans := sc.Spans()
	require.Len(t, spans, 1)
	assert.Equal(tracelog.KindHTTP, spans[0].Kind)
	assert.Nil(spans[0].HTTP.Status)
	assert.Nil(spans[0].HTTP.Nested)
}

func TestCancelledContextNotSent(t *testing.T) {
	ctx, sc := tracedContext()
	ctx, cancel := context.WithCancel(ctx)
	cancel()
	err := NewClient().Get(ctx, "http://127.0.0.1:1", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sc.Len())
}

func TestSendRecv2xxBadCT(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-type", "nuku")
		_, _ = w.Write([]byte(`{"str":"b"}`))
	}))
	defer srv.Close()

	var empty struct{}
	_, err := NewClient().SendRecv2xx(context.Background(), http.MethodGet, srv.URL, nil, nil, &empty)
	assert.ErrorIs(err, ErrUnexpectedContentType)
	assert.Equal(http.StatusInternalServerError, GetErrStatusCode(err))
	assert.Equal(0, GetErrStatusCodeElse(err, 0))
}

func TestSendRecv2xxNoDataNoCT(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	var empty struct{}
	_, err := NewClient().SendRecv2xx(context.Background(), http.MethodGet, srv.URL, nil, &empty, &empty)
	assert.NoError(t, err)
}

func TestTraceHeaderForwardedWhenToggled(t *testing.T) {
	assert := assert.New(t)

	var received []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = append(received, r.Header.Get(TraceHeader))
	}))
	defer srv.Close()

	ctx, sc := tracedContext()
	client := NewClient().Root(srv.URL)
	assert.NoError(client.Get(ctx, "/", nil))
	sc.SetToggle()
	assert.NoError(client.Get(ctx, "/", nil))
	assert.Equal([]string{"", traceHeaderValue}, received)
}

func TestH2CFailed(t *testing.T) {
	client := NewH2CClient().Root("http://127.0.0.1:0")
	assert.Equal(t, KindH2C, client.Kind)
	assert.Error(t, client.Get(context.Background(), "/", nil))
}

func TestCalcBackoff(t *testing.T) {
	assert := assert.New(t)
	c := NewClient().Retry(255, 1*time.Second, 0)
	assert.Equal((1<<0)*time.Second, c.calcBackoff(0))
	assert.Equal((1<<7)*time.Second, c.calcBackoff(7))
	assert.Equal((1<<7)*time.Second, c.calcBackoff(255))

	c = NewClient().Retry(255, 1*time.Second, 2*time.Second)
	assert.Equal((1<<0)*time.Second, c.calcBackoff(0))
	assert.Equal((1<<1)*time.Second, c.calcBackoff(7))
}

func TestTransport(t *testing.T) {
	c := NewClient()
	tr := &http.Transport{}
	c.SetTransport(tr)
	assert.Same(t, tr, c.GetTransport())
}
