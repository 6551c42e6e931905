// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package spantrace

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/thalia/spantrace/trace/scope"
	"github.com/thalia/spantrace/trace/tracelog"
	"github.com/thalia/spantrace/trace/traceotel"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/http2"
)

var defaultClient = NewClient()

// DialTimeout is the connect timeout of clients created after setting it.
var DialTimeout = 2 * time.Second

// Client kinds, set by the constructor.
const (
	KindBasic = ""
	KindH2C   = "h2c"
)

// Client is an HTTP client reporting a span of each call to the scope of the request context.
// If the scope is toggled, the trace header is forwarded, and the trace log returned by the server is nested into the span.
type Client struct {
	// Client sends the requests. Its transport is set by SetTransport.
	Client *http.Client

	// Kind is KindBasic or KindH2C. Informational only.
	Kind               string
	name               string
	rootURL            string
	userAgent          string
	maxBytesToParse    int
	retries            int
	retryBackoffInit   time.Duration
	retryBackoffMax    time.Duration
	monitor            clientMonitors
	nonTracedTransport http.RoundTripper // Transport before OTel wrapping.
}

// GetTransport returns the transport given to SetTransport, without the OTel wrapper.
func (c *Client) GetTransport() http.RoundTripper {
	return c.nonTracedTransport
}

// SetTransport sets the transport. When OTel tracing is enabled, it is wrapped to propagate the OTel context.
func (c *Client) SetTransport(transport http.RoundTripper) {
	c.nonTracedTransport = transport
	if traceotel.Enabled() {
		c.Client.Transport = otelhttp.NewTransport(c.nonTracedTransport)
	} else {
		c.Client.Transport = c.nonTracedTransport
	}
}

// NewClient creates a client with a pooled keep-alive transport.
func NewClient() *Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 100
	t.MaxConnsPerHost = 1000
	t.MaxIdleConnsPerHost = 100
	t.DialContext = (&net.Dialer{Timeout: DialTimeout, KeepAlive: 30 * time.Second}).DialContext

	c := &Client{Kind: KindBasic, Client: &http.Client{Timeout: 10 * time.Second}}
	c.SetTransport(t)
	return c
}

// NewH2CClient creates a client speaking HTTP/2 over cleartext TCP only.
func NewH2CClient() *Client {
	c := &Client{Kind: KindH2C, Client: &http.Client{Timeout: 10 * time.Second}}
	c.SetTransport(&http2.Transport{
		AllowHTTP: true,
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			dialer := net.Dialer{Timeout: DialTimeout}
			return dialer.DialContext(ctx, network, addr)
		},
	})
	return c
}

// Name sets the name of the spans reported. By default it is the target host.
func (c *Client) Name(name string) *Client {
	c.name = name
	return c
}

// UserAgent sets the User-Agent header of requests not having one.
func (c *Client) UserAgent(userAgent string) *Client {
	c.userAgent = userAgent
	return c
}

// Root sets the URL prefix of targets starting with '/'.
func (c *Client) Root(rootURL string) *Client {
	c.rootURL = rootURL
	return c
}

// Retry resends a request up to retries times on connection failure or a 502, 503, 504 status.
// The n-th retry sleeps backoffInit doubled n-1 times, at most backoffMax.
// A backoffMax below backoffInit means 128*backoffInit.
//
// One span covers the call with all its retries.
func (c *Client) Retry(retries int, backoffInit time.Duration, backoffMax time.Duration) *Client {
	c.retries = retries
	if backoffMax < backoffInit {
		backoffMax = backoffInit * (1 << 7)
	}
	c.retryBackoffInit = backoffInit
	c.retryBackoffMax = backoffMax
	return c
}

// Timeout sets the timeout of each attempt. The request context bounds all attempts together.
func (c *Client) Timeout(timeout time.Duration) *Client {
	c.Client.Timeout = timeout
	return c
}

// SetMaxBytesToParse limits the size of response bodies decoded. Zero means no limit.
func (c *Client) SetMaxBytesToParse(max int) *Client {
	c.maxBytesToParse = max
	return c
}

func errDeadlineOrCancel(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func (c *Client) setUA(req *http.Request) {
	if c.userAgent != "" && req.Header.Get("User-agent") == "" {
		req.Header.Set("User-agent", c.userAgent)
	}
}

func (c *Client) setReqTarget(req *http.Request) (err error) {
	target := req.URL.String()
	if len(target) == 0 || target[0] == '/' {
		req.URL, err = url.Parse(c.rootURL + target)
	}
	return
}

func (c *Client) cloneBody(req *http.Request) io.ReadCloser {
	if c.retries > 0 && req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil { // E.g. a forwarded inbound body.
			req.GetBody = func() (io.ReadCloser, error) {
				recvdBuf, err := io.ReadAll(req.Body)
				if err != nil {
					return nil, err
				}
				req.Body = io.NopCloser(bytes.NewReader(recvdBuf))
				return io.NopCloser(bytes.NewReader(bytes.Clone(recvdBuf))), nil
			}
		}
		clonedBody, _ := req.GetBody()
		return clonedBody
	}
	return nil
}

func retryResp(resp *http.Response) bool {
	return resp == nil || (resp.StatusCode >= 502 && resp.StatusCode <= 504)
}

func (c *Client) calcBackoff(retry int) time.Duration {
	backoff := (1 << retry) * c.retryBackoffInit
	if backoff > c.retryBackoffMax || backoff == 0 { // Zero on shift overflow.
		backoff = c.retryBackoffMax
	}
	return backoff
}

func (c *Client) doMonitorPre(req *http.Request) (*http.Response, error) {
	for i := len(c.monitor) - 1; i >= 0; i-- {
		if c.monitor[i].pre != nil {
			resp, err := c.monitor[i].pre(req)
			if resp != nil || err != nil {
				return resp, err
			}
		}
	}
	return nil, nil
}

func (c *Client) doMonitorPost(req *http.Request, resp *http.Response, err error) (*http.Response, error) {
	for i := range c.monitor {
		if c.monitor[i].post != nil {
			if newResp := c.monitor[i].post(req, resp, err); newResp != nil {
				resp = newResp
			}
		}
	}
	return resp, err
}

// Do sends req, as http.Client.Do does. A target starting with '/' is prefixed by Root.
//
// If the request context has a scope, a span of the call is reported to it, whatever the outcome.
// If the scope is toggled, the trace header of the request's Tracer is sent, and the trace log received in the response is nested in the span.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if req.Header == nil {
		req.Header = make(http.Header)
	}
	if err := c.setReqTarget(req); err != nil {
		return nil, err
	}
	c.setUA(req)

	sc := scope.FromContext(ctx)
	header := traceHeaderFromContext(ctx)
	if sc.IsToggled() {
		req.Header.Set(header, traceHeaderValue)
	}

	if resp, err := c.doMonitorPre(req); resp != nil || err != nil {
		return resp, err
	}

	tag := requestTag(ctx)
	start := time.Now()
	resp, err := c.doLog(tag, req)
	resp, err = c.doMonitorPost(req, resp, err)

	if sc != nil {
		sc.Add(c.span(tag, header, req, resp, start))
	}
	return resp, err
}

func (c *Client) span(tag, header string, req *http.Request, resp *http.Response, start time.Time) tracelog.Span {
	var status *int
	var nested *tracelog.TraceLog
	if resp != nil {
		statusCode := resp.StatusCode
		status = &statusCode
		if v := resp.Header.Get(header); v != "" {
			l, err := tracelog.FromJSON(v)
			if err != nil {
				log.Warnf("[%s] Bad trace log received from %s: %v", tag, req.URL.Host, err)
			} else {
				nested = l
			}
		}
	}

	name := c.name
	if name == "" {
		name = req.URL.Host
	}
	return tracelog.NewHTTP(name, start, time.Since(start), req.Method, req.URL.String(), status, nested)
}

func (c *Client) doWithRetry(tag string, req *http.Request) (*http.Response, error) {
	log.Debugf("[%s] Request %s %s", tag, req.Method, req.URL)

	clonedBody := c.cloneBody(req)
	resp, err := c.do(req)

	for retries := 0; retries < c.retries && !errDeadlineOrCancel(err) && retryResp(resp); retries++ {
		if resp != nil {
			_ = resp.Body.Close()
		}

		req.Body = clonedBody
		clonedBody = c.cloneBody(req)

		time.Sleep(c.calcBackoff(retries))
		log.Debugf("[%s] Retry %d of %s %s after: %v", tag, retries+1, req.Method, req.URL, err)
		resp, err = c.do(req)
	}

	return resp, err
}

func (c *Client) doLog(tag string, req *http.Request) (*http.Response, error) {
	resp, err := c.doWithRetry(tag, req)
	if err != nil {
		log.Debugf("[%s] Failed %s %s: %v", tag, req.Method, req.URL, err)
	} else {
		log.Debugf("[%s] Response %s", tag, resp.Status)
	}
	return resp, err
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil { // No dial once cancelled.
		return nil, err
	}
	resp, err := c.Client.Do(req) // #nosec G704

	// Timed out connections may be left in the idle pool. https://github.com/golang/go/issues/36026
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		c.Client.CloseIdleConnections()
	}
	return resp, err
}

func makeBodyBytes(data any) ([]byte, error) {
	if data == nil {
		return nil, nil
	}
	return json.Marshal(data)
}

// SendRequest sends data JSON encoded, with headers added. Nil data sends no body.
// The caller closes the response body.
func (c *Client) SendRequest(ctx context.Context, method string, target string, headers http.Header, data any) (*http.Response, error) {
	body, err := makeBodyBytes(data)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if len(body) > 0 {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, err
	}
	if len(body) > 0 && headers.Get(ContentTypeHeader) == "" {
		req.Header.Set(ContentTypeHeader, contentTypeFor(method, body))
	}
	for header, values := range headers {
		req.Header[header] = append(req.Header[header], values...)
	}
	if req.Header.Get(AcceptHeader) == "" {
		req.Header.Add(AcceptHeader, ContentTypeApplicationJSON)
		req.Header.Add(AcceptHeader, ContentTypeProblemJSON)
	}

	return c.Do(req)
}

// SendRecv is SendRequest, decoding the response body into respData unless that is nil.
func (c *Client) SendRecv(ctx context.Context, method string, target string, headers http.Header, reqData, respData any) (*http.Response, error) {
	resp, err := c.SendRequest(ctx, method, target, headers, reqData)
	if err != nil {
		return nil, err
	}
	return resp, GetResponseData(resp, c.maxBytesToParse, respData)
}

// SendRecv2xx is SendRecv, returning an *Error for a status of 300 or above.
// A problem details body of the response becomes the error text.
func (c *Client) SendRecv2xx(ctx context.Context, method string, target string, headers http.Header, reqData, respData any) (*http.Response, error) {
	resp, err := c.SendRequest(ctx, method, target, headers, reqData)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		body, err := GetDataBytesForContentType(resp.Header, resp.Body, c.maxBytesToParse, ContentTypeProblemJSON)
		if err == nil && len(body) > 0 {
			return nil, NewError(nil, resp.StatusCode, string(body))
		}
		return nil, NewError(fmt.Errorf("unexpected response: %s", resp.Status), resp.StatusCode)
	}
	return resp, GetResponseData(resp, c.maxBytesToParse, respData)
}

// Post creates a resource, returning the Location received, if any.
func (c *Client) Post(ctx context.Context, target string, reqData, respData any) (*url.URL, error) {
	resp, err := c.SendRecv2xx(ctx, http.MethodPost, target, nil, reqData, respData)
	if err == nil && resp != nil {
		location, _ := resp.Location()
		return location, nil
	}
	return nil, err
}

// Put creates or replaces a resource, returning the Location received, if any.
func (c *Client) Put(ctx context.Context, target string, reqData, respData any) (*url.URL, error) {
	resp, err := c.SendRecv2xx(ctx, http.MethodPut, target, nil, reqData, respData)
	if err == nil && resp != nil {
		location, _ := resp.Location()
		return location, nil
	}
	return nil, err
}

// Patch partially updates a resource.
// Content-Type is chosen by the content, JSON Patch (RFC 6902) or JSON Merge Patch (RFC 7386).
func (c *Client) Patch(ctx context.Context, target string, reqData, respData any) error {
	_, err := c.SendRecv2xx(ctx, http.MethodPatch, target, nil, reqData, respData)
	return err
}

// Get gets a resource.
func (c *Client) Get(ctx context.Context, target string, respData any) error {
	_, err := c.SendRecv2xx(ctx, http.MethodGet, target, nil, nil, respData)
	return err
}

// Head returns the headers of a resource.
func (c *Client) Head(ctx context.Context, target string) (http.Header, error) {
	resp, err := c.SendRecv2xx(ctx, http.MethodHead, target, nil, nil, nil)
	if err == nil && resp != nil {
		return resp.Header, nil
	}
	return http.Header{}, err
}

// Delete deletes a resource.
func (c *Client) Delete(ctx context.Context, target string) error {
	_, err := c.SendRecv2xx(ctx, http.MethodDelete, target, nil, nil, nil)
	return err
}

// Post sends a POST request with the default client.
func Post(ctx context.Context, target string, reqData, respData any) (*url.URL, error) {
	return defaultClient.Post(ctx, target, reqData, respData)
}

// Put updates a resource with the default client.
func Put(ctx context.Context, target string, reqData, respData any) (*url.URL, error) {
	return defaultClient.Put(ctx, target, reqData, respData)
}

// Patch partially updates a resource with the default client.
func Patch(ctx context.Context, target string, reqData, respData any) error {
	return defaultClient.Patch(ctx, target, reqData, respData)
}

// Get gets a resource with the default client.
func Get(ctx context.Context, target string, respData any) error {
	return defaultClient.Get(ctx, target, respData)
}

// Delete deletes a resource with the default client.
func Delete(ctx context.Context, target string) error {
	return defaultClient.Delete(ctx, target)
}
