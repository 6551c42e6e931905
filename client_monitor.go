// Copyright 2021- Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package spantrace

import "net/http"

// ClientMonitorFuncPost is a type of user defined function to be called after the response is received.
// Response can be modified. If nil is returned, then the input response is retained.
// The span of the call is reported after the post functions returned, so it reflects the response they returned.
type ClientMonitorFuncPost func(req *http.Request, resp *http.Response, err error) *http.Response

// ClientMonitorFuncPre is a type of user defined function to be called before the request is sent.
// If returns non-nil response or error, then those are returned immediately, the request is not sent, and no span is reported.
// Request data can be freely modified.
type ClientMonitorFuncPre func(req *http.Request) (*http.Response, error)

type clientMonitor struct {
	pre  ClientMonitorFuncPre
	post ClientMonitorFuncPost
}

type clientMonitors []clientMonitor

// Monitor adds middleware to the client.
// Functions to call before sending a request (pre), and after receiving the response (post).
// Pre functions are called in reverse order of adding, post functions in order of adding.
func (c *Client) Monitor(pre ClientMonitorFuncPre, post ClientMonitorFuncPost) *Client {
	c.monitor = append(c.monitor, clientMonitor{pre: pre, post: post})
	return c
}
