// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package tracecommon

import (
	"fmt"
	"math/rand"
	"net/http"
	"time"
)

// Millis returns t as milliseconds since the Unix epoch, the time unit of the wire format.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// NewRequestTag generates a semi-random tag to correlate log lines of one request.
func NewRequestTag() string {
	return fmt.Sprintf("%016x", rand.Uint64()) // #nosec random is weak intentionally
}

// SetHeaderStr sets header for given header set, if given value is not empty.
func SetHeaderStr(headers http.Header, header, value string) {
	if headers == nil {
		return
	}
	if value != "" {
		headers.Set(header, value)
	}
}
