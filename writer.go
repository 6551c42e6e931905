// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package spantrace

import (
	"bytes"
	"maps"
	"net/http"
	"strconv"
)

// bufferedWriter holds the response in memory, so that headers can still be added after the handler returned.
// Headers are frozen at WriteHeader, as http.ResponseWriter does; later changes are dropped at flush.
type bufferedWriter struct {
	writer      http.ResponseWriter
	sent        http.Header
	wroteHeader bool
	statusCode  int
	buffer      bytes.Buffer
}

func newBufferedWriter(w http.ResponseWriter) *bufferedWriter {
	return &bufferedWriter{writer: w}
}

// Header returns the header map to be written.
func (bw *bufferedWriter) Header() http.Header {
	return bw.writer.Header()
}

// Write buffers content.
func (bw *bufferedWriter) Write(b []byte) (int, error) {
	if !bw.wroteHeader {
		bw.WriteHeader(http.StatusOK)
	}
	return bw.buffer.Write(b)
}

// WriteHeader stores HTTP status code and takes a copy of the headers. Only the first call has effect.
func (bw *bufferedWriter) WriteHeader(statusCode int) {
	if bw.wroteHeader {
		return
	}
	bw.wroteHeader = true
	bw.statusCode = statusCode
	bw.sent = bw.writer.Header().Clone()
}

// Flush commits the headers, the way flushing an unbuffered response does.
// Content stays buffered till the handler returns.
func (bw *bufferedWriter) Flush() {
	if !bw.wroteHeader {
		bw.WriteHeader(http.StatusOK)
	}
}

// Unwrap returns the original writer, for http.ResponseController.
// Hijacking the connection bypasses the buffer; the buffered response is then lost.
func (bw *bufferedWriter) Unwrap() http.ResponseWriter {
	return bw.writer
}

// flush sends the headers as they were at WriteHeader, with the ones added by addHeaders, then the status and body.
func (bw *bufferedWriter) flush(addHeaders func(http.Header)) error {
	headers := bw.writer.Header()
	if bw.sent != nil {
		clear(headers)
		maps.Copy(headers, bw.sent)
	}
	if addHeaders != nil {
		addHeaders(headers)
	}
	if bw.buffer.Len() > 0 && headers.Get("Content-Length") == "" {
		headers.Set("Content-Length", strconv.Itoa(bw.buffer.Len()))
	}

	statusCode := bw.statusCode
	if statusCode == 0 {
		statusCode = http.StatusOK
	}
	bw.writer.WriteHeader(statusCode)
	_, err := bw.buffer.WriteTo(bw.writer)
	return err
}
