// Copyright 2021-2025 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package spantrace

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"
)

// GetDataBytes returns []byte received.
// If maxBytes > 0 then larger body is dropped.
func GetDataBytes(headers http.Header, ioBody io.ReadCloser, maxBytes int) ([]byte, error) {
	if ioBody == nil { // On using httptest req.Body may be missing.
		return nil, nil
	}
	defer ioBody.Close()

	var r io.Reader = ioBody
	if maxBytes > 0 {
		if cl, err := strconv.Atoi(headers.Get("Content-length")); err == nil && cl > maxBytes {
			_, _ = io.Copy(io.Discard, ioBody)
			return nil, fmt.Errorf("%w: Content-Length %d > %d", ErrBodyTooLarge, cl, maxBytes)
		}
		r = io.LimitReader(ioBody, int64(maxBytes)+1)
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return body, fmt.Errorf("body read error: %w", err)
	}
	if maxBytes > 0 && len(body) > maxBytes { // In case of streaming content-length is not known at the beginning.
		return nil, fmt.Errorf("%w: content longer than %d", ErrBodyTooLarge, maxBytes)
	}
	return body, nil
}

// GetDataBytesForContentType returns []byte received, if Content-Type is matching.
// If no content then Content-Type is not checked.
// If maxBytes > 0 then larger body is dropped.
func GetDataBytesForContentType(headers http.Header, ioBody io.ReadCloser, maxBytes int, expectedContentType string) ([]byte, error) {
	body, err := GetDataBytes(headers, ioBody, maxBytes)
	if err != nil || len(body) == 0 || expectedContentType == "" {
		return body, err
	}

	if recvd := GetBaseContentType(headers); recvd != expectedContentType {
		return body, errors.Join(ErrUnexpectedContentType, fmt.Errorf("received: '%s'; expected: %s", recvd, expectedContentType))
	}
	return body, nil
}

// GetResponseData decodes JSON body of HTTP response into data.
// If data is nil, the body is dropped.
// If maxBytes > 0 it blocks parsing exceedingly huge JSON data, which could be used for DoS or memory overflow attacks.
func GetResponseData(resp *http.Response, maxBytes int, data any) error {
	if data == nil {
		if resp.Body != nil {
			_ = resp.Body.Close()
		}
		return nil
	}

	body, err := GetDataBytes(resp.Header, resp.Body, maxBytes)
	if err != nil || len(body) == 0 {
		return err
	}

	ct := GetBaseContentType(resp.Header)
	if !isJSONContentType(ct) {
		return fmt.Errorf("%w: '%s'; not JSON", ErrUnexpectedContentType, ct)
	}
	if ct == ContentTypeProblemJSON {
		log.Debug("Problem: ", string(body))
	}
	return json.Unmarshal(body, data)
}
