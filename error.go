// Copyright 2021 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package spantrace

import (
	"errors"
	"net/http"
	"strings"
)

var (
	// ErrUnexpectedContentType is returned if content-type is unexpected.
	ErrUnexpectedContentType = errors.New("unexpected Content-Type")

	// ErrBodyTooLarge is returned if a body exceeds the limit set by Client.SetMaxBytesToParse.
	ErrBodyTooLarge = errors.New("body too large")
)

// restError is an error carrying the HTTP status of a response received.
type restError struct {
	err         error
	statusCode  int
	description string
}

// Error returns error string.
func (e *restError) Error() string {
	errStr := ""
	if e.err != nil {
		errStr = e.err.Error()
	}
	switch {
	case e.description == "":
		return errStr
	case errStr == "":
		return e.description
	}
	return e.description + ": " + errStr
}

// Unwrap returns wrapped error.
func (e *restError) Unwrap() error {
	return e.err
}

// NewError creates a new error that contains HTTP status code.
// Parameter description is optional, appearing at the beginning of the error string.
// Parameter err may be nil.
//
//	if err != nil {return spantrace.NewError(err, http.StatusBadGateway, "inventory")}
func NewError(err error, statusCode int, description ...string) error {
	return &restError{err: err, statusCode: statusCode, description: strings.Join(description, " ")}
}

// GetErrStatusCode returns status code of error response.
// If err is nil then http.StatusOK returned.
// If no status stored (e.g. connection failed) then http.StatusInternalServerError returned.
func GetErrStatusCode(err error) int {
	status := GetErrStatusCodeElse(err, -1)
	if status <= 0 {
		return http.StatusInternalServerError
	}
	return status
}

// GetErrStatusCodeElse returns status code of error response, if available.
// Else returns the one the caller provided. Probably transport error happened and no HTTP response was received.
// If err is nil then http.StatusOK returned.
func GetErrStatusCodeElse(err error, elseStatusCode int) int {
	if err == nil {
		return http.StatusOK
	}
	var e *restError
	if errors.As(err, &e) {
		return e.statusCode
	}
	return elseStatusCode
}

// IsConnectError determines if error is due to failed connection.
// I.e. does not contain HTTP status code, or 502 / 503 / 504.
func IsConnectError(err error) bool {
	status := GetErrStatusCodeElse(err, http.StatusBadGateway)
	return status >= http.StatusBadGateway && status <= http.StatusGatewayTimeout
}
