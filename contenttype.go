// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package spantrace

import (
	"net/http"
	"strings"
)

// ContentType strings
const (
	AcceptHeader               = "Accept"
	ContentTypeHeader          = "Content-type"
	ContentTypeApplicationJSON = "application/json"
	ContentTypeProblemJSON     = "application/problem+json"     // RFC 7807
	ContentTypePatchJSON       = "application/json-patch+json"  // RFC 6902
	ContentTypeMergeJSON       = "application/merge-patch+json" // RFC 7386
)

// BaseContentType returns the MIME type of the Content-Type header as lower-case string
// E.g.: "application/JSON; charset=ISO-8859-1" --> "application/json"
func BaseContentType(contentType string) string {
	base, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

// GetBaseContentType returns base content type from HTTP header.
// E.g.: "Content-Type: application/JSON; charset=ISO-8859-1" --> "application/json"
func GetBaseContentType(headers http.Header) string {
	return BaseContentType(headers.Get(ContentTypeHeader))
}

func isJSONContentType(baseCT string) bool {
	return strings.HasSuffix(baseCT, "json")
}

// contentTypeFor chooses Content-Type of a JSON request body.
// PATCH body is JSON Patch if it looks like an array of operations, JSON Merge Patch otherwise.
func contentTypeFor(method string, body []byte) string {
	if method != http.MethodPatch {
		return ContentTypeApplicationJSON
	}
	if len(body) > 0 && body[0] == '[' && strings.Contains(string(body), `"op"`) {
		return ContentTypePatchJSON
	}
	return ContentTypeMergeJSON
}
