// Copyright 2021-2024 Nokia
// Licensed under the BSD 3-Clause License.
// SPDX-License-Identifier: BSD-3-Clause

package tracelog

import "encoding/json"

type traceLogJSON struct {
	ApplicationName string     `json:"applicationName,omitempty"`
	HostName        string     `json:"hostName,omitempty"`
	StartTime       int64      `json:"startTime"`
	Duration        int64      `json:"duration"`
	Spans           []spanJSON `json:"spans,omitempty"`
}

// spanJSON is the flat wire form of all span kinds.
// Peers not sending "kind" get the kind inferred from the fields present.
type spanJSON struct {
	Kind      Kind   `json:"kind,omitempty"`
	Name      string `json:"name,omitempty"`
	StartTime int64  `json:"startTime"`
	Duration  int64  `json:"duration"`

	RequestMethod  string    `json:"requestMethod,omitempty"`
	RequestURI     string    `json:"requestURI,omitempty"`
	ResponseStatus *int      `json:"responseStatus,omitempty"`
	NestedTraceLog *TraceLog `json:"nestedTraceLog,omitempty"`

	NumberQueries  int    `json:"numberQueries,omitempty"`
	DatasourceName string `json:"datasourceName,omitempty"`

	CircuitBreaker string `json:"circuitBreaker,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (l TraceLog) MarshalJSON() ([]byte, error) {
	w := traceLogJSON{ApplicationName: l.ApplicationName, HostName: l.HostName, StartTime: l.StartTime, Duration: l.Duration}
	for _, s := range l.Spans {
		w.Spans = append(w.Spans, s.wire())
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *TraceLog) UnmarshalJSON(b []byte) error {
	var w traceLogJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*l = TraceLog{ApplicationName: w.ApplicationName, HostName: w.HostName, StartTime: w.StartTime, Duration: max(w.Duration, 0)}
	for _, sw := range w.Spans {
		l.Spans = append(l.Spans, sw.span())
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s Span) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.wire())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Span) UnmarshalJSON(b []byte) error {
	var w spanJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*s = w.span()
	return nil
}

func (s Span) wire() spanJSON {
	w := spanJSON{Kind: s.Kind, Name: s.Name, StartTime: s.StartTime, Duration: s.Duration}
	switch s.Kind {
	case KindHTTP:
		if s.HTTP != nil {
			w.RequestMethod = s.HTTP.Method
			w.RequestURI = s.HTTP.URI
			w.ResponseStatus = s.HTTP.Status
			w.NestedTraceLog = s.HTTP.Nested
		}
	case KindQuery:
		if s.Query != nil {
			w.NumberQueries = s.Query.Count
			w.DatasourceName = s.Query.DataSource
		}
	case KindCircuitBreaker:
		if s.Breaker != nil {
			w.CircuitBreaker = s.Breaker.Breaker
		}
	}
	return w
}

func (w spanJSON) kind() Kind {
	if w.Kind.known() {
		return w.Kind
	}
	switch {
	case w.RequestMethod != "" || w.RequestURI != "" || w.ResponseStatus != nil || w.NestedTraceLog != nil:
		return KindHTTP
	case w.DatasourceName != "" || w.NumberQueries > 0:
		return KindQuery
	case w.CircuitBreaker != "":
		return KindCircuitBreaker
	}
	return KindCall
}

// span converts the wire form. Negative durations of peers are clamped to 0, as by the constructors.
func (w spanJSON) span() Span {
	s := Span{Kind: w.kind(), Name: w.Name, StartTime: w.StartTime, Duration: max(w.Duration, 0)}
	switch s.Kind {
	case KindHTTP:
		s.HTTP = &HTTPDetails{Method: w.RequestMethod, URI: w.RequestURI, Status: w.ResponseStatus, Nested: w.NestedTraceLog}
	case KindQuery:
		count := w.NumberQueries
		if count < 1 {
			count = 1
		}
		s.Query = &QueryDetails{Count: count, DataSource: w.DatasourceName}
	case KindCircuitBreaker:
		s.Breaker = &BreakerDetails{Breaker: w.CircuitBreaker}
	}
	return s
}
