// Package apierr classifies failures of outbound API calls so callers can
// tell a network problem apart from a service-reported failure or a body
// the service returned but we could not decode.
package apierr

import (
	"errors"
	"fmt"
	"strings"
)

// TransportError means the call never produced a usable HTTP response.
type TransportError struct {
	Service string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport error: %v", e.Service, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// UpstreamError means the transport succeeded but the service reported a
// logical failure (non-2xx status or an error field in the body).
type UpstreamError struct {
	Service string
	Status  int
	Code    string
}

func (e *UpstreamError) Error() string {
	code := strings.TrimSpace(e.Code)
	if code == "" {
		code = "unknown_error"
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s failed: %s (http %d)", e.Service, code, e.Status)
	}
	return fmt.Sprintf("%s failed: %s", e.Service, code)
}

// ParseError means the service answered but the body was malformed.
type ParseError struct {
	Service string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s returned malformed body: %v", e.Service, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

func IsParse(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
