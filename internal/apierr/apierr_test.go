package apierr

import (
	"fmt"
	"testing"
)

func TestClassifiers(t *testing.T) {
	t.Parallel()

	transport := fmt.Errorf("call failed: %w", &TransportError{Service: "zendesk ticket list", Err: fmt.Errorf("connection refused")})
	if !IsTransport(transport) || IsUpstream(transport) || IsParse(transport) {
		t.Fatalf("transport classification mismatch")
	}

	upstream := fmt.Errorf("call failed: %w", &UpstreamError{Service: "zendesk ticket list", Status: 429, Code: "rate_limited"})
	if !IsUpstream(upstream) || IsTransport(upstream) || IsParse(upstream) {
		t.Fatalf("upstream classification mismatch")
	}

	parse := fmt.Errorf("call failed: %w", &ParseError{Service: "zendesk ticket list", Err: fmt.Errorf("unexpected end of JSON input")})
	if !IsParse(parse) || IsTransport(parse) || IsUpstream(parse) {
		t.Fatalf("parse classification mismatch")
	}
}

func TestUpstreamErrorMessage(t *testing.T) {
	t.Parallel()

	err := &UpstreamError{Service: "zendesk article search", Status: 403, Code: "forbidden"}
	if got := err.Error(); got != "zendesk article search failed: forbidden (http 403)" {
		t.Fatalf("message mismatch: got %q", got)
	}

	err = &UpstreamError{Service: "zendesk article search"}
	if got := err.Error(); got != "zendesk article search failed: unknown_error" {
		t.Fatalf("message mismatch: got %q", got)
	}
}
