package socket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quailyquaily/answerbot/internal/events"
)

type sinkFunc func(ctx context.Context, ev events.InboundEvent) error

func (f sinkFunc) Handle(ctx context.Context, ev events.InboundEvent) error { return f(ctx, ev) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseEnvelopeAppMention(t *testing.T) {
	t.Parallel()

	payload := `{
		"event_id": "Ev1",
		"event": {
			"type": "app_mention",
			"user": "U1",
			"text": "<@UBOT> help",
			"ts": "100.2",
			"thread_ts": "100.1",
			"channel": "C1"
		}
	}`
	ev, ok, err := parseEnvelope(socketEnvelope{Type: "events_api", Payload: json.RawMessage(payload)})
	if err != nil {
		t.Fatalf("parseEnvelope() error = %v", err)
	}
	if !ok {
		t.Fatalf("parseEnvelope() ok = false, want true")
	}
	want := events.InboundEvent{
		EventID: "Ev1", UserID: "U1", ChannelID: "C1",
		Text: "<@UBOT> help", TS: "100.2", ThreadTS: "100.1",
	}
	if ev != want {
		t.Fatalf("event mismatch: got %+v want %+v", ev, want)
	}
}

func TestParseEnvelopeSkips(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		envelope socketEnvelope
	}{
		{"hello envelope", socketEnvelope{Type: "hello"}},
		{"empty payload", socketEnvelope{Type: "events_api"}},
		{"message event", socketEnvelope{Type: "events_api", Payload: json.RawMessage(`{"event":{"type":"message","channel":"C1","ts":"1.1"}}`)}},
		{"edited subtype", socketEnvelope{Type: "events_api", Payload: json.RawMessage(`{"event":{"type":"app_mention","subtype":"message_changed","channel":"C1","ts":"1.1"}}`)}},
		{"missing channel", socketEnvelope{Type: "events_api", Payload: json.RawMessage(`{"event":{"type":"app_mention","ts":"1.1"}}`)}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, ok, err := parseEnvelope(tc.envelope); err != nil || ok {
				t.Fatalf("parseEnvelope() = ok %v err %v, want skip", ok, err)
			}
		})
	}
}

func TestParseEnvelopeMalformedPayload(t *testing.T) {
	t.Parallel()

	if _, ok, err := parseEnvelope(socketEnvelope{Type: "events_api", Payload: json.RawMessage(`{not json`)}); err == nil || ok {
		t.Fatalf("parseEnvelope() = ok %v err %v, want parse error", ok, err)
	}
}

func TestOpenSocketURL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/apps.connections.open" {
			t.Errorf("path mismatch: got %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer xapp-test" {
			t.Errorf("auth mismatch: got %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "url": "wss://example.invalid/link"})
	}))
	defer srv.Close()

	c, err := NewConsumer(ConsumerOptions{
		AppToken: "xapp-test",
		Sink:     sinkFunc(func(ctx context.Context, ev events.InboundEvent) error { return nil }),
		BaseURL:  srv.URL,
		Logger:   discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewConsumer() error = %v", err)
	}

	url, err := c.openSocketURL(context.Background())
	if err != nil {
		t.Fatalf("openSocketURL() error = %v", err)
	}
	if url != "wss://example.invalid/link" {
		t.Fatalf("url mismatch: got %q", url)
	}
}

func TestOpenSocketURLAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "invalid_auth"})
	}))
	defer srv.Close()

	c, err := NewConsumer(ConsumerOptions{
		AppToken: "xapp-test",
		Sink:     sinkFunc(func(ctx context.Context, ev events.InboundEvent) error { return nil }),
		BaseURL:  srv.URL,
		Logger:   discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewConsumer() error = %v", err)
	}
	if _, err := c.openSocketURL(context.Background()); err == nil {
		t.Fatalf("openSocketURL() error = nil, want error")
	}
}
