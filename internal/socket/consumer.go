// Package socket consumes Slack Socket Mode envelopes and feeds mentions to
// the answer pipeline. It is the inbound transport for deployments that
// cannot expose a public events endpoint.
package socket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quailyquaily/answerbot/internal/events"
)

// EventSink receives each parsed mention. *events.Pipeline satisfies it.
type EventSink interface {
	Handle(ctx context.Context, ev events.InboundEvent) error
}

type socketEnvelope struct {
	Type       string          `json:"type"`
	EnvelopeID string          `json:"envelope_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type envelopePayload struct {
	EventID string          `json:"event_id"`
	Event   json.RawMessage `json:"event"`
}

type envelopeEvent struct {
	Type     string `json:"type"`
	Subtype  string `json:"subtype"`
	User     string `json:"user"`
	BotID    string `json:"bot_id"`
	Text     string `json:"text"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts"`
	Channel  string `json:"channel"`
}

// ConsumerOptions configures NewConsumer.
type ConsumerOptions struct {
	AppToken string
	Sink     EventSink
	Timeout  time.Duration
	Logger   *slog.Logger

	// BaseURL and HTTPClient override the Slack API endpoint in tests.
	BaseURL    string
	HTTPClient *http.Client

	// Dial replaces the websocket dialer in tests.
	Dial func(ctx context.Context, url string) (*websocket.Conn, error)

	// Detach runs the pipeline off the read loop. Defaults to a goroutine.
	Detach func(func())
}

// Consumer owns the connect/read/reconnect loop.
type Consumer struct {
	appToken string
	sink     EventSink
	timeout  time.Duration
	logger   *slog.Logger
	baseURL  string
	http     *http.Client
	dial     func(ctx context.Context, url string) (*websocket.Conn, error)
	detach   func(func())
}

const defaultEventTimeout = 60 * time.Second

func NewConsumer(opts ConsumerOptions) (*Consumer, error) {
	appToken := strings.TrimSpace(opts.AppToken)
	if appToken == "" {
		return nil, fmt.Errorf("app token is required")
	}
	if opts.Sink == nil {
		return nil, fmt.Errorf("event sink is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultEventTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	baseURL := strings.TrimSpace(strings.TrimRight(opts.BaseURL, "/"))
	if baseURL == "" {
		baseURL = "https://slack.com/api"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	dial := opts.Dial
	if dial == nil {
		dial = func(ctx context.Context, url string) (*websocket.Conn, error) {
			dialer := *websocket.DefaultDialer
			conn, _, err := dialer.DialContext(ctx, url, nil)
			return conn, err
		}
	}
	detach := opts.Detach
	if detach == nil {
		detach = func(fn func()) { go fn() }
	}
	return &Consumer{
		appToken: appToken,
		sink:     opts.Sink,
		timeout:  timeout,
		logger:   logger,
		baseURL:  baseURL,
		http:     httpClient,
		dial:     dial,
		detach:   detach,
	}, nil
}

// Run connects and consumes envelopes until ctx is canceled, reconnecting
// with a fixed backoff after connect or read failures.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			c.logger.Info("socket_stop", "reason", "context_canceled")
			return nil
		}
		conn, err := c.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("socket_stop", "reason", "context_canceled")
				return nil
			}
			c.logger.Warn("socket_connect_error", "error", err.Error())
			if err := sleepWithContext(ctx, 2*time.Second); err != nil {
				return nil
			}
			continue
		}
		c.logger.Info("socket_connected")
		readErr := c.consume(ctx, conn)
		_ = conn.Close()
		if readErr != nil && ctx.Err() == nil {
			c.logger.Warn("socket_read_error", "error", readErr.Error())
		}
	}
}

func (c *Consumer) connect(ctx context.Context) (*websocket.Conn, error) {
	url, err := c.openSocketURL(ctx)
	if err != nil {
		return nil, err
	}
	return c.dial(ctx, url)
}

type openConnectionResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	URL   string `json:"url,omitempty"`
}

func (c *Consumer) openSocketURL(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/apps.connections.open", bytes.NewReader(nil))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.appToken)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("slack apps.connections.open http %d", resp.StatusCode)
	}
	var out openConnectionResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if !out.OK {
		code := strings.TrimSpace(out.Error)
		if code == "" {
			code = "unknown_error"
		}
		return "", fmt.Errorf("slack apps.connections.open failed: %s", code)
	}
	url := strings.TrimSpace(out.URL)
	if url == "" {
		return "", fmt.Errorf("slack apps.connections.open returned empty url")
	}
	return url, nil
}

func (c *Consumer) consume(ctx context.Context, conn *websocket.Conn) error {
	if conn == nil {
		return fmt.Errorf("websocket connection is nil")
	}
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var envelope socketEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			continue
		}
		if strings.TrimSpace(envelope.EnvelopeID) != "" {
			if err := conn.WriteJSON(map[string]string{"envelope_id": envelope.EnvelopeID}); err != nil {
				return err
			}
		}
		ev, ok, err := parseEnvelope(envelope)
		if err != nil {
			c.logger.Warn("socket_envelope_parse_error", "error", err.Error())
			continue
		}
		if !ok {
			continue
		}
		c.detach(func() { c.runEvent(ev) })
	}
}

func (c *Consumer) runEvent(ev events.InboundEvent) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("pipeline_panic", "event_id", ev.DedupKey(), "panic", fmt.Sprint(r))
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	if err := c.sink.Handle(ctx, ev); err != nil {
		c.logger.Error("pipeline_failed", "event_id", ev.DedupKey(), "error", err.Error())
	}
}

func parseEnvelope(envelope socketEnvelope) (events.InboundEvent, bool, error) {
	if strings.TrimSpace(envelope.Type) != "events_api" || len(envelope.Payload) == 0 {
		return events.InboundEvent{}, false, nil
	}
	var payload envelopePayload
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		return events.InboundEvent{}, false, err
	}
	if len(payload.Event) == 0 {
		return events.InboundEvent{}, false, nil
	}
	var event envelopeEvent
	if err := json.Unmarshal(payload.Event, &event); err != nil {
		return events.InboundEvent{}, false, err
	}
	if strings.TrimSpace(event.Type) != "app_mention" {
		return events.InboundEvent{}, false, nil
	}
	if strings.TrimSpace(event.Subtype) != "" {
		return events.InboundEvent{}, false, nil
	}
	channelID := strings.TrimSpace(event.Channel)
	ts := strings.TrimSpace(event.TS)
	if channelID == "" || ts == "" {
		return events.InboundEvent{}, false, nil
	}
	return events.InboundEvent{
		EventID:   strings.TrimSpace(payload.EventID),
		UserID:    strings.TrimSpace(event.User),
		BotID:     strings.TrimSpace(event.BotID),
		ChannelID: channelID,
		Text:      event.Text,
		TS:        ts,
		ThreadTS:  strings.TrimSpace(event.ThreadTS),
	}, true, nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
