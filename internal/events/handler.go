package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const maxEventBodyBytes = 1 << 20

type eventEnvelope struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	EventID   string `json:"event_id"`
	Event     struct {
		Type     string `json:"type"`
		User     string `json:"user"`
		BotID    string `json:"bot_id"`
		Text     string `json:"text"`
		TS       string `json:"ts"`
		ThreadTS string `json:"thread_ts"`
		Channel  string `json:"channel"`
	} `json:"event"`
}

// HandlerOptions configures NewHandler.
type HandlerOptions struct {
	Pipeline *Pipeline
	Timeout  time.Duration
	Logger   *slog.Logger

	// Detach runs the pipeline after the ack is written. Defaults to a
	// goroutine; tests replace it to run synchronously.
	Detach func(func())
}

// Handler is the HTTP endpoint for the Slack Events API. The ack is written
// before the pipeline runs so Slack's 3-second deadline is never at risk.
type Handler struct {
	pipeline *Pipeline
	timeout  time.Duration
	logger   *slog.Logger
	detach   func(func())
}

const defaultPipelineTimeout = 60 * time.Second

func NewHandler(opts HandlerOptions) (*Handler, error) {
	if opts.Pipeline == nil {
		return nil, fmt.Errorf("pipeline is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultPipelineTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	detach := opts.Detach
	if detach == nil {
		detach = func(fn func()) { go fn() }
	}
	return &Handler{pipeline: opts.Pipeline, timeout: timeout, logger: logger, detach: detach}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBodyBytes))
	if err != nil {
		h.logger.Warn("events_read_error", "error", err.Error())
		writeAck(w)
		return
	}

	var env eventEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		// Malformed payloads are acked so Slack does not retry them.
		h.logger.Warn("events_parse_error", "error", err.Error())
		writeAck(w)
		return
	}

	switch env.Type {
	case "url_verification":
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"challenge": env.Challenge})
	case "event_callback":
		if env.Event.Type != "app_mention" {
			writeAck(w)
			return
		}
		ev := InboundEvent{
			EventID:   env.EventID,
			UserID:    env.Event.User,
			BotID:     env.Event.BotID,
			ChannelID: env.Event.Channel,
			Text:      env.Event.Text,
			TS:        env.Event.TS,
			ThreadTS:  env.Event.ThreadTS,
		}
		writeAck(w)
		h.detach(func() { h.run(ev) })
	default:
		writeAck(w)
	}
}

func (h *Handler) run(ev InboundEvent) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("pipeline_panic", "event_id", ev.DedupKey(), "panic", fmt.Sprint(r))
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	if err := h.pipeline.Handle(ctx, ev); err != nil {
		h.logger.Error("pipeline_failed", "event_id", ev.DedupKey(), "error", err.Error())
	}
}

func writeAck(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
