// Package publisher posts formatted replies back to Slack threads.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/quailyquaily/answerbot/internal/replyfmt"
)

// PostAPI is the slice of the Slack client used to publish messages.
type PostAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// PublishError wraps a post failure with the thread it targeted.
type PublishError struct {
	ChannelID string
	ThreadTS  string
	Err       error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %s/%s: %v", e.ChannelID, e.ThreadTS, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// PublisherOptions configures NewPublisher.
type PublisherOptions struct {
	API    PostAPI
	Logger *slog.Logger

	// Sleep is replaced in tests; defaults to sleepWithContext.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Publisher posts reply payloads into Slack threads with bounded retry.
type Publisher struct {
	api    PostAPI
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewPublisher(opts PublisherOptions) (*Publisher, error) {
	if opts.API == nil {
		return nil, fmt.Errorf("post api is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}
	return &Publisher{api: opts.API, logger: logger, sleep: sleep}, nil
}

const maxPostAttempts = 3

// Publish posts the payload as a threaded reply. Rate limits are retried with
// the server-provided wait, transient Slack errors with a short backoff.
func (p *Publisher) Publish(ctx context.Context, channelID, threadTS string, payload replyfmt.Payload) error {
	channelID = strings.TrimSpace(channelID)
	threadTS = strings.TrimSpace(threadTS)
	if channelID == "" {
		return &PublishError{ChannelID: channelID, ThreadTS: threadTS, Err: fmt.Errorf("channel_id is required")}
	}

	options := []slack.MsgOption{
		slack.MsgOptionText(payload.Text, false),
	}
	if len(payload.Blocks) > 0 {
		options = append(options, slack.MsgOptionBlocks(payload.Blocks...))
	}
	if threadTS != "" {
		options = append(options, slack.MsgOptionTS(threadTS))
	}

	var lastErr error
	for attempt := 1; attempt <= maxPostAttempts; attempt++ {
		_, _, err := p.api.PostMessageContext(ctx, channelID, options...)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt >= maxPostAttempts {
			break
		}
		wait, retryable := postRetryDelay(err, attempt)
		if !retryable {
			break
		}
		p.logger.Warn("publish_retry", "channel_id", channelID, "attempt", attempt, "wait", wait.String(), "error", err.Error())
		if err := p.sleep(ctx, wait); err != nil {
			return &PublishError{ChannelID: channelID, ThreadTS: threadTS, Err: err}
		}
	}
	return &PublishError{ChannelID: channelID, ThreadTS: threadTS, Err: lastErr}
}

func postRetryDelay(err error, attempt int) (time.Duration, bool) {
	var rle *slack.RateLimitedError
	if errors.As(err, &rle) {
		wait := rle.RetryAfter
		if wait <= 0 {
			wait = 1 * time.Second
		}
		return wait, true
	}
	var ser slack.SlackErrorResponse
	if errors.As(err, &ser) {
		// API-level errors such as channel_not_found do not heal on retry.
		return 0, false
	}
	switch attempt {
	case 1:
		return 300 * time.Millisecond, true
	case 2:
		return 1 * time.Second, true
	default:
		return 2 * time.Second, true
	}
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
