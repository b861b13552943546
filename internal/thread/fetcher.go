// Package thread reconstructs the Slack thread that triggered a mention.
package thread

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
)

const defaultPageLimit = 200

// Reason values carried by FetchError.
const (
	ReasonTransport = "transport"
	ReasonUpstream  = "upstream"
	ReasonParse     = "parse"
)

// FetchError wraps a failed conversations.replies call with the upstream
// message and a coarse reason.
type FetchError struct {
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch thread (%s): %v", e.Reason, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// RepliesAPI is the slice of the Slack client the fetcher needs.
type RepliesAPI interface {
	GetConversationRepliesContext(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error)
}

type FetcherOptions struct {
	API       RepliesAPI
	PageLimit int
}

type Fetcher struct {
	api       RepliesAPI
	pageLimit int
}

func NewFetcher(opts FetcherOptions) (*Fetcher, error) {
	if opts.API == nil {
		return nil, fmt.Errorf("slack replies api is required")
	}
	pageLimit := opts.PageLimit
	if pageLimit <= 0 {
		pageLimit = defaultPageLimit
	}
	return &Fetcher{api: opts.API, pageLimit: pageLimit}, nil
}

// Flattened returns every message text in the thread anchored at threadTS,
// joined in arrival order with newlines. An empty thread yields "".
func (f *Fetcher) Flattened(ctx context.Context, channelID, threadTS string) (string, error) {
	if f == nil || f.api == nil {
		return "", &FetchError{Reason: ReasonTransport, Err: fmt.Errorf("thread fetcher is not initialized")}
	}
	channelID = strings.TrimSpace(channelID)
	threadTS = strings.TrimSpace(threadTS)
	if channelID == "" {
		return "", &FetchError{Reason: ReasonUpstream, Err: fmt.Errorf("channel_id is required")}
	}
	if threadTS == "" {
		return "", &FetchError{Reason: ReasonUpstream, Err: fmt.Errorf("thread_ts is required")}
	}

	var texts []string
	cursor := ""
	for {
		msgs, hasMore, nextCursor, err := f.api.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
			ChannelID: channelID,
			Timestamp: threadTS,
			Cursor:    cursor,
			Limit:     f.pageLimit,
		})
		if err != nil {
			return "", classifyFetchError(err)
		}
		for _, m := range msgs {
			texts = append(texts, m.Msg.Text)
		}
		if !hasMore || strings.TrimSpace(nextCursor) == "" {
			break
		}
		cursor = nextCursor
	}
	return strings.Join(texts, "\n"), nil
}

func classifyFetchError(err error) *FetchError {
	var apiErr slack.SlackErrorResponse
	if errors.As(err, &apiErr) {
		return &FetchError{Reason: ReasonUpstream, Err: err}
	}
	var rateErr *slack.RateLimitedError
	if errors.As(err, &rateErr) {
		return &FetchError{Reason: ReasonUpstream, Err: err}
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &FetchError{Reason: ReasonParse, Err: err}
	}
	return &FetchError{Reason: ReasonTransport, Err: err}
}
