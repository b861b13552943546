package thread

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/slack-go/slack"
)

type repliesFunc func(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error)

func (f repliesFunc) GetConversationRepliesContext(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error) {
	return f(ctx, params)
}

func messageWithText(text string) slack.Message {
	return slack.Message{Msg: slack.Msg{Text: text}}
}

func TestFlattenedJoinsMessagesInOrder(t *testing.T) {
	t.Parallel()

	fetcher, err := NewFetcher(FetcherOptions{
		API: repliesFunc(func(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error) {
			if params.ChannelID != "C1" {
				t.Fatalf("channel mismatch: got %q want %q", params.ChannelID, "C1")
			}
			if params.Timestamp != "100.1" {
				t.Fatalf("timestamp mismatch: got %q want %q", params.Timestamp, "100.1")
			}
			return []slack.Message{messageWithText("a"), messageWithText("b"), messageWithText("c")}, false, "", nil
		}),
	})
	if err != nil {
		t.Fatalf("NewFetcher() error = %v", err)
	}

	got, err := fetcher.Flattened(context.Background(), "C1", "100.1")
	if err != nil {
		t.Fatalf("Flattened() error = %v", err)
	}
	if got != "a\nb\nc" {
		t.Fatalf("flattened mismatch: got %q want %q", got, "a\nb\nc")
	}
}

func TestFlattenedEmptyThread(t *testing.T) {
	t.Parallel()

	fetcher, err := NewFetcher(FetcherOptions{
		API: repliesFunc(func(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error) {
			return nil, false, "", nil
		}),
	})
	if err != nil {
		t.Fatalf("NewFetcher() error = %v", err)
	}

	got, err := fetcher.Flattened(context.Background(), "C1", "100.1")
	if err != nil {
		t.Fatalf("Flattened() error = %v", err)
	}
	if got != "" {
		t.Fatalf("flattened mismatch: got %q want empty", got)
	}
}

func TestFlattenedFollowsCursor(t *testing.T) {
	t.Parallel()

	calls := 0
	fetcher, err := NewFetcher(FetcherOptions{
		API: repliesFunc(func(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error) {
			calls++
			switch params.Cursor {
			case "":
				return []slack.Message{messageWithText("a")}, true, "next", nil
			case "next":
				return []slack.Message{messageWithText("b")}, false, "", nil
			default:
				return nil, false, "", fmt.Errorf("unexpected cursor %q", params.Cursor)
			}
		}),
	})
	if err != nil {
		t.Fatalf("NewFetcher() error = %v", err)
	}

	got, err := fetcher.Flattened(context.Background(), "C1", "100.1")
	if err != nil {
		t.Fatalf("Flattened() error = %v", err)
	}
	if got != "a\nb" {
		t.Fatalf("flattened mismatch: got %q want %q", got, "a\nb")
	}
	if calls != 2 {
		t.Fatalf("page calls mismatch: got %d want 2", calls)
	}
}

func TestFlattenedErrorClassification(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name       string
		err        error
		wantReason string
	}{
		{name: "upstream", err: slack.SlackErrorResponse{Err: "thread_not_found"}, wantReason: ReasonUpstream},
		{name: "rate_limited", err: &slack.RateLimitedError{}, wantReason: ReasonUpstream},
		{name: "parse", err: &json.SyntaxError{}, wantReason: ReasonParse},
		{name: "transport", err: fmt.Errorf("dial tcp: connection refused"), wantReason: ReasonTransport},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			fetcher, err := NewFetcher(FetcherOptions{
				API: repliesFunc(func(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error) {
					return nil, false, "", tc.err
				}),
			})
			if err != nil {
				t.Fatalf("NewFetcher() error = %v", err)
			}

			_, err = fetcher.Flattened(context.Background(), "C1", "100.1")
			var fetchErr *FetchError
			if !errors.As(err, &fetchErr) {
				t.Fatalf("error type mismatch: got %T want *FetchError", err)
			}
			if fetchErr.Reason != tc.wantReason {
				t.Fatalf("reason mismatch: got %q want %q", fetchErr.Reason, tc.wantReason)
			}
		})
	}
}
