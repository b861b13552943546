package events

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/quailyquaily/answerbot/internal/answer"
	"github.com/quailyquaily/answerbot/internal/dedup"
	"github.com/quailyquaily/answerbot/internal/replyfmt"
	"github.com/quailyquaily/answerbot/internal/retrieval"
)

// ThreadFetcher reconstructs the conversation the mention lives in.
type ThreadFetcher interface {
	Flattened(ctx context.Context, channelID, threadTS string) (string, error)
}

// Retriever gathers grounding context for a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string) []retrieval.Item
}

// Generator produces the answer text for a question plus its context.
type Generator interface {
	Generate(ctx context.Context, question string, items []answer.ContextItem) answer.Generated
}

// ReplyPublisher posts the formatted payload into the thread.
type ReplyPublisher interface {
	Publish(ctx context.Context, channelID, threadTS string, payload replyfmt.Payload) error
}

// PipelineOptions configures NewPipeline.
type PipelineOptions struct {
	Fetcher   ThreadFetcher
	Retriever Retriever
	Generator Generator
	Publisher ReplyPublisher
	Dedup     dedup.Store
	BotUserID string
	Logger    *slog.Logger
}

// Pipeline runs one mention end to end: dedup, thread reconstruction,
// retrieval, generation, publish. Each stage failure degrades rather than
// aborting; the thread always receives a reply unless the event was a
// duplicate or self-authored.
type Pipeline struct {
	fetcher   ThreadFetcher
	retriever Retriever
	generator Generator
	publisher ReplyPublisher
	dedup     dedup.Store
	botUserID string
	logger    *slog.Logger
}

func NewPipeline(opts PipelineOptions) (*Pipeline, error) {
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("thread fetcher is required")
	}
	if opts.Retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if opts.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if opts.Publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		fetcher:   opts.Fetcher,
		retriever: opts.Retriever,
		generator: opts.Generator,
		publisher: opts.Publisher,
		dedup:     opts.Dedup,
		botUserID: strings.TrimSpace(opts.BotUserID),
		logger:    logger,
	}, nil
}

// Handle processes one event. The returned error reports a publish failure
// only; every earlier stage degrades in place.
func (p *Pipeline) Handle(ctx context.Context, ev InboundEvent) error {
	logger := p.logger.With("event_id", ev.DedupKey(), "channel_id", ev.ChannelID)
	logger.Info("event_received", "user_id", ev.UserID, "ts", ev.TS)

	if ev.BotID != "" || (p.botUserID != "" && ev.UserID == p.botUserID) {
		logger.Debug("event_self_skip")
		return nil
	}
	if p.dedup != nil {
		key := ev.DedupKey()
		if p.dedup.Seen(key) {
			logger.Debug("event_duplicate_skip")
			return nil
		}
		p.dedup.Mark(key)
	}
	logger.Info("event_processing")

	question, err := p.fetcher.Flattened(ctx, ev.ChannelID, ev.ThreadAnchor())
	if err != nil {
		logger.Warn("thread_fetch_error", "error", err.Error())
		question = ev.Text
	}
	question = strings.TrimSpace(question)
	if question == "" {
		question = strings.TrimSpace(ev.Text)
	}

	items := p.retriever.Retrieve(ctx, question)
	generated := p.generator.Generate(ctx, question, toContext(items))

	var citations []replyfmt.Citation
	if generated.Grounded {
		citations = toCitations(items)
	}
	payload := replyfmt.Build(ev.UserID, generated.Text, citations)

	if err := p.publisher.Publish(ctx, ev.ChannelID, ev.ThreadAnchor(), payload); err != nil {
		logger.Error("event_publish_error", "error", err.Error())
		return err
	}
	logger.Info("event_published", "grounded", generated.Grounded, "citations", len(citations))
	return nil
}

func toContext(items []retrieval.Item) []answer.ContextItem {
	out := make([]answer.ContextItem, 0, len(items))
	for _, item := range items {
		out = append(out, answer.ContextItem{URL: item.URL, Body: item.Body})
	}
	return out
}

func toCitations(items []retrieval.Item) []replyfmt.Citation {
	var out []replyfmt.Citation
	seen := make(map[string]bool)
	for _, item := range items {
		url := strings.TrimSpace(item.URL)
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true
		out = append(out, replyfmt.Citation{Title: item.Title, URL: url})
	}
	return out
}
