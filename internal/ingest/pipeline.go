// Package ingest pages support tickets out of the helpdesk, chunks and embeds
// them, and upserts the vectors into the index.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/quailyquaily/answerbot/internal/vectorindex"
	"github.com/quailyquaily/answerbot/internal/zendesk"
)

// TicketSource is the slice of the helpdesk client the pipeline reads from.
type TicketSource interface {
	ListTickets(ctx context.Context, max int) ([]zendesk.Ticket, error)
	TicketComments(ctx context.Context, ticketID int64) ([]string, error)
	TicketURL(ticketID int64) string
}

// EmbedFunc turns a batch of texts into vectors, order preserved.
type EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// DefaultBatchSize is the number of vectors upserted per call.
const DefaultBatchSize = 100

// PipelineOptions configures NewPipeline.
type PipelineOptions struct {
	Source      TicketSource
	Embed       EmbedFunc
	Index       vectorindex.Upserter
	ChunkTokens int
	BatchSize   int
	Logger      *slog.Logger
}

// Pipeline runs one ingestion pass.
type Pipeline struct {
	source      TicketSource
	embed       EmbedFunc
	index       vectorindex.Upserter
	chunkTokens int
	batchSize   int
	logger      *slog.Logger
}

// Stats summarizes an ingestion run.
type Stats struct {
	Tickets       int
	Chunks        int
	Upserted      int
	FailedBatches int
}

func NewPipeline(opts PipelineOptions) (*Pipeline, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("ticket source is required")
	}
	if opts.Embed == nil {
		return nil, fmt.Errorf("embed func is required")
	}
	if opts.Index == nil {
		return nil, fmt.Errorf("vector index is required")
	}
	chunkTokens := opts.ChunkTokens
	if chunkTokens <= 0 {
		chunkTokens = DefaultChunkTokens
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:      opts.Source,
		embed:       opts.Embed,
		index:       opts.Index,
		chunkTokens: chunkTokens,
		batchSize:   batchSize,
		logger:      logger,
	}, nil
}

// Run ingests up to maxTickets tickets. Per-ticket comment failures and
// per-batch upsert failures are logged and skipped so one bad ticket cannot
// sink the run; only listing tickets is fatal.
func (p *Pipeline) Run(ctx context.Context, maxTickets int) (Stats, error) {
	var stats Stats
	logger := p.logger.With("run_id", uuid.NewString())

	tickets, err := p.source.ListTickets(ctx, maxTickets)
	if err != nil {
		return stats, fmt.Errorf("list tickets: %w", err)
	}
	logger.Info("ingest_start", "tickets", len(tickets))

	var batch []vectorindex.Record
	for _, ticket := range tickets {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		records, err := p.ticketRecords(ctx, ticket)
		if err != nil {
			logger.Warn("ingest_ticket_error", "ticket_id", ticket.ID, "error", err.Error())
			continue
		}
		stats.Tickets++
		stats.Chunks += len(records)
		batch = append(batch, records...)

		for len(batch) >= p.batchSize {
			p.flush(ctx, logger, batch[:p.batchSize], &stats)
			batch = batch[p.batchSize:]
		}
	}
	if len(batch) > 0 {
		p.flush(ctx, logger, batch, &stats)
	}

	logger.Info("ingest_done",
		"tickets", stats.Tickets,
		"chunks", stats.Chunks,
		"upserted", stats.Upserted,
		"failed_batches", stats.FailedBatches)
	return stats, nil
}

func (p *Pipeline) ticketRecords(ctx context.Context, ticket zendesk.Ticket) ([]vectorindex.Record, error) {
	comments, err := p.source.TicketComments(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}

	doc := buildDocument(ticket, comments)
	chunks := ChunkText(doc, p.chunkTokens)
	if len(chunks) == 0 {
		return nil, nil
	}

	vectors, err := p.embed(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedding count mismatch: got %d want %d", len(vectors), len(chunks))
	}

	records := make([]vectorindex.Record, 0, len(chunks))
	for i, chunk := range chunks {
		records = append(records, vectorindex.Record{
			ID:        fmt.Sprintf("ticket-%d-chunk-%d", ticket.ID, i),
			Vector:    vectors[i],
			TicketID:  ticket.ID,
			Subject:   ticket.Subject,
			CreatedAt: ticket.CreatedAt,
			URL:       p.source.TicketURL(ticket.ID),
			Text:      chunk,
		})
	}
	return records, nil
}

func (p *Pipeline) flush(ctx context.Context, logger *slog.Logger, records []vectorindex.Record, stats *Stats) {
	if err := p.index.Upsert(ctx, records); err != nil {
		stats.FailedBatches++
		logger.Warn("ingest_batch_error", "size", len(records), "error", err.Error())
		return
	}
	stats.Upserted += len(records)
}

func buildDocument(ticket zendesk.Ticket, comments []string) string {
	parts := []string{strings.TrimSpace(ticket.Subject), strings.TrimSpace(ticket.Description)}
	for _, c := range comments {
		if c = strings.TrimSpace(c); c != "" {
			parts = append(parts, c)
		}
	}
	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, "\n---\n")
}
