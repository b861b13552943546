// Package vectorindex stores and queries embedded ticket chunks.
package vectorindex

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
)

// Record is one embedded chunk. IDs are stable per (ticket, chunk index)
// so re-ingestion overwrites instead of duplicating.
type Record struct {
	ID        string
	Vector    []float32
	TicketID  int64
	Subject   string
	CreatedAt string
	URL       string
	Text      string
}

// Match is one nearest-neighbor hit with its stored metadata.
type Match struct {
	ID       string
	Score    float32
	TicketID int64
	Subject  string
	URL      string
	Text     string
}

// Upserter is the write half, used by the ingestion pipeline.
type Upserter interface {
	Upsert(ctx context.Context, records []Record) error
}

// Querier is the read half, used by the retriever.
type Querier interface {
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
}

const vectorField = "vector"

var outputFields = []string{"id", "ticket_id", "subject", "created_at", "url", "text"}

// Milvus implements Upserter and Querier against one collection.
type Milvus struct {
	cli        client.Client
	collection string
	dim        int
}

type MilvusOptions struct {
	Address    string
	APIKey     string
	Collection string
	Dim        int
}

func NewMilvus(ctx context.Context, opts MilvusOptions) (*Milvus, error) {
	address := strings.TrimSpace(opts.Address)
	if address == "" {
		return nil, fmt.Errorf("vector index address is required")
	}
	collection := strings.TrimSpace(opts.Collection)
	if collection == "" {
		return nil, fmt.Errorf("vector index collection is required")
	}
	if opts.Dim <= 0 {
		return nil, fmt.Errorf("vector dim must be positive")
	}
	cli, err := client.NewClient(ctx, client.Config{
		Address: address,
		APIKey:  strings.TrimSpace(opts.APIKey),
	})
	if err != nil {
		return nil, fmt.Errorf("connect vector index: %w", err)
	}
	return &Milvus{cli: cli, collection: collection, dim: opts.Dim}, nil
}

// NewMilvusWithClient wires an existing connection; used by tests.
func NewMilvusWithClient(cli client.Client, collection string, dim int) *Milvus {
	return &Milvus{cli: cli, collection: collection, dim: dim}
}

func (m *Milvus) Close() error {
	if m == nil || m.cli == nil {
		return nil
	}
	return m.cli.Close()
}

func (m *Milvus) Upsert(ctx context.Context, records []Record) error {
	if m == nil || m.cli == nil {
		return fmt.Errorf("vector index is not initialized")
	}
	if len(records) == 0 {
		return nil
	}

	ids := make([]string, 0, len(records))
	vectors := make([][]float32, 0, len(records))
	ticketIDs := make([]int64, 0, len(records))
	subjects := make([]string, 0, len(records))
	createdAts := make([]string, 0, len(records))
	urls := make([]string, 0, len(records))
	texts := make([]string, 0, len(records))

	for _, rec := range records {
		if strings.TrimSpace(rec.ID) == "" {
			return fmt.Errorf("upsert record missing id")
		}
		if len(rec.Vector) != m.dim {
			return fmt.Errorf("vector dim mismatch for id=%s: got %d want %d", rec.ID, len(rec.Vector), m.dim)
		}
		ids = append(ids, rec.ID)
		vectors = append(vectors, rec.Vector)
		ticketIDs = append(ticketIDs, rec.TicketID)
		subjects = append(subjects, rec.Subject)
		createdAts = append(createdAts, rec.CreatedAt)
		urls = append(urls, rec.URL)
		texts = append(texts, rec.Text)
	}

	_, err := m.cli.Upsert(
		ctx,
		m.collection,
		"", // partition
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnFloatVector(vectorField, m.dim, vectors),
		entity.NewColumnInt64("ticket_id", ticketIDs),
		entity.NewColumnVarChar("subject", subjects),
		entity.NewColumnVarChar("created_at", createdAts),
		entity.NewColumnVarChar("url", urls),
		entity.NewColumnVarChar("text", texts),
	)
	return err
}

// Query returns the topK nearest neighbors by cosine similarity, ordered by
// descending score, with stored metadata attached.
func (m *Milvus) Query(ctx context.Context, vector []float32, topK int) ([]Match, error) {
	if m == nil || m.cli == nil {
		return nil, fmt.Errorf("vector index is not initialized")
	}
	if len(vector) != m.dim {
		return nil, fmt.Errorf("query vector dim mismatch: got %d want %d", len(vector), m.dim)
	}
	if topK <= 0 {
		topK = 5
	}

	sp, _ := entity.NewIndexAUTOINDEXSearchParam(1)
	results, err := m.cli.Search(
		ctx,
		m.collection,
		nil,
		"",
		outputFields,
		[]entity.Vector{entity.FloatVector(vector)},
		vectorField,
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, topK)
	for _, sr := range results {
		if sr.Err != nil {
			return nil, sr.Err
		}
		getCol := func(name string) entity.Column {
			for _, c := range sr.Fields {
				if c.Name() == name {
					return c
				}
			}
			return nil
		}
		ticketCol := getCol("ticket_id")
		subjectCol := getCol("subject")
		urlCol := getCol("url")
		textCol := getCol("text")

		for i := 0; i < sr.ResultCount; i++ {
			id, _ := sr.IDs.GetAsString(i)
			match := Match{ID: id, Score: sr.Scores[i]}
			if ticketCol != nil {
				v, _ := ticketCol.GetAsInt64(i)
				match.TicketID = v
			}
			if subjectCol != nil {
				v, _ := subjectCol.GetAsString(i)
				match.Subject = v
			}
			if urlCol != nil {
				v, _ := urlCol.GetAsString(i)
				match.URL = v
			}
			if textCol != nil {
				v, _ := textCol.GetAsString(i)
				match.Text = v
			}
			matches = append(matches, match)
		}
	}
	return matches, nil
}
