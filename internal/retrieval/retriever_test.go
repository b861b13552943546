package retrieval

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/quailyquaily/answerbot/internal/vectorindex"
	"github.com/quailyquaily/answerbot/internal/zendesk"
)

type querierFunc func(ctx context.Context, vector []float32, topK int) ([]vectorindex.Match, error)

func (f querierFunc) Query(ctx context.Context, vector []float32, topK int) ([]vectorindex.Match, error) {
	return f(ctx, vector, topK)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRetrieveVectorBeforeArticles(t *testing.T) {
	t.Parallel()

	retriever, err := NewRetriever(RetrieverOptions{
		Embed: func(ctx context.Context, text string) ([]float32, error) {
			return []float32{0.1, 0.2}, nil
		},
		Index: querierFunc(func(ctx context.Context, vector []float32, topK int) ([]vectorindex.Match, error) {
			if topK != 5 {
				t.Fatalf("topK mismatch: got %d want 5", topK)
			}
			return []vectorindex.Match{
				{ID: "ticket-7-chunk-0", Score: 0.92, TicketID: 7, Subject: "Login loop", URL: "https://z/7", Text: "clear cookies"},
				{ID: "ticket-9-chunk-1", Score: 0.81, TicketID: 9, Text: "restart"},
			}, nil
		}),
		Articles: func(ctx context.Context, query string, limit int) ([]zendesk.Article, error) {
			if limit != 3 {
				t.Fatalf("article limit mismatch: got %d want 3", limit)
			}
			return []zendesk.Article{{ID: 1, Title: "Password Reset", HTMLURL: "https://x/y"}}, nil
		},
		Logger: discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}

	items := retriever.Retrieve(context.Background(), "how do I log in?")
	if len(items) != 3 {
		t.Fatalf("item count mismatch: got %d want 3", len(items))
	}
	if items[0].SourceID != "ticket-7-chunk-0" {
		t.Fatalf("first item mismatch: got %q", items[0].SourceID)
	}
	if items[1].Title != "Ticket #9" {
		t.Fatalf("fallback title mismatch: got %q want %q", items[1].Title, "Ticket #9")
	}
	if items[2].SourceID != "article-1" {
		t.Fatalf("article item mismatch: got %q", items[2].SourceID)
	}
}

func TestRetrieveDegradesOnEmbedFailure(t *testing.T) {
	t.Parallel()

	retriever, err := NewRetriever(RetrieverOptions{
		Embed: func(ctx context.Context, text string) ([]float32, error) {
			return nil, fmt.Errorf("embedding service down")
		},
		Index: querierFunc(func(ctx context.Context, vector []float32, topK int) ([]vectorindex.Match, error) {
			t.Fatalf("index queried despite embed failure")
			return nil, nil
		}),
		Articles: func(ctx context.Context, query string, limit int) ([]zendesk.Article, error) {
			return []zendesk.Article{{ID: 2, Title: "Still here", HTMLURL: "https://x/2"}}, nil
		},
		Logger: discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}

	items := retriever.Retrieve(context.Background(), "question")
	if len(items) != 1 {
		t.Fatalf("item count mismatch: got %d want 1", len(items))
	}
	if items[0].SourceID != "article-2" {
		t.Fatalf("surviving item mismatch: got %q", items[0].SourceID)
	}
}

func TestRetrieveDegradesToEmpty(t *testing.T) {
	t.Parallel()

	retriever, err := NewRetriever(RetrieverOptions{
		Embed: func(ctx context.Context, text string) ([]float32, error) {
			return []float32{0.1}, nil
		},
		Index: querierFunc(func(ctx context.Context, vector []float32, topK int) ([]vectorindex.Match, error) {
			return nil, fmt.Errorf("index unavailable")
		}),
		Articles: func(ctx context.Context, query string, limit int) ([]zendesk.Article, error) {
			return nil, fmt.Errorf("helpdesk unavailable")
		},
		Logger: discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}

	items := retriever.Retrieve(context.Background(), "question")
	if len(items) != 0 {
		t.Fatalf("item count mismatch: got %d want 0", len(items))
	}
}

func TestRetrieveEmptyQuery(t *testing.T) {
	t.Parallel()

	retriever, err := NewRetriever(RetrieverOptions{
		Embed: func(ctx context.Context, text string) ([]float32, error) {
			t.Fatalf("embed called for empty query")
			return nil, nil
		},
		Index: querierFunc(func(ctx context.Context, vector []float32, topK int) ([]vectorindex.Match, error) {
			return nil, nil
		}),
		Logger: discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}

	if items := retriever.Retrieve(context.Background(), "   "); items != nil {
		t.Fatalf("items mismatch: got %v want nil", items)
	}
}

func TestRetrieveWithoutArticleStrategy(t *testing.T) {
	t.Parallel()

	retriever, err := NewRetriever(RetrieverOptions{
		Embed: func(ctx context.Context, text string) ([]float32, error) {
			return []float32{0.5}, nil
		},
		Index: querierFunc(func(ctx context.Context, vector []float32, topK int) ([]vectorindex.Match, error) {
			return []vectorindex.Match{{ID: "ticket-1-chunk-0", Subject: "One", Score: 0.5}}, nil
		}),
		Logger: discardLogger(),
	})
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}

	items := retriever.Retrieve(context.Background(), "question")
	if len(items) != 1 {
		t.Fatalf("item count mismatch: got %d want 1", len(items))
	}
}
