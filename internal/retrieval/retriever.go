// Package retrieval gathers the context an answer is grounded in: nearest
// embedded ticket chunks from the vector index plus a keyword search of the
// help center. The two strategies are independent reads and run concurrently;
// either one failing degrades that strategy to empty context with a warning
// instead of failing the whole lookup.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/quailyquaily/answerbot/internal/vectorindex"
	"github.com/quailyquaily/answerbot/internal/zendesk"
)

const (
	DefaultTopK         = 5
	DefaultArticleLimit = 3
)

// Item is one retrieved support artifact, read-only downstream.
type Item struct {
	SourceID string
	Title    string
	URL      string
	Body     string
	Score    float32
}

// StrategyError names which retrieval strategy failed.
type StrategyError struct {
	Strategy string
	Err      error
}

func (e *StrategyError) Error() string {
	return fmt.Sprintf("%s retrieval: %v", e.Strategy, e.Err)
}

func (e *StrategyError) Unwrap() error { return e.Err }

type EmbedFunc func(ctx context.Context, text string) ([]float32, error)

type ArticleSearchFunc func(ctx context.Context, query string, limit int) ([]zendesk.Article, error)

type RetrieverOptions struct {
	Embed EmbedFunc
	Index vectorindex.Querier
	// Articles may be nil when keyword retrieval is not configured.
	Articles     ArticleSearchFunc
	TopK         int
	ArticleLimit int
	Logger       *slog.Logger
}

type Retriever struct {
	embed        EmbedFunc
	index        vectorindex.Querier
	articles     ArticleSearchFunc
	topK         int
	articleLimit int
	logger       *slog.Logger
}

func NewRetriever(opts RetrieverOptions) (*Retriever, error) {
	if opts.Embed == nil {
		return nil, fmt.Errorf("embed func is required")
	}
	if opts.Index == nil {
		return nil, fmt.Errorf("vector index is required")
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	articleLimit := opts.ArticleLimit
	if articleLimit <= 0 {
		articleLimit = DefaultArticleLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embed:        opts.Embed,
		index:        opts.Index,
		articles:     opts.Articles,
		topK:         topK,
		articleLimit: articleLimit,
		logger:       logger,
	}, nil
}

// Retrieve returns vector hits (descending similarity) followed by keyword
// article hits. An empty result is valid; strategy failures are logged and
// degrade to empty rather than propagating.
func (r *Retriever) Retrieve(ctx context.Context, query string) []Item {
	if r == nil {
		return nil
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	var (
		wg           sync.WaitGroup
		vectorItems  []Item
		vectorErr    error
		articleItems []Item
		articleErr   error
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		vectorItems, vectorErr = r.vectorStrategy(ctx, query)
	}()

	if r.articles != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			articleItems, articleErr = r.articleStrategy(ctx, query)
		}()
	}
	wg.Wait()

	if vectorErr != nil {
		r.logger.Warn("retrieval_degraded", "strategy", "vector", "error", vectorErr.Error())
	}
	if articleErr != nil {
		r.logger.Warn("retrieval_degraded", "strategy", "articles", "error", articleErr.Error())
	}

	items := make([]Item, 0, len(vectorItems)+len(articleItems))
	items = append(items, vectorItems...)
	items = append(items, articleItems...)
	return items
}

func (r *Retriever) vectorStrategy(ctx context.Context, query string) ([]Item, error) {
	vector, err := r.embed(ctx, query)
	if err != nil {
		return nil, &StrategyError{Strategy: "embed", Err: err}
	}
	matches, err := r.index.Query(ctx, vector, r.topK)
	if err != nil {
		return nil, &StrategyError{Strategy: "vector", Err: err}
	}
	items := make([]Item, 0, len(matches))
	for _, match := range matches {
		title := strings.TrimSpace(match.Subject)
		if title == "" {
			title = fmt.Sprintf("Ticket #%d", match.TicketID)
		}
		items = append(items, Item{
			SourceID: match.ID,
			Title:    title,
			URL:      match.URL,
			Body:     match.Text,
			Score:    match.Score,
		})
	}
	return items, nil
}

func (r *Retriever) articleStrategy(ctx context.Context, query string) ([]Item, error) {
	articles, err := r.articles(ctx, query, r.articleLimit)
	if err != nil {
		return nil, &StrategyError{Strategy: "articles", Err: err}
	}
	items := make([]Item, 0, len(articles))
	for _, article := range articles {
		body := article.Body
		if strings.TrimSpace(body) == "" {
			body = article.Snippet
		}
		items = append(items, Item{
			SourceID: fmt.Sprintf("article-%d", article.ID),
			Title:    article.Title,
			URL:      article.HTMLURL,
			Body:     body,
		})
	}
	return items, nil
}
