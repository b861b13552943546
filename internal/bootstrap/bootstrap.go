// Package bootstrap assembles the runtime components from viper settings.
// Commands call into it so serve, socket, ingest and ask share one wiring.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"
	"github.com/spf13/viper"

	"github.com/quailyquaily/answerbot/internal/answer"
	"github.com/quailyquaily/answerbot/internal/dedup"
	"github.com/quailyquaily/answerbot/internal/events"
	"github.com/quailyquaily/answerbot/internal/ingest"
	"github.com/quailyquaily/answerbot/internal/llm"
	"github.com/quailyquaily/answerbot/internal/publisher"
	"github.com/quailyquaily/answerbot/internal/retrieval"
	"github.com/quailyquaily/answerbot/internal/thread"
	"github.com/quailyquaily/answerbot/internal/vectorindex"
	"github.com/quailyquaily/answerbot/internal/zendesk"
)

// NewSlackClient builds the Slack Web API client and resolves the bot user
// id, calling auth.test when slack.bot_user_id is not configured.
func NewSlackClient(ctx context.Context) (*slack.Client, string, error) {
	botToken := strings.TrimSpace(viper.GetString("slack.bot_token"))
	if botToken == "" {
		return nil, "", fmt.Errorf("missing slack.bot_token (set ANSWERBOT_SLACK_BOT_TOKEN)")
	}
	api := slack.New(botToken)

	botUserID := strings.TrimSpace(viper.GetString("slack.bot_user_id"))
	if botUserID == "" {
		resp, err := api.AuthTestContext(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("slack auth.test: %w", err)
		}
		botUserID = resp.UserID
	}
	return api, botUserID, nil
}

// NewLLMClient builds the chat + embedding client from the openai.* keys.
func NewLLMClient() (*llm.Client, error) {
	return llm.NewClient(llm.ClientOptions{
		APIKey:     viper.GetString("openai.api_key"),
		BaseURL:    viper.GetString("openai.base_url"),
		ChatModel:  viper.GetString("openai.chat_model"),
		EmbedModel: viper.GetString("openai.embed_model"),
	})
}

// NewVectorIndex connects to the configured Milvus collection.
func NewVectorIndex(ctx context.Context) (*vectorindex.Milvus, error) {
	return vectorindex.NewMilvus(ctx, vectorindex.MilvusOptions{
		Address:    viper.GetString("vector.address"),
		APIKey:     viper.GetString("vector.api_key"),
		Collection: viper.GetString("vector.collection"),
		Dim:        viper.GetInt("vector.dim"),
	})
}

// NewZendeskClient builds the helpdesk client, or returns (nil, nil) when the
// zendesk.* keys are absent so callers can treat article search as optional.
func NewZendeskClient() (*zendesk.Client, error) {
	subdomain := strings.TrimSpace(viper.GetString("zendesk.subdomain"))
	email := strings.TrimSpace(viper.GetString("zendesk.email"))
	apiToken := strings.TrimSpace(viper.GetString("zendesk.api_token"))
	if subdomain == "" && email == "" && apiToken == "" {
		return nil, nil
	}
	return zendesk.NewClient(zendesk.ClientOptions{
		Subdomain: subdomain,
		Email:     email,
		APIToken:  apiToken,
	})
}

// NewAnswering builds the retriever and generator shared by the Slack
// pipeline and the ask command.
func NewAnswering(ctx context.Context, logger *slog.Logger) (*retrieval.Retriever, *answer.Generator, error) {
	llmClient, err := NewLLMClient()
	if err != nil {
		return nil, nil, err
	}
	index, err := NewVectorIndex(ctx)
	if err != nil {
		return nil, nil, err
	}
	zd, err := NewZendeskClient()
	if err != nil {
		return nil, nil, err
	}

	var articles retrieval.ArticleSearchFunc
	if zd != nil {
		articles = zd.SearchArticles
	}
	retriever, err := retrieval.NewRetriever(retrieval.RetrieverOptions{
		Embed:    llmClient.Embed,
		Index:    index,
		Articles: articles,
		TopK:     viper.GetInt("retrieval.top_k"),
		Logger:   logger,
	})
	if err != nil {
		return nil, nil, err
	}
	generator, err := answer.NewGenerator(answer.GeneratorOptions{
		Chat:        llmClient.Chat,
		Domain:      viper.GetString("answer.domain"),
		Temperature: viper.GetFloat64("answer.temperature"),
		Logger:      logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return retriever, generator, nil
}

// NewPipeline wires the full mention pipeline: Slack client, thread fetcher,
// retriever, generator, publisher and the dedup store.
func NewPipeline(ctx context.Context, logger *slog.Logger) (*events.Pipeline, error) {
	api, botUserID, err := NewSlackClient(ctx)
	if err != nil {
		return nil, err
	}
	fetcher, err := thread.NewFetcher(thread.FetcherOptions{API: api})
	if err != nil {
		return nil, err
	}
	retriever, generator, err := NewAnswering(ctx, logger)
	if err != nil {
		return nil, err
	}
	pub, err := publisher.NewPublisher(publisher.PublisherOptions{API: api, Logger: logger})
	if err != nil {
		return nil, err
	}
	store := dedup.NewMemoryStore(dedup.MemoryStoreOptions{TTL: viper.GetDuration("dedup.ttl")})

	return events.NewPipeline(events.PipelineOptions{
		Fetcher:   fetcher,
		Retriever: retriever,
		Generator: generator,
		Publisher: pub,
		Dedup:     store,
		BotUserID: botUserID,
		Logger:    logger,
	})
}

// NewIngest wires the offline ticket ingestion pipeline. The helpdesk client
// is mandatory here.
func NewIngest(ctx context.Context, logger *slog.Logger) (*ingest.Pipeline, error) {
	zd, err := NewZendeskClient()
	if err != nil {
		return nil, err
	}
	if zd == nil {
		return nil, fmt.Errorf("missing zendesk.subdomain / zendesk.email / zendesk.api_token")
	}
	llmClient, err := NewLLMClient()
	if err != nil {
		return nil, err
	}
	index, err := NewVectorIndex(ctx)
	if err != nil {
		return nil, err
	}
	return ingest.NewPipeline(ingest.PipelineOptions{
		Source:      zd,
		Embed:       llmClient.EmbedBatch,
		Index:       index,
		ChunkTokens: viper.GetInt("ingest.chunk_tokens"),
		BatchSize:   viper.GetInt("ingest.batch_size"),
		Logger:      logger,
	})
}
