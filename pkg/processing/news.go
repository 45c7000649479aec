package processing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/aigents-hub/aigents-api/pkg/models"
)

const newsSearchPrompt = `You are an assistant specialized in finding the latest automotive news.
- Receive a query and gather recent, real news articles about automobiles matching it.
- Prefer reputable automotive publications; include the source URL for every article.
- Summarize each article and keep the full relevant content.`

const newsStructurePrompt = `Take the raw news search results below and convert them into a JSON object of the form
{"articles": [{"title": "", "sourceUrl": "", "summary": "", "content": ""}]}.
Respond with JSON only.`

// NewsWorkflow is the asynchronous automotive news search.
type NewsWorkflow struct {
	client openai.Client
	logger *slog.Logger
}

func NewNewsWorkflow(apiKey string, logger *slog.Logger, opts ...option.RequestOption) *NewsWorkflow {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &NewsWorkflow{client: openai.NewClient(opts...), logger: logger}
}

// Run executes search → structure and returns the article list.
func (w *NewsWorkflow) Run(ctx context.Context, query string) ([]models.NewsArticle, error) {
	w.logger.Info("news search", "query", query)

	raw, err := complete(ctx, w.client, searchModel, newsSearchPrompt, "Query: "+query, 0)
	if err != nil {
		return nil, fmt.Errorf("news search agent: %w", err)
	}

	structured, err := complete(ctx, w.client, structureModel, newsStructurePrompt, "Raw results:\n"+raw, 0.1)
	if err != nil {
		return nil, fmt.Errorf("news structure agent: %w", err)
	}

	var out struct {
		Articles []models.NewsArticle `json:"articles"`
	}
	if err := json.Unmarshal(extractJSON(structured), &out); err != nil {
		return nil, fmt.Errorf("decode structured articles: %w", err)
	}
	if len(out.Articles) == 0 {
		return nil, fmt.Errorf("news search found no articles for %q", query)
	}
	return out.Articles, nil
}
