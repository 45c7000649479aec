// Package processing hosts the deep-search pipelines: a web-enabled search
// agent gathers raw listing text, a structuring agent refines it into typed
// records, and vehicle results are written back to the vector store so later
// quick searches hit.
package processing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/aigents-hub/aigents-api/pkg/models"
)

const (
	searchModel    = "gpt-4o-mini-search-preview"
	structureModel = openai.ChatModelGPT4oMini
)

const automobileSearchPrompt = `You are an assistant specialized in searching for information about real automobiles for sale in the United States.
- Receive a query and gather all relevant details about the automobile, focusing only on vehicles currently available for sale in the US.
- Exclude concept cars, fictional vehicles, and cars not on the market.
- Collect comprehensive data: structure, features, specifications, images (as URLs with brief descriptions), and available models.
- Present the information so it could be used to build a detailed automobile profile.`

const automobileStructurePrompt = `Take the raw car search results below and convert them into a JSON object of the form
{"cars": [{"id": "", "specs": {"make": "", "model": "", "year": 0, "bodyStyle": "", "fuelType": "", "transmission": "", "powerHp": 0, "rangeKm": 0, "priceEur": 0}, "images": [{"url": "", "description": ""}], "descriptionShort": "", "descriptionLong": ""}]}.
Leave unknown fields empty. descriptionLong must be a rich paragraph suitable for a spoken answer. Respond with JSON only.`

// CarStorer persists structured vehicles for future quick searches.
type CarStorer interface {
	StoreCar(ctx context.Context, car models.Car) error
}

// AutomobileWorkflow is the asynchronous deep vehicle search.
type AutomobileWorkflow struct {
	client openai.Client
	store  CarStorer
	logger *slog.Logger
}

func NewAutomobileWorkflow(apiKey string, store CarStorer, logger *slog.Logger, opts ...option.RequestOption) *AutomobileWorkflow {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &AutomobileWorkflow{
		client: openai.NewClient(opts...),
		store:  store,
		logger: logger,
	}
}

// Run executes search → structure → store and returns the structured cars.
func (w *AutomobileWorkflow) Run(ctx context.Context, query string) ([]models.Car, error) {
	w.logger.Info("deep automobile search", "query", query)

	raw, err := complete(ctx, w.client, searchModel, automobileSearchPrompt, "Query: "+query, 0)
	if err != nil {
		return nil, fmt.Errorf("search agent: %w", err)
	}

	structured, err := complete(ctx, w.client, structureModel, automobileStructurePrompt, "Raw results:\n"+raw, 0.1)
	if err != nil {
		return nil, fmt.Errorf("structure agent: %w", err)
	}

	var out struct {
		Cars []models.Car `json:"cars"`
	}
	if err := json.Unmarshal(extractJSON(structured), &out); err != nil {
		return nil, fmt.Errorf("decode structured cars: %w", err)
	}
	if len(out.Cars) == 0 {
		return nil, fmt.Errorf("deep search found no cars for %q", query)
	}

	for i := range out.Cars {
		if out.Cars[i].ID == "" {
			out.Cars[i].ID = uuid.NewString()
		}
	}

	if w.store != nil {
		for _, car := range out.Cars {
			if err := w.store.StoreCar(ctx, car); err != nil {
				w.logger.Warn("failed to store deep search result", "car_id", car.ID, "error", err)
			}
		}
	}
	return out.Cars, nil
}

func complete(ctx context.Context, client openai.Client, model openai.ChatModel, system, user string, temperature float64) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	}
	if temperature > 0 {
		params.Temperature = openai.Float(temperature)
	}
	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion carried no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// extractJSON strips markdown fences the structuring model sometimes wraps
// around its output.
func extractJSON(s string) []byte {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return []byte(strings.TrimSpace(s))
}
