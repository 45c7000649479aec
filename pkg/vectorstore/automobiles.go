package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/aigents-hub/aigents-api/pkg/models"
)

const (
	automobileVectorSize = 3072
	descriptionIndex     = "descriptionShort"

	// Quick-search defaults: the bridge only ever needs the best match.
	searchScoreThreshold = 0.4
	searchLimit          = 1
)

// Embedder turns free text into a vector. The production implementation
// calls the OpenAI embeddings API.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// SearchResult is one scored vehicle hit.
type SearchResult struct {
	ID    string
	Score float64
	Car   models.Car
}

// AutomobileStore is the vehicle collection in the vector store.
type AutomobileStore struct {
	client   *QdrantClient
	embedder Embedder
	logger   *slog.Logger
}

func NewAutomobileStore(client *QdrantClient, embedder Embedder, logger *slog.Logger) *AutomobileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &AutomobileStore{client: client, embedder: embedder, logger: logger}
}

// Init provisions the collection and its payload index if missing.
func (s *AutomobileStore) Init(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		s.logger.Info("collection already exists", "collection", s.client.Collection)
		return nil
	}
	if err := s.client.CreateCollection(ctx, automobileVectorSize); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	s.logger.Info("created collection", "collection", s.client.Collection, "dim", automobileVectorSize)
	if err := s.client.CreatePayloadIndex(ctx, descriptionIndex); err != nil {
		return fmt.Errorf("create payload index: %w", err)
	}
	return nil
}

// StoreCar embeds the vehicle text and upserts it under a fresh point id.
func (s *AutomobileStore) StoreCar(ctx context.Context, car models.Car) error {
	text := strings.Join([]string{car.Specs.Model, car.DescriptionShort, car.DescriptionLong}, " ")
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed car: %w", err)
	}
	id := car.ID
	if id == "" {
		id = uuid.NewString()
	}
	if err := s.client.Upsert(ctx, id, vec, map[string]any{"car": car}); err != nil {
		return fmt.Errorf("upsert car: %w", err)
	}
	s.logger.Info("stored car", "id", id, "model", car.Specs.Model)
	return nil
}

// SearchCars runs the quick similarity search: embedded query plus optional
// exact filters on make and model. Returns zero or more scored candidates.
func (s *AutomobileStore) SearchCars(ctx context.Context, query, carMake, carModel string) ([]SearchResult, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var must []map[string]any
	if carMake != "" {
		must = append(must, map[string]any{
			"key":   "car.specs.make",
			"match": map[string]any{"value": carMake},
		})
	}
	if carModel != "" {
		must = append(must, map[string]any{
			"key":   "car.specs.model",
			"match": map[string]any{"value": carModel},
		})
	}
	var filter map[string]any
	if len(must) > 0 {
		filter = map[string]any{"must": must}
	}

	hits, err := s.client.Search(ctx, SearchParams{
		Vector:         vec,
		Limit:          searchLimit,
		ScoreThreshold: searchScoreThreshold,
		Filter:         filter,
	})
	if err != nil {
		return nil, fmt.Errorf("search cars: %w", err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		var payload struct {
			Car models.Car `json:"car"`
		}
		if err := json.Unmarshal(hit.Payload, &payload); err != nil {
			s.logger.Warn("skipping hit with malformed payload", "id", hit.ID, "error", err)
			continue
		}
		results = append(results, SearchResult{ID: hit.ID, Score: hit.Score, Car: payload.Car})
	}
	return results, nil
}
