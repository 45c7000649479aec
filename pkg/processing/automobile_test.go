package processing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/openai/openai-go/option"

	"github.com/aigents-hub/aigents-api/pkg/models"
)

// chatStub answers /chat/completions with canned content per call, in order.
func chatStub(t *testing.T, replies ...string) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	call := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		mu.Lock()
		reply := replies[len(replies)-1]
		if call < len(replies) {
			reply = replies[call]
		}
		call++
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{
				{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]any{"role": "assistant", "content": reply},
				},
			},
		})
	}))
}

type recordingStore struct {
	mu   sync.Mutex
	cars []models.Car
}

func (r *recordingStore) StoreCar(ctx context.Context, car models.Car) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cars = append(r.cars, car)
	return nil
}

func TestAutomobileWorkflow_StructuresAndStores(t *testing.T) {
	structured := `{"cars": [{"specs": {"make": "Rivian", "model": "R1S", "year": 2025}, "descriptionShort": "electric SUV", "descriptionLong": "The R1S is a three-row electric SUV."}]}`
	srv := chatStub(t, "raw web results about the Rivian R1S", structured)
	defer srv.Close()

	store := &recordingStore{}
	wf := NewAutomobileWorkflow("test-key", store, nil, option.WithBaseURL(srv.URL))

	cars, err := wf.Run(context.Background(), "Rivian R1S")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(cars) != 1 {
		t.Fatalf("cars=%d, want 1", len(cars))
	}
	if cars[0].ID == "" {
		t.Fatalf("car id was not assigned")
	}
	if cars[0].Specs.Make != "Rivian" || cars[0].Specs.Year != 2025 {
		t.Fatalf("car=%+v", cars[0])
	}
	if len(store.cars) != 1 || store.cars[0].ID != cars[0].ID {
		t.Fatalf("stored cars=%+v", store.cars)
	}
}

func TestAutomobileWorkflow_FencedJSON(t *testing.T) {
	structured := "```json\n{\"cars\": [{\"specs\": {\"make\": \"Kia\", \"model\": \"EV9\"}}]}\n```"
	srv := chatStub(t, "raw", structured)
	defer srv.Close()

	wf := NewAutomobileWorkflow("test-key", nil, nil, option.WithBaseURL(srv.URL))
	cars, err := wf.Run(context.Background(), "Kia EV9")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(cars) != 1 || cars[0].Specs.Model != "EV9" {
		t.Fatalf("cars=%+v", cars)
	}
}

func TestAutomobileWorkflow_NoCarsIsError(t *testing.T) {
	srv := chatStub(t, "raw", `{"cars": []}`)
	defer srv.Close()

	wf := NewAutomobileWorkflow("test-key", nil, nil, option.WithBaseURL(srv.URL))
	if _, err := wf.Run(context.Background(), "flying car"); err == nil {
		t.Fatalf("expected error for empty result set")
	}
}

func TestNewsWorkflow_StructuresArticles(t *testing.T) {
	structured := `{"articles": [{"title": "EV sales climb", "sourceUrl": "https://example.com/a", "summary": "s", "content": "c"}]}`
	srv := chatStub(t, "raw news", structured)
	defer srv.Close()

	wf := NewNewsWorkflow("test-key", nil, option.WithBaseURL(srv.URL))
	articles, err := wf.Run(context.Background(), "electric vehicle news")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(articles) != 1 || articles[0].SourceURL != "https://example.com/a" {
		t.Fatalf("articles=%+v", articles)
	}
}
