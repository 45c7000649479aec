package tools

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/aigents-hub/aigents-api/pkg/models"
	"github.com/aigents-hub/aigents-api/pkg/realtime"
	"github.com/aigents-hub/aigents-api/pkg/vectorstore"
)

// QuickSearcher answers from the vector store without leaving the process.
type QuickSearcher interface {
	SearchCars(ctx context.Context, query, carMake, carModel string) ([]vectorstore.SearchResult, error)
}

// DeepSearcher runs the slow web-backed vehicle search.
type DeepSearcher interface {
	Run(ctx context.Context, query string) ([]models.Car, error)
}

// NewsSearcher runs the web-backed news search.
type NewsSearcher interface {
	Run(ctx context.Context, query string) ([]models.NewsArticle, error)
}

// Notifier pushes side-channel results to the session's subscriber sockets.
type Notifier interface {
	NotifyAutomobile(sessionID string, car models.Car)
	NotifyComparison(sessionID string, cmp models.Comparison)
	NotifyNews(sessionID string, articles []models.NewsArticle)
	NotifySearching(sessionID string, searching bool)
}

// ResponseWaiter gates deep-search injections on the model going idle.
type ResponseWaiter interface {
	WaitUntilNotResponding(sessionID string) <-chan struct{}
}

// UpstreamSender is the live upstream connection a result is injected into.
type UpstreamSender interface {
	Send(ev realtime.ClientEvent) error
}

var errNoDeepResults = errors.New("deep search returned no vehicles")

var voiceResponse = &realtime.ResponseConfig{
	Modalities:        []string{"audio", "text"},
	Voice:             "alloy",
	OutputAudioFormat: "pcm16",
}

// Handler routes completed tool calls to their implementations.
type Handler struct {
	Quick  QuickSearcher
	Deep   DeepSearcher
	News   NewsSearcher
	Notify Notifier
	State  ResponseWaiter
	Logger *slog.Logger
}

// Dispatch decodes the call arguments and runs the named tool. Unknown names
// and malformed arguments are logged and dropped.
func (h *Handler) Dispatch(ctx context.Context, sessionID, callID, name, rawArgs string, up UpstreamSender) {
	switch name {
	case NameSearchAutomobile:
		var args SearchArgs
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			h.Logger.Error("bad search_automobile arguments", "session_id", sessionID, "error", err)
			return
		}
		h.HandleSearch(ctx, sessionID, callID, args, up)
	case NameCompareAutomobile:
		var args CompareArgs
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			h.Logger.Error("bad compare_automobile arguments", "session_id", sessionID, "error", err)
			return
		}
		h.HandleCompare(ctx, sessionID, callID, args, up)
	case NameNewsAutomobiles:
		var args SearchArgs
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			h.Logger.Error("bad news_automobiles arguments", "session_id", sessionID, "error", err)
			return
		}
		h.HandleNews(ctx, sessionID, callID, args, up)
	default:
		h.Logger.Error("unknown tool", "name", name, "session_id", sessionID)
	}
}

// HandleSearch tries the vector store first and falls back to the deep web
// search. The deep path answers out of band: searching flag up, hold message
// spoken, then the result injected once the model stops talking.
func (h *Handler) HandleSearch(ctx context.Context, sessionID, callID string, args SearchArgs, up UpstreamSender) {
	quick, err := h.Quick.SearchCars(ctx, args.Query, args.Make, args.Model)
	if err != nil {
		h.Logger.Warn("quick search failed, falling back to deep search", "session_id", sessionID, "error", err)
	}
	if len(quick) > 0 {
		car := quick[0].Car
		if car.ID == "" {
			car.ID = quick[0].ID
		}
		h.Logger.Info("quick search hit", "session_id", sessionID, "car_id", car.ID)
		h.send(sessionID, up, realtime.ClientEvent{Type: realtime.TypeResponseCreate, Response: &realtime.ResponseConfig{
			Modalities:        voiceResponse.Modalities,
			Voice:             voiceResponse.Voice,
			OutputAudioFormat: voiceResponse.OutputAudioFormat,
			Instructions:      "Here are the cars I found immediately.",
		}})
		h.send(sessionID, up, realtime.FunctionCallOutput(callID, mustJSON(car.DescriptionLong)))
		h.Notify.NotifyAutomobile(sessionID, car)
		return
	}

	h.Logger.Info("no immediate matches, running deep search", "session_id", sessionID)
	h.send(sessionID, up, realtime.AssistantMessage("item_"+callID,
		"No immediate matches. Running a deeper search, please hold on…"))
	h.send(sessionID, up, realtime.ClientEvent{Type: realtime.TypeResponseCreate, Response: voiceResponse})

	h.Notify.NotifySearching(sessionID, true)
	// Registered before the search starts so a response finishing during the
	// search still releases the wait.
	idle := h.State.WaitUntilNotResponding(sessionID)

	cars, err := h.Deep.Run(ctx, args.Query)
	if err == nil && len(cars) == 0 {
		err = errNoDeepResults
	}
	if err != nil {
		h.Logger.Error("deep search failed", "session_id", sessionID, "error", err)
		h.Notify.NotifySearching(sessionID, false)
		return
	}

	select {
	case <-idle:
	case <-ctx.Done():
		h.Notify.NotifySearching(sessionID, false)
		return
	}

	car := cars[0]
	h.Logger.Info("deep search hit", "session_id", sessionID, "car_id", car.ID)
	h.Notify.NotifySearching(sessionID, false)
	h.send(sessionID, up, realtime.FunctionCallOutput(callID, mustJSON(car.DescriptionLong)))
	h.Notify.NotifyAutomobile(sessionID, car)
}

// HandleCompare resolves every item through the quick search concurrently,
// preserving item order in the result. Items with no match are skipped with a
// warning; more than three matches abort the comparison.
func (h *Handler) HandleCompare(ctx context.Context, sessionID, callID string, args CompareArgs, up UpstreamSender) {
	found := make([]*models.Car, len(args.Items))
	var wg sync.WaitGroup
	for i, item := range args.Items {
		wg.Add(1)
		go func(i int, item SearchArgs) {
			defer wg.Done()
			results, err := h.Quick.SearchCars(ctx, item.Query, item.Make, item.Model)
			if err != nil {
				h.Logger.Warn("compare item search failed", "session_id", sessionID, "query", item.Query, "error", err)
				return
			}
			if len(results) == 0 {
				h.Logger.Warn("compare item had no match", "session_id", sessionID, "query", item.Query)
				return
			}
			car := results[0].Car
			if car.ID == "" {
				car.ID = results[0].ID
			}
			found[i] = &car
		}(i, item)
	}
	wg.Wait()

	var cars []models.Car
	for _, c := range found {
		if c != nil {
			cars = append(cars, *c)
		}
	}
	cmp, err := models.NewComparison(cars)
	if err != nil {
		h.Logger.Error("comparison rejected", "session_id", sessionID, "error", err)
		return
	}

	h.Notify.NotifyComparison(sessionID, cmp)
	h.send(sessionID, up, realtime.ClientEvent{Type: realtime.TypeResponseCreate, Response: voiceResponse})
	// The model reads the same payload the subscribers were pushed.
	h.send(sessionID, up, realtime.FunctionCallOutput(callID, mustJSON(cmp)))
}

// HandleNews runs the news search behind the searching flag. Failures get a
// spoken apology instead of a function output; the call stays unanswered.
func (h *Handler) HandleNews(ctx context.Context, sessionID, callID string, args SearchArgs, up UpstreamSender) {
	query := args.Query
	if args.Make != "" {
		query += " " + args.Make
	}
	if args.Model != "" {
		query += " " + args.Model
	}

	h.Notify.NotifySearching(sessionID, true)
	articles, err := h.News.Run(ctx, query)
	if err != nil {
		h.Logger.Error("news search failed", "session_id", sessionID, "error", err)
		h.Notify.NotifySearching(sessionID, false)
		h.send(sessionID, up, realtime.ClientEvent{Type: realtime.TypeResponseCreate, Response: &realtime.ResponseConfig{
			Modalities:        voiceResponse.Modalities,
			Voice:             voiceResponse.Voice,
			OutputAudioFormat: voiceResponse.OutputAudioFormat,
			Instructions:      "Apologize briefly: you could not retrieve automotive news right now, and offer to try again later.",
		}})
		return
	}

	h.Notify.NotifySearching(sessionID, false)
	summaries := make([]string, len(articles))
	for i, a := range articles {
		summaries[i] = a.Title + ": " + a.Summary
	}
	h.send(sessionID, up, realtime.FunctionCallOutput(callID, mustJSON(summaries)))
	h.send(sessionID, up, realtime.ClientEvent{Type: realtime.TypeResponseCreate, Response: voiceResponse})
	h.Notify.NotifyNews(sessionID, articles)
}

func (h *Handler) send(sessionID string, up UpstreamSender, ev realtime.ClientEvent) {
	if err := up.Send(ev); err != nil {
		h.Logger.Warn("upstream send failed", "session_id", sessionID, "type", ev.Type, "error", err)
	}
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `""`
	}
	return string(b)
}
