// Package notify fans server-side events out to every socket subscribed to a
// (session, topic) pair. Notifications are fire-and-forget: with no
// subscribers they are dropped and logged, never queued.
package notify

import (
	"log/slog"

	"github.com/aigents-hub/aigents-api/pkg/gateway/session"
	"github.com/aigents-hub/aigents-api/pkg/models"
)

// Event names the fixed notification topics.
type Event string

const (
	EventAutomobile Event = "Automobile"
	EventComparison Event = "Comparison"
	EventProviders  Event = "Providers"
	EventNews       Event = "News"
	EventSearching  Event = "Searching"
)

// Envelope is the wire shape pushed to subscriber sockets.
type Envelope struct {
	Event   Event `json:"event"`
	Payload any   `json:"payload"`
}

// ProvidersPayload lists dealerships or service providers for the session.
type ProvidersPayload struct {
	Providers []string `json:"providers"`
}

// NewsPayload wraps the article list for the News topic.
type NewsPayload struct {
	Articles []models.NewsArticle `json:"articles"`
}

// SearchingPayload carries the search progress flag.
type SearchingPayload struct {
	Searching bool `json:"searching"`
}

// Gateway resolves subscribers through the session registry and pushes typed
// envelopes to them.
type Gateway struct {
	registry *session.Registry
	logger   *slog.Logger
}

func New(registry *session.Registry, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{registry: registry, logger: logger}
}

func (g *Gateway) NotifyAutomobile(sessionID string, car models.Car) {
	g.notify(EventAutomobile, sessionID, car)
}

func (g *Gateway) NotifyComparison(sessionID string, cmp models.Comparison) {
	g.notify(EventComparison, sessionID, cmp)
}

func (g *Gateway) NotifyProviders(sessionID string, providers []string) {
	g.notify(EventProviders, sessionID, ProvidersPayload{Providers: providers})
}

func (g *Gateway) NotifyNews(sessionID string, articles []models.NewsArticle) {
	g.notify(EventNews, sessionID, NewsPayload{Articles: articles})
}

func (g *Gateway) NotifySearching(sessionID string, searching bool) {
	g.notify(EventSearching, sessionID, SearchingPayload{Searching: searching})
}

// notify pushes one envelope to every live subscriber of the topic. Sockets
// that are mid-close are skipped, and send errors never abort the fan-out.
func (g *Gateway) notify(event Event, sessionID string, payload any) {
	subs, ok := g.registry.Subscribers(sessionID, string(event))
	if !ok {
		g.logger.Warn("no subscribers", "event", event, "session_id", sessionID)
		return
	}
	g.registry.Touch(sessionID)

	env := Envelope{Event: event, Payload: payload}
	sent := 0
	for _, sock := range subs {
		if !sock.IsOpen() {
			continue
		}
		if err := sock.SendJSON(env); err != nil {
			g.logger.Warn("notify send failed", "event", event, "session_id", sessionID, "error", err)
			continue
		}
		sent++
	}
	g.logger.Info("notified subscribers", "event", event, "session_id", sessionID, "sent", sent)
}
