package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aigents-hub/aigents-api/pkg/models"
)

// ExecuteNotifier is the notification fan-out as the ingress endpoints use it.
type ExecuteNotifier interface {
	NotifyAutomobile(sessionID string, car models.Car)
	NotifyComparison(sessionID string, cmp models.Comparison)
	NotifyProviders(sessionID string, providers []string)
	NotifyNews(sessionID string, articles []models.NewsArticle)
	NotifySearching(sessionID string, searching bool)
}

// ExecuteHandler serves POST /execute/{topic}/{sessionId}: external services
// push payloads that are fanned out to the session's subscribers.
type ExecuteHandler struct {
	Notifier ExecuteNotifier
	Logger   *slog.Logger
}

func (h ExecuteHandler) Routes(r chi.Router) {
	r.Post("/automobile/{sessionId}", h.automobile)
	r.Post("/comparison/{sessionId}", h.comparison)
	r.Post("/providers/{sessionId}", h.providers)
	r.Post("/news/{sessionId}", h.news)
	r.Post("/searching/{sessionId}", h.searching)
}

func (h ExecuteHandler) automobile(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	var car models.Car
	if !decodeBody(w, r, &car) {
		return
	}
	h.Notifier.NotifyAutomobile(sessionID, car)
	statusOK(w, "Automobile", sessionID)
}

func (h ExecuteHandler) comparison(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	var body struct {
		Cars []models.Car `json:"cars"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	cmp, err := models.NewComparison(body.Cars)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	h.Notifier.NotifyComparison(sessionID, cmp)
	statusOK(w, "Comparison", sessionID)
}

func (h ExecuteHandler) providers(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	var body struct {
		Providers []string `json:"providers"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	h.Notifier.NotifyProviders(sessionID, body.Providers)
	statusOK(w, "Providers", sessionID)
}

func (h ExecuteHandler) news(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	var articles []models.NewsArticle
	if !decodeBody(w, r, &articles) {
		return
	}
	h.Notifier.NotifyNews(sessionID, articles)
	statusOK(w, "News", sessionID)
}

func (h ExecuteHandler) searching(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")
	var body struct {
		Searching bool `json:"searching"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	h.Notifier.NotifySearching(sessionID, body.Searching)
	statusOK(w, "Searching", sessionID)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return false
	}
	return true
}

func statusOK(w http.ResponseWriter, topic, sessionID string) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": fmt.Sprintf("%s processed for session %s", topic, sessionID),
	})
}
