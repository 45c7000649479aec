// Package handlers holds the REST endpoints of the gateway.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/aigents-hub/aigents-api/pkg/gateway/session"
)

// SessionHandler serves POST /session: create or reuse the session bound to
// the caller's IP.
type SessionHandler struct {
	Registry *session.Registry
	Logger   *slog.Logger
}

func (h SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if ip == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "could not determine client IP"})
		return
	}
	sessionID := h.Registry.CreateOrGet(ip)
	if h.Logger != nil {
		h.Logger.Info("session issued", "session_id", sessionID, "ip", ip)
	}
	writeJSON(w, http.StatusCreated, map[string]string{"sessionId": sessionID})
}

// clientIP prefers the forwarded address when present, otherwise the peer
// address without its port.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
