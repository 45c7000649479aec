package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aigents-hub/aigents-api/pkg/gateway/config"
	"github.com/aigents-hub/aigents-api/pkg/gateway/notify"
	"github.com/aigents-hub/aigents-api/pkg/gateway/respstate"
	"github.com/aigents-hub/aigents-api/pkg/gateway/session"
)

func testServer(t *testing.T) (*httptest.Server, *session.Registry) {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	registry := session.New(session.Config{}, logger)
	t.Cleanup(registry.Close)

	srv := New(Deps{
		Config:   config.Config{EchoDelay: 10 * time.Millisecond},
		Logger:   logger,
		Registry: registry,
		State:    respstate.New(),
		Notify:   notify.New(registry, logger),
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, registry
}

func TestServer_HealthAndSession(t *testing.T) {
	ts, _ := testServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status=%d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatalf("request id header missing")
	}

	resp, err = http.Post(ts.URL+"/session", "application/json", nil)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("session status=%d", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["sessionId"] == "" {
		t.Fatalf("no sessionId in %v", body)
	}
}

func TestServer_ExecuteReachesNotificationSocket(t *testing.T) {
	ts, registry := testServer(t)
	sessionID := registry.CreateOrGet("10.1.1.1")

	wsURL := strings.Replace(ts.URL, "http", "ws", 1) + "/ws/notification"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial notification socket: %v", err)
	}
	defer conn.Close()

	send := func(v any) {
		if err := conn.WriteJSON(v); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	readAck := func() map[string]any {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var m map[string]any
		if err := conn.ReadJSON(&m); err != nil {
			t.Fatalf("read: %v", err)
		}
		return m
	}

	send(map[string]string{"action": "init", "sessionId": sessionID})
	readAck()
	send(map[string]string{"action": "subscribe", "event": "Searching"})
	readAck()

	resp, err := http.Post(ts.URL+"/execute/searching/"+sessionID, "application/json",
		strings.NewReader(`{"searching":true}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("execute status=%d", resp.StatusCode)
	}

	msg := readAck()
	if msg["event"] != "Searching" {
		t.Fatalf("notification=%v", msg)
	}
	payload, _ := msg["payload"].(map[string]any)
	if payload["searching"] != true {
		t.Fatalf("payload=%v", payload)
	}
}
