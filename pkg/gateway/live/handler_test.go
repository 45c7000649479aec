package live

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aigents-hub/aigents-api/pkg/gateway/respstate"
	"github.com/aigents-hub/aigents-api/pkg/gateway/session"
)

func echoServer(t *testing.T) (*httptest.Server, string, *session.Registry) {
	t.Helper()
	registry := session.New(session.Config{}, slog.New(slog.DiscardHandler))
	t.Cleanup(registry.Close)
	sessionID := registry.CreateOrGet("10.0.0.1")

	h := &Handler{
		Registry:  registry,
		State:     respstate.New(),
		EchoDelay: 10 * time.Millisecond,
		Logger:    slog.New(slog.DiscardHandler),
	}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, sessionID, registry
}

func TestHandler_RequiresSessionID(t *testing.T) {
	srv, _, _ := echoServer(t)

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", resp.StatusCode)
	}
}

func TestHandler_RejectsUnknownSession(t *testing.T) {
	srv, _, _ := echoServer(t)

	wsURL := strings.Replace(srv.URL, "http", "ws", 1) + "?sessionId=nope"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatalf("dial succeeded for unknown session")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("resp=%+v, want 404", resp)
	}
}

func TestHandler_EchoModeReplaysAudio(t *testing.T) {
	srv, sessionID, _ := echoServer(t)

	wsURL := strings.Replace(srv.URL, "http", "ws", 1) + "?sessionId=" + sessionID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	payload := []byte("pcm-frame")
	if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	messageType, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read echo: %v", err)
	}
	if messageType != websocket.BinaryMessage || string(data) != string(payload) {
		t.Fatalf("echo=%q (type %d)", data, messageType)
	}
}
