package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		model   string
		want    string
	}{
		{"default base", "", "gpt-realtime", "wss://api.openai.com/v1/realtime?model=gpt-realtime"},
		{"https base", "https://example.com/v1", "m1", "wss://example.com/v1/realtime?model=m1"},
		{"http base", "http://localhost:8123/v1", "m1", "ws://localhost:8123/v1/realtime?model=m1"},
		{"trailing slash", "https://example.com/v1/", "m1", "wss://example.com/v1/realtime?model=m1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WebSocketURL(tt.baseURL, tt.model)
			if err != nil {
				t.Fatalf("WebSocketURL: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDial_SendAndReceive(t *testing.T) {
	upgrader := websocket.Upgrader{}
	gotAuth := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Expect one client event, then answer with a tagged server event.
		var ev ClientEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return
		}
		if ev.Type != TypeInputAudioBufferAppend {
			return
		}
		_ = conn.WriteJSON(ServerEvent{Type: TypeResponseAudioDelta, Delta: "YWJj"})
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c, err := Dial(ctx, Options{
		Model:   "gpt-realtime",
		APIKey:  "sk-test",
		BaseURL: srv.URL,
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	if auth := <-gotAuth; auth != "Bearer sk-test" {
		t.Fatalf("authorization header=%q", auth)
	}

	if err := c.Send(AppendAudio("cGNt")); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case ev := <-c.Events():
		if ev.Type != TypeResponseAudioDelta || ev.Delta != "YWJj" {
			t.Fatalf("event=%+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no event received")
	}
}

func TestSend_AfterCloseReturnsErrClosed(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c, err := Dial(context.Background(), Options{Model: "m", APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	c.Close()

	if err := c.Send(AppendAudio("cGNt")); err != ErrClosed {
		t.Fatalf("err=%v, want ErrClosed", err)
	}
	if c.IsOpen() {
		t.Fatalf("closed client reports open")
	}
}

func TestDial_Validation(t *testing.T) {
	if _, err := Dial(context.Background(), Options{APIKey: "k"}); err == nil {
		t.Fatalf("expected error without model")
	}
	if _, err := Dial(context.Background(), Options{Model: "m"}); err == nil {
		t.Fatalf("expected error without api key")
	}
	if !strings.Contains(ErrClosed.Error(), "closed") {
		t.Fatalf("sanity: %v", ErrClosed)
	}
}
