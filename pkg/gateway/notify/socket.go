package notify

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var errSubscriberClosed = errors.New("subscriber socket closed")

// controlMessage is an inbound frame on the notification socket. A socket is
// unauthenticated until it sends init; only then may it subscribe to topics.
type controlMessage struct {
	Action    string `json:"action"`
	SessionID string `json:"sessionId,omitempty"`
	Event     string `json:"event,omitempty"`
}

type initializedAck struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

type subscribedAck struct {
	Type  string `json:"type"`
	Event string `json:"event"`
}

// subscriber wraps a websocket connection with a write lock so concurrent
// fan-outs never interleave frames, and a closed flag so late notifications
// become no-ops instead of errors.
type subscriber struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func newSubscriber(conn *websocket.Conn) *subscriber {
	return &subscriber{conn: conn}
}

func (s *subscriber) SendJSON(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSubscriberClosed
	}
	return s.conn.WriteJSON(v)
}

func (s *subscriber) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

func (s *subscriber) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// ServeHTTP upgrades /ws/notification connections and runs the control-frame
// loop until the client disconnects.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	g.logger.Info("notification client connected")
	sub := newSubscriber(conn)
	sessionID := ""

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var msg controlMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			g.logger.Warn("ignoring malformed control frame", "error", err)
			continue
		}

		switch msg.Action {
		case "init":
			sessionID = msg.SessionID
			if err := sub.SendJSON(initializedAck{Type: "initialized", SessionID: sessionID}); err != nil {
				g.logger.Warn("init ack failed", "session_id", sessionID, "error", err)
			}
			g.logger.Info("notification session initialized", "session_id", sessionID)
		case "subscribe":
			if sessionID == "" {
				g.logger.Warn("subscribe before init, ignoring", "event", msg.Event)
				continue
			}
			if err := g.registry.Subscribe(sessionID, msg.Event, sub); err != nil {
				g.logger.Warn("subscribe failed", "session_id", sessionID, "event", msg.Event, "error", err)
				continue
			}
			if err := sub.SendJSON(subscribedAck{Type: "subscribed", Event: msg.Event}); err != nil {
				g.logger.Warn("subscribe ack failed", "session_id", sessionID, "error", err)
			}
			g.logger.Info("socket subscribed", "session_id", sessionID, "event", msg.Event)
		default:
			g.logger.Warn("unknown control action", "action", msg.Action)
		}
	}

	sub.markClosed()
	if sessionID != "" {
		g.registry.Unsubscribe(sessionID, sub)
	}
	g.logger.Info("notification client disconnected", "session_id", sessionID)
}
