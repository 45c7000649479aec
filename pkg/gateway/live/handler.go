package live

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aigents-hub/aigents-api/pkg/gateway/live/conns"
	"github.com/aigents-hub/aigents-api/pkg/gateway/respstate"
	"github.com/aigents-hub/aigents-api/pkg/gateway/session"
	"github.com/aigents-hub/aigents-api/pkg/gateway/tools"
)

const defaultEchoDelay = 3 * time.Second

// Handler serves /ws/conversation. With no dialer configured it runs in echo
// mode: binary frames come back after a fixed delay, no upstream involved.
type Handler struct {
	Registry  *session.Registry
	State     *respstate.Store
	Tools     *tools.Handler
	Dialer    UpstreamDialer
	Tracker   *conns.Tracker
	EchoDelay time.Duration
	Logger    *slog.Logger
}

// clientSocket serializes writes to the browser websocket. Read stays on the
// handler goroutine.
type clientSocket struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *clientSocket) WriteAudio(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		logger.Error("conversation socket opened without sessionId")
		http.Error(w, "sessionId is required", http.StatusBadRequest)
		return
	}
	if _, err := h.Registry.GetContext(sessionID); err != nil {
		logger.Error("conversation socket for unknown session", "session_id", sessionID)
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	logger.Info("conversation connected", "session_id", sessionID)
	client := &clientSocket{conn: conn}

	if h.Dialer == nil {
		h.serveEcho(sessionID, conn, client, logger)
		return
	}

	bridge := NewBridge(sessionID, client, h.State, h.Tools, logger)

	var unregister func()
	if h.Tracker != nil {
		unregister = h.Tracker.Register(sessionID, conns.Handle{Close: func() {
			bridge.Close()
			conn.Close()
		}})
		defer unregister()
	}

	go func() {
		if err := bridge.Connect(r.Context(), h.Dialer); err != nil {
			logger.Error("upstream connect failed", "session_id", sessionID, "error", err)
			conn.Close()
		}
	}()
	defer bridge.Close()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			logger.Info("conversation disconnected", "session_id", sessionID)
			return
		}
		h.Registry.Touch(sessionID)
		if messageType != websocket.BinaryMessage {
			continue
		}
		bridge.AppendAudio(base64.StdEncoding.EncodeToString(data))
	}
}

// serveEcho plays incoming audio back after a delay. Used when the realtime
// upstream is disabled.
func (h *Handler) serveEcho(sessionID string, conn *websocket.Conn, client *clientSocket, logger *slog.Logger) {
	delay := h.EchoDelay
	if delay <= 0 {
		delay = defaultEchoDelay
	}
	logger.Info("conversation in echo mode", "session_id", sessionID, "delay", delay)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			logger.Info("conversation disconnected", "session_id", sessionID)
			return
		}
		h.Registry.Touch(sessionID)
		if messageType != websocket.BinaryMessage {
			continue
		}
		buf := data
		time.AfterFunc(delay, func() {
			if err := client.WriteAudio(buf); err != nil {
				logger.Warn("echo write failed", "session_id", sessionID, "error", err)
			}
		})
	}
}
