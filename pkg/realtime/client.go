package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

const defaultBaseURL = "https://api.openai.com/v1"

// ErrClosed is returned by Send once the upstream socket is gone. Late tool
// injections against a closed connection surface it and are logged by the
// caller, never retried.
var ErrClosed = errors.New("realtime connection closed")

// Options configures a Dial.
type Options struct {
	Model   string
	APIKey  string
	BaseURL string // HTTP base, e.g. https://api.openai.com/v1
	Logger  *slog.Logger
	Dialer  *websocket.Dialer
}

// Client is a live connection to the upstream realtime endpoint. Writes are
// serialized internally; events are delivered on a single channel that closes
// when the socket dies.
type Client struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex
	events  chan ServerEvent
	open    atomic.Bool

	closeOnce sync.Once
}

// WebSocketURL converts the HTTP base URL into the realtime websocket URL
// for the model.
func WebSocketURL(baseURL, model string) (string, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https", "":
		u.Scheme = "wss"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/realtime"
	q := u.Query()
	q.Set("model", model)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Dial connects and starts the event pump. The caller owns the returned
// client and must Close it.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Model) == "" {
		return nil, errors.New("realtime: model is required")
	}
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("realtime: api key is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	wsURL, err := WebSocketURL(opts.BaseURL, opts.Model)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+opts.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("realtime dial: %w (status %s)", err, resp.Status)
		}
		return nil, fmt.Errorf("realtime dial: %w", err)
	}

	c := &Client{
		conn:   conn,
		logger: logger,
		events: make(chan ServerEvent, 64),
	}
	c.open.Store(true)
	go c.readLoop()
	return c, nil
}

// Send writes one client event. Returns ErrClosed after the socket is gone.
func (c *Client) Send(ev ClientEvent) error {
	if !c.open.Load() {
		return ErrClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if !c.open.Load() {
		return ErrClosed
	}
	if err := c.conn.WriteJSON(ev); err != nil {
		return fmt.Errorf("realtime send %s: %w", ev.Type, err)
	}
	return nil
}

// Events returns the server event stream. The channel closes when the
// connection ends.
func (c *Client) Events() <-chan ServerEvent {
	return c.events
}

// IsOpen reports whether the socket is still usable.
func (c *Client) IsOpen() bool {
	return c.open.Load()
}

// Close tears the socket down. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.open.Store(false)
		err = c.conn.Close()
	})
	return err
}

func (c *Client) readLoop() {
	defer close(c.events)
	defer c.open.Store(false)

	for {
		var ev ServerEvent
		if err := c.conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("realtime read loop ended", "error", err)
			}
			return
		}
		c.events <- ev
	}
}
