// Package session owns session identity, the IP-to-session binding, and the
// per-session notification subscriber sets. A background sweep is the only
// actor that deletes sessions; every other operation only creates or touches.
package session

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an operation names a session id the registry
// does not know.
var ErrNotFound = errors.New("session not found")

// Socket is the subscriber handle stored in a session's topic sets. The
// notification gateway wraps live websocket connections behind it.
type Socket interface {
	SendJSON(v any) error
	IsOpen() bool
}

// Context is a read-only snapshot of one session.
type Context struct {
	SessionID    string
	LastActivity time.Time
	Topics       []string
}

type sessionState struct {
	subscribers  map[string]map[Socket]struct{}
	lastActivity time.Time
}

// Config tunes the registry sweep. Zero values fall back to the defaults
// used by the production deployment (60s sweep, 5m TTL).
type Config struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

// Registry is the in-memory session store. All methods are safe for
// concurrent use.
type Registry struct {
	mu          sync.Mutex
	sessions    map[string]*sessionState
	ipToSession map[string]string

	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// New builds a registry and starts its background sweep. Call Close to stop
// the sweep goroutine.
func New(cfg Config, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}

	r := &Registry{
		sessions:    make(map[string]*sessionState),
		ipToSession: make(map[string]string),
		ttl:         cfg.TTL,
		logger:      logger,
		now:         time.Now,
		done:        make(chan struct{}),
	}
	go r.sweepLoop(cfg.SweepInterval)
	return r
}

// CreateOrGet returns the session bound to the client IP, creating one when
// none exists. The same IP always maps to the same live session.
func (r *Registry) CreateOrGet(clientIP string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.ipToSession[clientIP]; ok {
		if st := r.sessions[id]; st != nil {
			st.lastActivity = r.now()
			return id
		}
	}

	id := uuid.NewString()
	r.ipToSession[clientIP] = id
	r.sessions[id] = &sessionState{
		subscribers:  make(map[string]map[Socket]struct{}),
		lastActivity: r.now(),
	}
	return id
}

// GetContext returns a snapshot of the session and refreshes its activity.
func (r *Registry) GetContext(sessionID string) (Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.sessions[sessionID]
	if !ok {
		return Context{}, ErrNotFound
	}
	st.lastActivity = r.now()

	topics := make([]string, 0, len(st.subscribers))
	for topic := range st.subscribers {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	return Context{
		SessionID:    sessionID,
		LastActivity: st.lastActivity,
		Topics:       topics,
	}, nil
}

// Touch refreshes the session's activity timestamp. Unknown ids are ignored.
func (r *Registry) Touch(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if st, ok := r.sessions[sessionID]; ok {
		st.lastActivity = r.now()
	}
}

// Subscribe adds the socket to the topic's subscriber set. Adding the same
// socket twice is a no-op.
func (r *Registry) Subscribe(sessionID, topic string, sock Socket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	set, ok := st.subscribers[topic]
	if !ok {
		set = make(map[Socket]struct{})
		st.subscribers[topic] = set
	}
	set[sock] = struct{}{}
	st.lastActivity = r.now()
	return nil
}

// Unsubscribe removes the socket from every topic set of the session. Used on
// socket close; a no-op when the session no longer exists.
func (r *Registry) Unsubscribe(sessionID string, sock Socket) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	for _, set := range st.subscribers {
		delete(set, sock)
	}
	st.lastActivity = r.now()
}

// Subscribers returns the sockets subscribed to (sessionID, topic). The
// second return value is false when the session is unknown or the topic was
// never subscribed to, so callers can distinguish "never touched" from an
// empty set.
func (r *Registry) Subscribers(sessionID, topic string) ([]Socket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	set, ok := st.subscribers[topic]
	if !ok {
		return nil, false
	}
	out := make([]Socket, 0, len(set))
	for sock := range set {
		out = append(out, sock)
	}
	return out, true
}

// Close stops the background sweep. Sessions already in memory stay readable.
func (r *Registry) Close() {
	r.closeOnce.Do(func() { close(r.done) })
}

func (r *Registry) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.purgeStale()
		case <-r.done:
			return
		}
	}
}

// purgeStale deletes every session idle beyond the TTL, together with its IP
// binding.
func (r *Registry) purgeStale() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	purged := 0
	for id, st := range r.sessions {
		if now.Sub(st.lastActivity) <= r.ttl {
			continue
		}
		delete(r.sessions, id)
		for ip, bound := range r.ipToSession {
			if bound == id {
				delete(r.ipToSession, ip)
			}
		}
		purged++
		r.logger.Info("purged stale session", "session_id", id)
	}
	return purged
}
