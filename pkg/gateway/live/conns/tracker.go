// Package conns tracks open conversation sockets so shutdown can close them
// and wait for their goroutines to drain.
package conns

import (
	"context"
	"sync"
)

// Handle is what the tracker can do to one live connection.
type Handle struct {
	Close func()
}

// Tracker registers live conversation connections keyed by session id. A
// second registration for the same session closes the first.
type Tracker struct {
	mu    sync.Mutex
	conns map[string]*trackedConn
	wg    sync.WaitGroup
}

type trackedConn struct {
	handle Handle
	once   sync.Once
}

func NewTracker() *Tracker {
	return &Tracker{conns: make(map[string]*trackedConn)}
}

func (t *Tracker) Register(sessionID string, h Handle) (unregister func()) {
	if t == nil {
		return func() {}
	}

	entry := &trackedConn{handle: h}

	t.mu.Lock()
	if t.conns == nil {
		t.conns = make(map[string]*trackedConn)
	}
	old := t.conns[sessionID]
	t.conns[sessionID] = entry
	t.wg.Add(1)
	t.mu.Unlock()

	if old != nil {
		if old.handle.Close != nil {
			old.handle.Close()
		}
		t.unregister(sessionID, old)
	}

	return func() { t.unregister(sessionID, entry) }
}

func (t *Tracker) unregister(sessionID string, entry *trackedConn) {
	if t == nil || entry == nil {
		return
	}
	entry.once.Do(func() {
		t.mu.Lock()
		if t.conns != nil && t.conns[sessionID] == entry {
			delete(t.conns, sessionID)
		}
		t.mu.Unlock()
		t.wg.Done()
	})
}

func (t *Tracker) Count() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

// CloseAll closes every tracked connection. Connections unregister themselves
// as their read loops exit.
func (t *Tracker) CloseAll() (closed int) {
	if t == nil {
		return 0
	}

	var closers []func()
	t.mu.Lock()
	for _, entry := range t.conns {
		if entry == nil || entry.handle.Close == nil {
			continue
		}
		closers = append(closers, entry.handle.Close)
	}
	t.mu.Unlock()

	for _, closeFn := range closers {
		closeFn()
		closed++
	}
	return closed
}

// Wait blocks until every registered connection has unregistered, or the
// context expires. Reports whether the drain completed.
func (t *Tracker) Wait(ctx context.Context) bool {
	if t == nil {
		return true
	}
	if ctx == nil {
		t.wg.Wait()
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		t.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
