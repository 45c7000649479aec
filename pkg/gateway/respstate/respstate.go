// Package respstate tracks whether the upstream model is currently producing
// a response for a session, and lets background tool work wait for the next
// moment it is not.
package respstate

import "sync"

// Store keeps per-session responding flags and their wait queues. Safe for
// concurrent use; the zero value is not usable, call New.
type Store struct {
	mu         sync.Mutex
	responding map[string]bool
	waiters    map[string][]chan struct{}
}

func New() *Store {
	return &Store{
		responding: make(map[string]bool),
		waiters:    make(map[string][]chan struct{}),
	}
}

// SetResponding records the model state for the session. A transition to
// false resolves every pending waiter in FIFO order and clears the queue;
// waits registered after the flush starts join the next cycle.
func (s *Store) SetResponding(sessionID string, responding bool) {
	s.mu.Lock()
	s.responding[sessionID] = responding
	var flush []chan struct{}
	if !responding {
		flush = s.waiters[sessionID]
		delete(s.waiters, sessionID)
	}
	s.mu.Unlock()

	for _, ch := range flush {
		close(ch)
	}
}

// Responding reports the last recorded state; unset sessions read as false.
func (s *Store) Responding(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.responding[sessionID]
}

var resolved = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// WaitUntilNotResponding returns a channel closed once the session is no
// longer responding. When the state is already false (or was never set) the
// returned channel is closed immediately. There is no timeout: a session
// that never reports idle suspends its waiters indefinitely.
func (s *Store) WaitUntilNotResponding(sessionID string) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.responding[sessionID] {
		return resolved
	}
	ch := make(chan struct{})
	s.waiters[sessionID] = append(s.waiters[sessionID], ch)
	return ch
}
