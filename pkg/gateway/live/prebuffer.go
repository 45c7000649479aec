package live

import "sync"

// PreBuffer holds base64 audio chunks that arrive before the upstream socket
// is ready. Drain preserves arrival order.
type PreBuffer struct {
	mu     sync.Mutex
	frames []string
}

func (b *PreBuffer) Append(b64 string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = append(b.frames, b64)
}

// Drain removes and returns every buffered chunk in FIFO order.
func (b *PreBuffer) Drain() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	frames := b.frames
	b.frames = nil
	return frames
}

func (b *PreBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}
