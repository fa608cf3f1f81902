// Package history maintains bounded per-token price windows for indicator
// computation. Each window is a fixed-capacity circular buffer: appends are
// O(1) and the oldest sample is evicted once the window is full.
package history

// Window is the number of samples retained per token.
const Window = 30

// window is a circular buffer of the most recent prices for one token.
type window struct {
	buf   []float64
	idx   int // next write position
	count int // total samples received
}

// Store holds rolling price windows keyed by token name.
// It is owned by the monitoring loop: a single writer, no locking.
type Store struct {
	size    int
	windows map[string]*window
}

// New creates a Store retaining size samples per token.
// size values below 1 fall back to the default Window.
func New(size int) *Store {
	if size < 1 {
		size = Window
	}
	return &Store{
		size:    size,
		windows: make(map[string]*window, 8),
	}
}

// Add appends a price sample to the token's window, evicting the oldest
// sample when the window is full.
func (s *Store) Add(token string, price float64) {
	w, ok := s.windows[token]
	if !ok {
		w = &window{buf: make([]float64, s.size)}
		s.windows[token] = w
	}
	w.buf[w.idx] = price
	w.idx = (w.idx + 1) % s.size
	w.count++
}

// Get returns a copy of the token's current window, oldest first.
// Unseen tokens yield an empty slice.
func (s *Store) Get(token string) []float64 {
	w, ok := s.windows[token]
	if !ok {
		return nil
	}
	n := w.count
	if n > s.size {
		n = s.size
	}
	out := make([]float64, n)
	if w.count <= s.size {
		copy(out, w.buf[:n])
		return out
	}
	// Wrapped: oldest sample sits at the write position.
	head := copy(out, w.buf[w.idx:])
	copy(out[head:], w.buf[:w.idx])
	return out
}

// Len returns the number of samples currently held for token.
func (s *Store) Len(token string) int {
	w, ok := s.windows[token]
	if !ok {
		return 0
	}
	if w.count > s.size {
		return s.size
	}
	return w.count
}
