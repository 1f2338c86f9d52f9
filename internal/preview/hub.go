package preview

import (
	"sync"
	"sync/atomic"
	"time"

	webcam "github.com/phreda4/webcamlib"
)

// Frame is a copied capture, safe to hand to any number of clients after
// the ring slot it came from has been released.
type Frame struct {
	Sequence  uint64             `json:"sequence"`
	Timestamp time.Duration      `json:"timestamp_ns"`
	Width     int                `json:"width"`
	Height    int                `json:"height"`
	Stride    int                `json:"stride"`
	Format    webcam.PixelFormat `json:"format"`
	Size      int                `json:"size"`
	Data      []byte             `json:"-"`
}

// clientBuffer is how many frames a client may fall behind before frames
// are dropped for it.
const clientBuffer = 2

// Hub fans frames out to subscribers. A slow subscriber misses frames; it
// never stalls the capture loop.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan Frame]struct{}
	closed  bool

	published atomic.Uint64
	dropped   atomic.Uint64
}

func NewHub() *Hub {
	return &Hub{clients: make(map[chan Frame]struct{})}
}

// Subscribe registers a client. The channel is closed when the hub closes
// or cancel is called.
func (h *Hub) Subscribe() (<-chan Frame, func()) {
	ch := make(chan Frame, clientBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	h.clients[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.clients[ch]; ok {
				delete(h.clients, ch)
				close(ch)
			}
		})
	}
}

// Publish offers f to every client without blocking.
func (h *Hub) Publish(f Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	h.published.Add(1)
	for ch := range h.clients {
		select {
		case ch <- f:
		default:
			h.dropped.Add(1)
		}
	}
}

// Close disconnects every client. Publish after Close is a no-op.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.clients {
		close(ch)
	}
	h.clients = make(map[chan Frame]struct{})
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Published is the number of frames offered to clients.
func (h *Hub) Published() uint64 { return h.published.Load() }

// Dropped counts per-client deliveries skipped because the client was behind.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }
