// Package gateway fans bot events out to WebSocket dashboard clients.
// It subscribes to the Redis PubSub channels written by internal/events and
// wraps every payload in a small envelope with the source channel, a
// timestamp and a monotonic sequence number.
package gateway

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// Hub manages WebSocket clients and Redis PubSub fan-out.
type Hub struct {
	rdb *goredis.Client

	mu      sync.RWMutex
	clients map[*Client]bool
	seq     int64
}

// NewHub creates a Hub backed by the given Redis client.
func NewHub(rdb *goredis.Client) *Hub {
	return &Hub{
		rdb:     rdb,
		clients: make(map[*Client]bool),
	}
}

// Run subscribes to all bot event channels and broadcasts every message
// until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	pubsub := h.rdb.PSubscribe(ctx, "pub:*")
	defer pubsub.Close()

	log.Println("[gateway] subscribed to pub:* event channels")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(msg.Channel, []byte(msg.Payload))
		}
	}
}

// broadcast wraps data in an envelope and sends it to every client.
// Slow clients are skipped rather than blocking the fan-out.
func (h *Hub) broadcast(channel string, data []byte) {
	h.mu.Lock()
	h.seq++
	seq := h.seq
	h.mu.Unlock()

	buf := buildEnvelope(channel, data, time.Now().UTC(), seq)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- buf:
		default:
			// client buffer full, drop
		}
	}
}

// buildEnvelope hand-crafts the envelope JSON:
// {"channel":"…","data":…,"ts":"…","seq":N}
func buildEnvelope(channel string, data []byte, now time.Time, seq int64) []byte {
	buf := make([]byte, 0, len(channel)+len(data)+96)
	buf = append(buf, `{"channel":"`...)
	buf = append(buf, channel...)
	buf = append(buf, `","data":`...)
	buf = append(buf, data...)
	buf = append(buf, `,"ts":"`...)
	buf = now.AppendFormat(buf, time.RFC3339Nano)
	buf = append(buf, `","seq":`...)
	buf = strconv.AppendInt(buf, seq, 10)
	buf = append(buf, '}')
	return buf
}

// AddClient registers a client for broadcasts.
func (h *Hub) AddClient(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	log.Printf("[gateway] ws client connected (%d total)", n)
}

// RemoveClient deregisters a client and closes its send queue.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	log.Printf("[gateway] ws client disconnected (%d total)", n)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
