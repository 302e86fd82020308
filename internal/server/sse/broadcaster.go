// Package sse streams session phase transitions to operator dashboards
// over Server-Sent Events. The actuator never uses this channel; it
// stays on the poll endpoint.
package sse

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/hydroloop/reclaim/internal/session"
	"github.com/rs/zerolog/log"
)

// writeTimeout bounds a single client write so a stale connection
// cannot block a broadcast.
const writeTimeout = 2 * time.Second

// client is one connected SSE subscriber.
type client struct {
	id      string
	writer  http.ResponseWriter
	flusher http.Flusher
	done    chan struct{}
}

// Broadcaster fans controller events out to connected SSE clients.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[string]*client
	nextID  int
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{clients: make(map[string]*client)}
}

// ClientCount returns the number of connected subscribers.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Publish sends a controller event to every subscriber. Dead clients
// are dropped.
func (b *Broadcaster) Publish(ev session.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal SSE event")
		return
	}
	message := fmt.Sprintf("data: %s\n\n", payload)

	b.mu.RLock()
	targets := make([]*client, 0, len(b.clients))
	for _, c := range b.clients {
		targets = append(targets, c)
	}
	b.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	deadCh := make(chan string, len(targets))
	var wg sync.WaitGroup
	for _, c := range targets {
		select {
		case <-c.done:
			continue
		default:
		}
		wg.Add(1)
		go func(c *client) {
			defer wg.Done()
			b.write(c, message, deadCh)
		}(c)
	}
	wg.Wait()
	close(deadCh)

	for id := range deadCh {
		b.drop(id)
	}
}

// write delivers one message to one client, bounded by writeTimeout.
func (b *Broadcaster) write(c *client, message string, deadCh chan<- string) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := c.writer.Write([]byte(message)); err != nil {
			deadCh <- c.id
			return
		}
		c.flusher.Flush()
	}()

	select {
	case <-done:
	case <-time.After(writeTimeout):
		log.Warn().Str("clientId", c.id).Msg("SSE write timed out, dropping client")
		deadCh <- c.id
	case <-c.done:
	}
}

// drop removes a client by ID and closes its done channel once.
func (b *Broadcaster) drop(id string) {
	b.mu.Lock()
	c, exists := b.clients[id]
	if exists {
		delete(b.clients, id)
	}
	remaining := len(b.clients)
	b.mu.Unlock()

	if exists {
		select {
		case <-c.done:
		default:
			close(c.done)
		}
	}
	log.Debug().Str("clientId", id).Int("totalClients", remaining).Msg("SSE client removed")
}

// HandleSSE upgrades the request to an event stream and blocks until
// the client disconnects.
func (b *Broadcaster) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	b.mu.Lock()
	b.nextID++
	c := &client{
		id:      fmt.Sprintf("client-%d", b.nextID),
		writer:  w,
		flusher: flusher,
		done:    make(chan struct{}),
	}
	b.clients[c.id] = c
	total := len(b.clients)
	b.mu.Unlock()

	log.Debug().Str("clientId", c.id).Int("totalClients", total).Msg("SSE client connected")

	fmt.Fprintf(w, "data: {\"type\":\"connected\",\"client_id\":%q}\n\n", c.id)
	flusher.Flush()

	select {
	case <-r.Context().Done():
	case <-c.done:
	}
	b.drop(c.id)
}
