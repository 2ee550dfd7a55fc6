package hub

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"

	pkglog "github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/config"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/domain"
)

const defaultSendBuffer = 256

// Recorder observes connection and delivery metrics.
type Recorder interface {
	ConnectionOpened()
	ConnectionClosed()
	ConnectionDropped(reason string)
	EventEmitted(eventType string, recipients int)
}

// Hub owns the live WebSocket clients keyed by connection id and writes
// addressed events to their send buffers.
type Hub struct {
	clients  map[string]*Client
	mu       sync.RWMutex
	closed   bool
	config   config.WebSocketConfig
	recorder Recorder

	writers sync.WaitGroup
	done    chan struct{}
}

// NewHub creates a new Hub. recorder may be nil.
func NewHub(cfg config.WebSocketConfig, recorder Recorder) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	return &Hub{
		clients:  make(map[string]*Client),
		config:   cfg,
		recorder: recorder,
		done:     make(chan struct{}),
	}
}

// Run blocks until ctx is done, then closes every client and waits for
// their write pumps to send the close frame. Done is closed on return.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	<-ctx.Done()

	h.mu.Lock()
	n := len(h.clients)
	for id, client := range h.clients {
		close(client.Send)
		delete(h.clients, id)
		h.connectionClosed()
	}
	h.closed = true
	h.mu.Unlock()

	h.writers.Wait()

	l := pkglog.L()
	l.Info().Int("clients", n).Msg("hub stopped")
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// writerStarted tracks a write pump unless the hub has already stopped.
func (h *Hub) writerStarted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.writers.Add(1)
	return true
}

// Register adds a client to the hub. It returns false once the hub has
// stopped, in which case the client's send channel is closed.
func (h *Hub) Register(client *Client) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(client.Send)
		return false
	}
	h.clients[client.ID] = client
	h.mu.Unlock()

	if h.recorder != nil {
		h.recorder.ConnectionOpened()
	}
	l := pkglog.L()
	l.Debug().Str(pkglog.FieldConnectionID, client.ID).Msg("client registered")
	return true
}

// Unregister removes a client and closes its send channel. Unregistering a
// client twice is a no-op.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	current, ok := h.clients[client.ID]
	if !ok || current != client {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
	h.connectionClosed()
	h.mu.Unlock()

	l := pkglog.L()
	l.Debug().Str(pkglog.FieldConnectionID, client.ID).Msg("client unregistered")
}

// Deliver writes each event to the send buffer of its connections. Unknown
// connections are skipped. A connection whose buffer is full is dropped.
func (h *Hub) Deliver(outs []domain.Outbound) {
	l := pkglog.L()
	for _, out := range outs {
		data, err := json.Marshal(out.Event)
		if err != nil {
			l.Error().Err(err).Str(pkglog.FieldEvent, out.Event.Type).Msg("failed to encode event")
			continue
		}

		var full []*Client
		sent := 0
		h.mu.RLock()
		for _, id := range out.ConnectionIDs {
			client, ok := h.clients[id]
			if !ok {
				continue
			}
			select {
			case client.Send <- data:
				sent++
			default:
				// Client's send buffer is full
				full = append(full, client)
			}
		}
		h.mu.RUnlock()

		if h.recorder != nil && sent > 0 {
			h.recorder.EventEmitted(out.Event.Type, sent)
		}
		for _, client := range full {
			l.Warn().
				Str(pkglog.FieldConnectionID, client.ID).
				Str(pkglog.FieldEvent, out.Event.Type).
				Msg("send buffer full, dropping connection")
			if h.recorder != nil {
				h.recorder.ConnectionDropped("send_buffer_full")
			}
			h.Unregister(client)
		}
	}
}

// Count returns the number of registered clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// connectionClosed must be called with h.mu held.
func (h *Hub) connectionClosed() {
	if h.recorder != nil {
		h.recorder.ConnectionClosed()
	}
}
