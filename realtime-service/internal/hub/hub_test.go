package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-chat/realtime-service/internal/config"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/domain"
)

type countingRecorder struct {
	opened, closed int
	dropped        map[string]int
	emitted        map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{dropped: map[string]int{}, emitted: map[string]int{}}
}

func (r *countingRecorder) ConnectionOpened()               { r.opened++ }
func (r *countingRecorder) ConnectionClosed()               { r.closed++ }
func (r *countingRecorder) ConnectionDropped(reason string) { r.dropped[reason]++ }
func (r *countingRecorder) EventEmitted(eventType string, n int) {
	r.emitted[eventType] += n
}

// Clients in these tests have no socket; Deliver only touches Send.
func newTestClient(h *Hub, connID, userID string) *Client {
	return NewClient(h, nil, domain.NewSession(connID, userID))
}

func receive(t *testing.T, c *Client) domain.Event {
	t.Helper()
	select {
	case raw, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var evt struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		require.NoError(t, json.Unmarshal(raw, &evt))
		return domain.Event{Type: evt.Type, Data: evt.Data}
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
	return domain.Event{}
}

func TestHub_DeliverAddressesConnections(t *testing.T) {
	rec := newCountingRecorder()
	h := NewHub(config.WebSocketConfig{SendBuffer: 4}, rec)
	a := newTestClient(h, "conn-a1", "alice")
	b := newTestClient(h, "conn-b1", "bob")
	require.True(t, h.Register(a))
	require.True(t, h.Register(b))

	h.Deliver(domain.To([]string{"conn-a1", "conn-gone"}, domain.EventUserTyping, domain.TypingPayload{
		UserID: "bob", ConversationID: "c1", IsTyping: true,
	}))

	evt := receive(t, a)
	assert.Equal(t, domain.EventUserTyping, evt.Type)
	assert.JSONEq(t, `{"userId":"bob","conversationId":"c1","isTyping":true}`, string(evt.Data.(json.RawMessage)))
	assert.Empty(t, b.Send)
	assert.Equal(t, 1, rec.emitted[domain.EventUserTyping])
	assert.Equal(t, 2, rec.opened)
}

func TestHub_DeliverPreservesOrder(t *testing.T) {
	h := NewHub(config.WebSocketConfig{SendBuffer: 8}, nil)
	a := newTestClient(h, "conn-a1", "alice")
	h.Register(a)

	var outs []domain.Outbound
	outs = append(outs, domain.Reply("conn-a1", domain.EventCallEnded, domain.CallClosedPayload{From: "bob", CallID: "x"})...)
	outs = append(outs, domain.Reply("conn-a1", domain.EventUserOffline, domain.PresencePayload{UserID: "bob"})...)
	h.Deliver(outs)

	assert.Equal(t, domain.EventCallEnded, receive(t, a).Type)
	assert.Equal(t, domain.EventUserOffline, receive(t, a).Type)
}

func TestHub_FullBufferDropsConnection(t *testing.T) {
	rec := newCountingRecorder()
	h := NewHub(config.WebSocketConfig{SendBuffer: 1}, rec)
	a := newTestClient(h, "conn-a1", "alice")
	h.Register(a)

	h.Deliver(domain.Reply("conn-a1", domain.EventPong, nil))
	h.Deliver(domain.Reply("conn-a1", domain.EventPong, nil))

	assert.Equal(t, 0, h.Count())
	assert.Equal(t, 1, rec.dropped["send_buffer_full"])
	assert.Equal(t, 1, rec.closed)

	// The buffered event is still readable, then the channel is closed.
	_, ok := <-a.Send
	assert.True(t, ok)
	_, ok = <-a.Send
	assert.False(t, ok)
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	rec := newCountingRecorder()
	h := NewHub(config.WebSocketConfig{}, rec)
	a := newTestClient(h, "conn-a1", "alice")
	h.Register(a)

	h.Unregister(a)
	h.Unregister(a)

	assert.Equal(t, 0, h.Count())
	assert.Equal(t, 1, rec.closed)
}

func TestHub_UnregisterIgnoresReplacedClient(t *testing.T) {
	h := NewHub(config.WebSocketConfig{}, nil)
	old := newTestClient(h, "conn-a1", "alice")
	h.Register(old)
	replacement := newTestClient(h, "conn-a1", "alice")
	h.Register(replacement)

	h.Unregister(old)
	assert.Equal(t, 1, h.Count())
}

func TestHub_RunClosesClientsOnShutdown(t *testing.T) {
	h := NewHub(config.WebSocketConfig{}, nil)
	a := newTestClient(h, "conn-a1", "alice")
	h.Register(a)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	cancel()
	<-done

	_, ok := <-a.Send
	assert.False(t, ok)
	assert.Equal(t, 0, h.Count())

	late := newTestClient(h, "conn-b1", "bob")
	assert.False(t, h.Register(late))
	_, ok = <-late.Send
	assert.False(t, ok)
}

func TestHub_DoneWaitsForWritePumps(t *testing.T) {
	h := NewHub(config.WebSocketConfig{}, nil)
	h.Register(newTestClient(h, "conn-a1", "alice"))
	require.True(t, h.writerStarted())

	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	cancel()

	select {
	case <-h.Done():
		t.Fatal("hub stopped while a write pump was still flushing")
	case <-time.After(50 * time.Millisecond):
	}

	h.writers.Done()
	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("hub did not stop after the write pump exited")
	}

	assert.False(t, h.writerStarted(), "no pump is tracked after shutdown")
}
