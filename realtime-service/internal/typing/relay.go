package typing

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/weiawesome/wes-io-chat/realtime-service/internal/domain"
)

// RoomReader is the read side of the room table.
type RoomReader interface {
	Members(conversationID string) []string
	IsMember(connectionID, conversationID string) bool
}

// Recorder observes debounced typing events.
type Recorder interface {
	TypingDebounced()
}

// Config tunes debouncing. A zero Interval disables it.
type Config struct {
	Interval time.Duration
	Burst    int
}

type limiterKey struct {
	connectionID   string
	conversationID string
}

// Relay broadcasts ephemeral typing state to the other connections of a room.
// Nothing is persisted and delivery is at most once.
type Relay struct {
	rooms    RoomReader
	cfg      Config
	recorder Recorder

	mu       sync.Mutex
	limiters map[limiterKey]*rate.Limiter
}

// NewRelay creates a typing relay. recorder may be nil.
func NewRelay(rooms RoomReader, cfg Config, recorder Recorder) *Relay {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &Relay{
		rooms:    rooms,
		cfg:      cfg,
		recorder: recorder,
		limiters: make(map[limiterKey]*rate.Limiter),
	}
}

// SetTyping addresses user-typing to every room member except the originating
// connection. Repeated "typing" signals inside the debounce interval are
// dropped; "stopped typing" always goes through and resets the limiter.
func (r *Relay) SetTyping(connectionID, conversationID, userID string, isTyping bool) []domain.Outbound {
	if conversationID == "" || !r.rooms.IsMember(connectionID, conversationID) {
		return nil
	}

	if !r.allow(limiterKey{connectionID, conversationID}, isTyping) {
		if r.recorder != nil {
			r.recorder.TypingDebounced()
		}
		return nil
	}

	members := r.rooms.Members(conversationID)
	targets := make([]string, 0, len(members))
	for _, id := range members {
		if id != connectionID {
			targets = append(targets, id)
		}
	}

	return domain.To(targets, domain.EventUserTyping, domain.TypingPayload{
		UserID:         userID,
		ConversationID: conversationID,
		IsTyping:       isTyping,
	})
}

// Forget drops limiter state for a closed connection.
func (r *Relay) Forget(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key := range r.limiters {
		if key.connectionID == connectionID {
			delete(r.limiters, key)
		}
	}
}

func (r *Relay) allow(key limiterKey, isTyping bool) bool {
	if r.cfg.Interval <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !isTyping {
		delete(r.limiters, key)
		return true
	}

	lim, ok := r.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(r.cfg.Interval), r.cfg.Burst)
		r.limiters[key] = lim
	}
	return lim.Allow()
}
