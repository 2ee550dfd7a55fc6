package presence

import (
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/domain"
)

// SessionReader is the read side of the session registry.
type SessionReader interface {
	IsOnline(userID string) bool
	AllOnlineUserIDs() []string
	AllConnectionIDs() []string
}

// Recorder observes presence fan-out.
type Recorder interface {
	PresenceBroadcast(eventType string, recipients int)
}

// Broadcaster turns registry changes into presence events addressed to every
// live connection. Fan-out is O(connections) per change.
type Broadcaster struct {
	sessions SessionReader
	recorder Recorder
}

// NewBroadcaster creates a presence broadcaster. recorder may be nil.
func NewBroadcaster(sessions SessionReader, recorder Recorder) *Broadcaster {
	return &Broadcaster{sessions: sessions, recorder: recorder}
}

// OnUserRegistered announces userID to everyone, the connecting device included,
// so every connection receives the full online set.
func (b *Broadcaster) OnUserRegistered(userID string) []domain.Outbound {
	return b.broadcast(domain.EventUserOnline, userID)
}

// OnUserDeregistered announces userID as offline once no session is left.
func (b *Broadcaster) OnUserDeregistered(userID string) []domain.Outbound {
	if b.sessions.IsOnline(userID) {
		return nil
	}
	return b.broadcast(domain.EventUserOffline, userID)
}

// Snapshot returns the current online set.
func (b *Broadcaster) Snapshot() []string {
	return b.sessions.AllOnlineUserIDs()
}

func (b *Broadcaster) broadcast(eventType, userID string) []domain.Outbound {
	targets := b.sessions.AllConnectionIDs()
	if b.recorder != nil {
		b.recorder.PresenceBroadcast(eventType, len(targets))
	}
	return domain.To(targets, eventType, domain.PresencePayload{
		UserID:        userID,
		OnlineUserIDs: b.sessions.AllOnlineUserIDs(),
	})
}
