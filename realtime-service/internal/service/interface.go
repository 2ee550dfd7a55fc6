package service

import (
	"context"

	"github.com/weiawesome/wes-io-chat/realtime-service/internal/domain"
)

// RealtimeService drives the realtime core for connections and REST callers.
type RealtimeService interface {
	// Authenticate resolves a bearer token to a user id before the upgrade.
	Authenticate(ctx context.Context, token string) (string, error)

	// HandleConnect registers a new session and announces it.
	HandleConnect(ctx context.Context, session *domain.Session)

	// HandleCommand parses and executes one inbound frame.
	HandleCommand(ctx context.Context, session *domain.Session, raw []byte)

	// HandleDisconnect removes every trace of a session.
	HandleDisconnect(ctx context.Context, session *domain.Session)

	// SendMessage persists a message on behalf of userID and pushes it to the room.
	SendMessage(ctx context.Context, userID, conversationID, content string, msgType domain.MessageType) (*domain.Message, error)

	// LastMessage returns the newest message of a conversation.
	LastMessage(ctx context.Context, userID, conversationID string) (*domain.Message, error)

	// OnlineUserIDs returns every user with at least one live session.
	OnlineUserIDs() []string

	// IsOnline reports whether userID has a live session.
	IsOnline(userID string) bool

	// Start starts background goroutines (ring timeout sweeper).
	Start(ctx context.Context) error

	// Stop stops background goroutines.
	Stop() error
}

// Deliverer writes addressed events to live connections.
type Deliverer interface {
	Deliver(outs []domain.Outbound)
}

// Recorder observes service level outcomes.
type Recorder interface {
	AuthFailed()
	CallUnavailable(reason string)
	OnlineUsers(n int)
}
