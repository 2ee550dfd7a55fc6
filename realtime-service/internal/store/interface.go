package store

import (
	"context"
	"errors"

	"github.com/weiawesome/wes-io-chat/realtime-service/internal/domain"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageStore persists messages and their status transitions.
type MessageStore interface {
	// Insert persists msg and returns the stored copy with id and timestamp set.
	Insert(ctx context.Context, msg *domain.Message) (*domain.Message, error)
	// UpdateStatus applies a guarded bulk transition and returns the number of
	// messages changed.
	UpdateStatus(ctx context.Context, update domain.StatusUpdate) (int64, error)
	// FindLast returns the newest message of a conversation or ErrMessageNotFound.
	FindLast(ctx context.Context, conversationID string) (*domain.Message, error)
}

// ParticipantDirectory answers conversation membership questions.
type ParticipantDirectory interface {
	IsParticipant(ctx context.Context, userID, conversationID string) (bool, error)
}

// Store is a backend that serves both roles.
type Store interface {
	MessageStore
	ParticipantDirectory
	AddParticipants(ctx context.Context, conversationID string, userIDs ...string) error
	Close(ctx context.Context) error
}
