package lifecycle

import (
	"context"
	"fmt"
	"strings"

	pkglog "github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/store"
)

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// SessionStore is the session registry.
type SessionStore interface {
	Register(userID, connectionID string) bool
	Deregister(userID, connectionID string) bool
	Owner(connectionID string) (string, bool)
}

// RoomStore is the write side of the room table.
type RoomStore interface {
	Join(connectionID, conversationID string)
	Leave(connectionID, conversationID string)
	LeaveAll(connectionID string) []string
}

// PresenceNotifier builds presence events.
type PresenceNotifier interface {
	OnUserRegistered(userID string) []domain.Outbound
	OnUserDeregistered(userID string) []domain.Outbound
}

// TypingForgetter drops per-connection typing state.
type TypingForgetter interface {
	Forget(connectionID string)
}

// CallCleaner tears down calls of a dropped connection.
type CallCleaner interface {
	HandleDisconnect(userID, connectionID string, stillOnline bool) []domain.Outbound
}

// Components wires the manager to the realtime core.
type Components struct {
	Verifier  TokenVerifier
	Sessions  SessionStore
	Rooms     RoomStore
	Directory store.ParticipantDirectory
	Presence  PresenceNotifier
	Typing    TypingForgetter
	Calls     CallCleaner
}

// JoinResult reports which conversations a join-chats request entered.
type JoinResult struct {
	Joined []string
	Denied []string
}

// Manager owns the order of operations for connect, join and disconnect.
type Manager struct {
	c Components
}

func NewManager(c Components) *Manager {
	return &Manager{c: c}
}

// ExtractToken picks the bearer token from the Authorization header, falling
// back to the token query parameter.
func ExtractToken(authorization, queryToken string) string {
	if token, ok := middleware.BearerToken(authorization); ok {
		return token
	}
	return strings.TrimSpace(queryToken)
}

// Authenticate verifies token. Every failure is reported as ErrAuth.
func (m *Manager) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: missing token", domain.ErrAuth)
	}

	userID, err := m.c.Verifier.Verify(ctx, token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrAuth, err)
	}
	if userID == "" {
		return "", fmt.Errorf("%w: token carries no user", domain.ErrAuth)
	}
	return userID, nil
}

// Connect registers an authenticated session and announces it.
func (m *Manager) Connect(session *domain.Session) []domain.Outbound {
	first := m.c.Sessions.Register(session.UserID, session.ConnectionID)

	l := pkglog.L()
	l.Info().
		Str(pkglog.FieldUserID, session.UserID).
		Str(pkglog.FieldConnectionID, session.ConnectionID).
		Bool("first_session", first).
		Msg("session registered")

	return m.c.Presence.OnUserRegistered(session.UserID)
}

// JoinChats subscribes the connection to every requested conversation the
// user takes part in. Directory failures deny the conversation. A conversation
// the user no longer takes part in is also left.
func (m *Manager) JoinChats(ctx context.Context, session *domain.Session, conversationIDs []string) (JoinResult, error) {
	result := JoinResult{Joined: []string{}, Denied: []string{}}
	if len(conversationIDs) == 0 {
		return result, fmt.Errorf("%w: no conversations given", domain.ErrValidation)
	}

	l := pkglog.Ctx(ctx)
	seen := make(map[string]bool, len(conversationIDs))
	for _, id := range conversationIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		ok, err := m.c.Directory.IsParticipant(ctx, session.UserID, id)
		if err != nil {
			l.Warn().Err(err).
				Str(pkglog.FieldUserID, session.UserID).
				Str(pkglog.FieldConversationID, id).
				Msg("participant lookup failed")
			result.Denied = append(result.Denied, id)
			continue
		}
		if !ok {
			m.c.Rooms.Leave(session.ConnectionID, id)
			result.Denied = append(result.Denied, id)
			continue
		}

		m.c.Rooms.Join(session.ConnectionID, id)
		result.Joined = append(result.Joined, id)
	}
	return result, nil
}

// Disconnect removes every trace of the connection. Calling it again for the
// same connection is a no-op.
func (m *Manager) Disconnect(session *domain.Session) []domain.Outbound {
	if owner, ok := m.c.Sessions.Owner(session.ConnectionID); !ok || owner != session.UserID {
		return nil
	}

	rooms := m.c.Rooms.LeaveAll(session.ConnectionID)
	last := m.c.Sessions.Deregister(session.UserID, session.ConnectionID)
	m.c.Typing.Forget(session.ConnectionID)
	// Only the deregistration that emptied the user's set reports offline,
	// however disconnects of the same user interleave.
	outs := m.c.Calls.HandleDisconnect(session.UserID, session.ConnectionID, !last)
	if last {
		outs = append(outs, m.c.Presence.OnUserDeregistered(session.UserID)...)
	}

	l := pkglog.L()
	l.Info().
		Str(pkglog.FieldUserID, session.UserID).
		Str(pkglog.FieldConnectionID, session.ConnectionID).
		Int("rooms_left", len(rooms)).
		Bool("last_session", last).
		Msg("session removed")

	return outs
}
