package domain

import "time"

// Session is one live, authenticated connection.
type Session struct {
	ConnectionID string
	UserID       string
	ConnectedAt  time.Time
}

// NewSession creates a session for an authenticated user.
func NewSession(connectionID, userID string) *Session {
	return &Session{
		ConnectionID: connectionID,
		UserID:       userID,
		ConnectedAt:  time.Now(),
	}
}
