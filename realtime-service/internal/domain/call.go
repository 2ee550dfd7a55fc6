package domain

import (
	"fmt"
	"time"
)

// CallType is voice or video.
type CallType string

const (
	CallTypeVoice CallType = "voice"
	CallTypeVideo CallType = "video"
)

func (t CallType) Valid() bool {
	return t == CallTypeVoice || t == CallTypeVideo
}

// CallState is the state of a tracked call.
type CallState string

const (
	CallStateInitiated CallState = "initiated"
	CallStateRinging   CallState = "ringing"
	CallStateAnswered  CallState = "answered"
	CallStateEnded     CallState = "ended"
)

// Reasons a call ended.
const (
	EndReasonHangup     = "hangup"
	EndReasonRejected   = "rejected"
	EndReasonDisconnect = "disconnect"
	EndReasonTimeout    = "timeout"

	// Sent to the callee's other devices once one of them answers.
	EndReasonAnsweredElsewhere = "answered-elsewhere"
)

// CallSession is a call tracked by the signaling coordinator.
type CallSession struct {
	ID         string
	CallerID   string
	CalleeID   string
	Type       CallType
	State      CallState
	CreatedAt  time.Time
	AnsweredAt time.Time

	// Connections the call is bound to. CalleeConn is empty until answered.
	CallerConn string
	CalleeConn string
}

// NewCallID derives a call id from both parties and the creation time.
func NewCallID(callerID, calleeID string, at time.Time) string {
	return fmt.Sprintf("%s-%s-%d", callerID, calleeID, at.UnixNano())
}

// Involves reports whether userID is the caller or the callee.
func (c *CallSession) Involves(userID string) bool {
	return c.CallerID == userID || c.CalleeID == userID
}

// Peer returns the other party of the call.
func (c *CallSession) Peer(userID string) string {
	if c.CallerID == userID {
		return c.CalleeID
	}
	return c.CallerID
}

// PinnedConn returns the connection the call is bound to for userID.
func (c *CallSession) PinnedConn(userID string) string {
	if c.CallerID == userID {
		return c.CallerConn
	}
	return c.CalleeConn
}

// Duration is the talk time of an answered call up to end.
func (c *CallSession) Duration(end time.Time) time.Duration {
	if c.AnsweredAt.IsZero() {
		return 0
	}
	return end.Sub(c.AnsweredAt)
}
