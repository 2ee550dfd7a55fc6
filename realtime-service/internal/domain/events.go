package domain

import "encoding/json"

// Events pushed to connections.
const (
	EventUserOnline       = "user-online"
	EventUserOffline      = "user-offline"
	EventUserTyping       = "user-typing"
	EventNewMessage       = "new-message"
	EventMessageSent      = "message:sent"
	EventMessageSeen      = "message:seen"
	EventChatsJoined      = "chats-joined"
	EventCallIncoming     = "call:incoming"
	EventCallInitiated    = "call:initiated"
	EventCallUnavailable  = "call:unavailable"
	EventCallAnswered     = "call:answered"
	EventCallICECandidate = "call:ice-candidate"
	EventCallRejected     = "call:rejected"
	EventCallEnded        = "call:ended"
	EventError            = "error"
	EventPong             = "pong"
)

// Event is the wire envelope in both directions.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Outbound is an event addressed to a concrete set of connections.
type Outbound struct {
	ConnectionIDs []string
	Event         Event
}

// To builds an Outbound for the given connections. It returns nil when there
// is nobody to deliver to so callers can append unconditionally.
func To(connectionIDs []string, eventType string, data interface{}) []Outbound {
	if len(connectionIDs) == 0 {
		return nil
	}
	return []Outbound{{
		ConnectionIDs: connectionIDs,
		Event:         Event{Type: eventType, Data: data},
	}}
}

// Reply builds an Outbound for a single connection.
func Reply(connectionID, eventType string, data interface{}) []Outbound {
	return To([]string{connectionID}, eventType, data)
}

// ErrorReply builds an error event for a single connection.
func ErrorReply(connectionID string, err error) []Outbound {
	return Reply(connectionID, EventError, ErrorPayload{
		Code:    ErrorCode(err),
		Message: err.Error(),
	})
}

// PresencePayload is carried by user-online and user-offline.
type PresencePayload struct {
	UserID        string   `json:"userId"`
	OnlineUserIDs []string `json:"onlineUserIds"`
}

// TypingPayload is carried by user-typing.
type TypingPayload struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

// SeenPayload is carried by message:seen.
type SeenPayload struct {
	MessageIDs []string `json:"messageIds"`
	ReadBy     string   `json:"readBy"`
}

// JoinedPayload acknowledges join-chats.
type JoinedPayload struct {
	Joined []string `json:"joined"`
	Denied []string `json:"denied"`
}

// CallIncomingPayload is carried by call:incoming.
type CallIncomingPayload struct {
	From     string          `json:"from"`
	Offer    json.RawMessage `json:"offer"`
	CallType CallType        `json:"callType"`
	CallID   string          `json:"callId"`
}

// CallInitiatedPayload acknowledges call:initiate to the caller.
type CallInitiatedPayload struct {
	CallID   string   `json:"callId"`
	To       string   `json:"to"`
	CallType CallType `json:"callType"`
}

// CallUnavailablePayload tells the caller the callee cannot be reached.
type CallUnavailablePayload struct {
	To     string `json:"to"`
	Reason string `json:"reason"`
}

// CallAnsweredPayload is carried by call:answered.
type CallAnsweredPayload struct {
	From   string          `json:"from"`
	Answer json.RawMessage `json:"answer"`
	CallID string          `json:"callId"`
}

// ICECandidatePayload is carried by call:ice-candidate.
type ICECandidatePayload struct {
	From      string          `json:"from"`
	Candidate json.RawMessage `json:"candidate"`
}

// CallClosedPayload is carried by call:rejected and call:ended.
type CallClosedPayload struct {
	From   string `json:"from"`
	CallID string `json:"callId"`
	Reason string `json:"reason,omitempty"`
}

// ErrorPayload is carried by error.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
