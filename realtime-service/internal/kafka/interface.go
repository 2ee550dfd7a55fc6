package kafka

import "context"

// CallEvent represents a call lifecycle change.
type CallEvent struct {
	Type       string `json:"type"` // "call_started" | "call_answered" | "call_ended"
	CallID     string `json:"call_id"`
	CallerID   string `json:"caller_id"`
	CalleeID   string `json:"callee_id"`
	CallType   string `json:"call_type"`
	Reason     string `json:"reason,omitempty"` // "hangup" | "rejected" | "disconnect" | "timeout"
	DurationMs int64  `json:"duration_ms,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// MessageEvent represents a persisted chat message.
type MessageEvent struct {
	Type           string `json:"type"` // "message_sent"
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	MessageType    string `json:"message_type"`
	Timestamp      int64  `json:"timestamp"`
}

// Event types
const (
	EventCallStarted  = "call_started"
	EventCallAnswered = "call_answered"
	EventCallEnded    = "call_ended"
	EventMessageSent  = "message_sent"
)

// EventProducer defines the interface for producing chat lifecycle events.
type EventProducer interface {
	ProduceCallEvent(ctx context.Context, event *CallEvent) error
	ProduceMessageEvent(ctx context.Context, event *MessageEvent) error
	Close() error
}
