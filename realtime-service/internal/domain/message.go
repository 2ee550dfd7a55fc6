package domain

import "time"

// MessageType is the kind of content a message carries.
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeVideo    MessageType = "video"
	MessageTypeDocument MessageType = "document"
	MessageTypeVoice    MessageType = "voice"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeDocument, MessageTypeVoice:
		return true
	}
	return false
}

// MessageStatus is the delivery status of a message. It only moves forward:
// sent -> delivered -> seen.
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusSeen      MessageStatus = "seen"
)

func (s MessageStatus) rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusSeen:
		return 3
	}
	return 0
}

var statusOrder = []MessageStatus{StatusSent, StatusDelivered, StatusSeen}

// Predecessors returns the statuses a message may move to s from.
func (s MessageStatus) Predecessors() []MessageStatus {
	var out []MessageStatus
	for _, from := range statusOrder {
		if from.CanAdvanceTo(s) {
			out = append(out, from)
		}
	}
	return out
}

// CanAdvanceTo reports whether moving from s to next is a forward transition.
func (s MessageStatus) CanAdvanceTo(next MessageStatus) bool {
	return next.rank() > s.rank() && s.rank() > 0
}

// Message is a persisted chat message.
type Message struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversationId"`
	SenderID       string        `json:"senderId"`
	Content        string        `json:"content"`
	Type           MessageType   `json:"type"`
	Status         MessageStatus `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// StatusUpdate describes a guarded bulk status transition. Only messages whose
// id is in MessageIDs, whose sender is not NotSentBy and whose current status is
// in From are moved to To. ConversationID further scopes the update when set.
type StatusUpdate struct {
	MessageIDs     []string
	ConversationID string
	NotSentBy      string
	From           []MessageStatus
	To             MessageStatus
}

// StatusStrings returns From as plain strings for store queries.
func (u StatusUpdate) StatusStrings() []string {
	out := make([]string, len(u.From))
	for i, s := range u.From {
		out[i] = string(s)
	}
	return out
}
