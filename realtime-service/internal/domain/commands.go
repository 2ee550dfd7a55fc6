package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	gojson "github.com/goccy/go-json"
)

// Commands accepted from a connection.
const (
	CmdJoinChats        = "join-chats"
	CmdTyping           = "typing"
	CmdMessageSend      = "message:send"
	CmdMessageRead      = "message:read"
	CmdMessageDelivered = "message:delivered"
	CmdCallInitiate     = "call:initiate"
	CmdCallAnswer       = "call:answer"
	CmdCallICECandidate = "call:ice-candidate"
	CmdCallReject       = "call:reject"
	CmdCallEnd          = "call:end"
	CmdPing             = "ping"
)

// Command is one inbound action. The concrete types below are the only
// implementations; dispatch with a type switch.
type Command interface {
	Name() string
}

type JoinChats struct {
	ConversationIDs []string `json:"conversationIds"`
}

type SetTyping struct {
	ConversationID string `json:"conversationId"`
	IsTyping       bool   `json:"isTyping"`
}

type SendMessage struct {
	ConversationID string      `json:"conversationId"`
	Content        string      `json:"content"`
	Type           MessageType `json:"type"`
}

type MarkRead struct {
	MessageIDs     []string `json:"messageIds"`
	ConversationID string   `json:"conversationId"`
}

type MarkDelivered struct {
	MessageIDs []string `json:"messageIds"`
}

type InitiateCall struct {
	To       string          `json:"to"`
	Offer    json.RawMessage `json:"offer"`
	CallType CallType        `json:"callType"`
}

type AnswerCall struct {
	To     string          `json:"to"`
	Answer json.RawMessage `json:"answer"`
	CallID string          `json:"callId"`
}

type ICECandidate struct {
	To        string          `json:"to"`
	Candidate json.RawMessage `json:"candidate"`
}

type RejectCall struct {
	To     string `json:"to"`
	CallID string `json:"callId"`
}

type EndCall struct {
	To     string `json:"to"`
	CallID string `json:"callId"`
}

type Ping struct{}

func (JoinChats) Name() string     { return CmdJoinChats }
func (SetTyping) Name() string     { return CmdTyping }
func (SendMessage) Name() string   { return CmdMessageSend }
func (MarkRead) Name() string      { return CmdMessageRead }
func (MarkDelivered) Name() string { return CmdMessageDelivered }
func (InitiateCall) Name() string  { return CmdCallInitiate }
func (AnswerCall) Name() string    { return CmdCallAnswer }
func (ICECandidate) Name() string  { return CmdCallICECandidate }
func (RejectCall) Name() string    { return CmdCallReject }
func (EndCall) Name() string       { return CmdCallEnd }
func (Ping) Name() string          { return CmdPing }

type inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ParseCommand decodes a wire envelope into a Command.
func ParseCommand(raw []byte) (Command, error) {
	var in inbound
	if err := gojson.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("%w: invalid message format", ErrValidation)
	}

	var cmd Command
	switch in.Type {
	case CmdJoinChats:
		var c JoinChats
		// The list may be sent bare or wrapped in an object.
		if bytes.HasPrefix(bytes.TrimSpace(in.Data), []byte("[")) {
			if err := gojson.Unmarshal(in.Data, &c.ConversationIDs); err != nil {
				return nil, invalid(in.Type)
			}
			return c, nil
		}
		cmd = &c
	case CmdTyping:
		cmd = &SetTyping{}
	case CmdMessageSend:
		cmd = &SendMessage{}
	case CmdMessageRead:
		cmd = &MarkRead{}
	case CmdMessageDelivered:
		cmd = &MarkDelivered{}
	case CmdCallInitiate:
		cmd = &InitiateCall{}
	case CmdCallAnswer:
		cmd = &AnswerCall{}
	case CmdCallICECandidate:
		cmd = &ICECandidate{}
	case CmdCallReject:
		cmd = &RejectCall{}
	case CmdCallEnd:
		cmd = &EndCall{}
	case CmdPing:
		return Ping{}, nil
	case "":
		return nil, fmt.Errorf("%w: missing message type", ErrValidation)
	default:
		return nil, fmt.Errorf("%w: unknown message type %q", ErrValidation, in.Type)
	}

	if len(in.Data) == 0 {
		return nil, fmt.Errorf("%w: %s requires data", ErrValidation, in.Type)
	}
	if err := gojson.Unmarshal(in.Data, cmd); err != nil {
		return nil, invalid(in.Type)
	}
	return deref(cmd), nil
}

func invalid(msgType string) error {
	return fmt.Errorf("%w: invalid %s payload", ErrValidation, msgType)
}

func deref(cmd Command) Command {
	switch c := cmd.(type) {
	case *JoinChats:
		return *c
	case *SetTyping:
		return *c
	case *SendMessage:
		return *c
	case *MarkRead:
		return *c
	case *MarkDelivered:
		return *c
	case *InitiateCall:
		return *c
	case *AnswerCall:
		return *c
	case *ICECandidate:
		return *c
	case *RejectCall:
		return *c
	case *EndCall:
		return *c
	}
	return cmd
}
