package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"
	FieldUpgraded  = "upgraded"

	// Actor (matches pkg/middleware/auth.go keys)
	FieldUserID = "user_id"

	// Realtime
	FieldConnectionID   = "connection_id"
	FieldConversationID = "conversation_id"
	FieldMessageID      = "message_id"
	FieldCallID         = "call_id"
	FieldEvent          = "event"
	FieldCommand        = "command"

	// Service
	FieldService = "service"

	// Log type (for audit log)
	FieldLogType = "log_type"
	LogTypeAudit = "audit"
)
