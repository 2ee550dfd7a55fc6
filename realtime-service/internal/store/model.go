package store

import (
	"time"

	"github.com/weiawesome/wes-io-chat/realtime-service/internal/domain"
)

// MessageModel is the GORM model for messages table.
type MessageModel struct {
	ID             string    `gorm:"type:varchar(26);primaryKey"`
	ConversationID string    `gorm:"type:varchar(64);index:idx_messages_conversation_created,priority:1;not null"`
	SenderID       string    `gorm:"type:varchar(64);index;not null"`
	Content        string    `gorm:"type:text"`
	Type           string    `gorm:"type:varchar(20);not null;default:'text'"`
	Status         string    `gorm:"type:varchar(20);index;not null;default:'sent'"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index:idx_messages_conversation_created,priority:2"`
}

// TableName specifies the table name for MessageModel.
func (MessageModel) TableName() string {
	return "messages"
}

// ToDomain converts MessageModel to domain Message.
func (m *MessageModel) ToDomain() *domain.Message {
	return &domain.Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Content:        m.Content,
		Type:           domain.MessageType(m.Type),
		Status:         domain.MessageStatus(m.Status),
		CreatedAt:      m.CreatedAt,
	}
}

// MessageToModel converts domain Message to MessageModel.
func MessageToModel(msg *domain.Message) *MessageModel {
	return &MessageModel{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		Type:           string(msg.Type),
		Status:         string(msg.Status),
		CreatedAt:      msg.CreatedAt,
	}
}

// ParticipantModel is the GORM model for conversation_participants table.
type ParticipantModel struct {
	ConversationID string    `gorm:"type:varchar(64);primaryKey"`
	UserID         string    `gorm:"type:varchar(64);primaryKey;index"`
	JoinedAt       time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for ParticipantModel.
func (ParticipantModel) TableName() string {
	return "conversation_participants"
}
