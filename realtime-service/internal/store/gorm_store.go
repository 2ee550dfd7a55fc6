package store

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/weiawesome/wes-io-chat/pkg/database"
	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/domain"
)

// GormStore implements Store on a relational database using GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a GORM-backed store and migrates its tables.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := database.AutoMigrate(db, &MessageModel{}, &ParticipantModel{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// Insert assigns a ULID and creation time and persists the message.
func (s *GormStore) Insert(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	l := log.Ctx(ctx)

	model := MessageToModel(msg)
	model.ID = ulid.Make().String()
	model.CreatedAt = time.Now().UTC()
	if model.Status == "" {
		model.Status = string(domain.StatusSent)
	}

	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		l.Error().Err(err).Str(log.FieldConversationID, msg.ConversationID).Msg("failed to insert message")
		return nil, err
	}
	return model.ToDomain(), nil
}

// UpdateStatus applies a guarded bulk transition in a single UPDATE.
func (s *GormStore) UpdateStatus(ctx context.Context, update domain.StatusUpdate) (int64, error) {
	if len(update.MessageIDs) == 0 || len(update.From) == 0 {
		return 0, nil
	}

	query := s.db.WithContext(ctx).Model(&MessageModel{}).
		Where("id IN ?", update.MessageIDs).
		Where("status IN ?", update.StatusStrings())
	if update.NotSentBy != "" {
		query = query.Where("sender_id <> ?", update.NotSentBy)
	}
	if update.ConversationID != "" {
		query = query.Where("conversation_id = ?", update.ConversationID)
	}

	result := query.Update("status", string(update.To))
	if result.Error != nil {
		l := log.Ctx(ctx)
		l.Error().Err(result.Error).Str("status", string(update.To)).Msg("failed to update message status")
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// FindLast returns the newest message of a conversation.
func (s *GormStore) FindLast(ctx context.Context, conversationID string) (*domain.Message, error) {
	var model MessageModel
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Order("id DESC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// IsParticipant reports whether userID belongs to the conversation.
func (s *GormStore) IsParticipant(ctx context.Context, userID, conversationID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&ParticipantModel{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// AddParticipants adds users to a conversation. Existing members are kept.
func (s *GormStore) AddParticipants(ctx context.Context, conversationID string, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}

	models := make([]ParticipantModel, len(userIDs))
	for i, id := range userIDs {
		models[i] = ParticipantModel{ConversationID: conversationID, UserID: id}
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models).Error
}

// Close closes the underlying connection pool.
func (s *GormStore) Close(ctx context.Context) error {
	return database.Close(s.db)
}
