package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/domain"
)

const (
	messagesCollection = "messages"
	chatsCollection    = "chats"
)

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type messageDocument struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	ConversationID string             `bson:"conversationId"`
	SenderID       string             `bson:"senderId"`
	Content        string             `bson:"content"`
	Type           string             `bson:"type"`
	Status         string             `bson:"status"`
	CreatedAt      time.Time          `bson:"createdAt"`
}

func (d *messageDocument) toDomain() *domain.Message {
	return &domain.Message{
		ID:             d.ID.Hex(),
		ConversationID: d.ConversationID,
		SenderID:       d.SenderID,
		Content:        d.Content,
		Type:           domain.MessageType(d.Type),
		Status:         domain.MessageStatus(d.Status),
		CreatedAt:      d.CreatedAt,
	}
}

// MongoStore implements Store on MongoDB. Conversations live in the chats
// collection with their participants as an array.
type MongoStore struct {
	client   *mongo.Client
	messages *mongo.Collection
	chats    *mongo.Collection
}

// NewMongoStore connects to MongoDB and ensures the message indexes.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(cfg.Database)
	s := &MongoStore{
		client:   client,
		messages: db.Collection(messagesCollection),
		chats:    db.Collection(chatsCollection),
	}

	_, err = s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversationId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		l := log.L()
		l.Warn().Err(err).Msg("failed to ensure message index")
	}
	return s, nil
}

func (s *MongoStore) Insert(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	doc := messageDocument{
		ID:             primitive.NewObjectID(),
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		Type:           string(msg.Type),
		Status:         string(msg.Status),
		CreatedAt:      time.Now().UTC().Truncate(time.Millisecond),
	}
	if doc.Status == "" {
		doc.Status = string(domain.StatusSent)
	}

	if _, err := s.messages.InsertOne(ctx, doc); err != nil {
		l := log.Ctx(ctx)
		l.Error().Err(err).Str(log.FieldConversationID, msg.ConversationID).Msg("failed to insert message")
		return nil, err
	}
	return doc.toDomain(), nil
}

// UpdateStatus applies a guarded bulk transition with a single UpdateMany.
func (s *MongoStore) UpdateStatus(ctx context.Context, update domain.StatusUpdate) (int64, error) {
	filter, ok := statusFilter(update)
	if !ok {
		return 0, nil
	}

	result, err := s.messages.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"status": string(update.To)}})
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// statusFilter builds the guard for a status transition. It reports false
// when no stored message can match.
func statusFilter(update domain.StatusUpdate) (bson.M, bool) {
	ids := make([]primitive.ObjectID, 0, len(update.MessageIDs))
	for _, raw := range update.MessageIDs {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 || len(update.From) == 0 {
		return nil, false
	}

	filter := bson.M{
		"_id":    bson.M{"$in": ids},
		"status": bson.M{"$in": update.StatusStrings()},
	}
	if update.NotSentBy != "" {
		filter["senderId"] = bson.M{"$ne": update.NotSentBy}
	}
	if update.ConversationID != "" {
		filter["conversationId"] = update.ConversationID
	}
	return filter, true
}

func (s *MongoStore) FindLast(ctx context.Context, conversationID string) (*domain.Message, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})

	var doc messageDocument
	err := s.messages.FindOne(ctx, bson.M{"conversationId": conversationID}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func (s *MongoStore) IsParticipant(ctx context.Context, userID, conversationID string) (bool, error) {
	n, err := s.chats.CountDocuments(ctx, bson.M{"_id": conversationID, "participants": userID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AddParticipants upserts the conversation and adds users to its set.
func (s *MongoStore) AddParticipants(ctx context.Context, conversationID string, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := s.chats.UpdateOne(ctx,
		bson.M{"_id": conversationID},
		bson.M{"$addToSet": bson.M{"participants": bson.M{"$each": userIDs}}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
