package store

import (
	"context"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-chat/pkg/database"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/domain"
)

func newGormStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := database.New(&database.Config{Driver: "sqlite", FilePath: "file::memory:", LogLevel: "silent", MaxOpenConns: 1})
	require.NoError(t, err)

	s, err := NewGormStore(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func insert(t *testing.T, s *GormStore, conv, sender, content string) *domain.Message {
	t.Helper()
	msg, err := s.Insert(context.Background(), &domain.Message{
		ConversationID: conv,
		SenderID:       sender,
		Content:        content,
		Type:           domain.MessageTypeText,
		Status:         domain.StatusSent,
	})
	require.NoError(t, err)
	return msg
}

func statusOf(t *testing.T, s *GormStore, id string) domain.MessageStatus {
	t.Helper()
	var model MessageModel
	require.NoError(t, s.db.First(&model, "id = ?", id).Error)
	return domain.MessageStatus(model.Status)
}

func TestGormStore_InsertAndFindLast(t *testing.T) {
	s := newGormStore(t)
	ctx := context.Background()

	_, err := s.FindLast(ctx, "c1")
	assert.ErrorIs(t, err, ErrMessageNotFound)

	first := insert(t, s, "c1", "alice", "hi")
	_, err = ulid.ParseStrict(first.ID)
	assert.NoError(t, err)
	assert.Equal(t, domain.StatusSent, first.Status)
	assert.False(t, first.CreatedAt.IsZero())

	second := insert(t, s, "c1", "bob", "hello")
	insert(t, s, "c2", "carol", "elsewhere")

	last, err := s.FindLast(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, last.ID)
	assert.Equal(t, "hello", last.Content)
}

func TestGormStore_UpdateStatusIsGuarded(t *testing.T) {
	s := newGormStore(t)
	ctx := context.Background()

	fromAlice := insert(t, s, "c1", "alice", "one")
	fromBob := insert(t, s, "c1", "bob", "two")
	otherRoom := insert(t, s, "c2", "alice", "three")
	ids := []string{fromAlice.ID, fromBob.ID, otherRoom.ID}

	// bob marks everything seen in c1: his own message and c2 are untouched
	changed, err := s.UpdateStatus(ctx, domain.StatusUpdate{
		MessageIDs:     ids,
		ConversationID: "c1",
		NotSentBy:      "bob",
		From:           domain.StatusSeen.Predecessors(),
		To:             domain.StatusSeen,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, changed)
	assert.Equal(t, domain.StatusSeen, statusOf(t, s, fromAlice.ID))
	assert.Equal(t, domain.StatusSent, statusOf(t, s, fromBob.ID))
	assert.Equal(t, domain.StatusSent, statusOf(t, s, otherRoom.ID))

	// a late delivered receipt never moves seen backwards
	changed, err = s.UpdateStatus(ctx, domain.StatusUpdate{
		MessageIDs: ids,
		NotSentBy:  "bob",
		From:       domain.StatusDelivered.Predecessors(),
		To:         domain.StatusDelivered,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, changed)
	assert.Equal(t, domain.StatusSeen, statusOf(t, s, fromAlice.ID))
	assert.Equal(t, domain.StatusDelivered, statusOf(t, s, otherRoom.ID))

	changed, err = s.UpdateStatus(ctx, domain.StatusUpdate{To: domain.StatusSeen})
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestGormStore_Participants(t *testing.T) {
	s := newGormStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddParticipants(ctx, "c1", "alice", "bob"))
	require.NoError(t, s.AddParticipants(ctx, "c1", "bob"))
	require.NoError(t, s.AddParticipants(ctx, "c1"))

	ok, err := s.IsParticipant(ctx, "alice", "c1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsParticipant(ctx, "carol", "c1")
	require.NoError(t, err)
	assert.False(t, ok)

	var count int64
	require.NoError(t, s.db.Model(&ParticipantModel{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}
