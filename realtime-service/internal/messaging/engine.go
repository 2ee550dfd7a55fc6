package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	pkglog "github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/store"
)

// RoomReader is the read side of the room table.
type RoomReader interface {
	Members(conversationID string) []string
	IsMember(connectionID, conversationID string) bool
}

// Recorder observes engine outcomes.
type Recorder interface {
	MessageSent(result string)
	StatusUpdated(status domain.MessageStatus, result string, changed int64)
	StoreLatency(op string, d time.Duration)
}

// Observer is told about every persisted message.
type Observer interface {
	MessageSent(ctx context.Context, msg *domain.Message)
}

// Results reported to the Recorder.
const (
	ResultOK        = "ok"
	ResultInvalid   = "invalid"
	ResultForbidden = "forbidden"
	ResultError     = "error"
	ResultTimeout   = "timeout"
	ResultSkipped   = "skipped"
)

// Config tunes the engine.
type Config struct {
	StoreTimeout       time.Duration
	RequireParticipant bool
	MaxContentLength   int
}

// SendRequest is a message to persist and fan out. SenderID always comes
// from the authenticated session.
type SendRequest struct {
	ConversationID string
	SenderID       string
	Content        string
	Type           domain.MessageType

	// OriginConnection is acknowledged with message:sent by the caller and
	// left out of the new-message push.
	OriginConnection string
}

// Engine persists messages, pushes them to conversation rooms and applies
// delivered/seen transitions.
type Engine struct {
	store     store.MessageStore
	directory store.ParticipantDirectory
	rooms     RoomReader
	cfg       Config
	recorder  Recorder
	observer  Observer
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithObserver sets the persisted-message observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observer = o }
}

// NewEngine creates a messaging engine. directory may be nil when
// participancy is not enforced.
func NewEngine(ms store.MessageStore, directory store.ParticipantDirectory, rooms RoomReader, cfg Config, opts ...Option) *Engine {
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	e := &Engine{
		store:     ms,
		directory: directory,
		rooms:     rooms,
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Send validates and persists a message, then addresses new-message to every
// connection joined to the conversation, the sender's other devices included.
// Nothing is pushed unless persistence succeeded.
func (e *Engine) Send(ctx context.Context, req SendRequest) (*domain.Message, []domain.Outbound, error) {
	l := pkglog.Ctx(ctx)

	if err := e.validate(&req); err != nil {
		e.recordSend(ResultInvalid)
		return nil, nil, err
	}

	if err := e.checkParticipant(ctx, req.SenderID, req.ConversationID); err != nil {
		if errors.Is(err, domain.ErrForbidden) {
			e.recordSend(ResultForbidden)
		} else {
			e.recordSend(resultOf(err))
		}
		return nil, nil, err
	}

	msg := &domain.Message{
		ConversationID: req.ConversationID,
		SenderID:       req.SenderID,
		Content:        req.Content,
		Type:           req.Type,
		Status:         domain.StatusSent,
	}

	var saved *domain.Message
	err := e.withTimeout(ctx, "insert", func(ctx context.Context) error {
		var err error
		saved, err = e.store.Insert(ctx, msg)
		return err
	})
	if err != nil {
		e.recordSend(resultOf(err))
		l.Error().Err(err).
			Str(pkglog.FieldConversationID, req.ConversationID).
			Msg("failed to persist message")
		return nil, nil, err
	}

	e.recordSend(ResultOK)
	l.Debug().
		Str(pkglog.FieldConversationID, saved.ConversationID).
		Str(pkglog.FieldMessageID, saved.ID).
		Msg("message persisted")

	if e.observer != nil {
		e.observer.MessageSent(ctx, saved)
	}

	var targets []string
	for _, id := range e.rooms.Members(saved.ConversationID) {
		if id != req.OriginConnection {
			targets = append(targets, id)
		}
	}
	return saved, domain.To(targets, domain.EventNewMessage, saved), nil
}

// MarkDelivered moves messages not sent by viewerID from sent to delivered.
// Nothing is broadcast. Failures are logged and swallowed.
func (e *Engine) MarkDelivered(ctx context.Context, viewerID string, messageIDs []string) int64 {
	if len(messageIDs) == 0 {
		return 0
	}

	changed, err := e.updateStatus(ctx, domain.StatusUpdate{
		MessageIDs: messageIDs,
		NotSentBy:  viewerID,
		From:       domain.StatusDelivered.Predecessors(),
		To:         domain.StatusDelivered,
	})
	if err != nil {
		l := pkglog.Ctx(ctx)
		l.Warn().Err(err).Int("count", len(messageIDs)).Msg("failed to mark messages delivered")
		return 0
	}
	return changed
}

// MarkSeen moves messages not sent by viewerID to seen, then addresses
// message:seen to the whole room, the viewer included. The viewer's
// connection must have joined the room. A failed update produces no event.
// An update that changes nothing, as for a later reader of a group message,
// still broadcasts.
func (e *Engine) MarkSeen(ctx context.Context, connectionID, viewerID, conversationID string, messageIDs []string) []domain.Outbound {
	l := pkglog.Ctx(ctx).With().Str(pkglog.FieldConversationID, conversationID).Logger()

	if len(messageIDs) == 0 || conversationID == "" {
		return nil
	}
	if !e.rooms.IsMember(connectionID, conversationID) {
		l.Debug().Msg("read receipt for a room the connection has not joined")
		e.recordStatus(domain.StatusSeen, ResultForbidden, 0)
		return nil
	}

	_, err := e.updateStatus(ctx, domain.StatusUpdate{
		MessageIDs:     messageIDs,
		ConversationID: conversationID,
		NotSentBy:      viewerID,
		From:           domain.StatusSeen.Predecessors(),
		To:             domain.StatusSeen,
	})
	if err != nil {
		l.Warn().Err(err).Int("count", len(messageIDs)).Msg("failed to mark messages seen")
		return nil
	}

	return domain.To(e.rooms.Members(conversationID), domain.EventMessageSeen, domain.SeenPayload{
		MessageIDs: messageIDs,
		ReadBy:     viewerID,
	})
}

// LastMessage returns the newest message of a conversation the viewer takes part in.
func (e *Engine) LastMessage(ctx context.Context, viewerID, conversationID string) (*domain.Message, error) {
	if conversationID == "" {
		return nil, fmt.Errorf("%w: conversationId is required", domain.ErrValidation)
	}
	if err := e.checkParticipant(ctx, viewerID, conversationID); err != nil {
		return nil, err
	}

	var msg *domain.Message
	err := e.withTimeout(ctx, "find_last", func(ctx context.Context) error {
		var err error
		msg, err = e.store.FindLast(ctx, conversationID)
		if errors.Is(err, store.ErrMessageNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, store.ErrMessageNotFound
	}
	return msg, nil
}

func (e *Engine) validate(req *SendRequest) error {
	if req.ConversationID == "" {
		return fmt.Errorf("%w: conversationId is required", domain.ErrValidation)
	}
	if req.SenderID == "" {
		return fmt.Errorf("%w: sender is required", domain.ErrValidation)
	}
	if req.Type == "" {
		req.Type = domain.MessageTypeText
	}
	if !req.Type.Valid() {
		return fmt.Errorf("%w: unknown message type %q", domain.ErrValidation, req.Type)
	}
	if req.Type == domain.MessageTypeText && strings.TrimSpace(req.Content) == "" {
		return fmt.Errorf("%w: content is required for text messages", domain.ErrValidation)
	}
	if e.cfg.MaxContentLength > 0 && len([]rune(req.Content)) > e.cfg.MaxContentLength {
		return fmt.Errorf("%w: content exceeds %d characters", domain.ErrValidation, e.cfg.MaxContentLength)
	}
	return nil
}

func (e *Engine) checkParticipant(ctx context.Context, userID, conversationID string) error {
	if !e.cfg.RequireParticipant || e.directory == nil {
		return nil
	}

	var ok bool
	err := e.withTimeout(ctx, "is_participant", func(ctx context.Context) error {
		var err error
		ok, err = e.directory.IsParticipant(ctx, userID, conversationID)
		return err
	})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: not a participant of %s", domain.ErrForbidden, conversationID)
	}
	return nil
}

func (e *Engine) updateStatus(ctx context.Context, update domain.StatusUpdate) (int64, error) {
	var changed int64
	err := e.withTimeout(ctx, "update_status", func(ctx context.Context) error {
		var err error
		changed, err = e.store.UpdateStatus(ctx, update)
		return err
	})
	if err != nil {
		e.recordStatus(update.To, resultOf(err), 0)
		return 0, err
	}
	result := ResultOK
	if changed == 0 {
		result = ResultSkipped
	}
	e.recordStatus(update.To, result, changed)
	return changed, nil
}

// withTimeout bounds a store call and classifies its failure as a timeout
// or a store error.
func (e *Engine) withTimeout(ctx context.Context, op string, fn func(context.Context) error) error {
	tctx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()

	start := time.Now()
	err := fn(tctx)
	if e.recorder != nil {
		e.recorder.StoreLatency(op, time.Since(start))
	}
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(tctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %s: %w", domain.ErrTimeout, op, e.cfg.StoreTimeout, err)
	}
	if errors.Is(err, domain.ErrStore) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStore, op, err)
}

func (e *Engine) recordSend(result string) {
	if e.recorder != nil {
		e.recorder.MessageSent(result)
	}
}

func (e *Engine) recordStatus(status domain.MessageStatus, result string, changed int64) {
	if e.recorder != nil {
		e.recorder.StatusUpdated(status, result, changed)
	}
}

func resultOf(err error) string {
	if errors.Is(err, domain.ErrTimeout) {
		return ResultTimeout
	}
	return ResultError
}
