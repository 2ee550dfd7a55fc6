package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	pkglog "github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/audit"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/lifecycle"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/messaging"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/presence"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/registry"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/signaling"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/typing"
)

// Reasons carried by call:unavailable.
const (
	UnavailableOffline = "offline"
	UnavailableBusy    = "busy"
)

// Dependencies are the realtime components the service orchestrates.
type Dependencies struct {
	Deliverer Deliverer
	Sessions  *registry.Registry
	Lifecycle *lifecycle.Manager
	Presence  *presence.Broadcaster
	Messaging *messaging.Engine
	Typing    *typing.Relay
	Calls     *signaling.Coordinator
	Recorder  Recorder
}

type realtimeService struct {
	deps          Dependencies
	sweepInterval time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRealtimeService creates a new RealtimeService instance. A zero
// sweepInterval disables the ring timeout sweeper.
func NewRealtimeService(deps Dependencies, sweepInterval time.Duration) RealtimeService {
	return &realtimeService{
		deps:          deps,
		sweepInterval: sweepInterval,
	}
}

func (s *realtimeService) Authenticate(ctx context.Context, token string) (string, error) {
	userID, err := s.deps.Lifecycle.Authenticate(ctx, token)
	if err != nil {
		if s.deps.Recorder != nil {
			s.deps.Recorder.AuthFailed()
		}
		audit.Log(ctx, audit.ActionAuthFailed, "", "websocket authentication failed")
		return "", err
	}
	return userID, nil
}

func (s *realtimeService) HandleConnect(ctx context.Context, session *domain.Session) {
	ctx = pkglog.WithConnection(ctx, session.ConnectionID, session.UserID)

	s.deps.Deliverer.Deliver(s.deps.Lifecycle.Connect(session))
	s.recordOnline()
	audit.Log(ctx, audit.ActionConnect, session.UserID, "connection established")
}

func (s *realtimeService) HandleDisconnect(ctx context.Context, session *domain.Session) {
	ctx = pkglog.WithConnection(ctx, session.ConnectionID, session.UserID)

	outs := s.deps.Lifecycle.Disconnect(session)
	s.deps.Deliverer.Deliver(outs)
	s.recordOnline()
	audit.Log(ctx, audit.ActionDisconnect, session.UserID, "connection closed")
}

func (s *realtimeService) HandleCommand(ctx context.Context, session *domain.Session, raw []byte) {
	ctx = pkglog.WithConnection(ctx, session.ConnectionID, session.UserID)
	l := pkglog.Ctx(ctx)

	cmd, err := domain.ParseCommand(raw)
	if err != nil {
		l.Debug().Err(err).Msg("rejected inbound frame")
		s.deps.Deliverer.Deliver(domain.ErrorReply(session.ConnectionID, err))
		return
	}

	outs, err := s.dispatch(ctx, session, cmd)
	if err != nil {
		evt := l.Warn()
		if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrForbidden) || errors.Is(err, domain.ErrCallNotFound) {
			evt = l.Debug()
		}
		evt.Err(err).Str(pkglog.FieldCommand, cmd.Name()).Msg("command failed")
		outs = append(outs, domain.ErrorReply(session.ConnectionID, err)...)
	}
	s.deps.Deliverer.Deliver(outs)
}

func (s *realtimeService) dispatch(ctx context.Context, session *domain.Session, cmd domain.Command) ([]domain.Outbound, error) {
	conn, user := session.ConnectionID, session.UserID

	switch c := cmd.(type) {
	case domain.JoinChats:
		result, err := s.deps.Lifecycle.JoinChats(ctx, session, c.ConversationIDs)
		if err != nil {
			return nil, err
		}
		audit.Log(ctx, audit.ActionJoinChats, user, fmt.Sprintf("joined %d conversations, denied %d", len(result.Joined), len(result.Denied)))
		return domain.Reply(conn, domain.EventChatsJoined, domain.JoinedPayload{
			Joined: result.Joined,
			Denied: result.Denied,
		}), nil

	case domain.SetTyping:
		return s.deps.Typing.SetTyping(conn, c.ConversationID, user, c.IsTyping), nil

	case domain.SendMessage:
		msg, outs, err := s.deps.Messaging.Send(ctx, messaging.SendRequest{
			ConversationID:   c.ConversationID,
			SenderID:         user,
			Content:          c.Content,
			Type:             c.Type,
			OriginConnection: conn,
		})
		if err != nil {
			return nil, err
		}
		audit.LogTarget(ctx, audit.ActionSendMessage, user, msg.ConversationID, msg.ID, "message sent")
		return append(outs, domain.Reply(conn, domain.EventMessageSent, msg)...), nil

	case domain.MarkRead:
		return s.deps.Messaging.MarkSeen(ctx, conn, user, c.ConversationID, c.MessageIDs), nil

	case domain.MarkDelivered:
		s.deps.Messaging.MarkDelivered(ctx, user, c.MessageIDs)
		return nil, nil

	case domain.InitiateCall:
		return s.initiateCall(ctx, session, c)

	case domain.AnswerCall:
		return s.deps.Calls.Answer(user, conn, c.To, c.Answer, c.CallID)

	case domain.ICECandidate:
		outs, err := s.deps.Calls.RelayICECandidate(user, c.To, c.Candidate)
		if errors.Is(err, domain.ErrTargetOffline) {
			l := pkglog.Ctx(ctx)
			l.Debug().Str("to", c.To).Msg("ice candidate for offline user dropped")
			return nil, nil
		}
		return outs, err

	case domain.RejectCall:
		return s.deps.Calls.Reject(user, conn, c.To, c.CallID)

	case domain.EndCall:
		outs, err := s.deps.Calls.End(user, conn, c.To, c.CallID)
		if errors.Is(err, domain.ErrCallNotFound) {
			return nil, nil
		}
		return outs, err

	case domain.Ping:
		return domain.Reply(conn, domain.EventPong, nil), nil

	default:
		return nil, fmt.Errorf("%w: unsupported command %s", domain.ErrValidation, cmd.Name())
	}
}

func (s *realtimeService) initiateCall(ctx context.Context, session *domain.Session, c domain.InitiateCall) ([]domain.Outbound, error) {
	call, outs, err := s.deps.Calls.Initiate(session.UserID, session.ConnectionID, c.To, c.Offer, c.CallType)

	reason := ""
	switch {
	case errors.Is(err, domain.ErrTargetOffline):
		reason = UnavailableOffline
	case errors.Is(err, domain.ErrBusy):
		reason = UnavailableBusy
	case err != nil:
		return nil, err
	}
	if reason != "" {
		if s.deps.Recorder != nil {
			s.deps.Recorder.CallUnavailable(reason)
		}
		audit.LogTarget(ctx, audit.ActionCall, session.UserID, c.To, reason, "call target unavailable")
		return domain.Reply(session.ConnectionID, domain.EventCallUnavailable, domain.CallUnavailablePayload{
			To:     c.To,
			Reason: reason,
		}), nil
	}

	audit.LogTarget(ctx, audit.ActionCall, session.UserID, c.To, call.ID, "call initiated")
	return append(outs, domain.Reply(session.ConnectionID, domain.EventCallInitiated, domain.CallInitiatedPayload{
		CallID:   call.ID,
		To:       c.To,
		CallType: call.Type,
	})...), nil
}

func (s *realtimeService) SendMessage(ctx context.Context, userID, conversationID, content string, msgType domain.MessageType) (*domain.Message, error) {
	msg, outs, err := s.deps.Messaging.Send(ctx, messaging.SendRequest{
		ConversationID: conversationID,
		SenderID:       userID,
		Content:        content,
		Type:           msgType,
	})
	if err != nil {
		return nil, err
	}
	s.deps.Deliverer.Deliver(outs)
	audit.LogTarget(ctx, audit.ActionSendMessage, userID, msg.ConversationID, msg.ID, "message sent over http")
	return msg, nil
}

func (s *realtimeService) LastMessage(ctx context.Context, userID, conversationID string) (*domain.Message, error) {
	return s.deps.Messaging.LastMessage(ctx, userID, conversationID)
}

func (s *realtimeService) OnlineUserIDs() []string {
	return s.deps.Presence.Snapshot()
}

func (s *realtimeService) IsOnline(userID string) bool {
	return s.deps.Sessions.IsOnline(userID)
}

func (s *realtimeService) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	if s.sweepInterval <= 0 {
		return nil
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sweepLoop(ctx)
	}()
	return nil
}

func (s *realtimeService) Stop() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return nil
}

func (s *realtimeService) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if outs := s.deps.Calls.Sweep(now); len(outs) > 0 {
				l := pkglog.L()
				l.Info().Int("events", len(outs)).Msg("ring timeout expired calls")
				s.deps.Deliverer.Deliver(outs)
			}
		}
	}
}

func (s *realtimeService) recordOnline() {
	if s.deps.Recorder == nil {
		return
	}
	users, _ := s.deps.Sessions.Stats()
	s.deps.Recorder.OnlineUsers(users)
}
