package kafka

import (
	"context"
	"time"

	pkglog "github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/domain"
)

// Publisher turns call and message lifecycle callbacks into Kafka events.
// Produce failures are logged and never reach the caller.
type Publisher struct {
	producer EventProducer
	now      func() time.Time
}

func NewPublisher(producer EventProducer) *Publisher {
	return &Publisher{producer: producer, now: time.Now}
}

func (p *Publisher) CallStarted(call domain.CallSession) {
	p.produceCall(p.callEvent(EventCallStarted, call))
}

func (p *Publisher) CallAnswered(call domain.CallSession) {
	p.produceCall(p.callEvent(EventCallAnswered, call))
}

func (p *Publisher) CallEnded(call domain.CallSession, reason string) {
	event := p.callEvent(EventCallEnded, call)
	event.Reason = reason
	event.DurationMs = call.Duration(p.now()).Milliseconds()
	p.produceCall(event)
}

// MessageSent publishes a message_sent event.
func (p *Publisher) MessageSent(ctx context.Context, msg *domain.Message) {
	event := &MessageEvent{
		Type:           EventMessageSent,
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		MessageType:    string(msg.Type),
		Timestamp:      p.now().Unix(),
	}
	if err := p.producer.ProduceMessageEvent(ctx, event); err != nil {
		l := pkglog.Ctx(ctx)
		l.Warn().Err(err).
			Str(pkglog.FieldMessageID, msg.ID).
			Str(pkglog.FieldConversationID, msg.ConversationID).
			Msg("failed to produce message_sent event to Kafka")
	}
}

func (p *Publisher) callEvent(eventType string, call domain.CallSession) *CallEvent {
	return &CallEvent{
		Type:      eventType,
		CallID:    call.ID,
		CallerID:  call.CallerID,
		CalleeID:  call.CalleeID,
		CallType:  string(call.Type),
		Timestamp: p.now().Unix(),
	}
}

func (p *Publisher) produceCall(event *CallEvent) {
	if err := p.producer.ProduceCallEvent(context.Background(), event); err != nil {
		l := pkglog.L()
		l.Warn().Err(err).
			Str(pkglog.FieldCallID, event.CallID).
			Str(pkglog.FieldEvent, event.Type).
			Msg("failed to produce call event to Kafka")
	}
}
