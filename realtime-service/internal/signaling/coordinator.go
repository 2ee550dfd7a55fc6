package signaling

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/weiawesome/wes-io-chat/realtime-service/internal/domain"
)

// SessionReader resolves users to their live connections.
type SessionReader interface {
	Lookup(userID string) []string
}

// Observer is told about call lifecycle transitions. Calls are made outside
// the coordinator lock with a snapshot of the call.
type Observer interface {
	CallStarted(call domain.CallSession)
	CallAnswered(call domain.CallSession)
	CallEnded(call domain.CallSession, reason string)
}

// Config tunes the coordinator.
type Config struct {
	// SingleCall rejects a new call while either party is already in one.
	SingleCall bool
	// RingTimeout ends calls that ring longer than this. Zero disables it.
	RingTimeout time.Duration
	// ValidateSDP parses offers, answers and candidates before relaying.
	ValidateSDP bool
}

// Coordinator relays WebRTC signaling between users and tracks call state.
type Coordinator struct {
	sessions  SessionReader
	cfg       Config
	observers []Observer
	now       func() time.Time

	mu    sync.Mutex
	calls map[string]*domain.CallSession
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithObserver adds a call lifecycle observer. Nil observers are skipped.
func WithObserver(o Observer) Option {
	return func(c *Coordinator) {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func NewCoordinator(sessions SessionReader, cfg Config, opts ...Option) *Coordinator {
	c := &Coordinator{
		sessions: sessions,
		cfg:      cfg,
		now:      time.Now,
		calls:    make(map[string]*domain.CallSession),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ended struct {
	call   domain.CallSession
	reason string
}

// Initiate starts a call and rings every connection of the callee.
func (c *Coordinator) Initiate(callerID, callerConn, calleeID string, offer json.RawMessage, callType domain.CallType) (domain.CallSession, []domain.Outbound, error) {
	switch {
	case callerID == "" || calleeID == "":
		return domain.CallSession{}, nil, fmt.Errorf("%w: caller and callee are required", domain.ErrValidation)
	case callerID == calleeID:
		return domain.CallSession{}, nil, fmt.Errorf("%w: cannot call yourself", domain.ErrValidation)
	case !callType.Valid():
		return domain.CallSession{}, nil, fmt.Errorf("%w: unknown call type %q", domain.ErrValidation, callType)
	case len(offer) == 0:
		return domain.CallSession{}, nil, fmt.Errorf("%w: missing offer", domain.ErrValidation)
	}
	if c.cfg.ValidateSDP {
		if err := ValidateSessionDescription(offer, webrtc.SDPTypeOffer); err != nil {
			return domain.CallSession{}, nil, err
		}
	}

	c.mu.Lock()
	targets := c.sessions.Lookup(calleeID)
	if len(targets) == 0 {
		c.mu.Unlock()
		return domain.CallSession{}, nil, fmt.Errorf("%w: %s", domain.ErrTargetOffline, calleeID)
	}
	if c.cfg.SingleCall {
		if busy := c.busyLocked(callerID, calleeID); busy != "" {
			c.mu.Unlock()
			return domain.CallSession{}, nil, fmt.Errorf("%w: %s is in another call", domain.ErrBusy, busy)
		}
	}

	now := c.now()
	id := domain.NewCallID(callerID, calleeID, now)
	for c.calls[id] != nil {
		now = now.Add(time.Nanosecond)
		id = domain.NewCallID(callerID, calleeID, now)
	}

	call := &domain.CallSession{
		ID:         id,
		CallerID:   callerID,
		CalleeID:   calleeID,
		Type:       callType,
		State:      domain.CallStateInitiated,
		CreatedAt:  now,
		CallerConn: callerConn,
	}
	c.calls[id] = call

	outs := domain.To(targets, domain.EventCallIncoming, domain.CallIncomingPayload{
		From:     callerID,
		Offer:    offer,
		CallType: callType,
		CallID:   id,
	})
	call.State = domain.CallStateRinging
	snapshot := *call
	c.mu.Unlock()

	for _, o := range c.observers {
		o.CallStarted(snapshot)
	}
	return snapshot, outs, nil
}

// Answer relays the callee's answer to the caller and binds the call to the
// answering connection. The callee's other devices stop ringing.
func (c *Coordinator) Answer(calleeID, calleeConn, callerID string, answer json.RawMessage, callID string) ([]domain.Outbound, error) {
	if callID == "" || callerID == "" {
		return nil, fmt.Errorf("%w: callId and to are required", domain.ErrValidation)
	}
	if len(answer) == 0 {
		return nil, fmt.Errorf("%w: missing answer", domain.ErrValidation)
	}
	if c.cfg.ValidateSDP {
		if err := ValidateSessionDescription(answer, webrtc.SDPTypeAnswer); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	call, ok := c.calls[callID]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrCallNotFound, callID)
	}
	if call.CalleeID != calleeID || call.CallerID != callerID {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: not a party of call %s", domain.ErrForbidden, callID)
	}
	if call.State == domain.CallStateAnswered {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: call %s already answered", domain.ErrValidation, callID)
	}

	targets := c.targetsLocked(callerID, call.CallerConn)
	if len(targets) == 0 {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrTargetOffline, callerID)
	}

	call.State = domain.CallStateAnswered
	call.AnsweredAt = c.now()
	call.CalleeConn = calleeConn
	snapshot := *call

	outs := domain.To(targets, domain.EventCallAnswered, domain.CallAnsweredPayload{
		From:   calleeID,
		Answer: answer,
		CallID: callID,
	})
	outs = append(outs, c.stopRingingLocked(call, calleeConn, domain.EndReasonAnsweredElsewhere)...)
	c.mu.Unlock()

	for _, o := range c.observers {
		o.CallAnswered(snapshot)
	}
	return outs, nil
}

// RelayICECandidate forwards a candidate without checking call state. When a
// tracked call pins the target to one connection, only that one receives it.
func (c *Coordinator) RelayICECandidate(fromID, toID string, candidate json.RawMessage) ([]domain.Outbound, error) {
	if toID == "" {
		return nil, fmt.Errorf("%w: to is required", domain.ErrValidation)
	}
	if c.cfg.ValidateSDP {
		if err := ValidateCandidate(candidate); err != nil {
			return nil, err
		}
	} else if len(candidate) == 0 {
		return nil, fmt.Errorf("%w: missing candidate", domain.ErrValidation)
	}

	c.mu.Lock()
	pinned := ""
	if call := c.latestBetweenLocked(fromID, toID); call != nil {
		pinned = call.PinnedConn(toID)
	}
	targets := c.targetsLocked(toID, pinned)
	c.mu.Unlock()

	if len(targets) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrTargetOffline, toID)
	}
	return domain.To(targets, domain.EventCallICECandidate, domain.ICECandidatePayload{
		From:      fromID,
		Candidate: candidate,
	}), nil
}

// Reject declines a ringing call from calleeConn and evicts it. The callee's
// other devices stop ringing.
func (c *Coordinator) Reject(calleeID, calleeConn, callerID, callID string) ([]domain.Outbound, error) {
	c.mu.Lock()
	call, ok := c.calls[callID]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrCallNotFound, callID)
	}
	if call.CalleeID != calleeID || (callerID != "" && call.CallerID != callerID) {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: not the callee of call %s", domain.ErrForbidden, callID)
	}

	outs := domain.To(c.targetsLocked(call.CallerID, call.CallerConn), domain.EventCallRejected, domain.CallClosedPayload{
		From:   calleeID,
		CallID: callID,
	})
	outs = append(outs, c.stopRingingLocked(call, calleeConn, domain.EndReasonRejected)...)
	done := c.evictLocked(call, domain.EndReasonRejected)
	c.mu.Unlock()

	c.notifyEnded(done)
	return outs, nil
}

// End hangs up a call from partyConn on behalf of either party and evicts
// it. The peer is told on the connection the call is bound to, or on every
// connection while it is still ringing. Unknown call ids produce no events. A callee hanging up an unanswered
// call also stops its other devices ringing.
func (c *Coordinator) End(partyID, partyConn, otherID, callID string) ([]domain.Outbound, error) {
	c.mu.Lock()
	call, ok := c.calls[callID]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrCallNotFound, callID)
	}
	if !call.Involves(partyID) || (otherID != "" && call.Peer(partyID) != otherID) {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: not a party of call %s", domain.ErrForbidden, callID)
	}

	peer := call.Peer(partyID)
	outs := domain.To(c.targetsLocked(peer, call.PinnedConn(peer)), domain.EventCallEnded, domain.CallClosedPayload{
		From:   partyID,
		CallID: callID,
		Reason: domain.EndReasonHangup,
	})
	if partyID == call.CalleeID && call.State != domain.CallStateAnswered {
		outs = append(outs, c.stopRingingLocked(call, partyConn, domain.EndReasonHangup)...)
	}
	done := c.evictLocked(call, domain.EndReasonHangup)
	c.mu.Unlock()

	c.notifyEnded(done)
	return outs, nil
}

// HandleDisconnect tears down calls bound to a dropped connection, or every
// call of the user once no session is left.
func (c *Coordinator) HandleDisconnect(userID, connectionID string, stillOnline bool) []domain.Outbound {
	c.mu.Lock()
	var affected []*domain.CallSession
	for _, call := range c.calls {
		if !call.Involves(userID) {
			continue
		}
		if !stillOnline || call.PinnedConn(userID) == connectionID {
			affected = append(affected, call)
		}
	}
	sort.Slice(affected, func(i, j int) bool { return affected[i].ID < affected[j].ID })

	var outs []domain.Outbound
	var done []ended
	for _, call := range affected {
		peer := call.Peer(userID)
		outs = append(outs, domain.To(c.targetsLocked(peer, call.PinnedConn(peer)), domain.EventCallEnded, domain.CallClosedPayload{
			From:   userID,
			CallID: call.ID,
			Reason: domain.EndReasonDisconnect,
		})...)
		done = append(done, c.evictLocked(call, domain.EndReasonDisconnect)...)
	}
	c.mu.Unlock()

	c.notifyEnded(done)
	return outs
}

// Sweep ends calls that have been ringing longer than the ring timeout and
// tells both parties.
func (c *Coordinator) Sweep(now time.Time) []domain.Outbound {
	if c.cfg.RingTimeout <= 0 {
		return nil
	}

	c.mu.Lock()
	var expired []*domain.CallSession
	for _, call := range c.calls {
		if call.State == domain.CallStateRinging && now.Sub(call.CreatedAt) >= c.cfg.RingTimeout {
			expired = append(expired, call)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ID < expired[j].ID })

	var outs []domain.Outbound
	var done []ended
	for _, call := range expired {
		outs = append(outs, domain.To(c.targetsLocked(call.CallerID, call.CallerConn), domain.EventCallEnded, domain.CallClosedPayload{
			From:   call.CalleeID,
			CallID: call.ID,
			Reason: domain.EndReasonTimeout,
		})...)
		outs = append(outs, domain.To(c.sessions.Lookup(call.CalleeID), domain.EventCallEnded, domain.CallClosedPayload{
			From:   call.CallerID,
			CallID: call.ID,
			Reason: domain.EndReasonTimeout,
		})...)
		done = append(done, c.evictLocked(call, domain.EndReasonTimeout)...)
	}
	c.mu.Unlock()

	c.notifyEnded(done)
	return outs
}

// Get returns a snapshot of a tracked call.
func (c *Coordinator) Get(callID string) (domain.CallSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	call, ok := c.calls[callID]
	if !ok {
		return domain.CallSession{}, false
	}
	return *call, true
}

// CallsOf returns the tracked calls userID takes part in, ordered by id.
func (c *Coordinator) CallsOf(userID string) []domain.CallSession {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []domain.CallSession
	for _, call := range c.calls {
		if call.Involves(userID) {
			out = append(out, *call)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActiveCalls is the number of tracked calls.
func (c *Coordinator) ActiveCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func (c *Coordinator) busyLocked(callerID, calleeID string) string {
	for _, call := range c.calls {
		if call.Involves(callerID) {
			return callerID
		}
		if call.Involves(calleeID) {
			return calleeID
		}
	}
	return ""
}

// stopRingingLocked tells the callee's connections other than handled that
// the call is over on this side.
func (c *Coordinator) stopRingingLocked(call *domain.CallSession, handled, reason string) []domain.Outbound {
	var others []string
	for _, id := range c.sessions.Lookup(call.CalleeID) {
		if id != handled {
			others = append(others, id)
		}
	}
	return domain.To(others, domain.EventCallEnded, domain.CallClosedPayload{
		From:   call.CalleeID,
		CallID: call.ID,
		Reason: reason,
	})
}

// latestBetweenLocked picks the call between fromID and toID that candidates
// belong to: answered calls first, then the newest, then the highest id.
func (c *Coordinator) latestBetweenLocked(fromID, toID string) *domain.CallSession {
	var best *domain.CallSession
	for _, call := range c.calls {
		if !call.Involves(fromID) || call.Peer(fromID) != toID {
			continue
		}
		if best == nil || newerCall(call, best) {
			best = call
		}
	}
	return best
}

func newerCall(a, b *domain.CallSession) bool {
	aAnswered := a.State == domain.CallStateAnswered
	bAnswered := b.State == domain.CallStateAnswered
	if aAnswered != bAnswered {
		return aAnswered
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// targetsLocked narrows userID's connections to pinned when it is still live.
func (c *Coordinator) targetsLocked(userID, pinned string) []string {
	conns := c.sessions.Lookup(userID)
	if pinned == "" {
		return conns
	}
	for _, id := range conns {
		if id == pinned {
			return []string{pinned}
		}
	}
	return conns
}

func (c *Coordinator) evictLocked(call *domain.CallSession, reason string) []ended {
	delete(c.calls, call.ID)
	call.State = domain.CallStateEnded
	return []ended{{call: *call, reason: reason}}
}

func (c *Coordinator) notifyEnded(done []ended) {
	for _, o := range c.observers {
		for _, e := range done {
			o.CallEnded(e.call, e.reason)
		}
	}
}
