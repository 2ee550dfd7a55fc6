package signaling

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-chat/realtime-service/internal/domain"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/registry"
)

var (
	testOffer     = json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	testAnswer    = json.RawMessage(`{"type":"answer","sdp":"v=0"}`)
	testCandidate = json.RawMessage(`{"candidate":"candidate:1 1 udp 2122260223 10.0.0.2 54321 typ host","sdpMid":"0","sdpMLineIndex":0}`)
)

type recordedObserver struct {
	mu       sync.Mutex
	started  []string
	answered []string
	ended    map[string]string
}

func newRecordedObserver() *recordedObserver {
	return &recordedObserver{ended: map[string]string{}}
}

func (o *recordedObserver) CallStarted(call domain.CallSession) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, call.ID)
}

func (o *recordedObserver) CallAnswered(call domain.CallSession) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.answered = append(o.answered, call.ID)
}

func (o *recordedObserver) CallEnded(call domain.CallSession, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ended[call.ID] = reason
}

type fixture struct {
	sessions *registry.Registry
	observer *recordedObserver
	clock    time.Time
	coord    *Coordinator
}

// newFixture has alice on two devices, bob on one and carol on one.
func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		sessions: registry.New(),
		observer: newRecordedObserver(),
		clock:    time.Unix(1700000000, 0),
	}
	f.sessions.Register("alice", "conn-a1")
	f.sessions.Register("alice", "conn-a2")
	f.sessions.Register("bob", "conn-b1")
	f.sessions.Register("carol", "conn-c1")
	f.coord = NewCoordinator(f.sessions, cfg,
		WithObserver(f.observer),
		WithClock(func() time.Time { return f.clock }),
	)
	return f
}

func single(t *testing.T, outs []domain.Outbound) domain.Outbound {
	t.Helper()
	require.Len(t, outs, 1)
	return outs[0]
}

func TestInitiate_RingsEveryCalleeConnection(t *testing.T) {
	f := newFixture(t, Config{})

	call, outs, err := f.coord.Initiate("bob", "conn-b1", "alice", testOffer, domain.CallTypeVideo)
	require.NoError(t, err)

	out := single(t, outs)
	assert.Equal(t, domain.EventCallIncoming, out.Event.Type)
	assert.Equal(t, []string{"conn-a1", "conn-a2"}, out.ConnectionIDs)
	assert.Equal(t, domain.CallIncomingPayload{
		From:     "bob",
		Offer:    testOffer,
		CallType: domain.CallTypeVideo,
		CallID:   call.ID,
	}, out.Event.Data)

	assert.Equal(t, domain.CallStateRinging, call.State)
	assert.Equal(t, "conn-b1", call.CallerConn)
	assert.Equal(t, domain.NewCallID("bob", "alice", f.clock), call.ID)
	assert.Equal(t, 1, f.coord.ActiveCalls())
	assert.Equal(t, []string{call.ID}, f.observer.started)
}

func TestInitiate_Validation(t *testing.T) {
	f := newFixture(t, Config{})

	tests := []struct {
		name     string
		callee   string
		offer    json.RawMessage
		callType domain.CallType
	}{
		{"missing callee", "", testOffer, domain.CallTypeVoice},
		{"self call", "bob", testOffer, domain.CallTypeVoice},
		{"unknown type", "alice", testOffer, domain.CallType("hologram")},
		{"missing offer", "alice", nil, domain.CallTypeVoice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, outs, err := f.coord.Initiate("bob", "conn-b1", tt.callee, tt.offer, tt.callType)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Empty(t, outs)
		})
	}
	assert.Zero(t, f.coord.ActiveCalls())
}

func TestInitiate_OfflineCallee(t *testing.T) {
	f := newFixture(t, Config{})

	_, outs, err := f.coord.Initiate("bob", "conn-b1", "dave", testOffer, domain.CallTypeVoice)
	assert.ErrorIs(t, err, domain.ErrTargetOffline)
	assert.Empty(t, outs)
	assert.Zero(t, f.coord.ActiveCalls())
	assert.Empty(t, f.observer.started)
}

func TestInitiate_UniqueIDsAtSameInstant(t *testing.T) {
	f := newFixture(t, Config{})

	first, _, err := f.coord.Initiate("bob", "conn-b1", "alice", testOffer, domain.CallTypeVoice)
	require.NoError(t, err)
	second, _, err := f.coord.Initiate("bob", "conn-b1", "alice", testOffer, domain.CallTypeVoice)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, f.coord.ActiveCalls())
}

func TestInitiate_SingleCallBusy(t *testing.T) {
	f := newFixture(t, Config{SingleCall: true})

	_, _, err := f.coord.Initiate("bob", "conn-b1", "alice", testOffer, domain.CallTypeVoice)
	require.NoError(t, err)

	_, outs, err := f.coord.Initiate("carol", "conn-c1", "alice", testOffer, domain.CallTypeVoice)
	assert.ErrorIs(t, err, domain.ErrBusy)
	assert.Empty(t, outs)

	_, _, err = f.coord.Initiate("bob", "conn-b1", "carol", testOffer, domain.CallTypeVoice)
	assert.ErrorIs(t, err, domain.ErrBusy)
	assert.Equal(t, 1, f.coord.ActiveCalls())
}

// A full call between bob and alice's second device.
func TestCallFlow_AnswerRelayEnd(t *testing.T) {
	f := newFixture(t, Config{})

	call, _, err := f.coord.Initiate("bob", "conn-b1", "alice", testOffer, domain.CallTypeVideo)
	require.NoError(t, err)

	f.clock = f.clock.Add(3 * time.Second)
	outs, err := f.coord.Answer("alice", "conn-a2", "bob", testAnswer, call.ID)
	require.NoError(t, err)
	require.Len(t, outs, 2)

	assert.Equal(t, domain.EventCallAnswered, outs[0].Event.Type)
	assert.Equal(t, []string{"conn-b1"}, outs[0].ConnectionIDs)
	assert.Equal(t, domain.CallAnsweredPayload{From: "alice", Answer: testAnswer, CallID: call.ID}, outs[0].Event.Data)

	// alice's other device stops ringing
	assert.Equal(t, domain.EventCallEnded, outs[1].Event.Type)
	assert.Equal(t, []string{"conn-a1"}, outs[1].ConnectionIDs)
	assert.Equal(t, domain.EndReasonAnsweredElsewhere, outs[1].Event.Data.(domain.CallClosedPayload).Reason)

	got, ok := f.coord.Get(call.ID)
	require.True(t, ok)
	assert.Equal(t, domain.CallStateAnswered, got.State)
	assert.Equal(t, "conn-a2", got.CalleeConn)
	assert.Equal(t, f.clock, got.AnsweredAt)

	// candidates now go to the pinned device only
	outs, err = f.coord.RelayICECandidate("bob", "alice", testCandidate)
	require.NoError(t, err)
	out := single(t, outs)
	assert.Equal(t, []string{"conn-a2"}, out.ConnectionIDs)
	assert.Equal(t, domain.ICECandidatePayload{From: "bob", Candidate: testCandidate}, out.Event.Data)

	outs, err = f.coord.End("alice", "conn-a2", "bob", call.ID)
	require.NoError(t, err)
	out = single(t, outs)
	assert.Equal(t, domain.EventCallEnded, out.Event.Type)
	assert.Equal(t, []string{"conn-b1"}, out.ConnectionIDs)
	assert.Equal(t, domain.CallClosedPayload{From: "alice", CallID: call.ID, Reason: domain.EndReasonHangup}, out.Event.Data)

	assert.Zero(t, f.coord.ActiveCalls())
	assert.Equal(t, []string{call.ID}, f.observer.answered)
	assert.Equal(t, domain.EndReasonHangup, f.observer.ended[call.ID])
}

func TestAnswer_Errors(t *testing.T) {
	f := newFixture(t, Config{})
	call, _, err := f.coord.Initiate("bob", "conn-b1", "alice", testOffer, domain.CallTypeVoice)
	require.NoError(t, err)

	_, err = f.coord.Answer("alice", "conn-a1", "bob", testAnswer, "nope")
	assert.ErrorIs(t, err, domain.ErrCallNotFound)

	_, err = f.coord.Answer("carol", "conn-c1", "bob", testAnswer, call.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.coord.Answer("alice", "conn-a1", "carol", testAnswer, call.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.coord.Answer("alice", "conn-a1", "bob", nil, call.ID)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.coord.Answer("alice", "conn-a1", "bob", testAnswer, call.ID)
	require.NoError(t, err)
	_, err = f.coord.Answer("alice", "conn-a2", "bob", testAnswer, call.ID)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAnswer_CallerOffline(t *testing.T) {
	f := newFixture(t, Config{})
	call, _, err := f.coord.Initiate("bob", "conn-b1", "alice", testOffer, domain.CallTypeVoice)
	require.NoError(t, err)

	f.sessions.Deregister("bob", "conn-b1")

	outs, err := f.coord.Answer("alice", "conn-a1", "bob", testAnswer, call.ID)
	assert.ErrorIs(t, err, domain.ErrTargetOffline)
	assert.Empty(t, outs)

	got, ok := f.coord.Get(call.ID)
	require.True(t, ok)
	assert.Equal(t, domain.CallStateRinging, got.State)
}

func TestRelayICECandidate_NoCallStateRequired(t *testing.T) {
	f := newFixture(t, Config{})

	outs, err := f.coord.RelayICECandidate("carol", "alice", testCandidate)
	require.NoError(t, err)
	out := single(t, outs)
	assert.Equal(t, domain.EventCallICECandidate, out.Event.Type)
	assert.Equal(t, []string{"conn-a1", "conn-a2"}, out.ConnectionIDs)

	_, err = f.coord.RelayICECandidate("carol", "dave", testCandidate)
	assert.ErrorIs(t, err, domain.ErrTargetOffline)

	_, err = f.coord.RelayICECandidate("carol", "", testCandidate)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestReject(t *testing.T) {
	f := newFixture(t, Config{})
	call, _, err := f.coord.Initiate("alice", "conn-a1", "bob", testOffer, domain.CallTypeVoice)
	require.NoError(t, err)

	_, err = f.coord.Reject("carol", "conn-c1", "alice", call.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	outs, err := f.coord.Reject("bob", "conn-b1", "alice", call.ID)
	require.NoError(t, err)
	out := single(t, outs)
	assert.Equal(t, domain.EventCallRejected, out.Event.Type)
	assert.Equal(t, []string{"conn-a1"}, out.ConnectionIDs)
	assert.Equal(t, domain.CallClosedPayload{From: "bob", CallID: call.ID}, out.Event.Data)

	assert.Zero(t, f.coord.ActiveCalls())
	assert.Equal(t, domain.EndReasonRejected, f.observer.ended[call.ID])

	_, err = f.coord.Reject("bob", "conn-b1", "alice", call.ID)
	assert.ErrorIs(t, err, domain.ErrCallNotFound)
}

func TestEnd_UnknownCallEmitsNothing(t *testing.T) {
	f := newFixture(t, Config{})

	outs, err := f.coord.End("bob", "conn-b1", "alice", "bob-alice-1")
	assert.ErrorIs(t, err, domain.ErrCallNotFound)
	assert.Empty(t, outs)
}

// Calling an offline user and hanging up never rings them later.
func TestEnd_AfterOfflineInitiate(t *testing.T) {
	f := newFixture(t, Config{})

	_, _, err := f.coord.Initiate("bob", "conn-b1", "dave", testOffer, domain.CallTypeVoice)
	require.ErrorIs(t, err, domain.ErrTargetOffline)

	f.sessions.Register("dave", "conn-d1")
	outs, err := f.coord.End("bob", "conn-b1", "dave", domain.NewCallID("bob", "dave", f.clock))
	assert.ErrorIs(t, err, domain.ErrCallNotFound)
	assert.Empty(t, outs)
}

func TestEnd_NotAParty(t *testing.T) {
	f := newFixture(t, Config{})
	call, _, err := f.coord.Initiate("bob", "conn-b1", "alice", testOffer, domain.CallTypeVoice)
	require.NoError(t, err)

	_, err = f.coord.End("carol", "conn-c1", "alice", call.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.coord.End("bob", "conn-b1", "carol", call.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, 1, f.coord.ActiveCalls())
}

func TestEnd_CallerHangsUpWhileRinging(t *testing.T) {
	f := newFixture(t, Config{})
	call, _, err := f.coord.Initiate("bob", "conn-b1", "alice", testOffer, domain.CallTypeVoice)
	require.NoError(t, err)

	outs, err := f.coord.End("bob", "conn-b1", "", call.ID)
	require.NoError(t, err)
	out := single(t, outs)
	assert.Equal(t, []string{"conn-a1", "conn-a2"}, out.ConnectionIDs)
}

func TestEnd_AnsweredCallNotifiesBoundDeviceOnly(t *testing.T) {
	f := newFixture(t, Config{})
	call, _, err := f.coord.Initiate("bob", "conn-b1", "alice", testOffer, domain.CallTypeVideo)
	require.NoError(t, err)
	_, err = f.coord.Answer("alice", "conn-a2", "bob", testAnswer, call.ID)
	require.NoError(t, err)

	outs, err := f.coord.End("bob", "conn-b1", "alice", call.ID)
	require.NoError(t, err)
	out := single(t, outs)
	assert.Equal(t, domain.EventCallEnded, out.Event.Type)
	assert.Equal(t, []string{"conn-a2"}, out.ConnectionIDs, "conn-a1 was already told answered-elsewhere")
	assert.Zero(t, f.coord.ActiveCalls())
}

func TestHandleDisconnect_AnsweredCallNotifiesBoundDeviceOnly(t *testing.T) {
	f := newFixture(t, Config{})
	call, _, err := f.coord.Initiate("bob", "conn-b1", "alice", testOffer, domain.CallTypeVoice)
	require.NoError(t, err)
	_, err = f.coord.Answer("alice", "conn-a1", "bob", testAnswer, call.ID)
	require.NoError(t, err)

	f.sessions.Deregister("bob", "conn-b1")
	out := single(t, f.coord.HandleDisconnect("bob", "conn-b1", false))
	assert.Equal(t, []string{"conn-a1"}, out.ConnectionIDs)
}

func TestHandleDisconnect_LastSession(t *testing.T) {
	f := newFixture(t, Config{})
	call, _, err := f.coord.Initiate("bob", "conn-b1", "alice", testOffer, domain.CallTypeVoice)
	require.NoError(t, err)

	f.sessions.Deregister("bob", "conn-b1")
	outs := f.coord.HandleDisconnect("bob", "conn-b1", false)

	out := single(t, outs)
	assert.Equal(t, domain.EventCallEnded, out.Event.Type)
	assert.Equal(t, []string{"conn-a1", "conn-a2"}, out.ConnectionIDs)
	assert.Equal(t, domain.CallClosedPayload{From: "bob", CallID: call.ID, Reason: domain.EndReasonDisconnect}, out.Event.Data)
	assert.Zero(t, f.coord.ActiveCalls())
	assert.Equal(t, domain.EndReasonDisconnect, f.observer.ended[call.ID])
}

func TestHandleDisconnect_OtherDeviceKeepsCall(t *testing.T) {
	f := newFixture(t, Config{})
	call, _, err := f.coord.Initiate("alice", "conn-a1", "bob", testOffer, domain.CallTypeVoice)
	require.NoError(t, err)

	f.sessions.Deregister("alice", "conn-a2")
	outs := f.coord.HandleDisconnect("alice", "conn-a2", true)
	assert.Empty(t, outs)

	_, ok := f.coord.Get(call.ID)
	assert.True(t, ok)
}

func TestHandleDisconnect_PinnedConnection(t *testing.T) {
	f := newFixture(t, Config{})
	call, _, err := f.coord.Initiate("alice", "conn-a1", "bob", testOffer, domain.CallTypeVoice)
	require.NoError(t, err)

	f.sessions.Deregister("alice", "conn-a1")
	outs := f.coord.HandleDisconnect("alice", "conn-a1", true)

	out := single(t, outs)
	assert.Equal(t, []string{"conn-b1"}, out.ConnectionIDs)
	_, ok := f.coord.Get(call.ID)
	assert.False(t, ok)
}

func TestHandleDisconnect_EndsEveryCall(t *testing.T) {
	f := newFixture(t, Config{})

	const n = 5
	for i := 0; i < n; i++ {
		callee := fmt.Sprintf("peer-%d", i)
		f.sessions.Register(callee, "conn-"+callee)
		_, _, err := f.coord.Initiate("bob", "conn-b1", callee, testOffer, domain.CallTypeVoice)
		require.NoError(t, err)
	}
	_, _, err := f.coord.Initiate("alice", "conn-a1", "carol", testOffer, domain.CallTypeVoice)
	require.NoError(t, err)

	f.sessions.Deregister("bob", "conn-b1")
	outs := f.coord.HandleDisconnect("bob", "conn-b1", false)

	require.Len(t, outs, n)
	notified := map[string]bool{}
	for _, out := range outs {
		assert.Equal(t, domain.EventCallEnded, out.Event.Type)
		require.Len(t, out.ConnectionIDs, 1)
		notified[out.ConnectionIDs[0]] = true
	}
	assert.Len(t, notified, n)
	assert.Empty(t, f.coord.CallsOf("bob"))
	assert.Equal(t, 1, f.coord.ActiveCalls())
}

func TestHandleDisconnect_PeerOfflineStillEvicts(t *testing.T) {
	f := newFixture(t, Config{})
	_, _, err := f.coord.Initiate("bob", "conn-b1", "carol", testOffer, domain.CallTypeVoice)
	require.NoError(t, err)

	f.sessions.Deregister("carol", "conn-c1")
	f.sessions.Deregister("bob", "conn-b1")
	outs := f.coord.HandleDisconnect("bob", "conn-b1", false)

	assert.Empty(t, outs)
	assert.Zero(t, f.coord.ActiveCalls())
}

func TestSweep_RingTimeout(t *testing.T) {
	f := newFixture(t, Config{RingTimeout: 30 * time.Second})
	ringing, _, err := f.coord.Initiate("bob", "conn-b1", "carol", testOffer, domain.CallTypeVoice)
	require.NoError(t, err)
	answered, _, err := f.coord.Initiate("alice", "conn-a1", "bob", testOffer, domain.CallTypeVoice)
	require.NoError(t, err)
	_, err = f.coord.Answer("bob", "conn-b1", "alice", testAnswer, answered.ID)
	require.NoError(t, err)

	assert.Empty(t, f.coord.Sweep(f.clock.Add(29*time.Second)))

	outs := f.coord.Sweep(f.clock.Add(30 * time.Second))
	require.Len(t, outs, 2)
	assert.Equal(t, []string{"conn-b1"}, outs[0].ConnectionIDs)
	assert.Equal(t, domain.CallClosedPayload{From: "carol", CallID: ringing.ID, Reason: domain.EndReasonTimeout}, outs[0].Event.Data)
	assert.Equal(t, []string{"conn-c1"}, outs[1].ConnectionIDs)
	assert.Equal(t, domain.CallClosedPayload{From: "bob", CallID: ringing.ID, Reason: domain.EndReasonTimeout}, outs[1].Event.Data)

	_, ok := f.coord.Get(answered.ID)
	assert.True(t, ok)
	assert.Equal(t, domain.EndReasonTimeout, f.observer.ended[ringing.ID])
}

func TestSweep_Disabled(t *testing.T) {
	f := newFixture(t, Config{})
	_, _, err := f.coord.Initiate("bob", "conn-b1", "alice", testOffer, domain.CallTypeVoice)
	require.NoError(t, err)

	assert.Empty(t, f.coord.Sweep(f.clock.Add(24*time.Hour)))
	assert.Equal(t, 1, f.coord.ActiveCalls())
}

func TestValidateSDP_RejectsBadOffer(t *testing.T) {
	f := newFixture(t, Config{ValidateSDP: true})

	bad := json.RawMessage(`{"type":"offer","sdp":"garbage"}`)
	_, _, err := f.coord.Initiate("bob", "conn-b1", "alice", bad, domain.CallTypeVoice)
	assert.ErrorIs(t, err, domain.ErrValidation)

	offer, err := json.Marshal(map[string]string{"type": "offer", "sdp": sampleSDP})
	require.NoError(t, err)
	_, _, err = f.coord.Initiate("bob", "conn-b1", "alice", offer, domain.CallTypeVoice)
	assert.NoError(t, err)
}

func TestReject_StopsCalleeOtherDevices(t *testing.T) {
	f := newFixture(t, Config{})
	call, _, err := f.coord.Initiate("bob", "conn-b1", "alice", testOffer, domain.CallTypeVoice)
	require.NoError(t, err)

	outs, err := f.coord.Reject("alice", "conn-a1", "bob", call.ID)
	require.NoError(t, err)
	require.Len(t, outs, 2)

	assert.Equal(t, domain.EventCallRejected, outs[0].Event.Type)
	assert.Equal(t, []string{"conn-b1"}, outs[0].ConnectionIDs)

	assert.Equal(t, domain.EventCallEnded, outs[1].Event.Type)
	assert.Equal(t, []string{"conn-a2"}, outs[1].ConnectionIDs)
	assert.Equal(t, domain.CallClosedPayload{From: "alice", CallID: call.ID, Reason: domain.EndReasonRejected}, outs[1].Event.Data)

	_, err = f.coord.Answer("alice", "conn-a2", "bob", testAnswer, call.ID)
	assert.ErrorIs(t, err, domain.ErrCallNotFound)
}

func TestEnd_CalleeHangsUpWhileRinging(t *testing.T) {
	f := newFixture(t, Config{})
	call, _, err := f.coord.Initiate("bob", "conn-b1", "alice", testOffer, domain.CallTypeVoice)
	require.NoError(t, err)

	outs, err := f.coord.End("alice", "conn-a2", "bob", call.ID)
	require.NoError(t, err)
	require.Len(t, outs, 2)

	assert.Equal(t, []string{"conn-b1"}, outs[0].ConnectionIDs)
	assert.Equal(t, domain.CallClosedPayload{From: "alice", CallID: call.ID, Reason: domain.EndReasonHangup}, outs[0].Event.Data)

	assert.Equal(t, domain.EventCallEnded, outs[1].Event.Type)
	assert.Equal(t, []string{"conn-a1"}, outs[1].ConnectionIDs)
	assert.Equal(t, domain.EndReasonHangup, outs[1].Event.Data.(domain.CallClosedPayload).Reason)
	assert.Zero(t, f.coord.ActiveCalls())
}

// With several calls between the same pair, candidates follow the answered one.
func TestRelayICECandidate_PrefersAnsweredCall(t *testing.T) {
	f := newFixture(t, Config{})

	answered, _, err := f.coord.Initiate("bob", "conn-b1", "alice", testOffer, domain.CallTypeVoice)
	require.NoError(t, err)
	_, err = f.coord.Answer("alice", "conn-a1", "bob", testAnswer, answered.ID)
	require.NoError(t, err)

	f.clock = f.clock.Add(time.Second)
	_, _, err = f.coord.Initiate("bob", "conn-b1", "alice", testOffer, domain.CallTypeVoice)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		outs, err := f.coord.RelayICECandidate("bob", "alice", testCandidate)
		require.NoError(t, err)
		assert.Equal(t, []string{"conn-a1"}, single(t, outs).ConnectionIDs)
	}
}

func TestRelayICECandidate_NewestCallWins(t *testing.T) {
	f := newFixture(t, Config{})

	older, _, err := f.coord.Initiate("alice", "conn-a1", "bob", testOffer, domain.CallTypeVoice)
	require.NoError(t, err)
	f.clock = f.clock.Add(time.Second)
	newer, _, err := f.coord.Initiate("alice", "conn-a2", "bob", testOffer, domain.CallTypeVoice)
	require.NoError(t, err)
	require.NotEqual(t, older.ID, newer.ID)

	for i := 0; i < 20; i++ {
		outs, err := f.coord.RelayICECandidate("bob", "alice", testCandidate)
		require.NoError(t, err)
		assert.Equal(t, []string{"conn-a2"}, single(t, outs).ConnectionIDs)
	}
}
