package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/weiawesome/wes-io-chat/realtime-service/internal/domain"
)

var (
	// Connection metrics
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wes_chat_active_connections",
			Help: "Live websocket connections",
		},
	)

	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wes_chat_online_users",
			Help: "Users with at least one live connection",
		},
	)

	ConnectionsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wes_chat_connections_dropped_total",
			Help: "Connections closed by the server",
		},
		[]string{"reason"}, // "send_buffer_full"
	)

	AuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wes_chat_auth_failures_total",
			Help: "Websocket upgrades refused for a bad token",
		},
	)

	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wes_chat_events_emitted_total",
			Help: "Events enqueued to connections",
		},
		[]string{"type"},
	)

	PresenceRecipients = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wes_chat_presence_broadcast_recipients",
			Help:    "Fan-out size of presence broadcasts",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
		[]string{"type"},
	)

	// Messaging metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wes_chat_messages_sent_total",
			Help: "Message send attempts",
		},
		[]string{"result"},
	)

	StatusUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wes_chat_status_updates_total",
			Help: "Delivered and seen transitions",
		},
		[]string{"status", "result"},
	)

	StatusRowsChanged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wes_chat_status_rows_changed_total",
			Help: "Messages whose status advanced",
		},
		[]string{"status"},
	)

	StoreLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "wes_chat_store_latency_seconds",
			Help:    "Message store operation latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
		},
		[]string{"op"},
	)

	TypingDebounced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wes_chat_typing_debounced_total",
			Help: "Typing events dropped by the debouncer",
		},
	)

	// Call metrics
	CallsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wes_chat_calls_started_total",
			Help: "Calls that rang at least one device",
		},
		[]string{"call_type"},
	)

	CallsAnswered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wes_chat_calls_answered_total",
			Help: "Calls answered",
		},
	)

	CallsEnded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wes_chat_calls_ended_total",
			Help: "Calls ended",
		},
		[]string{"reason"},
	)

	CallsUnavailable = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wes_chat_calls_unavailable_total",
			Help: "Call attempts whose callee was offline or busy",
		},
		[]string{"reason"},
	)

	ActiveCalls = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wes_chat_active_calls",
			Help: "Calls tracked by the coordinator",
		},
	)

	// Infrastructure metrics
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wes_chat_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	ParticipantCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wes_chat_participant_cache_total",
			Help: "Participant cache lookups",
		},
		[]string{"result"}, // "hit" | "miss" | "error"
	)
)

// Recorder reports realtime-service events to the package collectors.
type Recorder struct{}

func NewRecorder() *Recorder { return &Recorder{} }

func (Recorder) ConnectionOpened() { ActiveConnections.Inc() }

func (Recorder) ConnectionClosed() { ActiveConnections.Dec() }

func (Recorder) ConnectionDropped(reason string) { ConnectionsDropped.WithLabelValues(reason).Inc() }

func (Recorder) AuthFailed() { AuthFailures.Inc() }

func (Recorder) EventEmitted(eventType string, recipients int) {
	EventsEmitted.WithLabelValues(eventType).Add(float64(recipients))
}

func (Recorder) OnlineUsers(n int) { OnlineUsers.Set(float64(n)) }

func (Recorder) PresenceBroadcast(eventType string, recipients int) {
	PresenceRecipients.WithLabelValues(eventType).Observe(float64(recipients))
}

func (Recorder) MessageSent(result string) { MessagesSent.WithLabelValues(result).Inc() }

func (Recorder) StatusUpdated(status domain.MessageStatus, result string, changed int64) {
	StatusUpdates.WithLabelValues(string(status), result).Inc()
	if changed > 0 {
		StatusRowsChanged.WithLabelValues(string(status)).Add(float64(changed))
	}
}

func (Recorder) StoreLatency(op string, d time.Duration) {
	StoreLatency.WithLabelValues(op).Observe(d.Seconds())
}

func (Recorder) TypingDebounced() { TypingDebounced.Inc() }

func (Recorder) CallStarted(call domain.CallSession) {
	CallsStarted.WithLabelValues(string(call.Type)).Inc()
	ActiveCalls.Inc()
}

func (Recorder) CallAnswered(domain.CallSession) { CallsAnswered.Inc() }

func (Recorder) CallEnded(_ domain.CallSession, reason string) {
	CallsEnded.WithLabelValues(reason).Inc()
	ActiveCalls.Dec()
}

func (Recorder) CallUnavailable(reason string) { CallsUnavailable.WithLabelValues(reason).Inc() }

func (Recorder) BreakerStateChanged(name string, state int) {
	BreakerState.WithLabelValues(name).Set(float64(state))
}

func (Recorder) ParticipantCacheLookup(result string) {
	ParticipantCache.WithLabelValues(result).Inc()
}
