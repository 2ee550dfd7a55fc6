package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/domain"
)

// BreakerConfig configures the circuit breaker in front of a store.
type BreakerConfig struct {
	Name             string        `mapstructure:"name"`
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
}

// BreakerRecorder observes breaker state changes.
type BreakerRecorder interface {
	BreakerStateChanged(name string, state int)
}

// BreakerStore fails fast while the wrapped store keeps failing. Open-state
// rejections surface as ErrStore.
type BreakerStore struct {
	inner Store
	cb    *gobreaker.CircuitBreaker[any]
}

// NewBreakerStore wraps inner with a circuit breaker. recorder may be nil.
func NewBreakerStore(inner Store, cfg BreakerConfig, recorder BreakerRecorder) *BreakerStore {
	if cfg.Name == "" {
		cfg.Name = "message-store"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l := log.L()
			l.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
			if recorder != nil {
				recorder.BreakerStateChanged(name, int(to))
			}
		},
		IsSuccessful: func(err error) bool {
			return err == nil ||
				errors.Is(err, ErrMessageNotFound) ||
				errors.Is(err, context.Canceled)
		},
	}

	return &BreakerStore{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[any](settings),
	}
}

func execute[T any](b *BreakerStore, fn func() (T, error)) (T, error) {
	res, err := b.cb.Execute(func() (any, error) { return fn() })
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, fmt.Errorf("%w: %w", domain.ErrStore, err)
		}
		return zero, err
	}
	return res.(T), nil
}

// State reports the breaker state.
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

func (b *BreakerStore) Insert(ctx context.Context, msg *domain.Message) (*domain.Message, error) {
	return execute(b, func() (*domain.Message, error) { return b.inner.Insert(ctx, msg) })
}

func (b *BreakerStore) UpdateStatus(ctx context.Context, update domain.StatusUpdate) (int64, error) {
	return execute(b, func() (int64, error) { return b.inner.UpdateStatus(ctx, update) })
}

func (b *BreakerStore) FindLast(ctx context.Context, conversationID string) (*domain.Message, error) {
	return execute(b, func() (*domain.Message, error) { return b.inner.FindLast(ctx, conversationID) })
}

func (b *BreakerStore) IsParticipant(ctx context.Context, userID, conversationID string) (bool, error) {
	return execute(b, func() (bool, error) { return b.inner.IsParticipant(ctx, userID, conversationID) })
}

func (b *BreakerStore) AddParticipants(ctx context.Context, conversationID string, userIDs ...string) error {
	_, err := execute(b, func() (struct{}, error) {
		return struct{}{}, b.inner.AddParticipants(ctx, conversationID, userIDs...)
	})
	return err
}

func (b *BreakerStore) Close(ctx context.Context) error {
	return b.inner.Close(ctx)
}
