package directory

import (
	"context"
	"errors"
	"time"

	"github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/realtime-service/internal/store"
)

// Recorder observes cache lookups.
type Recorder interface {
	ParticipantCacheLookup(result string)
}

// Cached answers participancy from the cache before asking the backing
// directory. Only positive answers are cached so a user added to a
// conversation is never denied by a stale entry.
type Cached struct {
	next     store.ParticipantDirectory
	cache    MembershipCache
	ttl      time.Duration
	recorder Recorder
}

// NewCached wraps next. recorder may be nil.
func NewCached(next store.ParticipantDirectory, cache MembershipCache, ttl time.Duration, recorder Recorder) *Cached {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cached{next: next, cache: cache, ttl: ttl, recorder: recorder}
}

func (c *Cached) IsParticipant(ctx context.Context, userID, conversationID string) (bool, error) {
	l := log.Ctx(ctx)
	key := c.cache.BuildKey(userID, conversationID)

	err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		c.record("hit")
		return true, nil
	case errors.Is(err, ErrCacheMiss):
		c.record("miss")
	default:
		c.record("error")
		l.Warn().Err(err).Msg("participant cache get failed")
	}

	ok, err := c.next.IsParticipant(ctx, userID, conversationID)
	if err != nil || !ok {
		return ok, err
	}

	if err := c.cache.Set(ctx, key, c.ttl); err != nil {
		l.Warn().Err(err).Msg("participant cache set failed")
	}
	return true, nil
}

func (c *Cached) record(result string) {
	if c.recorder != nil {
		c.recorder.ParticipantCacheLookup(result)
	}
}
