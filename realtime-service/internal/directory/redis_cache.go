package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type RedisMembershipCache struct {
	client *redis.Client
	prefix string
}

func NewRedisMembershipCache(cfg RedisConfig, prefix string) (*RedisMembershipCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisMembershipCache{
		client: client,
		prefix: prefix,
	}, nil
}

func (c *RedisMembershipCache) BuildKey(userID, conversationID string) string {
	return fmt.Sprintf("%s:member:%s:%s", c.prefix, conversationID, userID)
}

func (c *RedisMembershipCache) Get(ctx context.Context, key string) error {
	if err := c.client.Get(ctx, key).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheMiss
		}
		return fmt.Errorf("failed to get from redis: %w", err)
	}
	return nil
}

func (c *RedisMembershipCache) Set(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

func (c *RedisMembershipCache) Close() error {
	return c.client.Close()
}
