package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateKeyPrefix = "ratelimit:"

// Client — RateLimiter поверх Redis: фиксированное окно INCR + EXPIRE.
type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

// NewFromClient оборачивает готовый клиент (общий пул с другими компонентами).
func NewFromClient(cli *redis.Client) *Client {
	return &Client{cli: cli}
}

func (c *Client) Close() error {
	return c.cli.Close()
}

// Allow увеличивает ratelimit:{key}; TTL ставится на первом запросе окна.
func (c *Client) Allow(ctx context.Context, key string, max int, window time.Duration) (bool, error) {
	k := rateKeyPrefix + key
	pipe := c.cli.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis ratelimit %s: %w", key, err)
	}
	return incr.Val() <= int64(max), nil
}

// Ping — проверка готовности для /health/ready.
func (c *Client) Ping(ctx context.Context) error {
	return c.cli.Ping(ctx).Err()
}
