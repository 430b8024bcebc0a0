package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/findme/internal/push"
	"github.com/findme/internal/storage"
)

var (
	_ storage.PushSubscriptions = (*PushSubscriptions)(nil)
	_ storage.RateLimiter       = (*Client)(nil)
)

const (
	subsKeyPrefix   = "push:subs:"
	maxSubsPerUser  = 10
	subscriptionTTL = 30 * 24 * time.Hour
)

// PushSubscriptions хранит подписки пользователя списком push:subs:{userID} (JSON на элемент).
type PushSubscriptions struct {
	cli *redis.Client
}

func NewPushSubscriptions(c *Client) *PushSubscriptions {
	return &PushSubscriptions{cli: c.cli}
}

func (s *PushSubscriptions) Add(ctx context.Context, userID string, sub push.Subscription) error {
	raw, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	kept, err := s.without(ctx, userID, sub.Endpoint)
	if err != nil {
		return err
	}
	kept = append(kept, string(raw))
	return s.replace(ctx, userID, kept)
}

func (s *PushSubscriptions) Remove(ctx context.Context, userID, endpoint string) error {
	kept, err := s.without(ctx, userID, endpoint)
	if err != nil {
		return err
	}
	return s.replace(ctx, userID, kept)
}

func (s *PushSubscriptions) List(ctx context.Context, userID string) ([]push.Subscription, error) {
	list, err := s.cli.LRange(ctx, subsKeyPrefix+userID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis subscriptions %s: %w", userID, err)
	}
	subs := make([]push.Subscription, 0, len(list))
	for _, item := range list {
		var sub push.Subscription
		if json.Unmarshal([]byte(item), &sub) == nil && sub.Endpoint != "" {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

func (s *PushSubscriptions) without(ctx context.Context, userID, endpoint string) ([]string, error) {
	list, err := s.cli.LRange(ctx, subsKeyPrefix+userID, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis subscriptions %s: %w", userID, err)
	}
	kept := make([]string, 0, len(list))
	for _, item := range list {
		var sub push.Subscription
		if json.Unmarshal([]byte(item), &sub) == nil && sub.Endpoint != endpoint {
			kept = append(kept, item)
		}
	}
	return kept, nil
}

// replace перезаписывает список одной транзакцией.
func (s *PushSubscriptions) replace(ctx context.Context, userID string, items []string) error {
	key := subsKeyPrefix + userID
	if len(items) > maxSubsPerUser {
		items = items[len(items)-maxSubsPerUser:]
	}
	pipe := s.cli.TxPipeline()
	pipe.Del(ctx, key)
	if len(items) > 0 {
		vals := make([]any, len(items))
		for i, v := range items {
			vals[i] = v
		}
		pipe.RPush(ctx, key, vals...)
		pipe.Expire(ctx, key, subscriptionTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis subscriptions %s: %w", userID, err)
	}
	return nil
}
