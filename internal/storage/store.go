package storage

import (
	"context"
	"errors"
	"time"

	"github.com/findme/internal/push"
)

// Ошибки хранилищ. repository (Postgres) и memory возвращают их же, service переводит в свою таксономию.
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// RateLimiter — счётчик запросов в окне.
// Реализации: redis.Client (общий для всех реплик API), memory.RateLimiter (-dev и -memory).
type RateLimiter interface {
	// Allow учитывает запрос по ключу и сообщает, укладывается ли он в max за window.
	Allow(ctx context.Context, key string, max int, window time.Duration) (bool, error)
	Close() error
}

// PushSubscriptions — подписки Web Push по пользователям (push-сервис).
// Реализации: redis.PushSubscriptions, memory.PushSubscriptions.
type PushSubscriptions interface {
	// Add сохраняет подписку; повторный endpoint заменяет прежнюю запись. Хранится не больше maxPerUser последних.
	Add(ctx context.Context, userID string, sub push.Subscription) error
	Remove(ctx context.Context, userID, endpoint string) error
	List(ctx context.Context, userID string) ([]push.Subscription, error)
}
