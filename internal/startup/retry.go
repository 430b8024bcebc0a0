// Package startup — подключение к внешним зависимостям при старте сервиса.
package startup

import (
	"context"
	"fmt"
	"time"

	"github.com/findme/internal/logger"
)

const maxBackoff = 30 * time.Second

// withRetry вызывает connect, пока тот не вернёт nil, с экспоненциальной паузой.
// По истечении maxWait возвращает последнюю ошибку.
func withRetry(ctx context.Context, what string, maxWait time.Duration, connect func(context.Context) error) error {
	deadline := time.Now().Add(maxWait)
	backoff := 2 * time.Second
	for {
		err := connect(ctx)
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%s (gave up after %v): %w", what, maxWait, err)
		}
		logger.Errorf("startup: %s failed, retry in %v: %v", what, backoff, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < maxBackoff {
			backoff = min(backoff*2, maxBackoff)
		}
	}
}
