package middleware

import (
	"context"

	"github.com/findme/internal/model"
)

type contextKey string

const (
	UserIDKey contextKey = "user_id"
	RoleKey   contextKey = "role"
)

// GetUserID возвращает user_id из контекста (устанавливается middleware аутентификации).
func GetUserID(ctx context.Context) string {
	v, _ := ctx.Value(UserIDKey).(string)
	return v
}

func GetRole(ctx context.Context) model.Role {
	v, _ := ctx.Value(RoleKey).(model.Role)
	return v
}

// GetActor собирает идентичность вызывающего для сервисного слоя.
func GetActor(ctx context.Context) model.Actor {
	return model.Actor{UserID: GetUserID(ctx), Role: GetRole(ctx)}
}

// WithActor кладёт идентичность в контекст (аутентификация и тесты).
func WithActor(ctx context.Context, a model.Actor) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, a.UserID)
	return context.WithValue(ctx, RoleKey, a.Role)
}
