package service

import (
	"context"
	"strings"

	"github.com/findme/internal/model"
)

// EnsureUser сохраняет профиль, полученный от провайдера идентичности.
// Роль по умолчанию — user.
func (s *Service) EnsureUser(ctx context.Context, u model.User) (*model.User, error) {
	u.ID = strings.TrimSpace(u.ID)
	if u.ID == "" {
		return nil, newError(ErrBadRequest, "user id is required")
	}
	if u.Role != model.RoleAdmin {
		u.Role = model.RoleUser
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	saved, err := s.users.UpsertUser(ctx, &u)
	if err != nil {
		return nil, storeErr("service.EnsureUser", err, "User not found")
	}
	return saved, nil
}

func (s *Service) Me(ctx context.Context, actor model.Actor) (*model.User, error) {
	u, err := s.users.GetUser(ctx, actor.UserID)
	if err != nil {
		return nil, storeErr("service.Me", err, "User not found")
	}
	return u, nil
}
