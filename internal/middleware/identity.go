package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/findme/internal/logger"
	"github.com/findme/internal/model"
)

// UserDirectory сохраняет профиль, пришедший от провайдера идентичности.
type UserDirectory interface {
	EnsureUser(ctx context.Context, u model.User) (*model.User, error)
}

func unauthorized(w http.ResponseWriter) {
	http.Error(w, `{"message":"unauthorized"}`, http.StatusUnauthorized)
}

func parseRole(s string) model.Role {
	if strings.EqualFold(strings.TrimSpace(s), string(model.RoleAdmin)) {
		return model.RoleAdmin
	}
	return model.RoleUser
}

// admit сохраняет профиль в справочнике и передаёт запрос дальше с Actor в контексте.
func admit(w http.ResponseWriter, r *http.Request, next http.Handler, dir UserDirectory, u model.User) {
	if u.ID == "" {
		unauthorized(w)
		return
	}
	if dir != nil {
		saved, err := dir.EnsureUser(r.Context(), u)
		if err != nil {
			logger.Errorf("auth: ensure user %s: %v", u.ID, err)
			http.Error(w, `{"message":"internal server error"}`, http.StatusInternalServerError)
			return
		}
		u = *saved
	}
	ctx := WithActor(r.Context(), model.Actor{UserID: u.ID, Role: u.Role})
	next.ServeHTTP(w, r.WithContext(ctx))
}

// HeaderIdentity берёт идентичность из X-User-* заголовков. Только для -dev.
func HeaderIdentity(dir UserDirectory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get("X-User-Id"))
			if id == "" {
				// WebSocket из браузера не умеет ставить заголовки.
				id = strings.TrimSpace(r.URL.Query().Get("user_id"))
			}
			admit(w, r, next, dir, model.User{
				ID:    id,
				Name:  r.Header.Get("X-User-Name"),
				Email: r.Header.Get("X-User-Email"),
				Role:  parseRole(r.Header.Get("X-User-Role")),
			})
		})
	}
}

// RequireAdmin пропускает только администраторов.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetRole(r.Context()) != model.RoleAdmin {
			http.Error(w, `{"message":"Admin access required"}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
