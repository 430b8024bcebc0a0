package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/findme/internal/logger"
	"github.com/findme/internal/storage"
)

const rateLimitWindow = time.Minute

// clientIP — X-Real-Ip (chi RealIP уже переписал RemoteAddr), иначе хост RemoteAddr.
func clientIP(r *http.Request) string {
	if x := r.Header.Get("X-Real-Ip"); x != "" {
		return x
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// RateLimitAPI ограничивает запросы к /api/* по IP и по user_id (если есть в контексте). 429 при превышении.
// Ошибка хранилища лимитов не блокирует запрос.
func RateLimitAPI(limiter storage.RateLimiter, perIP, perUser int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			if perIP > 0 {
				ok, err := limiter.Allow(ctx, "ip:"+clientIP(r), perIP, rateLimitWindow)
				if err != nil {
					logger.Errorf("ratelimit ip: %v", err)
				} else if !ok {
					http.Error(w, `{"message":"too many requests"}`, http.StatusTooManyRequests)
					return
				}
			}
			if userID := GetUserID(ctx); userID != "" && perUser > 0 {
				ok, err := limiter.Allow(ctx, "u:"+userID, perUser, rateLimitWindow)
				if err != nil {
					logger.Errorf("ratelimit user: %v", err)
				} else if !ok {
					http.Error(w, `{"message":"too many requests"}`, http.StatusTooManyRequests)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
