package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/findme/internal/logger"
)

// RequestLog пишет по строке на запрос: метод, путь, статус, длительность, request id.
func RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := wrap(w)
		next.ServeHTTP(rw, r)
		ev := logger.Logger().Info()
		if rw.status >= http.StatusInternalServerError {
			ev = logger.Logger().Error()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.status).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Str("request_id", chimw.GetReqID(r.Context())).
			Str("user_id", GetUserID(r.Context())).
			Msg("http")
	})
}
