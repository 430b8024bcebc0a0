package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/findme/internal/config"
	"github.com/findme/internal/middleware"
	"github.com/findme/internal/service"
	"github.com/findme/internal/storage"
	"github.com/findme/internal/ws"
)

// Deps — всё, что нужно HTTP-слою API.
type Deps struct {
	Config  *config.Config
	Service *service.Service
	Hub     *ws.Hub
	Push    Subscriptions
	// Auth определяет идентичность вызывающего (AuthServiceValidate, FirebaseAuth или HeaderIdentity в -dev).
	Auth    func(http.Handler) http.Handler
	Limiter storage.RateLimiter
	Checks  map[string]Check
}

// NewRouter собирает маршруты API.
func NewRouter(d Deps) http.Handler {
	items := NewItemHandler(d.Service)
	matches := NewMatchHandler(d.Service)
	chats := NewChatHandler(d.Service)
	notifications := NewNotificationHandler(d.Service)
	admin := NewAdminHandler(d.Service)
	users := NewUserHandler(d.Service)
	configH := NewConfigHandler(d.Config)
	pushH := NewPushHandler(d.Push)
	wsH := NewWSHandler(d.Hub, d.Config.AllowedOrigins())
	health := NewHealthHandler(d.Checks)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RecoverJSON)
	r.Use(middleware.Tracing)
	r.Use(middleware.RequestLog)
	// Не сжимать WebSocket — иначе ResponseWriter не реализует http.Hijacker и upgrade даёт 500.
	r.Use(func(next http.Handler) http.Handler {
		compressed := chimw.Compress(5)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, req)
				return
			}
			compressed.ServeHTTP(w, req)
		})
	})
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.Config.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Session-Id", "X-Timestamp", "X-Signature", "X-User-Id", "X-User-Role", "X-User-Name", "X-User-Email"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RateLimitAPI(d.Limiter, d.Config.RateLimit.PerIP, 0))

	r.Get("/health", health.Live)
	r.Get("/health/ready", health.Ready)
	r.Get("/api/config/push", configH.GetPushConfig)
	r.Get("/api/item", items.List)

	r.Group(func(r chi.Router) {
		r.Use(d.Auth)
		r.Use(middleware.RateLimitAPI(d.Limiter, 0, d.Config.RateLimit.PerUser))

		r.Get("/api/users/me", users.Me)

		r.Post("/api/item", items.Create)
		r.Get("/api/item/my-items", items.ListMine)
		r.Get("/api/item/{id}", items.Get)
		r.Put("/api/item/{id}", items.Update)
		r.Delete("/api/item/{id}", items.Delete)
		r.Post("/api/item/{id}/claim", items.Claim)
		r.Post("/api/item/{id}/resolve", items.Resolve)
		r.Patch("/api/item/{id}/claims/{claimId}", items.RespondToClaim)

		r.Post("/api/match", matches.Create)
		r.Get("/api/match/my-requests", matches.MyRequests)
		r.Post("/api/match/{id}/accept", matches.Accept)

		r.Post("/api/chat", chats.GetOrCreate)
		r.Get("/api/chat", chats.List)
		r.Get("/api/chat/unread", chats.Unread)
		r.Get("/api/chat/{chatId}/messages", chats.Messages)
		r.Post("/api/chat/{chatId}/messages", chats.Send)

		r.Get("/api/notification", notifications.ListUnread)
		r.Get("/api/notification/count", notifications.Count)
		r.Post("/api/notification/create", notifications.Create)
		r.Post("/api/notification/{id}/read", notifications.MarkRead)

		r.Route("/api/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdmin)
			r.Get("/stats", admin.Stats)
			r.Get("/items", admin.Items)
			r.Get("/users", admin.Users)
			r.Delete("/items/{id}", admin.DeleteItem)
			r.Get("/claims", admin.Claims)
			r.Patch("/claims/{itemId}/{claimId}", admin.UpdateClaim)
			r.Get("/chats", admin.Chats)
			r.Get("/chats/{chatId}/messages", admin.ChatMessages)
		})

		r.Post("/api/push/subscribe", pushH.Subscribe)
		r.Delete("/api/push/subscribe", pushH.Unsubscribe)
		r.Get("/ws", wsH.ServeWS)
	})

	return r
}
