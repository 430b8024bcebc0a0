// Package pushsvc — HTTP-сервис Web Push: хранит подписки браузеров и рассылает
// уведомления по VAPID. API вызывает его через push.Client.
package pushsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/findme/internal/logger"
	"github.com/findme/internal/middleware"
	"github.com/findme/internal/push"
	"github.com/findme/internal/storage"
)

// Sender доставляет зашифрованный payload на endpoint подписки и возвращает HTTP-статус push-сервиса браузера.
type Sender interface {
	Send(ctx context.Context, payload []byte, sub push.Subscription) (int, error)
}

const notifyTimeout = 10 * time.Second

type Server struct {
	subs      storage.PushSubscriptions
	sender    Sender
	publicKey string
}

// NewServer: sender == nil — подписки сохраняются, отправка не выполняется.
func NewServer(subs storage.PushSubscriptions, sender Sender, publicKey string) *Server {
	return &Server{subs: subs, sender: sender, publicKey: publicKey}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RecoverJSON)
	r.Use(middleware.RequestLog)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/api/vapid-public", s.handleVAPIDPublic)
	r.Route("/api", func(r chi.Router) {
		r.Post("/subscribe", s.handleSubscribe)
		r.Delete("/subscribe", s.handleUnsubscribe)
		r.Post("/notify", s.handleNotify)
	})
	return r
}

func (s *Server) handleVAPIDPublic(w http.ResponseWriter, _ *http.Request) {
	if s.publicKey == "" {
		http.Error(w, "push not configured", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(s.publicKey))
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req push.SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	sub := req.Subscription
	if req.UserID == "" || sub.Endpoint == "" || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		http.Error(w, "user_id and subscription (endpoint, keys.p256dh, keys.auth) required", http.StatusBadRequest)
		return
	}
	if err := s.subs.Add(r.Context(), req.UserID, sub); err != nil {
		logger.Errorf("push: subscribe %s: %v", req.UserID, err)
		http.Error(w, "failed to save subscription", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   string `json:"user_id"`
		Endpoint string `json:"endpoint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" || req.Endpoint == "" {
		http.Error(w, "user_id and endpoint required", http.StatusBadRequest)
		return
	}
	if err := s.subs.Remove(r.Context(), req.UserID, req.Endpoint); err != nil {
		logger.Errorf("push: unsubscribe %s: %v", req.UserID, err)
		http.Error(w, "failed to remove subscription", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type notifyPayload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	var req push.NotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.UserID == "" {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), notifyTimeout)
	defer cancel()
	subs, err := s.subs.List(ctx, req.UserID)
	if err != nil {
		logger.Errorf("push: notify %s: %v", req.UserID, err)
		http.Error(w, "failed to get subscriptions", http.StatusInternalServerError)
		return
	}
	if s.sender != nil {
		payload, _ := json.Marshal(notifyPayload{Title: req.Title, Body: req.Body, Data: req.Data})
		for _, sub := range subs {
			s.deliver(ctx, req.UserID, payload, sub)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// deliver отправляет одно уведомление; подписку, которую браузер отозвал (404/410), удаляет.
func (s *Server) deliver(ctx context.Context, userID string, payload []byte, sub push.Subscription) {
	status, err := s.sender.Send(ctx, payload, sub)
	if err != nil {
		logger.Errorf("push: send %s: %v", sub.Endpoint[:min(50, len(sub.Endpoint))], err)
		return
	}
	if status == http.StatusGone || status == http.StatusNotFound {
		if err := s.subs.Remove(ctx, userID, sub.Endpoint); err != nil {
			logger.Errorf("push: drop expired subscription %s: %v", userID, err)
		}
	}
}
