package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/findme/internal/middleware"
	"github.com/findme/internal/service"
)

type ChatHandler struct {
	svc *service.Service
}

func NewChatHandler(svc *service.Service) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type getOrCreateChatRequest struct {
	ItemID      string `json:"itemId"`
	OtherUserID string `json:"otherUserId"`
}

// GetOrCreate открывает (или возвращает существующий) чат текущего пользователя с otherUserId по предмету.
func (h *ChatHandler) GetOrCreate(w http.ResponseWriter, r *http.Request) {
	var req getOrCreateChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.svc.GetOrCreateChat(r.Context(), req.ItemID, middleware.GetUserID(r.Context()), req.OtherUserID)
	if err != nil {
		writeServiceError(w, "chat.GetOrCreate", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	chats, err := h.svc.ListMyChats(r.Context(), middleware.GetActor(r.Context()))
	if err != nil {
		writeServiceError(w, "chat.List", err)
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

type unreadResponse struct {
	TotalUnread int `json:"totalUnread"`
}

func (h *ChatHandler) Unread(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.UnreadTotal(r.Context(), middleware.GetActor(r.Context()))
	if err != nil {
		writeServiceError(w, "chat.Unread", err)
		return
	}
	writeJSON(w, http.StatusOK, unreadResponse{TotalUnread: n})
}

func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.svc.GetMessages(r.Context(), middleware.GetActor(r.Context()), chi.URLParam(r, "chatId"))
	if err != nil {
		writeServiceError(w, "chat.Messages", err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := h.svc.SendMessage(r.Context(), middleware.GetActor(r.Context()), chi.URLParam(r, "chatId"), req.Text)
	if err != nil {
		writeServiceError(w, "chat.Send", err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}
