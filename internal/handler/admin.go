package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/findme/internal/middleware"
	"github.com/findme/internal/service"
)

// AdminHandler — сквозные выборки и привилегированное решение по заявкам.
// Маршруты дополнительно закрыты middleware.RequireAdmin; сервис проверяет роль сам.
type AdminHandler struct {
	svc *service.Service
}

func NewAdminHandler(svc *service.Service) *AdminHandler {
	return &AdminHandler{svc: svc}
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context(), middleware.GetActor(r.Context()))
	if err != nil {
		writeServiceError(w, "admin.Stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *AdminHandler) Items(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.AdminListItems(r.Context(), middleware.GetActor(r.Context()))
	if err != nil {
		writeServiceError(w, "admin.Items", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.AdminListUsers(r.Context(), middleware.GetActor(r.Context()))
	if err != nil {
		writeServiceError(w, "admin.Users", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *AdminHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.AdminDeleteItem(r.Context(), middleware.GetActor(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, "admin.DeleteItem", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Item deleted"})
}

func (h *AdminHandler) Claims(w http.ResponseWriter, r *http.Request) {
	claims, err := h.svc.AdminListClaims(r.Context(), middleware.GetActor(r.Context()))
	if err != nil {
		writeServiceError(w, "admin.Claims", err)
		return
	}
	writeJSON(w, http.StatusOK, claims)
}

func (h *AdminHandler) UpdateClaim(w http.ResponseWriter, r *http.Request) {
	var req claimStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	it, err := h.svc.AdminRespondToClaim(r.Context(), middleware.GetActor(r.Context()),
		chi.URLParam(r, "itemId"), chi.URLParam(r, "claimId"), req.Status)
	if err != nil {
		writeServiceError(w, "admin.UpdateClaim", err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *AdminHandler) Chats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.svc.AdminListChats(r.Context(), middleware.GetActor(r.Context()))
	if err != nil {
		writeServiceError(w, "admin.Chats", err)
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

func (h *AdminHandler) ChatMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.svc.AdminChatMessages(r.Context(), middleware.GetActor(r.Context()), chi.URLParam(r, "chatId"))
	if err != nil {
		writeServiceError(w, "admin.ChatMessages", err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}
