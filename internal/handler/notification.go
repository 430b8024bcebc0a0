package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/findme/internal/middleware"
	"github.com/findme/internal/service"
)

type NotificationHandler struct {
	svc *service.Service
}

func NewNotificationHandler(svc *service.Service) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

func (h *NotificationHandler) ListUnread(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListUnread(r.Context(), middleware.GetActor(r.Context()))
	if err != nil {
		writeServiceError(w, "notification.ListUnread", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type successResponse struct {
	Success bool `json:"success"`
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.MarkRead(r.Context(), middleware.GetActor(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, "notification.MarkRead", err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

type createNotificationRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
	Link    string `json:"link"`
}

func (h *NotificationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createNotificationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := h.svc.CreateNotification(r.Context(), req.UserID, req.Message, req.Link)
	if err != nil {
		writeServiceError(w, "notification.Create", err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

type countResponse struct {
	Count int `json:"count"`
}

func (h *NotificationHandler) Count(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.UnreadCount(r.Context(), middleware.GetActor(r.Context()))
	if err != nil {
		writeServiceError(w, "notification.Count", err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: n})
}
