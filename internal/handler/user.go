package handler

import (
	"net/http"

	"github.com/findme/internal/middleware"
	"github.com/findme/internal/service"
)

type UserHandler struct {
	svc *service.Service
}

func NewUserHandler(svc *service.Service) *UserHandler {
	return &UserHandler{svc: svc}
}

// Me возвращает профиль текущего пользователя из справочника.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Me(r.Context(), middleware.GetActor(r.Context()))
	if err != nil {
		writeServiceError(w, "user.Me", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
