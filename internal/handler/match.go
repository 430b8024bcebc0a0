package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/findme/internal/middleware"
	"github.com/findme/internal/model"
	"github.com/findme/internal/service"
)

type MatchHandler struct {
	svc *service.Service
}

func NewMatchHandler(svc *service.Service) *MatchHandler {
	return &MatchHandler{svc: svc}
}

type createMatchRequest struct {
	ItemID string         `json:"itemId"`
	Type   model.ItemType `json:"type"`
}

func (h *MatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := h.svc.CreateMatch(r.Context(), middleware.GetActor(r.Context()), req.ItemID, req.Type)
	if err != nil {
		writeServiceError(w, "match.Create", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// MyRequests — отклики на предметы текущего пользователя.
func (h *MatchHandler) MyRequests(w http.ResponseWriter, r *http.Request) {
	matches, err := h.svc.ListMyItemMatches(r.Context(), middleware.GetActor(r.Context()))
	if err != nil {
		writeServiceError(w, "match.MyRequests", err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

type acceptMatchResponse struct {
	Message string       `json:"message"`
	Match   *model.Match `json:"match"`
}

func (h *MatchHandler) Accept(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.AcceptMatch(r.Context(), middleware.GetActor(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "match.Accept", err)
		return
	}
	writeJSON(w, http.StatusOK, acceptMatchResponse{Message: "Match accepted", Match: m})
}
