package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/findme/internal/middleware"
	"github.com/findme/internal/model"
	"github.com/findme/internal/service"
)

// ItemHandler — каталог предметов и заявки на них.
type ItemHandler struct {
	svc *service.Service
}

func NewItemHandler(svc *service.Service) *ItemHandler {
	return &ItemHandler{svc: svc}
}

type itemRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Location    string         `json:"location"`
	ContactInfo string         `json:"contactInfo"`
	Type        model.ItemType `json:"type"`
	Image       string         `json:"image"`
}

// readItem принимает JSON или форму. Поле image — имя уже загруженного в хранилище файла.
func readItem(w http.ResponseWriter, r *http.Request) (service.ItemInput, bool) {
	var req itemRequest
	if isForm(r) {
		if err := r.ParseMultipartForm(1 << 20); err != nil && err != http.ErrNotMultipart {
			writeError(w, http.StatusBadRequest, "invalid form")
			return service.ItemInput{}, false
		}
		req = itemRequest{
			Title:       r.FormValue("title"),
			Description: r.FormValue("description"),
			Location:    r.FormValue("location"),
			ContactInfo: r.FormValue("contactInfo"),
			Type:        model.ItemType(r.FormValue("type")),
			Image:       r.FormValue("image"),
		}
	} else if !decodeJSON(w, r, &req) {
		return service.ItemInput{}, false
	}
	return service.ItemInput{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		ContactInfo: req.ContactInfo,
		Type:        req.Type,
		Image:       req.Image,
	}, true
}

func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := readItem(w, r)
	if !ok {
		return
	}
	it, err := h.svc.CreateItem(r.Context(), middleware.GetActor(r.Context()), in)
	if err != nil {
		writeServiceError(w, "item.Create", err)
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListItems(r.Context())
	if err != nil {
		writeServiceError(w, "item.List", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ItemHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListMyItems(r.Context(), middleware.GetActor(r.Context()))
	if err != nil {
		writeServiceError(w, "item.ListMine", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	it, err := h.svc.GetItemForEdit(r.Context(), middleware.GetActor(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "item.Get", err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	in, ok := readItem(w, r)
	if !ok {
		return
	}
	it, err := h.svc.UpdateItem(r.Context(), middleware.GetActor(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, "item.Update", err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteItem(r.Context(), middleware.GetActor(r.Context()), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, "item.Delete", err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "Item deleted"})
}

type claimRequest struct {
	ClaimType model.ItemType `json:"claimType"`
	Message   string         `json:"message"`
}

func (h *ItemHandler) Claim(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	it, err := h.svc.SubmitClaim(r.Context(), middleware.GetActor(r.Context()), chi.URLParam(r, "id"),
		service.ClaimInput{ClaimType: req.ClaimType, Message: req.Message})
	if err != nil {
		writeServiceError(w, "item.Claim", err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *ItemHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	it, err := h.svc.ResolveItem(r.Context(), middleware.GetActor(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "item.Resolve", err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

type claimStatusRequest struct {
	Status model.ClaimStatus `json:"status"`
}

// RespondToClaim — решение владельца: {"status": "approved"|"rejected"}.
func (h *ItemHandler) RespondToClaim(w http.ResponseWriter, r *http.Request) {
	var req claimStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	it, err := h.svc.RespondToClaim(r.Context(), middleware.GetActor(r.Context()),
		chi.URLParam(r, "id"), chi.URLParam(r, "claimId"), req.Status)
	if err != nil {
		writeServiceError(w, "item.RespondToClaim", err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}
