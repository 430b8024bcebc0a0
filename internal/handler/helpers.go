package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/findme/internal/logger"
	"github.com/findme/internal/service"
)

// Тело ошибки в формате фронтенда: {"message": "..."}.
type errorResponse struct {
	Message string `json:"message"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("writeJSON encode: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Message: msg})
}

// writeServiceError переводит вид ошибки сервиса в HTTP-статус; прочее — 500 с записью в лог.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	var de *service.Error
	if !errors.As(err, &de) {
		logger.Errorf("%s: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	switch {
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, de.Message)
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, de.Message)
	case errors.Is(err, service.ErrConflict):
		writeError(w, http.StatusConflict, de.Message)
	case errors.Is(err, service.ErrBadRequest):
		writeError(w, http.StatusBadRequest, de.Message)
	default:
		logger.Errorf("%s: %v", op, err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON читает тело; пустое тело — не ошибка (поля останутся нулевыми).
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		return true
	}
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid body")
		return false
	}
	return true
}

func isForm(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "multipart/form-data") || strings.HasPrefix(ct, "application/x-www-form-urlencoded")
}
