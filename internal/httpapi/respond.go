package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/UkralStul/social-feed-service/internal/domain"
	"github.com/UkralStul/social-feed-service/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// handlerFunc - обработчик, возвращающий ошибку; ответ по ошибке пишет wrap.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

type message struct {
	Message string `json:"message"`
}

func (h *Handler) wrap(fn handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			h.writeError(w, r, err)
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError переводит таксономию ошибок в HTTP-статус. Детали
// инфраструктурных ошибок только логируются.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		h.log.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.Any("error", err),
		)
		writeJSON(w, code, message{Message: "Something went wrong"})
		return
	}
	writeJSON(w, code, message{Message: err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// pageArgs читает page и limit. Некорректные значения заменяются значениями по умолчанию.
func pageArgs(r *http.Request, defLimit int) storage.PageArgs {
	q := r.URL.Query()
	return storage.PageArgs{
		Page:  queryInt(q.Get("page"), 1),
		Limit: queryInt(q.Get("limit"), defLimit),
	}.Normalize(defLimit)
}

func queryInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// idParam возвращает параметр пути, если это UUID.
func idParam(r *http.Request, name string) (string, error) {
	return parseID(chi.URLParam(r, name), name)
}

// parseID проверяет, что raw - uuid, и возвращает его каноническую запись.
func parseID(raw, name string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", domain.InvalidInput("invalid " + name)
	}
	return id.String(), nil
}

// decode читает JSON-тело запроса в T.
func decode[T any](r *http.Request) (T, error) {
	var t T
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil && !errors.Is(err, io.EOF) {
		return t, domain.InvalidInput("malformed JSON body")
	}
	return t, nil
}
