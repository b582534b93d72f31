package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/UkralStul/social-feed-service/internal/auth"
	"github.com/UkralStul/social-feed-service/internal/domain"
)

// authenticate требует bearer-токен и кладет пользователя в контекст.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := h.identify(r)
		if err == nil && id.UserID == "" {
			err = domain.Unauthorized("No authorization header")
		}
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}

// optionalAuth пропускает анонимные запросы, но отклоняет недействительный токен.
func (h *Handler) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := h.identify(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if id.UserID != "" {
			r = r.WithContext(auth.WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// identify возвращает пустую Identity, если заголовка нет.
func (h *Handler) identify(r *http.Request) (auth.Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return auth.Identity{}, nil
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return auth.Identity{}, domain.Unauthorized("No token provided")
	}
	id, err := h.verifier.Verify(r.Context(), strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			return auth.Identity{}, domain.Unauthorized("Invalid or expired token")
		}
		return auth.Identity{}, err
	}
	return id, nil
}

// rateLimitKey - ключ ограничителя частоты: id пользователя.
func rateLimitKey(r *http.Request) string {
	return auth.UserID(r.Context())
}
