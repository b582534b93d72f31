// Package httpapi - HTTP-интерфейс сервиса: маршруты chi, обработчики и
// преобразование ошибок в ответы.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/UkralStul/social-feed-service/internal/auth"
	"github.com/UkralStul/social-feed-service/internal/comments"
	"github.com/UkralStul/social-feed-service/internal/dataloader"
	"github.com/UkralStul/social-feed-service/internal/engagement"
	"github.com/UkralStul/social-feed-service/internal/feed"
	"github.com/UkralStul/social-feed-service/internal/metrics"
	"github.com/UkralStul/social-feed-service/internal/notify"
	"github.com/UkralStul/social-feed-service/internal/posts"
	"github.com/UkralStul/social-feed-service/internal/profiles"
	"github.com/UkralStul/social-feed-service/internal/ratelimit"
	"github.com/UkralStul/social-feed-service/internal/storage"
	"github.com/UkralStul/social-feed-service/internal/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

const defaultMaxUploadSize = 25 << 20

// Services - прикладные сервисы, которые обслуживает HTTP-слой.
type Services struct {
	Feed       *feed.Service
	Posts      *posts.Service
	Comments   *comments.Service
	Engagement *engagement.Service
	Notify     *notify.Service
	Profiles   *profiles.Service
}

type Options struct {
	Verifier auth.Verifier
	// Limiter ограничивает изменяющие запросы; nil отключает ограничение.
	Limiter       *ratelimit.Limiter
	MaxUploadSize int64
	CORSOrigins   []string
	Log           *slog.Logger
}

type Handler struct {
	store     storage.Storage
	svc       Services
	verifier  auth.Verifier
	limiter   *ratelimit.Limiter
	maxUpload int64
	origins   []string
	log       *slog.Logger
}

func New(store storage.Storage, svc Services, opts Options) *Handler {
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = defaultMaxUploadSize
	}
	return &Handler{
		store:     store,
		svc:       svc,
		verifier:  opts.Verifier,
		limiter:   opts.Limiter,
		maxUpload: opts.MaxUploadSize,
		origins:   opts.CORSOrigins,
		log:       opts.Log,
	}
}

// Routes собирает роутер со всеми middleware.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(telemetry.Middleware)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   h.origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           int((12 * time.Hour).Seconds()),
	}).Handler)
	r.Use(func(next http.Handler) http.Handler { return dataloader.Middleware(h.store, next) })

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	// профиль пользователя доступен без токена
	r.With(h.optionalAuth).Get("/users/{id}", h.wrap(h.getUser))

	r.Group(func(r chi.Router) {
		r.Use(h.authenticate)
		if h.limiter != nil {
			r.Use(h.limiter.Middleware(rateLimitKey))
		}

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", h.wrap(h.listPosts))
			r.Post("/", h.wrap(h.createPost))
			r.Get("/feed", h.wrap(h.followFeed))
			r.Get("/mentions", h.wrap(h.mentions))
			r.Get("/hashtag/{tag}", h.wrap(h.postsByHashtag))

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.wrap(h.getPost))
				r.Put("/", h.wrap(h.updatePost))
				r.Delete("/", h.wrap(h.deletePost))
				r.Post("/like", h.wrap(h.likePost))
				r.Post("/save", h.wrap(h.savePost))
				r.Delete("/save", h.wrap(h.unsavePost))

				r.Get("/comments", h.wrap(h.listComments))
				r.Post("/comments", h.wrap(h.createComment))
				r.Put("/comments/{commentId}", h.wrap(h.updateComment))
				r.Delete("/comments/{commentId}", h.wrap(h.deleteComment))
				r.Post("/comments/{commentId}/like", h.wrap(h.likeComment))
				r.Post("/comments/{commentId}/dislike", h.wrap(h.dislikeComment))
			})
		})

		// /users/{id} зарегистрирован выше, поэтому здесь без вложенного роутера
		r.Get("/users/profile", h.wrap(h.getProfile))
		r.Put("/users/profile", h.wrap(h.updateProfile))
		r.Get("/users/me/saved", h.wrap(h.savedPosts))
		r.Post("/users/follow/{id}", h.wrap(h.follow))
		r.Post("/users/unfollow/{id}", h.wrap(h.unfollow))
		r.Get("/users/{id}/posts", h.wrap(h.userPosts))

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.wrap(h.listNotifications))
			r.Put("/read-all", h.wrap(h.markAllRead))
			r.Put("/{id}/read", h.wrap(h.markRead))
			r.Delete("/{id}", h.wrap(h.deleteNotification))
		})

		r.Get("/hashtags/{tag}", h.wrap(h.hashtagInfo))
	})

	return r
}
