// Package posts управляет жизненным циклом постов: загрузка медиа,
// отметки пользователей, редактирование подписи и удаление.
package posts

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/UkralStul/social-feed-service/internal/domain"
	"github.com/UkralStul/social-feed-service/internal/feed"
	"github.com/UkralStul/social-feed-service/internal/media"
	"github.com/UkralStul/social-feed-service/internal/storage"
)

type CreateInput struct {
	Caption   string
	MediaType string
	Mentions  []string // имена пользователей, с @ или без
	Media     *media.Upload
}

type Service struct {
	store storage.Storage
	media media.Store
	feed  *feed.Service
	log   *slog.Logger
}

func New(store storage.Storage, m media.Store, f *feed.Service, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, media: m, feed: f, log: log}
}

// Create загружает медиа и создает пост. Неизвестные имена в отметках пропускаются.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*domain.PostView, error) {
	if in.Media == nil || len(in.Media.Data) == 0 {
		return nil, domain.InvalidInput("media file is required")
	}
	kind, ok := media.Kind(in.Media.ContentType)
	if !ok {
		return nil, domain.InvalidInput("invalid file type, supported: images (JPEG, PNG, GIF, WebP) and videos (MP4, WebM, QuickTime)")
	}
	if mt := strings.TrimSpace(in.MediaType); mt != "" && domain.MediaKind(mt) != kind {
		return nil, domain.InvalidInput("media type does not match file type")
	}

	if _, err := s.store.GetProfile(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.NotFound("user profile not found")
		}
		return nil, err
	}

	mentioned, err := s.resolveMentions(ctx, in.Mentions)
	if err != nil {
		return nil, err
	}

	key := media.NewKey(media.PrefixPosts, in.Media.ContentType, in.Media.Filename)
	url, err := s.media.Put(ctx, key, in.Media.ContentType, in.Media.Data)
	if err != nil {
		return nil, err
	}

	post, err := s.store.CreatePost(ctx, &domain.Post{
		UserID:    userID,
		Caption:   in.Caption,
		MediaURL:  url,
		MediaType: kind,
	}, mentioned)
	if err != nil {
		if delErr := s.media.Delete(ctx, key); delErr != nil {
			s.log.Warn("failed to remove orphaned media", "key", key, "error", delErr)
		}
		return nil, err
	}
	s.log.Info("post created", "post_id", post.ID, "user_id", userID, "media_type", kind, "mentions", len(mentioned))

	views, err := s.feed.Decorate(ctx, userID, []*domain.Post{post})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

func (s *Service) resolveMentions(ctx context.Context, usernames []string) ([]string, error) {
	seen := make(map[string]bool, len(usernames))
	var names []string
	for _, u := range usernames {
		u = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(u), "@"))
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		names = append(names, u)
	}
	if len(names) == 0 {
		return nil, nil
	}
	profiles, err := s.store.GetProfilesByUsernames(ctx, names)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ID
	}
	return ids, nil
}

// owned загружает пост и проверяет, что им владеет userID.
func (s *Service) owned(ctx context.Context, userID, postID string) (*domain.Post, error) {
	post, err := s.store.GetPostByID(ctx, postID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.NotFound("post not found")
		}
		return nil, err
	}
	if post.UserID != userID {
		return nil, domain.Forbidden("not the author of this post")
	}
	return post, nil
}

// UpdateCaption меняет подпись. Доступно только автору.
func (s *Service) UpdateCaption(ctx context.Context, userID, postID, caption string) (*domain.PostView, error) {
	if _, err := s.owned(ctx, userID, postID); err != nil {
		return nil, err
	}
	post, err := s.store.UpdatePostCaption(ctx, postID, caption)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.NotFound("post not found")
		}
		return nil, err
	}
	views, err := s.feed.Decorate(ctx, userID, []*domain.Post{post})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// Delete удаляет медиа-объект, затем пост со всеми зависимыми записями.
func (s *Service) Delete(ctx context.Context, userID, postID string) error {
	post, err := s.owned(ctx, userID, postID)
	if err != nil {
		return err
	}
	if key, ok := s.media.KeyFromURL(post.MediaURL); ok {
		if err := s.media.Delete(ctx, key); err != nil {
			return err
		}
	} else {
		s.log.Warn("post media is not managed by this store", "post_id", postID, "media_url", post.MediaURL)
	}

	if err := s.store.DeletePost(ctx, postID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.NotFound("post not found")
		}
		return err
	}
	s.log.Info("post deleted", "post_id", postID, "user_id", userID)
	return nil
}
