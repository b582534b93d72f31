// Package profiles отдает профили с производными счетчиками и обновляет профиль владельца.
package profiles

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/UkralStul/social-feed-service/internal/domain"
	"github.com/UkralStul/social-feed-service/internal/media"
	"github.com/UkralStul/social-feed-service/internal/storage"
)

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_.]{3,30}$`)

const (
	maxNameLength = 100
	maxBioLength  = 500
)

// UpdateInput - частичное обновление: nil и пустые строки не меняют поле.
type UpdateInput struct {
	Username *string
	Name     *string
	Bio      *string
	Avatar   *media.Upload
}

type Service struct {
	store storage.Storage
	media media.Store
	log   *slog.Logger
}

func New(store storage.Storage, m media.Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, media: m, log: log}
}

// Get возвращает профиль со счетчиками. is_following заполняется для чужого профиля.
func (s *Service) Get(ctx context.Context, viewerID, userID string) (*domain.ProfileView, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.NotFound("user not found")
		}
		return nil, err
	}
	return s.view(ctx, viewerID, p)
}

func (s *Service) view(ctx context.Context, viewerID string, p *domain.Profile) (*domain.ProfileView, error) {
	followers, err := s.store.CountFollowers(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	following, err := s.store.CountFollowing(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	posts, err := s.store.CountPosts(ctx, storage.PostQuery{AuthorIDs: []string{p.ID}})
	if err != nil {
		return nil, err
	}
	v := &domain.ProfileView{Profile: *p, FollowersCount: followers, FollowingCount: following, PostsCount: posts}
	if viewerID != "" && viewerID != p.ID {
		ok, err := s.store.IsFollowing(ctx, viewerID, p.ID)
		if err != nil {
			return nil, err
		}
		v.IsFollowing = &ok
	}
	return v, nil
}

// Update меняет профиль владельца. Новый аватар заменяет старый; старый объект удаляется без гарантий.
func (s *Service) Update(ctx context.Context, userID string, in UpdateInput) (*domain.ProfileView, error) {
	cur, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.NotFound("user profile not found")
		}
		return nil, err
	}
	next := *cur

	if v := trimmed(in.Username); v != "" {
		if !usernameRe.MatchString(v) {
			return nil, domain.InvalidInput("username must be 3-30 characters: letters, digits, '_' or '.'")
		}
		next.Username = v
	}
	if v := trimmed(in.Name); v != "" {
		if len([]rune(v)) > maxNameLength {
			return nil, domain.InvalidInput("name is too long")
		}
		next.Name = v
	}
	if v := trimmed(in.Bio); v != "" {
		if len([]rune(v)) > maxBioLength {
			return nil, domain.InvalidInput("bio is too long")
		}
		next.Bio = v
	}

	var newKey string
	if in.Avatar != nil && len(in.Avatar.Data) > 0 {
		if !media.IsImage(in.Avatar.ContentType) {
			return nil, domain.InvalidInput("avatar must be an image (JPEG, PNG, GIF, WebP)")
		}
		newKey = media.NewKey(media.PrefixAvatars, in.Avatar.ContentType, in.Avatar.Filename)
		url, err := s.media.Put(ctx, newKey, in.Avatar.ContentType, in.Avatar.Data)
		if err != nil {
			return nil, err
		}
		next.AvatarURL = url
	}

	updated, err := s.store.UpdateProfile(ctx, &next)
	if err != nil {
		if newKey != "" {
			s.removeBestEffort(ctx, newKey)
		}
		if errors.Is(err, storage.ErrConflict) {
			return nil, domain.InvalidInput("username is already taken")
		}
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.NotFound("user profile not found")
		}
		return nil, err
	}

	if newKey != "" && cur.AvatarURL != "" {
		if oldKey, ok := s.media.KeyFromURL(cur.AvatarURL); ok {
			s.removeBestEffort(ctx, oldKey)
		}
	}
	return s.view(ctx, "", updated)
}

func (s *Service) removeBestEffort(ctx context.Context, key string) {
	if err := s.media.Delete(ctx, key); err != nil {
		s.log.Warn("failed to delete avatar object", "key", key, "error", err)
	}
}

func trimmed(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}
