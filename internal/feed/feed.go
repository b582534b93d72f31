// Package feed собирает ленты постов в обратном хронологическом порядке
// и дополняет каждую страницу метаданными вовлеченности.
package feed

import (
	"context"
	"errors"
	"strings"

	"github.com/UkralStul/social-feed-service/internal/dataloader"
	"github.com/UkralStul/social-feed-service/internal/domain"
	"github.com/UkralStul/social-feed-service/internal/storage"
)

const (
	DefaultLimit      = 10
	SavedDefaultLimit = 20
)

type Page = domain.List[*domain.PostView]

type Service struct {
	store storage.Storage
}

func New(store storage.Storage) *Service {
	return &Service{store: store}
}

// Feed - лента подписок пользователя. Пока пользователь ни на кого не подписан,
// отдается общая лента (режим знакомства).
func (s *Service) Feed(ctx context.Context, userID string, args storage.PageArgs) (Page, error) {
	following, err := s.store.ListFollowingIDs(ctx, userID)
	if err != nil {
		return Page{}, err
	}
	authors := append([]string{userID}, following...)

	q := storage.PostQuery{}
	if len(authors) > 1 {
		q.AuthorIDs = authors
	}
	return s.list(ctx, userID, q, args)
}

// All - все посты без фильтра подписок.
func (s *Service) All(ctx context.Context, viewerID string, args storage.PageArgs) (Page, error) {
	return s.list(ctx, viewerID, storage.PostQuery{}, args)
}

// ByHashtag - посты, в подписи которых встречается #tag без учета регистра.
func (s *Service) ByHashtag(ctx context.Context, viewerID, tag string, args storage.PageArgs) (Page, error) {
	tag, err := NormalizeTag(tag)
	if err != nil {
		return Page{}, err
	}
	return s.list(ctx, viewerID, storage.PostQuery{Hashtag: tag}, args)
}

// Mentions - посты, в которых отмечен пользователь.
func (s *Service) Mentions(ctx context.Context, userID string, args storage.PageArgs) (Page, error) {
	return s.list(ctx, userID, storage.PostQuery{MentionedUserID: userID}, args)
}

// UserPosts - посты одного автора. viewerID может быть пустым.
func (s *Service) UserPosts(ctx context.Context, viewerID, authorID string, args storage.PageArgs) (Page, error) {
	if _, err := s.store.GetProfile(ctx, authorID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Page{}, domain.NotFound("user not found")
		}
		return Page{}, err
	}
	return s.list(ctx, viewerID, storage.PostQuery{AuthorIDs: []string{authorID}}, args)
}

// Saved - закладки пользователя, сначала недавно сохраненные.
func (s *Service) Saved(ctx context.Context, userID string, args storage.PageArgs) (Page, error) {
	args = args.Normalize(SavedDefaultLimit)
	posts, total, err := s.store.ListSavedPosts(ctx, userID, args)
	if err != nil {
		return Page{}, err
	}
	views, err := s.Decorate(ctx, userID, posts)
	if err != nil {
		return Page{}, err
	}
	return domain.NewList(views, total, args.Page, args.Limit), nil
}

// Post возвращает один пост с метаданными.
func (s *Service) Post(ctx context.Context, viewerID, postID string) (*domain.PostView, error) {
	post, err := s.store.GetPostByID(ctx, postID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.NotFound("post not found")
		}
		return nil, err
	}
	views, err := s.Decorate(ctx, viewerID, []*domain.Post{post})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// HashtagInfo считает посты с хэштегом.
func (s *Service) HashtagInfo(ctx context.Context, tag string) (*domain.HashtagInfo, error) {
	tag, err := NormalizeTag(tag)
	if err != nil {
		return nil, err
	}
	n, err := s.store.CountPosts(ctx, storage.PostQuery{Hashtag: tag})
	if err != nil {
		return nil, err
	}
	return &domain.HashtagInfo{Name: tag, PostsCount: n, Exists: n > 0}, nil
}

func (s *Service) list(ctx context.Context, viewerID string, q storage.PostQuery, args storage.PageArgs) (Page, error) {
	args = args.Normalize(DefaultLimit)
	posts, total, err := s.store.ListPosts(ctx, q, args)
	if err != nil {
		return Page{}, err
	}
	views, err := s.Decorate(ctx, viewerID, posts)
	if err != nil {
		return Page{}, err
	}
	return domain.NewList(views, total, args.Page, args.Limit), nil
}

// Decorate считает лайки, комментарии и флаги текущего пользователя только для переданной страницы.
func (s *Service) Decorate(ctx context.Context, viewerID string, posts []*domain.Post) ([]*domain.PostView, error) {
	if len(posts) == 0 {
		return []*domain.PostView{}, nil
	}
	ids := make([]string, len(posts))
	authorIDs := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
		authorIDs[i] = p.UserID
	}

	authors, err := dataloader.For(ctx, s.store).Profiles(ctx, authorIDs)
	if err != nil {
		return nil, err
	}
	likes, err := s.store.CountReactions(ctx, storage.PostLikes, ids)
	if err != nil {
		return nil, err
	}
	comments, err := s.store.CountTopLevelComments(ctx, ids)
	if err != nil {
		return nil, err
	}

	liked, saved := map[string]bool{}, map[string]bool{}
	if viewerID != "" {
		if liked, err = s.store.UserReactions(ctx, storage.PostLikes, viewerID, ids); err != nil {
			return nil, err
		}
		if saved, err = s.store.UserReactions(ctx, storage.SavedPosts, viewerID, ids); err != nil {
			return nil, err
		}
	}

	views := make([]*domain.PostView, len(posts))
	for i, p := range posts {
		views[i] = &domain.PostView{
			Post:          *p,
			Author:        authors[p.UserID].Summary(),
			LikesCount:    likes[p.ID],
			CommentsCount: comments[p.ID],
			IsLiked:       liked[p.ID],
			IsSaved:       saved[p.ID],
		}
	}
	return views, nil
}

// NormalizeTag убирает ведущий # и приводит тег к нижнему регистру.
func NormalizeTag(tag string) (string, error) {
	tag = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#")))
	if tag == "" || strings.ContainsAny(tag, " \t\n#") {
		return "", domain.InvalidInput("invalid hashtag")
	}
	return tag, nil
}
