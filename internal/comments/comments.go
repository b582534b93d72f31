// Package comments собирает ветки комментариев глубиной в один уровень
// и управляет созданием, правкой и удалением комментариев.
package comments

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/UkralStul/social-feed-service/internal/dataloader"
	"github.com/UkralStul/social-feed-service/internal/domain"
	"github.com/UkralStul/social-feed-service/internal/notify"
	"github.com/UkralStul/social-feed-service/internal/storage"
)

const (
	DefaultLimit     = 20
	MaxContentLength = 2000
)

type Page = domain.List[*domain.CommentView]

type Service struct {
	store  storage.Storage
	notify *notify.Service
	log    *slog.Logger
}

func New(store storage.Storage, n *notify.Service, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, notify: n, log: log}
}

// List возвращает страницу корневых комментариев (новые сверху) с ответами (старые сверху).
func (s *Service) List(ctx context.Context, viewerID, postID string, args storage.PageArgs) (Page, error) {
	if err := s.postExists(ctx, postID); err != nil {
		return Page{}, err
	}
	args = args.Normalize(DefaultLimit)

	top, total, err := s.store.GetTopLevelComments(ctx, postID, args)
	if err != nil {
		return Page{}, err
	}
	if len(top) == 0 {
		return domain.NewList[*domain.CommentView](nil, total, args.Page, args.Limit), nil
	}

	topIDs := make([]string, len(top))
	for i, c := range top {
		topIDs[i] = c.ID
	}
	// Ответы только для корневых комментариев этой страницы
	replies, err := dataloader.For(ctx, s.store).Replies(ctx, topIDs)
	if err != nil {
		return Page{}, err
	}

	all := append([]*domain.Comment{}, top...)
	for _, id := range topIDs {
		all = append(all, replies[id]...)
	}
	views, err := s.decorate(ctx, viewerID, all)
	if err != nil {
		return Page{}, err
	}

	byID := make(map[string]*domain.CommentView, len(views))
	for _, v := range views {
		byID[v.ID] = v
	}
	items := make([]*domain.CommentView, len(top))
	for i, c := range top {
		v := byID[c.ID]
		v.Replies = make([]*domain.CommentView, 0, len(replies[c.ID]))
		for _, r := range replies[c.ID] {
			v.Replies = append(v.Replies, byID[r.ID])
		}
		items[i] = v
	}
	return domain.NewList(items, total, args.Page, args.Limit), nil
}

// decorate считает реакции для всех комментариев двумя пакетными запросами.
func (s *Service) decorate(ctx context.Context, viewerID string, list []*domain.Comment) ([]*domain.CommentView, error) {
	ids := make([]string, len(list))
	authorIDs := make([]string, len(list))
	for i, c := range list {
		ids[i] = c.ID
		authorIDs[i] = c.UserID
	}

	authors, err := dataloader.For(ctx, s.store).Profiles(ctx, authorIDs)
	if err != nil {
		return nil, err
	}
	likes, err := s.store.CountReactions(ctx, storage.CommentLikes, ids)
	if err != nil {
		return nil, err
	}
	dislikes, err := s.store.CountReactions(ctx, storage.CommentDislikes, ids)
	if err != nil {
		return nil, err
	}
	liked, disliked := map[string]bool{}, map[string]bool{}
	if viewerID != "" {
		if liked, err = s.store.UserReactions(ctx, storage.CommentLikes, viewerID, ids); err != nil {
			return nil, err
		}
		if disliked, err = s.store.UserReactions(ctx, storage.CommentDislikes, viewerID, ids); err != nil {
			return nil, err
		}
	}

	views := make([]*domain.CommentView, len(list))
	for i, c := range list {
		views[i] = &domain.CommentView{
			Comment:       *c,
			Author:        authors[c.UserID].Summary(),
			LikesCount:    likes[c.ID],
			DislikesCount: dislikes[c.ID],
			IsLiked:       liked[c.ID],
			IsDisliked:    disliked[c.ID],
		}
	}
	return views, nil
}

func (s *Service) postExists(ctx context.Context, postID string) error {
	if _, err := s.store.GetPostByID(ctx, postID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.NotFound("post not found")
		}
		return err
	}
	return nil
}

// ValidateContent обрезает пробелы и проверяет длину.
func ValidateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", domain.InvalidInput("comment content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return "", domain.InvalidInput("comment content is too long")
	}
	return content, nil
}

// Create добавляет комментарий или ответ. Ответ можно дать только на корневой комментарий того же поста.
func (s *Service) Create(ctx context.Context, userID, postID, content, parentID string) (*domain.CommentView, error) {
	content, err := ValidateContent(content)
	if err != nil {
		return nil, err
	}
	post, err := s.store.GetPostByID(ctx, postID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.NotFound("post not found")
		}
		return nil, err
	}

	c := &domain.Comment{PostID: postID, UserID: userID, Content: content}
	if parentID != "" {
		parent, err := s.store.GetCommentByID(ctx, parentID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		if parent == nil || parent.PostID != postID {
			return nil, domain.NotFound("parent comment not found")
		}
		if parent.IsReply() {
			return nil, domain.InvalidInput("replies can only be added to top-level comments")
		}
		c.ParentCommentID = &parent.ID
	}

	created, err := s.store.CreateComment(ctx, c)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.NotFound("post not found")
		}
		return nil, err
	}

	_, err = s.notify.Notify(ctx, notify.Request{
		RecipientID: post.UserID,
		ActorID:     userID,
		Type:        domain.NotificationComment,
		PostID:      postID,
		CommentID:   created.ID,
	})
	if err != nil {
		return nil, err
	}

	views, err := s.decorate(ctx, userID, []*domain.Comment{created})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// owned загружает комментарий поста и проверяет авторство.
func (s *Service) owned(ctx context.Context, userID, postID, commentID string) (*domain.Comment, error) {
	c, err := s.store.GetCommentByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.NotFound("comment not found")
		}
		return nil, err
	}
	if c.PostID != postID {
		return nil, domain.NotFound("comment not found")
	}
	if c.UserID != userID {
		return nil, domain.Forbidden("not the author of this comment")
	}
	return c, nil
}

func (s *Service) Update(ctx context.Context, userID, postID, commentID, content string) (*domain.CommentView, error) {
	content, err := ValidateContent(content)
	if err != nil {
		return nil, err
	}
	if _, err := s.owned(ctx, userID, postID, commentID); err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateCommentContent(ctx, commentID, content)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.NotFound("comment not found")
		}
		return nil, err
	}
	views, err := s.decorate(ctx, userID, []*domain.Comment{updated})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// Delete удаляет комментарий вместе с ответами и реакциями.
func (s *Service) Delete(ctx context.Context, userID, postID, commentID string) error {
	if _, err := s.owned(ctx, userID, postID, commentID); err != nil {
		return err
	}
	if err := s.store.DeleteComment(ctx, commentID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.NotFound("comment not found")
		}
		return err
	}
	return nil
}
