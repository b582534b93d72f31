package storage

import (
	"context"
	"errors"
	"math"

	"github.com/UkralStul/social-feed-service/internal/domain"
)

var (
	// ErrNotFound возвращается, если запись отсутствует.
	ErrNotFound = errors.New("record not found")
	// ErrConflict возвращается при нарушении ограничения уникальности.
	ErrConflict = errors.New("unique constraint violation")
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
	// MaxPage не дает (Page-1)*Limit переполнить int.
	MaxPage = math.MaxInt32 / MaxLimit
)

// PageArgs - аргументы offset/limit пагинации. Page начинается с 1.
type PageArgs struct {
	Page  int
	Limit int
}

// Normalize подставляет значения по умолчанию и ограничивает limit.
func (p PageArgs) Normalize(defLimit int) PageArgs {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Limit < 1 {
		p.Limit = defLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

func (p PageArgs) Offset() int { return (p.Page - 1) * p.Limit }

// PostQuery - фильтр выборки постов. Пустой фильтр означает все посты.
type PostQuery struct {
	AuthorIDs       []string
	Hashtag         string
	MentionedUserID string
}

// Reaction - одно из отношений вида (user_id, target_id) с уникальностью по паре.
type Reaction int

const (
	PostLikes Reaction = iota
	CommentLikes
	CommentDislikes
	SavedPosts
)

func (r Reaction) String() string {
	switch r {
	case PostLikes:
		return "likes"
	case CommentLikes:
		return "comment_likes"
	case CommentDislikes:
		return "comment_dislikes"
	case SavedPosts:
		return "saved_posts"
	}
	return "unknown"
}

// NotificationFilter выбирает уведомления для отзыва. Пустые поля не участвуют в фильтре.
type NotificationFilter struct {
	RecipientID string
	ActorID     string
	Type        domain.NotificationType
	PostID      string
	CommentID   string
}

type ProfileStore interface {
	CreateProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error)
	GetProfile(ctx context.Context, id string) (*domain.Profile, error)
	GetProfilesByIDs(ctx context.Context, ids []string) (map[string]*domain.Profile, error)
	GetProfilesByUsernames(ctx context.Context, usernames []string) ([]*domain.Profile, error)
	UpdateProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error)
}

type PostStore interface {
	CreatePost(ctx context.Context, post *domain.Post, mentionedUserIDs []string) (*domain.Post, error)
	GetPostByID(ctx context.Context, id string) (*domain.Post, error)
	GetPostsByIDs(ctx context.Context, ids []string) (map[string]*domain.Post, error)
	UpdatePostCaption(ctx context.Context, id, caption string) (*domain.Post, error)
	// DeletePost удаляет пост вместе с комментариями, реакциями, закладками, отметками и уведомлениями.
	DeletePost(ctx context.Context, id string) error
	// ListPosts возвращает страницу по created_at DESC, id DESC и точное общее число.
	ListPosts(ctx context.Context, q PostQuery, args PageArgs) ([]*domain.Post, int64, error)
	CountPosts(ctx context.Context, q PostQuery) (int64, error)
	ListSavedPosts(ctx context.Context, userID string, args PageArgs) ([]*domain.Post, int64, error)
}

type FollowStore interface {
	// AddFollow возвращает ErrConflict, если ребро уже существует.
	AddFollow(ctx context.Context, followerID, followingID string) error
	RemoveFollow(ctx context.Context, followerID, followingID string) (bool, error)
	IsFollowing(ctx context.Context, followerID, followingID string) (bool, error)
	ListFollowingIDs(ctx context.Context, followerID string) ([]string, error)
	CountFollowers(ctx context.Context, userID string) (int64, error)
	CountFollowing(ctx context.Context, userID string) (int64, error)
}

type CommentStore interface {
	CreateComment(ctx context.Context, c *domain.Comment) (*domain.Comment, error)
	GetCommentByID(ctx context.Context, id string) (*domain.Comment, error)
	GetCommentsByIDs(ctx context.Context, ids []string) (map[string]*domain.Comment, error)
	UpdateCommentContent(ctx context.Context, id, content string) (*domain.Comment, error)
	// DeleteComment удаляет комментарий, его ответы, реакции и уведомления.
	DeleteComment(ctx context.Context, id string) error
	// GetTopLevelComments - корневые комментарии поста, created_at DESC, id DESC.
	GetTopLevelComments(ctx context.Context, postID string, args PageArgs) ([]*domain.Comment, int64, error)
	// GetRepliesByParentIDs - ответы одним запросом, created_at ASC, id ASC.
	GetRepliesByParentIDs(ctx context.Context, parentIDs []string) (map[string][]*domain.Comment, error)
	// CountTopLevelComments - число корневых комментариев по постам.
	CountTopLevelComments(ctx context.Context, postIDs []string) (map[string]int64, error)
}

type ReactionStore interface {
	// AddReaction возвращает ErrConflict, если пара уже существует.
	AddReaction(ctx context.Context, r Reaction, userID, targetID string) error
	RemoveReaction(ctx context.Context, r Reaction, userID, targetID string) (bool, error)
	HasReaction(ctx context.Context, r Reaction, userID, targetID string) (bool, error)
	CountReactions(ctx context.Context, r Reaction, targetIDs []string) (map[string]int64, error)
	// UserReactions возвращает подмножество targetIDs, на которые у пользователя есть реакция.
	UserReactions(ctx context.Context, r Reaction, userID string, targetIDs []string) (map[string]bool, error)
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *domain.Notification) (*domain.Notification, error)
	NotificationExists(ctx context.Context, f NotificationFilter) (bool, error)
	DeleteNotifications(ctx context.Context, f NotificationFilter) (int64, error)
	ListNotifications(ctx context.Context, recipientID string, args PageArgs) ([]*domain.Notification, error)
	CountNotifications(ctx context.Context, recipientID string, unreadOnly bool) (int64, error)
	// MarkNotificationsRead помечает прочитанными записи получателя; id == "" означает все.
	MarkNotificationsRead(ctx context.Context, recipientID, id string) (int64, error)
	DeleteNotification(ctx context.Context, recipientID, id string) (int64, error)
}

// Storage определяет контракт реляционного хранилища.
type Storage interface {
	ProfileStore
	PostStore
	FollowStore
	CommentStore
	ReactionStore
	NotificationStore
}
