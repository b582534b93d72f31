package domain

import "time"

// MediaKind - тип медиа-вложения поста.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Profile представляет профиль пользователя. Создается подсистемой идентификации.
type Profile struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	Username  string    `json:"username" gorm:"type:varchar(64);not null;uniqueIndex"`
	Name      string    `json:"name" gorm:"type:varchar(255)"`
	Bio       string    `json:"bio" gorm:"type:text"`
	AvatarURL string    `json:"avatar_url" gorm:"type:text"`
	Email     string    `json:"email,omitempty" gorm:"type:varchar(255)"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;default:now()"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null;default:now()"`
}

// Post представляет пост с медиа.
type Post struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    string    `json:"user_id" gorm:"type:uuid;not null;index"`
	Caption   string    `json:"caption" gorm:"type:text"`
	MediaURL  string    `json:"media_url" gorm:"type:text;not null"`
	MediaType MediaKind `json:"media_type" gorm:"type:varchar(16);not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;default:now();index"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null;default:now()"`
}

// Follow - направленное ребро подписки follower -> following.
type Follow struct {
	FollowerID  string    `json:"follower_id" gorm:"type:uuid;primaryKey;check:chk_follows_no_self,follower_id <> following_id"`
	FollowingID string    `json:"following_id" gorm:"type:uuid;primaryKey;index"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null;default:now()"`
}

// Like - лайк поста. Первичный ключ (user_id, post_id) гарантирует уникальность.
type Like struct {
	UserID    string    `json:"user_id" gorm:"type:uuid;primaryKey"`
	PostID    string    `json:"post_id" gorm:"type:uuid;primaryKey;index"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;default:now()"`
}

// Comment представляет комментарий к посту. Ответы ссылаются только на корневые комментарии.
type Comment struct {
	ID              string    `json:"id" gorm:"type:uuid;primaryKey"`
	PostID          string    `json:"post_id" gorm:"type:uuid;not null;index"`
	UserID          string    `json:"user_id" gorm:"type:uuid;not null"`
	ParentCommentID *string   `json:"parent_comment_id" gorm:"type:uuid;index"`
	Content         string    `json:"content" gorm:"type:varchar(2000);not null"`
	CreatedAt       time.Time `json:"created_at" gorm:"not null;default:now()"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"not null;default:now()"`
}

// IsReply сообщает, является ли комментарий ответом.
func (c *Comment) IsReply() bool { return c.ParentCommentID != nil }

type CommentLike struct {
	UserID    string    `json:"user_id" gorm:"type:uuid;primaryKey"`
	CommentID string    `json:"comment_id" gorm:"type:uuid;primaryKey;index"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;default:now()"`
}

type CommentDislike struct {
	UserID    string    `json:"user_id" gorm:"type:uuid;primaryKey"`
	CommentID string    `json:"comment_id" gorm:"type:uuid;primaryKey;index"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;default:now()"`
}

// SavedPost - закладка пользователя.
type SavedPost struct {
	UserID    string    `json:"user_id" gorm:"type:uuid;primaryKey"`
	PostID    string    `json:"post_id" gorm:"type:uuid;primaryKey;index"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;default:now()"`
}

// PostMention - отметка пользователя в посте.
type PostMention struct {
	PostID          string    `json:"post_id" gorm:"type:uuid;primaryKey"`
	MentionedUserID string    `json:"mentioned_user_id" gorm:"type:uuid;primaryKey;index"`
	CreatedAt       time.Time `json:"created_at" gorm:"not null;default:now()"`
}

// NotificationType - причина уведомления.
type NotificationType string

const (
	NotificationLike        NotificationType = "like"
	NotificationComment     NotificationType = "comment"
	NotificationCommentLike NotificationType = "comment_like"
	NotificationFollow      NotificationType = "follow"
)

// Notification создается как побочный эффект действия другого пользователя.
// UserID - получатель.
type Notification struct {
	ID        string           `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    string           `json:"user_id" gorm:"type:uuid;not null;index:idx_notifications_recipient"`
	ActorID   string           `json:"actor_id" gorm:"type:uuid;not null;index"`
	Type      NotificationType `json:"type" gorm:"type:varchar(32);not null"`
	PostID    *string          `json:"post_id" gorm:"type:uuid;index"`
	CommentID *string          `json:"comment_id" gorm:"type:uuid;index"`
	IsRead    bool             `json:"is_read" gorm:"not null;default:false;index:idx_notifications_recipient"`
	CreatedAt time.Time        `json:"created_at" gorm:"not null;default:now()"`
	UpdatedAt time.Time        `json:"updated_at" gorm:"not null;default:now()"`
}

// AllModels возвращает модели для миграции схемы.
func AllModels() []any {
	return []any{
		&Profile{}, &Post{}, &Follow{}, &Like{}, &Comment{},
		&CommentLike{}, &CommentDislike{}, &SavedPost{}, &PostMention{}, &Notification{},
	}
}
