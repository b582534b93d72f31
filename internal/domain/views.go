package domain

// Явные структуры ответов. Производные счетчики не хранятся, а считаются при чтении.

// AuthorSummary - краткая карточка автора для вложения в ответы.
type AuthorSummary struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url"`
}

// Summary возвращает краткую карточку профиля.
func (p *Profile) Summary() *AuthorSummary {
	if p == nil {
		return nil
	}
	return &AuthorSummary{ID: p.ID, Username: p.Username, Name: p.Name, AvatarURL: p.AvatarURL}
}

// PostView - пост с метаданными вовлеченности для текущего пользователя.
type PostView struct {
	Post
	Author        *AuthorSummary `json:"author,omitempty"`
	LikesCount    int64          `json:"likes_count"`
	CommentsCount int64          `json:"comments_count"`
	IsLiked       bool           `json:"is_liked"`
	IsSaved       bool           `json:"is_saved"`
}

// CommentView - комментарий с реакциями. Replies заполняется только у корневых.
type CommentView struct {
	Comment
	Author        *AuthorSummary `json:"author,omitempty"`
	LikesCount    int64          `json:"likes_count"`
	DislikesCount int64          `json:"dislikes_count"`
	IsLiked       bool           `json:"is_liked"`
	IsDisliked    bool           `json:"is_disliked"`
	Replies       []*CommentView `json:"replies,omitempty"`
}

// ProfileView - профиль с производными счетчиками.
type ProfileView struct {
	Profile
	FollowersCount int64 `json:"followers_count"`
	FollowingCount int64 `json:"following_count"`
	PostsCount     int64 `json:"posts_count"`
	IsFollowing    *bool `json:"is_following,omitempty"`
}

type PostSummary struct {
	ID        string    `json:"id"`
	MediaURL  string    `json:"media_url"`
	MediaType MediaKind `json:"media_type"`
	Caption   string    `json:"caption"`
}

type CommentSummary struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// NotificationView - уведомление с данными об авторе действия и объекте.
type NotificationView struct {
	Notification
	Actor   *AuthorSummary  `json:"actor,omitempty"`
	Post    *PostSummary    `json:"post,omitempty"`
	Comment *CommentSummary `json:"comment,omitempty"`
}

// ReactionState - состояние пары (пользователь, комментарий).
type ReactionState struct {
	IsLiked    bool `json:"isLiked"`
	IsDisliked bool `json:"isDisliked"`
}

// HashtagInfo - сведения о хэштеге, посчитанные по подписям постов.
type HashtagInfo struct {
	Name       string `json:"name"`
	PostsCount int64  `json:"posts_count"`
	Exists     bool   `json:"exists"`
}
