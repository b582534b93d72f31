// Package engagement реализует переключатели лайков, реакции на комментарии,
// подписки и закладки. Уникальность обеспечивает хранилище; конфликт вставки
// означает, что параллельный запрос уже привел пару в нужное состояние.
package engagement

import (
	"context"
	"errors"
	"log/slog"

	"github.com/UkralStul/social-feed-service/internal/domain"
	"github.com/UkralStul/social-feed-service/internal/metrics"
	"github.com/UkralStul/social-feed-service/internal/notify"
	"github.com/UkralStul/social-feed-service/internal/storage"
)

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

// insert добавляет пару и сообщает, была ли она вставлена именно этим вызовом.
func (s *Service) insert(ctx context.Context, r storage.Reaction, userID, targetID string) (bool, error) {
	err := s.store.AddReaction(ctx, r, userID, targetID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrConflict):
		metrics.ConstraintRaces.WithLabelValues(r.String()).Inc()
		return false, nil
	case errors.Is(err, storage.ErrNotFound):
		return false, domain.NotFound("target not found")
	default:
		return false, err
	}
}

// === Post likes ===

// ToggleLike переключает лайк поста и возвращает новое состояние.
func (s *Service) ToggleLike(ctx context.Context, userID, postID string) (bool, error) {
	post, err := s.store.GetPostByID(ctx, postID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, domain.NotFound("post not found")
		}
		return false, err
	}

	liked, err := s.store.HasReaction(ctx, storage.PostLikes, userID, postID)
	if err != nil {
		return false, err
	}

	if liked {
		if _, err := s.store.RemoveReaction(ctx, storage.PostLikes, userID, postID); err != nil {
			return false, err
		}
		if _, err := s.notify.Retract(ctx, notify.Request{ActorID: userID, Type: domain.NotificationLike, PostID: postID}); err != nil {
			return false, err
		}
		metrics.Engagement.WithLabelValues("unlike").Inc()
		return false, nil
	}

	inserted, err := s.insert(ctx, storage.PostLikes, userID, postID)
	if err != nil {
		return false, err
	}
	if !inserted {
		return true, nil
	}
	metrics.Engagement.WithLabelValues("like").Inc()

	req := notify.Request{
		RecipientID: post.UserID,
		ActorID:     userID,
		Type:        domain.NotificationLike,
		PostID:      postID,
	}
	if _, err := s.notify.Notify(ctx, req); err != nil {
		return true, err
	}
	return true, s.retractIfGone(ctx, storage.PostLikes, userID, postID, req)
}

// retractIfGone отзывает только что созданное уведомление, если параллельный
// запрос успел снять реакцию до его создания.
func (s *Service) retractIfGone(ctx context.Context, r storage.Reaction, userID, targetID string, req notify.Request) error {
	still, err := s.store.HasReaction(ctx, r, userID, targetID)
	if err != nil || still {
		return err
	}
	_, err = s.notify.Retract(ctx, req)
	return err
}

// === Comment reactions ===

// commentOf загружает комментарий и проверяет, что он принадлежит посту.
func (s *Service) commentOf(ctx context.Context, postID, commentID string) (*domain.Comment, error) {
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
	return c, nil
}

// State читает текущее состояние пары из хранилища.
func (s *Service) State(ctx context.Context, userID, commentID string) (domain.ReactionState, error) {
	liked, err := s.store.HasReaction(ctx, storage.CommentLikes, userID, commentID)
	if err != nil {
		return domain.ReactionState{}, err
	}
	disliked, err := s.store.HasReaction(ctx, storage.CommentDislikes, userID, commentID)
	if err != nil {
		return domain.ReactionState{}, err
	}
	return domain.ReactionState{IsLiked: liked, IsDisliked: disliked}, nil
}

func (s *Service) retractCommentLike(ctx context.Context, userID string, c *domain.Comment) error {
	_, err := s.notify.Retract(ctx, notify.Request{
		ActorID:   userID,
		Type:      domain.NotificationCommentLike,
		CommentID: c.ID,
	})
	return err
}

// LikeComment: Liked -> Neutral, Neutral|Disliked -> Liked.
func (s *Service) LikeComment(ctx context.Context, userID, postID, commentID string) (domain.ReactionState, error) {
	c, err := s.commentOf(ctx, postID, commentID)
	if err != nil {
		return domain.ReactionState{}, err
	}

	liked, err := s.store.HasReaction(ctx, storage.CommentLikes, userID, commentID)
	if err != nil {
		return domain.ReactionState{}, err
	}

	if liked {
		if _, err := s.store.RemoveReaction(ctx, storage.CommentLikes, userID, commentID); err != nil {
			return domain.ReactionState{}, err
		}
		if _, err := s.store.RemoveReaction(ctx, storage.CommentDislikes, userID, commentID); err != nil {
			return domain.ReactionState{}, err
		}
		if err := s.retractCommentLike(ctx, userID, c); err != nil {
			return domain.ReactionState{}, err
		}
		metrics.Engagement.WithLabelValues("comment_unlike").Inc()
		return s.State(ctx, userID, commentID)
	}

	// Сначала снимаем дизлайк: при сбое между шагами пара остается нейтральной.
	if _, err := s.store.RemoveReaction(ctx, storage.CommentDislikes, userID, commentID); err != nil {
		return domain.ReactionState{}, err
	}
	inserted, err := s.insert(ctx, storage.CommentLikes, userID, commentID)
	if err != nil {
		return domain.ReactionState{}, err
	}
	// Параллельный Dislike мог вставить дизлайк между шагами.
	if _, err := s.store.RemoveReaction(ctx, storage.CommentDislikes, userID, commentID); err != nil {
		return domain.ReactionState{}, err
	}

	if inserted {
		metrics.Engagement.WithLabelValues("comment_like").Inc()
		req := notify.Request{
			RecipientID: c.UserID,
			ActorID:     userID,
			Type:        domain.NotificationCommentLike,
			PostID:      c.PostID,
			CommentID:   c.ID,
		}
		if _, err := s.notify.NotifyOnce(ctx, req); err != nil {
			return domain.ReactionState{}, err
		}
		if err := s.retractIfGone(ctx, storage.CommentLikes, userID, commentID, req); err != nil {
			return domain.ReactionState{}, err
		}
	}
	return s.State(ctx, userID, commentID)
}

// DislikeComment: Disliked -> Neutral, Neutral|Liked -> Disliked. Дизлайки не уведомляют.
func (s *Service) DislikeComment(ctx context.Context, userID, postID, commentID string) (domain.ReactionState, error) {
	c, err := s.commentOf(ctx, postID, commentID)
	if err != nil {
		return domain.ReactionState{}, err
	}

	disliked, err := s.store.HasReaction(ctx, storage.CommentDislikes, userID, commentID)
	if err != nil {
		return domain.ReactionState{}, err
	}

	if disliked {
		if _, err := s.store.RemoveReaction(ctx, storage.CommentDislikes, userID, commentID); err != nil {
			return domain.ReactionState{}, err
		}
		metrics.Engagement.WithLabelValues("comment_undislike").Inc()
		return s.State(ctx, userID, commentID)
	}

	if err := s.dropLike(ctx, userID, c); err != nil {
		return domain.ReactionState{}, err
	}
	inserted, err := s.insert(ctx, storage.CommentDislikes, userID, commentID)
	if err != nil {
		return domain.ReactionState{}, err
	}
	if err := s.dropLike(ctx, userID, c); err != nil {
		return domain.ReactionState{}, err
	}
	if inserted {
		metrics.Engagement.WithLabelValues("comment_dislike").Inc()
	}
	return s.State(ctx, userID, commentID)
}

// dropLike снимает лайк и, если он был, отзывает уведомление о нем.
func (s *Service) dropLike(ctx context.Context, userID string, c *domain.Comment) error {
	removed, err := s.store.RemoveReaction(ctx, storage.CommentLikes, userID, c.ID)
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}
	return s.retractCommentLike(ctx, userID, c)
}

// === Follows ===

// Follow создает ребро follower -> following. Повторная подписка - успех без нового уведомления.
func (s *Service) Follow(ctx context.Context, followerID, followingID string) error {
	if followerID == followingID {
		return domain.InvalidInput("cannot follow yourself")
	}
	if _, err := s.store.GetProfile(ctx, followingID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.NotFound("user not found")
		}
		return err
	}

	err := s.store.AddFollow(ctx, followerID, followingID)
	if errors.Is(err, storage.ErrConflict) {
		metrics.ConstraintRaces.WithLabelValues("follows").Inc()
		return nil
	}
	if err != nil {
		return err
	}
	metrics.Engagement.WithLabelValues("follow").Inc()

	_, err = s.notify.NotifyOnce(ctx, notify.Request{
		RecipientID: followingID,
		ActorID:     followerID,
		Type:        domain.NotificationFollow,
	})
	return err
}

// Unfollow удаляет ребро, если оно есть, и отзывает уведомление о подписке.
func (s *Service) Unfollow(ctx context.Context, followerID, followingID string) error {
	removed, err := s.store.RemoveFollow(ctx, followerID, followingID)
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}
	metrics.Engagement.WithLabelValues("unfollow").Inc()
	_, err = s.notify.Retract(ctx, notify.Request{
		RecipientID: followingID,
		ActorID:     followerID,
		Type:        domain.NotificationFollow,
	})
	return err
}

// === Saved posts ===

// SavePost идемпотентно добавляет пост в закладки.
func (s *Service) SavePost(ctx context.Context, userID, postID string) error {
	if _, err := s.store.GetPostByID(ctx, postID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.NotFound("post not found")
		}
		return err
	}
	inserted, err := s.insert(ctx, storage.SavedPosts, userID, postID)
	if err != nil {
		return err
	}
	if inserted {
		metrics.Engagement.WithLabelValues("save").Inc()
	}
	return nil
}

func (s *Service) UnsavePost(ctx context.Context, userID, postID string) error {
	removed, err := s.store.RemoveReaction(ctx, storage.SavedPosts, userID, postID)
	if err != nil {
		return err
	}
	if removed {
		metrics.Engagement.WithLabelValues("unsave").Inc()
	}
	return nil
}
