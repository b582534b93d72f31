// Package notify создает уведомления как побочный эффект действий пользователей
// и отдает их получателю постранично.
package notify

import (
	"context"
	"log/slog"

	"github.com/UkralStul/social-feed-service/internal/dataloader"
	"github.com/UkralStul/social-feed-service/internal/domain"
	"github.com/UkralStul/social-feed-service/internal/events"
	"github.com/UkralStul/social-feed-service/internal/metrics"
	"github.com/UkralStul/social-feed-service/internal/storage"
)

const DefaultLimit = 20

// Request описывает уведомление. Пустые PostID/CommentID означают отсутствие связи.
type Request struct {
	RecipientID string
	ActorID     string
	Type        domain.NotificationType
	PostID      string
	CommentID   string
}

func (r Request) filter() storage.NotificationFilter {
	return storage.NotificationFilter{
		RecipientID: r.RecipientID,
		ActorID:     r.ActorID,
		Type:        r.Type,
		PostID:      r.PostID,
		CommentID:   r.CommentID,
	}
}

type Service struct {
	store  storage.Storage
	events events.Publisher
	log    *slog.Logger
}

func New(store storage.Storage, pub events.Publisher, log *slog.Logger) *Service {
	if pub == nil {
		pub = events.Noop{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, events: pub, log: log}
}

// Notify создает уведомление. Если получатель совпадает с автором действия, ничего не создается
// и возвращается nil без ошибки.
func (s *Service) Notify(ctx context.Context, req Request) (*domain.Notification, error) {
	if req.RecipientID == "" || req.RecipientID == req.ActorID {
		return nil, nil
	}
	n := &domain.Notification{
		UserID:  req.RecipientID,
		ActorID: req.ActorID,
		Type:    req.Type,
	}
	if req.PostID != "" {
		n.PostID = &req.PostID
	}
	if req.CommentID != "" {
		n.CommentID = &req.CommentID
	}
	created, err := s.store.CreateNotification(ctx, n)
	if err != nil {
		return nil, err
	}
	metrics.NotificationsCreated.WithLabelValues(string(req.Type)).Inc()

	if err := s.events.Publish(ctx, events.SubjectNotificationCreated, created.UserID, created); err != nil {
		metrics.EventPublishFailures.Inc()
		s.log.Warn("failed to publish notification event", "notification_id", created.ID, "error", err)
	}
	return created, nil
}

// NotifyOnce создает уведомление, только если такого же еще нет.
func (s *Service) NotifyOnce(ctx context.Context, req Request) (*domain.Notification, error) {
	if req.RecipientID == "" || req.RecipientID == req.ActorID {
		return nil, nil
	}
	exists, err := s.store.NotificationExists(ctx, req.filter())
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}
	return s.Notify(ctx, req)
}

// Retract удаляет уведомления, порожденные действием, которое было отменено.
func (s *Service) Retract(ctx context.Context, req Request) (int64, error) {
	if req.ActorID == "" {
		return 0, nil
	}
	return s.store.DeleteNotifications(ctx, req.filter())
}

// List возвращает страницу уведомлений получателя с total и unreadCount.
func (s *Service) List(ctx context.Context, recipientID string, args storage.PageArgs) (*domain.NotificationList, error) {
	args = args.Normalize(DefaultLimit)

	items, err := s.store.ListNotifications(ctx, recipientID, args)
	if err != nil {
		return nil, err
	}
	total, err := s.store.CountNotifications(ctx, recipientID, false)
	if err != nil {
		return nil, err
	}
	unread, err := s.store.CountNotifications(ctx, recipientID, true)
	if err != nil {
		return nil, err
	}
	views, err := s.decorate(ctx, items)
	if err != nil {
		return nil, err
	}
	return &domain.NotificationList{
		List:        domain.NewList(views, total, args.Page, args.Limit),
		UnreadCount: unread,
	}, nil
}

// decorate подтягивает автора действия, пост и комментарий пачками.
func (s *Service) decorate(ctx context.Context, items []*domain.Notification) ([]*domain.NotificationView, error) {
	var actorIDs, postIDs, commentIDs []string
	for _, n := range items {
		actorIDs = append(actorIDs, n.ActorID)
		if n.PostID != nil {
			postIDs = append(postIDs, *n.PostID)
		}
		if n.CommentID != nil {
			commentIDs = append(commentIDs, *n.CommentID)
		}
	}

	actors, err := dataloader.For(ctx, s.store).Profiles(ctx, actorIDs)
	if err != nil {
		return nil, err
	}
	posts, err := s.store.GetPostsByIDs(ctx, postIDs)
	if err != nil {
		return nil, err
	}
	comments, err := s.store.GetCommentsByIDs(ctx, commentIDs)
	if err != nil {
		return nil, err
	}

	views := make([]*domain.NotificationView, len(items))
	for i, n := range items {
		v := &domain.NotificationView{Notification: *n, Actor: actors[n.ActorID].Summary()}
		if n.PostID != nil {
			if p, ok := posts[*n.PostID]; ok {
				v.Post = &domain.PostSummary{ID: p.ID, MediaURL: p.MediaURL, MediaType: p.MediaType, Caption: p.Caption}
			}
		}
		if n.CommentID != nil {
			if c, ok := comments[*n.CommentID]; ok {
				v.Comment = &domain.CommentSummary{ID: c.ID, Content: c.Content}
			}
		}
		views[i] = v
	}
	return views, nil
}

// MarkRead помечает одно уведомление. Чужое уведомление не затрагивается и ошибкой не считается.
func (s *Service) MarkRead(ctx context.Context, recipientID, id string) (int64, error) {
	return s.store.MarkNotificationsRead(ctx, recipientID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	return s.store.MarkNotificationsRead(ctx, recipientID, "")
}

func (s *Service) Delete(ctx context.Context, recipientID, id string) (int64, error) {
	return s.store.DeleteNotification(ctx, recipientID, id)
}
