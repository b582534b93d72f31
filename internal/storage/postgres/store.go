package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/UkralStul/social-feed-service/internal/domain"
	"github.com/UkralStul/social-feed-service/internal/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// Options - параметры подключения.
type Options struct {
	DSN         string
	AutoMigrate bool
	LogLevel    logger.LogLevel
}

// Store реализует интерфейс Storage с использованием PostgreSQL.
type Store struct {
	db *gorm.DB
}

var _ storage.Storage = (*Store)(nil)

// New создает новый экземпляр хранилища PostgreSQL.
func New(opts Options) (*Store, error) {
	if opts.LogLevel == 0 {
		opts.LogLevel = logger.Warn
	}
	db, err := gorm.Open(postgres.Open(opts.DSN), &gorm.Config{
		Logger:         logger.Default.LogMode(opts.LogLevel),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("failed to register tracing plugin: %w", err)
	}

	s := &Store{db: db}
	if opts.AutoMigrate {
		if err := s.Migrate(context.Background()); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// usernameIndex делает уникальность имени нечувствительной к регистру, как в памяти.
const usernameIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_profiles_username_lower ON profiles (LOWER(username))`

// Migrate выполняет миграцию схемы.
func (s *Store) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(domain.AllModels()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := db.Exec(usernameIndex).Error; err != nil {
		return fmt.Errorf("failed to create username index: %w", err)
	}
	return nil
}

// Close закрывает пул соединений.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping проверяет доступность базы.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// translate приводит ошибки драйвера к sentinel-ошибкам storage.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%v: %w", err, storage.ErrNotFound)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%v: %w", err, storage.ErrConflict)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, storage.ErrConflict)
	}
	return err
}

// === Profile Methods ===

func (s *Store) CreateProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, translate(err)
	}
	return p, nil
}

func (s *Store) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	var p domain.Profile
	if err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *Store) GetProfilesByIDs(ctx context.Context, ids []string) (map[string]*domain.Profile, error) {
	out := make(map[string]*domain.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []*domain.Profile
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}

func (s *Store) GetProfilesByUsernames(ctx context.Context, usernames []string) ([]*domain.Profile, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	lowered := make([]string, len(usernames))
	for i, u := range usernames {
		lowered[i] = strings.ToLower(u)
	}
	var rows []*domain.Profile
	err := s.db.WithContext(ctx).Where("LOWER(username) IN ?", lowered).Order("username").Find(&rows).Error
	return rows, err
}

func (s *Store) UpdateProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	res := s.db.WithContext(ctx).Model(&domain.Profile{}).Where("id = ?", p.ID).Updates(map[string]any{
		"username":   p.Username,
		"name":       p.Name,
		"bio":        p.Bio,
		"avatar_url": p.AvatarURL,
		"updated_at": time.Now().UTC(),
	})
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("profile %s: %w", p.ID, storage.ErrNotFound)
	}
	return s.GetProfile(ctx, p.ID)
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post, mentionedUserIDs []string) (*domain.Post, error) {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(post).Error; err != nil {
			return err
		}
		if len(mentionedUserIDs) == 0 {
			return nil
		}
		mentions := make([]domain.PostMention, len(mentionedUserIDs))
		for i, uid := range mentionedUserIDs {
			mentions[i] = domain.PostMention{PostID: post.ID, MentionedUserID: uid}
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&mentions).Error
	})
	if err != nil {
		return nil, translate(err)
	}
	return post, nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	var post domain.Post
	if err := s.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
		// GORM возвращает gorm.ErrRecordNotFound, если запись не найдена
		return nil, translate(err)
	}
	return &post, nil
}

func (s *Store) GetPostsByIDs(ctx context.Context, ids []string) (map[string]*domain.Post, error) {
	out := make(map[string]*domain.Post, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []*domain.Post
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}

func (s *Store) UpdatePostCaption(ctx context.Context, id, caption string) (*domain.Post, error) {
	res := s.db.WithContext(ctx).Model(&domain.Post{}).Where("id = ?", id).
		Updates(map[string]any{"caption": caption, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
	}
	return s.GetPostByID(ctx, id)
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		commentIDs := tx.Model(&domain.Comment{}).Select("id").Where("post_id = ?", id)
		steps := []*gorm.DB{
			tx.Where("comment_id IN (?)", commentIDs).Delete(&domain.CommentLike{}),
			tx.Where("comment_id IN (?)", commentIDs).Delete(&domain.CommentDislike{}),
			tx.Where("post_id = ? OR comment_id IN (?)", id, commentIDs).Delete(&domain.Notification{}),
			tx.Where("post_id = ?", id).Delete(&domain.Comment{}),
			tx.Where("post_id = ?", id).Delete(&domain.Like{}),
			tx.Where("post_id = ?", id).Delete(&domain.SavedPost{}),
			tx.Where("post_id = ?", id).Delete(&domain.PostMention{}),
		}
		for _, step := range steps {
			if step.Error != nil {
				return step.Error
			}
		}
		res := tx.Where("id = ?", id).Delete(&domain.Post{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
		}
		return nil
	})
}

// postsQuery строит новую цепочку на каждый вызов, чтобы Count и Find не делили условия.
func (s *Store) postsQuery(ctx context.Context, q storage.PostQuery) *gorm.DB {
	db := s.db.WithContext(ctx).Model(&domain.Post{})
	if len(q.AuthorIDs) > 0 {
		db = db.Where("user_id IN ?", q.AuthorIDs)
	}
	if q.Hashtag != "" {
		db = db.Where("caption ILIKE ?", "%#"+escapeLike(strings.ToLower(q.Hashtag))+"%")
	}
	if q.MentionedUserID != "" {
		mentioned := s.db.Model(&domain.PostMention{}).Select("post_id").Where("mentioned_user_id = ?", q.MentionedUserID)
		db = db.Where("id IN (?)", mentioned)
	}
	return db
}

func (s *Store) ListPosts(ctx context.Context, q storage.PostQuery, args storage.PageArgs) ([]*domain.Post, int64, error) {
	var total int64
	if err := s.postsQuery(ctx, q).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var posts []*domain.Post
	err := s.postsQuery(ctx, q).
		Order("created_at DESC, id DESC").
		Offset(args.Offset()).
		Limit(args.Limit).
		Find(&posts).Error
	return posts, total, err
}

func (s *Store) CountPosts(ctx context.Context, q storage.PostQuery) (int64, error) {
	var total int64
	err := s.postsQuery(ctx, q).Count(&total).Error
	return total, err
}

func (s *Store) ListSavedPosts(ctx context.Context, userID string, args storage.PageArgs) ([]*domain.Post, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&domain.SavedPost{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var posts []*domain.Post
	err := s.db.WithContext(ctx).
		Select("posts.*").
		Joins("JOIN saved_posts sp ON sp.post_id = posts.id").
		Where("sp.user_id = ?", userID).
		Order("sp.created_at DESC, posts.id DESC").
		Offset(args.Offset()).
		Limit(args.Limit).
		Find(&posts).Error
	return posts, total, err
}

// === Follow Methods ===

func (s *Store) AddFollow(ctx context.Context, followerID, followingID string) error {
	err := s.db.WithContext(ctx).Create(&domain.Follow{FollowerID: followerID, FollowingID: followingID}).Error
	return translate(err)
}

func (s *Store) RemoveFollow(ctx context.Context, followerID, followingID string) (bool, error) {
	res := s.db.WithContext(ctx).Where("follower_id = ? AND following_id = ?", followerID, followingID).Delete(&domain.Follow{})
	return res.RowsAffected > 0, res.Error
}

func (s *Store) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).Count(&n).Error
	return n > 0, err
}

func (s *Store) ListFollowingIDs(ctx context.Context, followerID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&domain.Follow{}).
		Where("follower_id = ?", followerID).Order("following_id").Pluck("following_id", &ids).Error
	return ids, err
}

func (s *Store) CountFollowers(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.Follow{}).Where("following_id = ?", userID).Count(&n).Error
	return n, err
}

func (s *Store) CountFollowing(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.Follow{}).Where("follower_id = ?", userID).Count(&n).Error
	return n, err
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(comment).Error; err != nil {
		return nil, translate(err)
	}
	return comment, nil
}

func (s *Store) GetCommentByID(ctx context.Context, id string) (*domain.Comment, error) {
	var comment domain.Comment
	if err := s.db.WithContext(ctx).First(&comment, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &comment, nil
}

func (s *Store) GetCommentsByIDs(ctx context.Context, ids []string) (map[string]*domain.Comment, error) {
	out := make(map[string]*domain.Comment, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []*domain.Comment
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, c := range rows {
		out[c.ID] = c
	}
	return out, nil
}

func (s *Store) UpdateCommentContent(ctx context.Context, id, content string) (*domain.Comment, error) {
	res := s.db.WithContext(ctx).Model(&domain.Comment{}).Where("id = ?", id).
		Updates(map[string]any{"content": content, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("comment %s: %w", id, storage.ErrNotFound)
	}
	return s.GetCommentByID(ctx, id)
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := tx.Model(&domain.Comment{}).Select("id").Where("id = ? OR parent_comment_id = ?", id, id)
		steps := []*gorm.DB{
			tx.Where("comment_id IN (?)", ids).Delete(&domain.CommentLike{}),
			tx.Where("comment_id IN (?)", ids).Delete(&domain.CommentDislike{}),
			tx.Where("comment_id IN (?)", ids).Delete(&domain.Notification{}),
			tx.Where("parent_comment_id = ?", id).Delete(&domain.Comment{}),
		}
		for _, step := range steps {
			if step.Error != nil {
				return step.Error
			}
		}
		res := tx.Where("id = ?", id).Delete(&domain.Comment{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("comment %s: %w", id, storage.ErrNotFound)
		}
		return nil
	})
}

func (s *Store) GetTopLevelComments(ctx context.Context, postID string, args storage.PageArgs) ([]*domain.Comment, int64, error) {
	base := func() *gorm.DB {
		// Выбираем только комментарии верхнего уровня для поста (parent_comment_id IS NULL)
		return s.db.WithContext(ctx).Model(&domain.Comment{}).Where("post_id = ? AND parent_comment_id IS NULL", postID)
	}
	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var comments []*domain.Comment
	err := base().Order("created_at DESC, id DESC").Offset(args.Offset()).Limit(args.Limit).Find(&comments).Error
	return comments, total, err
}

func (s *Store) GetRepliesByParentIDs(ctx context.Context, parentIDs []string) (map[string][]*domain.Comment, error) {
	result := make(map[string][]*domain.Comment, len(parentIDs))
	if len(parentIDs) == 0 {
		return result, nil
	}
	var comments []*domain.Comment
	// Загружаем все ответы для всех переданных родителей одним запросом
	err := s.db.WithContext(ctx).
		Where("parent_comment_id IN ?", parentIDs).
		Order("created_at ASC, id ASC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	for _, c := range comments {
		if c.ParentCommentID != nil {
			result[*c.ParentCommentID] = append(result[*c.ParentCommentID], c)
		}
	}
	return result, nil
}

type countRow struct {
	ID string
	N  int64
}

func (s *Store) CountTopLevelComments(ctx context.Context, postIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	var rows []countRow
	err := s.db.WithContext(ctx).Model(&domain.Comment{}).
		Select("post_id AS id, COUNT(*) AS n").
		Where("post_id IN ? AND parent_comment_id IS NULL", postIDs).
		Group("post_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ID] = r.N
	}
	return out, nil
}

// === Reaction Methods ===

// relation описывает таблицу реакции.
type relation struct {
	model  any
	target string
}

func relationFor(r storage.Reaction) (relation, error) {
	switch r {
	case storage.PostLikes:
		return relation{model: &domain.Like{}, target: "post_id"}, nil
	case storage.CommentLikes:
		return relation{model: &domain.CommentLike{}, target: "comment_id"}, nil
	case storage.CommentDislikes:
		return relation{model: &domain.CommentDislike{}, target: "comment_id"}, nil
	case storage.SavedPosts:
		return relation{model: &domain.SavedPost{}, target: "post_id"}, nil
	}
	return relation{}, fmt.Errorf("unknown reaction relation %d", r)
}

func newReactionRow(r storage.Reaction, userID, targetID string) any {
	switch r {
	case storage.PostLikes:
		return &domain.Like{UserID: userID, PostID: targetID}
	case storage.CommentLikes:
		return &domain.CommentLike{UserID: userID, CommentID: targetID}
	case storage.CommentDislikes:
		return &domain.CommentDislike{UserID: userID, CommentID: targetID}
	case storage.SavedPosts:
		return &domain.SavedPost{UserID: userID, PostID: targetID}
	}
	return nil
}

func (s *Store) AddReaction(ctx context.Context, r storage.Reaction, userID, targetID string) error {
	row := newReactionRow(r, userID, targetID)
	if row == nil {
		return fmt.Errorf("unknown reaction relation %d", r)
	}
	// Уникальность обеспечивает первичный ключ; конфликт вернется как storage.ErrConflict.
	return translate(s.db.WithContext(ctx).Create(row).Error)
}

func (s *Store) RemoveReaction(ctx context.Context, r storage.Reaction, userID, targetID string) (bool, error) {
	rel, err := relationFor(r)
	if err != nil {
		return false, err
	}
	res := s.db.WithContext(ctx).Where("user_id = ? AND "+rel.target+" = ?", userID, targetID).Delete(rel.model)
	return res.RowsAffected > 0, res.Error
}

func (s *Store) HasReaction(ctx context.Context, r storage.Reaction, userID, targetID string) (bool, error) {
	rel, err := relationFor(r)
	if err != nil {
		return false, err
	}
	var n int64
	err = s.db.WithContext(ctx).Model(rel.model).Where("user_id = ? AND "+rel.target+" = ?", userID, targetID).Count(&n).Error
	return n > 0, err
}

func (s *Store) CountReactions(ctx context.Context, r storage.Reaction, targetIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(targetIDs))
	if len(targetIDs) == 0 {
		return out, nil
	}
	rel, err := relationFor(r)
	if err != nil {
		return nil, err
	}
	var rows []countRow
	err = s.db.WithContext(ctx).Model(rel.model).
		Select(rel.target+" AS id, COUNT(*) AS n").
		Where(rel.target+" IN ?", targetIDs).
		Group(rel.target).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row.N
	}
	return out, nil
}

func (s *Store) UserReactions(ctx context.Context, r storage.Reaction, userID string, targetIDs []string) (map[string]bool, error) {
	out := make(map[string]bool)
	if len(targetIDs) == 0 {
		return out, nil
	}
	rel, err := relationFor(r)
	if err != nil {
		return nil, err
	}
	var ids []string
	err = s.db.WithContext(ctx).Model(rel.model).
		Where("user_id = ? AND "+rel.target+" IN ?", userID, targetIDs).
		Pluck(rel.target, &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// === Notification Methods ===

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, translate(err)
	}
	return n, nil
}

func (s *Store) notificationScope(ctx context.Context, f storage.NotificationFilter) *gorm.DB {
	db := s.db.WithContext(ctx).Model(&domain.Notification{})
	if f.RecipientID != "" {
		db = db.Where("user_id = ?", f.RecipientID)
	}
	if f.ActorID != "" {
		db = db.Where("actor_id = ?", f.ActorID)
	}
	if f.Type != "" {
		db = db.Where("type = ?", f.Type)
	}
	if f.PostID != "" {
		db = db.Where("post_id = ?", f.PostID)
	}
	if f.CommentID != "" {
		db = db.Where("comment_id = ?", f.CommentID)
	}
	return db
}

func (s *Store) NotificationExists(ctx context.Context, f storage.NotificationFilter) (bool, error) {
	var n int64
	err := s.notificationScope(ctx, f).Count(&n).Error
	return n > 0, err
}

func (s *Store) DeleteNotifications(ctx context.Context, f storage.NotificationFilter) (int64, error) {
	if f == (storage.NotificationFilter{}) {
		return 0, errors.New("refusing to delete notifications without a filter")
	}
	res := s.notificationScope(ctx, f).Delete(&domain.Notification{})
	return res.RowsAffected, res.Error
}

func (s *Store) ListNotifications(ctx context.Context, recipientID string, args storage.PageArgs) ([]*domain.Notification, error) {
	var rows []*domain.Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ?", recipientID).
		Order("created_at DESC, id DESC").
		Offset(args.Offset()).
		Limit(args.Limit).
		Find(&rows).Error
	return rows, err
}

func (s *Store) CountNotifications(ctx context.Context, recipientID string, unreadOnly bool) (int64, error) {
	db := s.db.WithContext(ctx).Model(&domain.Notification{}).Where("user_id = ?", recipientID)
	if unreadOnly {
		db = db.Where("is_read = ?", false)
	}
	var n int64
	err := db.Count(&n).Error
	return n, err
}

func (s *Store) MarkNotificationsRead(ctx context.Context, recipientID, id string) (int64, error) {
	db := s.db.WithContext(ctx).Model(&domain.Notification{}).Where("user_id = ? AND is_read = ?", recipientID, false)
	if id != "" {
		db = db.Where("id = ?", id)
	}
	res := db.Updates(map[string]any{"is_read": true, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

func (s *Store) DeleteNotification(ctx context.Context, recipientID, id string) (int64, error) {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, recipientID).Delete(&domain.Notification{})
	return res.RowsAffected, res.Error
}

// escapeLike экранирует спецсимволы шаблона LIKE.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
