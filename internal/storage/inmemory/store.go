package inmemory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/UkralStul/social-feed-service/internal/domain"
	"github.com/UkralStul/social-feed-service/internal/storage"
	"github.com/google/uuid"
)

// pair - ключ отношений вида (user, target).
type pair struct {
	a, b string
}

// Store реализует интерфейс Storage в памяти с теми же ограничениями уникальности, что и БД.
type Store struct {
	mu            sync.RWMutex
	last          time.Time
	profiles      map[string]*domain.Profile
	posts         map[string]*domain.Post
	follows       map[pair]time.Time // (follower, following)
	comments      map[string]*domain.Comment
	reactions     map[storage.Reaction]map[pair]time.Time
	mentions      map[pair]time.Time // (post, user)
	notifications map[string]*domain.Notification
}

var _ storage.Storage = (*Store)(nil)

// New создает новый экземпляр in-memory хранилища.
func New() *Store {
	s := &Store{
		profiles:      make(map[string]*domain.Profile),
		posts:         make(map[string]*domain.Post),
		follows:       make(map[pair]time.Time),
		comments:      make(map[string]*domain.Comment),
		reactions:     make(map[storage.Reaction]map[pair]time.Time),
		mentions:      make(map[pair]time.Time),
		notifications: make(map[string]*domain.Notification),
	}
	for _, r := range []storage.Reaction{storage.PostLikes, storage.CommentLikes, storage.CommentDislikes, storage.SavedPosts} {
		s.reactions[r] = make(map[pair]time.Time)
	}
	return s
}

// tick возвращает строго возрастающее время, чтобы порядок выдачи был детерминированным.
// Вызывается под блокировкой на запись.
func (s *Store) tick() time.Time {
	now := time.Now().UTC()
	if !now.After(s.last) {
		now = s.last.Add(time.Microsecond)
	}
	s.last = now
	return now
}

// === Profile Methods ===

func (s *Store) CreateProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, ok := s.profiles[p.ID]; ok {
		return nil, fmt.Errorf("profile %s: %w", p.ID, storage.ErrConflict)
	}
	if s.usernameTaken(p.Username, p.ID) {
		return nil, fmt.Errorf("username %s: %w", p.Username, storage.ErrConflict)
	}
	now := s.tick()
	cp := *p
	cp.CreatedAt, cp.UpdatedAt = now, now
	s.profiles[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *Store) usernameTaken(username, exceptID string) bool {
	for id, p := range s.profiles {
		if id != exceptID && strings.EqualFold(p.Username, username) {
			return true
		}
	}
	return false
}

func (s *Store) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", id, storage.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (s *Store) GetProfilesByIDs(ctx context.Context, ids []string) (map[string]*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*domain.Profile, len(ids))
	for _, id := range ids {
		if p, ok := s.profiles[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

func (s *Store) GetProfilesByUsernames(ctx context.Context, usernames []string) ([]*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[string]bool, len(usernames))
	for _, u := range usernames {
		want[strings.ToLower(u)] = true
	}
	var out []*domain.Profile
	for _, p := range s.profiles {
		if want[strings.ToLower(p.Username)] {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) UpdateProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.profiles[p.ID]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", p.ID, storage.ErrNotFound)
	}
	if s.usernameTaken(p.Username, p.ID) {
		return nil, fmt.Errorf("username %s: %w", p.Username, storage.ErrConflict)
	}
	cp := *p
	cp.CreatedAt = cur.CreatedAt
	cp.UpdatedAt = s.tick()
	s.profiles[cp.ID] = &cp
	out := cp
	return &out, nil
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post, mentionedUserIDs []string) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *post
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	now := s.tick()
	cp.CreatedAt, cp.UpdatedAt = now, now
	s.posts[cp.ID] = &cp
	for _, uid := range mentionedUserIDs {
		if _, ok := s.mentions[pair{cp.ID, uid}]; !ok {
			s.mentions[pair{cp.ID, uid}] = now
		}
	}
	out := cp
	return &out, nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
	}
	cp := *post
	return &cp, nil
}

func (s *Store) GetPostsByIDs(ctx context.Context, ids []string) (map[string]*domain.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*domain.Post, len(ids))
	for _, id := range ids {
		if p, ok := s.posts[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out, nil
}

func (s *Store) UpdatePostCaption(ctx context.Context, id, caption string) (*domain.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	post, ok := s.posts[id]
	if !ok {
		return nil, fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
	}
	post.Caption = caption
	post.UpdatedAt = s.tick()
	cp := *post
	return &cp, nil
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[id]; !ok {
		return fmt.Errorf("post %s: %w", id, storage.ErrNotFound)
	}
	delete(s.posts, id)

	var commentIDs []string
	for cid, c := range s.comments {
		if c.PostID == id {
			commentIDs = append(commentIDs, cid)
		}
	}
	s.deleteCommentsLocked(commentIDs)

	for _, r := range []storage.Reaction{storage.PostLikes, storage.SavedPosts} {
		for k := range s.reactions[r] {
			if k.b == id {
				delete(s.reactions[r], k)
			}
		}
	}
	for k := range s.mentions {
		if k.a == id {
			delete(s.mentions, k)
		}
	}
	for nid, n := range s.notifications {
		if n.PostID != nil && *n.PostID == id {
			delete(s.notifications, nid)
		}
	}
	return nil
}

func (s *Store) matchPost(p *domain.Post, q storage.PostQuery) bool {
	if len(q.AuthorIDs) > 0 {
		found := false
		for _, a := range q.AuthorIDs {
			if a == p.UserID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.Hashtag != "" && !strings.Contains(strings.ToLower(p.Caption), "#"+strings.ToLower(q.Hashtag)) {
		return false
	}
	if q.MentionedUserID != "" {
		if _, ok := s.mentions[pair{p.ID, q.MentionedUserID}]; !ok {
			return false
		}
	}
	return true
}

func (s *Store) ListPosts(ctx context.Context, q storage.PostQuery, args storage.PageArgs) ([]*domain.Post, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*domain.Post
	for _, p := range s.posts {
		if s.matchPost(p, q) {
			matched = append(matched, p)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return newerFirst(matched[i].CreatedAt, matched[j].CreatedAt, matched[i].ID, matched[j].ID) })
	return copyPosts(paginate(matched, args)), int64(len(matched)), nil
}

func (s *Store) CountPosts(ctx context.Context, q storage.PostQuery) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, p := range s.posts {
		if s.matchPost(p, q) {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListSavedPosts(ctx context.Context, userID string, args storage.PageArgs) ([]*domain.Post, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type saved struct {
		post *domain.Post
		at   time.Time
	}
	var all []saved
	for k, at := range s.reactions[storage.SavedPosts] {
		if k.a != userID {
			continue
		}
		if p, ok := s.posts[k.b]; ok {
			all = append(all, saved{post: p, at: at})
		}
	}
	sort.Slice(all, func(i, j int) bool { return newerFirst(all[i].at, all[j].at, all[i].post.ID, all[j].post.ID) })

	posts := make([]*domain.Post, len(all))
	for i := range all {
		posts[i] = all[i].post
	}
	return copyPosts(paginate(posts, args)), int64(len(all)), nil
}

// === Follow Methods ===

func (s *Store) AddFollow(ctx context.Context, followerID, followingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if followerID == followingID {
		return fmt.Errorf("follow %s -> %s violates chk_follows_no_self", followerID, followingID)
	}
	k := pair{followerID, followingID}
	if _, ok := s.follows[k]; ok {
		return fmt.Errorf("follow %s -> %s: %w", followerID, followingID, storage.ErrConflict)
	}
	s.follows[k] = s.tick()
	return nil
}

func (s *Store) RemoveFollow(ctx context.Context, followerID, followingID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := pair{followerID, followingID}
	if _, ok := s.follows[k]; !ok {
		return false, nil
	}
	delete(s.follows, k)
	return true, nil
}

func (s *Store) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.follows[pair{followerID, followingID}]
	return ok, nil
}

func (s *Store) ListFollowingIDs(ctx context.Context, followerID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for k := range s.follows {
		if k.a == followerID {
			ids = append(ids, k.b)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) CountFollowers(ctx context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for k := range s.follows {
		if k.b == userID {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountFollowing(ctx context.Context, userID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for k := range s.follows {
		if k.a == userID {
			n++
		}
	}
	return n, nil
}

// === Comment Methods ===

func (s *Store) CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.posts[comment.PostID]; !ok {
		return nil, fmt.Errorf("post %s: %w", comment.PostID, storage.ErrNotFound)
	}
	if comment.ParentCommentID != nil {
		if _, ok := s.comments[*comment.ParentCommentID]; !ok {
			return nil, fmt.Errorf("parent comment %s: %w", *comment.ParentCommentID, storage.ErrNotFound)
		}
	}

	cp := *comment
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	now := s.tick()
	cp.CreatedAt, cp.UpdatedAt = now, now
	s.comments[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (s *Store) GetCommentByID(ctx context.Context, id string) (*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.comments[id]
	if !ok {
		return nil, fmt.Errorf("comment %s: %w", id, storage.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (s *Store) GetCommentsByIDs(ctx context.Context, ids []string) (map[string]*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*domain.Comment, len(ids))
	for _, id := range ids {
		if c, ok := s.comments[id]; ok {
			cp := *c
			out[id] = &cp
		}
	}
	return out, nil
}

func (s *Store) UpdateCommentContent(ctx context.Context, id, content string) (*domain.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.comments[id]
	if !ok {
		return nil, fmt.Errorf("comment %s: %w", id, storage.ErrNotFound)
	}
	c.Content = content
	c.UpdatedAt = s.tick()
	cp := *c
	return &cp, nil
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[id]; !ok {
		return fmt.Errorf("comment %s: %w", id, storage.ErrNotFound)
	}
	ids := []string{id}
	for cid, c := range s.comments {
		if c.ParentCommentID != nil && *c.ParentCommentID == id {
			ids = append(ids, cid)
		}
	}
	s.deleteCommentsLocked(ids)
	return nil
}

// deleteCommentsLocked удаляет комментарии и все, что на них ссылается.
func (s *Store) deleteCommentsLocked(ids []string) {
	gone := make(map[string]bool, len(ids))
	for _, id := range ids {
		gone[id] = true
		delete(s.comments, id)
	}
	for _, r := range []storage.Reaction{storage.CommentLikes, storage.CommentDislikes} {
		for k := range s.reactions[r] {
			if gone[k.b] {
				delete(s.reactions[r], k)
			}
		}
	}
	for nid, n := range s.notifications {
		if n.CommentID != nil && gone[*n.CommentID] {
			delete(s.notifications, nid)
		}
	}
}

func (s *Store) GetTopLevelComments(ctx context.Context, postID string, args storage.PageArgs) ([]*domain.Comment, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var top []*domain.Comment
	for _, c := range s.comments {
		if c.PostID == postID && c.ParentCommentID == nil {
			top = append(top, c)
		}
	}
	sort.Slice(top, func(i, j int) bool { return newerFirst(top[i].CreatedAt, top[j].CreatedAt, top[i].ID, top[j].ID) })
	return copyComments(paginate(top, args)), int64(len(top)), nil
}

func (s *Store) GetRepliesByParentIDs(ctx context.Context, parentIDs []string) (map[string][]*domain.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[string]bool, len(parentIDs))
	for _, id := range parentIDs {
		want[id] = true
	}
	results := make(map[string][]*domain.Comment, len(parentIDs))
	for _, c := range s.comments {
		if c.ParentCommentID != nil && want[*c.ParentCommentID] {
			cp := *c
			results[*c.ParentCommentID] = append(results[*c.ParentCommentID], &cp)
		}
	}
	for _, children := range results {
		sort.Slice(children, func(i, j int) bool {
			return newerFirst(children[j].CreatedAt, children[i].CreatedAt, children[j].ID, children[i].ID)
		})
	}
	return results, nil
}

func (s *Store) CountTopLevelComments(ctx context.Context, postIDs []string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[string]bool, len(postIDs))
	for _, id := range postIDs {
		want[id] = true
	}
	out := make(map[string]int64, len(postIDs))
	for _, c := range s.comments {
		if c.ParentCommentID == nil && want[c.PostID] {
			out[c.PostID]++
		}
	}
	return out, nil
}

// === Reaction Methods ===

func (s *Store) AddReaction(ctx context.Context, r storage.Reaction, userID, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rel, ok := s.reactions[r]
	if !ok {
		return fmt.Errorf("unknown reaction relation %d", r)
	}
	switch r {
	case storage.PostLikes, storage.SavedPosts:
		if _, ok := s.posts[targetID]; !ok {
			return fmt.Errorf("%s: post %s: %w", r, targetID, storage.ErrNotFound)
		}
	case storage.CommentLikes, storage.CommentDislikes:
		if _, ok := s.comments[targetID]; !ok {
			return fmt.Errorf("%s: comment %s: %w", r, targetID, storage.ErrNotFound)
		}
	}
	k := pair{userID, targetID}
	if _, ok := rel[k]; ok {
		return fmt.Errorf("%s (%s, %s): %w", r, userID, targetID, storage.ErrConflict)
	}
	rel[k] = s.tick()
	return nil
}

func (s *Store) RemoveReaction(ctx context.Context, r storage.Reaction, userID, targetID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := pair{userID, targetID}
	if _, ok := s.reactions[r][k]; !ok {
		return false, nil
	}
	delete(s.reactions[r], k)
	return true, nil
}

func (s *Store) HasReaction(ctx context.Context, r storage.Reaction, userID, targetID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.reactions[r][pair{userID, targetID}]
	return ok, nil
}

func (s *Store) CountReactions(ctx context.Context, r storage.Reaction, targetIDs []string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[string]bool, len(targetIDs))
	for _, id := range targetIDs {
		want[id] = true
	}
	out := make(map[string]int64, len(targetIDs))
	for k := range s.reactions[r] {
		if want[k.b] {
			out[k.b]++
		}
	}
	return out, nil
}

func (s *Store) UserReactions(ctx context.Context, r storage.Reaction, userID string, targetIDs []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]bool)
	for _, id := range targetIDs {
		if _, ok := s.reactions[r][pair{userID, id}]; ok {
			out[id] = true
		}
	}
	return out, nil
}

// === Notification Methods ===

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *n
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	now := s.tick()
	cp.CreatedAt, cp.UpdatedAt = now, now
	s.notifications[cp.ID] = &cp
	out := cp
	return &out, nil
}

func matchNotification(n *domain.Notification, f storage.NotificationFilter) bool {
	if f.RecipientID != "" && n.UserID != f.RecipientID {
		return false
	}
	if f.ActorID != "" && n.ActorID != f.ActorID {
		return false
	}
	if f.Type != "" && n.Type != f.Type {
		return false
	}
	if f.PostID != "" && (n.PostID == nil || *n.PostID != f.PostID) {
		return false
	}
	if f.CommentID != "" && (n.CommentID == nil || *n.CommentID != f.CommentID) {
		return false
	}
	return true
}

func (s *Store) NotificationExists(ctx context.Context, f storage.NotificationFilter) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.notifications {
		if matchNotification(n, f) {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) DeleteNotifications(ctx context.Context, f storage.NotificationFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, rec := range s.notifications {
		if matchNotification(rec, f) {
			delete(s.notifications, id)
			n++
		}
	}
	return n, nil
}

func (s *Store) ListNotifications(ctx context.Context, recipientID string, args storage.PageArgs) ([]*domain.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*domain.Notification
	for _, n := range s.notifications {
		if n.UserID == recipientID {
			all = append(all, n)
		}
	}
	sort.Slice(all, func(i, j int) bool { return newerFirst(all[i].CreatedAt, all[j].CreatedAt, all[i].ID, all[j].ID) })

	page := paginate(all, args)
	out := make([]*domain.Notification, len(page))
	for i, n := range page {
		cp := *n
		out[i] = &cp
	}
	return out, nil
}

func (s *Store) CountNotifications(ctx context.Context, recipientID string, unreadOnly bool) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c int64
	for _, n := range s.notifications {
		if n.UserID == recipientID && (!unreadOnly || !n.IsRead) {
			c++
		}
	}
	return c, nil
}

func (s *Store) MarkNotificationsRead(ctx context.Context, recipientID, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var c int64
	now := s.tick()
	for _, n := range s.notifications {
		if n.UserID != recipientID || n.IsRead || (id != "" && n.ID != id) {
			continue
		}
		n.IsRead = true
		n.UpdatedAt = now
		c++
	}
	return c, nil
}

func (s *Store) DeleteNotification(ctx context.Context, recipientID, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.UserID != recipientID {
		return 0, nil
	}
	delete(s.notifications, id)
	return 1, nil
}

// === Helpers ===

// newerFirst задает порядок created_at DESC, id DESC.
func newerFirst(ti, tj time.Time, idi, idj string) bool {
	if !ti.Equal(tj) {
		return ti.After(tj)
	}
	return idi > idj
}

// paginate - вспомогательная функция для offset/limit пагинации
func paginate[T any](all []T, args storage.PageArgs) []T {
	start := args.Offset()
	if start >= len(all) || start < 0 {
		return nil
	}
	end := start + args.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

func copyPosts(in []*domain.Post) []*domain.Post {
	out := make([]*domain.Post, len(in))
	for i, p := range in {
		cp := *p
		out[i] = &cp
	}
	return out
}

func copyComments(in []*domain.Comment) []*domain.Comment {
	out := make([]*domain.Comment, len(in))
	for i, c := range in {
		cp := *c
		out[i] = &cp
	}
	return out
}
