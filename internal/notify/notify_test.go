package notify

import (
	"context"
	"testing"

	"github.com/UkralStul/social-feed-service/internal/domain"
	"github.com/UkralStul/social-feed-service/internal/events"
	"github.com/UkralStul/social-feed-service/internal/storage"
	"github.com/UkralStul/social-feed-service/internal/storage/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc   *Service
	store *inmemory.Store
	rec   *events.Recorder
	alice *domain.Profile
	bob   *domain.Profile
	post  *domain.Post
}

func newFixture(t *testing.T) *fixture {
	store := inmemory.New()
	ctx := context.Background()
	alice, err := store.CreateProfile(ctx, &domain.Profile{Username: "alice"})
	require.NoError(t, err)
	bob, err := store.CreateProfile(ctx, &domain.Profile{Username: "bob"})
	require.NoError(t, err)
	post, err := store.CreatePost(ctx, &domain.Post{UserID: alice.ID, Caption: "sunset", MediaURL: "u", MediaType: domain.MediaImage}, nil)
	require.NoError(t, err)

	rec := &events.Recorder{}
	return &fixture{svc: New(store, rec, nil), store: store, rec: rec, alice: alice, bob: bob, post: post}
}

func TestNotify_SuppressesSelfAction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.svc.Notify(ctx, Request{RecipientID: f.alice.ID, ActorID: f.alice.ID, Type: domain.NotificationLike, PostID: f.post.ID})
	require.NoError(t, err)
	assert.Nil(t, n)

	count, err := f.store.CountNotifications(ctx, f.alice.ID, false)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, f.rec.Events)
}

func TestNotify_CreatesUnreadAndPublishes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	n, err := f.svc.Notify(ctx, Request{RecipientID: f.alice.ID, ActorID: f.bob.ID, Type: domain.NotificationLike, PostID: f.post.ID})
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.False(t, n.IsRead)
	require.NotNil(t, n.PostID)
	assert.Equal(t, f.post.ID, *n.PostID)
	assert.Nil(t, n.CommentID)

	require.Len(t, f.rec.Events, 1)
	assert.Equal(t, events.SubjectNotificationCreated, f.rec.Events[0].Subject)
	assert.Equal(t, f.alice.ID, f.rec.Events[0].Key)
}

func TestNotifyOnce_DoesNotDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := Request{RecipientID: f.alice.ID, ActorID: f.bob.ID, Type: domain.NotificationFollow}

	first, err := f.svc.NotifyOnce(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := f.svc.NotifyOnce(ctx, req)
	require.NoError(t, err)
	assert.Nil(t, second)

	count, err := f.store.CountNotifications(ctx, f.alice.ID, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestRetract(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := Request{RecipientID: f.alice.ID, ActorID: f.bob.ID, Type: domain.NotificationLike, PostID: f.post.ID}
	_, err := f.svc.Notify(ctx, req)
	require.NoError(t, err)

	removed, err := f.svc.Retract(ctx, Request{ActorID: f.bob.ID, Type: domain.NotificationLike, PostID: f.post.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	removed, err = f.svc.Retract(ctx, Request{})
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestList_DecoratesAndCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	comment, err := f.store.CreateComment(ctx, &domain.Comment{PostID: f.post.ID, UserID: f.bob.ID, Content: "nice"})
	require.NoError(t, err)
	_, err = f.svc.Notify(ctx, Request{RecipientID: f.alice.ID, ActorID: f.bob.ID, Type: domain.NotificationLike, PostID: f.post.ID})
	require.NoError(t, err)
	latest, err := f.svc.Notify(ctx, Request{RecipientID: f.alice.ID, ActorID: f.bob.ID, Type: domain.NotificationComment, PostID: f.post.ID, CommentID: comment.ID})
	require.NoError(t, err)

	_, err = f.svc.MarkRead(ctx, f.alice.ID, latest.ID)
	require.NoError(t, err)

	list, err := f.svc.List(ctx, f.alice.ID, storage.PageArgs{Page: 1, Limit: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, list.Total)
	assert.Equal(t, 2, list.TotalPages)
	assert.EqualValues(t, 1, list.UnreadCount)
	require.Len(t, list.Items, 1)

	v := list.Items[0]
	assert.Equal(t, latest.ID, v.ID)
	assert.True(t, v.IsRead)
	require.NotNil(t, v.Actor)
	assert.Equal(t, "bob", v.Actor.Username)
	require.NotNil(t, v.Post)
	assert.Equal(t, "sunset", v.Post.Caption)
	require.NotNil(t, v.Comment)
	assert.Equal(t, "nice", v.Comment.Content)
}

func TestMarkRead_ScopedToRecipient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n, err := f.svc.Notify(ctx, Request{RecipientID: f.alice.ID, ActorID: f.bob.ID, Type: domain.NotificationFollow})
	require.NoError(t, err)

	affected, err := f.svc.MarkRead(ctx, f.bob.ID, n.ID)
	require.NoError(t, err)
	assert.Zero(t, affected)

	affected, err = f.svc.MarkAllRead(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)

	affected, err = f.svc.Delete(ctx, f.bob.ID, n.ID)
	require.NoError(t, err)
	assert.Zero(t, affected)

	affected, err = f.svc.Delete(ctx, f.alice.ID, n.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)
}

func TestList_PaginationMath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := f.svc.Notify(ctx, Request{RecipientID: f.alice.ID, ActorID: f.bob.ID, Type: domain.NotificationLike, PostID: f.post.ID})
		require.NoError(t, err)
	}

	for _, tc := range []struct {
		limit, pages, items int
	}{
		{1, 5, 1},
		{10, 1, 5},
		{5, 1, 5},
		{6, 1, 5},
	} {
		list, err := f.svc.List(ctx, f.alice.ID, storage.PageArgs{Page: 1, Limit: tc.limit})
		require.NoError(t, err)
		assert.EqualValues(t, 5, list.Total)
		assert.EqualValues(t, 5, list.UnreadCount)
		assert.Equal(t, tc.pages, list.TotalPages, "limit %d", tc.limit)
		assert.Len(t, list.Items, tc.items)
	}
}
