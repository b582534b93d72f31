package postgres

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/UkralStul/social-feed-service/internal/domain"
	"github.com/UkralStul/social-feed-service/internal/storage"
	"github.com/google/uuid"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore подключается к TEST_DATABASE_URL; без него тесты пропускаются.
func newTestStore(t *testing.T) *Store {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}
	store, err := New(Options{DSN: dsn, AutoMigrate: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newProfile(t *testing.T, store *Store) *domain.Profile {
	p, err := store.CreateProfile(context.Background(), &domain.Profile{Username: "u_" + uuid.NewString()[:8]})
	require.NoError(t, err)
	return p
}

func TestStore_ReactionConflictIsTranslated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	author := newProfile(t, store)

	post, err := store.CreatePost(ctx, &domain.Post{UserID: author.ID, MediaURL: "u", MediaType: domain.MediaImage}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.DeletePost(ctx, post.ID) })

	require.NoError(t, store.AddReaction(ctx, storage.PostLikes, author.ID, post.ID))
	assert.ErrorIs(t, store.AddReaction(ctx, storage.PostLikes, author.ID, post.ID), storage.ErrConflict)

	counts, err := store.CountReactions(ctx, storage.PostLikes, []string{post.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[post.ID])
}

func TestStore_UsernameIsCaseInsensitive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := newProfile(t, store)

	_, err := store.CreateProfile(ctx, &domain.Profile{Username: strings.ToUpper(p.Username)})
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestStore_FollowConflictAndNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	a, b := newProfile(t, store), newProfile(t, store)

	require.NoError(t, store.AddFollow(ctx, a.ID, b.ID))
	assert.ErrorIs(t, store.AddFollow(ctx, a.ID, b.ID), storage.ErrConflict)

	_, err := store.GetPostByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, storage.ErrNotFound)

	removed, err := store.RemoveFollow(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestStore_TopLevelCommentsAndReplies(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	author := newProfile(t, store)

	post, err := store.CreatePost(ctx, &domain.Post{UserID: author.ID, MediaURL: "u", MediaType: domain.MediaImage}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.DeletePost(ctx, post.ID) })

	top, err := store.CreateComment(ctx, &domain.Comment{PostID: post.ID, UserID: author.ID, Content: "top"})
	require.NoError(t, err)
	_, err = store.CreateComment(ctx, &domain.Comment{PostID: post.ID, UserID: author.ID, Content: "reply", ParentCommentID: &top.ID})
	require.NoError(t, err)

	comments, total, err := store.GetTopLevelComments(ctx, post.ID, storage.PageArgs{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, comments, 1)

	replies, err := store.GetRepliesByParentIDs(ctx, []string{top.ID})
	require.NoError(t, err)
	assert.Len(t, replies[top.ID], 1)

	require.NoError(t, store.DeleteComment(ctx, top.ID))
	replies, err = store.GetRepliesByParentIDs(ctx, []string{top.ID})
	require.NoError(t, err)
	assert.Empty(t, replies[top.ID])
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\%\_done\\`, escapeLike(`100%_done\`))
}
