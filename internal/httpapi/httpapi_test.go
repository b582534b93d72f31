package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/UkralStul/social-feed-service/internal/auth"
	"github.com/UkralStul/social-feed-service/internal/comments"
	"github.com/UkralStul/social-feed-service/internal/domain"
	"github.com/UkralStul/social-feed-service/internal/engagement"
	"github.com/UkralStul/social-feed-service/internal/events"
	"github.com/UkralStul/social-feed-service/internal/feed"
	"github.com/UkralStul/social-feed-service/internal/media"
	"github.com/UkralStul/social-feed-service/internal/notify"
	"github.com/UkralStul/social-feed-service/internal/posts"
	"github.com/UkralStul/social-feed-service/internal/profiles"
	"github.com/UkralStul/social-feed-service/internal/ratelimit"
	"github.com/UkralStul/social-feed-service/internal/storage/inmemory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret   = "http-test-secret"
	testAudience = "authenticated"
)

type testServer struct {
	t      *testing.T
	srv    *httptest.Server
	store  *inmemory.Store
	media  *media.MemoryStore
	events *events.Recorder
	alice  *domain.Profile
	bob    *domain.Profile
}

type options struct {
	limiter   *ratelimit.Limiter
	maxUpload int64
}

func newTestServer(t *testing.T, opts options) *testServer {
	t.Helper()
	store := inmemory.New()
	m := media.NewMemoryStore("")
	rec := &events.Recorder{}

	n := notify.New(store, rec, nil)
	f := feed.New(store)
	verifier, err := auth.NewJWTVerifier(testSecret, testAudience)
	require.NoError(t, err)

	h := New(store, Services{
		Feed:       f,
		Posts:      posts.New(store, m, f, nil),
		Comments:   comments.New(store, n, nil),
		Engagement: engagement.New(store, n, nil),
		Notify:     n,
		Profiles:   profiles.New(store, m, nil),
	}, Options{
		Verifier:      verifier,
		Limiter:       opts.limiter,
		MaxUploadSize: opts.maxUpload,
		CORSOrigins:   []string{"*"},
	})
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)

	ctx := context.Background()
	alice, err := store.CreateProfile(ctx, &domain.Profile{Username: "alice", Name: "Alice"})
	require.NoError(t, err)
	bob, err := store.CreateProfile(ctx, &domain.Profile{Username: "bob", Name: "Bob"})
	require.NoError(t, err)

	return &testServer{t: t, srv: srv, store: store, media: m, events: rec, alice: alice, bob: bob}
}

func (s *testServer) token(p *domain.Profile) string {
	tok, err := auth.Sign(testSecret, testAudience, auth.Identity{UserID: p.ID, Email: p.Username + "@example.com"}, time.Hour)
	require.NoError(s.t, err)
	return tok
}

// do выполняет запрос и декодирует JSON-ответ в out, если out не nil.
func (s *testServer) do(as *domain.Profile, method, path string, body any, out any) *http.Response {
	s.t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		rdr = bytes.NewReader(raw)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, rdr)
	require.NoError(s.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.send(as, req, out)
}

func (s *testServer) send(as *domain.Profile, req *http.Request, out any) *http.Response {
	s.t.Helper()
	if as != nil {
		req.Header.Set("Authorization", "Bearer "+s.token(as))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(s.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

type part struct {
	field, filename, contentType string
	data                         []byte
}

func (s *testServer) multipart(as *domain.Profile, method, path string, fields map[string][]string, files []part, out any) *http.Response {
	s.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, vs := range fields {
		for _, v := range vs {
			require.NoError(s.t, mw.WriteField(k, v))
		}
	}
	for _, f := range files {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.field, f.filename))
		hdr.Set("Content-Type", f.contentType)
		w, err := mw.CreatePart(hdr)
		require.NoError(s.t, err)
		_, err = w.Write(f.data)
		require.NoError(s.t, err)
	}
	require.NoError(s.t, mw.Close())

	req, err := http.NewRequest(method, s.srv.URL+path, &buf)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.send(as, req, out)
}

func (s *testServer) createPost(as *domain.Profile, caption string, mentions ...string) *domain.PostView {
	s.t.Helper()
	var view domain.PostView
	resp := s.multipart(as, http.MethodPost, "/posts",
		map[string][]string{"caption": {caption}, "mentions": mentions},
		[]part{{field: "media", filename: "photo.jpg", contentType: "image/jpeg", data: []byte{0xff, 0xd8, 0xff}}},
		&view)
	require.Equal(s.t, http.StatusCreated, resp.StatusCode)
	return &view
}

type errorBody struct {
	Message string `json:"message"`
}

func TestAuth_Required(t *testing.T) {
	s := newTestServer(t, options{})

	var body errorBody
	resp := s.do(nil, http.MethodGet, "/posts", nil, &body)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, body.Message)

	req, err := http.NewRequest(http.MethodGet, s.srv.URL+"/posts", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer garbage")
	resp = s.send(nil, req, &body)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid or expired token", body.Message)

	tok, err := auth.Sign(testSecret, testAudience, auth.Identity{UserID: "user-1"}, time.Hour)
	require.NoError(t, err)
	req, err = http.NewRequest(http.MethodGet, s.srv.URL+"/posts", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp = s.send(nil, req, &body)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "subject must be a uuid")

	resp = s.do(nil, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPosts_CreateListAndFeed(t *testing.T) {
	s := newTestServer(t, options{})

	post := s.createPost(s.alice, "sunset #Beach with @bob", "bob")
	assert.Equal(t, domain.MediaImage, post.MediaType)
	require.NotNil(t, post.Author)
	assert.Equal(t, "alice", post.Author.Username)
	assert.Equal(t, 1, s.media.Len())

	// у bob нет подписок: лента в режиме обзора
	var page domain.List[*domain.PostView]
	resp := s.do(s.bob, http.MethodGet, "/posts/feed", nil, &page)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, page.Total)
	assert.Equal(t, 1, page.TotalPages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, post.ID, page.Items[0].ID)

	resp = s.do(s.bob, http.MethodGet, "/posts/mentions", nil, &page)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, page.Total)

	resp = s.do(s.bob, http.MethodGet, "/posts/hashtag/beach", nil, &page)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, page.Total)

	var info domain.HashtagInfo
	resp = s.do(s.bob, http.MethodGet, "/hashtags/BEACH", nil, &info)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.HashtagInfo{Name: "beach", PostsCount: 1, Exists: true}, info)

	resp = s.do(s.bob, http.MethodGet, "/posts?limit=1&page=2", nil, &page)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, page.Items)
	assert.Equal(t, 2, page.Page)
}

func TestPosts_CreateValidation(t *testing.T) {
	s := newTestServer(t, options{maxUpload: 1024})

	var body errorBody
	resp := s.multipart(s.alice, http.MethodPost, "/posts", map[string][]string{"caption": {"no media"}}, nil, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.multipart(s.alice, http.MethodPost, "/posts", nil,
		[]part{{field: "media", filename: "doc.pdf", contentType: "application/pdf", data: []byte("%PDF")}}, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.multipart(s.alice, http.MethodPost, "/posts", nil,
		[]part{{field: "media", filename: "big.jpg", contentType: "image/jpeg", data: bytes.Repeat([]byte{1}, 4096)}}, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(s.alice, http.MethodPost, "/posts", map[string]string{"caption": "json"}, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Zero(t, s.media.Len())
}

func TestPosts_UpdateAndDeleteOwnership(t *testing.T) {
	s := newTestServer(t, options{})
	post := s.createPost(s.alice, "first")

	var body errorBody
	resp := s.do(s.bob, http.MethodPut, "/posts/"+post.ID, map[string]string{"caption": "hijack"}, &body)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	var view domain.PostView
	resp = s.do(s.alice, http.MethodPut, "/posts/"+post.ID, map[string]string{"caption": "edited"}, &view)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "edited", view.Caption)

	resp = s.do(s.bob, http.MethodDelete, "/posts/"+post.ID, nil, &body)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = s.do(s.alice, http.MethodDelete, "/posts/"+post.ID, nil, &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Zero(t, s.media.Len())

	resp = s.do(s.alice, http.MethodGet, "/posts/"+post.ID, nil, &body)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = s.do(s.alice, http.MethodGet, "/posts/not-a-uuid", nil, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPosts_LikeToggleAndNotifications(t *testing.T) {
	s := newTestServer(t, options{})
	post := s.createPost(s.alice, "like me")

	var like likeResponse
	resp := s.do(s.bob, http.MethodPost, "/posts/"+post.ID+"/like", nil, &like)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, like.Liked)

	var list domain.NotificationList
	resp = s.do(s.alice, http.MethodGet, "/notifications", nil, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list.Items, 1)
	assert.EqualValues(t, 1, list.UnreadCount)
	assert.Equal(t, domain.NotificationLike, list.Items[0].Type)
	require.NotNil(t, list.Items[0].Actor)
	assert.Equal(t, "bob", list.Items[0].Actor.Username)
	assert.Len(t, s.events.Events, 1)

	resp = s.do(s.bob, http.MethodPost, "/posts/"+post.ID+"/like", nil, &like)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, like.Liked)

	resp = s.do(s.alice, http.MethodGet, "/notifications", nil, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, list.Items)
	assert.Zero(t, list.UnreadCount)

	var view domain.PostView
	s.do(s.bob, http.MethodGet, "/posts/"+post.ID, nil, &view)
	assert.Zero(t, view.LikesCount)
	assert.False(t, view.IsLiked)
}

func TestNotifications_ReadAndDeleteScopedToRecipient(t *testing.T) {
	s := newTestServer(t, options{})
	post := s.createPost(s.alice, "note")
	s.do(s.bob, http.MethodPost, "/posts/"+post.ID+"/like", nil, nil)

	var list domain.NotificationList
	s.do(s.alice, http.MethodGet, "/notifications", nil, &list)
	require.Len(t, list.Items, 1)
	id := list.Items[0].ID

	// чужое уведомление: 200 и никаких изменений
	resp := s.do(s.bob, http.MethodPut, "/notifications/"+id+"/read", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	s.do(s.alice, http.MethodGet, "/notifications", nil, &list)
	assert.EqualValues(t, 1, list.UnreadCount)

	resp = s.do(s.alice, http.MethodPut, "/notifications/read-all", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	s.do(s.alice, http.MethodGet, "/notifications", nil, &list)
	assert.Zero(t, list.UnreadCount)
	assert.EqualValues(t, 1, list.Total)

	s.do(s.bob, http.MethodDelete, "/notifications/"+id, nil, nil)
	s.do(s.alice, http.MethodGet, "/notifications", nil, &list)
	assert.EqualValues(t, 1, list.Total)

	s.do(s.alice, http.MethodDelete, "/notifications/"+id, nil, nil)
	s.do(s.alice, http.MethodGet, "/notifications", nil, &list)
	assert.Zero(t, list.Total)
}

func TestComments_ThreadAndReactions(t *testing.T) {
	s := newTestServer(t, options{})
	post := s.createPost(s.alice, "discuss")
	base := "/posts/" + post.ID + "/comments"

	var top domain.CommentView
	resp := s.do(s.bob, http.MethodPost, base, commentBody{Content: "  first!  "}, &top)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "first!", top.Content)

	var reply domain.CommentView
	resp = s.do(s.alice, http.MethodPost, base, commentBody{Content: "thanks", ParentCommentID: top.ID}, &reply)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body errorBody
	resp = s.do(s.bob, http.MethodPost, base, commentBody{Content: "deeper", ParentCommentID: reply.ID}, &body)
	assert.Contains(t, []int{http.StatusBadRequest, http.StatusNotFound}, resp.StatusCode)

	resp = s.do(s.bob, http.MethodPost, base, commentBody{Content: "   "}, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(s.bob, http.MethodPost, base, commentBody{Content: "hi", ParentCommentID: "not-a-uuid"}, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid parent_comment_id", body.Message)

	var page domain.List[*domain.CommentView]
	resp = s.do(s.alice, http.MethodGet, base, nil, &page)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, page.Total)
	require.Len(t, page.Items, 1)
	require.Len(t, page.Items[0].Replies, 1)
	assert.Equal(t, reply.ID, page.Items[0].Replies[0].ID)

	var state domain.ReactionState
	resp = s.do(s.alice, http.MethodPost, base+"/"+top.ID+"/dislike", nil, &state)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.ReactionState{IsDisliked: true}, state)

	resp = s.do(s.alice, http.MethodPost, base+"/"+top.ID+"/like", nil, &state)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.ReactionState{IsLiked: true}, state)

	resp = s.do(s.alice, http.MethodPut, base+"/"+top.ID, commentBody{Content: "edit"}, &body)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = s.do(s.bob, http.MethodDelete, base+"/"+top.ID, nil, &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	s.do(s.alice, http.MethodGet, base, nil, &page)
	assert.Zero(t, page.Total)
}

func TestUsers_ProfileFollowAndSaved(t *testing.T) {
	s := newTestServer(t, options{})

	var view domain.ProfileView
	resp := s.do(nil, http.MethodGet, "/users/"+s.bob.ID, nil, &view)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, view.IsFollowing)

	resp = s.do(s.alice, http.MethodPost, "/users/follow/"+s.bob.ID, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = s.do(s.alice, http.MethodPost, "/users/follow/"+s.bob.ID, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "repeated follow is success")

	var body errorBody
	resp = s.do(s.alice, http.MethodPost, "/users/follow/"+s.alice.ID, nil, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.do(s.alice, http.MethodGet, "/users/"+s.bob.ID, nil, &view)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, view.IsFollowing)
	assert.True(t, *view.IsFollowing)
	assert.EqualValues(t, 1, view.FollowersCount)

	var list domain.NotificationList
	s.do(s.bob, http.MethodGet, "/notifications", nil, &list)
	assert.EqualValues(t, 1, list.Total, "one follow notification per edge")

	resp = s.do(s.alice, http.MethodPost, "/users/unfollow/"+s.bob.ID, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	s.do(s.bob, http.MethodGet, "/notifications", nil, &list)
	assert.Zero(t, list.Total)

	post := s.createPost(s.bob, "save me")
	var saved saveResponse
	for i := 0; i < 2; i++ {
		resp = s.do(s.alice, http.MethodPost, "/posts/"+post.ID+"/save", nil, &saved)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, saved.Saved)
	}
	var page domain.List[*domain.PostView]
	s.do(s.alice, http.MethodGet, "/users/me/saved", nil, &page)
	require.Len(t, page.Items, 1)
	assert.True(t, page.Items[0].IsSaved)

	s.do(s.alice, http.MethodDelete, "/posts/"+post.ID+"/save", nil, &saved)
	assert.False(t, saved.Saved)
	s.do(s.alice, http.MethodGet, "/users/me/saved", nil, &page)
	assert.Empty(t, page.Items)

	s.do(s.alice, http.MethodGet, "/users/"+s.bob.ID+"/posts", nil, &page)
	assert.EqualValues(t, 1, page.Total)
}

func TestUsers_UpdateProfile(t *testing.T) {
	s := newTestServer(t, options{})

	var view domain.ProfileView
	resp := s.do(s.alice, http.MethodPut, "/users/profile", map[string]string{"bio": "hello"}, &view)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", view.Bio)

	var body errorBody
	resp = s.do(s.alice, http.MethodPut, "/users/profile", map[string]string{"username": "bob"}, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = s.multipart(s.alice, http.MethodPut, "/users/profile",
		map[string][]string{"name": {"Alice A."}},
		[]part{{field: "avatar", filename: "me.png", contentType: "image/png", data: []byte{0x89, 'P', 'N', 'G'}}},
		&view)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Alice A.", view.Name)
	assert.True(t, strings.HasPrefix(view.AvatarURL, "memory://"))
	assert.Equal(t, 1, s.media.Len())

	resp = s.do(s.alice, http.MethodGet, "/users/profile", nil, &view)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", view.Username)
}

func TestRateLimit_MutationsOnly(t *testing.T) {
	limiter := ratelimit.New(ratelimit.NewMemoryCounter(), 1, time.Hour, nil)
	s := newTestServer(t, options{limiter: limiter})
	post := s.createPost(s.alice, "limited")

	resp := s.do(s.alice, http.MethodPost, "/posts/"+post.ID+"/like", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	resp = s.do(s.alice, http.MethodGet, "/posts", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = s.do(s.bob, http.MethodPost, "/posts/"+post.ID+"/like", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
