package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenCounter struct{}

func (brokenCounter) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("redis down")
}

func fixedLimiter(c Counter, limit int64) *Limiter {
	l := New(c, limit, time.Minute, nil)
	now := time.Date(2026, 1, 1, 12, 0, 30, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l
}

func TestLimiter_AllowWithinWindow(t *testing.T) {
	l := fixedLimiter(NewMemoryCounter(), 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, _, err := l.Allow(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, retry, err := l.Allow(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 30*time.Second, retry)

	ok, _, err = l.Allow(ctx, "u2")
	require.NoError(t, err)
	assert.True(t, ok, "keys are independent")
}

func TestLimiter_NewWindowResets(t *testing.T) {
	l := fixedLimiter(NewMemoryCounter(), 1)
	ctx := context.Background()

	ok, _, _ := l.Allow(ctx, "u1")
	assert.True(t, ok)
	ok, _, _ = l.Allow(ctx, "u1")
	assert.False(t, ok)

	later := l.now().Add(time.Minute)
	l.now = func() time.Time { return later }
	ok, _, _ = l.Allow(ctx, "u1")
	assert.True(t, ok)
}

func TestLimiter_Disabled(t *testing.T) {
	l := New(brokenCounter{}, 0, time.Minute, nil)
	ok, _, err := l.Allow(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMiddleware(t *testing.T) {
	l := fixedLimiter(NewMemoryCounter(), 1)
	h := l.Middleware(func(r *http.Request) string { return r.Header.Get("X-User") })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }),
	)

	do := func(method, user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/", nil)
		req.Header.Set("X-User", user)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, do(http.MethodPost, "u1").Code)
	limited := do(http.MethodPost, "u1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusNoContent, do(http.MethodGet, "u1").Code, "reads are not limited")
	assert.Equal(t, http.StatusNoContent, do(http.MethodPost, "").Code, "anonymous requests are not keyed")
}

func TestMiddleware_FailsOpen(t *testing.T) {
	l := fixedLimiter(brokenCounter{}, 1)
	h := l.Middleware(func(*http.Request) string { return "u1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }),
	)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMemoryCounter_DropsExpiredWindows(t *testing.T) {
	c := NewMemoryCounter()
	l := New(c, 5, time.Minute, nil)
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	c.now = func() time.Time { return now }

	for i := 0; i < 1000; i++ {
		ok, _, err := l.Allow(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, ok)
		now = now.Add(time.Minute)
	}
	assert.Len(t, c.hits, 1)

	_, _, err := l.Allow(ctx, "u2")
	require.NoError(t, err)
	now = now.Add(2 * time.Minute)
	_, _, err = l.Allow(ctx, "u3")
	require.NoError(t, err)
	assert.Len(t, c.hits, 1, "expired keys of other users are swept too")
}

func TestMemoryCounter_CountsWithinWindow(t *testing.T) {
	c := NewMemoryCounter()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	n, _ := c.Incr(ctx, "k", time.Minute)
	assert.EqualValues(t, 1, n)
	now = now.Add(30 * time.Second)
	n, _ = c.Incr(ctx, "k", time.Minute)
	assert.EqualValues(t, 2, n)

	now = now.Add(time.Minute)
	n, _ = c.Incr(ctx, "k", time.Minute)
	assert.EqualValues(t, 1, n, "counter restarts after expiry")
}
