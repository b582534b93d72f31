// Package ratelimit ограничивает частоту изменяющих запросов пользователя
// фиксированным окном в Redis.
package ratelimit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/UkralStul/social-feed-service/internal/metrics"
	"github.com/redis/go-redis/v9"
)

// Counter атомарно увеличивает счетчик ключа, живущего window.
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounter - счетчик на INCR + EXPIRE в одной транзакции.
type RedisCounter struct {
	client redis.UniversalClient
}

func NewRedisCounter(client redis.UniversalClient) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// MemoryCounter - счетчик в памяти для одного процесса. Как и EXPIRE в Redis,
// ключ живет window с момента последнего увеличения.
type MemoryCounter struct {
	mu   sync.Mutex
	hits map[string]memoryHit
	now  func() time.Time
}

type memoryHit struct {
	count   int64
	expires time.Time
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{hits: make(map[string]memoryHit), now: time.Now}
}

func (c *MemoryCounter) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	hit, ok := c.hits[key]
	if !ok || !now.Before(hit.expires) {
		// новый ключ появляется раз в окно, заодно удаляем истекшие
		c.sweep(now)
		hit = memoryHit{}
	}
	hit.count++
	hit.expires = now.Add(window)
	c.hits[key] = hit
	return hit.count, nil
}

func (c *MemoryCounter) sweep(now time.Time) {
	for k, h := range c.hits {
		if !now.Before(h.expires) {
			delete(c.hits, k)
		}
	}
}

type Limiter struct {
	counter Counter
	limit   int64
	window  time.Duration
	log     *slog.Logger
	now     func() time.Time
}

func New(counter Counter, limit int64, window time.Duration, log *slog.Logger) *Limiter {
	if log == nil {
		log = slog.Default()
	}
	return &Limiter{counter: counter, limit: limit, window: window, log: log, now: time.Now}
}

// Allow учитывает запрос в текущем окне. limit <= 0 отключает ограничение.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	if l.limit <= 0 {
		return true, 0, nil
	}
	now := l.now()
	slot := now.UnixNano() / int64(l.window)
	windowEnd := time.Unix(0, (slot+1)*int64(l.window))

	n, err := l.counter.Incr(ctx, "rl:"+key+":"+strconv.FormatInt(slot, 10), l.window)
	if err != nil {
		return false, 0, err
	}
	return n <= l.limit, windowEnd.Sub(now), nil
}

// Middleware ограничивает запросы с ключом, который вернул keyFn. Пустой ключ не ограничивается.
// Ошибка счетчика пропускает запрос, чтобы недоступность Redis не блокировала запись.
func (l *Limiter) Middleware(keyFn func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			if key == "" || r.Method == http.MethodGet || r.Method == http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			ok, retry, err := l.Allow(r.Context(), key)
			if err != nil {
				l.log.Warn("rate limiter unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				metrics.RateLimited.Inc()
				w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"message": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
