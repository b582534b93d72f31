package dataloader

import (
	"context"
	"net/http"
	"time"

	"github.com/UkralStul/social-feed-service/internal/domain"
	"github.com/UkralStul/social-feed-service/internal/storage"
	"github.com/graph-gophers/dataloader"
)

type contextKey string

const key = contextKey("dataloaders")

// Loaders содержит все дата-лоадеры приложения.
type Loaders struct {
	ProfileByID        *dataloader.Loader
	RepliesByCommentID *dataloader.Loader
}

// NewLoaders создает лоадеры поверх хранилища. Кэш живет столько же, сколько Loaders.
func NewLoaders(store storage.Storage) *Loaders {
	profilesFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := keys.Keys()
		profiles, err := store.GetProfilesByIDs(ctx, ids)
		if err != nil {
			return failAll(len(keys), err)
		}
		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			// отсутствующий профиль - не ошибка, а nil
			results[i] = &dataloader.Result{Data: profiles[id]}
		}
		return results
	}

	repliesFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		parentIDs := keys.Keys()
		// Вызываем метод хранилища, который делает ОДИН запрос к БД
		repliesMap, err := store.GetRepliesByParentIDs(ctx, parentIDs)
		if err != nil {
			return failAll(len(keys), err)
		}
		// Формируем результат в том же порядке, что и ключи
		results := make([]*dataloader.Result, len(keys))
		for i, parentID := range parentIDs {
			results[i] = &dataloader.Result{Data: repliesMap[parentID]}
		}
		return results
	}

	return &Loaders{
		ProfileByID:        dataloader.NewBatchedLoader(profilesFn, dataloader.WithWait(time.Millisecond)),
		RepliesByCommentID: dataloader.NewBatchedLoader(repliesFn, dataloader.WithWait(time.Millisecond)),
	}
}

func failAll(n int, err error) []*dataloader.Result {
	results := make([]*dataloader.Result, n)
	for i := range results {
		results[i] = &dataloader.Result{Error: err}
	}
	return results
}

// Middleware для внедрения лоадеров в контекст запроса.
func Middleware(store storage.Storage, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), key, NewLoaders(store))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// For извлекает лоадеры из контекста или создает новые, если запрос пришел не через Middleware.
func For(ctx context.Context, store storage.Storage) *Loaders {
	if l, ok := ctx.Value(key).(*Loaders); ok && l != nil {
		return l
	}
	return NewLoaders(store)
}

// Profiles загружает профили пачкой. Отсутствующие id в результат не попадают.
func (l *Loaders) Profiles(ctx context.Context, ids []string) (map[string]*domain.Profile, error) {
	out := make(map[string]*domain.Profile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	ids = unique(ids)
	data, errs := l.ProfileByID.LoadMany(ctx, dataloader.NewKeysFromStrings(ids))()
	if err := firstError(errs); err != nil {
		return nil, err
	}
	for i, d := range data {
		if p, ok := d.(*domain.Profile); ok && p != nil {
			out[ids[i]] = p
		}
	}
	return out, nil
}

// Replies загружает ответы для набора корневых комментариев.
func (l *Loaders) Replies(ctx context.Context, parentIDs []string) (map[string][]*domain.Comment, error) {
	out := make(map[string][]*domain.Comment, len(parentIDs))
	if len(parentIDs) == 0 {
		return out, nil
	}
	parentIDs = unique(parentIDs)
	data, errs := l.RepliesByCommentID.LoadMany(ctx, dataloader.NewKeysFromStrings(parentIDs))()
	if err := firstError(errs); err != nil {
		return nil, err
	}
	for i, d := range data {
		if replies, ok := d.([]*domain.Comment); ok {
			out[parentIDs[i]] = replies
		}
	}
	return out, nil
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func unique(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
