package media

import (
	"context"
	"sync"
)

type object struct {
	contentType string
	data        []byte
}

// MemoryStore хранит объекты в памяти. Используется в режиме разработки и в тестах.
type MemoryStore struct {
	mu      sync.RWMutex
	base    string
	objects map[string]object
}

func NewMemoryStore(base string) *MemoryStore {
	if base == "" {
		base = "memory://media/"
	}
	return &MemoryStore{base: base, objects: make(map[string]object)}
}

func (s *MemoryStore) Put(_ context.Context, key, contentType string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{contentType: contentType, data: append([]byte(nil), data...)}
	return s.base + key, nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) KeyFromURL(url string) (string, bool) {
	return keyFromURL(s.base, url)
}

// Has сообщает, хранится ли объект.
func (s *MemoryStore) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.objects[key]
	return ok
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
