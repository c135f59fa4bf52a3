package storage

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps artifacts in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) WriteText(ctx context.Context, p, content string) error {
	return s.put(ctx, p, []byte(content))
}

func (s *MemoryStore) WriteStructured(ctx context.Context, p string, v any) error {
	data, err := marshalStructured(v)
	if err != nil {
		return storageErr("write", p, err)
	}
	return s.put(ctx, p, data)
}

func (s *MemoryStore) put(ctx context.Context, p string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return storageErr("write", p, err)
	}
	key, err := cleanKey(p)
	if err != nil {
		return storageErr("write", p, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStore) ReadText(ctx context.Context, p string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", storageErr("read", p, err)
	}
	key, err := cleanKey(p)
	if err != nil {
		return "", storageErr("read", p, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.data[key]
	if !ok {
		return "", storageErr("read", p, ErrNotFound)
	}
	return string(raw), nil
}

// Keys lists stored paths in sorted order.
func (s *MemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.data))
	for k := range s.data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
