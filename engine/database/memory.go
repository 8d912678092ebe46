package database

import (
	"context"
	"sort"

	"github.com/sasha-s/go-deadlock"
)

type memory struct {
	mutex  *deadlock.RWMutex
	scopes map[string]map[string][]byte
}

// NewMemory returns a Database that lives only as long as the process.
func NewMemory() Database {
	return &memory{
		mutex:  &deadlock.RWMutex{},
		scopes: make(map[string]map[string][]byte),
	}
}

func (m *memory) Scope(namespace string) Scope {
	return &memoryScope{db: m, namespace: namespace}
}

func (m *memory) Close() error { return nil }

type memoryScope struct {
	db        *memory
	namespace string
}

func (s *memoryScope) Put(_ context.Context, key string, value []byte) error {
	s.db.mutex.Lock()
	defer s.db.mutex.Unlock()
	data, ok := s.db.scopes[s.namespace]
	if !ok {
		data = make(map[string][]byte)
		s.db.scopes[s.namespace] = data
	}
	data[key] = append([]byte(nil), value...)
	return nil
}

func (s *memoryScope) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.db.mutex.RLock()
	defer s.db.mutex.RUnlock()
	v, ok := s.db.scopes[s.namespace][key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *memoryScope) Delete(_ context.Context, key string) error {
	s.db.mutex.Lock()
	defer s.db.mutex.Unlock()
	delete(s.db.scopes[s.namespace], key)
	return nil
}

func (s *memoryScope) All(_ context.Context) ([]Entry, error) {
	s.db.mutex.RLock()
	defer s.db.mutex.RUnlock()
	var out []Entry
	for k, v := range s.db.scopes[s.namespace] {
		out = append(out, Entry{Key: k, Value: append([]byte(nil), v...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
