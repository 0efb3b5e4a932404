package subscriptions

import (
	"context"
	"sync"
)

// MemoryStore keeps subscriptions for the lifetime of the process.
type MemoryStore struct {
	subscriptions map[string][]string
	closed        bool
	mu            sync.RWMutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subscriptions: make(map[string][]string),
	}
}

func (s *MemoryStore) Load(ctx context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	symbols := s.subscriptions[userID]
	out := make([]string, len(symbols))
	copy(out, symbols)
	return out, nil
}

func (s *MemoryStore) Insert(ctx context.Context, userID, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	for _, existing := range s.subscriptions[userID] {
		if existing == symbol {
			return nil
		}
	}
	s.subscriptions[userID] = append(s.subscriptions[userID], symbol)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, userID, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	symbols := s.subscriptions[userID]
	for i, existing := range symbols {
		if existing == symbol {
			s.subscriptions[userID] = append(symbols[:i], symbols[i+1:]...)
			break
		}
	}

	if len(s.subscriptions[userID]) == 0 {
		delete(s.subscriptions, userID)
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
