package core

import (
	"context"
	"fmt"
	"sync"
)

// MemoryTokenStore keeps the access credential in process memory. Useful
// for tests and for callers that persist elsewhere.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token AccessToken
	held  bool
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Save(_ context.Context, token AccessToken) error {
	if s == nil {
		return fmt.Errorf("core: token store is nil")
	}
	if token.Empty() {
		return fmt.Errorf("core: refusing to save an empty access token")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.held = true
	return nil
}

func (s *MemoryTokenStore) Load(_ context.Context) (AccessToken, bool, error) {
	if s == nil {
		return AccessToken{}, false, fmt.Errorf("core: token store is nil")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.held {
		return AccessToken{}, false, nil
	}
	return s.token, true, nil
}

func (s *MemoryTokenStore) Clear(_ context.Context) error {
	if s == nil {
		return fmt.Errorf("core: token store is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = AccessToken{}
	s.held = false
	return nil
}

var _ TokenStore = (*MemoryTokenStore)(nil)
