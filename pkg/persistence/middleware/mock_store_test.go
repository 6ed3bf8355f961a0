package middleware_test

import (
	"context"

	"github.com/appsail/convo/pkg/domain"
	"github.com/appsail/convo/pkg/ports"
)

// MockStore is a map-based store that keeps exactly what it was given.
type MockStore struct {
	data map[string]*domain.ConversationState
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]*domain.ConversationState),
	}
}

func (s *MockStore) Put(ctx context.Context, key string, state *domain.ConversationState, opts ports.PutOptions) error {
	if current, ok := s.data[key]; opts.CheckVersion && ok && current.Version != state.Version {
		return domain.ErrVersionConflict
	}
	state.Version++
	s.data[key] = state.Clone()
	return nil
}

func (s *MockStore) Get(ctx context.Context, key string) (*domain.ConversationState, error) {
	state, ok := s.data[key]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	return state.Clone(), nil
}

func (s *MockStore) Delete(ctx context.Context, key string) error {
	delete(s.data, key)
	return nil
}
