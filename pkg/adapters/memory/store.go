package memory

import (
	"context"
	"sync"
	"time"

	"github.com/appsail/convo/pkg/domain"
	"github.com/appsail/convo/pkg/ports"
)

// DefaultTTL matches the conversation lifetime used by the shared backends.
const DefaultTTL = 24 * time.Hour

type entry struct {
	state     *domain.ConversationState
	expiresAt time.Time
}

// Store implements ports.StateStore in memory.
// Safe for concurrent use.
type Store struct {
	data          map[string]entry
	mu            sync.RWMutex
	ttl           time.Duration
	extendOnWrite bool
	now           func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the expiration for conversations. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithExtendOnWrite makes renewals refresh the expiry.
func WithExtendOnWrite(extend bool) Option {
	return func(s *Store) {
		s.extendOnWrite = extend
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a new in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		data:          make(map[string]entry),
		ttl:           DefaultTTL,
		extendOnWrite: true,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) expired(e entry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}

// Get retrieves a copy of the state.
func (s *Store) Get(ctx context.Context, key string) (*domain.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[key]
	if !ok || s.expired(e) {
		return nil, domain.ErrConversationNotFound
	}

	ret := e.state.Clone()
	ret.ExpiresAt = e.expiresAt
	return ret, nil
}

// Put stores a copy of the state.
func (s *Store) Put(ctx context.Context, key string, state *domain.ConversationState, opts ports.PutOptions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.data[key]
	if exists && s.expired(current) {
		exists = false
	}

	if opts.CheckVersion {
		stored := int64(0)
		if exists {
			stored = current.state.Version
		}
		if stored != state.Version {
			return domain.ErrVersionConflict
		}
	}

	expiresAt := time.Time{}
	if s.ttl > 0 {
		expiresAt = s.now().Add(s.ttl)
	}
	if opts.Renewal && !s.extendOnWrite && exists {
		expiresAt = current.expiresAt
	}

	state.Version++
	state.UpdatedAt = s.now().UTC()
	s.data[key] = entry{state: state.Clone(), expiresAt: expiresAt}
	return nil
}

// Delete removes the state.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// List returns live conversation keys.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k, e := range s.data {
		if !s.expired(e) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
