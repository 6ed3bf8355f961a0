package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/appsail/convo/pkg/domain"
	"github.com/appsail/convo/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// DefaultTTL is the lifetime of an idle conversation.
const DefaultTTL = 24 * time.Hour

// noExpiryScore is the index score of keys stored without a TTL (2100-01-01).
const noExpiryScore = 4102444800

// Store implements ports.StateStore using Redis.
type Store struct {
	client        *backend.Client
	prefix        string
	ttl           time.Duration
	extendOnWrite bool
	now           func() time.Time
}

type Option func(*Store)

// WithTTL sets the expiration for conversations. Zero disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for conversations.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithExtendOnWrite makes renewals refresh the TTL.
func WithExtendOnWrite(extend bool) Option {
	return func(s *Store) {
		s.extendOnWrite = extend
	}
}

// WithClock overrides the time source used for index scores.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client:        client,
		prefix:        "convo:state:",
		ttl:           DefaultTTL,
		extendOnWrite: true,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

func (s *Store) key(channelKey string) string {
	return s.prefix + channelKey
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Get retrieves the state and its remaining lifetime.
func (s *Store) Get(ctx context.Context, channelKey string) (*domain.ConversationState, error) {
	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, s.key(channelKey))
	ttlCmd := pipe.PTTL(ctx, s.key(channelKey))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, backend.Nil) {
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	val, err := getCmd.Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var state domain.ConversationState
	if err := json.Unmarshal(val, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	if remaining := ttlCmd.Val(); remaining > 0 {
		state.ExpiresAt = s.now().Add(remaining)
	}

	return &state, nil
}

// Put persists the state. Checked writes run under WATCH so a concurrent
// writer aborts the transaction.
func (s *Store) Put(ctx context.Context, channelKey string, state *domain.ConversationState, opts ports.PutOptions) error {
	key := s.key(channelKey)

	write := func(ctx context.Context, rd backend.Cmdable, pipe backend.Pipeliner) error {
		ttl, score, err := s.expiry(ctx, rd, key, opts)
		if err != nil {
			return err
		}

		next := *state
		next.Version = state.Version + 1
		next.UpdatedAt = s.now().UTC()
		data, err := json.Marshal(&next)
		if err != nil {
			return fmt.Errorf("failed to marshal state: %w", err)
		}

		pipe.Set(ctx, key, data, ttl)
		pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: channelKey})
		return nil
	}

	if !opts.CheckVersion {
		pipe := s.client.Pipeline()
		if err := write(ctx, s.client, pipe); err != nil {
			return err
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("failed to save to redis: %w", err)
		}
		s.bump(state)
		return nil
	}

	err := s.client.Watch(ctx, func(tx *backend.Tx) error {
		stored := int64(0)
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, backend.Nil):
		case err != nil:
			return fmt.Errorf("failed to read version: %w", err)
		default:
			var current struct {
				Version int64 `json:"version"`
			}
			if err := json.Unmarshal(raw, &current); err != nil {
				return fmt.Errorf("failed to unmarshal state: %w", err)
			}
			stored = current.Version
		}
		if stored != state.Version {
			return domain.ErrVersionConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe backend.Pipeliner) error {
			return write(ctx, tx, pipe)
		})
		return err
	}, key)

	switch {
	case err == nil:
		s.bump(state)
		return nil
	case errors.Is(err, backend.TxFailedErr):
		return domain.ErrVersionConflict
	case errors.Is(err, domain.ErrVersionConflict):
		return err
	default:
		return fmt.Errorf("failed to save to redis: %w", err)
	}
}

func (s *Store) bump(state *domain.ConversationState) {
	state.Version++
	state.UpdatedAt = s.now().UTC()
}

// expiry decides the SET TTL and the index score for a write.
func (s *Store) expiry(ctx context.Context, rd backend.Cmdable, key string, opts ports.PutOptions) (time.Duration, float64, error) {
	if opts.Renewal && !s.extendOnWrite {
		remaining, err := rd.PTTL(ctx, key).Result()
		if err != nil {
			return 0, 0, fmt.Errorf("failed to read ttl: %w", err)
		}
		if remaining > 0 {
			return backend.KeepTTL, float64(s.now().Add(remaining).Unix()), nil
		}
	}
	if s.ttl == 0 {
		return 0, noExpiryScore, nil
	}
	return s.ttl, float64(s.now().Add(s.ttl).Unix()), nil
}

// Delete removes the conversation.
func (s *Store) Delete(ctx context.Context, channelKey string) error {
	pipe := s.client.Pipeline()

	pipe.Del(ctx, s.key(channelKey))
	pipe.ZRem(ctx, s.indexKey(), channelKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}

// List returns live conversation keys, pruning expired index entries first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	now := float64(s.now().Unix())

	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired conversations: %w", err)
	}

	keys, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	return keys, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
