package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/appsail/convo/pkg/adapters/redis"
	"github.com/appsail/convo/pkg/domain"
	"github.com/appsail/convo/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)

	store := redis.NewFromClient(client)
	ports.RunStateStoreContract(t, store)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)
	now := time.Now()
	clock := func() time.Time { return now }

	store := redis.NewFromClient(client, redis.WithTTL(time.Second), redis.WithClock(clock))
	ctx := context.Background()
	key := "919876543210"

	err := store.Put(ctx, key, domain.NewConversationState(key, domain.FlowScripted, "question_1"), ports.PutOptions{})
	require.NoError(t, err)

	keys, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Contains(t, keys, key)

	loaded, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, loaded.ExpiresAt.IsZero())

	mr.FastForward(2 * time.Second)
	now = now.Add(2 * time.Second)

	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)

	keys, err = store.List(ctx)
	assert.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRedisStore_DefaultTTL(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)

	require.NoError(t, store.Put(context.Background(), "k", domain.NewConversationState("k", domain.FlowWallet, "initial"), ports.PutOptions{}))
	assert.Equal(t, redis.DefaultTTL, mr.TTL("convo:state:k"))
}

func TestRedisStore_RenewalKeepsTTL(t *testing.T) {
	mr, client := newClient(t)
	ctx := context.Background()
	store := redis.NewFromClient(client, redis.WithTTL(time.Hour), redis.WithExtendOnWrite(false))
	s := domain.NewConversationState("k", domain.FlowWallet, "initial")

	require.NoError(t, store.Put(ctx, "k", s, ports.PutOptions{}))
	mr.FastForward(20 * time.Minute)

	require.NoError(t, store.Put(ctx, "k", s, ports.PutOptions{Renewal: true}))
	assert.Equal(t, 40*time.Minute, mr.TTL("convo:state:k"))

	require.NoError(t, store.Put(ctx, "k", s, ports.PutOptions{}))
	assert.Equal(t, time.Hour, mr.TTL("convo:state:k"))
}

func TestRedisStore_RenewalExtendsByDefault(t *testing.T) {
	mr, client := newClient(t)
	ctx := context.Background()
	store := redis.NewFromClient(client, redis.WithTTL(time.Hour))
	s := domain.NewConversationState("k", domain.FlowWallet, "initial")

	require.NoError(t, store.Put(ctx, "k", s, ports.PutOptions{}))
	mr.FastForward(20 * time.Minute)

	require.NoError(t, store.Put(ctx, "k", s, ports.PutOptions{Renewal: true}))
	assert.Equal(t, time.Hour, mr.TTL("convo:state:k"))
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)

	store := redis.NewFromClient(client, redis.WithPrefix("custom:app:"))
	ctx := context.Background()

	err := store.Put(ctx, "my-key", domain.NewConversationState("my-key", domain.FlowReminder, "awaiting_payment_action"), ports.PutOptions{})
	assert.NoError(t, err)

	assert.True(t, mr.Exists("custom:app:my-key"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:index"), "Expected index with custom prefix to exist")

	list, err := store.List(ctx)
	assert.NoError(t, err)
	assert.Contains(t, list, "my-key")
}
