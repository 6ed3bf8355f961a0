package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/appsail/convo/pkg/adapters/memory"
	"github.com/appsail/convo/pkg/domain"
	"github.com/appsail/convo/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunStateStoreContract(t, store)
}

func TestMemoryRecords_Contract(t *testing.T) {
	ports.RunRecordStoreContract(t, memory.NewRecords())
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

	t.Run("Expires", func(t *testing.T) {
		store := memory.NewStore(memory.WithTTL(time.Hour), memory.WithClock(clock.Now))
		require.NoError(t, store.Put(ctx, "k", domain.NewConversationState("k", domain.FlowWallet, "initial"), ports.PutOptions{}))

		clock.Advance(59 * time.Minute)
		got, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, clock.now.Add(time.Minute), got.ExpiresAt)

		clock.Advance(2 * time.Minute)
		_, err = store.Get(ctx, "k")
		assert.ErrorIs(t, err, domain.ErrConversationNotFound)

		keys, err := store.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, keys)
	})

	t.Run("Renewal Keeps Expiry Without Extend", func(t *testing.T) {
		store := memory.NewStore(memory.WithTTL(time.Hour), memory.WithExtendOnWrite(false), memory.WithClock(clock.Now))
		s := domain.NewConversationState("k", domain.FlowWallet, "initial")
		require.NoError(t, store.Put(ctx, "k", s, ports.PutOptions{}))
		first, err := store.Get(ctx, "k")
		require.NoError(t, err)

		clock.Advance(30 * time.Minute)
		require.NoError(t, store.Put(ctx, "k", s, ports.PutOptions{Renewal: true}))
		renewed, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, first.ExpiresAt, renewed.ExpiresAt)

		require.NoError(t, store.Put(ctx, "k", s, ports.PutOptions{}))
		fresh, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, clock.now.Add(time.Hour), fresh.ExpiresAt)
	})

	t.Run("Renewal Extends By Default", func(t *testing.T) {
		store := memory.NewStore(memory.WithTTL(time.Hour), memory.WithClock(clock.Now))
		s := domain.NewConversationState("k", domain.FlowWallet, "initial")
		require.NoError(t, store.Put(ctx, "k", s, ports.PutOptions{}))

		clock.Advance(30 * time.Minute)
		require.NoError(t, store.Put(ctx, "k", s, ports.PutOptions{Renewal: true}))
		got, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, clock.now.Add(time.Hour), got.ExpiresAt)
	})
}

func TestMemoryStore_Isolation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	s := domain.NewConversationState("k", domain.FlowWallet, "initial")
	s.Data["a"] = "1"
	require.NoError(t, store.Put(ctx, "k", s, ports.PutOptions{}))

	s.Data["a"] = "mutated"
	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "1", got.Data["a"])
}
