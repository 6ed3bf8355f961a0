package session_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/appsail/convo/pkg/adapters/memory"
	"github.com/appsail/convo/pkg/domain"
	"github.com/appsail/convo/pkg/ports"
	"github.com/appsail/convo/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowStore simulates latency to provoke lost updates if locking is missing.
type slowStore struct {
	*memory.Store
}

func (s slowStore) Get(ctx context.Context, key string) (*domain.ConversationState, error) {
	time.Sleep(2 * time.Millisecond)
	return s.Store.Get(ctx, key)
}

func TestManager_WithLockSerializesReadModifyWrite(t *testing.T) {
	store := slowStore{memory.NewStore()}
	mgr := session.NewManager(store)
	ctx := context.Background()
	key := "919000000009"

	require.NoError(t, store.Put(ctx, key, domain.NewConversationState(key, domain.FlowScripted, "start"), ports.PutOptions{}))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := mgr.WithLock(ctx, key, func(ctx context.Context) error {
				st, err := store.Get(ctx, key)
				if err != nil {
					return err
				}
				n, _ := st.Data["n"].(int)
				st.Data["n"] = n + 1
				return store.Put(ctx, key, st, ports.PutOptions{Renewal: true, CheckVersion: true})
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	st, err := mgr.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 10, st.Data["n"])
	assert.Equal(t, int64(11), st.Version)
}

func TestManager_LockLifecycle(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()

	for i := 0; i < 1000; i++ {
		key := fmt.Sprintf("key-%d", i)
		_ = mgr.WithLock(ctx, key, func(context.Context) error { return nil })
		_ = mgr.Delete(ctx, key)
	}

	assert.Equal(t, 0, mgr.Active())
}

func TestManager_CancelledContext(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := mgr.WithLock(ctx, "k", func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestManager_List(t *testing.T) {
	store := memory.NewStore()
	mgr := session.NewManager(store)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "a", domain.NewConversationState("a", domain.FlowWallet, "initial"), ports.PutOptions{}))

	keys, err := mgr.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, keys)

	require.NoError(t, mgr.Delete(ctx, "a"))
	_, err = mgr.Get(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
}
