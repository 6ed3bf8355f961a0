package ports

import (
	"context"
	"testing"
	"time"

	"github.com/appsail/convo/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStateStoreContract runs a suite of tests to verify that a StateStore implementation
// adheres to the defined interface contract.
func RunStateStoreContract(t *testing.T, store StateStore) {
	ctx := context.Background()
	key := "contract-" + time.Now().Format("20060102150405.000")

	t.Run("Put and Get", func(t *testing.T) {
		state := domain.NewConversationState(key, domain.FlowWallet, "awaiting_main_selection")
		state.LastMessageType = domain.ContentSelectionRequest
		state.LastOptions = []domain.Option{{Label: "Top up Wallet", ID: "top_up_wallet"}}
		state.Data["pending_recharge_amount"] = "3"
		state.PendingOrder = &domain.Order{GrandTotal: domain.Units(5000)}
		state.Log(domain.OriginAgent, "selection_request", "Main menu")

		require.NoError(t, store.Put(ctx, key, state, PutOptions{}))
		assert.Equal(t, int64(1), state.Version, "Put should bump the version")

		loaded, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, state.CurrentState, loaded.CurrentState)
		assert.Equal(t, state.LastOptions, loaded.LastOptions)
		assert.Equal(t, "3", loaded.Data["pending_recharge_amount"])
		require.NotNil(t, loaded.PendingOrder)
		assert.Equal(t, domain.Units(5000), loaded.PendingOrder.GrandTotal)
		assert.Len(t, loaded.History, 1)
		assert.Equal(t, int64(1), loaded.Version)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, "missing-"+key)
		assert.ErrorIs(t, err, domain.ErrConversationNotFound)
	})

	t.Run("Checked Write Rejects Stale Version", func(t *testing.T) {
		k := key + "-cas"
		first := domain.NewConversationState(k, domain.FlowReminder, "awaiting_payment_action")
		require.NoError(t, store.Put(ctx, k, first, PutOptions{CheckVersion: true}))

		a, err := store.Get(ctx, k)
		require.NoError(t, err)
		b, err := store.Get(ctx, k)
		require.NoError(t, err)

		a.CurrentState = "awaiting_payment_amount"
		require.NoError(t, store.Put(ctx, k, a, PutOptions{Renewal: true, CheckVersion: true}))

		b.CurrentState = "awaiting_reminder_time"
		err = store.Put(ctx, k, b, PutOptions{Renewal: true, CheckVersion: true})
		assert.ErrorIs(t, err, domain.ErrVersionConflict)

		winner, err := store.Get(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, domain.StateID("awaiting_payment_amount"), winner.CurrentState)

		require.NoError(t, store.Delete(ctx, k))
	})

	t.Run("Unchecked Write Wins", func(t *testing.T) {
		k := key + "-lww"
		s := domain.NewConversationState(k, domain.FlowScripted, "question_1")
		require.NoError(t, store.Put(ctx, k, s, PutOptions{}))

		stale := domain.NewConversationState(k, domain.FlowScripted, "question_3")
		require.NoError(t, store.Put(ctx, k, stale, PutOptions{Renewal: true}))

		got, err := store.Get(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, domain.StateID("question_3"), got.CurrentState)
		require.NoError(t, store.Delete(ctx, k))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, key, domain.NewConversationState(key, domain.FlowWallet, "initial"), PutOptions{}))

		require.NoError(t, store.Delete(ctx, key))

		_, err := store.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrConversationNotFound, "Get after Delete should return ErrConversationNotFound")

		assert.NoError(t, store.Delete(ctx, key), "Deleting twice should be harmless")
	})

	lister, ok := store.(Lister)
	if !ok {
		return
	}

	t.Run("List", func(t *testing.T) {
		id1 := key + "-1"
		id2 := key + "-2"
		require.NoError(t, store.Put(ctx, id1, domain.NewConversationState(id1, domain.FlowWallet, "initial"), PutOptions{}))
		require.NoError(t, store.Put(ctx, id2, domain.NewConversationState(id2, domain.FlowWallet, "initial"), PutOptions{}))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		keys, err := lister.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, id1)
		assert.Contains(t, keys, id2)
	})
}

// RunRecordStoreContract verifies a RecordStore implementation.
func RunRecordStoreContract(t *testing.T, store RecordStore) {
	ctx := context.Background()
	mobile := "9190000" + time.Now().Format("150405")

	t.Run("Find Missing", func(t *testing.T) {
		_, err := store.FindByKey(ctx, "missing-"+mobile, "acme")
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	})

	t.Run("Create and Find", func(t *testing.T) {
		created, err := store.Create(ctx, &domain.Customer{Mobile: mobile, Org: "acme", AmountDue: domain.Units(90)})
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.False(t, created.CreatedAt.IsZero())

		found, err := store.FindByKey(ctx, mobile, "acme")
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
		assert.Equal(t, domain.Units(90), found.AmountDue)
		assert.Equal(t, domain.Money(0), found.Wallet)
	})

	t.Run("Org Scope", func(t *testing.T) {
		_, err := store.FindByKey(ctx, mobile, "other-org")
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)

		_, err = store.Create(ctx, &domain.Customer{Mobile: mobile})
		require.NoError(t, err)
		unscoped, err := store.FindByKey(ctx, mobile, "")
		require.NoError(t, err)
		assert.Equal(t, "", unscoped.Org)
	})

	t.Run("Update Wallet", func(t *testing.T) {
		found, err := store.FindByKey(ctx, mobile, "acme")
		require.NoError(t, err)

		found.Wallet = domain.FromFloat(10000.5)
		found.ReferenceID = "ref-1"
		_, err = store.Update(ctx, found)
		require.NoError(t, err)

		again, err := store.FindByKey(ctx, mobile, "acme")
		require.NoError(t, err)
		assert.Equal(t, domain.FromFloat(10000.5), again.Wallet)
		assert.Equal(t, "ref-1", again.ReferenceID)
	})

	t.Run("Update Missing", func(t *testing.T) {
		_, err := store.Update(ctx, &domain.Customer{ID: "does-not-exist", Mobile: mobile})
		assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	})
}
