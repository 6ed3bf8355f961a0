package wallet_test

import (
	"context"
	"testing"

	"github.com/appsail/convo/internal/flows/wallet"
	"github.com/appsail/convo/internal/runtime"
	"github.com/appsail/convo/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const key = "919000000003"

func newEngine(t *testing.T) *runtime.Engine {
	t.Helper()
	e, err := runtime.NewEngine([]*runtime.Flow{wallet.New(wallet.Config{})})
	require.NoError(t, err)
	return e
}

func pick(label string) *domain.InboundMessage {
	return &domain.InboundMessage{ContentType: domain.ContentSelection, Selection: &domain.Selection{Text: label}}
}

func order(total int64) *domain.InboundMessage {
	return &domain.InboundMessage{ContentType: domain.ContentOrder, Order: &domain.Order{
		GrandTotal: domain.Units(total),
		Products:   []domain.OrderProduct{{"product_code": "paneer-2", "quantity": 1}},
	}}
}

func paid(status string) *domain.InboundMessage {
	return &domain.InboundMessage{ContentType: domain.ContentPayment, Payment: &domain.Payment{Transaction: &domain.Transaction{Status: status}}}
}

func step(t *testing.T, e *runtime.Engine, st *domain.ConversationState, balance domain.Money, msg *domain.InboundMessage) *runtime.Outcome {
	t.Helper()
	out, err := e.Step(context.Background(), runtime.Input{
		Flow:         domain.FlowWallet,
		Key:          key,
		State:        st,
		Message:      msg,
		Customer:     &domain.Customer{ID: "c1", Mobile: key, Wallet: balance},
		Params:       domain.TurnParams{CatalogID: "cat-1", CatalogType: "multi"},
		ContactLabel: "Asha",
	})
	require.NoError(t, err)
	return out
}

func TestWallet_MainMenu(t *testing.T) {
	e := newEngine(t)

	out := step(t, e, nil, 0, &domain.InboundMessage{ContentType: domain.ContentText, Text: "hi"})
	assert.Equal(t, wallet.StateAwaitingMain, out.State.CurrentState)
	assert.Equal(t, "Hi Asha, welcome to Akshayakalpa! How can I help you today?", out.Message.SelectionRequest.Caption)
	require.Len(t, out.State.LastOptions, 2)

	catalog := step(t, e, out.State, 0, pick("top selling products"))
	assert.Equal(t, wallet.StateAwaitingOrder, catalog.State.CurrentState)
	require.NotNil(t, catalog.Message.Catalog)
	assert.Equal(t, "cat-1", catalog.Message.Catalog.CatalogID)
	assert.Equal(t, wallet.DefaultCatalog.Sections, catalog.Message.Catalog.Products)
	assert.Empty(t, catalog.State.LastOptions)

	recharge := step(t, e, out.State, 0, pick("Top up Wallet"))
	assert.Equal(t, wallet.StateAwaitingRecharge, recharge.State.CurrentState)
	assert.Equal(t, []domain.Option{
		{Label: "Rs. 1", ID: "recharge_1"},
		{Label: "Rs. 3", ID: "recharge_3"},
		{Label: "Rs. 5", ID: "recharge_5"},
	}, recharge.State.LastOptions)
}

func TestWallet_OrderCoveredByBalance(t *testing.T) {
	e := newEngine(t)

	out := step(t, e, nil, domain.Units(5000), order(5000))
	assert.True(t, out.Terminal)
	assert.True(t, out.Message.HandOff())
	assert.Nil(t, out.State.PendingOrder)
	require.Len(t, out.Effects, 1)
	assert.Equal(t, domain.Units(5000), out.Effects[0].Old)
	assert.Equal(t, domain.Money(0), out.Effects[0].New)
	assert.Contains(t, out.Message.Text, "Your new wallet balance is ₹0.00.")
}

func TestWallet_InsufficientThenCancel(t *testing.T) {
	e := newEngine(t)

	out := step(t, e, nil, domain.Units(3000), order(5000))
	assert.False(t, out.Terminal)
	assert.Equal(t, wallet.StateAwaitingTopUpChoice, out.State.CurrentState)
	require.NotNil(t, out.State.PendingOrder)
	assert.Equal(t, domain.Units(5000), out.State.PendingOrder.GrandTotal)
	assert.Empty(t, out.Effects)
	assert.Equal(t, "Your order total is ₹5000, but your wallet only has ₹3000. Please recharge your wallet to place the order again.", out.Message.SelectionRequest.Caption)

	cancel := step(t, e, out.State, domain.Units(3000), pick("Cancel Order"))
	assert.True(t, cancel.Terminal)
	assert.True(t, cancel.Message.HandOff())
	assert.Empty(t, cancel.Effects)
	assert.Equal(t, "Order has been abandoned.", cancel.Message.Text)
}

func TestWallet_TopUpSettlesPendingOrder(t *testing.T) {
	e := newEngine(t)

	out := step(t, e, nil, domain.Units(3000), order(5000))
	out = step(t, e, out.State, domain.Units(3000), pick("Top up Wallet"))
	assert.Equal(t, wallet.StateAwaitingRecharge, out.State.CurrentState)
	require.NotNil(t, out.State.PendingOrder)

	out = step(t, e, out.State, domain.Units(3000), pick("Rs. 1"))
	assert.Equal(t, wallet.StateAwaitingPayment, out.State.CurrentState)
	require.NotNil(t, out.Message.OrderDetails)
	assert.Equal(t, domain.Units(1), out.Message.OrderDetails.TotalAmount)
	assert.Equal(t, "Wallet Recharge", out.Message.OrderDetails.Header)
	assert.Contains(t, out.Message.OrderDetails.ReferenceID, "recharge_")
	assert.Equal(t, "Wallet Recharge ₹1", out.Message.OrderDetails.Products[0].Name)

	// The balance is read fresh at the payment turn.
	out = step(t, e, out.State, domain.Units(2000), paid("success"))
	assert.True(t, out.Terminal)
	require.Len(t, out.Effects, 2)
	assert.Equal(t, runtime.WalletChange{Old: domain.Units(2000), New: domain.Units(12000), Reason: wallet.ReasonTopUp}, out.Effects[0])
	assert.Equal(t, runtime.WalletChange{Old: domain.Units(12000), New: domain.Units(7000), Reason: wallet.ReasonDebit}, out.Effects[1])
	assert.Contains(t, out.Message.Text, "₹5000 has been debited")
	assert.Contains(t, out.Message.Text, "₹7000.00")
	assert.Nil(t, out.State.PendingOrder)
}

func TestWallet_TopUpStillInsufficient(t *testing.T) {
	e := newEngine(t)
	st := domain.NewConversationState(key, domain.FlowWallet, wallet.StateAwaitingPayment)
	st.PendingOrder = &domain.Order{GrandTotal: domain.Units(50000)}
	st.Data["recharge_unit"] = domain.Units(3).String()

	out := step(t, e, st, domain.Units(100), paid("success"))
	assert.False(t, out.Terminal)
	assert.Equal(t, wallet.StateAwaitingTopUpChoice, out.State.CurrentState)
	require.NotNil(t, out.State.PendingOrder)
	require.Len(t, out.Effects, 1)
	assert.Equal(t, domain.Units(30100), out.Effects[0].New)
	assert.Contains(t, out.Message.SelectionRequest.Caption, "still insufficient")
	assert.Len(t, out.State.LastOptions, 2)
}

func TestWallet_StandaloneTopUp(t *testing.T) {
	e := newEngine(t)
	st := domain.NewConversationState(key, domain.FlowWallet, wallet.StateAwaitingPayment)
	st.Data["recharge_unit"] = domain.Units(1).String()

	out := step(t, e, st, 0, paid("success"))
	assert.True(t, out.Terminal)
	require.Len(t, out.Effects, 1)
	assert.Equal(t, domain.Units(10000), out.Effects[0].New)
	assert.Equal(t, "Top up successful! ₹10000 has been added to your wallet. Your new balance is ₹10000.00.", out.Message.Text)

	failed := step(t, e, st, 0, paid("failed"))
	assert.True(t, failed.Terminal)
	assert.Empty(t, failed.Effects)
	assert.Equal(t, "Top up failed. Please try again later.", failed.Message.Text)
}

func TestWallet_FailedTopUpKeepsOrder(t *testing.T) {
	e := newEngine(t)
	st := domain.NewConversationState(key, domain.FlowWallet, wallet.StateAwaitingPayment)
	st.PendingOrder = &domain.Order{GrandTotal: domain.Units(500)}

	out := step(t, e, st, 0, paid("failed"))
	assert.False(t, out.Terminal)
	assert.Equal(t, wallet.StateAwaitingTopUpChoice, out.State.CurrentState)
	assert.NotNil(t, out.State.PendingOrder)
	assert.Empty(t, out.Effects)
}

func TestWallet_InvalidInputsRetry(t *testing.T) {
	e := newEngine(t)

	st := domain.NewConversationState(key, domain.FlowWallet, wallet.StateAwaitingOrder)
	out := step(t, e, st, 0, &domain.InboundMessage{ContentType: domain.ContentText, Text: "milk"})
	assert.True(t, out.Retry)
	assert.Equal(t, wallet.StateAwaitingOrder, out.State.CurrentState)
	assert.NotNil(t, out.Message.Catalog)

	out = step(t, e, st, 0, &domain.InboundMessage{ContentType: domain.ContentOrder, Order: &domain.Order{}})
	assert.True(t, out.Retry)
	assert.Equal(t, wallet.ReasonInvalidOrder, out.Reason)

	st = domain.NewConversationState(key, domain.FlowWallet, wallet.StateAwaitingPayment)
	st.Data["recharge_unit"] = domain.Units(5).String()
	out = step(t, e, st, 0, pick("Rs. 5"))
	assert.True(t, out.Retry)
	require.NotNil(t, out.Message.OrderDetails)
	assert.Equal(t, domain.Units(5), out.Message.OrderDetails.TotalAmount)

	st = domain.NewConversationState(key, domain.FlowWallet, wallet.StateAwaitingTopUpChoice)
	out = step(t, e, st, 0, pick("Maybe"))
	assert.True(t, out.Retry)
	assert.Equal(t, "Please choose a valid option.\n\nPlease top up your wallet and place your order again.", out.Message.SelectionRequest.Caption)
	assert.Len(t, out.State.LastOptions, 2)
}

func TestWallet_NoCustomer(t *testing.T) {
	e := newEngine(t)
	_, err := e.Step(context.Background(), runtime.Input{Flow: domain.FlowWallet, Key: key, Message: order(10)})
	assert.ErrorIs(t, err, wallet.ErrNoCustomer)
}
