package runtime_test

import (
	"testing"

	"github.com/appsail/convo/internal/runtime"
	"github.com/appsail/convo/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Build(t *testing.T) {
	b := runtime.NewBuilder(func() string { return "fixed" })

	t.Run("Text With Hand-off", func(t *testing.T) {
		msg := b.Build("9190", runtime.Text("bye"), true)
		assert.Equal(t, "9190", msg.To)
		assert.Equal(t, domain.ContentText, msg.ContentType)
		assert.Equal(t, "bye", msg.Text)
		assert.True(t, msg.HandOff())
		assert.Equal(t, "completed", msg.ConversationState.Status)
	})

	t.Run("Selection Without Hand-off", func(t *testing.T) {
		msg := b.Build("9190", runtime.Selection("Pick", payOptions...), false)
		require.NotNil(t, msg.SelectionRequest)
		assert.Equal(t, "Pick", msg.SelectionRequest.Caption)
		assert.Equal(t, payOptions, msg.SelectionRequest.Buttons)
		assert.Empty(t, msg.Text)
		assert.False(t, msg.HandOff())
	})

	t.Run("Order Details Fresh Reference", func(t *testing.T) {
		msg := b.Build("9190", runtime.Payment(runtime.PaymentRequest{
			Description:     "Payment for invoice amount ₹45",
			Header:          "Payment",
			ProductName:     "Payment ₹45",
			Amount:          domain.Units(45),
			Gateway:         domain.PaymentGateway{Type: "razorpay", Name: "RazorPayTest"},
			ReferencePrefix: "payment",
		}), false)
		od := msg.OrderDetails
		require.NotNil(t, od)
		assert.Equal(t, "payment_fixed", od.ReferenceID)
		assert.Equal(t, domain.Units(45), od.TotalAmount)
		assert.Equal(t, domain.Units(45), od.Subtotal)
		assert.Equal(t, domain.Money(0), od.Tax)
		assert.Equal(t, []domain.LineItem{{Name: "Payment ₹45", Amount: domain.Units(45), Quantity: 1}}, od.Products)
	})

	t.Run("Order Details Stable Reference", func(t *testing.T) {
		msg := b.Build("9190", runtime.Payment(runtime.PaymentRequest{Amount: domain.Units(1), ReferenceID: "INV-7"}), false)
		assert.Equal(t, "INV-7", msg.OrderDetails.ReferenceID)
	})

	t.Run("Catalog", func(t *testing.T) {
		msg := b.Build("9190", runtime.CatalogReply(domain.Catalog{Header: "Welcome to store", ProductCode: "paneer-2"}), false)
		require.NotNil(t, msg.Catalog)
		assert.Equal(t, domain.ContentCatalog, msg.ContentType)
		assert.Equal(t, "paneer-2", msg.Catalog.ProductCode)
	})
}

func TestBuilder_DefaultIDsAreUnique(t *testing.T) {
	b := runtime.NewBuilder(nil)
	req := runtime.PaymentRequest{Amount: domain.Units(1), ReferencePrefix: "recharge"}
	a := b.Build("k", runtime.Payment(req), false).OrderDetails.ReferenceID
	c := b.Build("k", runtime.Payment(req), false).OrderDetails.ReferenceID
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "recharge_")
}
