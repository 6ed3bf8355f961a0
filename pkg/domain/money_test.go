package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/appsail/convo/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoney_Rendering(t *testing.T) {
	assert.Equal(t, "10000.00", domain.Units(10000).String())
	assert.Equal(t, "10000", domain.Units(10000).Short())
	assert.Equal(t, "100.50", domain.FromFloat(100.5).Short())
	assert.Equal(t, "-3.25", domain.FromFloat(-3.25).String())
	assert.Equal(t, "0.00", domain.Money(0).String())
}

func TestMoney_Whole(t *testing.T) {
	assert.Equal(t, int64(33), domain.FromFloat(33.99).Whole())
	assert.Equal(t, int64(-1), domain.FromFloat(-0.5).Whole())
	assert.True(t, domain.Units(5).IsWhole())
	assert.False(t, domain.FromFloat(5.01).IsWhole())
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in   string
		want domain.Money
	}{
		{"90", domain.Units(90)},
		{" 100.5 ", domain.FromFloat(100.5)},
		{"Rs. 3", domain.Units(3)},
		{"₹5000", domain.Units(5000)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := domain.ParseMoney(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := domain.ParseMoney("lots")
	assert.Error(t, err)
}

func TestMoney_JSON(t *testing.T) {
	var order domain.Order
	require.NoError(t, json.Unmarshal([]byte(`{"grand_total": 5000}`), &order))
	assert.Equal(t, domain.Units(5000), order.GrandTotal)

	require.NoError(t, json.Unmarshal([]byte(`{"grand_total": "49.5"}`), &order))
	assert.Equal(t, domain.FromFloat(49.5), order.GrandTotal)

	out, err := json.Marshal(domain.LineItem{Name: "x", Amount: domain.Units(3), Quantity: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"x","amount":3,"quantity":1}`, string(out))
}
