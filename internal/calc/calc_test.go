package calc_test

import (
	"testing"

	"github.com/appsail/convo/internal/calc"
	"github.com/appsail/convo/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapacity(t *testing.T) {
	q, err := calc.Capacity("2", "3", "4", 10)
	require.NoError(t, err)
	assert.Equal(t, "24.00", q.CapacityText())
	assert.Equal(t, "240.00", q.AmountText())

	q, err = calc.Capacity("1.5", " 2 ", "0.5m", 10)
	require.NoError(t, err)
	assert.Equal(t, "1.50", q.CapacityText())
	assert.Equal(t, "15.00", q.AmountText())
}

func TestCapacity_Invalid(t *testing.T) {
	for _, bad := range []string{"", "abc", "-2", "0", "NaN", "Inf"} {
		t.Run(bad, func(t *testing.T) {
			_, err := calc.Capacity(bad, "3", "4", 10)
			assert.ErrorIs(t, err, calc.ErrInvalidNumber)
		})
	}
}

func TestSplitAmounts(t *testing.T) {
	assert.Equal(t,
		[]domain.Money{domain.Units(100), domain.Units(50), domain.Units(33)},
		calc.SplitAmounts(domain.Units(100)))

	assert.Equal(t,
		[]domain.Money{domain.Units(90), domain.Units(45), domain.Units(30)},
		calc.SplitAmounts(domain.Units(90)))

	fractional := calc.SplitAmounts(domain.FromFloat(100.5))
	assert.Equal(t, domain.FromFloat(100.5), fractional[0])
	assert.Equal(t, domain.Units(50), fractional[1])
}

func TestWallet(t *testing.T) {
	assert.Equal(t, domain.Units(10000), calc.TopUp(0, domain.Units(1), 10000))
	assert.Equal(t, domain.Units(33000), calc.TopUp(domain.Units(3000), domain.Units(3), 10000))

	left, ok := calc.Settle(domain.Units(5000), domain.Units(5000))
	assert.True(t, ok)
	assert.Equal(t, domain.Money(0), left)

	left, ok = calc.Settle(domain.Units(3000), domain.Units(5000))
	assert.False(t, ok)
	assert.Equal(t, domain.Units(3000), left)

	assert.Equal(t, domain.Units(2000), calc.Shortfall(domain.Units(3000), domain.Units(5000)))
	assert.Equal(t, domain.Money(0), calc.Shortfall(domain.Units(6000), domain.Units(5000)))
}
