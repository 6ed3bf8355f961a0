// Package calc holds the pure arithmetic behind the conversation flows.
package calc

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/appsail/convo/pkg/domain"
)

// ErrInvalidNumber is returned when a dimension is not a positive finite number.
var ErrInvalidNumber = errors.New("not a positive number")

// Quote is the result of a capacity calculation.
type Quote struct {
	Capacity float64
	Amount   float64
}

// CapacityText renders the capacity with exactly two decimals.
func (q Quote) CapacityText() string {
	return strconv.FormatFloat(q.Capacity, 'f', 2, 64)
}

// AmountText renders the amount with exactly two decimals.
func (q Quote) AmountText() string {
	return strconv.FormatFloat(q.Amount, 'f', 2, 64)
}

// ParseDimension parses a user supplied measure such as "2", " 3.5 " or "4m".
func ParseDimension(s string) (float64, error) {
	clean := strings.TrimSpace(strings.ToLower(s))
	clean = strings.TrimSuffix(clean, "meters")
	clean = strings.TrimSuffix(clean, "m")
	clean = strings.TrimSpace(clean)
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidNumber)
	}
	return f, nil
}

// Capacity computes length*width*height and the cost at rate per cubic unit.
func Capacity(length, width, height string, rate float64) (Quote, error) {
	dims := make([]float64, 0, 3)
	for _, raw := range []string{length, width, height} {
		v, err := ParseDimension(raw)
		if err != nil {
			return Quote{}, err
		}
		dims = append(dims, v)
	}
	capacity := dims[0] * dims[1] * dims[2]
	return Quote{Capacity: capacity, Amount: capacity * rate}, nil
}

// SplitAmounts returns {base, floor(base/2), floor(base/3)} on whole units.
func SplitAmounts(base domain.Money) []domain.Money {
	whole := base.Whole()
	return []domain.Money{
		base,
		domain.Units(floorDiv(whole, 2)),
		domain.Units(floorDiv(whole, 3)),
	}
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// TopUp credits unit*multiplier to balance.
func TopUp(balance, unit domain.Money, multiplier int64) domain.Money {
	return balance + unit*domain.Money(multiplier)
}

// Settle debits total from balance when the balance covers it.
func Settle(balance, total domain.Money) (domain.Money, bool) {
	if balance < total {
		return balance, false
	}
	return balance - total, true
}

// Shortfall is how much is missing to cover total, or zero.
func Shortfall(balance, total domain.Money) domain.Money {
	if balance >= total {
		return 0
	}
	return total - balance
}
