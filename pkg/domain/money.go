package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Money is an amount in minor units (paise).
// Whole-unit inputs round-trip exactly, so wallet arithmetic never drifts.
type Money int64

// Units builds a Money value from whole units.
func Units(n int64) Money {
	return Money(n * 100)
}

// FromFloat converts a decimal amount into minor units, rounding half away from zero.
func FromFloat(f float64) Money {
	return Money(math.Round(f * 100))
}

// ParseMoney parses a decimal string such as "90", "100.5" or "₹5000".
func ParseMoney(s string) (Money, error) {
	clean := strings.TrimSpace(s)
	clean = strings.TrimPrefix(clean, "₹")
	clean = strings.TrimPrefix(strings.TrimPrefix(clean, "Rs."), "Rs")
	clean = strings.TrimSpace(clean)
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	return FromFloat(f), nil
}

// Float returns the amount in major units.
func (m Money) Float() float64 {
	return float64(m) / 100
}

// Whole returns the whole-unit part, truncated toward negative infinity.
func (m Money) Whole() int64 {
	if m < 0 && m%100 != 0 {
		return int64(m)/100 - 1
	}
	return int64(m) / 100
}

// IsWhole reports whether the amount has no fractional part.
func (m Money) IsWhole() bool {
	return m%100 == 0
}

// String renders the amount with exactly two decimals.
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Short renders whole amounts without decimals and fractional ones with two.
func (m Money) Short() string {
	if m.IsWhole() {
		return strconv.FormatInt(int64(m)/100, 10)
	}
	return m.String()
}

// MarshalJSON encodes the amount as a JSON number in major units.
func (m Money) MarshalJSON() ([]byte, error) {
	if m.IsWhole() {
		return []byte(strconv.FormatInt(int64(m)/100, 10)), nil
	}
	return []byte(m.String()), nil
}

// UnmarshalJSON accepts JSON numbers and numeric strings.
func (m *Money) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		*m = 0
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*m = 0
			return nil
		}
		parsed, err := ParseMoney(s)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %s: %w", raw, err)
	}
	*m = FromFloat(f)
	return nil
}
