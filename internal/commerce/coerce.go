package commerce

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// CoerceAmount converts loosely typed input into a non-negative minor-unit amount. Anything
// that is not a finite, non-negative number becomes 0, and so does anything past int64 range.
// Fractions are truncated.
func CoerceAmount(value any) int64 {
	d, ok := toDecimal(value)
	if !ok || d.IsNegative() || d.GreaterThan(maxAmount) {
		return 0
	}
	return d.IntPart()
}

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// CoerceQuantity converts loosely typed input into a non-negative integer quantity.
func CoerceQuantity(value any) int {
	n := CoerceAmount(value)
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

// NonNegative clamps negative amounts to 0.
func NonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}

func toDecimal(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return v, true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int32:
		return decimal.NewFromInt32(v), true
	case int64:
		return decimal.NewFromInt(v), true
	case uint32:
		return decimal.NewFromInt(int64(v)), true
	case float32:
		return fromFloat(float64(v))
	case float64:
		return fromFloat(v)
	case json.Number:
		return fromString(v.String())
	case string:
		return fromString(v)
	case *int64:
		if v == nil {
			return decimal.Zero, false
		}
		return decimal.NewFromInt(*v), true
	default:
		return decimal.Zero, false
	}
}

func fromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

func fromString(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, false
	}
	// thousands separators as exported by spreadsheets, e.g. "45,000"
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "_", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
