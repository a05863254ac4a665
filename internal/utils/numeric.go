// internal/utils/numeric.go
package utils

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// CoerceDecimal converts loosely-typed numeric values (snapshot payloads,
// legacy imports) to a decimal, defaulting to zero rather than failing.
func CoerceDecimal(v interface{}) decimal.Decimal {
	if d, ok := CoerceNullableDecimal(v); ok {
		return d
	}
	return decimal.Zero
}

// CoerceNullableDecimal reports false when the value is absent or not a
// number, letting callers distinguish "missing" from an explicit zero.
func CoerceNullableDecimal(v interface{}) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return n, true
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case json.Number:
		if d, err := decimal.NewFromString(n.String()); err == nil {
			return d, true
		}
		return decimal.Zero, false
	case string:
		if n == "" {
			return decimal.Zero, false
		}
		if d, err := decimal.NewFromString(n); err == nil {
			return d, true
		}
		return decimal.Zero, false
	default:
		return decimal.Zero, false
	}
}
