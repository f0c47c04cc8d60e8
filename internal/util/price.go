package util

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"pricer/internal"
)

// Amount converts a heterogeneous price representation (number,
// currency-formatted string, absent) into a concrete number. Returns nil
// for anything that does not parse cleanly; never NaN, never a fabricated
// value. Zero and negative values pass through, which is the policy for
// depreciation amounts.
func Amount(v any) *float64 {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		return FloatPtr(t)
	case float32:
		return Amount(float64(t))
	case int:
		return FloatPtr(float64(t))
	case int64:
		return FloatPtr(float64(t))
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return Amount(f)
		}
		return nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		s = strings.NewReplacer("$", "", ",", "", " ", "", "\u00a0", "").Replace(s)
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			return nil
		}
		return FloatPtr(parsed)
	default:
		return nil
	}
}

// PositiveAmount applies the "ensure numeric" policy used for replacement
// prices: anything that is not a well-formed positive number becomes nil.
func PositiveAmount(v any) *float64 {
	p := Amount(v)
	if p == nil || *p <= 0 {
		return nil
	}
	return p
}

// Display renders a replacement price cell. The display policy is "never
// show a fake price": nil and non-positive values render as an empty string.
func Display(p *float64) string {
	if p == nil || *p <= 0 {
		return ""
	}
	return fmt.Sprintf("$%.2f", *p)
}

// DisplayAllowZero renders any present value, including $0.00. Used for
// depreciation amounts, where zero is a legitimate answer.
func DisplayAllowZero(p *float64) string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("$%.2f", *p)
}

// StatusLabel maps a pricing status to its display label. A status is never
// shown raw: anything unrecognized reads as "Processed".
func StatusLabel(s internal.PricingStatus) string {
	switch s {
	case internal.StatusFound:
		return "Found"
	case internal.StatusEstimated:
		return "Estimated"
	case internal.StatusManualReview:
		return "Manual Review"
	default:
		return "Processed"
	}
}
