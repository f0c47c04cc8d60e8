package pricing

import (
	"strings"

	"pricer/internal"
	"pricer/internal/util"
)

// Normalize converts one raw service record into a PricingResult. The
// upstream contract is inconsistently cased (Price vs price, Source vs
// source), so every fallback chain lives here and nowhere else.
func Normalize(raw internal.RawResultRecord, position int) internal.PricingResult {
	result := internal.PricingResult{
		ItemNumber:  position + 1,
		Description: pickString(raw, "description", "Description", "item", "Item", "itemDescription"),
		Source:      pickString(raw, "source", "Source", "replacementSource", "Replacement Source"),
		Status:      normalizeStatus(pickString(raw, "status", "Status")),
	}

	if n := util.Amount(pick(raw, "itemNumber", "ItemNumber", "item_number", "Item #")); n != nil && *n > 0 {
		result.ItemNumber = int(*n)
	}

	result.BasePrice = util.PositiveAmount(pick(raw, "basePrice", "BasePrice", "Base Price", "price", "Price", "unitPrice", "UnitPrice"))
	result.AdjustedPrice = util.PositiveAmount(pick(raw, "adjustedPrice", "AdjustedPrice", "Adjusted Price"))
	if result.AdjustedPrice == nil {
		result.AdjustedPrice = result.BasePrice
	}
	result.TotalPrice = util.PositiveAmount(pick(raw, "totalPrice", "TotalPrice", "Total Price", "total", "Total"))
	result.Quantity = util.Amount(pick(raw, "qty", "QTY", "Qty", "quantity", "Quantity"))

	if u := pickString(raw, "url", "URL", "Url", "link", "Link"); u != "" {
		result.URL = util.StringPtr(u)
	}

	// Upstream tier (e.g. from image analysis) is authoritative when present.
	if tier := pickString(raw, "pricingTier", "PricingTier", "tier", "Tier"); tier != "" {
		switch internal.PricingTier(strings.ToUpper(strings.TrimSpace(tier))) {
		case internal.TierExactMatch:
			result.Tier = internal.TierExactMatch
		case internal.TierWebSearch:
			result.Tier = internal.TierWebSearch
		case internal.TierMarketAverage:
			result.Tier = internal.TierMarketAverage
		case internal.TierCategoryBaseline:
			result.Tier = internal.TierCategoryBaseline
		case internal.TierUnavailable:
			result.Tier = internal.TierUnavailable
		}
	}

	if conf := util.Amount(pick(raw, "confidence", "Confidence")); conf != nil {
		c := *conf
		if c < 0 {
			c = 0
		}
		if c > 1 {
			c = 1
		}
		result.Confidence = c
	}

	result.DepreciationCategory = pickString(raw, "depreciationCategory", "DepreciationCategory", "depCategory")
	result.DepreciationPercent = util.Amount(pick(raw, "depreciationPercent", "DepreciationPercent", "depPercent"))
	result.DepreciationAmount = util.Amount(pick(raw, "depreciationAmount", "DepreciationAmount", "depAmount"))

	return result
}

func normalizeStatus(value string) internal.PricingStatus {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "found":
		return internal.StatusFound
	case "estimated", "estimate":
		return internal.StatusEstimated
	case "unavailable", "not_found", "not-found":
		return internal.StatusUnavailable
	default:
		return internal.StatusManualReview
	}
}

func pick(raw internal.RawResultRecord, keys ...string) any {
	for _, key := range keys {
		if v, ok := raw[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func pickString(raw internal.RawResultRecord, keys ...string) string {
	for _, key := range keys {
		if v, ok := raw[key]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}
