package pricing

import (
	"testing"

	"pricer/internal"
)

func TestNormalizeCasingFallbacks(t *testing.T) {
	lower := internal.RawResultRecord{
		"description": "Sony TV",
		"status":      "found",
		"source":      "bestbuy.com",
		"price":       499.99,
		"qty":         2.0,
		"url":         "https://bestbuy.com/tv",
	}
	upper := internal.RawResultRecord{
		"Description": "Sony TV",
		"Status":      "Found",
		"Source":      "bestbuy.com",
		"Price":       "$499.99",
		"Qty":         "2",
		"URL":         "https://bestbuy.com/tv",
	}

	a := Normalize(lower, 0)
	b := Normalize(upper, 0)

	if a.Description != b.Description || a.Status != b.Status || a.Source != b.Source {
		t.Fatalf("casing variants disagree: %+v vs %+v", a, b)
	}
	if a.BasePrice == nil || b.BasePrice == nil || *a.BasePrice != *b.BasePrice {
		t.Fatalf("prices disagree: %v vs %v", a.BasePrice, b.BasePrice)
	}
	if a.Quantity == nil || b.Quantity == nil || *a.Quantity != *b.Quantity {
		t.Fatalf("quantities disagree: %v vs %v", a.Quantity, b.Quantity)
	}
	if a.URL == nil || *a.URL != "https://bestbuy.com/tv" {
		t.Fatalf("url=%v", a.URL)
	}
}

func TestNormalizeDefaults(t *testing.T) {
	r := Normalize(internal.RawResultRecord{}, 4)
	if r.ItemNumber != 5 {
		t.Fatalf("itemNumber=%d", r.ItemNumber)
	}
	if r.Status != internal.StatusManualReview {
		t.Fatalf("status=%s", r.Status)
	}
	if r.BasePrice != nil || r.AdjustedPrice != nil || r.URL != nil {
		t.Fatalf("unexpected values: %+v", r)
	}
}

func TestNormalizeAdjustedFallsBackToBase(t *testing.T) {
	r := Normalize(internal.RawResultRecord{"price": 100.0, "status": "found"}, 0)
	if r.AdjustedPrice == nil || *r.AdjustedPrice != 100 {
		t.Fatalf("adjusted=%v", r.AdjustedPrice)
	}

	r = Normalize(internal.RawResultRecord{"price": 100.0, "adjustedPrice": 92.5}, 0)
	if r.AdjustedPrice == nil || *r.AdjustedPrice != 92.5 {
		t.Fatalf("adjusted=%v", r.AdjustedPrice)
	}
}

func TestNormalizeUpstreamTier(t *testing.T) {
	r := Normalize(internal.RawResultRecord{"pricingTier": "gold"}, 0)
	if r.Tier != "" {
		t.Fatalf("unknown tier should stay empty, got %s", r.Tier)
	}

	r = Normalize(internal.RawResultRecord{"pricingTier": "MARKET_AVERAGE"}, 0)
	if r.Tier != internal.TierMarketAverage {
		t.Fatalf("tier=%s", r.Tier)
	}

	r = Normalize(internal.RawResultRecord{"tier": "exact_match"}, 0)
	if r.Tier != internal.TierExactMatch {
		t.Fatalf("lowercase tier should be recognized after uppercasing, got %s", r.Tier)
	}
}

func TestNormalizeConfidenceClamped(t *testing.T) {
	if r := Normalize(internal.RawResultRecord{"confidence": 1.8}, 0); r.Confidence != 1 {
		t.Fatalf("confidence=%v", r.Confidence)
	}
	if r := Normalize(internal.RawResultRecord{"confidence": -0.2}, 0); r.Confidence != 0 {
		t.Fatalf("confidence=%v", r.Confidence)
	}
}

func TestNormalizeDepreciationKeepsZeroAndNegative(t *testing.T) {
	r := Normalize(internal.RawResultRecord{
		"depreciationAmount":  -25.0,
		"depreciationPercent": 0.0,
		"price":               0.0,
	}, 0)

	if r.DepreciationAmount == nil || *r.DepreciationAmount != -25 {
		t.Fatalf("depAmount=%v", r.DepreciationAmount)
	}
	if r.DepreciationPercent == nil || *r.DepreciationPercent != 0 {
		t.Fatalf("depPercent=%v", r.DepreciationPercent)
	}
	// Replacement prices follow the stricter policy.
	if r.BasePrice != nil {
		t.Fatalf("zero base price should be dropped: %v", r.BasePrice)
	}
}
