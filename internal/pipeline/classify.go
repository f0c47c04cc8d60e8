package pipeline

import (
	"pricer/internal"
	"pricer/internal/pricing"
	"pricer/internal/util"
)

// Classify assigns the pricing tier and display status for one result.
// An upstream tier (e.g. from image analysis) is authoritative and kept
// verbatim; otherwise the tier derives from status and source specificity.
func Classify(r internal.PricingResult) internal.PricingResult {
	if r.Tier == "" {
		switch {
		case r.Status == internal.StatusFound && !util.IsGenericSource(r.Source):
			r.Tier = internal.TierExactMatch
		case r.Status == internal.StatusFound:
			r.Tier = internal.TierWebSearch
		case r.Status == internal.StatusEstimated:
			r.Tier = internal.TierMarketAverage
		default:
			r.Tier = internal.TierCategoryBaseline
		}
	}
	r.StatusLabel = util.StatusLabel(r.Status)
	return r
}

// ClassifyRecords normalizes and classifies a raw service result batch,
// preserving order. Order matters: the n-th record answers the n-th
// non-blank data row that was submitted.
func ClassifyRecords(records []internal.RawResultRecord) []internal.PricingResult {
	out := make([]internal.PricingResult, 0, len(records))
	for i, record := range records {
		out = append(out, Classify(pricing.Normalize(record, i)))
	}
	return out
}
