package util

import (
	"strings"
	"unicode"

	"pricer/internal"
)

var noSourceSentinels = map[string]struct{}{
	"":          {},
	"unknown":   {},
	"n/a":       {},
	"na":        {},
	"none":      {},
	"no source": {},
	"not found": {},
}

var genericSources = map[string]struct{}{
	"web search":  {},
	"websearch":   {},
	"internet":    {},
	"online":      {},
	"google":      {},
	"ai estimate": {},
	"estimate":    {},
	"unknown":     {},
	"n/a":         {},
}

// NormalizeSource turns a raw source value (often a URL) into a short
// display name: protocol and leading www. stripped, cut at the first slash,
// first letter capitalized. Absent or sentinel values fall back to a label
// derived from the pricing tier.
func NormalizeSource(source string, tier internal.PricingTier) string {
	s := strings.TrimSpace(source)
	if _, sentinel := noSourceSentinels[strings.ToLower(s)]; sentinel {
		return TierLabel(tier)
	}

	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	if idx := strings.Index(s, "/"); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return TierLabel(tier)
	}

	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// TierLabel is the human-readable name of a pricing tier.
func TierLabel(tier internal.PricingTier) string {
	switch tier {
	case internal.TierExactMatch:
		return "Exact Match"
	case internal.TierMarketAverage:
		return "Market Average"
	case internal.TierCategoryBaseline:
		return "Category Baseline"
	case internal.TierUnavailable:
		return "Unavailable"
	default:
		return "Web Search"
	}
}

// IsGenericSource reports whether a source value carries no retailer
// signal, e.g. "web search" or "internet". Unknown concrete domains count
// as specific.
func IsGenericSource(source string) bool {
	s := strings.ToLower(strings.TrimSpace(source))
	if _, sentinel := noSourceSentinels[s]; sentinel {
		return true
	}
	_, generic := genericSources[s]
	return generic
}
