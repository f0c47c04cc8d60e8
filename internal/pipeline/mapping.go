package pipeline

import (
	"fmt"
	"strings"

	"pricer/internal"
)

var fieldProbes = map[string][]string{
	internal.FieldDescription:        {"description", "item description", "desc"},
	internal.FieldQty:                {"qty", "quantity", "count"},
	internal.FieldPurchasePrice:      {"purchase price", "unit price", "price", "cost"},
	internal.FieldRoom:               {"room", "location"},
	internal.FieldModel:              {"model"},
	internal.FieldAgeYears:           {"age"},
	internal.FieldCondition:          {"condition"},
	internal.FieldOriginalSource:     {"original source", "source", "store", "retailer"},
	internal.FieldTotalPurchasePrice: {"total purchase price", "total price", "total"},
}

// ResolveMapping binds canonical field names to detected headers. Pure
// validation: the RawTable is never touched. An exact (case-insensitive)
// header match wins; otherwise a probe must match exactly one header, or
// the field stays unmapped. Returns the mapping plus the required fields
// that could not be bound; submission is blocked while that list is
// non-empty.
func ResolveMapping(headers []string, required []string) (internal.FieldMapping, []string) {
	mapping := internal.FieldMapping{}
	taken := map[string]struct{}{}

	fields := append(append([]string{}, required...), internal.OptionalFields...)
	for _, field := range fields {
		if _, dup := mapping[field]; dup {
			continue
		}
		if header, ok := findHeader(headers, field, taken); ok {
			mapping[field] = header
			taken[header] = struct{}{}
		}
	}

	missing := []string{}
	for _, field := range required {
		if _, ok := mapping[field]; !ok {
			missing = append(missing, field)
		}
	}
	return mapping, missing
}

// MergeMapping overlays manual field bindings onto an auto-resolved
// mapping. Manual entries must reference a detected header.
func MergeMapping(auto, manual internal.FieldMapping, headers []string) (internal.FieldMapping, error) {
	merged := internal.FieldMapping{}
	for field, header := range auto {
		merged[field] = header
	}
	for field, header := range manual {
		if !containsHeader(headers, header) {
			return nil, ValidationError{Msg: fmt.Sprintf("mapped header %q not present in detected headers", header)}
		}
		merged[field] = header
	}
	return merged, nil
}

// MissingRequired lists required fields absent from a mapping.
func MissingRequired(mapping internal.FieldMapping, required []string) []string {
	missing := []string{}
	for _, field := range required {
		if strings.TrimSpace(mapping[field]) == "" {
			missing = append(missing, field)
		}
	}
	return missing
}

func findHeader(headers []string, field string, taken map[string]struct{}) (string, bool) {
	canonical := strings.ToLower(strings.TrimSpace(field))
	for _, h := range headers {
		if _, used := taken[h]; used {
			continue
		}
		if strings.ToLower(strings.TrimSpace(h)) == canonical {
			return h, true
		}
	}

	for _, probe := range fieldProbes[field] {
		match := ""
		count := 0
		for _, h := range headers {
			if _, used := taken[h]; used {
				continue
			}
			if strings.Contains(strings.ToLower(h), probe) {
				match = h
				count++
			}
		}
		if count == 1 {
			return match, true
		}
	}
	return "", false
}

func containsHeader(headers []string, header string) bool {
	for _, h := range headers {
		if h == header {
			return true
		}
	}
	return false
}
