package util

import (
	"regexp"
	"strings"
)

var reSpaces = regexp.MustCompile(`\s+`)

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// IsBlankRow reports whether every cell is empty or whitespace. Blank rows
// are structural spacers: they never receive a pricing result and must stay
// blank in the export.
func IsBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func StringPtr(v string) *string { return &v }

func FloatPtr(v float64) *float64 { return &v }
