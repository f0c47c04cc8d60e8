package pipeline

import (
	"regexp"
	"strings"

	"pricer/internal"
)

// Real-world inventory exports interleave company letterhead, report
// titles and blank rows before the actual column headers, so "row 0 is the
// header" corrupts every downstream column mapping. DetectSchema scans the
// first rows with two passes: an explicit item-number signature wins
// outright (insurance exports conventionally lead with that column), then
// a scored heuristic picks the most header-like row.

const maxDetectRows = 20

var (
	reHeaderLike  = regexp.MustCompile(`^[A-Za-z][A-Za-z\s#()/.&'\-]*$`)
	reNumericDate = regexp.MustCompile(`^[\d\s.,/:$%\-]+$`)
)

var itemNumberSignatures = []string{"item #", "item#", "item number"}

var keywordBonuses = []struct {
	probes []string
	bonus  int
}{
	{probes: []string{"description"}, bonus: 5},
	{probes: []string{"price", "cost"}, bonus: 5},
	{probes: []string{"qty", "quantity"}, bonus: 5},
	{probes: []string{"item"}, bonus: 3},
	{probes: []string{"room"}, bonus: 3},
}

// DetectSchema locates the header row. It never fails: when nothing looks
// like a header the first row is assumed to be one.
func DetectSchema(raw internal.RawTable) internal.DetectedSchema {
	limit := len(raw)
	if limit > maxDetectRows {
		limit = maxDetectRows
	}

	for i := 0; i < limit; i++ {
		if hasItemNumberSignature(raw[i]) {
			return schemaAt(raw, i)
		}
	}

	bestIdx, bestScore := 0, 0
	for i := 0; i < limit; i++ {
		score := scoreHeaderRow(raw[i])
		if score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	if bestScore == 0 {
		return schemaAt(raw, 0)
	}
	return schemaAt(raw, bestIdx)
}

func schemaAt(raw internal.RawTable, idx int) internal.DetectedSchema {
	headers := []string{}
	if idx < len(raw) {
		headers = make([]string, len(raw[idx]))
		for i, cell := range raw[idx] {
			headers[i] = strings.TrimSpace(cell)
		}
	}
	return internal.DetectedSchema{DataStartIndex: idx, Headers: headers}
}

func hasItemNumberSignature(row []string) bool {
	if len(row) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(row[0]))
	joined := strings.ToLower(strings.Join(row, " "))
	for _, sig := range itemNumberSignatures {
		if first == sig || strings.Contains(joined, sig) {
			return true
		}
	}
	return false
}

func scoreHeaderRow(row []string) int {
	score := 0
	for _, cell := range row {
		if isHeaderLikeCell(cell) {
			score += 2
		}
	}

	joined := strings.ToLower(strings.Join(row, " "))
	for _, kw := range keywordBonuses {
		for _, probe := range kw.probes {
			if strings.Contains(joined, probe) {
				score += kw.bonus
				break
			}
		}
	}
	return score
}

func isHeaderLikeCell(cell string) bool {
	s := strings.TrimSpace(cell)
	if s == "" {
		return false
	}
	if reNumericDate.MatchString(s) {
		return false
	}
	return reHeaderLike.MatchString(s)
}
