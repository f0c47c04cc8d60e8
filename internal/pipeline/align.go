package pipeline

import (
	"context"

	"pricer/internal"
	"pricer/internal/util"
)

// PricerName is the value written into the Pricer column of every priced row.
const PricerName = "AI Pricer"

// DerivedColumns are appended to the original header row, in this order.
var DerivedColumns = []string{
	"Pricer",
	"Replacement Source",
	"Replacement Price",
	"Total Replacement Price",
	"URL",
}

// Align reconciles a flat pricing-result stream back onto the original row
// structure: metadata rows unchanged, the header row extended with the
// derived column names, blank separator rows left blank, and each
// non-blank data row extended with the result at its position among the
// non-blank rows. A running non-blank counter keeps the result stream and
// the row stream in lockstep across blank rows in one forward pass.
//
// Price cells are emitted as float64 values, not strings, so a
// spreadsheet consumer can apply currency formatting. A missing result
// yields five empty cells, never a failure. Cancelation discards the run
// wholesale: a canceled Align returns no partial output.
func Align(ctx context.Context, raw internal.RawTable, schema internal.DetectedSchema, results []internal.PricingResult) ([][]any, error) {
	out := make([][]any, 0, len(raw))

	headerIdx := schema.DataStartIndex
	if headerIdx < 0 {
		headerIdx = 0
	}

	headerWidth := len(schema.Headers)
	if headerIdx < len(raw) && len(raw[headerIdx]) > headerWidth {
		headerWidth = len(raw[headerIdx])
	}

	nonBlank := 0
	for i, row := range raw {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch {
		case i < headerIdx:
			out = append(out, copyRow(row))
		case i == headerIdx:
			header := make([]any, 0, headerWidth+len(DerivedColumns))
			for _, cell := range row {
				header = append(header, cell)
			}
			for len(header) < headerWidth {
				header = append(header, "")
			}
			for _, name := range DerivedColumns {
				header = append(header, name)
			}
			out = append(out, header)
		case util.IsBlankRow(row):
			out = append(out, copyRow(row))
		default:
			nonBlank++
			padded := make([]any, 0, headerWidth+len(DerivedColumns))
			for _, cell := range row {
				padded = append(padded, cell)
			}
			for len(padded) < headerWidth {
				padded = append(padded, "")
			}
			out = append(out, append(padded, derivedCells(results, nonBlank-1)...))
		}
	}

	return out, nil
}

func derivedCells(results []internal.PricingResult, idx int) []any {
	if idx < 0 || idx >= len(results) {
		return []any{"", "", "", "", ""}
	}
	r := results[idx]

	var unit any = ""
	if r.AdjustedPrice != nil && *r.AdjustedPrice > 0 {
		unit = *r.AdjustedPrice
	}
	var total any = ""
	if r.TotalPrice != nil && *r.TotalPrice > 0 {
		total = *r.TotalPrice
	}
	url := ""
	if r.URL != nil {
		url = *r.URL
	}

	return []any{
		PricerName,
		util.NormalizeSource(r.Source, r.Tier),
		unit,
		total,
		url,
	}
}

func copyRow(row []string) []any {
	out := make([]any, len(row))
	for i, cell := range row {
		out[i] = cell
	}
	return out
}
