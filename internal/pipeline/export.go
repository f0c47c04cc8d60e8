package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"pricer/internal"
	"pricer/internal/util"
)

const currencyNumFmt = "$#,##0.00"

// ImageGridColumns is the fixed export layout for image-sourced batches,
// which have no original tabular structure to reconcile against.
var ImageGridColumns = []string{
	"Item #", "Description", "Pricer", "Replacement Source",
	"Replacement Price", "Total Replacement Price", "URL",
}

// CSVColumns is the flat CSV export header.
var CSVColumns = []string{
	"Item #", "Description", "Status", "Pricing Tier", "Base Price",
	"Adjusted Price", "Replacement Source", "Total Replacement Price",
	"URL", "Confidence",
}

// csvPlaceholderPrice replaces a missing price in CSV exports. The CSV
// path intentionally never leaves a price blank, unlike the table display;
// the two policies are deliberately different and must stay that way.
const csvPlaceholderPrice = 1.00

// PricedFilename derives the reconciled-export filename from the original.
func PricedFilename(original string) string {
	base := strings.TrimSuffix(filepath.Base(original), filepath.Ext(original))
	return base + "_priced.xlsx"
}

// ImageResultsFilename names an image-batch export.
func ImageResultsFilename(t time.Time) string {
	return t.Format("20060102_150405") + "_image_results.xlsx"
}

// ExportReconciledXLSX aligns the pricing results onto the original table
// and writes the result as a workbook. Currency formatting is applied only
// to non-empty derived price cells, never to metadata or header rows.
func ExportReconciledXLSX(ctx context.Context, raw internal.RawTable, schema internal.DetectedSchema, results []internal.PricingResult, outputPath string) error {
	rows, err := Align(ctx, raw, schema, results)
	if err != nil {
		return err
	}
	return writeRowsXLSX(ctx, rows, outputPath)
}

// ExportImageResultsXLSX writes an image-sourced batch into the fixed
// grid layout. Also serves as the synthetic fallback when the original
// file is unreadable at export time.
func ExportImageResultsXLSX(ctx context.Context, results []internal.PricingResult, outputPath string) error {
	rows := make([][]any, 0, len(results)+1)
	header := make([]any, len(ImageGridColumns))
	for i, name := range ImageGridColumns {
		header[i] = name
	}
	rows = append(rows, header)

	for _, r := range results {
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
		rows = append(rows, []any{
			r.ItemNumber, r.Description, PricerName,
			util.NormalizeSource(r.Source, r.Tier), unit, total, url,
		})
	}

	return writeRowsXLSX(ctx, rows, outputPath)
}

// ExportResultsCSV writes the flat CSV export. Every price field follows
// the "never ambiguous" numeric policy: a row with no valid price exports
// the minimum placeholder instead of an empty cell.
func ExportResultsCSV(results []internal.PricingResult, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return ExportError{Err: err}
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return ExportError{Err: err}
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(CSVColumns); err != nil {
		return ExportError{Err: err}
	}

	for _, r := range results {
		record := []string{
			strconv.Itoa(r.ItemNumber),
			r.Description,
			util.StatusLabel(r.Status),
			util.TierLabel(r.Tier),
			csvPrice(r.BasePrice),
			csvPrice(r.AdjustedPrice),
			util.NormalizeSource(r.Source, r.Tier),
			csvPrice(r.TotalPrice),
			derefString(r.URL),
			fmt.Sprintf("%.2f", r.Confidence),
		}
		if err := writer.Write(record); err != nil {
			return ExportError{Err: err}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return ExportError{Err: err}
	}
	return nil
}

func csvPrice(p *float64) string {
	if p == nil || *p <= 0 {
		return fmt.Sprintf("%.2f", csvPlaceholderPrice)
	}
	return fmt.Sprintf("%.2f", *p)
}

func writeRowsXLSX(ctx context.Context, rows [][]any, outputPath string) error {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	numFmt := currencyNumFmt
	currencyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt})
	if err != nil {
		return ExportError{Err: err}
	}

	for r, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		for c, value := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return ExportError{Err: err}
			}
			if _, isNumber := value.(float64); isNumber {
				_ = f.SetCellStyle(sheet, cell, cell, currencyStyle)
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return ExportError{Err: err}
	}
	if err := f.SaveAs(outputPath); err != nil {
		return ExportError{Err: err}
	}
	return nil
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
