package pipeline

import (
	"context"
	"testing"

	"pricer/internal"
	"pricer/internal/util"
)

func sampleTable() (internal.RawTable, internal.DetectedSchema) {
	raw := internal.RawTable{
		{"ACME INSURANCE"},
		{"Claim 2024-1187"},
		{""},
		{"Item #", "Description", "Qty", "Purchase Price"},
		{"1", "Sony 55in TV", "1", "$499.99"},
		{"2", "Leather sofa", "1", "$1,200.00"},
		{""},
		{"3", "Blender", "1", "$89.00"},
	}
	return raw, DetectSchema(raw)
}

func sampleResults() []internal.PricingResult {
	return []internal.PricingResult{
		{ItemNumber: 1, Description: "Sony 55in TV", Status: internal.StatusFound, Source: "bestbuy.com",
			AdjustedPrice: util.FloatPtr(549.99), TotalPrice: util.FloatPtr(549.99), URL: util.StringPtr("https://bestbuy.com/tv"),
			Tier: internal.TierExactMatch},
		{ItemNumber: 2, Description: "Leather sofa", Status: internal.StatusEstimated,
			AdjustedPrice: util.FloatPtr(1350), TotalPrice: util.FloatPtr(1350), Tier: internal.TierMarketAverage},
		{ItemNumber: 3, Description: "Blender", Status: internal.StatusUnavailable, Tier: internal.TierCategoryBaseline},
	}
}

func TestAlignPreservesRowStructure(t *testing.T) {
	raw, schema := sampleTable()
	rows, err := Align(context.Background(), raw, schema, sampleResults())
	if err != nil {
		t.Fatal(err)
	}

	if len(rows) != len(raw) {
		t.Fatalf("row count changed: %d want %d", len(rows), len(raw))
	}

	// Metadata rows come back verbatim.
	if rows[0][0] != "ACME INSURANCE" || rows[1][0] != "Claim 2024-1187" {
		t.Fatalf("metadata altered: %v %v", rows[0], rows[1])
	}

	// Header row gains exactly the derived columns.
	header := rows[3]
	if len(header) != 4+len(DerivedColumns) {
		t.Fatalf("header width=%d", len(header))
	}
	if header[4] != "Pricer" || header[8] != "URL" {
		t.Fatalf("header=%v", header)
	}

	// The blank separator row stays blank and unextended.
	if len(rows[6]) != 1 || rows[6][0] != "" {
		t.Fatalf("blank row altered: %v", rows[6])
	}
}

func TestAlignSkipsBlankRowsWhenPairing(t *testing.T) {
	raw, schema := sampleTable()
	rows, err := Align(context.Background(), raw, schema, sampleResults())
	if err != nil {
		t.Fatal(err)
	}

	// Row 7 is the third non-blank data row; it must receive the third
	// result even though a blank row sits above it.
	blenderRow := rows[7]
	if blenderRow[1] != "Blender" {
		t.Fatalf("row=%v", blenderRow)
	}
	if blenderRow[5] != util.TierLabel(internal.TierCategoryBaseline) {
		t.Fatalf("source cell=%v", blenderRow[5])
	}

	// First data row carries its price as a number for spreadsheet
	// formatting, and its resolved retailer.
	tvRow := rows[4]
	if tvRow[5] != "Bestbuy.com" {
		t.Fatalf("source cell=%v", tvRow[5])
	}
	price, ok := tvRow[6].(float64)
	if !ok || price != 549.99 {
		t.Fatalf("price cell=%v", tvRow[6])
	}
}

func TestAlignShortResultSetLeavesCellsEmpty(t *testing.T) {
	raw, schema := sampleTable()
	rows, err := Align(context.Background(), raw, schema, sampleResults()[:1])
	if err != nil {
		t.Fatal(err)
	}

	sofaRow := rows[5]
	for i := 4; i < len(sofaRow); i++ {
		if sofaRow[i] != "" {
			t.Fatalf("cell %d should be empty: %v", i, sofaRow[i])
		}
	}
}

func TestAlignCancellation(t *testing.T) {
	raw, schema := sampleTable()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rows, err := Align(ctx, raw, schema, sampleResults())
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if rows != nil {
		t.Fatal("cancelled run must not return partial rows")
	}
}

func TestAlignUnavailableRowHasNoPrice(t *testing.T) {
	raw, schema := sampleTable()
	rows, err := Align(context.Background(), raw, schema, sampleResults())
	if err != nil {
		t.Fatal(err)
	}

	blenderRow := rows[7]
	if blenderRow[6] != "" || blenderRow[7] != "" {
		t.Fatalf("unavailable row should have empty price cells: %v", blenderRow)
	}
	if blenderRow[4] != PricerName {
		t.Fatalf("pricer cell=%v", blenderRow[4])
	}
}
