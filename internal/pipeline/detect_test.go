package pipeline

import (
	"testing"

	"pricer/internal"
)

func TestDetectSchemaItemNumberSignature(t *testing.T) {
	raw := internal.RawTable{
		{"ACME INSURANCE"},
		{"Contents Inventory Report"},
		{""},
		{"Item #", "Description", "Qty", "Price"},
		{"1", "Sony TV", "1", "$499.99"},
	}

	schema := DetectSchema(raw)
	if schema.DataStartIndex != 3 {
		t.Fatalf("dataStartIndex=%d want 3", schema.DataStartIndex)
	}
	if len(schema.Headers) != 4 || schema.Headers[0] != "Item #" {
		t.Fatalf("headers=%v", schema.Headers)
	}
}

func TestDetectSchemaScoredHeuristic(t *testing.T) {
	raw := internal.RawTable{
		{"ACME INSURANCE"},
		{"Claim 2024-1187"},
		{"Description", "Quantity", "Unit Cost", "Room"},
		{"Leather sofa", "1", "$1,200.00", "Living Room"},
	}

	schema := DetectSchema(raw)
	if schema.DataStartIndex != 2 {
		t.Fatalf("dataStartIndex=%d want 2", schema.DataStartIndex)
	}
}

func TestDetectSchemaFallsBackToFirstRow(t *testing.T) {
	raw := internal.RawTable{
		{"123", "456"},
		{"789", "012"},
	}

	schema := DetectSchema(raw)
	if schema.DataStartIndex != 0 {
		t.Fatalf("dataStartIndex=%d want 0", schema.DataStartIndex)
	}
}

func TestDetectSchemaTiesKeepEarliestRow(t *testing.T) {
	raw := internal.RawTable{
		{"Description", "Qty", "Price"},
		{"Description", "Qty", "Price"},
	}

	schema := DetectSchema(raw)
	if schema.DataStartIndex != 0 {
		t.Fatalf("dataStartIndex=%d want 0", schema.DataStartIndex)
	}
}
