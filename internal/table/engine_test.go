package table

import (
	"fmt"
	"testing"

	"pricer/internal"
	"pricer/internal/util"
)

func mkResults(n int) []internal.PricingResult {
	out := make([]internal.PricingResult, 0, n)
	for i := 0; i < n; i++ {
		status := internal.StatusFound
		source := "walmart.com"
		if i%3 == 0 {
			status = internal.StatusEstimated
			source = ""
		}
		out = append(out, internal.PricingResult{
			ItemNumber:    i + 1,
			Description:   fmt.Sprintf("Item %02d", i+1),
			Status:        status,
			StatusLabel:   util.StatusLabel(status),
			Source:        source,
			AdjustedPrice: util.FloatPtr(float64(100 + i)),
			Tier:          internal.TierExactMatch,
		})
	}
	return out
}

func TestEnginePagination(t *testing.T) {
	e := NewEngine()
	e.SetResults(mkResults(47))

	if e.PageCount() != 5 {
		t.Fatalf("pageCount=%d", e.PageCount())
	}
	if len(e.Page()) != 10 {
		t.Fatalf("page len=%d", len(e.Page()))
	}

	e.ChangePage(5)
	if len(e.Page()) != 7 {
		t.Fatalf("last page len=%d", len(e.Page()))
	}

	// Out-of-range moves are no-ops.
	e.ChangePage(6)
	if e.View().CurrentPage != 5 {
		t.Fatalf("currentPage=%d", e.View().CurrentPage)
	}
	e.ChangePage(0)
	if e.View().CurrentPage != 5 {
		t.Fatalf("currentPage=%d", e.View().CurrentPage)
	}
}

func TestEngineChangePageSize(t *testing.T) {
	e := NewEngine()
	e.SetResults(mkResults(47))
	e.ChangePage(3)

	e.ChangePageSize(25)
	if e.PageCount() != 2 {
		t.Fatalf("pageCount=%d", e.PageCount())
	}
	if e.View().CurrentPage != 1 {
		t.Fatalf("currentPage=%d", e.View().CurrentPage)
	}

	// Unknown page sizes are rejected.
	e.ChangePageSize(33)
	if e.View().PageSize != 25 {
		t.Fatalf("pageSize=%d", e.View().PageSize)
	}
}

func TestEngineSearchAndClear(t *testing.T) {
	e := NewEngine()
	e.SetResults(mkResults(47))

	e.SetSearch("item 07")
	if len(e.Filtered()) != 1 {
		t.Fatalf("filtered=%d", len(e.Filtered()))
	}
	if e.View().CurrentPage != 1 {
		t.Fatalf("currentPage=%d", e.View().CurrentPage)
	}

	e.ClearFilters()
	if len(e.Filtered()) != 47 {
		t.Fatalf("filtered=%d after clear", len(e.Filtered()))
	}
}

func TestEngineColumnFilter(t *testing.T) {
	e := NewEngine()
	e.SetResults(mkResults(9))

	e.SetColumnFilter(ColumnStatus, "Estimated")
	if len(e.Filtered()) != 3 {
		t.Fatalf("filtered=%d", len(e.Filtered()))
	}

	// Empty value removes the filter.
	e.SetColumnFilter(ColumnStatus, "")
	if len(e.Filtered()) != 9 {
		t.Fatalf("filtered=%d", len(e.Filtered()))
	}
}

func TestEngineSortFlipsDirection(t *testing.T) {
	e := NewEngine()
	e.SetResults(mkResults(5))

	e.Sort(SortAdjustedPrice)
	if e.View().SortDirection != SortAsc {
		t.Fatalf("direction=%s", e.View().SortDirection)
	}
	first := e.Filtered()[0]
	if *first.AdjustedPrice != 100 {
		t.Fatalf("first=%v", *first.AdjustedPrice)
	}

	e.Sort(SortAdjustedPrice)
	if e.View().SortDirection != SortDesc {
		t.Fatalf("direction=%s", e.View().SortDirection)
	}
	first = e.Filtered()[0]
	if *first.AdjustedPrice != 104 {
		t.Fatalf("first=%v", *first.AdjustedPrice)
	}

	// A different column starts ascending again.
	e.Sort(SortItemNumber)
	if e.View().SortDirection != SortAsc {
		t.Fatalf("direction=%s", e.View().SortDirection)
	}
}

func TestEngineSortMissingPricesAsZero(t *testing.T) {
	results := mkResults(3)
	results[1].AdjustedPrice = nil
	e := NewEngine()
	e.SetResults(results)

	e.Sort(SortAdjustedPrice)
	if e.Filtered()[0].AdjustedPrice != nil {
		t.Fatalf("missing price should sort first ascending: %+v", e.Filtered()[0])
	}
}

func TestEngineStableTies(t *testing.T) {
	results := mkResults(4)
	for i := range results {
		results[i].AdjustedPrice = util.FloatPtr(50)
	}
	e := NewEngine()
	e.SetResults(results)

	e.Sort(SortAdjustedPrice)
	for i, r := range e.Filtered() {
		if r.ItemNumber != i+1 {
			t.Fatalf("tie order changed: %v", e.Filtered())
		}
	}
	e.Sort(SortAdjustedPrice)
	for i, r := range e.Filtered() {
		if r.ItemNumber != i+1 {
			t.Fatalf("descending tie order changed: %v", e.Filtered())
		}
	}
}

func TestEngineSortKeepsNormalizedSourceTies(t *testing.T) {
	// Both sources normalize to the same display name, so they tie under
	// the sort key and must keep their relative order in both directions.
	results := mkResults(2)
	results[0].Source = "https://amazon.com/tv"
	results[1].Source = "www.amazon.com"
	e := NewEngine()
	e.SetResults(results)

	e.Sort(SortSource)
	if got := e.Filtered(); got[0].ItemNumber != 1 || got[1].ItemNumber != 2 {
		t.Fatalf("ascending tie order changed: %v", got)
	}
	e.Sort(SortSource)
	if got := e.Filtered(); got[0].ItemNumber != 1 || got[1].ItemNumber != 2 {
		t.Fatalf("descending tie order changed: %v", got)
	}
}

func TestEngineNewResultsResetView(t *testing.T) {
	e := NewEngine()
	e.SetResults(mkResults(47))
	e.SetSearch("item")
	e.ChangePageSize(50)

	e.SetResults(mkResults(5))
	view := e.View()
	if view.SearchTerm != "" || view.PageSize != 10 || view.CurrentPage != 1 {
		t.Fatalf("view not reset: %+v", view)
	}
}
