// Package table owns the filter/sort/pagination state of the currently
// displayed results set. All operations are synchronous and in-memory;
// there is exactly one ViewState per results set and no other writer, so
// callers on a UI event loop need no extra locking.
package table

import (
	"sort"
	"strings"

	"pricer/internal"
	"pricer/internal/util"
)

type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Filterable column names for exact-match column filters.
const (
	ColumnStatus               = "status"
	ColumnSource               = "source"
	ColumnDepreciationCategory = "depreciationCategory"
)

// Sortable column names.
const (
	SortItemNumber    = "itemNumber"
	SortDescription   = "description"
	SortStatus        = "status"
	SortSource        = "source"
	SortAdjustedPrice = "adjustedPrice"
	SortQuantity      = "quantity"
)

// PageSizeOptions are the only accepted page sizes.
var PageSizeOptions = []int{10, 25, 50, 100}

const defaultPageSize = 10

// ViewState is the filter/sort/pagination state for one results set.
type ViewState struct {
	SearchTerm    string
	ColumnFilters map[string]string
	SortColumn    string
	SortDirection SortDirection
	CurrentPage   int
	PageSize      int
}

// Engine derives the paged, sorted, filtered view over a classified result
// set. The backing slice is never mutated; filtering and sorting build a
// separate view.
type Engine struct {
	results  []internal.PricingResult
	filtered []internal.PricingResult
	view     ViewState
}

func NewEngine() *Engine {
	e := &Engine{}
	e.resetView()
	return e
}

func (e *Engine) resetView() {
	e.view = ViewState{
		ColumnFilters: map[string]string{},
		CurrentPage:   1,
		PageSize:      defaultPageSize,
	}
}

// SetResults replaces the backing result set. A new results set always
// gets a fresh ViewState.
func (e *Engine) SetResults(results []internal.PricingResult) {
	e.results = results
	e.resetView()
	e.applyFilters()
}

// View returns a copy of the current ViewState.
func (e *Engine) View() ViewState {
	view := e.view
	view.ColumnFilters = map[string]string{}
	for k, v := range e.view.ColumnFilters {
		view.ColumnFilters[k] = v
	}
	return view
}

// SetSearch sets the free-text filter and resets to page 1.
func (e *Engine) SetSearch(term string) {
	e.view.SearchTerm = term
	e.view.CurrentPage = 1
	e.applyFilters()
}

// SetColumnFilter sets an exact-match column filter and resets to page 1.
// An empty value removes the filter.
func (e *Engine) SetColumnFilter(column, value string) {
	if strings.TrimSpace(value) == "" {
		delete(e.view.ColumnFilters, column)
	} else {
		e.view.ColumnFilters[column] = value
	}
	e.view.CurrentPage = 1
	e.applyFilters()
}

// ClearFilters drops the search term and all column filters, restoring
// the full set at page 1.
func (e *Engine) ClearFilters() {
	e.view.SearchTerm = ""
	e.view.ColumnFilters = map[string]string{}
	e.view.CurrentPage = 1
	e.applyFilters()
}

// Sort orders by a column. Sorting the current column flips direction;
// a new column defaults to ascending. Ties keep their relative order.
func (e *Engine) Sort(column string) {
	if e.view.SortColumn == column {
		if e.view.SortDirection == SortAsc {
			e.view.SortDirection = SortDesc
		} else {
			e.view.SortDirection = SortAsc
		}
	} else {
		e.view.SortColumn = column
		e.view.SortDirection = SortAsc
	}
	e.view.CurrentPage = 1
	e.sortFiltered()
}

// ChangePage moves to page n; out-of-range requests are no-ops.
func (e *Engine) ChangePage(n int) {
	if n < 1 || n > e.PageCount() {
		return
	}
	e.view.CurrentPage = n
}

// ChangePageSize switches the page size. Only configured options are
// accepted; a valid change resets to page 1.
func (e *Engine) ChangePageSize(n int) {
	valid := false
	for _, option := range PageSizeOptions {
		if n == option {
			valid = true
			break
		}
	}
	if !valid {
		return
	}
	e.view.PageSize = n
	e.view.CurrentPage = 1
}

// Filtered returns the filtered, sorted view (all pages).
func (e *Engine) Filtered() []internal.PricingResult {
	return e.filtered
}

// PageCount derives the number of pages for the current filtered set.
func (e *Engine) PageCount() int {
	if len(e.filtered) == 0 {
		return 0
	}
	return (len(e.filtered) + e.view.PageSize - 1) / e.view.PageSize
}

// Page returns the rows of the current page.
func (e *Engine) Page() []internal.PricingResult {
	start := (e.view.CurrentPage - 1) * e.view.PageSize
	if start >= len(e.filtered) {
		return nil
	}
	end := start + e.view.PageSize
	if end > len(e.filtered) {
		end = len(e.filtered)
	}
	return e.filtered[start:end]
}

func (e *Engine) applyFilters() {
	filtered := make([]internal.PricingResult, 0, len(e.results))
	for _, r := range e.results {
		if e.matches(r) {
			filtered = append(filtered, r)
		}
	}
	e.filtered = filtered
	e.sortFiltered()
}

// matches requires the free-text search and every active column filter to
// pass. Search is a case-insensitive substring match against description,
// normalized source and display status; column filters are exact
// case-insensitive matches.
func (e *Engine) matches(r internal.PricingResult) bool {
	if term := strings.ToLower(strings.TrimSpace(e.view.SearchTerm)); term != "" {
		haystack := strings.ToLower(strings.Join([]string{
			r.Description,
			util.NormalizeSource(r.Source, r.Tier),
			util.StatusLabel(r.Status),
		}, " "))
		if !strings.Contains(haystack, term) {
			return false
		}
	}

	for column, want := range e.view.ColumnFilters {
		got := ""
		switch column {
		case ColumnStatus:
			got = util.StatusLabel(r.Status)
		case ColumnSource:
			got = util.NormalizeSource(r.Source, r.Tier)
		case ColumnDepreciationCategory:
			got = r.DepreciationCategory
		default:
			return false
		}
		if !strings.EqualFold(strings.TrimSpace(got), strings.TrimSpace(want)) {
			return false
		}
	}
	return true
}

func (e *Engine) sortFiltered() {
	column := e.view.SortColumn
	if column == "" {
		return
	}
	desc := e.view.SortDirection == SortDesc

	less := func(a, b internal.PricingResult) bool {
		switch column {
		case SortItemNumber:
			return a.ItemNumber < b.ItemNumber
		case SortAdjustedPrice:
			return numericValue(a.AdjustedPrice) < numericValue(b.AdjustedPrice)
		case SortQuantity:
			return numericValue(a.Quantity) < numericValue(b.Quantity)
		case SortDescription:
			return strings.ToLower(a.Description) < strings.ToLower(b.Description)
		case SortStatus:
			return strings.ToLower(util.StatusLabel(a.Status)) < strings.ToLower(util.StatusLabel(b.Status))
		case SortSource:
			return strings.ToLower(util.NormalizeSource(a.Source, a.Tier)) < strings.ToLower(util.NormalizeSource(b.Source, b.Tier))
		default:
			return false
		}
	}

	// Descending is ascending with the operands swapped, so ties under the
	// sort key stay ties and keep their relative order either way.
	sort.SliceStable(e.filtered, func(i, j int) bool {
		if desc {
			return less(e.filtered[j], e.filtered[i])
		}
		return less(e.filtered[i], e.filtered[j])
	})
}

// numeric comparisons treat missing values as 0.
func numericValue(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
