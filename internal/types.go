package internal

// RawTable is one worksheet or CSV exactly as decoded: no interpretation,
// no trimming of rows. Treated as immutable once produced.
type RawTable [][]string

// DetectedSchema locates the header row inside a RawTable. Rows before
// DataStartIndex are metadata rows and are preserved verbatim on export.
type DetectedSchema struct {
	DataStartIndex int
	Headers        []string
}

type InputKind string

const (
	InputXLSX InputKind = "xlsx"
	InputCSV  InputKind = "csv"
	InputHTML InputKind = "html"
	InputPDF  InputKind = "pdf"
)

type PricingStatus string

const (
	StatusFound        PricingStatus = "found"
	StatusEstimated    PricingStatus = "estimated"
	StatusUnavailable  PricingStatus = "unavailable"
	StatusManualReview PricingStatus = "manual-review"
)

type PricingTier string

const (
	TierExactMatch       PricingTier = "EXACT_MATCH"
	TierWebSearch        PricingTier = "WEB_SEARCH"
	TierMarketAverage    PricingTier = "MARKET_AVERAGE"
	TierCategoryBaseline PricingTier = "CATEGORY_BASELINE"
	TierUnavailable      PricingTier = "UNAVAILABLE"
)

// RawResultRecord is one pricing answer as the service sends it, with
// possibly inconsistent field casing (Price/price, Source/source). It is
// normalized exactly once, at the service boundary.
type RawResultRecord map[string]any

// PricingResult is the normalized, classified answer for one non-blank
// data row. Exactly one result corresponds to each non-blank row, by
// position among the non-blank rows that were submitted.
type PricingResult struct {
	ItemNumber           int
	Description          string
	Status               PricingStatus
	StatusLabel          string
	Source               string
	Quantity             *float64
	BasePrice            *float64
	AdjustedPrice        *float64
	TotalPrice           *float64
	URL                  *string
	Tier                 PricingTier
	Confidence           float64
	DepreciationCategory string
	DepreciationPercent  *float64
	DepreciationAmount   *float64
}

type ServiceResponseType string

const (
	ResponseSheetSelection     ServiceResponseType = "sheet_selection"
	ResponseMappingRequired    ServiceResponseType = "mapping_required"
	ResponseProcessingComplete ServiceResponseType = "processing_complete"
)

// ServiceResponse is the pricing-service reply, discriminated by Type.
type ServiceResponse struct {
	Type             ServiceResponseType `json:"type"`
	Sheets           []string            `json:"sheets,omitempty"`
	AvailableHeaders []string            `json:"availableHeaders,omitempty"`
	MissingFields    []string            `json:"missingFields,omitempty"`
	ProcessedRows    int                 `json:"processedRows,omitempty"`
	Results          []RawResultRecord   `json:"results,omitempty"`
}

// FieldMapping maps canonical field names to detected header names.
type FieldMapping map[string]string

const (
	FieldDescription   = "Description"
	FieldQty           = "QTY"
	FieldPurchasePrice = "Purchase Price"

	FieldRoom               = "Room"
	FieldModel              = "Model#"
	FieldAgeYears           = "Age (Years)"
	FieldCondition          = "Condition"
	FieldOriginalSource     = "Original Source"
	FieldTotalPurchasePrice = "Total Purchase Price"
)

// RequiredFields must all be mapped before a file can be submitted.
var RequiredFields = []string{FieldDescription, FieldQty, FieldPurchasePrice}

// OptionalFields may remain unmapped.
var OptionalFields = []string{
	FieldRoom, FieldModel, FieldAgeYears,
	FieldCondition, FieldOriginalSource, FieldTotalPurchasePrice,
}

// ToleranceUnset marks a job with no caller-supplied tolerance. Zero is a
// valid tolerance, so "not set" needs its own value.
const ToleranceUnset = -1

// JobRow is one stored pricing submission.
type JobRow struct {
	ID            int
	Origin        string
	SourceRef     string
	Filename      string
	Kind          string
	Hash          string
	RawRef        string
	SelectedSheet string
	MappingJSON   string
	Tolerance     int
	Status        string
	ReceivedAt    string
}

// StoredResult is a persisted PricingResult plus its job linkage.
type StoredResult struct {
	JobID    int
	Position int
	Result   PricingResult
}

// FetchedMailMessage is one raw message pulled from an intake mailbox.
type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}
