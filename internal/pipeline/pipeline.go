package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"pricer/internal"
	"pricer/internal/config"
	"pricer/internal/pricing"
	"pricer/internal/table"
)

type State string

const (
	StateIdle                  State = "idle"
	StateSheetSelectionPending State = "sheet_selection_pending"
	StateFieldMappingPending   State = "field_mapping_pending"
	StateSubmitting            State = "submitting"
	StateResultsReady          State = "results_ready"
	StateError                 State = "error"
)

// Pricer is the slice of the pricing client the pipeline needs.
type Pricer interface {
	PriceFile(ctx context.Context, req pricing.SubmitRequest) (internal.ServiceResponse, error)
}

// Pipeline drives one file-processing session:
// Idle -> SheetSelectionPending? -> FieldMappingPending? -> Submitting ->
// ResultsReady, with Error reachable from anywhere. One pipeline instance
// serves one user session; transitions are not designed for concurrency,
// so a second submission while one is in flight is rejected outright.
type Pipeline struct {
	mu     sync.Mutex
	client Pricer
	cfg    config.Config

	state       State
	gen         uint64
	lastErr     error
	filename    string
	fileContent []byte
	tolerance   int

	workbook      *Workbook
	selectedSheet string
	raw           internal.RawTable
	schema        internal.DetectedSchema

	mapping     internal.FieldMapping
	availHeader []string
	lastMissing []string

	results []internal.PricingResult
	engine  *table.Engine
}

func NewPipeline(client Pricer, cfg config.Config) *Pipeline {
	return &Pipeline{client: client, cfg: cfg, state: StateIdle}
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Submit starts a new session with a raw file. A workbook with more than
// one sheet parks in SheetSelectionPending; otherwise submission proceeds
// immediately. A new submission fully supersedes prior session state.
func (p *Pipeline) Submit(ctx context.Context, filename string, content []byte, kind internal.InputKind, tolerance int) error {
	p.mu.Lock()
	if p.state == StateSubmitting {
		p.mu.Unlock()
		return ValidationError{Msg: "a submission is already in flight"}
	}
	if tolerance < 0 || tolerance > p.cfg.MaxTolerance {
		p.mu.Unlock()
		return ValidationError{Msg: fmt.Sprintf("tolerance %d outside [0, %d]", tolerance, p.cfg.MaxTolerance)}
	}

	p.resetLocked()
	p.filename = filename
	p.fileContent = content
	p.tolerance = tolerance

	wb, err := DecodeInput(filename, content, kind)
	if err != nil {
		p.state = StateError
		p.lastErr = err
		p.mu.Unlock()
		return err
	}
	p.workbook = wb

	if len(wb.SheetNames) > 1 {
		p.state = StateSheetSelectionPending
		p.mu.Unlock()
		return nil
	}

	p.selectSheetLocked(wb.SheetNames[0])
	p.state = StateSubmitting
	p.mu.Unlock()
	return p.submit(ctx)
}

// Sheets lists the sheet names awaiting selection.
func (p *Pipeline) Sheets() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.workbook == nil {
		return nil
	}
	return p.workbook.SheetNames
}

// ChooseSheet resolves a pending sheet selection and submits.
func (p *Pipeline) ChooseSheet(ctx context.Context, name string) error {
	p.mu.Lock()
	if p.state != StateSheetSelectionPending {
		p.mu.Unlock()
		return ValidationError{Msg: fmt.Sprintf("no sheet selection pending (state %s)", p.state)}
	}
	if _, ok := p.workbook.Sheet(name); !ok {
		p.mu.Unlock()
		return ValidationError{Msg: fmt.Sprintf("unknown sheet %q", name)}
	}
	p.selectSheetLocked(name)
	p.state = StateSubmitting
	p.mu.Unlock()
	return p.submit(ctx)
}

// MissingFields lists the required fields the service reported unmapped.
func (p *Pipeline) MissingFields() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.lastMissing...)
}

// AvailableHeaders lists the headers the service offered for mapping.
func (p *Pipeline) AvailableHeaders() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.availHeader...)
}

// ApplyMapping resolves a pending field mapping and resubmits. Manual
// entries overlay the auto-resolved mapping; submission stays blocked
// while any required field is unmapped.
func (p *Pipeline) ApplyMapping(ctx context.Context, manual internal.FieldMapping) error {
	p.mu.Lock()
	if p.state != StateFieldMappingPending {
		p.mu.Unlock()
		return ValidationError{Msg: fmt.Sprintf("no field mapping pending (state %s)", p.state)}
	}

	auto, _ := ResolveMapping(p.schema.Headers, internal.RequiredFields)
	merged, err := MergeMapping(auto, manual, p.schema.Headers)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	if missing := MissingRequired(merged, internal.RequiredFields); len(missing) > 0 {
		p.mu.Unlock()
		return ValidationError{Msg: "required fields still unmapped: " + strings.Join(missing, ", ")}
	}

	p.mapping = merged
	p.state = StateSubmitting
	p.mu.Unlock()
	return p.submit(ctx)
}

// Results returns the classified results of a completed session.
func (p *Pipeline) Results() []internal.PricingResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.results
}

// Engine returns the table engine for the current results set, or nil.
func (p *Pipeline) Engine() *table.Engine {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.engine
}

// ExportReconciled writes the priced workbook for the current session.
func (p *Pipeline) ExportReconciled(ctx context.Context, outputPath string) error {
	p.mu.Lock()
	if p.state != StateResultsReady {
		p.mu.Unlock()
		return ValidationError{Msg: fmt.Sprintf("no results to export (state %s)", p.state)}
	}
	raw, schema, results := p.raw, p.schema, p.results
	p.mu.Unlock()
	return ExportReconciledXLSX(ctx, raw, schema, results, outputPath)
}

// Clear discards the session: raw table, results and view state all go.
// Clearing while a submission is in flight abandons it; the late response
// is dropped when it arrives.
func (p *Pipeline) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
}

func (p *Pipeline) resetLocked() {
	p.gen++
	p.state = StateIdle
	p.lastErr = nil
	p.filename = ""
	p.fileContent = nil
	p.tolerance = 0
	p.workbook = nil
	p.selectedSheet = ""
	p.raw = nil
	p.schema = internal.DetectedSchema{}
	p.mapping = nil
	p.availHeader = nil
	p.lastMissing = nil
	p.results = nil
	p.engine = nil
}

func (p *Pipeline) selectSheetLocked(name string) {
	p.selectedSheet = name
	p.raw, _ = p.workbook.Sheet(name)
	p.schema = DetectSchema(p.raw)
}

func (p *Pipeline) submit(ctx context.Context) error {
	p.mu.Lock()
	gen := p.gen
	req := pricing.SubmitRequest{
		Filename:      p.filename,
		Content:       p.fileContent,
		Tolerance:     p.tolerance,
		Mapping:       p.mapping,
		SelectedSheet: p.selectedSheet,
	}
	p.mu.Unlock()

	resp, err := p.client.PriceFile(ctx, req)

	p.mu.Lock()
	defer p.mu.Unlock()

	// A Clear or a newer Submit while the call was in flight supersedes
	// this session; its response must not touch the current state.
	if p.gen != gen {
		return nil
	}

	if err != nil {
		p.state = StateError
		p.lastErr = serviceError(err)
		return p.lastErr
	}

	switch resp.Type {
	case internal.ResponseSheetSelection:
		if p.selectedSheet != "" {
			// A sheet was already chosen; asking again means the service
			// cannot make progress.
			p.state = StateError
			p.lastErr = serviceError(fmt.Errorf("service requested sheet selection after sheet %q was chosen", p.selectedSheet))
			return p.lastErr
		}
		p.state = StateSheetSelectionPending
		return nil

	case internal.ResponseMappingRequired:
		if sameStringSet(p.lastMissing, resp.MissingFields) {
			p.state = StateError
			p.lastErr = serviceError(fmt.Errorf("mapping still incomplete after resubmission: %s", strings.Join(resp.MissingFields, ", ")))
			return p.lastErr
		}
		p.lastMissing = append([]string{}, resp.MissingFields...)
		p.availHeader = append([]string{}, resp.AvailableHeaders...)
		p.state = StateFieldMappingPending
		return nil

	case internal.ResponseProcessingComplete:
		p.results = ClassifyRecords(resp.Results)
		p.engine = table.NewEngine()
		p.engine.SetResults(p.results)
		p.state = StateResultsReady
		return nil

	default:
		p.state = StateError
		p.lastErr = serviceError(fmt.Errorf("unexpected response type %q", resp.Type))
		return p.lastErr
	}
}

func sameStringSet(a, b []string) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	as := append([]string{}, a...)
	bs := append([]string{}, b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if !strings.EqualFold(as[i], bs[i]) {
			return false
		}
	}
	return true
}
