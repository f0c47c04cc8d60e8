package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pricer/internal"
	"pricer/internal/config"
	"pricer/internal/pricing"
	"pricer/internal/storage"
)

// Job statuses as stored in the jobs table.
const (
	JobStatusReceived     = "received"
	JobStatusNeedsMapping = "needs_mapping"
	JobStatusPriced       = "priced"
	JobStatusFailed       = "failed"
	JobStatusExported     = "exported"
)

// ProcessingService prices stored jobs in the background, independently of
// any interactive session. Where the interactive pipeline parks and waits
// for the user, the service resolves sheet and mapping choices itself and
// marks the job needs_mapping only when it genuinely cannot.
type ProcessingService struct {
	db     *storage.DB
	cfg    config.Config
	client Pricer
}

func NewProcessingService(db *storage.DB, cfg config.Config, client Pricer) *ProcessingService {
	return &ProcessingService{db: db, cfg: cfg, client: client}
}

type ProcessOutcome struct {
	JobID  int
	Status string
	Priced int
}

func (s *ProcessingService) ProcessByID(ctx context.Context, jobID int) (ProcessOutcome, error) {
	job, err := s.db.MustJobByID(jobID)
	if err != nil {
		return ProcessOutcome{}, err
	}
	return s.ProcessJob(ctx, job)
}

// ProcessPending prices jobs in received order. A job that fails stops the
// batch so the failure surfaces instead of being buried mid-run.
func (s *ProcessingService) ProcessPending(ctx context.Context, limit int, origin string) (int, int, error) {
	pending, err := s.db.ListJobsByStatus(JobStatusReceived, limit)
	if err != nil {
		return 0, 0, err
	}

	processedJobs := 0
	pricedRows := 0
	for _, job := range pending {
		if origin != "" && job.Origin != origin {
			continue
		}
		outcome, err := s.ProcessJob(ctx, job)
		if err != nil {
			return processedJobs, pricedRows, err
		}
		processedJobs++
		pricedRows += outcome.Priced
	}
	return processedJobs, pricedRows, nil
}

func (s *ProcessingService) ProcessJob(ctx context.Context, job internal.JobRow) (ProcessOutcome, error) {
	start := time.Now()

	content, err := os.ReadFile(job.RawRef)
	if err != nil {
		return ProcessOutcome{}, err
	}

	wb, err := DecodeInput(job.Filename, content, internal.InputKind(job.Kind))
	if err != nil {
		_ = s.db.UpdateJobStatus(job.ID, JobStatusFailed)
		return ProcessOutcome{}, err
	}

	sheet := job.SelectedSheet
	if sheet == "" {
		sheet = wb.SheetNames[0]
	}
	raw, ok := wb.Sheet(sheet)
	if !ok {
		_ = s.db.UpdateJobStatus(job.ID, JobStatusFailed)
		return ProcessOutcome{}, fmt.Errorf("job %d: sheet %q not in workbook", job.ID, sheet)
	}
	schema := DetectSchema(raw)

	mapping := internal.FieldMapping{}
	if job.MappingJSON != "" {
		if err := json.Unmarshal([]byte(job.MappingJSON), &mapping); err != nil {
			_ = s.db.UpdateJobStatus(job.ID, JobStatusFailed)
			return ProcessOutcome{}, fmt.Errorf("job %d: bad stored mapping: %w", job.ID, err)
		}
	}

	// Zero is a valid tolerance; only the unset sentinel falls back to
	// the configured default.
	tolerance := job.Tolerance
	if tolerance < 0 {
		tolerance = s.cfg.DefaultTolerance
	}

	req := pricing.SubmitRequest{
		Filename:      job.Filename,
		Content:       content,
		Tolerance:     tolerance,
		Mapping:       mapping,
		SelectedSheet: sheet,
	}

	resp, err := s.client.PriceFile(ctx, req)
	if err != nil {
		_ = s.db.UpdateJobStatus(job.ID, JobStatusFailed)
		return ProcessOutcome{}, serviceError(err)
	}

	// One retry each for sheet selection and mapping; after that the job
	// needs a human.
	if resp.Type == internal.ResponseSheetSelection {
		req.SelectedSheet = pickSheet(resp.Sheets, sheet)
		resp, err = s.client.PriceFile(ctx, req)
		if err != nil {
			_ = s.db.UpdateJobStatus(job.ID, JobStatusFailed)
			return ProcessOutcome{}, serviceError(err)
		}
	}

	if resp.Type == internal.ResponseMappingRequired {
		auto, _ := ResolveMapping(schema.Headers, internal.RequiredFields)
		merged, mergeErr := MergeMapping(auto, mapping, schema.Headers)
		if mergeErr != nil {
			merged = auto
		}
		if len(MissingRequired(merged, internal.RequiredFields)) > 0 {
			_ = s.db.UpdateJobStatus(job.ID, JobStatusNeedsMapping)
			return ProcessOutcome{JobID: job.ID, Status: JobStatusNeedsMapping}, nil
		}
		_ = s.db.UpdateJobMapping(job.ID, merged)
		req.Mapping = merged
		resp, err = s.client.PriceFile(ctx, req)
		if err != nil {
			_ = s.db.UpdateJobStatus(job.ID, JobStatusFailed)
			return ProcessOutcome{}, serviceError(err)
		}
		if resp.Type == internal.ResponseMappingRequired {
			_ = s.db.UpdateJobStatus(job.ID, JobStatusNeedsMapping)
			return ProcessOutcome{JobID: job.ID, Status: JobStatusNeedsMapping}, nil
		}
	}

	if resp.Type != internal.ResponseProcessingComplete {
		_ = s.db.UpdateJobStatus(job.ID, JobStatusFailed)
		return ProcessOutcome{}, fmt.Errorf("job %d: unexpected response type %q", job.ID, resp.Type)
	}

	results := ClassifyRecords(resp.Results)
	if err := s.db.ClearJobResults(job.ID); err != nil {
		return ProcessOutcome{}, err
	}
	if err := s.db.InsertResults(job.ID, results); err != nil {
		return ProcessOutcome{}, err
	}
	if err := s.db.UpdateJobStatus(job.ID, JobStatusPriced); err != nil {
		return ProcessOutcome{}, err
	}

	found, estimated, review := 0, 0, 0
	for _, r := range results {
		switch r.Status {
		case internal.StatusFound:
			found++
		case internal.StatusEstimated:
			estimated++
		case internal.StatusManualReview:
			review++
		}
	}
	_ = s.db.InsertRun(traceID(), job.ID,
		map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())},
		map[string]int{"priced": len(results), "found": found, "estimated": estimated, "review": review})

	return ProcessOutcome{JobID: job.ID, Status: JobStatusPriced, Priced: len(results)}, nil
}

// ExportJob re-reads the original file and writes the reconciled workbook.
// When the original is no longer readable the results are still exported,
// in the fixed grid layout, so a priced job never becomes unexportable.
func (s *ProcessingService) ExportJob(ctx context.Context, jobID int, outputDir string) (string, error) {
	job, err := s.db.MustJobByID(jobID)
	if err != nil {
		return "", err
	}
	if job.Status != JobStatusPriced && job.Status != JobStatusExported {
		return "", fmt.Errorf("job %d not priced (status %s)", job.ID, job.Status)
	}

	results, err := s.db.ListResults(job.ID)
	if err != nil {
		return "", err
	}

	outputPath := filepath.Join(outputDir, PricedFilename(job.Filename))

	content, readErr := os.ReadFile(job.RawRef)
	if readErr == nil {
		wb, decErr := DecodeInput(job.Filename, content, internal.InputKind(job.Kind))
		if decErr == nil {
			sheet := job.SelectedSheet
			if sheet == "" {
				sheet = wb.SheetNames[0]
			}
			if raw, ok := wb.Sheet(sheet); ok {
				schema := DetectSchema(raw)
				if err := ExportReconciledXLSX(ctx, raw, schema, results, outputPath); err != nil {
					return "", err
				}
				_ = s.db.UpdateJobStatus(job.ID, JobStatusExported)
				return outputPath, nil
			}
		}
	}

	outputPath = filepath.Join(outputDir, ImageResultsFilename(time.Now()))
	if err := ExportImageResultsXLSX(ctx, results, outputPath); err != nil {
		return "", err
	}
	_ = s.db.UpdateJobStatus(job.ID, JobStatusExported)
	return outputPath, nil
}

// ExportJobCSV writes the flat CSV export next to the workbook exports.
func (s *ProcessingService) ExportJobCSV(jobID int, outputDir string) (string, error) {
	job, err := s.db.MustJobByID(jobID)
	if err != nil {
		return "", err
	}
	results, err := s.db.ListResults(job.ID)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", fmt.Errorf("job %d has no results", job.ID)
	}

	base := strings.TrimSuffix(filepath.Base(job.Filename), filepath.Ext(job.Filename))
	outputPath := filepath.Join(outputDir, base+"_results.csv")
	if err := ExportResultsCSV(results, outputPath); err != nil {
		return "", err
	}
	return outputPath, nil
}

func pickSheet(offered []string, preferred string) string {
	for _, name := range offered {
		if strings.EqualFold(name, preferred) {
			return name
		}
	}
	if len(offered) > 0 {
		return offered[0]
	}
	return preferred
}

func traceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
