package connectors

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jhillyerd/enmime"

	"pricer/internal"
	"pricer/internal/pipeline"
	"pricer/internal/storage"
)

// IntakeService turns a fetched mail message into pricing jobs: one job
// per spreadsheet attachment. Non-spreadsheet attachments are ignored;
// the raw attachment bytes are written once, keyed by content hash, so
// refetching a message never duplicates files on disk.
type IntakeService struct {
	db         *storage.DB
	rawFileDir string
}

func NewIntakeService(db *storage.DB, rawFileDir string) *IntakeService {
	return &IntakeService{db: db, rawFileDir: rawFileDir}
}

var spreadsheetExts = map[string]bool{
	".xlsx": true,
	".xls":  true,
	".csv":  true,
}

func (s *IntakeService) Store(msg internal.FetchedMailMessage) ([]internal.JobRow, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(msg.Raw))
	if err != nil {
		return nil, fmt.Errorf("parse message %s: %w", msg.MessageID, err)
	}

	if err := os.MkdirAll(s.rawFileDir, 0o755); err != nil {
		return nil, err
	}

	var jobs []internal.JobRow
	for i, att := range env.Attachments {
		name := att.FileName
		if name == "" {
			name = fmt.Sprintf("attachment-%d", i)
		}
		if !spreadsheetExts[strings.ToLower(filepath.Ext(name))] {
			continue
		}

		hashBytes := sha256.Sum256(att.Content)
		hash := hex.EncodeToString(hashBytes[:])

		rawPath := filepath.Join(s.rawFileDir, hash+filepath.Ext(name))
		if _, err := os.Stat(rawPath); os.IsNotExist(err) {
			if err := os.WriteFile(rawPath, att.Content, 0o644); err != nil {
				return nil, err
			}
		}

		job, err := s.db.UpsertJob(internal.JobRow{
			Origin:    msg.Provider,
			SourceRef: fmt.Sprintf("%s#%d", msg.MessageID, i),
			Filename:  name,
			Kind:      string(pipeline.KindFromFilename(name)),
			Hash:      hash,
			RawRef:    rawPath,
			Tolerance: internal.ToleranceUnset,
			Status:    pipeline.JobStatusReceived,
		})
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

// StoreFile registers a local file as a job, for the CLI ingest path.
// Pass internal.ToleranceUnset to defer to the configured default.
func (s *IntakeService) StoreFile(path string, tolerance int) (internal.JobRow, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return internal.JobRow{}, err
	}

	hashBytes := sha256.Sum256(content)
	hash := hex.EncodeToString(hashBytes[:])

	if err := os.MkdirAll(s.rawFileDir, 0o755); err != nil {
		return internal.JobRow{}, err
	}

	name := filepath.Base(path)
	rawPath := filepath.Join(s.rawFileDir, hash+filepath.Ext(name))
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, content, 0o644); err != nil {
			return internal.JobRow{}, err
		}
	}

	return s.db.UpsertJob(internal.JobRow{
		Origin:    "local",
		SourceRef: hash,
		Filename:  name,
		Kind:      string(pipeline.KindFromFilename(name)),
		Hash:      hash,
		RawRef:    rawPath,
		Tolerance: tolerance,
		Status:    pipeline.JobStatusReceived,
	})
}
