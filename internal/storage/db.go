package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"pricer/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS jobs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  origin TEXT NOT NULL,
  sourceRef TEXT NOT NULL,
  filename TEXT NOT NULL,
  kind TEXT NOT NULL,
  hash TEXT NOT NULL,
  rawRef TEXT NOT NULL,
  selectedSheet TEXT NOT NULL DEFAULT '',
  mappingJson TEXT NOT NULL DEFAULT '',
  tolerance INTEGER NOT NULL DEFAULT -1,
  status TEXT NOT NULL DEFAULT 'received',
  receivedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(origin, sourceRef)
);

CREATE TABLE IF NOT EXISTS results (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  jobId INTEGER NOT NULL,
  position INTEGER NOT NULL,
  itemNumber INTEGER NOT NULL,
  description TEXT NOT NULL,
  status TEXT NOT NULL,
  source TEXT NOT NULL,
  quantity REAL,
  basePrice REAL,
  adjustedPrice REAL,
  totalPrice REAL,
  url TEXT,
  tier TEXT NOT NULL,
  confidence REAL NOT NULL,
  depCategory TEXT NOT NULL DEFAULT '',
  depPercent REAL,
  depAmount REAL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(jobId, position),
  FOREIGN KEY(jobId) REFERENCES jobs(id)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  jobId INTEGER,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(jobId) REFERENCES jobs(id)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) UpsertJob(job internal.JobRow) (internal.JobRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO jobs (origin, sourceRef, filename, kind, hash, rawRef, selectedSheet, mappingJson, tolerance, status)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(origin, sourceRef) DO UPDATE SET
  filename=excluded.filename,
  kind=excluded.kind,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, job.Origin, job.SourceRef, job.Filename, job.Kind, job.Hash, job.RawRef, job.SelectedSheet, job.MappingJSON, job.Tolerance, job.Status)
	if err != nil {
		return internal.JobRow{}, err
	}

	row, err := d.GetJobByOriginSourceRef(job.Origin, job.SourceRef)
	if err != nil {
		return internal.JobRow{}, err
	}
	if row == nil {
		return internal.JobRow{}, errors.New("failed to upsert job")
	}
	return *row, nil
}

const jobColumns = `id, origin, sourceRef, filename, kind, hash, rawRef, selectedSheet, mappingJson, tolerance, status, receivedAt`

func scanJob(scanner interface{ Scan(...any) error }) (internal.JobRow, error) {
	var row internal.JobRow
	err := scanner.Scan(
		&row.ID, &row.Origin, &row.SourceRef, &row.Filename, &row.Kind, &row.Hash,
		&row.RawRef, &row.SelectedSheet, &row.MappingJSON, &row.Tolerance, &row.Status, &row.ReceivedAt,
	)
	return row, err
}

func (d *DB) GetJobByOriginSourceRef(origin, sourceRef string) (*internal.JobRow, error) {
	row, err := scanJob(d.conn.QueryRow(
		`SELECT `+jobColumns+` FROM jobs WHERE origin = ? AND sourceRef = ?`, origin, sourceRef))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) GetJobByID(id int) (*internal.JobRow, error) {
	row, err := scanJob(d.conn.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) MustJobByID(id int) (internal.JobRow, error) {
	row, err := d.GetJobByID(id)
	if err != nil {
		return internal.JobRow{}, err
	}
	if row == nil {
		return internal.JobRow{}, fmt.Errorf("job not found: id=%d", id)
	}
	return *row, nil
}

func (d *DB) ListJobsByStatus(status string, limit int) ([]internal.JobRow, error) {
	rows, err := d.conn.Query(
		`SELECT `+jobColumns+` FROM jobs WHERE status = ? ORDER BY receivedAt ASC LIMIT ?`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.JobRow
	for rows.Next() {
		row, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateJobStatus(jobID int, status string) error {
	_, err := d.conn.Exec(`UPDATE jobs SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, jobID)
	return err
}

func (d *DB) UpdateJobMapping(jobID int, mapping internal.FieldMapping) error {
	mappingJSON, _ := json.Marshal(mapping)
	_, err := d.conn.Exec(`UPDATE jobs SET mappingJson = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, string(mappingJSON), jobID)
	return err
}

// ClearJobResults drops a job's results ahead of a reprocess.
func (d *DB) ClearJobResults(jobID int) error {
	_, err := d.conn.Exec(`DELETE FROM results WHERE jobId = ?`, jobID)
	return err
}

func (d *DB) InsertResults(jobID int, results []internal.PricingResult) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO results (jobId, position, itemNumber, description, status, source, quantity,
  basePrice, adjustedPrice, totalPrice, url, tier, confidence, depCategory, depPercent, depAmount)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range results {
		if _, err := stmt.Exec(
			jobID, i, r.ItemNumber, r.Description, string(r.Status), r.Source, r.Quantity,
			r.BasePrice, r.AdjustedPrice, r.TotalPrice, r.URL, string(r.Tier), r.Confidence,
			r.DepreciationCategory, r.DepreciationPercent, r.DepreciationAmount,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListResults(jobID int) ([]internal.PricingResult, error) {
	rows, err := d.conn.Query(`
SELECT itemNumber, description, status, source, quantity, basePrice, adjustedPrice,
       totalPrice, url, tier, confidence, depCategory, depPercent, depAmount
FROM results WHERE jobId = ? ORDER BY position ASC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.PricingResult
	for rows.Next() {
		var r internal.PricingResult
		var status, tier string
		if err := rows.Scan(
			&r.ItemNumber, &r.Description, &status, &r.Source, &r.Quantity, &r.BasePrice,
			&r.AdjustedPrice, &r.TotalPrice, &r.URL, &tier, &r.Confidence,
			&r.DepreciationCategory, &r.DepreciationPercent, &r.DepreciationAmount,
		); err != nil {
			return nil, err
		}
		r.Status = internal.PricingStatus(status)
		r.Tier = internal.PricingTier(tier)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (d *DB) InsertRun(traceID string, jobID int, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, jobId, timingsJson, countsJson) VALUES (?, ?, ?, ?)`, traceID, jobID, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
