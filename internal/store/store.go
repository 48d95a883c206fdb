// Package store is the Postgres persistence layer of SPEC_FULL.md §7.3,
// grounded on the teacher's database/sql + lib/pq usage in main.go's
// updateEmailStatus, generalized from a single UPDATE against a pre-seeded
// "EmailCheck" row into a full job/result schema that owns job creation too.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"emailguard/internal/result"
)

// Postgres is the job/result store backing bulk verification runs.
type Postgres struct {
	db *sql.DB
}

// Open connects to Postgres at dsn and verifies connectivity, mirroring the
// teacher's sql.Open + Ping pair in main.go.
func Open(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Close releases the underlying connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Migrate creates the verification_jobs and verification_results tables if
// they do not already exist, per SPEC_FULL.md §7.3's schema.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS verification_jobs (
	job_id          TEXT PRIMARY KEY,
	total_emails    INTEGER NOT NULL,
	completed_count INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'pending',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at    TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS verification_results (
	id          BIGSERIAL PRIMARY KEY,
	job_id      TEXT NOT NULL REFERENCES verification_jobs(job_id),
	email       TEXT NOT NULL,
	status      TEXT NOT NULL,
	sub_status  TEXT,
	record      JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (job_id, email)
);
`)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// CreateJob registers a new bulk job with its expected email count.
func (p *Postgres) CreateJob(ctx context.Context, jobID string, totalEmails int) error {
	_, err := p.db.ExecContext(ctx, `
INSERT INTO verification_jobs (job_id, total_emails, status)
VALUES ($1, $2, 'pending')
ON CONFLICT (job_id) DO NOTHING`, jobID, totalEmails)
	if err != nil {
		return fmt.Errorf("creating job %s: %w", jobID, err)
	}
	return nil
}

// SaveResult persists a single verified address under jobID and advances
// the job's completed count, marking it "completed" once every address has
// reported in.
func (p *Postgres) SaveResult(ctx context.Context, jobID, email string, r result.Record) error {
	encoded, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding result for %s: %w", email, err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO verification_results (job_id, email, status, sub_status, record)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (job_id, email) DO UPDATE
SET status = EXCLUDED.status, sub_status = EXCLUDED.sub_status, record = EXCLUDED.record`,
		jobID, email, r.Status, r.SubStatus, encoded)
	if err != nil {
		return fmt.Errorf("inserting result for %s: %w", email, err)
	}

	var total, completed int
	err = tx.QueryRowContext(ctx, `
UPDATE verification_jobs
SET completed_count = completed_count + 1
WHERE job_id = $1
RETURNING total_emails, completed_count`, jobID).Scan(&total, &completed)
	if err != nil {
		return fmt.Errorf("advancing job %s: %w", jobID, err)
	}

	if completed >= total {
		_, err = tx.ExecContext(ctx, `
UPDATE verification_jobs SET status = 'completed', completed_at = $2 WHERE job_id = $1`,
			jobID, time.Now())
		if err != nil {
			return fmt.Errorf("completing job %s: %w", jobID, err)
		}
	}

	return tx.Commit()
}

// JobStatus describes a bulk job's progress, per SPEC_FULL.md §7.1's
// GET /api/validate-emails/batch/:jobId response.
type JobStatus struct {
	JobID          string           `json:"jobId"`
	Status         string           `json:"status"`
	TotalEmails    int              `json:"totalEmails"`
	CompletedCount int              `json:"completedCount"`
	Results        []result.Record `json:"results,omitempty"`
}

// ErrJobNotFound is returned by GetJobStatus when jobID has no matching row.
var ErrJobNotFound = fmt.Errorf("job not found")

// GetJobStatus returns the current progress and, once complete, every
// result row for jobID.
func (p *Postgres) GetJobStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	js := &JobStatus{JobID: jobID}
	err := p.db.QueryRowContext(ctx, `
SELECT status, total_emails, completed_count FROM verification_jobs WHERE job_id = $1`,
		jobID).Scan(&js.Status, &js.TotalEmails, &js.CompletedCount)
	if err == sql.ErrNoRows {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching job %s: %w", jobID, err)
	}

	if js.Status != "completed" {
		return js, nil
	}

	rows, err := p.db.QueryContext(ctx, `
SELECT record FROM verification_results WHERE job_id = $1 ORDER BY id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("fetching results for %s: %w", jobID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning result row for %s: %w", jobID, err)
		}
		var rec result.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decoding result row for %s: %w", jobID, err)
		}
		js.Results = append(js.Results, rec)
	}
	return js, rows.Err()
}
