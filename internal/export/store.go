package export

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/framecull/framecull-agent/internal/db"
)

// Store persists job history so a crash mid-export never loses track of
// what ran. Jobs left in running state are failed by the db layer at
// startup.
type Store interface {
	CreateJob(ctx context.Context, job Job, items []Item) error
	GetJob(ctx context.Context, id string) (*Job, []Item, error)
	ListJobs(ctx context.Context) ([]Job, error)
	UpdateJob(ctx context.Context, id string, status JobStatus, completed int, errMsg string) error
	UpdateItem(ctx context.Context, jobID, clipID string, strategy Strategy, status ItemStatus, errMsg string) error
}

type SQLiteStore struct {
	db *db.DB
}

func NewSQLiteStore(database *db.DB) *SQLiteStore {
	return &SQLiteStore{db: database}
}

func (s *SQLiteStore) CreateJob(ctx context.Context, job Job, items []Item) error {
	tx, err := s.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO export_jobs (id, mode, status, total, completed, error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, '', ?, ?)`,
		job.ID, string(job.Mode), string(job.Status), job.Total, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	for _, item := range items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO export_items (job_id, clip_id, filename, strategy, status, error)
			 VALUES (?, ?, ?, ?, ?, '')`,
			job.ID, item.ClipID, item.Filename, string(item.Strategy), string(item.Status))
		if err != nil {
			return fmt.Errorf("failed to insert item %s: %w", item.ClipID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetJob(ctx context.Context, id string) (*Job, []Item, error) {
	row := s.db.Conn().QueryRowContext(ctx,
		`SELECT id, mode, status, total, completed, error, created_at, updated_at
		 FROM export_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get job: %w", err)
	}

	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT job_id, clip_id, filename, strategy, status, error
		 FROM export_items WHERE job_id = ? ORDER BY clip_id`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		var itemErr sql.NullString
		if err := rows.Scan(&item.JobID, &item.ClipID, &item.Filename, &item.Strategy, &item.Status, &itemErr); err != nil {
			return nil, nil, fmt.Errorf("failed to scan item: %w", err)
		}
		item.Error = itemErr.String
		items = append(items, item)
	}
	return job, items, rows.Err()
}

func (s *SQLiteStore) ListJobs(ctx context.Context) ([]Job, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT id, mode, status, total, completed, error, created_at, updated_at
		 FROM export_jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

func (s *SQLiteStore) UpdateJob(ctx context.Context, id string, status JobStatus, completed int, errMsg string) error {
	_, err := s.db.Conn().ExecContext(ctx,
		`UPDATE export_jobs SET status = ?, completed = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), completed, errMsg, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateItem(ctx context.Context, jobID, clipID string, strategy Strategy, status ItemStatus, errMsg string) error {
	_, err := s.db.Conn().ExecContext(ctx,
		`UPDATE export_items SET strategy = ?, status = ?, error = ? WHERE job_id = ? AND clip_id = ?`,
		string(strategy), string(status), errMsg, jobID, clipID)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var job Job
	var errMsg sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&job.ID, &job.Mode, &job.Status, &job.Total, &job.Completed, &errMsg, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	job.Error = errMsg.String
	job.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	job.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &job, nil
}
