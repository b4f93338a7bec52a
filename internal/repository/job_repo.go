package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/clawdbot/platform/provisioning-service/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

const jobColumns = `id, instance_id, status, started_at, completed_at, error, created_at`

// Create creates a new provision job
func (r *JobRepository) Create(ctx context.Context, job *models.ProvisionJob) error {
	query := `
		INSERT INTO provisioning.provision_jobs (id, instance_id, status)
		VALUES ($1, $2, $3)
	`
	_, err := r.pool.Exec(ctx, query, job.ID, job.InstanceID, job.Status)
	if err != nil {
		return fmt.Errorf("insert provision job: %w", err)
	}
	return nil
}

// GetByID retrieves a job by ID
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.ProvisionJob, error) {
	query := `SELECT ` + jobColumns + ` FROM provisioning.provision_jobs WHERE id = $1`
	return r.scanJob(r.pool.QueryRow(ctx, query, id))
}

// ListPending retrieves pending jobs, oldest first, up to limit
func (r *JobRepository) ListPending(ctx context.Context, limit int) ([]*models.ProvisionJob, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM provisioning.provision_jobs
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, models.JobStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.ProvisionJob
	for rows.Next() {
		job, err := r.scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// ListRecent retrieves the most recent jobs regardless of state, for
// operator inspection
func (r *JobRepository) ListRecent(ctx context.Context, limit int) ([]*models.ProvisionJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `
		SELECT ` + jobColumns + `
		FROM provisioning.provision_jobs
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.ProvisionJob
	for rows.Next() {
		job, err := r.scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// ClaimPending atomically moves a job from pending to running. Returns false
// if the job was no longer pending, meaning a concurrent invocation claimed
// it (or its instance was deleted) and the caller must skip it.
func (r *JobRepository) ClaimPending(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE provisioning.provision_jobs
		SET status = $2, started_at = NOW()
		WHERE id = $1 AND status = $3
	`
	tag, err := r.pool.Exec(ctx, query, id, models.JobStatusRunning, models.JobStatusPending)
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkCompleted finalizes a running job as completed
func (r *JobRepository) MarkCompleted(ctx context.Context, id string) error {
	return r.finalize(ctx, id, models.JobStatusCompleted, nil)
}

// MarkFailed finalizes a running job as failed with an error message
func (r *JobRepository) MarkFailed(ctx context.Context, id, errMsg string) error {
	return r.finalize(ctx, id, models.JobStatusFailed, &errMsg)
}

// finalize is conditional on the job still being in the running state, so a
// terminal job is never written twice and a cascade-deleted job is a no-op.
func (r *JobRepository) finalize(ctx context.Context, id, status string, errMsg *string) error {
	query := `
		UPDATE provisioning.provision_jobs
		SET status = $2, error = $3, completed_at = NOW()
		WHERE id = $1 AND status = $4
	`
	_, err := r.pool.Exec(ctx, query, id, status, errMsg, models.JobStatusRunning)
	if err != nil {
		return fmt.Errorf("finalize job: %w", err)
	}
	return nil
}

func (r *JobRepository) scanJob(row rowScanner) (*models.ProvisionJob, error) {
	job := &models.ProvisionJob{}

	err := row.Scan(
		&job.ID, &job.InstanceID, &job.Status,
		&job.StartedAt, &job.CompletedAt, &job.Error, &job.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}

	return job, nil
}
