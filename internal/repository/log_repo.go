package repository

import (
	"context"
	"fmt"

	"github.com/clawdbot/platform/provisioning-service/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LogRepository struct {
	pool *pgxpool.Pool
}

func NewLogRepository(pool *pgxpool.Pool) *LogRepository {
	return &LogRepository{pool: pool}
}

// Create creates a new provision log entry
func (r *LogRepository) Create(ctx context.Context, entry *models.ProvisionLog) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	query := `
		INSERT INTO provisioning.provision_logs (id, job_id, action, status, message)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, query,
		entry.ID, entry.JobID, entry.Action, entry.Status, entry.Message,
	)
	if err != nil {
		return fmt.Errorf("insert provision log: %w", err)
	}

	return nil
}

// GetByJobID retrieves the progress trail for a provisioning attempt
func (r *LogRepository) GetByJobID(ctx context.Context, jobID string, limit int) ([]*models.ProvisionLog, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, job_id, action, status, message, created_at
		FROM provisioning.provision_logs
		WHERE job_id = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("query provision logs: %w", err)
	}
	defer rows.Close()

	var entries []*models.ProvisionLog
	for rows.Next() {
		entry := &models.ProvisionLog{}
		err := rows.Scan(&entry.ID, &entry.JobID, &entry.Action, &entry.Status, &entry.Message, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan provision log: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// LogAction is a helper to log a provisioning step
func (r *LogRepository) LogAction(ctx context.Context, jobID, action, status, message string) error {
	return r.Create(ctx, &models.ProvisionLog{
		JobID:   jobID,
		Action:  action,
		Status:  status,
		Message: message,
	})
}
