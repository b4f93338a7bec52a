package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/clawdbot/platform/provisioning-service/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

type InstanceRepository struct {
	pool *pgxpool.Pool
}

func NewInstanceRepository(pool *pgxpool.Pool) *InstanceRepository {
	return &InstanceRepository{pool: pool}
}

const instanceColumns = `id, user_id, host_id, name, subdomain, status, status_message,
	   config, gateway_token, created_at, updated_at, last_heartbeat`

// Create creates a new instance
func (r *InstanceRepository) Create(ctx context.Context, inst *models.Instance) error {
	configJSON, err := json.Marshal(inst.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	query := `
		INSERT INTO provisioning.instances (
			id, user_id, host_id, name, subdomain, status, status_message, config, gateway_token
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.pool.Exec(ctx, query,
		inst.ID, inst.UserID, inst.HostID, inst.Name, inst.Subdomain,
		inst.Status, inst.StatusMessage, configJSON, inst.GatewayToken,
	)
	if err != nil {
		return fmt.Errorf("insert instance: %w", err)
	}

	return nil
}

// GetByID retrieves an instance by ID
func (r *InstanceRepository) GetByID(ctx context.Context, id string) (*models.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM provisioning.instances WHERE id = $1`
	return r.scanInstance(r.pool.QueryRow(ctx, query, id))
}

// GetByIDForUser retrieves an instance by ID, scoped to its owner
func (r *InstanceRepository) GetByIDForUser(ctx context.Context, id, userID string) (*models.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM provisioning.instances WHERE id = $1 AND user_id = $2`
	return r.scanInstance(r.pool.QueryRow(ctx, query, id, userID))
}

// GetBySubdomain retrieves an instance by its subdomain
func (r *InstanceRepository) GetBySubdomain(ctx context.Context, subdomain string) (*models.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM provisioning.instances WHERE subdomain = $1`
	return r.scanInstance(r.pool.QueryRow(ctx, query, subdomain))
}

// ListByUser retrieves all instances owned by a user, newest first
func (r *InstanceRepository) ListByUser(ctx context.Context, userID string) ([]*models.Instance, error) {
	query := `SELECT ` + instanceColumns + ` FROM provisioning.instances
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query instances: %w", err)
	}
	defer rows.Close()

	var instances []*models.Instance
	for rows.Next() {
		inst, err := r.scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}

	return instances, rows.Err()
}

// CountByUser counts a user's instances
func (r *InstanceRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM provisioning.instances WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count instances: %w", err)
	}
	return count, nil
}

// UpdateStatus updates an instance's status and progress message
func (r *InstanceRepository) UpdateStatus(ctx context.Context, id, status string, message *string) error {
	query := `
		UPDATE provisioning.instances
		SET status = $2, status_message = $3, updated_at = NOW()
		WHERE id = $1
	`
	_, err := r.pool.Exec(ctx, query, id, status, message)
	if err != nil {
		return fmt.Errorf("update instance status: %w", err)
	}
	return nil
}

// SetHost links a host to an instance
func (r *InstanceRepository) SetHost(ctx context.Context, id, hostID string) error {
	query := `
		UPDATE provisioning.instances
		SET host_id = $2, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, hostID)
	if err != nil {
		return fmt.Errorf("set instance host: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateNameAndConfig updates the user-editable fields
func (r *InstanceRepository) UpdateNameAndConfig(ctx context.Context, id, name string, cfg models.InstanceConfig) error {
	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	query := `
		UPDATE provisioning.instances
		SET name = $2, config = $3, updated_at = NOW()
		WHERE id = $1
	`
	_, err = r.pool.Exec(ctx, query, id, name, configJSON)
	if err != nil {
		return fmt.Errorf("update instance config: %w", err)
	}
	return nil
}

// TouchHeartbeat records a liveness report from the provisioned VM
func (r *InstanceRepository) TouchHeartbeat(ctx context.Context, id string) error {
	query := `UPDATE provisioning.instances SET last_heartbeat = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("touch heartbeat: %w", err)
	}
	return nil
}

// Delete removes an instance; provision jobs and logs cascade via FK
func (r *InstanceRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM provisioning.instances WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete instance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *InstanceRepository) scanInstance(row rowScanner) (*models.Instance, error) {
	inst := &models.Instance{}
	var configJSON []byte

	err := row.Scan(
		&inst.ID, &inst.UserID, &inst.HostID, &inst.Name, &inst.Subdomain,
		&inst.Status, &inst.StatusMessage, &configJSON, &inst.GatewayToken,
		&inst.CreatedAt, &inst.UpdatedAt, &inst.LastHeartbeat,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan instance: %w", err)
	}

	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &inst.Config); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	return inst, nil
}
