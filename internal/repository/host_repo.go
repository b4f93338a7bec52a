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

type HostRepository struct {
	pool *pgxpool.Pool
}

func NewHostRepository(pool *pgxpool.Pool) *HostRepository {
	return &HostRepository{pool: pool}
}

const hostColumns = `id, provider, external_id, ip_address, specs, status, region, created_at`

// Create creates a new host record
func (r *HostRepository) Create(ctx context.Context, host *models.Host) error {
	specsJSON, err := json.Marshal(host.Specs)
	if err != nil {
		return fmt.Errorf("marshal specs: %w", err)
	}

	query := `
		INSERT INTO provisioning.vps_hosts (id, provider, external_id, ip_address, specs, status, region)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.pool.Exec(ctx, query,
		host.ID, host.Provider, host.ExternalID, host.IPAddress, specsJSON, host.Status, host.Region,
	)
	if err != nil {
		return fmt.Errorf("insert host: %w", err)
	}

	return nil
}

// GetByID retrieves a host by ID
func (r *HostRepository) GetByID(ctx context.Context, id string) (*models.Host, error) {
	query := `SELECT ` + hostColumns + ` FROM provisioning.vps_hosts WHERE id = $1`
	return r.scanHost(r.pool.QueryRow(ctx, query, id))
}

// GetByExternalID retrieves a host by the provider-assigned server ID
func (r *HostRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Host, error) {
	query := `SELECT ` + hostColumns + ` FROM provisioning.vps_hosts WHERE external_id = $1`
	return r.scanHost(r.pool.QueryRow(ctx, query, externalID))
}

// UpdateStatus updates a host's status
func (r *HostRepository) UpdateStatus(ctx context.Context, id, status string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE provisioning.vps_hosts SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update host status: %w", err)
	}
	return nil
}

// Delete removes a host record
func (r *HostRepository) Delete(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM provisioning.vps_hosts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete host: %w", err)
	}
	return nil
}

// ListOrphaned retrieves hosts no instance links to. A crash between host
// insert and instance link leaves such rows; they are surfaced for manual
// reconciliation.
func (r *HostRepository) ListOrphaned(ctx context.Context) ([]*models.Host, error) {
	query := `
		SELECT ` + hostColumns + `
		FROM provisioning.vps_hosts h
		WHERE NOT EXISTS (
			SELECT 1 FROM provisioning.instances i WHERE i.host_id = h.id
		)
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query orphaned hosts: %w", err)
	}
	defer rows.Close()

	var hosts []*models.Host
	for rows.Next() {
		host, err := r.scanHost(rows)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, host)
	}

	return hosts, rows.Err()
}

func (r *HostRepository) scanHost(row rowScanner) (*models.Host, error) {
	host := &models.Host{}
	var specsJSON []byte

	err := row.Scan(
		&host.ID, &host.Provider, &host.ExternalID, &host.IPAddress,
		&specsJSON, &host.Status, &host.Region, &host.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan host: %w", err)
	}

	if len(specsJSON) > 0 {
		if err := json.Unmarshal(specsJSON, &host.Specs); err != nil {
			return nil, fmt.Errorf("unmarshal specs: %w", err)
		}
	}

	return host, nil
}
