package service

import (
	"context"
	"time"

	"github.com/clawdbot/platform/provisioning-service/internal/client"
	"github.com/clawdbot/platform/provisioning-service/internal/models"
)

// Store interfaces consumed by the services. The pgx repositories implement
// them in production; tests substitute in-memory fakes.

type InstanceStore interface {
	Create(ctx context.Context, inst *models.Instance) error
	GetByID(ctx context.Context, id string) (*models.Instance, error)
	GetByIDForUser(ctx context.Context, id, userID string) (*models.Instance, error)
	GetBySubdomain(ctx context.Context, subdomain string) (*models.Instance, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Instance, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	UpdateStatus(ctx context.Context, id, status string, message *string) error
	SetHost(ctx context.Context, id, hostID string) error
	UpdateNameAndConfig(ctx context.Context, id, name string, cfg models.InstanceConfig) error
	TouchHeartbeat(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type HostStore interface {
	Create(ctx context.Context, host *models.Host) error
	GetByID(ctx context.Context, id string) (*models.Host, error)
	UpdateStatus(ctx context.Context, id, status string) error
	Delete(ctx context.Context, id string) error
}

type JobStore interface {
	Create(ctx context.Context, job *models.ProvisionJob) error
	ListPending(ctx context.Context, limit int) ([]*models.ProvisionJob, error)
	ClaimPending(ctx context.Context, id string) (bool, error)
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, errMsg string) error
}

type SubscriptionStore interface {
	Upsert(ctx context.Context, sub *models.Subscription) error
	GetByUserID(ctx context.Context, userID string) (*models.Subscription, error)
	UpdateByStripeSubscriptionID(ctx context.Context, stripeSubID, status string, periodEnd *time.Time) error
}

type ProvisionLogStore interface {
	LogAction(ctx context.Context, jobID, action, status, message string) error
}

// ComputeClient abstracts the cloud provider for the orchestrator and
// lifecycle controller
type ComputeClient interface {
	CreateServer(ctx context.Context, req *client.CreateServerRequest) (*client.Server, error)
	GetServer(ctx context.Context, id int64) (*client.Server, error)
	DeleteServer(ctx context.Context, id int64) error
	PowerAction(ctx context.Context, id int64, action string) error
}
