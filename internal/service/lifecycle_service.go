package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/clawdbot/platform/provisioning-service/internal/client"
	"github.com/clawdbot/platform/provisioning-service/internal/models"
	"github.com/clawdbot/platform/provisioning-service/internal/repository"
)

var ErrNoServer = errors.New("instance has no provisioned server")

// Power action names accepted from the API
const (
	ActionStart = "start"
	ActionStop  = "stop"
)

// LifecycleService performs synchronous power and delete operations on an
// existing instance+host pair
type LifecycleService struct {
	instances InstanceStore
	hosts     HostStore
	compute   ComputeClient
}

// NewLifecycleService creates a new lifecycle service
func NewLifecycleService(instances InstanceStore, hosts HostStore, compute ComputeClient) *LifecycleService {
	return &LifecycleService{
		instances: instances,
		hosts:     hosts,
		compute:   compute,
	}
}

// Power starts or stops an instance's server. The stored status is only
// mutated after the provider confirms the action; on provider error the
// status keeps reflecting the last confirmed state.
func (s *LifecycleService) Power(ctx context.Context, userID, id, action string) (string, error) {
	if action != ActionStart && action != ActionStop {
		return "", fmt.Errorf("unknown action %q", action)
	}

	inst, host, err := s.instanceWithHost(ctx, userID, id)
	if err != nil {
		return "", err
	}

	serverID, err := strconv.ParseInt(host.ExternalID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid server id %q: %w", host.ExternalID, err)
	}

	providerAction := client.PowerActionOn
	newStatus := models.InstanceStatusRunning
	if action == ActionStop {
		providerAction = client.PowerActionShutdown
		newStatus = models.InstanceStatusStopped
	}

	if err := s.compute.PowerAction(ctx, serverID, providerAction); err != nil {
		return "", err
	}

	if err := s.instances.UpdateStatus(ctx, inst.ID, newStatus, nil); err != nil {
		return "", fmt.Errorf("update instance status: %w", err)
	}

	log.Printf("[Lifecycle] Instance %s %s (server %d)", inst.ID, newStatus, serverID)
	return newStatus, nil
}

// Delete removes an instance and its host. The backing VM is deleted
// best-effort first; record cleanup always proceeds.
func (s *LifecycleService) Delete(ctx context.Context, userID, id string) error {
	inst, err := s.instances.GetByIDForUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInstanceNotFound
		}
		return err
	}

	if inst.HostID != nil {
		host, err := s.hosts.GetByID(ctx, *inst.HostID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("load host: %w", err)
		}

		if host != nil {
			if serverID, err := strconv.ParseInt(host.ExternalID, 10, 64); err == nil {
				if err := s.compute.DeleteServer(ctx, serverID); err != nil {
					log.Printf("[Lifecycle] Warning: failed to delete server %d: %v", serverID, err)
				}
			}
			if err := s.hosts.Delete(ctx, host.ID); err != nil {
				return fmt.Errorf("delete host record: %w", err)
			}
		}
	}

	// cascades provision jobs and logs
	if err := s.instances.Delete(ctx, inst.ID); err != nil {
		return fmt.Errorf("delete instance record: %w", err)
	}

	log.Printf("[Lifecycle] Instance %s deleted", inst.ID)
	return nil
}

func (s *LifecycleService) instanceWithHost(ctx context.Context, userID, id string) (*models.Instance, *models.Host, error) {
	inst, err := s.instances.GetByIDForUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInstanceNotFound
		}
		return nil, nil, err
	}

	if inst.HostID == nil {
		return nil, nil, ErrNoServer
	}

	host, err := s.hosts.GetByID(ctx, *inst.HostID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrNoServer
		}
		return nil, nil, fmt.Errorf("load host: %w", err)
	}

	if host.ExternalID == "" {
		return nil, nil, ErrNoServer
	}

	return inst, host, nil
}
