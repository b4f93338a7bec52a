package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"

	"github.com/clawdbot/platform/provisioning-service/internal/models"
	"github.com/clawdbot/platform/provisioning-service/internal/repository"
	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

var (
	ErrInstanceNotFound = errors.New("instance not found")
	ErrQuotaExceeded    = errors.New("instance limit reached for your plan")
	ErrNothingToUpdate  = errors.New("nothing to update")
	ErrInvalidToken     = errors.New("invalid gateway token")
)

const subdomainAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// InstanceService handles instance CRUD and the paired job enqueue
type InstanceService struct {
	instances InstanceStore
	hosts     HostStore
	jobs      JobStore
	subs      SubscriptionStore
	cipher    *Cipher
}

// NewInstanceService creates a new instance service
func NewInstanceService(instances InstanceStore, hosts HostStore, jobs JobStore, subs SubscriptionStore, cipher *Cipher) *InstanceService {
	return &InstanceService{
		instances: instances,
		hosts:     hosts,
		jobs:      jobs,
		subs:      subs,
		cipher:    cipher,
	}
}

// Create creates an instance in provisioning state with its paired pending job
func (s *InstanceService) Create(ctx context.Context, userID string, req *models.CreateInstanceRequest) (*models.Instance, error) {
	if err := s.checkQuota(ctx, userID); err != nil {
		return nil, err
	}

	subdomain, err := gonanoid.Generate(subdomainAlphabet, 8)
	if err != nil {
		return nil, fmt.Errorf("generate subdomain: %w", err)
	}

	gatewayToken, err := gonanoid.New(32)
	if err != nil {
		return nil, fmt.Errorf("generate gateway token: %w", err)
	}

	model := req.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	modelType := req.ModelType
	if modelType == "" {
		modelType = models.ModelTypeOpenRouter
	}

	cfg := models.InstanceConfig{
		Model:         model,
		ModelType:     modelType,
		TelegramToken: req.TelegramToken,
	}
	if req.APIKey != "" {
		encrypted, err := s.cipher.Encrypt(req.APIKey)
		if err != nil {
			return nil, fmt.Errorf("encrypt api key: %w", err)
		}
		cfg.APIKey = encrypted
	}

	inst := &models.Instance{
		ID:           uuid.New().String(),
		UserID:       userID,
		Name:         req.Name,
		Subdomain:    subdomain,
		Status:       models.InstanceStatusProvisioning,
		Config:       cfg,
		GatewayToken: gatewayToken,
	}

	if err := s.instances.Create(ctx, inst); err != nil {
		return nil, fmt.Errorf("create instance: %w", err)
	}

	job := &models.ProvisionJob{
		ID:         uuid.New().String(),
		InstanceID: inst.ID,
		Status:     models.JobStatusPending,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		// keep the pair atomic from the caller's view: roll the instance back
		if delErr := s.instances.Delete(ctx, inst.ID); delErr != nil {
			log.Printf("[Instance] Failed to roll back instance %s after job insert failure: %v", inst.ID, delErr)
		}
		return nil, fmt.Errorf("enqueue provision job: %w", err)
	}

	log.Printf("[Instance] Created instance %s (subdomain: %s) with pending job %s", inst.ID, subdomain, job.ID)
	return inst, nil
}

// Get retrieves an instance owned by the user
func (s *InstanceService) Get(ctx context.Context, userID, id string) (*models.Instance, error) {
	inst, err := s.instances.GetByIDForUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInstanceNotFound
		}
		return nil, err
	}
	return inst, nil
}

// GetWithHost retrieves an instance and its linked host (nil when unlinked)
func (s *InstanceService) GetWithHost(ctx context.Context, userID, id string) (*models.Instance, *models.Host, error) {
	inst, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}

	if inst.HostID == nil {
		return inst, nil, nil
	}

	host, err := s.hosts.GetByID(ctx, *inst.HostID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return inst, nil, nil
		}
		return nil, nil, err
	}

	return inst, host, nil
}

// List retrieves all instances owned by the user
func (s *InstanceService) List(ctx context.Context, userID string) ([]*models.Instance, error) {
	return s.instances.ListByUser(ctx, userID)
}

// UpdateSettings updates the user-editable fields of an instance
func (s *InstanceService) UpdateSettings(ctx context.Context, userID, id string, req *models.UpdateInstanceRequest) (*models.Instance, error) {
	inst, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if req.Name == "" && req.TelegramToken == "" && req.APIKey == "" {
		return nil, ErrNothingToUpdate
	}

	name := inst.Name
	if req.Name != "" {
		name = req.Name
	}

	cfg := inst.Config
	if req.TelegramToken != "" {
		cfg.TelegramToken = req.TelegramToken
	}
	if req.APIKey != "" {
		encrypted, err := s.cipher.Encrypt(req.APIKey)
		if err != nil {
			return nil, fmt.Errorf("encrypt api key: %w", err)
		}
		cfg.APIKey = encrypted
	}

	if err := s.instances.UpdateNameAndConfig(ctx, inst.ID, name, cfg); err != nil {
		return nil, fmt.Errorf("update instance: %w", err)
	}

	inst.Name = name
	inst.Config = cfg
	return inst, nil
}

// Heartbeat records a liveness report from a provisioned VM, authenticated
// by the instance's gateway token
func (s *InstanceService) Heartbeat(ctx context.Context, subdomain, gatewayToken string) error {
	inst, err := s.instances.GetBySubdomain(ctx, subdomain)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInstanceNotFound
		}
		return err
	}

	if subtle.ConstantTimeCompare([]byte(inst.GatewayToken), []byte(gatewayToken)) != 1 {
		return ErrInvalidToken
	}

	return s.instances.TouchHeartbeat(ctx, inst.ID)
}

func (s *InstanceService) checkQuota(ctx context.Context, userID string) error {
	quota := 1
	sub, err := s.subs.GetByUserID(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("check subscription: %w", err)
	}
	if sub != nil {
		quota = models.InstanceQuota(sub.Plan)
	}

	count, err := s.instances.CountByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("count instances: %w", err)
	}
	if count >= quota {
		return ErrQuotaExceeded
	}
	return nil
}
