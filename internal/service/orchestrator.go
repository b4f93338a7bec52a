package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/clawdbot/platform/provisioning-service/internal/client"
	"github.com/clawdbot/platform/provisioning-service/internal/config"
	"github.com/clawdbot/platform/provisioning-service/internal/models"
	"github.com/clawdbot/platform/provisioning-service/internal/repository"
	"github.com/google/uuid"
)

// Orchestrator drains the provision job queue. Each invocation claims a batch
// of pending jobs and drives them to a terminal state, one at a time; all
// state lives in the durable stores, never in the orchestrator itself.
type Orchestrator struct {
	instances InstanceStore
	hosts     HostStore
	jobs      JobStore
	logs      ProvisionLogStore
	compute   ComputeClient

	location     string
	image        string
	batchSize    int
	pollInterval time.Duration
	maxPollTries int
}

// NewOrchestrator creates an orchestrator with injected stores and compute client
func NewOrchestrator(
	cfg *config.Config,
	instances InstanceStore,
	hosts HostStore,
	jobs JobStore,
	logs ProvisionLogStore,
	compute ComputeClient,
) *Orchestrator {
	return &Orchestrator{
		instances:    instances,
		hosts:        hosts,
		jobs:         jobs,
		logs:         logs,
		compute:      compute,
		location:     cfg.Hetzner.Location,
		image:        cfg.Hetzner.Image,
		batchSize:    cfg.Orchestrator.BatchSize,
		pollInterval: cfg.Orchestrator.PollInterval,
		maxPollTries: cfg.Orchestrator.MaxPollTries,
	}
}

// RunBatch processes one batch of pending jobs, oldest first. A failure in
// one job never aborts the rest of the batch.
func (o *Orchestrator) RunBatch(ctx context.Context) ([]models.JobResult, error) {
	jobs, err := o.jobs.ListPending(ctx, o.batchSize)
	if err != nil {
		return nil, fmt.Errorf("list pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return []models.JobResult{}, nil
	}

	log.Printf("[Orchestrator] Processing %d pending job(s)", len(jobs))

	results := make([]models.JobResult, 0, len(jobs))
	for _, job := range jobs {
		claimed, err := o.jobs.ClaimPending(ctx, job.ID)
		if err != nil {
			log.Printf("[Orchestrator] Failed to claim job %s: %v", job.ID, err)
			continue
		}
		if !claimed {
			// another invocation won the claim, or the instance was deleted
			log.Printf("[Orchestrator] Job %s no longer pending, skipping", job.ID)
			continue
		}

		results = append(results, o.runJob(ctx, job))
	}

	return results, nil
}

// runJob drives a single claimed job to completed or failed
func (o *Orchestrator) runJob(ctx context.Context, job *models.ProvisionJob) models.JobResult {
	ip, err := o.provision(ctx, job)
	if err != nil {
		o.failJob(ctx, job, err)
		return models.JobResult{JobID: job.ID, Status: models.JobStatusFailed, Error: err.Error()}
	}

	log.Printf("[Orchestrator] Job %s completed, server at %s", job.ID, ip)
	return models.JobResult{JobID: job.ID, Status: models.JobStatusCompleted, IP: ip}
}

func (o *Orchestrator) provision(ctx context.Context, job *models.ProvisionJob) (string, error) {
	inst, err := o.instances.GetByID(ctx, job.InstanceID)
	if err != nil {
		return "", fmt.Errorf("load instance: %w", err)
	}

	// 调用云厂商前先检查实例配置
	if inst.Config.TelegramToken == "" {
		return "", fmt.Errorf("instance configuration incomplete: telegram bot token is required")
	}

	o.logs.LogAction(ctx, job.ID, "provision_started", models.JobStatusRunning,
		fmt.Sprintf("Provisioning started for instance %s", inst.Subdomain))

	useOllama := inst.Config.UseOllama()

	userData := client.RenderUserData(&client.BootConfig{
		GatewayToken:  inst.GatewayToken,
		TelegramToken: inst.Config.TelegramToken,
		UseOllama:     useOllama,
		Model:         inst.Config.Model,
	})

	serverType := client.ServerTypeSmall
	if useOllama {
		serverType = client.ServerTypeLarge
	}

	server, err := o.compute.CreateServer(ctx, &client.CreateServerRequest{
		Name:       "clawdbot-" + inst.Subdomain,
		ServerType: serverType,
		Location:   o.location,
		Image:      o.image,
		UserData:   userData,
	})
	if err != nil {
		return "", fmt.Errorf("create server: %w", err)
	}

	// The instance may have been deleted while the server was being created.
	// Re-check before linking so a deleted instance never gets a live VM.
	if _, err := o.instances.GetByID(ctx, inst.ID); err != nil {
		o.releaseServer(ctx, server.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return "", fmt.Errorf("instance deleted during provisioning")
		}
		return "", fmt.Errorf("re-check instance: %w", err)
	}

	specs := models.HostSpecs{VCPU: 2, RAMGB: 4, DiskGB: 40}
	if useOllama {
		specs = models.HostSpecs{VCPU: 4, RAMGB: 8, DiskGB: 80}
	}

	host := &models.Host{
		ID:         uuid.New().String(),
		Provider:   models.ProviderHetzner,
		ExternalID: strconv.FormatInt(server.ID, 10),
		IPAddress:  server.PublicIP,
		Specs:      specs,
		Status:     models.HostStatusProvisioning,
		Region:     o.location,
	}

	if err := o.hosts.Create(ctx, host); err != nil {
		// compensate: release the VM so a failed write does not leak it
		o.releaseServer(ctx, server.ID)
		return "", fmt.Errorf("persist host record: %w", err)
	}

	if err := o.instances.SetHost(ctx, inst.ID, host.ID); err != nil {
		o.releaseServer(ctx, server.ID)
		o.hosts.Delete(ctx, host.ID)
		return "", fmt.Errorf("link host to instance: %w", err)
	}

	progress := fmt.Sprintf("Server %d created at %s, waiting for boot", server.ID, server.PublicIP)
	o.instances.UpdateStatus(ctx, inst.ID, models.InstanceStatusProvisioning, &progress)
	o.logs.LogAction(ctx, job.ID, "server_created", models.JobStatusRunning, progress)

	if err := o.waitForRunning(ctx, server.ID); err != nil {
		return "", err
	}

	// finalize: instance running with cleared message, host available, job completed
	if err := o.instances.UpdateStatus(ctx, inst.ID, models.InstanceStatusRunning, nil); err != nil {
		return "", fmt.Errorf("update instance status: %w", err)
	}
	if err := o.hosts.UpdateStatus(ctx, host.ID, models.HostStatusAvailable); err != nil {
		return "", fmt.Errorf("update host status: %w", err)
	}
	if err := o.jobs.MarkCompleted(ctx, job.ID); err != nil {
		return "", fmt.Errorf("complete job: %w", err)
	}

	o.logs.LogAction(ctx, job.ID, "provision_completed", models.JobStatusCompleted,
		fmt.Sprintf("Instance running at %s", server.PublicIP))

	return server.PublicIP, nil
}

// waitForRunning polls the provider at a fixed interval up to the attempt
// budget. Transient poll errors are swallowed and count as attempts; only
// exhausting the budget is a failure.
func (o *Orchestrator) waitForRunning(ctx context.Context, serverID int64) error {
	for attempt := 1; attempt <= o.maxPollTries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.pollInterval):
		}

		server, err := o.compute.GetServer(ctx, serverID)
		if err != nil {
			log.Printf("[Orchestrator] Poll %d/%d for server %d failed: %v", attempt, o.maxPollTries, serverID, err)
			continue
		}

		if server.Status == "running" {
			return nil
		}
	}

	return fmt.Errorf("timed out waiting for server to become ready")
}

// failJob records a terminal failure on the job and mirrors it onto the instance
func (o *Orchestrator) failJob(ctx context.Context, job *models.ProvisionJob, jobErr error) {
	msg := jobErr.Error()
	log.Printf("[Orchestrator] Job %s failed: %s", job.ID, msg)

	if err := o.jobs.MarkFailed(ctx, job.ID, msg); err != nil {
		log.Printf("[Orchestrator] Failed to mark job %s failed: %v", job.ID, err)
	}
	if err := o.instances.UpdateStatus(ctx, job.InstanceID, models.InstanceStatusError, &msg); err != nil {
		log.Printf("[Orchestrator] Failed to update instance %s: %v", job.InstanceID, err)
	}
	o.logs.LogAction(ctx, job.ID, "provision_failed", models.JobStatusFailed, msg)
}

// releaseServer best-effort deletes a VM created during a job that cannot
// proceed. An irreconcilable leak is logged with the provider id.
func (o *Orchestrator) releaseServer(ctx context.Context, serverID int64) {
	if err := o.compute.DeleteServer(ctx, serverID); err != nil {
		log.Printf("[Orchestrator] WARNING: leaked server %d, manual cleanup required: %v", serverID, err)
	}
}
