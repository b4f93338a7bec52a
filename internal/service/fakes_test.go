package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/clawdbot/platform/provisioning-service/internal/client"
	"github.com/clawdbot/platform/provisioning-service/internal/models"
	"github.com/clawdbot/platform/provisioning-service/internal/repository"
)

// In-memory fakes for the store interfaces. Error fields inject failures on
// the corresponding operation.

type fakeInstanceStore struct {
	mu sync.Mutex

	instances map[string]*models.Instance

	createErr  error
	setHostErr error
}

func newFakeInstanceStore() *fakeInstanceStore {
	return &fakeInstanceStore{instances: make(map[string]*models.Instance)}
}

func (f *fakeInstanceStore) put(inst *models.Instance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instances[inst.ID] = inst
}

func (f *fakeInstanceStore) get(id string) *models.Instance {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.instances[id]
}

func (f *fakeInstanceStore) Create(ctx context.Context, inst *models.Instance) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	inst.CreatedAt = time.Now()
	f.instances[inst.ID] = inst
	return nil
}

func (f *fakeInstanceStore) GetByID(ctx context.Context, id string) (*models.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instances[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return inst, nil
}

func (f *fakeInstanceStore) GetByIDForUser(ctx context.Context, id, userID string) (*models.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instances[id]
	if !ok || inst.UserID != userID {
		return nil, repository.ErrNotFound
	}
	return inst, nil
}

func (f *fakeInstanceStore) GetBySubdomain(ctx context.Context, subdomain string) (*models.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, inst := range f.instances {
		if inst.Subdomain == subdomain {
			return inst, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeInstanceStore) ListByUser(ctx context.Context, userID string) ([]*models.Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Instance
	for _, inst := range f.instances {
		if inst.UserID == userID {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (f *fakeInstanceStore) CountByUser(ctx context.Context, userID string) (int, error) {
	list, _ := f.ListByUser(ctx, userID)
	return len(list), nil
}

func (f *fakeInstanceStore) UpdateStatus(ctx context.Context, id, status string, message *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instances[id]
	if !ok {
		return repository.ErrNotFound
	}
	inst.Status = status
	inst.StatusMessage = message
	return nil
}

func (f *fakeInstanceStore) SetHost(ctx context.Context, id, hostID string) error {
	if f.setHostErr != nil {
		return f.setHostErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instances[id]
	if !ok {
		return repository.ErrNotFound
	}
	inst.HostID = &hostID
	return nil
}

func (f *fakeInstanceStore) UpdateNameAndConfig(ctx context.Context, id, name string, cfg models.InstanceConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instances[id]
	if !ok {
		return repository.ErrNotFound
	}
	inst.Name = name
	inst.Config = cfg
	return nil
}

func (f *fakeInstanceStore) TouchHeartbeat(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instances[id]
	if !ok {
		return repository.ErrNotFound
	}
	now := time.Now()
	inst.LastHeartbeat = &now
	return nil
}

func (f *fakeInstanceStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.instances, id)
	return nil
}

type fakeHostStore struct {
	mu sync.Mutex

	hosts map[string]*models.Host

	createErr error
}

func newFakeHostStore() *fakeHostStore {
	return &fakeHostStore{hosts: make(map[string]*models.Host)}
}

func (f *fakeHostStore) put(host *models.Host) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hosts[host.ID] = host
}

func (f *fakeHostStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.hosts)
}

func (f *fakeHostStore) Create(ctx context.Context, host *models.Host) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hosts[host.ID] = host
	return nil
}

func (f *fakeHostStore) GetByID(ctx context.Context, id string) (*models.Host, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	host, ok := f.hosts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return host, nil
}

func (f *fakeHostStore) UpdateStatus(ctx context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	host, ok := f.hosts[id]
	if !ok {
		return repository.ErrNotFound
	}
	host.Status = status
	return nil
}

func (f *fakeHostStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.hosts, id)
	return nil
}

type fakeJobStore struct {
	mu sync.Mutex

	jobs map[string]*models.ProvisionJob

	createErr error

	// listStale makes ListPending also return already-claimed jobs, to
	// simulate a concurrent invocation winning the claim after the list
	listStale bool
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[string]*models.ProvisionJob)}
}

func (f *fakeJobStore) put(job *models.ProvisionJob) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.ID] = job
}

func (f *fakeJobStore) get(id string) *models.ProvisionJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jobs[id]
}

func (f *fakeJobStore) Create(ctx context.Context, job *models.ProvisionJob) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	job.Status = models.JobStatusPending
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeJobStore) ListPending(ctx context.Context, limit int) ([]*models.ProvisionJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.ProvisionJob
	for _, job := range f.jobs {
		if job.Status == models.JobStatusPending || f.listStale {
			out = append(out, job)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// ClaimPending mirrors the conditional UPDATE of the real store: the claim
// only succeeds when the job is still pending.
func (f *fakeJobStore) ClaimPending(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok || job.Status != models.JobStatusPending {
		return false, nil
	}
	job.Status = models.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	return true, nil
}

func (f *fakeJobStore) MarkCompleted(ctx context.Context, id string) error {
	return f.finalize(id, models.JobStatusCompleted, nil)
}

func (f *fakeJobStore) MarkFailed(ctx context.Context, id, errMsg string) error {
	return f.finalize(id, models.JobStatusFailed, &errMsg)
}

func (f *fakeJobStore) finalize(id, status string, errMsg *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok || job.Status != models.JobStatusRunning {
		return nil
	}
	job.Status = status
	job.Error = errMsg
	now := time.Now()
	job.CompletedAt = &now
	return nil
}

type fakeSubscriptionStore struct {
	mu sync.Mutex

	subs map[string]*models.Subscription // keyed by user ID

	updates []subscriptionUpdate
}

type subscriptionUpdate struct {
	stripeSubID string
	status      string
	periodEnd   *time.Time
}

func newFakeSubscriptionStore() *fakeSubscriptionStore {
	return &fakeSubscriptionStore{subs: make(map[string]*models.Subscription)}
}

func (f *fakeSubscriptionStore) Upsert(ctx context.Context, sub *models.Subscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.subs[sub.UserID]; ok {
		sub.ID = existing.ID
	}
	f.subs[sub.UserID] = sub
	return nil
}

func (f *fakeSubscriptionStore) GetByUserID(ctx context.Context, userID string) (*models.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub, ok := f.subs[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return sub, nil
}

func (f *fakeSubscriptionStore) UpdateByStripeSubscriptionID(ctx context.Context, stripeSubID, status string, periodEnd *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, subscriptionUpdate{stripeSubID: stripeSubID, status: status, periodEnd: periodEnd})
	for _, sub := range f.subs {
		if sub.StripeSubscriptionID != nil && *sub.StripeSubscriptionID == stripeSubID {
			sub.Status = status
			if periodEnd != nil {
				sub.CurrentPeriodEnd = periodEnd
			}
		}
	}
	return nil
}

type fakeLogStore struct {
	mu      sync.Mutex
	actions []string
}

func (f *fakeLogStore) LogAction(ctx context.Context, jobID, action, status, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
	return nil
}

// fakeComputeClient simulates the cloud provider. Poll responses come from
// pollStatuses in order; once exhausted the last status repeats.
type fakeComputeClient struct {
	mu sync.Mutex

	nextID       int64
	onCreate     func()
	createErr    error
	powerErr     error
	deleteErr    error
	pollStatuses []string

	createCalls int
	getCalls    int
	deleteCalls []int64
	powerCalls  []string
}

func newFakeComputeClient() *fakeComputeClient {
	return &fakeComputeClient{nextID: 1000, pollStatuses: []string{"running"}}
}

func (f *fakeComputeClient) CreateServer(ctx context.Context, req *client.CreateServerRequest) (*client.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.onCreate != nil {
		f.onCreate()
	}
	f.nextID++
	return &client.Server{
		ID:       f.nextID,
		Name:     req.Name,
		Status:   "initializing",
		PublicIP: fmt.Sprintf("10.0.0.%d", f.nextID%250),
	}, nil
}

func (f *fakeComputeClient) GetServer(ctx context.Context, id int64) (*client.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	idx := f.getCalls - 1
	if idx >= len(f.pollStatuses) {
		idx = len(f.pollStatuses) - 1
	}
	status := f.pollStatuses[idx]
	if status == "error" {
		return nil, fmt.Errorf("provider unavailable")
	}
	return &client.Server{ID: id, Status: status, PublicIP: "10.0.0.1"}, nil
}

func (f *fakeComputeClient) DeleteServer(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, id)
	return f.deleteErr
}

func (f *fakeComputeClient) PowerAction(ctx context.Context, id int64, action string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.powerErr != nil {
		return f.powerErr
	}
	f.powerCalls = append(f.powerCalls, action)
	return nil
}
