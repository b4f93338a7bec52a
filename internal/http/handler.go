package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/clawdbot/platform/provisioning-service/internal/models"
	"github.com/clawdbot/platform/provisioning-service/internal/repository"
	"github.com/clawdbot/platform/provisioning-service/internal/service"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	instanceService  *service.InstanceService
	lifecycleService *service.LifecycleService
	billingService   *service.BillingService
	orchestrator     *service.Orchestrator
}

func NewHandler(
	instanceService *service.InstanceService,
	lifecycleService *service.LifecycleService,
	billingService *service.BillingService,
	orchestrator *service.Orchestrator,
) *Handler {
	return &Handler{
		instanceService:  instanceService,
		lifecycleService: lifecycleService,
		billingService:   billingService,
		orchestrator:     orchestrator,
	}
}

// ==================== Instance Handlers ====================

// CreateInstance creates a new assistant instance with a pending provision job
func (h *Handler) CreateInstance(c *gin.Context) {
	var req models.CreateInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inst, err := h.instanceService.Create(c.Request.Context(), c.GetString("userID"), &req)
	if err != nil {
		if errors.Is(err, service.ErrQuotaExceeded) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"instance": toInstanceResponse(inst, nil)})
}

// GetInstance retrieves one of the caller's instances
func (h *Handler) GetInstance(c *gin.Context) {
	inst, host, err := h.instanceService.GetWithHost(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrInstanceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "instance not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"instance": toInstanceResponse(inst, host)})
}

// ListInstances retrieves all of the caller's instances
func (h *Handler) ListInstances(c *gin.Context) {
	instances, err := h.instanceService.List(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	responses := make([]*models.InstanceResponse, 0, len(instances))
	for _, inst := range instances {
		responses = append(responses, toInstanceResponse(inst, nil))
	}

	c.JSON(http.StatusOK, gin.H{"instances": responses})
}

// UpdateInstance handles either a power action or a settings update
func (h *Handler) UpdateInstance(c *gin.Context) {
	var req models.UpdateInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetString("userID")
	id := c.Param("id")

	if req.Action != "" {
		status, err := h.lifecycleService.Power(c.Request.Context(), userID, id, req.Action)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrInstanceNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "instance not found"})
			case errors.Is(err, service.ErrNoServer):
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": status})
		return
	}

	inst, err := h.instanceService.UpdateSettings(c.Request.Context(), userID, id, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInstanceNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "instance not found"})
		case errors.Is(err, service.ErrNothingToUpdate):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"instance": toInstanceResponse(inst, nil)})
}

// DeleteInstance deletes an instance, its host record, and (best-effort) the
// backing server
func (h *Handler) DeleteInstance(c *gin.Context) {
	err := h.lifecycleService.Delete(c.Request.Context(), c.GetString("userID"), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrInstanceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "instance not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ==================== Orchestrator Trigger ====================

// RunProvisioning runs one orchestrator batch and returns per-job results
func (h *Handler) RunProvisioning(c *gin.Context) {
	results, err := h.orchestrator.RunBatch(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if len(results) == 0 {
		c.JSON(http.StatusOK, gin.H{"message": "No pending jobs", "results": results})
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

// ==================== Callback Handlers ====================

// Heartbeat records a liveness report from a provisioned VM
func (h *Handler) Heartbeat(c *gin.Context) {
	var req models.HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.instanceService.Heartbeat(c.Request.Context(), req.Subdomain, req.GatewayToken)
	if err != nil {
		if errors.Is(err, service.ErrInstanceNotFound) || errors.Is(err, service.ErrInvalidToken) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// ==================== Billing Handlers ====================

// CreateCheckout starts a subscription checkout session
func (h *Handler) CreateCheckout(c *gin.Context) {
	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !models.ValidPlan(req.Plan) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid plan"})
		return
	}

	url, err := h.billingService.CreateCheckoutSession(
		c.Request.Context(), c.GetString("userID"), c.GetString("userEmail"), req.Plan, req.Currency)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create checkout session"})
		return
	}

	c.JSON(http.StatusOK, models.CheckoutResponse{URL: url})
}

// GetSubscription retrieves the caller's subscription
func (h *Handler) GetSubscription(c *gin.Context) {
	sub, err := h.billingService.GetSubscription(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no subscription found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"subscription": sub})
}

// GetPlans returns the subscription catalog
func (h *Handler) GetPlans(c *gin.Context) {
	plans := make([]models.Plan, 0, len(models.Plans))
	for _, key := range []string{models.PlanStarter, models.PlanPro, models.PlanBusiness} {
		plans = append(plans, models.Plans[key])
	}
	c.JSON(http.StatusOK, gin.H{"plans": plans})
}

// ==================== Helpers ====================

func toInstanceResponse(inst *models.Instance, host *models.Host) *models.InstanceResponse {
	resp := &models.InstanceResponse{
		ID:            inst.ID,
		Name:          inst.Name,
		Subdomain:     inst.Subdomain,
		Status:        inst.Status,
		StatusMessage: inst.StatusMessage,
		Model:         inst.Config.Model,
		ModelType:     inst.Config.ModelType,
		HasTelegram:   inst.Config.TelegramToken != "",
		CreatedAt:     inst.CreatedAt.Format(time.RFC3339),
	}

	if host != nil {
		resp.IPAddress = &host.IPAddress
	}
	if inst.LastHeartbeat != nil {
		hb := inst.LastHeartbeat.Format(time.RFC3339)
		resp.LastHeartbeat = &hb
	}

	return resp
}
