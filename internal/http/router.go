package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clawdbot/platform/provisioning-service/internal/config"
	"github.com/clawdbot/platform/provisioning-service/internal/repository"
	"github.com/clawdbot/platform/provisioning-service/internal/service"
)

type Server struct {
	router         *gin.Engine
	handler        *Handler
	webhookHandler *WebhookHandler
	adminHandler   *AdminHandler
	cfg            *config.Config
}

// 全局速率限制器: 每用户每分钟最多 30 次请求
var userRateLimiter = NewRateLimiter(30, time.Minute)

// 创建实例速率限制器: 每用户每小时最多 5 次（配额本身很小，5 次足够覆盖重试）
var createRateLimiter = NewRateLimiter(5, time.Hour)

func NewServer(
	cfg *config.Config,
	instanceService *service.InstanceService,
	lifecycleService *service.LifecycleService,
	billingService *service.BillingService,
	orchestrator *service.Orchestrator,
	hostRepo *repository.HostRepository,
	jobRepo *repository.JobRepository,
	logRepo *repository.LogRepository,
) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:         router,
		handler:        NewHandler(instanceService, lifecycleService, billingService, orchestrator),
		webhookHandler: NewWebhookHandler(billingService),
		adminHandler:   NewAdminHandler(hostRepo, jobRepo, logRepo),
		cfg:            cfg,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "provisioning-service",
		})
	})

	// Orchestrator trigger - called by the external cron scheduler
	trigger := s.router.Group("/api/provisioning")
	trigger.Use(TriggerAuthMiddleware(s.cfg.Orchestrator.TriggerSecret))
	{
		trigger.POST("/run", s.handler.RunProvisioning)
	}

	// Billing webhook - Stripe signs the payload, no other auth
	s.router.POST("/api/billing/webhook", s.webhookHandler.HandleStripeWebhook)

	// Instance callback API - called by the agent running on the VM,
	// authenticated per instance with its gateway token
	callback := s.router.Group("/api/callback")
	{
		callback.POST("/heartbeat", s.handler.Heartbeat)
	}

	// User API - requires JWT authentication
	user := s.router.Group("/api/v1")
	user.Use(JWTAuthMiddleware(s.cfg.JWT.SecretKey))
	user.Use(RateLimitMiddleware(userRateLimiter)) // 用户 API 速率限制
	{
		// Instance management
		user.GET("/instances", s.handler.ListInstances)
		// 创建实例使用更严格的速率限制
		user.POST("/instances", RateLimitMiddleware(createRateLimiter), s.handler.CreateInstance)
		user.GET("/instances/:id", s.handler.GetInstance)
		user.PATCH("/instances/:id", s.handler.UpdateInstance)
		user.DELETE("/instances/:id", s.handler.DeleteInstance)

		// Billing
		user.POST("/billing/checkout", s.handler.CreateCheckout)
		user.GET("/billing/subscription", s.handler.GetSubscription)

		// Plans catalog
		user.GET("/plans", s.handler.GetPlans)
	}

	// Internal Admin API - reconciliation views, requires Internal Secret
	admin := s.router.Group("/api/admin")
	admin.Use(AdminAuthMiddleware(s.cfg.InternalSecret))
	{
		admin.GET("/hosts/orphaned", s.adminHandler.ListOrphanedHosts)
		admin.GET("/jobs", s.adminHandler.ListRecentJobs)
		admin.GET("/jobs/:id", s.adminHandler.GetJob)
	}
}

func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
