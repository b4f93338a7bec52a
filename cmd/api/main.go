package main

import (
	"fmt"
	"log"

	"github.com/clawdbot/platform/provisioning-service/internal/client"
	"github.com/clawdbot/platform/provisioning-service/internal/config"
	"github.com/clawdbot/platform/provisioning-service/internal/db"
	"github.com/clawdbot/platform/provisioning-service/internal/http"
	"github.com/clawdbot/platform/provisioning-service/internal/repository"
	"github.com/clawdbot/platform/provisioning-service/internal/service"
)

func main() {
	log.Println("Starting Provisioning Service...")

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize database
	pool, err := db.NewPool(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	// Initialize repositories
	instanceRepo := repository.NewInstanceRepository(pool)
	hostRepo := repository.NewHostRepository(pool)
	jobRepo := repository.NewJobRepository(pool)
	subscriptionRepo := repository.NewSubscriptionRepository(pool)
	logRepo := repository.NewLogRepository(pool)

	// API keys are encrypted at rest
	cipher, err := service.NewCipher(cfg.Encryption.Key)
	if err != nil {
		log.Fatalf("Failed to initialize cipher: %v", err)
	}

	// Compute provider client
	hetznerClient := client.NewHetznerClient(cfg.Hetzner.APIToken)

	// Initialize services
	instanceService := service.NewInstanceService(instanceRepo, hostRepo, jobRepo, subscriptionRepo, cipher)
	lifecycleService := service.NewLifecycleService(instanceRepo, hostRepo, hetznerClient)
	billingService := service.NewBillingService(cfg, subscriptionRepo)
	orchestrator := service.NewOrchestrator(cfg, instanceRepo, hostRepo, jobRepo, logRepo, hetznerClient)

	// Initialize HTTP server
	server := http.NewServer(
		cfg,
		instanceService,
		lifecycleService,
		billingService,
		orchestrator,
		hostRepo,
		jobRepo,
		logRepo,
	)

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := server.Run(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
