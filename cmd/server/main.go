package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"

	"quimera/internal/api"
	"quimera/internal/api/handlers"
	"quimera/internal/api/middleware"
	"quimera/internal/engine/triggers"
	"quimera/internal/engine/webhooks"
	"quimera/internal/pkg/logger"
	"quimera/internal/platform/audit"
	"quimera/internal/platform/auth"
	"quimera/internal/platform/authz"
	"quimera/internal/platform/config"
	"quimera/internal/platform/database"
	"quimera/internal/platform/docstore"
	"quimera/internal/platform/repositories"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := database.EnsureSchema(db); err != nil {
		log.Fatalf("Failed to ensure schema: %v", err)
	}

	// Repositories
	userRepo := repositories.NewUserRepository(db)
	tenantRepo := repositories.NewTenantRepository(db)
	memberRepo := repositories.NewTenantMemberRepository(db)
	webhookRepo := repositories.NewWebhookRepository(db)
	logRepo := repositories.NewDeliveryLogRepository(db)
	docs := docstore.New(db)

	// Services
	tokenSvc := auth.NewTokenService(cfg.JWT)
	authorizer := authz.New(memberRepo)
	auditLog := audit.NewLogger(db)

	// Webhook engine
	deliverer := webhooks.NewDeliverer(webhookRepo, logRepo, cfg.Webhooks)
	dispatcher := webhooks.NewDispatcher(webhookRepo, deliverer, cfg.Webhooks)
	notifier := triggers.NewNotifier(tenantRepo, dispatcher)

	// Handlers
	authHandler := handlers.NewAuthHandler(userRepo, tokenSvc)
	webhookHandler := handlers.NewWebhookHandler(webhookRepo, logRepo, deliverer, authorizer, auditLog, cfg.Webhooks.DefaultRetries)
	leadHandler := handlers.NewLeadHandler(tenantRepo, docs, notifier)
	healthHandler := handlers.NewHealthHandler(db)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenSvc)

	router := api.NewRouter(&api.Dependencies{
		AuthHandler:    authHandler,
		WebhookHandler: webhookHandler,
		LeadHandler:    leadHandler,
		HealthHandler:  healthHandler,
		AuthMiddleware: authMiddleware,
		RateLimit:      cfg.RateLimit,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Printf("Server starting on %s", addr)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
