package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"quimera/internal/engine/migration"
	"quimera/internal/pkg/logger"
	"quimera/internal/platform/config"
	"quimera/internal/platform/database"
	"quimera/internal/platform/docstore"
	"quimera/internal/platform/repositories"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Log intended actions without writing")
	userID := flag.String("user", "", "Migrate a single user by ID")
	batch := flag.Int("batch", 0, "Batch query limit (default from config)")
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

	engine := migration.NewEngine(
		repositories.NewUserRepository(db),
		repositories.NewTenantRepository(db),
		repositories.NewTenantMemberRepository(db),
		docstore.New(db),
	)

	batchSize := *batch
	if batchSize <= 0 {
		batchSize = cfg.Migration.BatchSize
	}

	report, err := engine.Run(context.Background(), migration.Options{
		DryRun:    *dryRun,
		UserID:    *userID,
		BatchSize: batchSize,
	})
	if err != nil {
		log.Printf("Migration failed: %v", err)
		os.Exit(1)
	}

	fmt.Println("Migration completed")
	fmt.Print(report.Summary())
}
