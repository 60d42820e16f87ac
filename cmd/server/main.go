package main

import (
	"flag"
	"log"

	"k8s.io/klog/v2"

	"github.com/caseforge/backend/config"
	"github.com/caseforge/backend/internal/eventbus"
	"github.com/caseforge/backend/internal/handler"
	"github.com/caseforge/backend/internal/pkg/database"
	"github.com/caseforge/backend/internal/provider"
	"github.com/caseforge/backend/internal/repository"
	"github.com/caseforge/backend/internal/router"
	"github.com/caseforge/backend/internal/service"
	"github.com/caseforge/backend/internal/subscriber"
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	klog.V(6).Info("server starting...")

	cfg := config.GetConfig()

	db, err := database.InitDB(cfg.Database.Type, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	caseRepo := repository.NewTestCaseRepository(db)

	bus := eventbus.NewBus()
	subscriber.NewCaseEventSubscriber(caseRepo).Register(bus)

	providerFactory := provider.NewFactory(cfg)
	batchService, err := service.NewBatchService(providerFactory, bus, cfg.Generation.MaxWorkers)
	if err != nil {
		log.Fatalf("Failed to initialize batch service: %v", err)
	}
	defer batchService.Release()

	testCaseHandler := handler.NewTestCaseHandler(batchService, caseRepo)
	batchHandler := handler.NewBatchHandler(batchService)

	r := router.Setup(cfg, testCaseHandler, batchHandler)

	log.Printf("Server starting on port %s...", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
