package main

import (
	"context"
	"log"

	"github.com/the-bazaar/bazaar-backend/internal/aws"
	"github.com/the-bazaar/bazaar-backend/internal/config"
	"github.com/the-bazaar/bazaar-backend/internal/database"
	"github.com/the-bazaar/bazaar-backend/internal/logging"
	"github.com/the-bazaar/bazaar-backend/internal/metrics"
	"github.com/the-bazaar/bazaar-backend/internal/orders"
	"github.com/the-bazaar/bazaar-backend/internal/queue"
)

func main() {
	cfg := config.Load()

	if err := logging.Init(&cfg.Logging); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	metrics.Init()

	store, err := database.New(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()

	mailer, err := aws.NewSESService(context.Background(), cfg.AWS)
	if err != nil {
		log.Fatalf("Failed to initialize email service: %v", err)
	}

	worker := queue.NewWorker(&cfg.Redis, mailer, orders.NewService(store.Queries()))

	logging.Info("Starting queue worker", "redis", cfg.Redis.Addr, "from", cfg.AWS.FromEmail)
	if err := worker.Run(); err != nil {
		logging.Error("Worker stopped", "error", err)
	}
}
