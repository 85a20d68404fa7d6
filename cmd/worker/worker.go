package main

import (
	"context"
	"log"

	"github.com/hibiken/asynq"

	"llmpedia-backend/internal/app"
	"llmpedia-backend/internal/config"
	"llmpedia-backend/internal/logger"
	"llmpedia-backend/internal/queue"
	"llmpedia-backend/services"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	backends, err := app.Connect(cfg)
	if err != nil {
		log.Fatal("Failed to connect to databases:", err)
	}
	defer backends.Close(context.Background())

	collections, err := app.BuildCollections(context.Background(), cfg, backends, nil)
	if err != nil {
		log.Fatal("Failed to build collection registry:", err)
	}
	defer collections.Close()

	redisOpt, err := config.RedisOptions(cfg)
	if err != nil {
		log.Fatal("Failed to resolve Redis options:", err)
	}
	connOpt := queue.RedisConnOpt(redisOpt)

	server := asynq.NewServer(
		connOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 3, // chunk indexing
				"low":     1, // Q&A log
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(services.NewQnALog(backends.DB), collections.Registry)

	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TaskLogQnA, processor.HandleLogQnA)
	mux.HandleFunc(queue.TaskIndexChunks, processor.HandleIndexChunks)

	logger.Info("Starting Asynq worker", "concurrency", 10, "redis", connOpt.Addr,
		"collections", collections.Registry.Len())

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
