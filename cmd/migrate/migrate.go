package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/bson"

	"llmpedia-backend/internal/app"
	"llmpedia-backend/internal/config"
	"llmpedia-backend/internal/logger"
	"llmpedia-backend/internal/queue"
	"llmpedia-backend/internal/vectorstore"
)

func usage() {
	fmt.Println("Usage: migrate <command>")
	fmt.Println("Commands:")
	fmt.Println("  init                             - Create vector tables, indexes and MongoDB indexes")
	fmt.Println("  verify                           - Check vector tables against the collection registry")
	fmt.Println("  seed <collection> <file.jsonl>   - Embed and load {paper_id, text} lines")
	fmt.Println("  seed-async <collection> <file>   - Same, but hand batches to the worker")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	command := os.Args[1]

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger.InitLogger(cfg)

	backends, err := app.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer backends.Close(context.Background())

	ctx := context.Background()
	collections, err := app.BuildCollections(ctx, cfg, backends, nil)
	if err != nil {
		log.Fatalf("Failed to build collection registry: %v", err)
	}
	defer collections.Close()

	switch command {
	case "init":
		if err := initSchema(ctx, cfg, backends, collections); err != nil {
			log.Fatalf("Init failed: %v", err)
		}
		fmt.Println("Schema initialized successfully!")

	case "verify":
		if err := verifySchema(ctx, collections); err != nil {
			log.Fatalf("Verification failed: %v", err)
		}
		fmt.Println("Schema verification completed successfully!")

	case "seed", "seed-async":
		if len(os.Args) < 4 {
			usage()
			os.Exit(1)
		}
		if cfg.VectorBackend == "memory" && command == "seed" {
			log.Fatal("VECTOR_BACKEND=memory keeps vectors in process; seed a persistent backend")
		}
		var enqueue queue.Enqueuer
		if command == "seed-async" {
			opt, err := config.RedisOptions(cfg)
			if err != nil {
				log.Fatalf("Redis: %v", err)
			}
			client := asynq.NewClient(queue.RedisConnOpt(opt))
			defer client.Close()
			enqueue = client
		}
		n, err := seedFile(ctx, collections, os.Args[2], os.Args[3], cfg.EmbedMaxChars, enqueue)
		if err != nil {
			log.Fatalf("Seed failed after %d chunks: %v", n, err)
		}
		fmt.Printf("Seeded %d chunks into %s\n", n, os.Args[2])

	default:
		fmt.Printf("Unknown command: %s\n", command)
		usage()
		os.Exit(1)
	}
}

func initSchema(ctx context.Context, cfg *config.Config, b *app.Backends, cols *app.Collections) error {
	var mongoVectors []string
	for _, spec := range cols.Registry.Specs() {
		switch store := cols.Stores[spec.Name].(type) {
		case *vectorstore.PGVectorStore:
			fmt.Printf("Creating table %s (VECTOR(%d), %s)...\n", store.Table(), spec.Dimension, spec.Metric)
			if err := store.EnsureSchema(ctx); err != nil {
				return err
			}
		case *vectorstore.MongoVectorStore:
			mongoVectors = append(mongoVectors, spec.Collection)
			def, err := bson.MarshalExtJSON(store.IndexDefinition(), false, false)
			if err != nil {
				return err
			}
			fmt.Printf("Create Atlas vector index %q on %s with:\n%s\n",
				vectorstore.DefaultVectorIndex, spec.Collection, def)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	fmt.Println("Creating MongoDB indexes...")
	return config.CreateIndexes(ctx, b.Mongo, cfg.DBName, mongoVectors)
}

func verifySchema(ctx context.Context, cols *app.Collections) error {
	for _, spec := range cols.Registry.Specs() {
		store, ok := cols.Stores[spec.Name].(*vectorstore.PGVectorStore)
		if !ok {
			fmt.Printf("%s: nothing to verify for this backend\n", spec.Name)
			continue
		}
		if err := store.VerifySchema(ctx); err != nil {
			return err
		}
		n, err := store.Count(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s: table %s ok (%d dims, %d chunks)\n", spec.Name, store.Table(), spec.Dimension, n)
	}
	return nil
}
