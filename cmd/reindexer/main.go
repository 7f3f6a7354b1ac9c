package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"responsa/internal/config"
	"responsa/internal/database/milvus"
	"responsa/internal/database/mongo"
	"responsa/internal/database/redis"
	"responsa/internal/embedding"
	"responsa/internal/indexer"
	"responsa/internal/models"
	"responsa/internal/store"
	"responsa/pkg/logger"
)

// noopInvalidator stands in for the archive service's vector cache. A separate
// process cannot reach that cache; its TTL bounds how long the service serves
// vectors indexed before this run.
type noopInvalidator struct{}

func (noopInvalidator) Invalidate() {}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(logger.ParseLevel(cfg.Logger.Level))
	reindexLogger := logger.New("Reindexer", "")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mongoClient, err := mongo.GetClient(&cfg.Databases.MongoDB)
	if err != nil {
		reindexLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to MongoDB")
	}
	db := mongoClient.Database(cfg.Databases.MongoDB.Database)

	redisClient, err := redis.GetClient(&cfg.Databases.Redis)
	if err != nil {
		reindexLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to Redis")
	}

	milvusClient, err := milvus.GetClient(ctx, &cfg.Databases.Milvus)
	if err != nil {
		reindexLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to Milvus")
	}
	if err := milvusClient.EnsureCollection(ctx); err != nil {
		reindexLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to prepare Milvus collection")
	}

	provider, err := embedding.NewFromConfig(&cfg.Embedding)
	if err != nil {
		reindexLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to create embedding provider")
	}
	cached := embedding.NewCachedModel(provider, redisClient, activeModelName(&cfg.Embedding), cfg.Databases.Redis.EmbeddingTTL, reindexLogger)
	embedder := embedding.NewResilientModel(cached, &cfg.Embedding)

	entryStore := store.NewMongoEntryStore(db, cfg.Databases.MongoDB.Collection)

	ix := indexer.New(entryStore, milvusClient, embedder, noopInvalidator{}, cfg.Indexer, reindexLogger)

	reindexLogger.Info("Starting reindex run")
	report, err := ix.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		reindexLogger.WithError(models.ErrorInfo{Kind: "indexer", Message: err.Error()}).Error("Reindex run aborted")
	}

	if err := milvusClient.Flush(context.Background()); err != nil {
		reindexLogger.WithError(models.ErrorInfo{Message: err.Error()}).Warn("Failed to flush Milvus collection")
	}

	reindexLogger.WithPayload(map[string]interface{}{
		"indexed": report.Indexed,
		"failed":  report.Failed,
	}).Info(fmt.Sprintf("Reindex run finished: %d indexed, %d failed", report.Indexed, report.Failed))

	milvusClient.Close()
	if err := redis.Close(); err != nil {
		reindexLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing Redis client")
	}
	if err := mongo.Close(context.Background()); err != nil {
		reindexLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error disconnecting from MongoDB")
	}
}

func activeModelName(cfg *config.EmbeddingConfig) string {
	switch embedding.ModelType(cfg.Provider) {
	case embedding.Google:
		return cfg.Google.Model
	case embedding.OpenAI:
		return cfg.OpenAI.Model
	default:
		return cfg.Ollama.Model
	}
}
