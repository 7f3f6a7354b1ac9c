package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"responsa/internal/api"
	"responsa/internal/archive/cache"
	"responsa/internal/archive/feedback"
	"responsa/internal/archive/link"
	"responsa/internal/archive/search"
	"responsa/internal/config"
	"responsa/internal/database/kafka"
	"responsa/internal/database/milvus"
	"responsa/internal/database/minio"
	"responsa/internal/database/mongo"
	"responsa/internal/database/mysql"
	"responsa/internal/database/redis"
	"responsa/internal/embedding"
	"responsa/internal/ingest"
	"responsa/internal/models"
	"responsa/internal/store"
	"responsa/internal/verifier"
	"responsa/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(logger.ParseLevel(cfg.Logger.Level))
	serviceLogger := logger.New("ArchiveService", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage clients. Misconfiguration here is the only fatal failure mode;
	// per-request provider errors always degrade.
	mongoClient, err := mongo.GetClient(&cfg.Databases.MongoDB)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to MongoDB")
	}
	db := mongoClient.Database(cfg.Databases.MongoDB.Database)

	gormDB, err := mysql.GetDB(&cfg.Databases.MySQL)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to MySQL")
	}

	redisClient, err := redis.GetClient(&cfg.Databases.Redis)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to Redis")
	}

	milvusClient, err := milvus.GetClient(ctx, &cfg.Databases.Milvus)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to Milvus")
	}
	if err := milvusClient.EnsureCollection(ctx); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to prepare Milvus collection")
	}

	kafkaClient, err := kafka.GetClient(&cfg.Databases.Kafka)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to Kafka")
	}

	minioClient, err := minio.GetClient(&cfg.Databases.MinIO)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to connect to MinIO")
	}

	// Embedding provider behind cache, timeout, retry and circuit breaker.
	provider, err := embedding.NewFromConfig(&cfg.Embedding)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to create embedding provider")
	}
	cached := embedding.NewCachedModel(provider, redisClient, activeModelName(&cfg.Embedding), cfg.Databases.Redis.EmbeddingTTL, serviceLogger)
	embedder := embedding.NewResilientModel(cached, &cfg.Embedding)

	// The verifier is optional: no API key disables the blend stage.
	var verify verifier.Verifier
	if cfg.Verifier.Gemini.APIKey != "" {
		v, err := verifier.NewGeminiVerifier(ctx, &cfg.Verifier)
		if err != nil {
			serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to create verifier")
		}
		verify = v
	} else {
		serviceLogger.Info("No verifier configured, link scores stay algorithmic")
	}

	entryStore := store.NewMongoEntryStore(db, cfg.Databases.MongoDB.Collection)
	feedbackStore, err := store.NewGormFeedbackStore(gormDB)
	if err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("Failed to prepare feedback store")
	}
	audioStore := store.NewAudioStore(minioClient, &cfg.Databases.MinIO)
	resolver := store.NewVectorResolver(entryStore, milvusClient, embedder)

	vectorCache := cache.New(
		store.NewCacheSource(entryStore, milvusClient),
		time.Duration(cfg.Scoring.CacheTTLSec)*time.Second,
		serviceLogger,
	)

	searchSvc := search.NewService(cfg.Scoring, vectorCache, embedder, serviceLogger)
	feedbackSvc := feedback.NewService(feedbackStore, entryStore, vectorCache, serviceLogger)
	linker := link.NewLinker(entryStore, resolver, verify, cfg.Scoring, serviceLogger)

	consumer := ingest.NewAnswerConsumer(kafkaClient.Reader, entryStore, linker, vectorCache, serviceLogger)
	consumer.Start(ctx)
	serviceLogger.Info("Answer consumer started")

	checks := map[string]api.HealthCheck{
		"mongodb": mongo.HealthCheck,
		"mysql":   mysql.HealthCheck,
		"redis":   redis.HealthCheck,
		"milvus":  milvusClient.HealthCheck,
		"kafka":   kafkaClient.HealthCheck,
		"minio":   minio.HealthCheck,
	}

	gin.SetMode(gin.ReleaseMode)
	handler := api.NewHandler(searchSvc, feedbackSvc, linker, entryStore, audioStore, vectorCache, checks, serviceLogger)
	router := api.SetupRouter(handler, &cfg.Middleware)

	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: router,
	}

	go func() {
		serviceLogger.Info("Starting HTTP server on " + srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Fatal("HTTP server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	serviceLogger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Server forced to shutdown")
	}

	cancel()
	if err := kafkaClient.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing Kafka client")
	}
	milvusClient.Close()
	if err := redis.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing Redis client")
	}
	if err := mysql.Close(); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error closing MySQL connection")
	}
	if err := mongo.Close(context.Background()); err != nil {
		serviceLogger.WithError(models.ErrorInfo{Message: err.Error()}).Error("Error disconnecting from MongoDB")
	}

	serviceLogger.Info("Server gracefully stopped")
}

// activeModelName returns the model identifier of the selected provider, used
// to key the embedding cache.
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
