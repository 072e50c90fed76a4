package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/lexidoc/legal-doc-analyzer/api"
	"github.com/lexidoc/legal-doc-analyzer/api/handler"
	"github.com/lexidoc/legal-doc-analyzer/api/middleware"
	"github.com/lexidoc/legal-doc-analyzer/config"
	"github.com/lexidoc/legal-doc-analyzer/internal/cache"
	"github.com/lexidoc/legal-doc-analyzer/internal/database"
	"github.com/lexidoc/legal-doc-analyzer/internal/document"
	"github.com/lexidoc/legal-doc-analyzer/internal/embedding"
	"github.com/lexidoc/legal-doc-analyzer/internal/llm"
	"github.com/lexidoc/legal-doc-analyzer/internal/repository"
	"github.com/lexidoc/legal-doc-analyzer/internal/services"
	"github.com/lexidoc/legal-doc-analyzer/internal/vectordb"
	"github.com/lexidoc/legal-doc-analyzer/pkg/storage"
	"github.com/lexidoc/legal-doc-analyzer/pkg/taskqueue"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	mode := flag.String("mode", "release", "Run mode (debug/release)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	gin.SetMode(*mode)

	logger := setupLogger(cfg)
	logger.Info("Starting legal document analyzer...")

	if err := setupDatabase(cfg, logger); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}

	fileStorage, err := setupStorage(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	embeddingClient, err := setupEmbedding(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize embedding client: %v", err)
	}

	vectorDB, err := setupVectorDB(cfg, embeddingClient.Name())
	if err != nil {
		logger.Fatalf("Failed to initialize vector database: %v", err)
	}
	defer vectorDB.Close()

	llmClient, err := setupLLM(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize LLM client: %v", err)
	}

	cacheService, err := setupCache(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize cache: %v", err)
	}

	var queue taskqueue.Queue
	var worker taskqueue.Worker
	if cfg.Queue.Enable {
		queue, worker, err = setupTaskQueue(cfg, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer queue.Close()
	}

	splitter := document.NewTextSplitter(document.SplitterConfig{
		ChunkSize:    cfg.Document.ChunkSize,
		ChunkOverlap: cfg.Document.ChunkOverlap,
	})

	ragService := llm.NewRAG(llmClient,
		llm.WithRAGMaxTokens(cfg.LLM.MaxTokens),
		llm.WithRAGTemperature(cfg.LLM.Temperature),
	)

	repo := repository.NewDocumentRepository()
	statusManager := services.NewDocumentStatusManager(repo, logger)

	documentOptions := []services.DocumentOption{
		services.WithDocumentRepository(repo),
		services.WithStatusManager(statusManager),
		services.WithBatchSize(cfg.Embed.BatchSize),
		services.WithLogger(logger),
	}
	if queue != nil {
		documentOptions = append(documentOptions,
			services.WithTaskQueue(queue),
			services.WithAsyncProcessing(true),
		)
		logger.Info("Document processing will use the async task queue")
	}

	documentService := services.NewDocumentService(
		fileStorage,
		splitter,
		embeddingClient,
		vectorDB,
		documentOptions...,
	)

	cacheTTL := time.Duration(cfg.Cache.TTL) * time.Second
	qaService := services.NewQAService(
		embeddingClient,
		vectorDB,
		ragService,
		cacheService,
		services.WithSearchLimit(cfg.Search.Limit),
		services.WithMinScore(cfg.Search.MinScore),
		services.WithCacheTTL(cacheTTL),
		services.WithQALogger(logger),
	)

	analysisService := services.NewAnalysisService(
		embeddingClient,
		vectorDB,
		ragService,
		repo,
		cacheService,
		services.WithAnalysisMinScore(cfg.Search.MinScore),
		services.WithAnalysisCacheTTL(cacheTTL),
		services.WithAnalysisLogger(logger),
	)

	if worker != nil {
		taskHandler := services.NewDocumentTaskHandler(documentService, logger)
		for _, taskType := range taskHandler.GetTaskTypes() {
			worker.RegisterHandler(taskType, taskHandler)
		}
		if err := worker.Start(); err != nil {
			logger.Fatalf("Failed to start task queue worker: %v", err)
		}
		defer worker.Stop()
	}

	docHandler := handler.NewDocumentHandler(documentService, qaService)
	qaHandler := handler.NewQAHandler(qaService)
	analysisHandler := handler.NewAnalysisHandler(analysisService)

	router := api.SetupRouter(docHandler, qaHandler, analysisHandler)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		logger.Infof("Server is listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

func setupLogger(cfg *config.Config) *logrus.Logger {
	middleware.ConfigureLogger(
		cfg.Log.Level,
		cfg.Log.File,
		cfg.Log.MaxSizeMB,
		cfg.Log.MaxBackups,
		cfg.Log.MaxAgeDays,
	)
	return middleware.GetLogger()
}

func setupDatabase(cfg *config.Config, logger *logrus.Logger) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.DSN), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	return database.Setup(&database.Config{
		Type: cfg.Database.Type,
		DSN:  cfg.Database.DSN,
	}, logger)
}

func setupStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.Storage.Type {
	case "minio":
		return storage.NewMinioStorage(storage.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
		})
	case "local", "":
		if err := os.MkdirAll(cfg.Storage.Path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
		return storage.NewLocalStorage(storage.LocalConfig{Path: cfg.Storage.Path})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

func setupVectorDB(cfg *config.Config, embeddingModel string) (vectordb.Repository, error) {
	if cfg.VectorDB.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.VectorDB.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create vector database directory: %w", err)
		}
	}

	return vectordb.NewRepository(vectordb.Config{
		Type:              cfg.VectorDB.Type,
		Path:              cfg.VectorDB.Path,
		Dimension:         cfg.VectorDB.Dim,
		DistanceType:      vectordb.DistanceType(cfg.VectorDB.Distance),
		EmbeddingModel:    embeddingModel,
		CreateIfNotExists: true,
	})
}

func setupEmbedding(cfg *config.Config) (embedding.Client, error) {
	opts := []embedding.Option{
		embedding.WithModel(cfg.Embed.Model),
		embedding.WithDimensions(cfg.Embed.Dimensions),
		embedding.WithBatchSize(cfg.Embed.BatchSize),
	}
	if cfg.Embed.APIKey != "" {
		opts = append(opts, embedding.WithAPIKey(cfg.Embed.APIKey))
	}
	if cfg.Embed.Endpoint != "" {
		opts = append(opts, embedding.WithBaseURL(cfg.Embed.Endpoint))
	}

	return embedding.NewClient(cfg.Embed.Provider, opts...)
}

func setupLLM(cfg *config.Config) (llm.Client, error) {
	opts := []llm.Option{
		llm.WithModel(cfg.LLM.Model),
		llm.WithMaxTokens(cfg.LLM.MaxTokens),
		llm.WithTemperature(cfg.LLM.Temperature),
	}
	if cfg.LLM.APIKey != "" {
		opts = append(opts, llm.WithAPIKey(cfg.LLM.APIKey))
	}
	if cfg.LLM.Endpoint != "" {
		opts = append(opts, llm.WithBaseURL(cfg.LLM.Endpoint))
	}

	return llm.NewClient(cfg.LLM.Provider, opts...)
}

func setupCache(cfg *config.Config) (cache.Cache, error) {
	if !cfg.Cache.Enable {
		return cache.NewMemoryCache(cache.DefaultConfig())
	}

	return cache.NewCache(cache.Config{
		Type:            cfg.Cache.Type,
		RedisAddr:       cfg.Cache.Address,
		RedisPassword:   cfg.Cache.Password,
		RedisDB:         cfg.Cache.DB,
		DefaultTTL:      time.Duration(cfg.Cache.TTL) * time.Second,
		CleanupInterval: 10 * time.Minute,
	})
}

func setupTaskQueue(cfg *config.Config, logger *logrus.Logger) (taskqueue.Queue, taskqueue.Worker, error) {
	queueConfig := taskqueue.DefaultConfig()
	queueConfig.RedisAddr = cfg.Queue.RedisAddr
	queueConfig.RedisPassword = cfg.Queue.RedisPassword
	queueConfig.RedisDB = cfg.Queue.RedisDB
	if cfg.Queue.Concurrency > 0 {
		queueConfig.Concurrency = cfg.Queue.Concurrency
	}
	if cfg.Queue.RetryLimit > 0 {
		queueConfig.RetryLimit = cfg.Queue.RetryLimit
	}
	if cfg.Queue.RetryDelay > 0 {
		queueConfig.RetryDelay = time.Duration(cfg.Queue.RetryDelay) * time.Second
	}

	logger.WithFields(logrus.Fields{
		"redis_addr":  queueConfig.RedisAddr,
		"concurrency": queueConfig.Concurrency,
		"retry_limit": queueConfig.RetryLimit,
	}).Info("Setting up task queue")

	queue, err := taskqueue.NewRedisQueue(queueConfig, logger)
	if err != nil {
		return nil, nil, err
	}

	return queue, taskqueue.NewRedisWorker(queue, queueConfig), nil
}
