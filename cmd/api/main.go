package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"

	"github.com/pandochealth/triage/cmd/mainconfig"
	"github.com/pandochealth/triage/internal/api/router"
	appconfig "github.com/pandochealth/triage/internal/config"
	"github.com/pandochealth/triage/internal/directory"
	"github.com/pandochealth/triage/internal/observability/metrics"
	"github.com/pandochealth/triage/internal/triage"
	"github.com/pandochealth/triage/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting triage API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	// Postgres clinician directory.
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()
	store := directory.NewPostgresStore(db)

	// Redis backs sessions and the grounding index.
	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	sessions := triage.NewFailoverSessionStore(
		triage.NewRedisSessionStore(redisClient, cfg.SessionTTL),
		triage.NewMemorySessionStore(cfg.SessionTTL),
		logger,
	)

	// Completion and embedding providers. The HTTP client gets its own
	// deadline so a stalled provider cannot outlive the per-call contexts.
	openaiCfg := openai.DefaultConfig(cfg.OpenAIAPIKey)
	openaiCfg.HTTPClient = &http.Client{Timeout: cfg.LLMTimeout + 5*time.Second}
	openaiClient := openai.NewClientWithConfig(openaiCfg)
	embedder := triage.NewOpenAIEmbeddingClient(openaiClient, cfg.EmbedModel, cfg.EmbedDimensions)

	var llm triage.LLMClient = triage.NewOpenAILLMClient(openaiClient)
	chatModel := cfg.ChatModel
	if cfg.LLMProvider == "bedrock" {
		awsCfg, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		bedrock := triage.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
		llm = triage.NewFallbackLLMClient(bedrock, llm, logger)
		chatModel = cfg.BedrockModelID
	}
	classifier := triage.NewLLMClassifier(llm, chatModel, logger)

	retriever := triage.NewRetriever(redisClient, embedder, cfg.RAGIndexName, cfg.RAGKeyPrefix, cfg.EmbedDimensions, logger)
	if err := retriever.EnsureIndex(context.Background()); err != nil {
		logger.Warn("failed to ensure vector index, grounding degraded", "error", err)
	}

	triageMetrics := metrics.NewTriageMetrics(nil)
	engine := triage.NewEngine(
		sessions,
		directory.NewEngine(store),
		store,
		retriever,
		classifier,
		triageMetrics,
		logger,
		triage.EngineConfig{
			PageSize:     cfg.PageSize,
			HistoryLimit: cfg.HistoryLimit,
			TopK:         cfg.RAGTopK,
			LLMTimeout:   cfg.LLMTimeout,
			RAGTimeout:   cfg.RAGTimeout,
		},
	)

	r := router.New(&router.Config{
		Logger:             logger,
		TriageHandler:      triage.NewHandler(engine, logger),
		IngestHandler:      triage.NewIngestHandler(retriever, logger),
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		AdminAuthSecret:    cfg.AdminAuthSecret,
		ChatRatePerSecond:  cfg.ChatRatePerSecond,
		ChatRateBurst:      cfg.ChatRateBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
