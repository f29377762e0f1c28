// Coach server — runs the HTTP API, the fast coaching path and the
// background deep-analysis path with WebSocket push.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/ultra-dojo/coach/pkg/api"
	"github.com/ultra-dojo/coach/pkg/database"
	"github.com/ultra-dojo/coach/pkg/embedder"
	"github.com/ultra-dojo/coach/pkg/intel"
	"github.com/ultra-dojo/coach/pkg/knowledge"
	"github.com/ultra-dojo/coach/pkg/llm"
	"github.com/ultra-dojo/coach/pkg/orchestrator"
	"github.com/ultra-dojo/coach/pkg/push"
	"github.com/ultra-dojo/coach/pkg/retrieval"
	"github.com/ultra-dojo/coach/pkg/services"
	"github.com/ultra-dojo/coach/pkg/vector"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func main() {
	if err := godotenv.Load(); err == nil {
		slog.Info("Loaded environment from .env")
	}

	level := slog.LevelInfo
	if getEnv("LOG_LEVEL", "") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	}))
	slog.SetDefault(logger)

	httpPort := getEnv("HTTP_PORT", "8000")
	logger.Info("Starting coach server", "http_port", httpPort)

	ctx := context.Background()

	// Database
	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		logger.Error("Failed to load database config", "error", err)
		os.Exit(1)
	}
	dbClient, err := database.NewClient(ctx, dbConfig, logger)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logger.Error("Error closing database client", "error", err)
		}
	}()

	// Embedder + vector store
	embed := embedder.NewOllama(embedder.Config{
		BaseURL:   getEnv("EMBED_BASE_URL", "http://localhost:11434"),
		APIKey:    os.Getenv("EMBED_API_KEY"),
		Model:     getEnv("EMBED_MODEL", "nomic-embed-text"),
		Dimension: getEnvInt("EMBED_DIMENSION", 768),
	}, logger)

	vectorStore, err := vector.NewStore(ctx, vector.Config{
		Host:       getEnv("QDRANT_HOST", "localhost"),
		Port:       getEnvInt("QDRANT_PORT", 6334),
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		Collection: getEnv("QDRANT_COLLECTION", "sales_knowledge"),
		VectorSize: uint64(embed.Dimension()),
	})
	if err != nil {
		logger.Error("Failed to connect to Qdrant", "error", err)
		os.Exit(1)
	}
	defer vectorStore.Close()

	// Services
	db := dbClient.DB()
	sessionService := services.NewSessionService(db, logger)
	analysisService := services.NewAnalysisService(db, logger)
	feedbackService := services.NewFeedbackService(db, logger)
	analyticsService := services.NewAnalyticsService(db, logger)
	knowledgeService := knowledge.NewService(embed, vectorStore, logger)
	retriever := retrieval.New(embed, vectorStore, logger)
	logger.Info("Services initialized")

	// Model tiers
	fastModel := llm.NewGemini(llm.GeminiConfig{
		APIKey:      os.Getenv("GEMINI_API_KEY"),
		Model:       getEnv("FAST_MODEL", "gemini-2.0-flash"),
		Temperature: 0.7,
	})
	deepModel := llm.NewOllama(llm.OllamaConfig{
		BaseURL:     getEnv("DEEP_MODEL_URL", "http://localhost:11434"),
		APIKey:      os.Getenv("DEEP_MODEL_KEY"),
		Model:       getEnv("DEEP_MODEL", "qwen2.5:32b"),
		Temperature: 0.4,
	})
	gateway := llm.NewGateway(fastModel, deepModel, logger)
	logger.Info("Model gateway initialized",
		"fast_model", fastModel.Name(), "deep_model", deepModel.Name())

	// Push registry + orchestrator
	registry := push.NewRegistry(sessionService, 10*time.Second, logger)
	strategic := func() string {
		return intel.StrategicContext(intel.DefaultMarketData, intel.ContextOptions{
			IncludeFuelPrices: true,
			IncludeSubsidies:  true,
		})
	}
	orch := orchestrator.New(
		sessionService, analysisService, feedbackService,
		retriever, gateway, registry, strategic,
		orchestrator.DefaultConfig(), logger)

	// HTTP server
	server := api.NewServer(api.Config{
		Addr:     ":" + httpPort,
		AdminKey: os.Getenv("ADMIN_API_KEY"),
	}, orch, sessionService, analysisService, feedbackService,
		knowledgeService, analyticsService, registry, dbClient, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	logger.Info("Coach server started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		logger.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		logger.Error("Server error triggered shutdown", "error", err)
	}

	// Stop accepting requests first, then drain in-flight analyses.
	httpCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := server.Shutdown(httpCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	drainCtx, drainCancel := context.WithTimeout(ctx, 30*time.Second)
	defer drainCancel()
	if err := orch.Shutdown(drainCtx); err != nil {
		logger.Warn("Slow path drain timeout exceeded, abandoning analyses")
	}

	logger.Info("Shutdown complete")
}
