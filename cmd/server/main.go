package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"core/internal/config"
	"core/internal/handler"
	"core/internal/repository"
	"core/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	var logger *zap.Logger
	if cfg.Server.GinMode == gin.DebugMode {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting conversational core",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit))

	gin.SetMode(cfg.Server.GinMode)

	db, err := repository.Connect(
		cfg.GetPostgreSQLDSN(),
		cfg.PostgreSQL.MaxConnections,
		cfg.PostgreSQL.MaxIdleConnections,
	)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("connected to PostgreSQL")

	// AI provider. Gateways degrade to their fallbacks when disabled.
	openaiClient := service.NewOpenAIClient(&cfg.AI)
	if cfg.AI.Enabled() {
		logger.Info("AI provider enabled",
			zap.String("api_base", cfg.AI.APIBase),
			zap.String("chat_model", cfg.AI.ChatModel),
			zap.String("embedding_model", cfg.AI.EmbeddingModel))
	} else {
		logger.Warn("AI provider disabled, chat and semantic search degrade to fallbacks",
			zap.Bool("feature_flag", cfg.AI.FeatureFlag))
	}

	propertyRepo := repository.NewPropertyRepository(db)
	sessionRepo := repository.NewSessionRepository(db)

	embedGateway := service.NewEmbeddingGateway(openaiClient, &cfg.AI, logger)
	llmGateway := service.NewLLMGateway(openaiClient, &cfg.AI, logger)
	vectorizer := service.NewVectorizer(embedGateway, propertyRepo, &cfg.AI, logger)

	searchEngine := service.NewSearchEngine(propertyRepo, embedGateway, &cfg.Search, cfg.Estimation.PriceBand, logger)
	estimator := service.NewEstimator(searchEngine, propertyRepo, llmGateway, &cfg.Estimation, logger)
	conversations := service.NewConversationManager(sessionRepo, &cfg.Chat, logger)
	intentAnalyzer := service.NewIntentAnalyzer(llmGateway, logger)
	orchestrator := service.NewChatOrchestrator(conversations, intentAnalyzer, searchEngine, llmGateway, &cfg.Chat, logger)

	chatHandler := handler.NewChatHandler(orchestrator)
	searchHandler := handler.NewSearchHandler(searchEngine)
	estimateHandler := handler.NewEstimateHandler(estimator)
	embeddingHandler := handler.NewEmbeddingHandler(propertyRepo, vectorizer, cfg.AI.EmbeddingDimensions, cfg.AI.EmbeddingModel)

	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Server.AllowedOrigins}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":     "healthy",
			"service":    "realestate-conversational-core",
			"ai_enabled": cfg.AI.Enabled(),
			"version":    Version,
		})
	})

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/chat", chatHandler.Chat)
		apiV1.POST("/chat/:id/close", chatHandler.CloseConversation)

		apiV1.POST("/search", searchHandler.Search)
		apiV1.GET("/properties/:id/similar", searchHandler.Similar)

		apiV1.POST("/estimate", estimateHandler.Estimate)

		apiV1.POST("/embeddings/batch", embeddingHandler.BatchUpdate)
		apiV1.POST("/embeddings/generate", embeddingHandler.Generate)
	}

	// Background sweep moving long-idle sessions to archived.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(cfg.Chat.ArchiveSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				if _, err := conversations.ArchiveStale(sweepCtx); err != nil {
					logger.Error("archive sweep failed", zap.Error(err))
				}
			}
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: router}

	go func() {
		logger.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	logger.Info("server stopped")
}
