package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/finsight/backend/internal/agents"
	"github.com/finsight/backend/internal/api/handlers"
	"github.com/finsight/backend/internal/assess"
	redisCache "github.com/finsight/backend/internal/cache/redis"
	"github.com/finsight/backend/internal/cache/semantic"
	"github.com/finsight/backend/internal/edgar"
	"github.com/finsight/backend/internal/evaluation"
	"github.com/finsight/backend/internal/ingestion"
	"github.com/finsight/backend/internal/llm"
	"github.com/finsight/backend/internal/memory"
	"github.com/finsight/backend/internal/metrics"
	"github.com/finsight/backend/internal/middleware/ratelimit"
	"github.com/finsight/backend/internal/middleware/security"
	"github.com/finsight/backend/internal/middleware/validation"
	"github.com/finsight/backend/internal/retrieval/milvus"
	"github.com/finsight/backend/internal/router"
	"github.com/finsight/backend/internal/session"
	"github.com/finsight/backend/internal/storage/sqlite"
	"github.com/finsight/backend/pkg/config"
	appLogger "github.com/finsight/backend/pkg/logger"
)

// freshRouterAnswerer gives each evaluation query its own router so
// dataset runs never share memory or cache state with live sessions.
type freshRouterAnswerer struct {
	factory session.Factory
}

func (a freshRouterAnswerer) Answer(ctx context.Context, query string) (string, error) {
	resp := a.factory().Route(ctx, query)
	if resp.Failed {
		return "", errors.New(resp.Answer)
	}
	return resp.Answer, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting FinSight API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	milvusClient, err := milvus.NewClient(
		cfg.Milvus.Endpoint,
		cfg.Milvus.APIKey,
		cfg.Milvus.CollectionName,
		cfg.Milvus.VectorDim,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	err = milvusClient.CreateCollection(context.Background())
	if err != nil {
		appLogger.Fatal("Failed to create collection", zap.Error(err))
	}

	var sharedCache *redisCache.Client
	if cfg.Redis.Enabled {
		sharedCache, err = redisCache.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLHours)*time.Hour,
		)
		if err != nil {
			appLogger.Warn("Shared answer cache unavailable, continuing without it", zap.Error(err))
			sharedCache = nil
		} else {
			defer sharedCache.Close()
		}
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
	)

	factAgent := agents.NewPreciseFactAgent(llmClient, milvusClient, llmClient, cfg.Milvus.TopK)
	summaryAgent := agents.NewExecutiveSummaryAgent(sqliteClient, llmClient, 7)

	routerFactory := func() *router.Router {
		return router.New(
			semantic.New(llmClient, cfg.Cache.Capacity, cfg.Cache.SimilarityThreshold),
			memory.New(cfg.Memory.WindowSize),
			assess.New(),
			factAgent,
			summaryAgent,
		)
	}

	sessions := session.NewManager(routerFactory, time.Duration(cfg.Session.IdleTTLMinutes)*time.Minute)
	defer sessions.Stop()

	processor := ingestion.NewProcessor(sqliteClient, milvusClient, llmClient)
	edgarClient := edgar.NewClient(
		cfg.EDGAR.BaseURL,
		cfg.EDGAR.UserAgent,
		time.Duration(cfg.EDGAR.TimeoutSec)*time.Second,
	)
	evaluator := evaluation.NewEvaluator(sqliteClient, llmClient, freshRouterAnswerer{factory: routerFactory})

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{Logger: appLogger.GetLogger()})
	defer limiter.Stop()
	app.Use(limiter.Middleware())
	app.Use(validation.Middleware(validation.Config{Logger: appLogger.GetLogger()}))

	queryHandler := handlers.NewQueryHandler(sessions, sqliteClient, sharedCache)
	filingHandler := handlers.NewFilingHandler(processor, edgarClient, sqliteClient)
	evaluationHandler := handlers.NewEvaluationHandler(evaluator)
	wsHandler := handlers.NewWebSocketHandler(sessions)

	api := app.Group("/api/v1")

	api.Post("/query", queryHandler.HandleQuery)
	api.Get("/query/history", queryHandler.GetQueryHistory)
	api.Post("/feedback", queryHandler.HandleFeedback)

	api.Get("/cache/stats", queryHandler.GetCacheStats)
	api.Post("/cache/clear", queryHandler.ClearCache)

	api.Get("/memory", queryHandler.GetMemoryContext)
	api.Post("/memory/clear", queryHandler.ClearMemory)
	api.Delete("/sessions/:id", queryHandler.DeleteSession)

	api.Post("/filings", filingHandler.UploadFiling)
	api.Post("/filings/import", filingHandler.ImportFilings)
	api.Get("/filings", filingHandler.ListFilings)

	api.Post("/evaluate", evaluationHandler.RunEvaluation)

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
