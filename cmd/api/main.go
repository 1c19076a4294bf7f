package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"cvagent/internal/api"
	"cvagent/internal/api/middleware"
	"cvagent/internal/auth"
	"cvagent/internal/config"
	"cvagent/internal/database"
	"cvagent/internal/llm"
	"cvagent/internal/metrics"
	"cvagent/internal/pdf"
	"cvagent/internal/search"
	"cvagent/internal/storage"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	logger.Info("database connection ready",
		slog.String("host", cfg.Database.Host),
		slog.String("db", cfg.Database.Name),
	)

	if err := db.AutoMigrate(&database.User{}, &database.Document{}, &database.CVImage{}); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr()})
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.Redis.Addr()})
	defer asynqClient.Close()

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	logger.Info("storage client ready", slog.String("bucket", cfg.MinIO.Bucket))

	registry, err := llm.NewRegistry(cfg.OpenAI.APIKey, llm.Params{
		Model:       cfg.OpenAI.Model,
		Temperature: cfg.OpenAI.Temperature,
		MaxTokens:   cfg.OpenAI.MaxTokens,
	})
	if err != nil {
		log.Fatalf("init llm registry: %v", err)
	}

	searchClient := search.NewClient(cfg.Search, logger)

	privateKey, err := os.ReadFile(cfg.Auth.PrivateKeyPath)
	if err != nil {
		log.Fatalf("read private key: %v", err)
	}
	publicKey, err := os.ReadFile(cfg.Auth.PublicKeyPath)
	if err != nil {
		log.Fatalf("read public key: %v", err)
	}
	authService, err := auth.NewAuthService(privateKey, publicKey, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	if err != nil {
		log.Fatalf("init auth service: %v", err)
	}

	router := api.NewRouter(cfg)
	router.Use(
		middleware.CorrelationIDMiddleware(),
		middleware.SlogLoggerMiddleware(logger),
		metrics.GinMiddleware(),
	)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	docHandler := api.NewDocumentHandler(
		db,
		registry.Default(),
		searchClient,
		storageClient,
		pdf.NewRenderer(),
		asynqClient,
		redisClient,
		logger,
		cfg.Upload.MaxImageBytes,
		cfg.Upload.ClamdAddr,
	)
	api.RegisterRoutes(router, db, docHandler, authService, redisClient, logger, nil)

	address := fmt.Sprintf(":%d", cfg.API.Port)
	logger.Info("api listening", slog.String("address", address))
	if err := router.Run(address); err != nil {
		log.Fatalf("failed to start api server: %v", err)
	}
}
