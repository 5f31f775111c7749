package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/krishi-mitra/backend/internal/ai"
	"github.com/krishi-mitra/backend/internal/api/handlers"
	"github.com/krishi-mitra/backend/internal/auth"
	"github.com/krishi-mitra/backend/internal/cache/redis"
	"github.com/krishi-mitra/backend/internal/diagnosis"
	"github.com/krishi-mitra/backend/internal/metrics"
	"github.com/krishi-mitra/backend/internal/middleware/ratelimit"
	"github.com/krishi-mitra/backend/internal/middleware/security"
	"github.com/krishi-mitra/backend/internal/middleware/validation"
	"github.com/krishi-mitra/backend/internal/prediction"
	"github.com/krishi-mitra/backend/internal/realtime"
	"github.com/krishi-mitra/backend/internal/storage"
	"github.com/krishi-mitra/backend/internal/storage/local"
	"github.com/krishi-mitra/backend/internal/storage/sqlite"
	"github.com/krishi-mitra/backend/pkg/config"
	appLogger "github.com/krishi-mitra/backend/pkg/logger"
)

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

	appLogger.Info("Starting Krishi Mitra API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	guestStore, err := local.NewStore(cfg.Guest.DataDir)
	if err != nil {
		appLogger.Fatal("Failed to create guest store", zap.Error(err))
	}

	stores := storage.NewSelector(sqliteClient, guestStore)

	var cache diagnosis.Cache
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.TTLSec)*time.Second,
		)
		if err != nil {
			appLogger.Warn("Redis unavailable, diagnosis cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			cache = redisClient
		}
	}

	aiClient := ai.NewClient(ai.Config{
		APIKey:      cfg.AI.APIKey,
		BaseURL:     cfg.AI.BaseURL,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		MaxTokens:   cfg.AI.MaxTokens,
		Timeout:     time.Duration(cfg.AI.TimeoutSec) * time.Second,
	})

	hub := realtime.NewHub()
	diagnosisService := diagnosis.NewService(aiClient, cache, hub, diagnosis.MalformedMode(cfg.AI.MalformedResponse))

	var predictor prediction.Predictor
	switch cfg.Prediction.Mode {
	case "process":
		predictor = prediction.NewProcessPredictor(
			cfg.Prediction.Interpreter,
			cfg.Prediction.ScriptPath,
			time.Duration(cfg.Prediction.TimeoutSec)*time.Second,
		)
	default:
		predictor = prediction.NewHTTPPredictor(
			cfg.Prediction.ServiceURL,
			time.Duration(cfg.Prediction.TimeoutSec)*time.Second,
		)
	}
	estimator := prediction.NewEstimator(aiClient)

	var verifier *auth.Verifier
	if cfg.Auth.Enabled {
		verifier = auth.NewVerifier(cfg.Auth.URL, cfg.Auth.AnonKey)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	limiter := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
		Logger:               appLogger.GetLogger(),
	})
	defer limiter.Stop()

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.Server.AllowedOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Session-ID",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}))
	app.Use(limiter.Middleware())
	app.Use(validation.Middleware(validation.Config{
		Logger: appLogger.GetLogger(),
	}))
	app.Use(auth.Middleware(verifier))

	diagnosisHandler := handlers.NewDiagnosisHandler(diagnosisService, stores)
	userHandler := handlers.NewUserHandler(stores)
	predictionHandler := handlers.NewPredictionHandler(predictor, estimator)
	eventsHandler := handlers.NewEventsHandler(hub)

	api := app.Group("/api")

	api.Post("/diagnose", diagnosisHandler.HandleDiagnose)
	api.Post("/diagnose/batch", diagnosisHandler.HandleDiagnoseBatch)

	user := api.Group("/user", auth.RequireSession())
	user.Get("/diagnoses", userHandler.GetDiagnoses)
	user.Delete("/diagnoses", userHandler.ClearDiagnoses)
	user.Get("/profile", userHandler.GetProfile)
	user.Put("/profile", userHandler.UpdateProfile)
	user.Get("/preferences", userHandler.GetPreferences)
	user.Put("/preferences", userHandler.UpdatePreferences)

	predict := api.Group("/predict", auth.RequireSession())
	predict.Post("/yield", predictionHandler.HandlePredictYield)
	predict.Post("/estimate-inputs", predictionHandler.HandleEstimateInputs)

	api.Use("/events", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("identity", auth.FromContext(c).UserID)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	api.Get("/events", websocket.New(eventsHandler.HandleConnection))

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
