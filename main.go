package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gym-checkin/internal/auth"
	"gym-checkin/internal/checkin"
	"gym-checkin/internal/checkin/checkin_api"
	"gym-checkin/internal/checkin/db"
	"gym-checkin/internal/checkin/qr"
	checkinredis "gym-checkin/internal/checkin/redis"
	"gym-checkin/internal/config"
	"gym-checkin/internal/database"
	"gym-checkin/internal/kafka"
	"gym-checkin/internal/logger"
	"gym-checkin/internal/middleware"
	"gym-checkin/internal/notifier"
	"gym-checkin/internal/sse"
	"gym-checkin/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
)

func verifyConnections(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bun.DB, *redis.Client) {
	bunDB, err := database.OpenPostgres(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}

	redisClient, err := database.OpenRedis(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("REDIS", err.Error())
	}
	return bunDB, redisClient
}

func healthHandler(bunDB *bun.DB, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"database": "ok", "redis": "ok"}
		code := http.StatusOK
		if err := bunDB.PingContext(r.Context()); err != nil {
			status["database"] = err.Error()
			code = http.StatusServiceUnavailable
		}
		if err := redisClient.Ping(r.Context()).Err(); err != nil {
			status["redis"] = err.Error()
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(utils.SuccessResponse("Check-in service health", status))
	}
}

func main() {
	log := logger.NewLogger("checkin-api")
	defer log.Close()

	log.Info("APP", "Starting Check-in Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("CONFIG", err.Error())
	}
	defaultLocation, _ := time.LoadLocation(cfg.CheckIn.DefaultTimezone)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("APP", "Verifying database connections")
	bunDB, redisClient := verifyConnections(ctx, cfg, log)
	defer bunDB.Close()
	defer redisClient.Close()

	if err := runMigrations(ctx, bunDB, cfg.Database, log); err != nil {
		log.Fatal("MIGRATE", fmt.Sprintf("Schema migration failed: %v", err))
	}

	// Status events fan out through Redis so a member connected to one
	// instance hears about a check-in validated on another.
	emitter := sse.NewStatusEventEmitter()
	var relay notifier.Relay
	bridge := sse.NewRedisBridge(redisClient, emitter, log)
	if err := bridge.Run(ctx); err != nil {
		log.Warn("SSE", fmt.Sprintf("Redis status bridge unavailable, delivering locally only: %v", err))
	} else {
		relay = bridge
	}
	statusNotifier := notifier.NewNotifier(emitter, relay, cfg.CheckIn.SubscribeTimeout, log)

	var events checkin.EventPublisher
	if cfg.Kafka.Enabled {
		log.Info("KAFKA", fmt.Sprintf("Using Kafka brokers: %v", cfg.Kafka.Brokers))
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, log)
		defer producer.Close()

		requiredTopics := []string{
			cfg.Kafka.Topics.CodeGenerated,
			cfg.Kafka.Topics.CheckInRegistered,
			cfg.Kafka.Topics.CheckInSettled,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		events = producer
	} else {
		log.Warn("KAFKA", "Kafka disabled, domain events will not be published")
	}

	reserver := checkinredis.NewRedis(redisClient, log)
	tokens := auth.NewAccessTokens(cfg.Auth.AccessTokenSecret)

	checkInService := checkin.NewCheckInService(&db.DB{Bun: bunDB}, reserver, statusNotifier, events, log, cfg.CheckIn.CodeTTL)
	checkInService.Tokens = tokens
	checkInService.DefaultLocation = defaultLocation
	checkInService.MaxCodeAttempts = cfg.CheckIn.MaxCodeAttempts

	log.Info("REDIS", "Starting code expiry listener")
	go reserver.ListenForExpiry(ctx, checkInService)

	verifier, err := auth.NewOIDCVerifier(ctx, cfg.Auth.OIDCIssuer)
	if err != nil {
		log.Fatal("AUTH", fmt.Sprintf("Failed to initialise OIDC verifier: %v", err))
	}

	handler := checkin_api.NewHandler(
		checkInService,
		statusNotifier,
		tokens,
		qr.NewQRGenerator(cfg.CheckIn.QRImageSize),
		middleware.NewUserRateLimiter(cfg.CheckIn.GenerateRatePerMin, cfg.CheckIn.GenerateBurst, log),
		log,
	)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()
	r.Use(middleware.Recovery(log))
	r.Use(middleware.EnhancedLogger(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	// --- Public Routes ---
	r.Get("/health", healthHandler(bunDB, redisClient))

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(verifier))
		log.Info("AUTH", "OIDC middleware applied to protected API routes")

		r.Route("/api", handler.RegisterRoutes)
		log.Info("ROUTER", "Check-in routes registered under /api/checkin")
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Check-in Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Check-in Service shutdown complete")
	}
}
