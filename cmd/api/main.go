package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"eventsms/internal/config"
	"eventsms/internal/handler"
	"eventsms/internal/lock"
	"eventsms/internal/logger"
	"eventsms/internal/metrics"
	"eventsms/internal/middleware"
	"eventsms/internal/queue"
	"eventsms/internal/repository"
	"eventsms/internal/service"
	"eventsms/internal/sms"
)

const version = "1.0.0"

func main() {
	// Load .env file (ignore error in production)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Initialize("development")
		logger.Log.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Initialize(cfg.Env)
	log := logger.Log
	defer log.Sync()

	metrics.InitAPIMetrics()

	db, err := sql.Open("postgres", cfg.GetDatabaseDSN())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database", zap.Error(err))
	}
	log.Info("✅ Connected to database")

	rdb, locker := newLocker(cfg, log)
	if rdb != nil {
		defer rdb.Close()
	}

	conn, err := queue.NewConnection(cfg.GetRabbitMQURL())
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer conn.Close()

	publisher, err := queue.NewPublisher(conn, queue.CallbackQueue)
	if err != nil {
		log.Fatal("Failed to create publisher", zap.Error(err))
	}

	events := repository.NewEventRepository(db)
	messages := repository.NewMessageRepository(db)
	commands := repository.NewCommandRepository(db)
	attendees := repository.NewAttendeeRepository(db)

	stats := service.NewStatsAggregator(messages)
	executor := service.NewCommandExecutor(
		events,
		commands,
		repository.NewTransactor(db),
		service.NewAudienceResolver(attendees),
		service.NewDelayRecalculator(),
		stats,
		locker,
		log.Named("commands"),
	)
	eventService := service.NewEventService(events, messages, commands, stats)

	admins, err := cfg.LoadAdmins()
	if err != nil {
		log.Fatal("Failed to load admin allow-list", zap.Error(err))
	}
	allowlist, err := sms.NewAllowlist(admins, cfg.SMS.DefaultRegion)
	if err != nil {
		log.Fatal("Invalid admin allow-list", zap.Error(err))
	}
	if allowlist.Len() == 0 {
		log.Warn("Admin allow-list is empty, inbound SMS commands will be rejected")
	}

	var validator *sms.SignatureValidator
	if cfg.SMS.SignatureRequired {
		if cfg.Twilio.AuthToken == "" {
			log.Fatal("TWILIO_VALIDATE_SIGNATURE requires TWILIO_AUTH_TOKEN")
		}
		validator = sms.NewSignatureValidator(cfg.Twilio.AuthToken)
	}

	router := handler.NewRouter(handler.Handlers{
		Commands: handler.NewCommandHandler(executor),
		SMS:      handler.NewSMSHandler(executor, allowlist, middleware.PerMinute(cfg.SMS.RatePerMinute), validator),
		Status:   handler.NewStatusHandler(publisher, validator),
		Events:   handler.NewEventHandler(eventService),
		Health:   handler.NewHealthHandler(service.NewHealthService(db, cfg.GetRabbitMQURL(), rdb, version)),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("🚀 API Server starting", zap.String("port", cfg.Server.Port), zap.String("env", cfg.Env))
		log.Info("📍 Health check", zap.String("url", "http://localhost:"+cfg.Server.Port+"/health"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("🛑 Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", zap.Error(err))
	}
	log.Info("✅ API stopped")
}

// newLocker serializes commands per event across replicas through Redis,
// or in-process when REDIS_ADDR is unset.
func newLocker(cfg *config.Config, log *zap.Logger) (*redis.Client, lock.Locker) {
	local := lock.NewLocalLocker()
	if cfg.Redis.Addr == "" {
		log.Info("Redis not configured, using in-process event locks")
		return nil, local
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unreachable at startup, locks fall back to in-process", zap.Error(err))
	} else {
		log.Info("✅ Connected to Redis", zap.String("addr", cfg.Redis.Addr))
	}

	redisLocker := lock.NewRedisLocker(rdb, cfg.Redis.LockTTL, log.Named("lock"))
	return rdb, lock.NewFallbackLocker(redisLocker, local, log.Named("lock"))
}
