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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"eventsms/internal/config"
	"eventsms/internal/logger"
	"eventsms/internal/metrics"
	"eventsms/internal/models"
	"eventsms/internal/queue"
	"eventsms/internal/repository"
	"eventsms/internal/scheduler"
	"eventsms/internal/service"
	"eventsms/internal/sms"
)

func main() {
	// Load .env file (ignore error in production)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Initialize("development")
		logger.Log.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Initialize(cfg.Env)
	log := logger.Log.Named("worker")
	defer log.Sync()

	metrics.InitWorkerMetrics()

	db, err := sql.Open("postgres", cfg.GetDatabaseDSN())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database", zap.Error(err))
	}
	log.Info("✅ Connected to database")

	conn, err := queue.NewConnection(cfg.GetRabbitMQURL())
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
	}
	defer conn.Close()
	log.Info("✅ Connected to RabbitMQ")

	publisher, err := queue.NewPublisher(conn, queue.CallbackQueue)
	if err != nil {
		log.Fatal("Failed to create publisher", zap.Error(err))
	}

	var transport service.Transport
	if cfg.UseTwilio() {
		transport = sms.NewTwilioTransport(
			cfg.Twilio.AccountSID,
			cfg.Twilio.AuthToken,
			cfg.Twilio.FromNumber,
			cfg.Twilio.StatusCallbackURL,
		)
		log.Info("📡 Using Twilio transport", zap.String("from", cfg.Twilio.FromNumber))
	} else {
		// simulated reports go through the same queue as real ones
		transport = service.NewSenderService(cfg.Twilio.SimSuccessRate, log.Named("sim")).
			WithCallbacks(publisher, cfg.Twilio.SimDeliveryRate)
		log.Info("🧪 Using simulated transport",
			zap.Float64("success_rate", cfg.Twilio.SimSuccessRate),
			zap.Float64("delivery_rate", cfg.Twilio.SimDeliveryRate),
		)
	}

	delivery := service.NewDeliveryService(
		repository.NewMessageRepository(db),
		repository.NewDeliveryRepository(db),
		service.NewAudienceResolver(repository.NewAttendeeRepository(db)),
		transport,
		cfg.Worker.BatchSize,
		cfg.Worker.StaleAfter,
		log.Named("delivery"),
	)

	consumer, err := queue.NewConsumer(conn, queue.CallbackQueue, callbackHandler(delivery, log), log.Named("callbacks"))
	if err != nil {
		log.Fatal("Failed to create consumer", zap.Error(err))
	}
	if err := consumer.Start(); err != nil {
		log.Fatal("Failed to start consumer", zap.Error(err))
	}

	sched, err := scheduler.New(cfg.Worker.PollInterval, scheduler.DeliveryTick(delivery, log), log.Named("scheduler"))
	if err != nil {
		log.Fatal("Failed to create scheduler", zap.Error(err))
	}
	sched.Start()

	metricsSrv := &http.Server{
		Addr:              ":" + cfg.Worker.MetricsPort,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Metrics server failed", zap.Error(err))
		}
	}()

	log.Info("✅ Worker started",
		zap.Duration("poll_interval", cfg.Worker.PollInterval),
		zap.String("callback_queue", queue.CallbackQueue),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("🛑 Shutting down gracefully...")

	// an in-flight pass finishes its sends before Stop returns
	sched.Stop()
	if err := consumer.Stop(); err != nil {
		log.Error("Error stopping consumer", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	metricsSrv.Shutdown(ctx)

	log.Info("✅ Worker stopped")
}

// callbackHandler applies one delivery report. An unknown provider id is
// returned as an error so the consumer retries it: the report may have
// raced ahead of the send pass recording its deliveries.
func callbackHandler(delivery *service.DeliveryService, log *zap.Logger) queue.CallbackHandler {
	return func(ctx context.Context, cb *models.DeliveryCallback) error {
		changed, err := delivery.ApplyCallback(ctx, cb)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				log.Debug("Delivery callback for unknown message", zap.String("provider_message_id", cb.ProviderMessageID))
				return err
			}
			log.Error("Failed to apply delivery callback",
				zap.String("provider_message_id", cb.ProviderMessageID),
				zap.Error(err),
			)
			return err
		}

		if changed {
			log.Debug("Delivery callback applied",
				zap.String("provider_message_id", cb.ProviderMessageID),
				zap.String("status", cb.Status),
			)
		}
		return nil
	}
}
