package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	RabbitMQ RabbitMQConfig
	Redis    RedisConfig
	Twilio   TwilioConfig
	Worker   WorkerConfig
	SMS      SMSConfig
	Env      string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// RabbitMQConfig holds RabbitMQ configuration
type RabbitMQConfig struct {
	Host     string
	Port     string
	User     string
	Password string
}

// RedisConfig holds the per-event lock backend. Addr empty means
// commands are serialized in-process only.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// TwilioConfig holds transport credentials. An empty AccountSID selects
// the simulated transport.
type TwilioConfig struct {
	AccountSID        string
	AuthToken         string
	FromNumber        string
	StatusCallbackURL string
	SimSuccessRate    float64
	SimDeliveryRate   float64
}

// WorkerConfig tunes the delivery worker loop
type WorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	StaleAfter   time.Duration
	MetricsPort  string
}

// SMSConfig holds inbound SMS authorization and throttling
type SMSConfig struct {
	AdminPhones       []string
	AllowlistFile     string
	RatePerMinute     int
	DefaultRegion     string
	SignatureRequired bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnv("POSTGRES_PORT", "5432"),
			User:     getEnv("POSTGRES_USER", "eventsms"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			DBName:   getEnv("POSTGRES_DB", "eventsms_db"),
		},
		RabbitMQ: RabbitMQConfig{
			Host:     getEnv("RABBITMQ_HOST", "localhost"),
			Port:     getEnv("RABBITMQ_PORT", "5672"),
			User:     getEnv("RABBITMQ_DEFAULT_USER", "guest"),
			Password: getEnv("RABBITMQ_DEFAULT_PASS", "guest"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			LockTTL:  time.Duration(getEnvAsInt("LOCK_TTL_SECONDS", 30)) * time.Second,
		},
		Twilio: TwilioConfig{
			AccountSID:        getEnv("TWILIO_ACCOUNT_SID", ""),
			AuthToken:         getEnv("TWILIO_AUTH_TOKEN", ""),
			FromNumber:        getEnv("TWILIO_FROM_NUMBER", ""),
			StatusCallbackURL: getEnv("TWILIO_STATUS_CALLBACK_URL", ""),
			SimSuccessRate:    getEnvAsFloat("SIM_SUCCESS_RATE", 0.95),
			SimDeliveryRate:   getEnvAsFloat("SIM_DELIVERY_RATE", 0.9),
		},
		Worker: WorkerConfig{
			PollInterval: time.Duration(getEnvAsInt("WORKER_POLL_INTERVAL_SECONDS", 5)) * time.Second,
			BatchSize:    getEnvAsInt("WORKER_BATCH_SIZE", 100),
			StaleAfter:   time.Duration(getEnvAsInt("WORKER_STALE_AFTER_MINUTES", 15)) * time.Minute,
			MetricsPort:  getEnv("WORKER_METRICS_PORT", "9091"),
		},
		SMS: SMSConfig{
			AdminPhones:       splitList(getEnv("ADMIN_PHONES", "")),
			AllowlistFile:     getEnv("ADMIN_ALLOWLIST_FILE", ""),
			RatePerMinute:     getEnvAsInt("SMS_RATE_PER_MINUTE", 10),
			DefaultRegion:     getEnv("SMS_DEFAULT_REGION", "US"),
			SignatureRequired: getEnvAsBool("TWILIO_VALIDATE_SIGNATURE", false),
		},
		Env: getEnv("ENV", "development"),
	}

	// Validate required fields
	if config.Database.Password == "" {
		return nil, fmt.Errorf("POSTGRES_PASSWORD is required")
	}
	if config.Twilio.AccountSID != "" && (config.Twilio.AuthToken == "" || config.Twilio.FromNumber == "") {
		return nil, fmt.Errorf("TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER are required when TWILIO_ACCOUNT_SID is set")
	}
	if config.Worker.PollInterval <= 0 {
		return nil, fmt.Errorf("WORKER_POLL_INTERVAL_SECONDS must be positive")
	}
	if config.Twilio.SimSuccessRate < 0 || config.Twilio.SimSuccessRate > 1 {
		return nil, fmt.Errorf("SIM_SUCCESS_RATE must be between 0 and 1")
	}
	if config.Twilio.SimDeliveryRate < 0 || config.Twilio.SimDeliveryRate > 1 {
		return nil, fmt.Errorf("SIM_DELIVERY_RATE must be between 0 and 1")
	}

	return config, nil
}

// GetDatabaseDSN returns PostgreSQL connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
	)
}

// GetRabbitMQURL returns RabbitMQ connection URL
func (c *Config) GetRabbitMQURL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		c.RabbitMQ.User,
		c.RabbitMQ.Password,
		c.RabbitMQ.Host,
		c.RabbitMQ.Port,
	)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// UseTwilio reports whether real transport credentials are configured
func (c *Config) UseTwilio() bool {
	return c.Twilio.AccountSID != ""
}

// getEnv gets environment variable or returns default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets environment variable as integer or returns default
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
