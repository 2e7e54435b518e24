// Package config provides configuration management for the trade coach
// service. It loads configuration from environment variables with sensible
// defaults and validates the result so the service starts safely.
//
// Environment Variables:
//
// Application Settings:
//   - PORT: Server port (default: 8080)
//   - LOG_LEVEL: Logging level (default: info)
//
// Database Configuration:
//   - DATABASE_TYPE: Database type - "sqlite" or "postgres" (default: sqlite)
//   - DATABASE_PATH: SQLite database file path (default: ./trade_coach.db)
//   - POSTGRES_HOST: PostgreSQL host (required if using PostgreSQL)
//   - POSTGRES_PORT: PostgreSQL port (default: 5432)
//   - POSTGRES_DB: PostgreSQL database name (required if using PostgreSQL)
//   - POSTGRES_USER: PostgreSQL username (required if using PostgreSQL)
//   - POSTGRES_PASSWORD: PostgreSQL password
//   - POSTGRES_SSL_MODE: PostgreSQL SSL mode (default: disable)
//
// Queue Configuration:
//   - QUEUE_TYPE: Job queue backend - "sqs", "pubsub", "rabbitmq", "kafka"
//     or "local" (default: local)
//   - SQS_QUEUE_URL: SQS queue URL (required for sqs)
//   - AWS_REGION: AWS region (default: us-east-1)
//   - PUBSUB_PROJECT_ID: GCP project (required for pubsub)
//   - PUBSUB_TOPIC: Pub/Sub topic name (default: analysis-jobs)
//   - PUBSUB_SUBSCRIPTION: Pub/Sub subscription (default: analysis-jobs-worker)
//   - RABBITMQ_URL: AMQP connection URL (required for rabbitmq)
//   - RABBITMQ_QUEUE: Queue name (default: analysis-jobs)
//   - KAFKA_BROKERS: Bootstrap servers (required for kafka)
//   - KAFKA_TOPIC: Topic name (default: analysis-jobs)
//   - KAFKA_GROUP_ID: Consumer group (default: trade-coach-worker)
//
// Redis Configuration:
//   - REDIS_ADDRESS: Redis server address, empty disables the status cache
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//
// Google Integration:
//   - GOOGLE_CLIENT_ID: OAuth client id (required)
//   - GOOGLE_CLIENT_SECRET: OAuth client secret (required)
//   - GOOGLE_REDIRECT_URL: OAuth callback URL (required)
//   - TOKEN_ENCRYPTION_SECRET: Secret for token encryption at rest; falls
//     back to GOOGLE_CLIENT_SECRET when unset
//   - JWT_SECRET: Secret for signing OAuth state tokens (required, min 32 chars)
//
// Model and Research:
//   - GEMINI_API_KEY: Generative model API key (required)
//   - GEMINI_MODEL: Model identifier (default: gemini-1.5-pro)
//   - SERPAPI_KEY: Web search API key; absence disables the research step
//
// Notifications and Scheduling:
//   - SNS_TOPIC_ARN: Topic for terminal status notifications; empty disables
//   - SCHEDULE_SPEC: Cron expression for proactive weekly analyses; empty disables
//
// Timeouts:
//   - STEP_TIMEOUT: Per enrichment step timeout (default: 120s)
//   - SYNTHESIS_TIMEOUT: Report synthesis timeout (default: 180s)
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the service. Load it with Load()
// and check it with Validate() before use.
type Config struct {
	// Application settings
	Port     string
	LogLevel string

	// Database configuration
	DatabaseType     string
	DatabasePath     string
	PostgresHost     string
	PostgresPort     string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresSSLMode  string

	// Job queue configuration
	QueueType          string
	SQSQueueURL        string
	AWSRegion          string
	PubSubProjectID    string
	PubSubTopic        string
	PubSubSubscription string
	RabbitMQURL        string
	RabbitMQQueue      string
	KafkaBrokers       string
	KafkaTopic         string
	KafkaGroupID       string

	// Redis status cache. Empty address disables caching.
	RedisAddress  string
	RedisPassword string
	RedisDB       string

	// Google OAuth and APIs
	GoogleClientID        string
	GoogleClientSecret    string
	GoogleRedirectURL     string
	TokenEncryptionSecret string
	JWTSecret             string

	// Generative model and research
	GeminiAPIKey string
	GeminiModel  string
	SerpAPIKey   string

	// Notifications and scheduling
	SNSTopicARN  string
	ScheduleSpec string

	// Timeouts
	StepTimeout      time.Duration
	SynthesisTimeout time.Duration
}

// Load creates a Config with values from the environment. It does not
// validate; call Validate() on the result.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseType:     getEnv("DATABASE_TYPE", "sqlite"),
		DatabasePath:     getEnv("DATABASE_PATH", "./trade_coach.db"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresDB:       getEnv("POSTGRES_DB", "trade_coach"),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresSSLMode:  getEnv("POSTGRES_SSL_MODE", "disable"),

		QueueType:          getEnv("QUEUE_TYPE", "local"),
		SQSQueueURL:        getEnv("SQS_QUEUE_URL", ""),
		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		PubSubProjectID:    getEnv("PUBSUB_PROJECT_ID", ""),
		PubSubTopic:        getEnv("PUBSUB_TOPIC", "analysis-jobs"),
		PubSubSubscription: getEnv("PUBSUB_SUBSCRIPTION", "analysis-jobs-worker"),
		RabbitMQURL:        getEnv("RABBITMQ_URL", ""),
		RabbitMQQueue:      getEnv("RABBITMQ_QUEUE", "analysis-jobs"),
		KafkaBrokers:       getEnv("KAFKA_BROKERS", ""),
		KafkaTopic:         getEnv("KAFKA_TOPIC", "analysis-jobs"),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "trade-coach-worker"),

		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),

		GoogleClientID:        getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:    getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:     getEnv("GOOGLE_REDIRECT_URL", ""),
		TokenEncryptionSecret: getEnv("TOKEN_ENCRYPTION_SECRET", ""),
		JWTSecret:             getEnv("JWT_SECRET", ""),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-pro"),
		SerpAPIKey:   getEnv("SERPAPI_KEY", ""),

		SNSTopicARN:  getEnv("SNS_TOPIC_ARN", ""),
		ScheduleSpec: getEnv("SCHEDULE_SPEC", ""),

		StepTimeout:      getDurationEnv("STEP_TIMEOUT", 120*time.Second),
		SynthesisTimeout: getDurationEnv("SYNTHESIS_TIMEOUT", 180*time.Second),
	}
}

// EncryptionSecret returns the secret used to derive the token encryption
// key. TOKEN_ENCRYPTION_SECRET wins when set; otherwise the Google client
// secret is used so single-tenant deployments need one fewer variable.
func (c *Config) EncryptionSecret() string {
	if c.TokenEncryptionSecret != "" {
		return c.TokenEncryptionSecret
	}
	return c.GoogleClientSecret
}

// ResearchEnabled reports whether the external research step should run.
func (c *Config) ResearchEnabled() bool {
	return c.SerpAPIKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Validate checks required fields, formats and cross-field dependencies.
// Call it after Load() and before wiring any component.
func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Port); err != nil || port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be a valid port number between 1 and 65535")
	}

	switch c.DatabaseType {
	case "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("DATABASE_TYPE must be 'sqlite' or 'postgres'")
	}

	if c.DatabaseType == "postgres" || c.DatabaseType == "postgresql" {
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required when using PostgreSQL")
		}
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required when using PostgreSQL")
		}
		if c.PostgresUser == "" {
			return fmt.Errorf("POSTGRES_USER is required when using PostgreSQL")
		}
		if port, err := strconv.Atoi(c.PostgresPort); err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("POSTGRES_PORT must be a valid port number")
		}
	}

	switch c.QueueType {
	case "sqs":
		if c.SQSQueueURL == "" {
			return fmt.Errorf("SQS_QUEUE_URL is required when QUEUE_TYPE is 'sqs'")
		}
	case "pubsub":
		if c.PubSubProjectID == "" {
			return fmt.Errorf("PUBSUB_PROJECT_ID is required when QUEUE_TYPE is 'pubsub'")
		}
	case "rabbitmq":
		if c.RabbitMQURL == "" {
			return fmt.Errorf("RABBITMQ_URL is required when QUEUE_TYPE is 'rabbitmq'")
		}
	case "kafka":
		if c.KafkaBrokers == "" {
			return fmt.Errorf("KAFKA_BROKERS is required when QUEUE_TYPE is 'kafka'")
		}
	case "local":
	default:
		return fmt.Errorf("QUEUE_TYPE must be one of 'sqs', 'pubsub', 'rabbitmq', 'kafka' or 'local'")
	}

	if c.RedisAddress != "" {
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
	}

	if c.GoogleClientID == "" {
		return fmt.Errorf("GOOGLE_CLIENT_ID environment variable is required")
	}
	if c.GoogleClientSecret == "" {
		return fmt.Errorf("GOOGLE_CLIENT_SECRET environment variable is required")
	}
	if c.GoogleRedirectURL == "" {
		return fmt.Errorf("GOOGLE_REDIRECT_URL environment variable is required")
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters long for security")
	}

	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	if c.GeminiModel == "" {
		return fmt.Errorf("GEMINI_MODEL cannot be empty")
	}

	if c.StepTimeout <= 0 || c.SynthesisTimeout <= 0 {
		return fmt.Errorf("STEP_TIMEOUT and SYNTHESIS_TIMEOUT must be positive durations")
	}

	return nil
}
