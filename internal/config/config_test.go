package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:     "8080",
		LogLevel: "info",

		DatabaseType: "sqlite",
		DatabasePath: "./test.db",

		QueueType: "local",

		RedisDB: "0",

		GoogleClientID:     "client-id",
		GoogleClientSecret: "client-secret",
		GoogleRedirectURL:  "http://localhost:8080/auth/google/callback",
		JWTSecret:          "0123456789abcdef0123456789abcdef",

		GeminiAPIKey: "test-key",
		GeminiModel:  "gemini-1.5-pro",

		StepTimeout:      time.Minute,
		SynthesisTimeout: time.Minute,
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assert.Equal(t, "local", cfg.QueueType)
	assert.Equal(t, "gemini-1.5-pro", cfg.GeminiModel)
	assert.Equal(t, 120*time.Second, cfg.StepTimeout)
	assert.Equal(t, 180*time.Second, cfg.SynthesisTimeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("QUEUE_TYPE", "sqs")
	t.Setenv("STEP_TIMEOUT", "45s")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "sqs", cfg.QueueType)
	assert.Equal(t, 45*time.Second, cfg.StepTimeout)
}

func TestValidate_Valid(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad port", func(c *Config) { c.Port = "notaport" }, "PORT"},
		{"bad database type", func(c *Config) { c.DatabaseType = "mongo" }, "DATABASE_TYPE"},
		{"postgres missing host", func(c *Config) {
			c.DatabaseType = "postgres"
			c.PostgresHost = ""
			c.PostgresDB = "db"
			c.PostgresUser = "user"
		}, "POSTGRES_HOST"},
		{"bad queue type", func(c *Config) { c.QueueType = "zeromq" }, "QUEUE_TYPE"},
		{"sqs without url", func(c *Config) { c.QueueType = "sqs" }, "SQS_QUEUE_URL"},
		{"pubsub without project", func(c *Config) { c.QueueType = "pubsub" }, "PUBSUB_PROJECT_ID"},
		{"rabbitmq without url", func(c *Config) { c.QueueType = "rabbitmq" }, "RABBITMQ_URL"},
		{"kafka without brokers", func(c *Config) { c.QueueType = "kafka" }, "KAFKA_BROKERS"},
		{"bad redis db", func(c *Config) {
			c.RedisAddress = "localhost:6379"
			c.RedisDB = "99"
		}, "REDIS_DB"},
		{"missing client id", func(c *Config) { c.GoogleClientID = "" }, "GOOGLE_CLIENT_ID"},
		{"missing client secret", func(c *Config) { c.GoogleClientSecret = "" }, "GOOGLE_CLIENT_SECRET"},
		{"missing redirect url", func(c *Config) { c.GoogleRedirectURL = "" }, "GOOGLE_REDIRECT_URL"},
		{"missing jwt secret", func(c *Config) { c.JWTSecret = "" }, "JWT_SECRET"},
		{"short jwt secret", func(c *Config) { c.JWTSecret = "short" }, "32 characters"},
		{"missing model key", func(c *Config) { c.GeminiAPIKey = "" }, "GEMINI_API_KEY"},
		{"zero timeout", func(c *Config) { c.StepTimeout = 0 }, "STEP_TIMEOUT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEncryptionSecret_Precedence(t *testing.T) {
	cfg := validConfig()

	assert.Equal(t, "client-secret", cfg.EncryptionSecret())

	cfg.TokenEncryptionSecret = "dedicated-secret"
	assert.Equal(t, "dedicated-secret", cfg.EncryptionSecret())
}

func TestResearchEnabled(t *testing.T) {
	cfg := validConfig()
	assert.False(t, cfg.ResearchEnabled())

	cfg.SerpAPIKey = "serp-key"
	assert.True(t, cfg.ResearchEnabled())
}
