package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var ErrMissingAPIKey = errors.New("OPENAI_API_KEY is not set")

type OpenAIConfig struct {
	APIKey       string        `env:"OPENAI_API_KEY"`
	BaseURL      string        `env:"OPENAI_BASE_URL"`
	Organization string        `env:"OPENAI_ORG_ID"`
	MaxRetries   int           `env:"OPENAI_MAX_RETRIES" envDefault:"2"`
	Timeout      time.Duration `env:"OPENAI_TIMEOUT" envDefault:"10m"`
}

type FineTuneConfig struct {
	BaseModel    string        `env:"FINETUNE_BASE_MODEL" envDefault:"gpt-3.5-turbo-0125"`
	Suffix       string        `env:"FINETUNE_SUFFIX" envDefault:"rise-v1"`
	Purpose      string        `env:"FINETUNE_PURPOSE" envDefault:"fine-tune"`
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"30s"`
}

type StorageConfig struct {
	DataDir           string `env:"APP_DATA_DIR"`
	DatabaseURL       string `env:"DATABASE_URL"`
	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`
}

type Config struct {
	OpenAI   OpenAIConfig
	FineTune FineTuneConfig
	Storage  StorageConfig

	RabbitMQURL string `env:"RABBITMQ_URL"`
	WebhookURL  string `env:"WEBHOOK_URL"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"console"`
	APIPort     string `env:"API_PORT" envDefault:"8001"`
}

// LoadEnvFile loads variables from path into the process environment. With an empty
// path a .env in the working directory is used if there is one.
func LoadEnvFile(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil {
			slog.Debug("no .env file found, using environment only")
		}
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error loading env file '%s': %w", path, err)
	}
	slog.Debug("loaded env file", "path", path)
	return nil
}

// Load parses the environment and fills in the paths derived from the data directory.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing config: %w", err)
	}

	if cfg.Storage.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("unable to locate home directory, set APP_DATA_DIR: %w", err)
		}
		cfg.Storage.DataDir = filepath.Join(home, ".rise-finetune")
	}
	if cfg.Storage.DatabaseURL == "" {
		cfg.Storage.DatabaseURL = filepath.Join(cfg.Storage.DataDir, "ledger.db")
	}
	if cfg.OpenAI.MaxRetries < 0 {
		return Config{}, fmt.Errorf("OPENAI_MAX_RETRIES must not be negative, got %d", cfg.OpenAI.MaxRetries)
	}

	return cfg, nil
}

func (c OpenAIConfig) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}
