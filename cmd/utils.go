package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rise-finetune/internal/config"
	"rise-finetune/internal/database"
	"rise-finetune/internal/finetune"
	"rise-finetune/internal/messaging"
	"rise-finetune/internal/notify"
	"rise-finetune/internal/storage"
)

const webhookTimeout = 10 * time.Second

// NewServices connects the run ledger, file storage, remote client, status publisher
// and webhook described by cfg. Local paths resolve against the working directory.
func NewServices(ctx context.Context, cfg config.Config) (*finetune.Services, error) {
	local, err := storage.NewLocalObjectStore(".")
	if err != nil {
		return nil, err
	}
	return newServices(cfg, local)
}

// NewAPIServices is NewServices for the HTTP API, where local paths come from callers
// and are confined to the data directory.
func NewAPIServices(ctx context.Context, cfg config.Config) (*finetune.Services, error) {
	local, err := storage.NewConfinedLocalObjectStore(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}
	return newServices(cfg, local)
}

func newServices(cfg config.Config, local storage.ObjectStore) (*finetune.Services, error) {
	db, err := database.NewDatabase(cfg.Storage.DatabaseURL)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unable to get database handle: %w", err)
	}

	files := storage.NewProvider(local, func() (storage.ObjectStore, error) {
		return storage.NewS3ObjectStore(storage.S3ClientConfig{
			Endpoint:        cfg.Storage.S3EndpointURL,
			Region:          cfg.Storage.S3Region,
			AccessKeyID:     cfg.Storage.S3AccessKeyID,
			SecretAccessKey: cfg.Storage.S3SecretAccessKey,
		})
	})

	client := finetune.NewOpenAIClient(finetune.OpenAIConfig{
		APIKey:       cfg.OpenAI.APIKey,
		BaseURL:      cfg.OpenAI.BaseURL,
		Organization: cfg.OpenAI.Organization,
		MaxRetries:   cfg.OpenAI.MaxRetries,
		Timeout:      cfg.OpenAI.Timeout,
	})

	publisher, err := newPublisher(cfg)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	var notifier notify.Notifier = notify.Noop{}
	if cfg.WebhookURL != "" {
		notifier = notify.NewWebhook(cfg.WebhookURL, webhookTimeout)
	}

	svc := finetune.NewServices(client, files, db, publisher, notifier, finetune.ServiceConfig{
		BaseModel: cfg.FineTune.BaseModel,
		Suffix:    cfg.FineTune.Suffix,
	})
	svc.OnClose(func() {
		if err := sqlDB.Close(); err != nil {
			slog.Error("error closing database", "error", err)
		}
	})
	svc.OnClose(publisher.Close)

	return svc, nil
}

// newPublisher uses RabbitMQ when configured. Otherwise status changes go to an
// in-memory queue that is drained into the log before Close returns.
func newPublisher(cfg config.Config) (messaging.Publisher, error) {
	if cfg.RabbitMQURL != "" {
		publisher, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL)
		if err != nil {
			return nil, fmt.Errorf("unable to connect to rabbitmq: %w", err)
		}
		return publisher, nil
	}

	return messaging.NewDrainedQueue(messaging.LogJobStatus), nil
}
