package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-resty/resty/v2"
)

var ErrWebhookRejected = errors.New("webhook rejected notification")

// JobNotification is the JSON body posted when a job reaches a terminal status.
type JobNotification struct {
	JobId          string `json:"job_id"`
	Status         string `json:"status"`
	FineTunedModel string `json:"fine_tuned_model,omitempty"`
	Error          string `json:"error,omitempty"`
	FinishedAt     string `json:"finished_at,omitempty"`
}

type Notifier interface {
	NotifyJob(ctx context.Context, n JobNotification) error
}

type Webhook struct {
	client *resty.Client
	url    string
}

var _ Notifier = (*Webhook)(nil)

func NewWebhook(url string, timeout time.Duration) *Webhook {
	return &Webhook{
		client: resty.New().SetTimeout(timeout).SetRetryCount(2),
		url:    url,
	}
}

func (w *Webhook) NotifyJob(ctx context.Context, n JobNotification) error {
	res, err := w.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(n).
		Post(w.url)
	if err != nil {
		slog.Error("unable to deliver webhook", "job_id", n.JobId, "error", err)
		return fmt.Errorf("error posting webhook for job %s: %w", n.JobId, err)
	}

	if !res.IsSuccess() {
		slog.Error("webhook returned error", "job_id", n.JobId, "status_code", res.StatusCode(), "body", res.String())
		return fmt.Errorf("%w: status %d", ErrWebhookRejected, res.StatusCode())
	}

	return nil
}

// Noop is used when no webhook is configured.
type Noop struct{}

func (Noop) NotifyJob(ctx context.Context, n JobNotification) error {
	return nil
}
