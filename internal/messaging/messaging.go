package messaging

import (
	"context"
	"time"
)

const (
	JobStatusQueue  = "finetune_job_status"
	RetryDelay      = 5 * time.Second
	MaxConnectRetry = 5
)

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

// JobStatusPayload is published whenever a tracked job is seen in a new status.
type JobStatusPayload struct {
	JobId          string
	OldStatus      string
	NewStatus      string
	FineTunedModel string `json:",omitempty"`
	Error          string `json:",omitempty"`
	Timestamp      time.Time
}

type Publisher interface {
	PublishJobStatus(ctx context.Context, payload JobStatusPayload) error

	Close()
}

type Reciever interface {
	Tasks() <-chan Task

	Close()
}
