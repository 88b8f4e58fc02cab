package finetune

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrUnauthorized = errors.New("remote service rejected credentials")
	ErrNotFound     = errors.New("remote resource not found")
	ErrRateLimited  = errors.New("remote service rate limit exceeded")
	ErrRemote       = errors.New("remote service error")

	ErrNoFileID = errors.New("no file id given and no uploaded file recorded")
	ErrNoJobID  = errors.New("no job id given and no job recorded")

	ErrInvalidDataset = errors.New("training file is not a valid chat dataset")
)

const (
	DefaultPurpose   = "fine-tune"
	DefaultBaseModel = "gpt-3.5-turbo-0125"
	DefaultSuffix    = "rise-v1"
)

type Status string

const (
	StatusValidatingFiles Status = "validating_files"
	StatusQueued          Status = "queued"
	StatusRunning         Status = "running"
	StatusSucceeded       Status = "succeeded"
	StatusFailed          Status = "failed"
	StatusCancelled       Status = "cancelled"
)

// IsTerminal reports whether the remote service will not change the status again.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

type File struct {
	ID        string
	Filename  string
	Bytes     int64
	Purpose   string
	Status    string
	CreatedAt time.Time
}

type JobError struct {
	Code    string
	Message string
	Param   string
}

func (e *JobError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

type Job struct {
	ID             string
	Model          string
	Status         Status
	FineTunedModel string
	TrainingFile   string
	ValidationFile string
	TrainedTokens  int64
	CreatedAt      time.Time
	FinishedAt     time.Time
	Error          *JobError
}

type JobRequest struct {
	FileID           string
	Model            string
	Suffix           string
	ValidationFileID string
	// Epochs and Seed are left to the remote defaults when zero.
	Epochs int64
	Seed   int64
}

type Event struct {
	ID        string
	Level     string
	Message   string
	CreatedAt time.Time
}

// Client is the remote fine-tuning service. Identifiers it returns are opaque and must
// be handed back unmodified.
type Client interface {
	UploadFile(ctx context.Context, filename string, data io.Reader, purpose string) (File, error)

	CreateJob(ctx context.Context, req JobRequest) (Job, error)

	GetJob(ctx context.Context, jobID string) (Job, error)

	CancelJob(ctx context.Context, jobID string) (Job, error)

	ListJobs(ctx context.Context, limit int) ([]Job, error)

	ListEvents(ctx context.Context, jobID string, limit int) ([]Event, error)
}
