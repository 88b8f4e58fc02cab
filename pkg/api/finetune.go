package api

import (
	"time"

	"github.com/google/uuid"
)

type TrainingFile struct {
	Id           uuid.UUID
	FileId       string
	Filename     string
	Source       string
	Purpose      string
	Bytes        int64
	CreationTime time.Time
}

type ListFilesParams struct {
	Limit int
}

type UploadRequest struct {
	Path     string
	Purpose  string
	Validate bool
}

type UploadResponse struct {
	FileId   string
	Filename string
	Bytes    int64
	Purpose  string
	Status   string
}

type StartJobRequest struct {
	FileId           string
	Model            string
	Suffix           string
	ValidationFileId string
	Epochs           int64
	Seed             int64
}

type JobError struct {
	Code    string
	Message string
	Param   string
}

type Job struct {
	JobId          string
	Model          string
	Status         string
	FineTunedModel string
	TrainingFile   string
	ValidationFile string
	TrainedTokens  int64
	CreatedAt      *time.Time
	FinishedAt     *time.Time
	Error          *JobError
}

type ListJobsParams struct {
	Status string
	Limit  int
}

type StatusChange struct {
	OldStatus string
	NewStatus string
	Timestamp time.Time
}

// LedgerJob is a job as recorded locally, with the status changes seen so far.
type LedgerJob struct {
	Id               uuid.UUID
	JobId            string
	TrainingFileId   string
	ValidationFileId string
	BaseModel        string
	Suffix           string
	Status           string
	FineTunedModel   string
	Error            string
	CreationTime     time.Time
	CompletionTime   *time.Time
	StatusChanges    []StatusChange
}

type Event struct {
	Id        string
	Level     string
	Message   string
	CreatedAt time.Time
}

type ListEventsParams struct {
	Limit int
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code  int
	Error string
}
