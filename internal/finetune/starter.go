package finetune

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"rise-finetune/internal/database"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Starter struct {
	client    Client
	db        *gorm.DB
	baseModel string
	suffix    string
}

// NewStarter uses baseModel and suffix for requests that leave them empty.
func NewStarter(client Client, db *gorm.DB, baseModel, suffix string) *Starter {
	if baseModel == "" {
		baseModel = DefaultBaseModel
	}
	if suffix == "" {
		suffix = DefaultSuffix
	}
	return &Starter{client: client, db: db, baseModel: baseModel, suffix: suffix}
}

// Start creates a fine-tuning job. An empty FileID means the most recently uploaded file.
func (s *Starter) Start(ctx context.Context, req JobRequest) (Job, error) {
	if req.FileID == "" {
		latest, err := database.LatestTrainingFile(ctx, s.db)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Job{}, ErrNoFileID
		}
		if err != nil {
			return Job{}, fmt.Errorf("error looking up latest training file: %w", err)
		}
		req.FileID = latest.RemoteId
		slog.Info("using latest uploaded training file", "file_id", req.FileID)
	}
	if req.Model == "" {
		req.Model = s.baseModel
	}
	if req.Suffix == "" {
		req.Suffix = s.suffix
	}

	job, err := s.client.CreateJob(ctx, req)
	if err != nil {
		slog.Error("unable to start fine-tuning job", "file_id", req.FileID, "model", req.Model, "error", err)
		return Job{}, err
	}
	slog.Info("fine-tuning job started", "job_id", job.ID, "status", job.Status)

	hyperparameters, err := json.Marshal(hyperparameters{Epochs: req.Epochs, Seed: req.Seed})
	if err != nil {
		return Job{}, fmt.Errorf("error encoding hyperparameters: %w", err)
	}

	record := database.FineTuneJob{
		RemoteId:         job.ID,
		TrainingFileId:   req.FileID,
		ValidationFileId: sql.NullString{String: req.ValidationFileID, Valid: req.ValidationFileID != ""},
		BaseModel:        req.Model,
		Suffix:           req.Suffix,
		Status:           string(job.Status),
		Hyperparameters:  datatypes.JSON(hyperparameters),
	}
	if err := database.SaveJob(ctx, s.db, &record); err != nil {
		// The remote job exists either way, so its id must still reach the caller.
		slog.Error("fine-tuning job started but not recorded in the ledger", "job_id", job.ID, "error", err)
	}

	return job, nil
}

type hyperparameters struct {
	Epochs int64 `json:"n_epochs,omitempty"`
	Seed   int64 `json:"seed,omitempty"`
}
