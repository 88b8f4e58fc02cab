package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

func isTerminal(status string) bool {
	return status == StatusSucceeded || status == StatusFailed || status == StatusCancelled
}

// SaveTrainingFile records an uploaded file. A file id that is already recorded has its
// details refreshed.
func SaveTrainingFile(ctx context.Context, db *gorm.DB, file *TrainingFile) error {
	if file.Id == uuid.Nil {
		file.Id = uuid.New()
	}
	if file.CreationTime.IsZero() {
		file.CreationTime = time.Now().UTC()
	}

	upsert := clause.OnConflict{
		Columns:   []clause.Column{{Name: "remote_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"filename", "source", "purpose", "bytes", "creation_time"}),
	}
	if err := db.WithContext(ctx).Clauses(upsert).Create(file).Error; err != nil {
		slog.Error("error saving training file", "remote_id", file.RemoteId, "error", err)
		return fmt.Errorf("error saving training file %s: %w", file.RemoteId, err)
	}
	return nil
}

// LatestTrainingFile returns gorm.ErrRecordNotFound when nothing has been uploaded.
func LatestTrainingFile(ctx context.Context, db *gorm.DB) (TrainingFile, error) {
	var file TrainingFile
	if err := db.WithContext(ctx).Order("creation_time DESC").First(&file).Error; err != nil {
		return TrainingFile{}, err
	}
	return file, nil
}

func ListTrainingFiles(ctx context.Context, db *gorm.DB, limit int) ([]TrainingFile, error) {
	var files []TrainingFile
	query := db.WithContext(ctx).Order("creation_time DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&files).Error; err != nil {
		return nil, fmt.Errorf("error listing training files: %w", err)
	}
	return files, nil
}

// SaveJob records a started job. When the job was already recorded by a status check,
// only the request details are filled in and the observed status is kept.
func SaveJob(ctx context.Context, db *gorm.DB, job *FineTuneJob) error {
	if job.Id == uuid.Nil {
		job.Id = uuid.New()
	}
	if job.CreationTime.IsZero() {
		job.CreationTime = time.Now().UTC()
	}

	upsert := clause.OnConflict{
		Columns: []clause.Column{{Name: "remote_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"training_file_id", "validation_file_id", "base_model", "suffix", "hyperparameters",
		}),
	}
	if err := db.WithContext(ctx).Clauses(upsert).Create(job).Error; err != nil {
		slog.Error("error saving fine-tuning job", "remote_id", job.RemoteId, "error", err)
		return fmt.Errorf("error saving fine-tuning job %s: %w", job.RemoteId, err)
	}
	return nil
}

// LatestJob returns gorm.ErrRecordNotFound when no job has been recorded.
func LatestJob(ctx context.Context, db *gorm.DB) (FineTuneJob, error) {
	var job FineTuneJob
	if err := db.WithContext(ctx).Order("creation_time DESC").First(&job).Error; err != nil {
		return FineTuneJob{}, err
	}
	return job, nil
}

func GetJob(ctx context.Context, db *gorm.DB, remoteId string) (FineTuneJob, error) {
	var job FineTuneJob
	if err := db.WithContext(ctx).Preload("StatusChanges").Where("remote_id = ?", remoteId).First(&job).Error; err != nil {
		return FineTuneJob{}, err
	}
	return job, nil
}

func ListJobs(ctx context.Context, db *gorm.DB, status string, limit int) ([]FineTuneJob, error) {
	var jobs []FineTuneJob
	query := db.WithContext(ctx).Order("creation_time DESC")
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("error listing fine-tuning jobs: %w", err)
	}
	return jobs, nil
}

// JobState is what the remote service last reported for a job.
type JobState struct {
	RemoteId       string
	TrainingFileId string
	BaseModel      string
	Status         string
	FineTunedModel string
	Error          string
}

// RecordJobState stores the reported state, inserting the job if it was started
// elsewhere. It returns the status that was recorded before, or "" for a new row.
func RecordJobState(ctx context.Context, db *gorm.DB, state JobState) (string, error) {
	var previous string

	err := db.WithContext(ctx).Transaction(func(txn *gorm.DB) error {
		var job FineTuneJob
		err := txn.Where("remote_id = ?", state.RemoteId).First(&job).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			job = FineTuneJob{
				Id:             uuid.New(),
				RemoteId:       state.RemoteId,
				TrainingFileId: state.TrainingFileId,
				BaseModel:      state.BaseModel,
				Status:         state.Status,
				CreationTime:   time.Now().UTC(),
			}
			if err := txn.Create(&job).Error; err != nil {
				return fmt.Errorf("error inserting job %s: %w", state.RemoteId, err)
			}
		} else if err != nil {
			return fmt.Errorf("error querying job %s: %w", state.RemoteId, err)
		} else {
			previous = job.Status
		}

		updates := map[string]any{
			"status":           state.Status,
			"fine_tuned_model": sql.NullString{String: state.FineTunedModel, Valid: state.FineTunedModel != ""},
			"error":            sql.NullString{String: state.Error, Valid: state.Error != ""},
		}
		if isTerminal(state.Status) && !job.CompletionTime.Valid {
			updates["completion_time"] = sql.NullTime{Time: time.Now().UTC(), Valid: true}
		}
		if err := txn.Model(&FineTuneJob{Id: job.Id}).Updates(updates).Error; err != nil {
			return fmt.Errorf("error updating job %s: %w", state.RemoteId, err)
		}

		if previous != state.Status {
			change := JobStatusChange{
				Id:        uuid.New(),
				JobId:     job.Id,
				OldStatus: previous,
				NewStatus: state.Status,
				Timestamp: time.Now().UTC(),
			}
			if err := txn.Create(&change).Error; err != nil {
				return fmt.Errorf("error saving status change for job %s: %w", state.RemoteId, err)
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("error recording job state", "remote_id", state.RemoteId, "status", state.Status, "error", err)
		return "", err
	}

	return previous, nil
}
