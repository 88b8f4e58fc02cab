package database_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"rise-finetune/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createDB(t *testing.T) *gorm.DB {
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	return db
}

func TestLatestTrainingFile(t *testing.T) {
	ctx := context.Background()
	db := createDB(t)

	_, err := database.LatestTrainingFile(ctx, db)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	now := time.Now().UTC()
	require.NoError(t, database.SaveTrainingFile(ctx, db, &database.TrainingFile{
		RemoteId: "file-old", Filename: "a.jsonl", Purpose: "fine-tune", CreationTime: now.Add(-time.Hour),
	}))
	require.NoError(t, database.SaveTrainingFile(ctx, db, &database.TrainingFile{
		RemoteId: "file-new", Filename: "b.jsonl", Purpose: "fine-tune", CreationTime: now,
	}))

	latest, err := database.LatestTrainingFile(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, "file-new", latest.RemoteId)

	files, err := database.ListTrainingFiles(ctx, db, 0)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "file-new", files[0].RemoteId)
}

func TestRecordJobState(t *testing.T) {
	ctx := context.Background()
	db := createDB(t)

	require.NoError(t, database.SaveJob(ctx, db, &database.FineTuneJob{
		RemoteId:       "job-123",
		TrainingFileId: "file-abc",
		BaseModel:      "gpt-3.5-turbo-0125",
		Suffix:         "rise-v1",
		Status:         "queued",
	}))

	t.Run("StatusChange", func(t *testing.T) {
		previous, err := database.RecordJobState(ctx, db, database.JobState{RemoteId: "job-123", Status: "running"})
		require.NoError(t, err)
		assert.Equal(t, "queued", previous)
	})

	t.Run("Terminal", func(t *testing.T) {
		previous, err := database.RecordJobState(ctx, db, database.JobState{
			RemoteId: "job-123", Status: "succeeded", FineTunedModel: "ft:rise-v1",
		})
		require.NoError(t, err)
		assert.Equal(t, "running", previous)

		job, err := database.GetJob(ctx, db, "job-123")
		require.NoError(t, err)
		assert.Equal(t, "succeeded", job.Status)
		assert.Equal(t, "ft:rise-v1", job.FineTunedModel.String)
		assert.True(t, job.CompletionTime.Valid)
		assert.Len(t, job.StatusChanges, 2)
	})

	t.Run("Unchanged", func(t *testing.T) {
		previous, err := database.RecordJobState(ctx, db, database.JobState{
			RemoteId: "job-123", Status: "succeeded", FineTunedModel: "ft:rise-v1",
		})
		require.NoError(t, err)
		assert.Equal(t, "succeeded", previous)

		job, err := database.GetJob(ctx, db, "job-123")
		require.NoError(t, err)
		assert.Len(t, job.StatusChanges, 2)
	})

	t.Run("UnknownJob", func(t *testing.T) {
		previous, err := database.RecordJobState(ctx, db, database.JobState{
			RemoteId: "job-elsewhere", TrainingFileId: "file-x", BaseModel: "m", Status: "failed", Error: "bad file",
		})
		require.NoError(t, err)
		assert.Equal(t, "", previous)

		job, err := database.GetJob(ctx, db, "job-elsewhere")
		require.NoError(t, err)
		assert.Equal(t, "file-x", job.TrainingFileId)
		assert.Equal(t, "bad file", job.Error.String)
	})

	jobs, err := database.ListJobs(ctx, db, "succeeded", 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "job-123", jobs[0].RemoteId)
}

func TestSaveJob_AlreadyTracked(t *testing.T) {
	ctx := context.Background()
	db := createDB(t)

	_, err := database.RecordJobState(ctx, db, database.JobState{
		RemoteId: "job-123", TrainingFileId: "file-abc", BaseModel: "gpt-3.5-turbo-0125", Status: "running",
	})
	require.NoError(t, err)

	require.NoError(t, database.SaveJob(ctx, db, &database.FineTuneJob{
		RemoteId:       "job-123",
		TrainingFileId: "file-abc",
		BaseModel:      "gpt-3.5-turbo-0125",
		Suffix:         "rise-v1",
		Status:         "validating_files",
	}))

	job, err := database.GetJob(ctx, db, "job-123")
	require.NoError(t, err)
	assert.Equal(t, "running", job.Status)
	assert.Equal(t, "rise-v1", job.Suffix)
	assert.Len(t, job.StatusChanges, 1)

	jobs, err := database.ListJobs(ctx, db, "", 0)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}
