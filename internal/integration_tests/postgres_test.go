//go:build integration

package integrationtests

import (
	"context"
	"testing"
	"time"

	"rise-finetune/internal/database"
	"rise-finetune/internal/finetune"
	"rise-finetune/internal/finetune/remotetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerOnPostgres(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	db := createPostgresDB(t, ctx)
	remote := remotetest.NewServer(t, "running", "succeeded")

	require.NoError(t, database.SaveTrainingFile(ctx, db, &database.TrainingFile{
		RemoteId: "file-abc", Filename: "train.jsonl", Purpose: "fine-tune",
	}))

	job, err := finetune.NewStarter(remote.Client(), db, "", "").Start(ctx, finetune.JobRequest{})
	require.NoError(t, err)
	assert.Equal(t, "job-123", job.ID)

	tracker := finetune.NewTracker(remote.Client(), db, nil, nil)
	job, err = tracker.Watch(ctx, "", time.Millisecond, nil)
	require.NoError(t, err)
	assert.Equal(t, "ft:rise-v1", job.FineTunedModel)

	record, err := database.GetJob(ctx, db, "job-123")
	require.NoError(t, err)
	assert.Equal(t, "succeeded", record.Status)
	assert.Len(t, record.StatusChanges, 2)

	// Migrations are idempotent on an existing schema.
	require.NoError(t, database.GetMigrator(db).Migrate())
}
