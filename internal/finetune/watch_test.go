package finetune

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"rise-finetune/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// slowClient answers GetJob after delay unless ctx ends first.
type slowClient struct {
	fakeClient
	delay time.Duration
	polls int
}

func (c *slowClient) GetJob(ctx context.Context, jobID string) (Job, error) {
	select {
	case <-time.After(c.delay):
		c.polls++
		return Job{ID: jobID, Status: StatusRunning}, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

func TestWatch_CancelledDuringPoll(t *testing.T) {
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)

	client := &slowClient{delay: 20 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	job, err := NewTracker(client, db, nil, nil).Watch(ctx, "job-123", time.Millisecond, nil)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.GreaterOrEqual(t, client.polls, 1)
	assert.Equal(t, "job-123", job.ID)
	assert.Equal(t, StatusRunning, job.Status)
}

func TestWatch_CancelledBeforeFirstPoll(t *testing.T) {
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	job, err := NewTracker(&slowClient{delay: time.Second}, db, nil, nil).Watch(ctx, "job-123", time.Millisecond, nil)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, Job{}, job)
}
