package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueue(t *testing.T) {
	queue := NewInMemoryQueue()

	payload := JobStatusPayload{
		JobId:          "job-123",
		OldStatus:      "running",
		NewStatus:      "succeeded",
		FineTunedModel: "ft:rise-v1",
		Timestamp:      time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, queue.PublishJobStatus(context.Background(), payload))

	task := <-queue.Tasks()
	assert.Equal(t, JobStatusQueue, task.Type())

	var got JobStatusPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &got))
	assert.Equal(t, payload, got)
	assert.NoError(t, task.Ack())

	queue.Close()
	assert.Error(t, queue.PublishJobStatus(context.Background(), payload))
	queue.Close()
}

func TestInMemoryQueueFull(t *testing.T) {
	queue := NewInMemoryQueue()
	defer queue.Close()

	for i := 0; i < inMemoryQueueSize; i++ {
		require.NoError(t, queue.PublishJobStatus(context.Background(), JobStatusPayload{JobId: "job"}))
	}

	err := queue.PublishJobStatus(context.Background(), JobStatusPayload{JobId: "job"})
	assert.True(t, errors.Is(err, ErrQueueFull))
}

func TestHandleJobStatus(t *testing.T) {
	queue := NewInMemoryQueue()

	for _, status := range []string{"queued", "running", "succeeded"} {
		require.NoError(t, queue.PublishJobStatus(context.Background(), JobStatusPayload{JobId: "job-123", NewStatus: status}))
	}
	queue.Close()

	var seen []string
	HandleJobStatus(queue, func(p JobStatusPayload) error {
		seen = append(seen, p.NewStatus)
		if p.NewStatus == "running" {
			return errors.New("handler failed")
		}
		return nil
	})
	assert.Equal(t, []string{"queued", "running", "succeeded"}, seen)
}

func TestDrainedQueueCloseWaitsForHandler(t *testing.T) {
	var handled []string
	queue := NewDrainedQueue(func(p JobStatusPayload) error {
		time.Sleep(5 * time.Millisecond)
		handled = append(handled, p.NewStatus)
		return nil
	})

	for _, status := range []string{"queued", "running", "succeeded"} {
		require.NoError(t, queue.PublishJobStatus(context.Background(), JobStatusPayload{JobId: "job-123", NewStatus: status}))
	}
	queue.Close()

	assert.Equal(t, []string{"queued", "running", "succeeded"}, handled)
	assert.Error(t, queue.PublishJobStatus(context.Background(), JobStatusPayload{JobId: "job-123"}))
}
