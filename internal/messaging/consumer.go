package messaging

import (
	"encoding/json"
	"log/slog"
)

// HandleJobStatus calls handle for every job status message until the receiver's task
// channel is closed. Malformed messages are rejected, handled ones are acked.
func HandleJobStatus(r Reciever, handle func(JobStatusPayload) error) {
	for task := range r.Tasks() {
		if task.Type() != JobStatusQueue {
			slog.Warn("ignoring message from unexpected queue", "queue", task.Type())
			if err := task.Reject(); err != nil {
				slog.Error("error rejecting message", "error", err)
			}
			continue
		}

		var payload JobStatusPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			slog.Error("malformed job status message", "error", err)
			if err := task.Reject(); err != nil {
				slog.Error("error rejecting message", "error", err)
			}
			continue
		}

		if err := handle(payload); err != nil {
			slog.Error("error handling job status", "job_id", payload.JobId, "error", err)
			if err := task.Nack(); err != nil {
				slog.Error("error nacking message", "error", err)
			}
			continue
		}

		if err := task.Ack(); err != nil {
			slog.Error("error acking message", "job_id", payload.JobId, "error", err)
		}
	}
}

// LogJobStatus is a handler that records status changes in the process log.
func LogJobStatus(p JobStatusPayload) error {
	slog.Info("job status update", "job_id", p.JobId, "old_status", p.OldStatus, "new_status", p.NewStatus, "fine_tuned_model", p.FineTunedModel, "error", p.Error)
	return nil
}

// DrainedQueue is an in-memory queue with its own consumer. Close waits until every
// message published before it has been handled.
type DrainedQueue struct {
	*InMemoryQueue
	done chan struct{}
}

var _ Publisher = (*DrainedQueue)(nil)

func NewDrainedQueue(handle func(JobStatusPayload) error) *DrainedQueue {
	q := &DrainedQueue{InMemoryQueue: NewInMemoryQueue(), done: make(chan struct{})}
	go func() {
		defer close(q.done)
		HandleJobStatus(q.InMemoryQueue, handle)
	}()
	return q
}

func (q *DrainedQueue) Close() {
	q.InMemoryQueue.Close()
	<-q.done
}
