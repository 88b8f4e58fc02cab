package finetune

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rise-finetune/internal/database"
	"rise-finetune/internal/messaging"
	"rise-finetune/internal/notify"

	"gorm.io/gorm"
)

const DefaultPollInterval = 30 * time.Second

type Tracker struct {
	client    Client
	db        *gorm.DB
	publisher messaging.Publisher
	notifier  notify.Notifier
}

// NewTracker accepts a nil publisher or notifier when status changes should not leave
// the process.
func NewTracker(client Client, db *gorm.DB, publisher messaging.Publisher, notifier notify.Notifier) *Tracker {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Tracker{client: client, db: db, publisher: publisher, notifier: notifier}
}

// ResolveJobID returns jobID, or the most recently started job when jobID is empty.
func (t *Tracker) ResolveJobID(ctx context.Context, jobID string) (string, error) {
	if jobID != "" {
		return jobID, nil
	}

	latest, err := database.LatestJob(ctx, t.db)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNoJobID
	}
	if err != nil {
		return "", fmt.Errorf("error looking up latest job: %w", err)
	}
	slog.Info("using latest started job", "job_id", latest.RemoteId)
	return latest.RemoteId, nil
}

// Track fetches the current state of a job once.
func (t *Tracker) Track(ctx context.Context, jobID string) (Job, error) {
	jobID, err := t.ResolveJobID(ctx, jobID)
	if err != nil {
		return Job{}, err
	}

	job, _, err := t.refresh(ctx, jobID)
	return job, err
}

func (t *Tracker) refresh(ctx context.Context, jobID string) (Job, string, error) {
	job, err := t.client.GetJob(ctx, jobID)
	if err != nil {
		slog.Error("unable to retrieve fine-tuning job", "job_id", jobID, "error", err)
		return Job{}, "", err
	}

	previous, err := t.record(ctx, job)
	if err != nil {
		return Job{}, "", err
	}
	return job, previous, nil
}

func (t *Tracker) record(ctx context.Context, job Job) (string, error) {
	state := database.JobState{
		RemoteId:       job.ID,
		TrainingFileId: job.TrainingFile,
		BaseModel:      job.Model,
		Status:         string(job.Status),
		FineTunedModel: job.FineTunedModel,
	}
	if job.Error != nil {
		state.Error = job.Error.Error()
	}
	return database.RecordJobState(ctx, t.db, state)
}

// Watch polls the job until it reaches a terminal status or ctx is done. Every status
// change is published, and the terminal status is sent to the notifier. onUpdate, if
// set, is called with each status change. On error the last observed job is returned.
func (t *Tracker) Watch(ctx context.Context, jobID string, interval time.Duration, onUpdate func(Job)) (Job, error) {
	jobID, err := t.ResolveJobID(ctx, jobID)
	if err != nil {
		return Job{}, err
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last Job
	for {
		job, previous, err := t.refresh(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			return last, err
		}
		last = job

		if previous != string(job.Status) {
			slog.Info("job status changed", "job_id", job.ID, "old_status", previous, "new_status", job.Status)
			t.publish(ctx, job, previous)
			if onUpdate != nil {
				onUpdate(job)
			}
		}

		if job.Status.IsTerminal() {
			if err := t.notifier.NotifyJob(ctx, notification(job)); err != nil {
				slog.Error("unable to send job notification", "job_id", job.ID, "error", err)
			}
			return job, nil
		}

		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (t *Tracker) publish(ctx context.Context, job Job, previous string) {
	if t.publisher == nil {
		return
	}

	payload := messaging.JobStatusPayload{
		JobId:          job.ID,
		OldStatus:      previous,
		NewStatus:      string(job.Status),
		FineTunedModel: job.FineTunedModel,
		Timestamp:      time.Now().UTC(),
	}
	if job.Error != nil {
		payload.Error = job.Error.Error()
	}

	if err := t.publisher.PublishJobStatus(ctx, payload); err != nil {
		slog.Error("unable to publish job status", "job_id", job.ID, "status", job.Status, "error", err)
	}
}

func notification(job Job) notify.JobNotification {
	n := notify.JobNotification{
		JobId:          job.ID,
		Status:         string(job.Status),
		FineTunedModel: job.FineTunedModel,
	}
	if job.Error != nil {
		n.Error = job.Error.Error()
	}
	if !job.FinishedAt.IsZero() {
		n.FinishedAt = job.FinishedAt.Format(time.RFC3339)
	}
	return n
}

func (t *Tracker) Cancel(ctx context.Context, jobID string) (Job, error) {
	jobID, err := t.ResolveJobID(ctx, jobID)
	if err != nil {
		return Job{}, err
	}

	job, err := t.client.CancelJob(ctx, jobID)
	if err != nil {
		slog.Error("unable to cancel fine-tuning job", "job_id", jobID, "error", err)
		return Job{}, err
	}
	slog.Info("fine-tuning job cancelled", "job_id", job.ID, "status", job.Status)

	if _, err := t.record(ctx, job); err != nil {
		return Job{}, err
	}
	return job, nil
}

func (t *Tracker) Events(ctx context.Context, jobID string, limit int) ([]Event, error) {
	jobID, err := t.ResolveJobID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return t.client.ListEvents(ctx, jobID, limit)
}

func (t *Tracker) List(ctx context.Context, limit int) ([]Job, error) {
	return t.client.ListJobs(ctx, limit)
}
