package api

import (
	"time"

	"rise-finetune/internal/database"
	"rise-finetune/internal/finetune"
	"rise-finetune/pkg/api"
)

func convertTrainingFile(f database.TrainingFile) api.TrainingFile {
	return api.TrainingFile{
		Id:           f.Id,
		FileId:       f.RemoteId,
		Filename:     f.Filename,
		Source:       f.Source,
		Purpose:      f.Purpose,
		Bytes:        f.Bytes,
		CreationTime: f.CreationTime,
	}
}

func convertTrainingFiles(fs []database.TrainingFile) []api.TrainingFile {
	files := make([]api.TrainingFile, 0, len(fs))
	for _, f := range fs {
		files = append(files, convertTrainingFile(f))
	}
	return files
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func convertJob(j finetune.Job) api.Job {
	job := api.Job{
		JobId:          j.ID,
		Model:          j.Model,
		Status:         string(j.Status),
		FineTunedModel: j.FineTunedModel,
		TrainingFile:   j.TrainingFile,
		ValidationFile: j.ValidationFile,
		TrainedTokens:  j.TrainedTokens,
		CreatedAt:      optionalTime(j.CreatedAt),
		FinishedAt:     optionalTime(j.FinishedAt),
	}
	if j.Error != nil {
		job.Error = &api.JobError{Code: j.Error.Code, Message: j.Error.Message, Param: j.Error.Param}
	}
	return job
}

func convertLedgerJob(j database.FineTuneJob) api.LedgerJob {
	job := api.LedgerJob{
		Id:               j.Id,
		JobId:            j.RemoteId,
		TrainingFileId:   j.TrainingFileId,
		ValidationFileId: j.ValidationFileId.String,
		BaseModel:        j.BaseModel,
		Suffix:           j.Suffix,
		Status:           j.Status,
		FineTunedModel:   j.FineTunedModel.String,
		Error:            j.Error.String,
		CreationTime:     j.CreationTime,
	}
	if j.CompletionTime.Valid {
		job.CompletionTime = &j.CompletionTime.Time
	}
	for _, c := range j.StatusChanges {
		job.StatusChanges = append(job.StatusChanges, api.StatusChange{
			OldStatus: c.OldStatus,
			NewStatus: c.NewStatus,
			Timestamp: c.Timestamp,
		})
	}
	return job
}

func convertLedgerJobs(js []database.FineTuneJob) []api.LedgerJob {
	jobs := make([]api.LedgerJob, 0, len(js))
	for _, j := range js {
		jobs = append(jobs, convertLedgerJob(j))
	}
	return jobs
}

func convertEvents(es []finetune.Event) []api.Event {
	events := make([]api.Event, 0, len(es))
	for _, e := range es {
		events = append(events, api.Event{Id: e.ID, Level: e.Level, Message: e.Message, CreatedAt: e.CreatedAt})
	}
	return events
}
