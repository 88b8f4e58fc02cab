package api

import (
	"errors"
	"log/slog"
	"net/http"

	"rise-finetune/internal/database"
	"rise-finetune/internal/finetune"
	"rise-finetune/internal/storage"
	"rise-finetune/pkg/api"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type BackendService struct {
	svc *finetune.Services
}

func NewBackendService(svc *finetune.Services) *BackendService {
	return &BackendService{svc: svc}
}

func (s *BackendService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Route("/files", func(r chi.Router) {
		r.Get("/", RestHandler(s.ListFiles))
		r.Post("/", RestHandler(s.UploadFile))
	})
	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", RestHandler(s.ListJobs))
		r.Post("/", RestHandler(s.StartJob))
		r.Get("/{job_id}", RestHandler(s.GetJob))
		r.Get("/{job_id}/history", RestHandler(s.GetJobHistory))
		r.Get("/{job_id}/events", RestHandler(s.ListJobEvents))
		r.Post("/{job_id}/cancel", RestHandler(s.CancelJob))
	})
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return min(limit, maxListLimit)
}

// remoteError maps errors from the fine-tuning services to response codes. Failures
// talking to the remote service are reported as a bad gateway.
func remoteError(err error, action string) error {
	switch {
	case errors.Is(err, finetune.ErrNoFileID), errors.Is(err, finetune.ErrNoJobID),
		errors.Is(err, finetune.ErrInvalidDataset), errors.Is(err, storage.ErrObjectNotFound),
		errors.Is(err, storage.ErrOutsideRoot):
		return CodedErrorf(http.StatusBadRequest, "%s: %v", action, err)
	case errors.Is(err, finetune.ErrNotFound):
		return CodedErrorf(http.StatusNotFound, "%s: %v", action, err)
	case errors.Is(err, finetune.ErrRateLimited):
		return CodedErrorf(http.StatusTooManyRequests, "%s: %v", action, err)
	case errors.Is(err, finetune.ErrUnauthorized), errors.Is(err, finetune.ErrRemote):
		return CodedErrorf(http.StatusBadGateway, "%s: %v", action, err)
	default:
		slog.Error("fine-tuning request failed", "action", action, "error", err)
		return CodedErrorf(http.StatusInternalServerError, "%s", action)
	}
}

func (s *BackendService) ListFiles(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.ListFilesParams](r)
	if err != nil {
		return nil, err
	}

	files, err := database.ListTrainingFiles(r.Context(), s.svc.DB, clampLimit(params.Limit))
	if err != nil {
		slog.Error("error listing training files", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving training files")
	}

	return convertTrainingFiles(files), nil
}

func (s *BackendService) UploadFile(r *http.Request) (any, error) {
	req, err := ParseRequest[api.UploadRequest](r)
	if err != nil {
		return nil, err
	}

	if req.Path == "" {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "Path is required")
	}

	file, err := s.svc.Uploader.Upload(r.Context(), finetune.UploadRequest{
		Path:     req.Path,
		Purpose:  req.Purpose,
		Validate: req.Validate,
	})
	if err != nil {
		return nil, remoteError(err, "unable to upload training file")
	}

	return api.UploadResponse{
		FileId:   file.ID,
		Filename: file.Filename,
		Bytes:    file.Bytes,
		Purpose:  file.Purpose,
		Status:   file.Status,
	}, nil
}

func (s *BackendService) ListJobs(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.ListJobsParams](r)
	if err != nil {
		return nil, err
	}

	jobs, err := database.ListJobs(r.Context(), s.svc.DB, params.Status, clampLimit(params.Limit))
	if err != nil {
		slog.Error("error listing jobs", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving jobs")
	}

	return convertLedgerJobs(jobs), nil
}

func (s *BackendService) StartJob(r *http.Request) (any, error) {
	req, err := ParseRequest[api.StartJobRequest](r)
	if err != nil {
		return nil, err
	}

	if req.Epochs < 0 {
		return nil, CodedErrorf(http.StatusUnprocessableEntity, "Epochs must not be negative")
	}

	job, err := s.svc.Starter.Start(r.Context(), finetune.JobRequest{
		FileID:           req.FileId,
		Model:            req.Model,
		Suffix:           req.Suffix,
		ValidationFileID: req.ValidationFileId,
		Epochs:           req.Epochs,
		Seed:             req.Seed,
	})
	if err != nil {
		return nil, remoteError(err, "unable to start fine-tuning job")
	}

	return convertJob(job), nil
}

func (s *BackendService) GetJob(r *http.Request) (any, error) {
	jobId, err := URLParam(r, "job_id")
	if err != nil {
		return nil, err
	}

	job, err := s.svc.Tracker.Track(r.Context(), jobId)
	if err != nil {
		return nil, remoteError(err, "unable to retrieve fine-tuning job")
	}

	return convertJob(job), nil
}

func (s *BackendService) GetJobHistory(r *http.Request) (any, error) {
	jobId, err := URLParam(r, "job_id")
	if err != nil {
		return nil, err
	}

	job, err := database.GetJob(r.Context(), s.svc.DB, jobId)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "job %s has not been recorded", jobId)
		}
		slog.Error("error getting job", "job_id", jobId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving job record")
	}

	return convertLedgerJob(job), nil
}

func (s *BackendService) ListJobEvents(r *http.Request) (any, error) {
	jobId, err := URLParam(r, "job_id")
	if err != nil {
		return nil, err
	}

	params, err := ParseRequestQueryParams[api.ListEventsParams](r)
	if err != nil {
		return nil, err
	}

	events, err := s.svc.Tracker.Events(r.Context(), jobId, clampLimit(params.Limit))
	if err != nil {
		return nil, remoteError(err, "unable to list job events")
	}

	return convertEvents(events), nil
}

func (s *BackendService) CancelJob(r *http.Request) (any, error) {
	jobId, err := URLParam(r, "job_id")
	if err != nil {
		return nil, err
	}

	job, err := s.svc.Tracker.Cancel(r.Context(), jobId)
	if err != nil {
		return nil, remoteError(err, "unable to cancel fine-tuning job")
	}

	return convertJob(job), nil
}
