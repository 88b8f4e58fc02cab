package finetune

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	Organization string
	MaxRetries   int
	Timeout      time.Duration
	HTTPClient   *http.Client
}

type OpenAIClient struct {
	client openai.Client
}

var _ Client = (*OpenAIClient)(nil)

func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Organization != "" {
		opts = append(opts, option.WithOrganization(cfg.Organization))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &OpenAIClient{client: openai.NewClient(opts...)}
}

// namedReader lets the multipart encoder send the real filename, which the remote
// service uses to check the file extension.
type namedReader struct {
	io.Reader
	name string
}

func (r namedReader) Filename() string {
	return r.name
}

func (r namedReader) Name() string {
	return r.name
}

func (c *OpenAIClient) UploadFile(ctx context.Context, filename string, data io.Reader, purpose string) (File, error) {
	obj, err := c.client.Files.New(ctx, openai.FileNewParams{
		File:    namedReader{Reader: data, name: path.Base(filename)},
		Purpose: openai.FilePurpose(purpose),
	})
	if err != nil {
		return File{}, classifyError("upload file", err)
	}

	return File{
		ID:        obj.ID,
		Filename:  obj.Filename,
		Bytes:     obj.Bytes,
		Purpose:   string(obj.Purpose),
		Status:    string(obj.Status),
		CreatedAt: unixTime(obj.CreatedAt),
	}, nil
}

func (c *OpenAIClient) CreateJob(ctx context.Context, req JobRequest) (Job, error) {
	params := openai.FineTuningJobNewParams{
		Model:        openai.FineTuningJobNewParamsModel(req.Model),
		TrainingFile: req.FileID,
	}
	if req.Suffix != "" {
		params.Suffix = openai.String(req.Suffix)
	}
	if req.ValidationFileID != "" {
		params.ValidationFile = openai.String(req.ValidationFileID)
	}
	if req.Seed != 0 {
		params.Seed = openai.Int(req.Seed)
	}
	if req.Epochs > 0 {
		params.Hyperparameters = openai.FineTuningJobNewParamsHyperparameters{
			NEpochs: openai.FineTuningJobNewParamsHyperparametersNEpochsUnion{
				OfInt: openai.Int(req.Epochs),
			},
		}
	}

	job, err := c.client.FineTuning.Jobs.New(ctx, params)
	if err != nil {
		return Job{}, classifyError("create fine-tuning job", err)
	}
	return jobFromOpenAI(job), nil
}

func (c *OpenAIClient) GetJob(ctx context.Context, jobID string) (Job, error) {
	job, err := c.client.FineTuning.Jobs.Get(ctx, jobID)
	if err != nil {
		return Job{}, classifyError("retrieve fine-tuning job", err)
	}
	return jobFromOpenAI(job), nil
}

func (c *OpenAIClient) CancelJob(ctx context.Context, jobID string) (Job, error) {
	job, err := c.client.FineTuning.Jobs.Cancel(ctx, jobID)
	if err != nil {
		return Job{}, classifyError("cancel fine-tuning job", err)
	}
	return jobFromOpenAI(job), nil
}

func (c *OpenAIClient) ListJobs(ctx context.Context, limit int) ([]Job, error) {
	params := openai.FineTuningJobListParams{}
	if limit > 0 {
		params.Limit = openai.Int(int64(limit))
	}
	page, err := c.client.FineTuning.Jobs.List(ctx, params)
	if err != nil {
		return nil, classifyError("list fine-tuning jobs", err)
	}

	jobs := make([]Job, 0, len(page.Data))
	for i := range page.Data {
		jobs = append(jobs, jobFromOpenAI(&page.Data[i]))
	}
	return jobs, nil
}

func (c *OpenAIClient) ListEvents(ctx context.Context, jobID string, limit int) ([]Event, error) {
	params := openai.FineTuningJobListEventsParams{}
	if limit > 0 {
		params.Limit = openai.Int(int64(limit))
	}
	page, err := c.client.FineTuning.Jobs.ListEvents(ctx, jobID, params)
	if err != nil {
		return nil, classifyError("list fine-tuning job events", err)
	}

	events := make([]Event, 0, len(page.Data))
	for _, e := range page.Data {
		events = append(events, Event{
			ID:        e.ID,
			Level:     string(e.Level),
			Message:   e.Message,
			CreatedAt: unixTime(e.CreatedAt),
		})
	}
	return events, nil
}

func jobFromOpenAI(j *openai.FineTuningJob) Job {
	job := Job{
		ID:             j.ID,
		Model:          j.Model,
		Status:         Status(j.Status),
		FineTunedModel: j.FineTunedModel,
		TrainingFile:   j.TrainingFile,
		ValidationFile: j.ValidationFile,
		TrainedTokens:  j.TrainedTokens,
		CreatedAt:      unixTime(j.CreatedAt),
		FinishedAt:     unixTime(j.FinishedAt),
	}
	if j.Error.Code != "" || j.Error.Message != "" {
		job.Error = &JobError{Code: j.Error.Code, Message: j.Error.Message, Param: j.Error.Param}
	}
	return job
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func classifyError(op string, err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var kind error
	switch apiErr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = ErrUnauthorized
	case http.StatusNotFound:
		kind = ErrNotFound
	case http.StatusTooManyRequests:
		kind = ErrRateLimited
	default:
		kind = ErrRemote
	}

	slog.Debug("remote call failed", "op", op, "status_code", apiErr.StatusCode, "error", err)
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}
