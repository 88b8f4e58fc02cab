// Package remotetest runs a local stand-in for the remote fine-tuning API.
package remotetest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"rise-finetune/internal/finetune"

	"github.com/go-chi/chi/v5"
)

const (
	APIKey         = "test-key"
	FileID         = "file-abc"
	JobID          = "job-123"
	FineTunedModel = "ft:rise-v1"
)

type Upload struct {
	Filename string
	Purpose  string
	Content  string
}

type Server struct {
	*httptest.Server

	mu          sync.Mutex
	rejectAuth  bool
	uploads     []Upload
	jobRequests []map[string]any
	statuses    []string
	polls       int
	cancelled   bool
}

// NewServer starts a stand-in whose job moves through statuses on successive
// retrievals. The last status repeats once reached.
func NewServer(t *testing.T, statuses ...string) *Server {
	if len(statuses) == 0 {
		statuses = []string{"succeeded"}
	}
	s := &Server{statuses: statuses}

	r := chi.NewRouter()
	r.Use(s.auth)
	r.Post("/files", s.uploadFile)
	r.Route("/fine_tuning/jobs", func(r chi.Router) {
		r.Post("/", s.createJob)
		r.Get("/", s.listJobs)
		r.Get("/{job_id}", s.getJob)
		r.Get("/{job_id}/events", s.listEvents)
		r.Post("/{job_id}/cancel", s.cancelJob)
	})

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// Client returns a real client pointed at the stand-in, without retries.
func (s *Server) Client() *finetune.OpenAIClient {
	return finetune.NewOpenAIClient(finetune.OpenAIConfig{
		APIKey:     APIKey,
		BaseURL:    s.URL + "/",
		MaxRetries: 0,
		Timeout:    5 * time.Second,
	})
}

// RejectAuth makes every following request fail with 401.
func (s *Server) RejectAuth() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectAuth = true
}

func (s *Server) Uploads() []Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Upload(nil), s.uploads...)
}

func (s *Server) JobRequests() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.jobRequests...)
}

func (s *Server) Polls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		reject := s.rejectAuth
		s.mu.Unlock()

		if reject || r.Header.Get("Authorization") != "Bearer "+APIKey {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"error": map[string]any{
					"message": "Incorrect API key provided",
					"type":    "invalid_request_error",
					"code":    "invalid_api_key",
				},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) uploadFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	upload := Upload{Filename: header.Filename, Purpose: r.FormValue("purpose"), Content: string(content)}
	s.mu.Lock()
	s.uploads = append(s.uploads, upload)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"id":         FileID,
		"object":     "file",
		"bytes":      len(content),
		"created_at": time.Now().Unix(),
		"filename":   upload.Filename,
		"purpose":    upload.Purpose,
		"status":     "processed",
	})
}

func (s *Server) createJob(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.jobRequests = append(s.jobRequests, body)
	s.mu.Unlock()

	model, _ := body["model"].(string)
	trainingFile, _ := body["training_file"].(string)
	writeJSON(w, http.StatusOK, job(JobID, model, trainingFile, "validating_files"))
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "job_id") != JobID {
		notFound(w, chi.URLParam(r, "job_id"))
		return
	}

	s.mu.Lock()
	status := s.statuses[min(s.polls, len(s.statuses)-1)]
	if s.cancelled {
		status = "cancelled"
	}
	s.polls++
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, job(JobID, finetune.DefaultBaseModel, FileID, status))
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "job_id") != JobID {
		notFound(w, chi.URLParam(r, "job_id"))
		return
	}

	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, job(JobID, finetune.DefaultBaseModel, FileID, "cancelled"))
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"object":   "list",
		"has_more": false,
		"data": []any{
			job(JobID, finetune.DefaultBaseModel, FileID, "succeeded"),
			job("job-122", finetune.DefaultBaseModel, FileID, "failed"),
		},
	})
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "job_id") != JobID {
		notFound(w, chi.URLParam(r, "job_id"))
		return
	}

	now := time.Now().Unix()
	writeJSON(w, http.StatusOK, map[string]any{
		"object":   "list",
		"has_more": false,
		"data": []any{
			map[string]any{"id": "ftevent-2", "object": "fine_tuning.job.event", "created_at": now, "level": "info", "message": "The job has successfully completed"},
			map[string]any{"id": "ftevent-1", "object": "fine_tuning.job.event", "created_at": now - 60, "level": "info", "message": "Validating training file: " + FileID},
		},
	})
}

func job(id, model, trainingFile, status string) map[string]any {
	j := map[string]any{
		"id":               id,
		"object":           "fine_tuning.job",
		"created_at":       time.Now().Add(-time.Hour).Unix(),
		"model":            model,
		"organization_id":  "org-test",
		"status":           status,
		"training_file":    trainingFile,
		"validation_file":  nil,
		"fine_tuned_model": nil,
		"finished_at":      nil,
		"error":            nil,
		"result_files":     []string{},
		"seed":             42,
		"trained_tokens":   nil,
		"hyperparameters":  map[string]any{"n_epochs": "auto"},
	}
	switch status {
	case "succeeded":
		j["fine_tuned_model"] = FineTunedModel
		j["finished_at"] = time.Now().Unix()
		j["trained_tokens"] = 12345
	case "failed":
		j["finished_at"] = time.Now().Unix()
		j["error"] = map[string]any{"code": "invalid_training_file", "message": "Training file has too few examples", "param": "training_file"}
	}
	return j
}

func notFound(w http.ResponseWriter, id string) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf("Could not find fine-tune job: %s", id),
			"type":    "invalid_request_error",
			"code":    "fine_tune_not_found",
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
