package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"rise-finetune/internal/database"
	"rise-finetune/internal/finetune"

	"gopkg.in/yaml.v2"
)

type printer struct {
	w      io.Writer
	format string
}

// Print writes v as json or yaml, or calls text for the plain text format.
func (p *printer) Print(v any, text func(w io.Writer) error) error {
	switch p.format {
	case jsonFormat:
		encoder := json.NewEncoder(p.w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(v); err != nil {
			return fmt.Errorf("marshalling output: %w", err)
		}
		return nil
	case yamlFormat:
		marshalled, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshalling output: %w", err)
		}
		_, err = p.w.Write(marshalled)
		return err
	default:
		return text(p.w)
	}
}

type fileView struct {
	ID        string `json:"id" yaml:"id"`
	Filename  string `json:"filename,omitempty" yaml:"filename,omitempty"`
	Bytes     int64  `json:"bytes" yaml:"bytes"`
	Purpose   string `json:"purpose" yaml:"purpose"`
	Status    string `json:"status,omitempty" yaml:"status,omitempty"`
	CreatedAt string `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

func newFileView(f finetune.File) fileView {
	return fileView{
		ID:        f.ID,
		Filename:  f.Filename,
		Bytes:     f.Bytes,
		Purpose:   f.Purpose,
		Status:    f.Status,
		CreatedAt: formatTime(f.CreatedAt),
	}
}

type jobView struct {
	ID             string `json:"id" yaml:"id"`
	Model          string `json:"model" yaml:"model"`
	Status         string `json:"status" yaml:"status"`
	FineTunedModel string `json:"fine_tuned_model,omitempty" yaml:"fine_tuned_model,omitempty"`
	TrainingFile   string `json:"training_file" yaml:"training_file"`
	ValidationFile string `json:"validation_file,omitempty" yaml:"validation_file,omitempty"`
	TrainedTokens  int64  `json:"trained_tokens,omitempty" yaml:"trained_tokens,omitempty"`
	CreatedAt      string `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	FinishedAt     string `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Error          string `json:"error,omitempty" yaml:"error,omitempty"`
}

func newJobView(j finetune.Job) jobView {
	v := jobView{
		ID:             j.ID,
		Model:          j.Model,
		Status:         string(j.Status),
		FineTunedModel: j.FineTunedModel,
		TrainingFile:   j.TrainingFile,
		ValidationFile: j.ValidationFile,
		TrainedTokens:  j.TrainedTokens,
		CreatedAt:      formatTime(j.CreatedAt),
		FinishedAt:     formatTime(j.FinishedAt),
	}
	if j.Error != nil {
		v.Error = j.Error.Error()
	}
	return v
}

func newLedgerJobView(j database.FineTuneJob) jobView {
	v := jobView{
		ID:             j.RemoteId,
		Model:          j.BaseModel,
		Status:         j.Status,
		FineTunedModel: j.FineTunedModel.String,
		TrainingFile:   j.TrainingFileId,
		ValidationFile: j.ValidationFileId.String,
		CreatedAt:      formatTime(j.CreationTime),
		Error:          j.Error.String,
	}
	if j.CompletionTime.Valid {
		v.FinishedAt = formatTime(j.CompletionTime.Time)
	}
	return v
}

type eventView struct {
	ID        string `json:"id" yaml:"id"`
	Level     string `json:"level" yaml:"level"`
	Message   string `json:"message" yaml:"message"`
	CreatedAt string `json:"created_at" yaml:"created_at"`
}

func newEventView(e finetune.Event) eventView {
	return eventView{ID: e.ID, Level: e.Level, Message: e.Message, CreatedAt: formatTime(e.CreatedAt)}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// writeJobStatus prints the status line and, once there is one, the fine-tuned model.
func writeJobStatus(w io.Writer, job finetune.Job) error {
	if _, err := fmt.Fprintf(w, "status: %s\n", job.Status); err != nil {
		return err
	}
	if job.FineTunedModel != "" {
		if _, err := fmt.Fprintf(w, "fine_tuned_model: %s\n", job.FineTunedModel); err != nil {
			return err
		}
	}
	if job.Error != nil {
		if _, err := fmt.Fprintf(w, "error: %s\n", job.Error.Error()); err != nil {
			return err
		}
	}
	return nil
}
