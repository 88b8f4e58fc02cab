package finetune

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"rise-finetune/internal/database"
	"rise-finetune/internal/dataset"
	"rise-finetune/internal/storage"

	"github.com/schollz/progressbar/v3"
	"gorm.io/gorm"
)

type Opener interface {
	Open(ctx context.Context, loc storage.Location) (io.ReadCloser, storage.Object, error)
}

type UploadRequest struct {
	// Path is a local file path or an s3://bucket/key location.
	Path    string
	Purpose string
	// Validate checks the file is a well formed chat dataset before sending it.
	Validate bool
}

type Uploader struct {
	client   Client
	files    Opener
	db       *gorm.DB
	progress io.Writer
}

func NewUploader(client Client, files Opener, db *gorm.DB) *Uploader {
	return &Uploader{client: client, files: files, db: db}
}

// WithProgress draws an upload progress bar on w.
func (u *Uploader) WithProgress(w io.Writer) *Uploader {
	u.progress = w
	return u
}

func (u *Uploader) Upload(ctx context.Context, req UploadRequest) (File, error) {
	loc, err := storage.ParseLocation(req.Path)
	if err != nil {
		return File{}, fmt.Errorf("invalid training file path: %w", err)
	}
	if req.Purpose == "" {
		req.Purpose = DefaultPurpose
	}

	if req.Validate {
		if err := u.validate(ctx, loc); err != nil {
			return File{}, err
		}
	}

	reader, obj, err := u.files.Open(ctx, loc)
	if err != nil {
		return File{}, fmt.Errorf("error opening training file %s: %w", loc, err)
	}
	defer reader.Close()

	var data io.Reader = reader
	if u.progress != nil {
		bar := progressbar.NewOptions64(obj.Size,
			progressbar.OptionSetWriter(u.progress),
			progressbar.OptionSetDescription("uploading "+loc.Base()),
			progressbar.OptionShowBytes(true),
			progressbar.OptionSetWidth(30),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
		data = io.TeeReader(reader, bar)
	}

	slog.Info("uploading training file", "source", loc.String(), "bytes", obj.Size, "purpose", req.Purpose)
	file, err := u.client.UploadFile(ctx, loc.Base(), data, req.Purpose)
	if err != nil {
		slog.Error("upload failed", "source", loc.String(), "error", err)
		return File{}, err
	}
	slog.Info("training file uploaded", "file_id", file.ID, "status", file.Status)

	record := database.TrainingFile{
		RemoteId: file.ID,
		Filename: loc.Base(),
		Source:   loc.String(),
		Purpose:  req.Purpose,
		Bytes:    obj.Size,
	}
	if err := database.SaveTrainingFile(ctx, u.db, &record); err != nil {
		slog.Error("training file uploaded but not recorded in the ledger", "file_id", file.ID, "error", err)
	}

	return file, nil
}

func (u *Uploader) validate(ctx context.Context, loc storage.Location) error {
	reader, _, err := u.files.Open(ctx, loc)
	if err != nil {
		return fmt.Errorf("error opening training file %s: %w", loc, err)
	}
	defer reader.Close()

	report, err := dataset.Validate(reader)
	if err != nil {
		return err
	}
	if !report.Valid() {
		msgs := make([]string, 0, len(report.Errors))
		for _, e := range report.Errors {
			msgs = append(msgs, e.String())
		}
		slog.Error("training file failed validation", "source", loc.String(), "errors", len(report.Errors))
		return fmt.Errorf("%w: %s", ErrInvalidDataset, strings.Join(msgs, "; "))
	}
	return nil
}
