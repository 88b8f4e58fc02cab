//go:build integration

package integrationtests

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rise-finetune/internal/database"
	"rise-finetune/internal/dataset"
	"rise-finetune/internal/finetune"
	"rise-finetune/internal/finetune/remotetest"
	"rise-finetune/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bucket = "datasets"

func TestS3ObjectStore(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store := createS3Store(t, ctx)
	require.NoError(t, store.CreateBucket(ctx, bucket))
	require.NoError(t, store.CreateBucket(ctx, bucket), "creating an existing bucket is not an error")

	content := []byte(`{"prompt": "q", "completion": "a"}` + "\n")
	require.NoError(t, store.PutObject(ctx, bucket, "raw/pairs.jsonl", bytes.NewReader(content)))

	reader, obj, err := store.GetObject(ctx, bucket, "raw/pairs.jsonl")
	require.NoError(t, err)
	data, err := io.ReadAll(reader)
	reader.Close()
	require.NoError(t, err)
	assert.Equal(t, content, data)
	assert.Equal(t, int64(len(content)), obj.Size)

	_, _, err = store.GetObject(ctx, bucket, "raw/missing.jsonl")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)

	objects, err := store.ListObjects(ctx, bucket, "raw/")
	require.NoError(t, err)
	assert.Equal(t, []storage.Object{{Name: "raw/pairs.jsonl", Size: int64(len(content))}}, objects)
}

func TestPrepareAndUploadFromS3(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store := createS3Store(t, ctx)
	require.NoError(t, store.CreateBucket(ctx, bucket))

	var pairs strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&pairs, `{"prompt": "case %d", "completion": {"risk": "high"}}`+"\n", i)
	}
	require.NoError(t, store.PutObject(ctx, bucket, "raw/pairs.jsonl", strings.NewReader(pairs.String())))

	local, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)
	provider := storage.NewProvider(local, func() (storage.ObjectStore, error) { return store, nil })

	result, err := dataset.Prepare(ctx, provider, dataset.PrepareOptions{
		Input:     storage.Location{Bucket: bucket, Key: "raw/pairs.jsonl"},
		OutputDir: storage.Location{Bucket: bucket, Key: "rise-v1/"},
		Seed:      5,
	})
	require.NoError(t, err)
	assert.Equal(t, "s3://datasets/rise-v1/train.jsonl", result.Train.String())
	assert.Equal(t, 16, result.TrainExamples)

	remote := remotetest.NewServer(t)
	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)

	file, err := finetune.NewUploader(remote.Client(), provider, db).Upload(ctx, finetune.UploadRequest{
		Path:     result.Train.String(),
		Validate: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "file-abc", file.ID)

	uploads := remote.Uploads()
	require.Len(t, uploads, 1)
	assert.Equal(t, "train.jsonl", uploads[0].Filename)
	assert.Equal(t, 16, strings.Count(uploads[0].Content, "\n"))
}
