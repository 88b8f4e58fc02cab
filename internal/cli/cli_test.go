package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rise-finetune/internal/cli"
	"rise-finetune/internal/config"
	"rise-finetune/internal/database"
	"rise-finetune/internal/finetune"
	"rise-finetune/internal/finetune/remotetest"
	"rise-finetune/internal/messaging"
	"rise-finetune/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
	"gorm.io/gorm"
)

const chatLine = `{"messages": [{"role": "system", "content": "You are RISE."}, {"role": "user", "content": "Summarize the case."}, {"role": "assistant", "content": "{\"risk\":\"medium\"}"}]}`

type harness struct {
	t      *testing.T
	remote *remotetest.Server
	db     *gorm.DB
	files  *storage.Provider
	queue  *messaging.InMemoryQueue
}

func newHarness(t *testing.T, statuses ...string) *harness {
	t.Setenv("APP_DATA_DIR", t.TempDir())
	t.Setenv("OPENAI_API_KEY", remotetest.APIKey)

	db, err := database.NewDatabase(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)

	local, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)

	return &harness{
		t:      t,
		remote: remotetest.NewServer(t, statuses...),
		db:     db,
		files:  storage.NewProvider(local, nil),
		queue:  messaging.NewInMemoryQueue(),
	}
}

func (h *harness) newServices(ctx context.Context, cfg config.Config) (*finetune.Services, error) {
	return finetune.NewServices(h.remote.Client(), h.files, h.db, h.queue, nil, finetune.ServiceConfig{
		BaseModel: cfg.FineTune.BaseModel,
		Suffix:    cfg.FineTune.Suffix,
	}), nil
}

func (h *harness) run(stdin string, args ...string) (string, error) {
	root := cli.NewRootCommand(h.newServices)

	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return stdout.String(), err
}

func (h *harness) trainingFile(lines int) string {
	path := filepath.Join(h.t.TempDir(), "train.jsonl")
	require.NoError(h.t, os.WriteFile(path, []byte(strings.Repeat(chatLine+"\n", lines)), 0o644))
	return path
}

func TestUploadStartTrack(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("", "upload", h.trainingFile(10))
	require.NoError(t, err)
	assert.Equal(t, "file-abc\n", out)

	out, err = h.run("", "start", "file-abc")
	require.NoError(t, err)
	assert.Equal(t, "job-123\n", out)

	requests := h.remote.JobRequests()
	require.Len(t, requests, 1)
	assert.Equal(t, "file-abc", requests[0]["training_file"])
	assert.Equal(t, "gpt-3.5-turbo-0125", requests[0]["model"])
	assert.Equal(t, "rise-v1", requests[0]["suffix"])

	out, err = h.run("", "track", "job-123")
	require.NoError(t, err)
	assert.Equal(t, "status: succeeded\nfine_tuned_model: ft:rise-v1\n", out)
}

func TestPipedIdentifiers(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("file-abc\n", "start", "-")
	require.NoError(t, err)
	assert.Equal(t, "job-123\n", out)
	assert.Equal(t, "file-abc", h.remote.JobRequests()[0]["training_file"])

	out, err = h.run(out, "track", "-")
	require.NoError(t, err)
	assert.Equal(t, "status: succeeded\nfine_tuned_model: ft:rise-v1\n", out)

	_, err = h.run("", "track", "-")
	assert.ErrorIs(t, err, cli.ErrEmptyStdin)
}

func TestLedgerFallback(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("", "start")
	assert.ErrorIs(t, err, finetune.ErrNoFileID)

	_, err = h.run("", "track")
	assert.ErrorIs(t, err, finetune.ErrNoJobID)

	_, err = h.run("", "upload", h.trainingFile(10))
	require.NoError(t, err)

	out, err := h.run("", "start", "--model", "gpt-4o-mini-2024-07-18", "--suffix", "rise-v2", "--epochs", "2")
	require.NoError(t, err)
	assert.Equal(t, "job-123\n", out)

	requests := h.remote.JobRequests()
	require.Len(t, requests, 1)
	assert.Equal(t, "file-abc", requests[0]["training_file"])
	assert.Equal(t, "gpt-4o-mini-2024-07-18", requests[0]["model"])
	assert.Equal(t, "rise-v2", requests[0]["suffix"])

	out, err = h.run("", "track")
	require.NoError(t, err)
	assert.Equal(t, "status: succeeded\nfine_tuned_model: ft:rise-v1\n", out)
}

func TestAuthFailurePrintsNothing(t *testing.T) {
	h := newHarness(t)
	h.remote.RejectAuth()

	for _, args := range [][]string{
		{"upload", h.trainingFile(10)},
		{"start", "file-abc"},
		{"track", "job-123"},
	} {
		out, err := h.run("", args...)
		assert.ErrorIs(t, err, finetune.ErrUnauthorized, args[0])
		assert.Empty(t, out, args[0])
	}
}

func TestMissingAPIKey(t *testing.T) {
	h := newHarness(t)
	t.Setenv("OPENAI_API_KEY", "")

	out, err := h.run("", "track", "job-123")
	assert.ErrorIs(t, err, config.ErrMissingAPIKey)
	assert.Empty(t, out)
	assert.Equal(t, 0, h.remote.Polls())
}

func TestOutputFormats(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("", "track", "job-123", "-o", "json")
	require.NoError(t, err)

	var job map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &job))
	assert.Equal(t, "job-123", job["id"])
	assert.Equal(t, "succeeded", job["status"])
	assert.Equal(t, "ft:rise-v1", job["fine_tuned_model"])

	out, err = h.run("", "start", "file-abc", "--output", "yaml")
	require.NoError(t, err)

	var started map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &started))
	assert.Equal(t, "job-123", started["id"])
	assert.Equal(t, "validating_files", started["status"])

	_, err = h.run("", "track", "job-123", "-o", "xml")
	assert.Error(t, err)
}

func TestWatch(t *testing.T) {
	h := newHarness(t, "queued", "running", "running", "succeeded")

	out, err := h.run("", "watch", "job-123", "--interval", "1ms")
	require.NoError(t, err)
	assert.Equal(t, "status: queued\nstatus: running\nstatus: succeeded\nfine_tuned_model: ft:rise-v1\n", out)
	assert.Len(t, h.queue.Tasks(), 3)
}

func TestWatchFailedJob(t *testing.T) {
	h := newHarness(t, "running", "failed")

	out, err := h.run("", "watch", "job-123", "--interval", "1ms")
	assert.Error(t, err)
	assert.Contains(t, out, "status: failed\n")
	assert.Contains(t, out, "error: invalid_training_file: Training file has too few examples\n")
}

func TestEventsCancelList(t *testing.T) {
	h := newHarness(t, "running")

	out, err := h.run("", "events", "job-123")
	require.NoError(t, err)
	assert.Contains(t, out, "The job has successfully completed")
	assert.Contains(t, out, "Validating training file: file-abc")

	out, err = h.run("", "cancel", "job-123")
	require.NoError(t, err)
	assert.Equal(t, "status: cancelled\n", out)

	out, err = h.run("", "list", "-o", "json")
	require.NoError(t, err)
	var jobs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &jobs))
	require.Len(t, jobs, 2)
	assert.Equal(t, "job-123", jobs[0]["id"])

	out, err = h.run("", "list", "--local", "--status", "cancelled")
	require.NoError(t, err)
	assert.Contains(t, out, "job-123")

	_, err = h.run("", "list", "--status", "cancelled")
	assert.Error(t, err)
}

func TestPrepareAndValidate(t *testing.T) {
	h := newHarness(t)

	var pairs strings.Builder
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&pairs, `{"prompt": "case %d", "completion": {"risk": "low", "id": %d}}`+"\n", i, i)
	}
	input := filepath.Join(t.TempDir(), "pairs.jsonl")
	require.NoError(t, os.WriteFile(input, []byte(pairs.String()), 0o644))
	outDir := t.TempDir()

	out, err := h.run("", "prepare", input, "--out", outDir, "--system-prompt", "You are RISE.", "--seed", "11")
	require.NoError(t, err)
	train := filepath.Join(outDir, "train.jsonl")
	assert.Equal(t, train+"\n"+filepath.Join(outDir, "validation.jsonl")+"\n", out)

	out, err = h.run("", "validate", train)
	require.NoError(t, err)
	assert.Equal(t, "20 valid examples\n", out)

	out, err = h.run("", "validate", filepath.Join(outDir, "validation.jsonl"))
	assert.ErrorIs(t, err, finetune.ErrInvalidDataset)
	assert.Contains(t, out, "5 valid examples")

	_, err = h.run("", "prepare", input, "--train-ratio", "0")
	assert.Error(t, err)
}
