package dataset_test

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rise-finetune/internal/dataset"
	"rise-finetune/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(t *testing.T) *storage.Provider {
	local, err := storage.NewLocalObjectStore(t.TempDir())
	require.NoError(t, err)
	return storage.NewProvider(local, nil)
}

func writePairs(t *testing.T, n int) string {
	path := filepath.Join(t.TempDir(), "pairs.jsonl")

	var sb strings.Builder
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			fmt.Fprintf(&sb, `{"prompt": "question %d", "completion": "answer %d"}`+"\n", i, i)
		} else {
			fmt.Fprintf(&sb, `{"prompt": "question %d", "completion": {"answer": %d, "tags": ["a", "b"]}}`+"\n", i, i)
		}
	}
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
	return path
}

func readExamples(t *testing.T, path string) []dataset.Example {
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var examples []dataset.Example
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var example dataset.Example
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &example))
		examples = append(examples, example)
	}
	require.NoError(t, scanner.Err())
	return examples
}

func TestPrepare(t *testing.T) {
	provider := newProvider(t)
	outDir := t.TempDir()

	result, err := dataset.Prepare(context.Background(), provider, dataset.PrepareOptions{
		Input:        storage.Location{Key: writePairs(t, 20)},
		OutputDir:    storage.Location{Key: outDir},
		SystemPrompt: "You are RISE.",
		TrainRatio:   0.8,
		Seed:         42,
	})
	require.NoError(t, err)

	assert.Equal(t, 16, result.TrainExamples)
	assert.Equal(t, 4, result.ValidationExamples)
	assert.Equal(t, filepath.Join(outDir, dataset.TrainFileName), result.Train.Key)
	assert.Equal(t, filepath.Join(outDir, dataset.ValidationFileName), result.Validation.Key)

	train := readExamples(t, result.Train.Key)
	validation := readExamples(t, result.Validation.Key)
	require.Len(t, train, 16)
	require.Len(t, validation, 4)

	prompts := map[string]bool{}
	for _, example := range append(train, validation...) {
		require.Len(t, example.Messages, 3)
		assert.Equal(t, dataset.Message{Role: dataset.RoleSystem, Content: "You are RISE."}, example.Messages[0])
		assert.Equal(t, dataset.RoleUser, example.Messages[1].Role)
		assert.Equal(t, dataset.RoleAssistant, example.Messages[2].Role)
		prompts[example.Messages[1].Content] = true

		var i int
		_, err := fmt.Sscanf(example.Messages[1].Content, "question %d", &i)
		require.NoError(t, err)
		if i%2 == 0 {
			assert.Equal(t, fmt.Sprintf("answer %d", i), example.Messages[2].Content)
		} else {
			assert.Equal(t, fmt.Sprintf(`{"answer":%d,"tags":["a","b"]}`, i), example.Messages[2].Content)
		}
	}
	assert.Len(t, prompts, 20)

	report, err := dataset.Validate(strings.NewReader(mustRead(t, result.Train.Key)))
	require.NoError(t, err)
	assert.True(t, report.Valid(), report.Errors)
}

func mustRead(t *testing.T, path string) string {
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestPrepare_SameSeedSameSplit(t *testing.T) {
	provider := newProvider(t)
	input := storage.Location{Key: writePairs(t, 12)}

	run := func() string {
		outDir := t.TempDir()
		result, err := dataset.Prepare(context.Background(), provider, dataset.PrepareOptions{
			Input: input, OutputDir: storage.Location{Key: outDir}, Seed: 7,
		})
		require.NoError(t, err)
		return mustRead(t, result.Train.Key)
	}

	assert.Equal(t, run(), run())
}

func TestPrepare_AllTraining(t *testing.T) {
	provider := newProvider(t)
	outDir := t.TempDir()

	result, err := dataset.Prepare(context.Background(), provider, dataset.PrepareOptions{
		Input: storage.Location{Key: writePairs(t, 5)}, OutputDir: storage.Location{Key: outDir}, TrainRatio: 1, Seed: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, result.TrainExamples)
	assert.Equal(t, 0, result.ValidationExamples)
	assert.Equal(t, storage.Location{}, result.Validation)

	_, err = os.Stat(filepath.Join(outDir, dataset.ValidationFileName))
	assert.True(t, os.IsNotExist(err))
}

func TestPrepare_Errors(t *testing.T) {
	provider := newProvider(t)
	dir := t.TempDir()

	write := func(name, content string) storage.Location {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return storage.Location{Key: path}
	}

	tests := []struct {
		name  string
		input storage.Location
		ratio float64
	}{
		{name: "Empty", input: write("empty.jsonl", "\n\n")},
		{name: "BadJson", input: write("bad.jsonl", "{not json}\n")},
		{name: "MissingCompletion", input: write("missing.jsonl", `{"prompt": "q"}`+"\n")},
		{name: "EmptyPrompt", input: write("prompt.jsonl", `{"prompt": "", "completion": "a"}`+"\n")},
		{name: "MissingInput", input: storage.Location{Key: filepath.Join(dir, "nope.jsonl")}},
		{name: "BadRatio", input: write("ok.jsonl", `{"prompt": "q", "completion": "a"}`+"\n"), ratio: 1.5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := dataset.Prepare(context.Background(), provider, dataset.PrepareOptions{
				Input: tc.input, OutputDir: storage.Location{Key: t.TempDir()}, TrainRatio: tc.ratio, Seed: 1,
			})
			assert.Error(t, err)
		})
	}
}

func TestPrepare_EmptyTrainingSplit(t *testing.T) {
	provider := newProvider(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "pairs.jsonl")
	pairs := strings.Repeat(`{"prompt": "q", "completion": "a"}`+"\n", 3)
	require.NoError(t, os.WriteFile(input, []byte(pairs), 0o644))

	out := t.TempDir()
	_, err := dataset.Prepare(context.Background(), provider, dataset.PrepareOptions{
		Input: storage.Location{Key: input}, OutputDir: storage.Location{Key: out}, TrainRatio: 0.2, Seed: 1,
	})
	assert.ErrorIs(t, err, dataset.ErrEmptyTraining)

	_, statErr := os.Stat(filepath.Join(out, dataset.TrainFileName))
	assert.True(t, os.IsNotExist(statErr))
}

func TestSplit(t *testing.T) {
	examples := make([]dataset.Example, 7)
	for i := range examples {
		examples[i] = dataset.Example{Messages: []dataset.Message{{Role: dataset.RoleUser, Content: fmt.Sprint(i)}}}
	}

	train, validation := dataset.Split(examples, 0.5, 3)
	assert.Len(t, train, 3)
	assert.Len(t, validation, 4)
	assert.Equal(t, "0", examples[0].Messages[0].Content)
}

func TestValidate(t *testing.T) {
	line := `{"messages": [{"role": "user", "content": "hi"}, {"role": "assistant", "content": "hello"}]}`

	t.Run("Valid", func(t *testing.T) {
		report, err := dataset.Validate(strings.NewReader(strings.Repeat(line+"\n", dataset.MinExamples)))
		require.NoError(t, err)
		assert.True(t, report.Valid())
		assert.Equal(t, dataset.MinExamples, report.Examples)
	})

	t.Run("TooFew", func(t *testing.T) {
		report, err := dataset.Validate(strings.NewReader(line + "\n"))
		require.NoError(t, err)
		assert.False(t, report.Valid())
		require.Len(t, report.Errors, 1)
		assert.Equal(t, 0, report.Errors[0].Line)
	})

	t.Run("BadLines", func(t *testing.T) {
		input := strings.Join([]string{
			line,
			`not json`,
			`{"messages": []}`,
			`{"messages": [{"role": "robot", "content": "x"}]}`,
			`{"messages": [{"role": "user", "content": "only a question"}]}`,
			`{"messages": [{"role": "user", "content": ""}, {"role": "assistant", "content": "a"}]}`,
		}, "\n")

		report, err := dataset.Validate(strings.NewReader(input))
		require.NoError(t, err)
		assert.Equal(t, 1, report.Examples)

		lines := []int{}
		for _, e := range report.Errors {
			lines = append(lines, e.Line)
		}
		assert.Equal(t, []int{2, 3, 4, 5, 6, 0}, lines)
	})
}
