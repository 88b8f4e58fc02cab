package dataset

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"rise-finetune/internal/storage"
)

var (
	ErrNoExamples    = errors.New("no examples found in input")
	ErrEmptyTraining = errors.New("train ratio leaves no training examples")
)

type Store interface {
	Open(ctx context.Context, loc storage.Location) (io.ReadCloser, storage.Object, error)

	Put(ctx context.Context, loc storage.Location, data io.Reader) error
}

type PrepareOptions struct {
	Input        storage.Location
	OutputDir    storage.Location
	SystemPrompt string
	TrainRatio   float64
	// Seed makes the shuffle reproducible; zero picks a random seed.
	Seed int64
}

type PrepareResult struct {
	Train              storage.Location
	Validation         storage.Location
	TrainExamples      int
	ValidationExamples int
}

// Prepare turns prompt/completion pairs into chat examples, shuffles them and splits
// them into a training and a validation file.
func Prepare(ctx context.Context, store Store, opts PrepareOptions) (PrepareResult, error) {
	if opts.TrainRatio == 0 {
		opts.TrainRatio = DefaultTrainRatio
	}
	if opts.TrainRatio < 0 || opts.TrainRatio > 1 {
		return PrepareResult{}, fmt.Errorf("train ratio must be in (0, 1], got %v", opts.TrainRatio)
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}

	reader, _, err := store.Open(ctx, opts.Input)
	if err != nil {
		return PrepareResult{}, fmt.Errorf("error opening input %s: %w", opts.Input, err)
	}
	defer reader.Close()

	examples, err := ReadPairs(reader, opts.SystemPrompt)
	if err != nil {
		return PrepareResult{}, err
	}
	if len(examples) == 0 {
		return PrepareResult{}, ErrNoExamples
	}
	if len(examples) < MinExamples {
		slog.Warn("few examples found, the remote service may reject the training file", "examples", len(examples), "minimum", MinExamples)
	}

	train, validation := Split(examples, opts.TrainRatio, opts.Seed)
	if len(train) == 0 {
		return PrepareResult{}, fmt.Errorf("%w: %d examples at ratio %v", ErrEmptyTraining, len(examples), opts.TrainRatio)
	}

	result := PrepareResult{
		Train:              opts.OutputDir.Join(TrainFileName),
		TrainExamples:      len(train),
		ValidationExamples: len(validation),
	}
	if err := writeExamples(ctx, store, result.Train, train); err != nil {
		return PrepareResult{}, err
	}

	if len(validation) > 0 {
		result.Validation = opts.OutputDir.Join(ValidationFileName)
		if err := writeExamples(ctx, store, result.Validation, validation); err != nil {
			return PrepareResult{}, err
		}
	}

	slog.Info("prepared fine-tuning dataset", "total", len(examples), "train", len(train), "validation", len(validation), "seed", opts.Seed)
	return result, nil
}

// ReadPairs parses one Pair per line and converts each to a chat Example.
func ReadPairs(r io.Reader, systemPrompt string) ([]Example, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var examples []Example
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var pair Pair
		if err := json.Unmarshal([]byte(text), &pair); err != nil {
			return nil, fmt.Errorf("line %d: invalid json: %w", line, err)
		}

		example, err := toExample(pair, systemPrompt)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		examples = append(examples, example)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading input: %w", err)
	}

	return examples, nil
}

func toExample(pair Pair, systemPrompt string) (Example, error) {
	if strings.TrimSpace(pair.Prompt) == "" {
		return Example{}, fmt.Errorf("empty prompt")
	}

	completion, err := completionText(pair.Completion)
	if err != nil {
		return Example{}, err
	}

	messages := make([]Message, 0, 3)
	if systemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: systemPrompt})
	}
	messages = append(messages,
		Message{Role: RoleUser, Content: pair.Prompt},
		Message{Role: RoleAssistant, Content: completion},
	)
	return Example{Messages: messages}, nil
}

func completionText(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", fmt.Errorf("missing completion")
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", fmt.Errorf("invalid completion string: %w", err)
		}
		if s == "" {
			return "", fmt.Errorf("empty completion")
		}
		return s, nil
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return "", fmt.Errorf("invalid completion json: %w", err)
	}
	return buf.String(), nil
}

// Split shuffles a copy of examples and cuts it at floor(len*ratio).
func Split(examples []Example, ratio float64, seed int64) ([]Example, []Example) {
	shuffled := make([]Example, len(examples))
	copy(shuffled, examples)

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	cut := int(float64(len(shuffled)) * ratio)
	return shuffled[:cut], shuffled[cut:]
}

func writeExamples(ctx context.Context, store Store, loc storage.Location, examples []Example) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	for _, example := range examples {
		if err := encoder.Encode(example); err != nil {
			return fmt.Errorf("error encoding example: %w", err)
		}
	}

	if err := store.Put(ctx, loc, &buf); err != nil {
		return fmt.Errorf("error writing %s: %w", loc, err)
	}
	return nil
}
