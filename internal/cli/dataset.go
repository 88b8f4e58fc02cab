package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"rise-finetune/internal/dataset"
	"rise-finetune/internal/finetune"
	"rise-finetune/internal/storage"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type PrepareOptions struct {
	*GlobalOptions

	OutputDir    string
	SystemPrompt string
	TrainRatio   float64
	Seed         int64
}

func NewCmdPrepare(g *GlobalOptions) *cobra.Command {
	o := &PrepareOptions{GlobalOptions: g, OutputDir: ".", TrainRatio: dataset.DefaultTrainRatio}
	cmd := &cobra.Command{
		Use:   "prepare INPUT",
		Short: "Turn prompt/completion pairs into chat training and validation files.",
		Long: `Turn prompt/completion pairs into chat training and validation files.

INPUT holds one {"prompt": ..., "completion": ...} object per line. Completions may be
strings or JSON values. The examples are shuffled and split into train.jsonl and
validation.jsonl under --out, whose paths are printed one per line.`,
		Example:      "prepare pairs.jsonl --out data --system-prompt \"You are RISE.\"\nprepare s3://datasets/pairs.jsonl --out s3://datasets/rise-v1/",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Validate(args); err != nil {
				return err
			}
			return o.Run(cmd.Context(), cmd, args)
		},
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *PrepareOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&o.OutputDir, "out", o.OutputDir, "Directory or s3:// prefix to write the split files to.")
	fs.StringVar(&o.SystemPrompt, "system-prompt", o.SystemPrompt, "System message added to every example.")
	fs.Float64Var(&o.TrainRatio, "train-ratio", o.TrainRatio, "Share of examples that go to the training file.")
	fs.Int64Var(&o.Seed, "seed", o.Seed, "Shuffle seed. Random when unset.")
}

func (o *PrepareOptions) Validate(args []string) error {
	if o.TrainRatio <= 0 || o.TrainRatio > 1 {
		return fmt.Errorf("train ratio must be in (0, 1], got %v", o.TrainRatio)
	}
	return nil
}

func (o *PrepareOptions) Run(ctx context.Context, cmd *cobra.Command, args []string) error {
	input, err := storage.ParseLocation(args[0])
	if err != nil {
		return err
	}
	outDir, err := storage.ParseLocation(o.OutputDir)
	if err != nil {
		return err
	}

	svc, err := o.Services(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	result, err := dataset.Prepare(ctx, svc.Files, dataset.PrepareOptions{
		Input:        input,
		OutputDir:    outDir,
		SystemPrompt: o.SystemPrompt,
		TrainRatio:   o.TrainRatio,
		Seed:         o.Seed,
	})
	if err != nil {
		return fmt.Errorf("preparing dataset: %w", err)
	}

	view := struct {
		Train              string `json:"train" yaml:"train"`
		Validation         string `json:"validation,omitempty" yaml:"validation,omitempty"`
		TrainExamples      int    `json:"train_examples" yaml:"train_examples"`
		ValidationExamples int    `json:"validation_examples" yaml:"validation_examples"`
	}{
		Train:              result.Train.String(),
		TrainExamples:      result.TrainExamples,
		ValidationExamples: result.ValidationExamples,
	}
	if result.ValidationExamples > 0 {
		view.Validation = result.Validation.String()
	}

	return o.printer(cmd).Print(view, func(w io.Writer) error {
		if _, err := fmt.Fprintln(w, view.Train); err != nil {
			return err
		}
		if view.Validation != "" {
			_, err := fmt.Fprintln(w, view.Validation)
			return err
		}
		return nil
	})
}

type ValidateOptions struct {
	*GlobalOptions
}

func NewCmdValidate(g *GlobalOptions) *cobra.Command {
	o := &ValidateOptions{GlobalOptions: g}
	cmd := &cobra.Command{
		Use:          "validate PATH",
		Short:        "Check that a chat training file is well formed.",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.Run(cmd.Context(), cmd, args)
		},
	}
	return cmd
}

func (o *ValidateOptions) Run(ctx context.Context, cmd *cobra.Command, args []string) error {
	loc, err := storage.ParseLocation(args[0])
	if err != nil {
		return err
	}

	svc, err := o.Services(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	reader, _, err := svc.Files.Open(ctx, loc)
	if err != nil {
		return fmt.Errorf("opening %s: %w", loc, err)
	}
	defer reader.Close()

	report, err := dataset.Validate(reader)
	if err != nil {
		return err
	}

	messages := make([]string, 0, len(report.Errors))
	for _, e := range report.Errors {
		messages = append(messages, e.String())
	}
	view := struct {
		Examples int      `json:"examples" yaml:"examples"`
		Valid    bool     `json:"valid" yaml:"valid"`
		Errors   []string `json:"errors" yaml:"errors"`
	}{Examples: report.Examples, Valid: report.Valid(), Errors: messages}

	err = o.printer(cmd).Print(view, func(w io.Writer) error {
		for _, m := range messages {
			if _, err := fmt.Fprintln(w, m); err != nil {
				return err
			}
		}
		_, err := fmt.Fprintf(w, "%d valid examples\n", report.Examples)
		return err
	})
	if err != nil {
		return err
	}

	if !report.Valid() {
		return fmt.Errorf("%w: %s", finetune.ErrInvalidDataset, strings.Join(messages, "; "))
	}
	return nil
}
