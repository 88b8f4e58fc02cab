package cli

import (
	"context"
	"fmt"
	"io"

	"rise-finetune/internal/finetune"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type StartOptions struct {
	*GlobalOptions

	Model            string
	Suffix           string
	ValidationFileID string
	Epochs           int64
	Seed             int64
}

func NewCmdStart(g *GlobalOptions) *cobra.Command {
	o := &StartOptions{GlobalOptions: g}
	cmd := &cobra.Command{
		Use:   "start [FILE_ID|-]",
		Short: "Start a fine-tuning job on an uploaded file and print the job id.",
		Long: `Start a fine-tuning job on an uploaded file and print the job id.

With "-" the file id is read from stdin. Without an argument the most recently
uploaded file is used.`,
		Example:      "start file-abc\nfinetune upload train.jsonl | finetune start -",
		Args:         cobra.MaximumNArgs(1),
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

func (o *StartOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&o.Model, "model", o.Model, "Base model to fine-tune. Defaults to FINETUNE_BASE_MODEL.")
	fs.StringVar(&o.Suffix, "suffix", o.Suffix, "Suffix added to the fine-tuned model name. Defaults to FINETUNE_SUFFIX.")
	fs.StringVar(&o.ValidationFileID, "validation-file", o.ValidationFileID, "Id of an uploaded validation file.")
	fs.Int64Var(&o.Epochs, "epochs", o.Epochs, "Number of training epochs. The remote service picks one when unset.")
	fs.Int64Var(&o.Seed, "seed", o.Seed, "Seed for reproducible training.")
}

func (o *StartOptions) Validate(args []string) error {
	if o.Epochs < 0 {
		return fmt.Errorf("epochs must not be negative")
	}
	return nil
}

func (o *StartOptions) Run(ctx context.Context, cmd *cobra.Command, args []string) error {
	fileID, err := resolveID(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	svc, err := o.RemoteServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	job, err := svc.Starter.Start(ctx, finetune.JobRequest{
		FileID:           fileID,
		Model:            o.Model,
		Suffix:           o.Suffix,
		ValidationFileID: o.ValidationFileID,
		Epochs:           o.Epochs,
		Seed:             o.Seed,
	})
	if err != nil {
		return fmt.Errorf("starting fine-tuning job: %w", err)
	}

	return o.printer(cmd).Print(newJobView(job), func(w io.Writer) error {
		_, err := fmt.Fprintln(w, job.ID)
		return err
	})
}
