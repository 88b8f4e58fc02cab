package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"rise-finetune/internal/finetune"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type TrackOptions struct {
	*GlobalOptions
}

func NewCmdTrack(g *GlobalOptions) *cobra.Command {
	o := &TrackOptions{GlobalOptions: g}
	cmd := &cobra.Command{
		Use:   "track [JOB_ID|-]",
		Short: "Print the status of a fine-tuning job and its fine-tuned model.",
		Long: `Print the status of a fine-tuning job and, once it has one, the fine-tuned model.

With "-" the job id is read from stdin. Without an argument the most recently
started job is used.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.Run(cmd.Context(), cmd, args)
		},
	}
	return cmd
}

func (o *TrackOptions) Run(ctx context.Context, cmd *cobra.Command, args []string) error {
	jobID, err := resolveID(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	svc, err := o.RemoteServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	job, err := svc.Tracker.Track(ctx, jobID)
	if err != nil {
		return fmt.Errorf("tracking fine-tuning job: %w", err)
	}

	return o.printer(cmd).Print(newJobView(job), func(w io.Writer) error {
		return writeJobStatus(w, job)
	})
}

type WatchOptions struct {
	*GlobalOptions

	Interval time.Duration
}

func NewCmdWatch(g *GlobalOptions) *cobra.Command {
	o := &WatchOptions{GlobalOptions: g}
	cmd := &cobra.Command{
		Use:   "watch [JOB_ID|-]",
		Short: "Poll a fine-tuning job until it finishes.",
		Long: `Poll a fine-tuning job until it finishes, printing each status change.

Status changes are published to RABBITMQ_URL when set, and the final status is
posted to WEBHOOK_URL when set. The command fails unless the job succeeds.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.Run(cmd.Context(), cmd, args)
		},
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *WatchOptions) Bind(fs *pflag.FlagSet) {
	fs.DurationVar(&o.Interval, "interval", o.Interval, "Time between status checks. Defaults to POLL_INTERVAL.")
}

func (o *WatchOptions) Run(ctx context.Context, cmd *cobra.Command, args []string) error {
	jobID, err := resolveID(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	interval := o.Interval
	if interval <= 0 {
		interval = o.Config.FineTune.PollInterval
	}

	svc, err := o.RemoteServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	out := cmd.OutOrStdout()
	var onUpdate func(finetune.Job)
	if o.Output == textFormat {
		onUpdate = func(job finetune.Job) {
			fmt.Fprintf(out, "status: %s\n", job.Status)
		}
	}

	job, err := svc.Tracker.Watch(ctx, jobID, interval, onUpdate)
	if err != nil {
		return fmt.Errorf("watching fine-tuning job: %w", err)
	}

	err = o.printer(cmd).Print(newJobView(job), func(w io.Writer) error {
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
	})
	if err != nil {
		return err
	}

	if job.Status != finetune.StatusSucceeded {
		return fmt.Errorf("job %s finished with status %s", job.ID, job.Status)
	}
	return nil
}
