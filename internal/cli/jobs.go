package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"rise-finetune/internal/database"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type EventsOptions struct {
	*GlobalOptions

	Limit int
}

func NewCmdEvents(g *GlobalOptions) *cobra.Command {
	o := &EventsOptions{GlobalOptions: g, Limit: defaultLimit}
	cmd := &cobra.Command{
		Use:          "events [JOB_ID|-]",
		Short:        "List the most recent events of a fine-tuning job.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.Run(cmd.Context(), cmd, args)
		},
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *EventsOptions) Bind(fs *pflag.FlagSet) {
	fs.IntVar(&o.Limit, "limit", o.Limit, "Maximum number of events to list.")
}

func (o *EventsOptions) Run(ctx context.Context, cmd *cobra.Command, args []string) error {
	jobID, err := resolveID(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	svc, err := o.RemoteServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	events, err := svc.Tracker.Events(ctx, jobID, o.Limit)
	if err != nil {
		return fmt.Errorf("listing job events: %w", err)
	}

	views := make([]eventView, 0, len(events))
	for _, e := range events {
		views = append(views, newEventView(e))
	}

	return o.printer(cmd).Print(views, func(w io.Writer) error {
		tw := tabwriter.NewWriter(w, 0, 8, 1, '\t', 0)
		fmt.Fprintln(tw, "CREATED\tLEVEL\tMESSAGE")
		for _, e := range views {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", e.CreatedAt, e.Level, e.Message)
		}
		return tw.Flush()
	})
}

type CancelOptions struct {
	*GlobalOptions
}

func NewCmdCancel(g *GlobalOptions) *cobra.Command {
	o := &CancelOptions{GlobalOptions: g}
	cmd := &cobra.Command{
		Use:          "cancel [JOB_ID|-]",
		Short:        "Cancel a fine-tuning job and print its status.",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.Run(cmd.Context(), cmd, args)
		},
	}
	return cmd
}

func (o *CancelOptions) Run(ctx context.Context, cmd *cobra.Command, args []string) error {
	jobID, err := resolveID(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	svc, err := o.RemoteServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	job, err := svc.Tracker.Cancel(ctx, jobID)
	if err != nil {
		return fmt.Errorf("cancelling fine-tuning job: %w", err)
	}

	return o.printer(cmd).Print(newJobView(job), func(w io.Writer) error {
		return writeJobStatus(w, job)
	})
}

type ListOptions struct {
	*GlobalOptions

	Limit  int
	Local  bool
	Status string
}

func NewCmdList(g *GlobalOptions) *cobra.Command {
	o := &ListOptions{GlobalOptions: g, Limit: defaultLimit}
	cmd := &cobra.Command{
		Use:          "list",
		Short:        "List fine-tuning jobs.",
		Args:         cobra.NoArgs,
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

func (o *ListOptions) Bind(fs *pflag.FlagSet) {
	fs.IntVar(&o.Limit, "limit", o.Limit, "Maximum number of jobs to list.")
	fs.BoolVar(&o.Local, "local", o.Local, "List jobs from the local run ledger instead of the remote service.")
	fs.StringVar(&o.Status, "status", o.Status, "Only list ledger jobs with this status. Requires --local.")
}

func (o *ListOptions) Validate(args []string) error {
	if o.Status != "" && !o.Local {
		return fmt.Errorf("--status requires --local")
	}
	return nil
}

func (o *ListOptions) Run(ctx context.Context, cmd *cobra.Command, args []string) error {
	var views []jobView

	if o.Local {
		svc, err := o.Services(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		jobs, err := database.ListJobs(ctx, svc.DB, o.Status, o.Limit)
		if err != nil {
			return err
		}
		for _, j := range jobs {
			views = append(views, newLedgerJobView(j))
		}
	} else {
		svc, err := o.RemoteServices(ctx)
		if err != nil {
			return err
		}
		defer svc.Close()

		jobs, err := svc.Tracker.List(ctx, o.Limit)
		if err != nil {
			return fmt.Errorf("listing fine-tuning jobs: %w", err)
		}
		for _, j := range jobs {
			views = append(views, newJobView(j))
		}
	}

	if views == nil {
		views = []jobView{}
	}

	return o.printer(cmd).Print(views, func(w io.Writer) error {
		tw := tabwriter.NewWriter(w, 0, 8, 1, '\t', 0)
		fmt.Fprintln(tw, "ID\tSTATUS\tMODEL\tFINE_TUNED_MODEL")
		for _, j := range views {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", j.ID, j.Status, j.Model, j.FineTunedModel)
		}
		return tw.Flush()
	})
}
