package cli

import (
	"context"
	"fmt"
	"io"

	"rise-finetune/internal/finetune"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type UploadOptions struct {
	*GlobalOptions

	Purpose         string
	ValidateDataset bool
	Progress        bool
}

func NewCmdUpload(g *GlobalOptions) *cobra.Command {
	o := &UploadOptions{GlobalOptions: g}
	cmd := &cobra.Command{
		Use:          "upload PATH",
		Short:        "Upload a training file and print its file id.",
		Example:      "upload data/train.jsonl\nupload s3://datasets/rise/train.jsonl --validate",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.Run(cmd.Context(), cmd, args)
		},
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *UploadOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&o.Purpose, "purpose", o.Purpose, "Purpose tag sent with the file. Defaults to FINETUNE_PURPOSE.")
	fs.BoolVar(&o.ValidateDataset, "validate", o.ValidateDataset, "Check the file is a valid chat dataset before uploading.")
	fs.BoolVar(&o.Progress, "progress", o.Progress, "Show a progress bar on stderr.")
}

func (o *UploadOptions) Run(ctx context.Context, cmd *cobra.Command, args []string) error {
	svc, err := o.RemoteServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	purpose := o.Purpose
	if purpose == "" {
		purpose = o.Config.FineTune.Purpose
	}

	uploader := svc.Uploader
	if o.Progress {
		uploader = uploader.WithProgress(cmd.ErrOrStderr())
	}

	file, err := uploader.Upload(ctx, finetune.UploadRequest{
		Path:     args[0],
		Purpose:  purpose,
		Validate: o.ValidateDataset,
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", args[0], err)
	}

	return o.printer(cmd).Print(newFileView(file), func(w io.Writer) error {
		_, err := fmt.Fprintln(w, file.ID)
		return err
	})
}
