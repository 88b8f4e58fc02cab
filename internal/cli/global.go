package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"rise-finetune/internal/config"
	"rise-finetune/internal/finetune"
	"rise-finetune/internal/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/thoas/go-funk"
)

const (
	textFormat = "text"
	jsonFormat = "json"
	yamlFormat = "yaml"

	// stdinArg in place of an identifier reads it from the first line of stdin.
	stdinArg = "-"

	defaultLimit = 20
)

var (
	legalOutputTypes = []string{textFormat, jsonFormat, yamlFormat}

	ErrEmptyStdin = errors.New("expected an identifier on stdin")
)

// ServicesFactory builds the services for one command run from the loaded config.
type ServicesFactory func(ctx context.Context, cfg config.Config) (*finetune.Services, error)

type GlobalOptions struct {
	EnvFile string
	Output  string

	Config      config.Config
	newServices ServicesFactory
}

func DefaultGlobalOptions(factory ServicesFactory) *GlobalOptions {
	return &GlobalOptions{
		Output:      textFormat,
		newServices: factory,
	}
}

func (o *GlobalOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&o.EnvFile, "env", o.EnvFile, "Path to an env file to load. Defaults to .env in the working directory if present.")
	fs.StringVarP(&o.Output, "output", "o", o.Output, fmt.Sprintf("Output format. One of: (%s).", strings.Join(legalOutputTypes, ", ")))
}

// Complete loads the environment and installs the logger. Logs go to the command's
// error stream so that its output stream carries only results.
func (o *GlobalOptions) Complete(cmd *cobra.Command, args []string) error {
	if err := config.LoadEnvFile(o.EnvFile); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	o.Config = cfg

	logging.Setup(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	return nil
}

func (o *GlobalOptions) Validate(args []string) error {
	if !funk.Contains(legalOutputTypes, o.Output) {
		return fmt.Errorf("output format must be one of %s", strings.Join(legalOutputTypes, ", "))
	}
	return nil
}

func (o *GlobalOptions) Services(ctx context.Context) (*finetune.Services, error) {
	return o.newServices(ctx, o.Config)
}

// RemoteServices is Services for commands that call the remote API.
func (o *GlobalOptions) RemoteServices(ctx context.Context) (*finetune.Services, error) {
	if err := o.Config.OpenAI.Validate(); err != nil {
		return nil, err
	}
	return o.Services(ctx)
}

func (o *GlobalOptions) printer(cmd *cobra.Command) *printer {
	return &printer{w: cmd.OutOrStdout(), format: o.Output}
}

// resolveID returns the identifier argument unchanged, the first line of stdin for
// "-", or "" when no argument was given.
func resolveID(args []string, stdin io.Reader) (string, error) {
	if len(args) == 0 {
		return "", nil
	}
	if args[0] != stdinArg {
		return args[0], nil
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("error reading identifier from stdin: %w", err)
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	if line == "" {
		return "", ErrEmptyStdin
	}
	return line, nil
}

func NewRootCommand(factory ServicesFactory) *cobra.Command {
	o := DefaultGlobalOptions(factory)

	cmd := &cobra.Command{
		Use:   "finetune [command]",
		Short: "finetune uploads training data, starts fine-tuning jobs and tracks them.",
		Long: `finetune uploads training data, starts fine-tuning jobs and tracks them.

Identifiers printed by one command can be piped into the next:

  finetune upload train.jsonl | finetune start - | finetune track -

When an identifier is omitted the most recent one in the local run ledger is used.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Complete(cmd, args); err != nil {
				return err
			}
			return o.Validate(args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	o.Bind(cmd.PersistentFlags())

	cmd.AddCommand(NewCmdUpload(o))
	cmd.AddCommand(NewCmdStart(o))
	cmd.AddCommand(NewCmdTrack(o))
	cmd.AddCommand(NewCmdWatch(o))
	cmd.AddCommand(NewCmdEvents(o))
	cmd.AddCommand(NewCmdCancel(o))
	cmd.AddCommand(NewCmdList(o))
	cmd.AddCommand(NewCmdPrepare(o))
	cmd.AddCommand(NewCmdValidate(o))

	return cmd
}
