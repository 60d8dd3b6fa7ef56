package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/yanqian/bio-generator/internal/infra/config"
	"github.com/yanqian/bio-generator/internal/infra/generateapi"
	"github.com/yanqian/bio-generator/internal/interface/tui"
	"github.com/yanqian/bio-generator/pkg/logger"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold).SprintFunc()
	successColor = color.New(color.FgGreen).SprintFunc()
	warnColor    = color.New(color.FgYellow).SprintFunc()
)

// options holds the flags shared by every bio command.
type options struct {
	endpoint string
	prefix   string
	timeout  time.Duration
	logFile  string

	logger   *slog.Logger
	closeLog func() error
}

// Execute runs the bio command line and returns the process exit code.
func Execute(ctx context.Context) int {
	cmd := NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), errorColor("error:"), err)
		return 1
	}
	return 0
}

// NewRootCommand builds `bio`, which opens the interactive generator.
func NewRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "bio",
		Short: "Generate your next Twitter bio using chatGPT",
		Long: `bio talks to a bio-generator server and streams the generated bio as it arrives.
Run it without arguments for the interactive screen, or use "bio generate" in scripts.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.resolve(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return opts.close()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			return tui.Run(cmd.Context(), client, opts.prefix, opts.logger)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.endpoint, "endpoint", "", "generation endpoint URL (default from config or BIO_ENDPOINT)")
	flags.StringVar(&opts.prefix, "prefix", "", "instruction placed before your text (default from config or BIO_PROMPT_PREFIX)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "overall request timeout (default from config or BIO_REQUEST_TIMEOUT)")
	flags.StringVar(&opts.logFile, "log-file", "", "append JSON logs to this file")

	cmd.AddCommand(newGenerateCommand(opts))
	return cmd
}

// resolve fills unset flags from configuration and opens the log sink.
func (o *options) resolve(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if !flags.Changed("endpoint") {
		o.endpoint = cfg.Client.Endpoint
	}
	if !flags.Changed("prefix") {
		o.prefix = cfg.Client.PromptPrefix
	}
	if !flags.Changed("timeout") {
		o.timeout = cfg.Client.RequestTimeout
	}

	var w io.Writer = io.Discard
	o.closeLog = func() error { return nil }
	if o.logFile != "" {
		f, err := os.OpenFile(o.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		w = f
		o.closeLog = f.Close
	}
	o.logger = logger.NewWithWriter(w, "bio")
	return nil
}

func (o *options) close() error {
	if o.closeLog == nil {
		return nil
	}
	return o.closeLog()
}

func (o *options) client() (*generateapi.Client, error) {
	return generateapi.NewClient(o.endpoint, o.timeout, o.logger)
}
