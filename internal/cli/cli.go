package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"ConferenceScanner/internal/app"
	"ConferenceScanner/internal/config"
	"ConferenceScanner/internal/domain"
	"ConferenceScanner/internal/logging"
	"ConferenceScanner/internal/usecase"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

// options holds the values of the persistent flags.
type options struct {
	configPath string
	include    string
	exclude    string
	debug      bool
	scrapers   []string
	workbook   string
	format     string
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "conferencescanner",
		Short: "Aggregate academic conference calls into a workbook",
		Long: `Scrapes conference listing sites, drops duplicates and irrelevant calls,
extracts deadlines and details, and keeps a two-sheet workbook of upcoming and
past conferences up to date.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to the YAML configuration file")
	flags.StringVar(&opts.include, "include", "", "Comma-separated topics to include (e.g. 'labor, macro')")
	flags.StringVar(&opts.exclude, "exclude", "", "Comma-separated topics to exclude (e.g. 'finance')")
	flags.BoolVar(&opts.debug, "debug", false, "Log every relevance decision with its reasoning")
	flags.StringSliceVar(&opts.scrapers, "scrapers", nil, "Only run these sites or scanners (e.g. inomics,misfit)")
	flags.StringVar(&opts.workbook, "workbook", "", "Workbook path, overrides the configuration")
	flags.StringVar(&opts.format, "format", string(FormatText), "Output format: text or json")

	cmd.AddCommand(newScheduleCmd(opts))
	return cmd
}

func newScheduleCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the aggregation on the configured cron expression",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(cmd, opts)
		},
	}
}

// setup validates flags and builds the application with its run options.
func setup(opts *options) (*app.Application, config.Config, usecase.RunOptions, OutputFormat, error) {
	format := OutputFormat(strings.ToLower(strings.TrimSpace(opts.format)))
	if format != FormatText && format != FormatJSON {
		return nil, config.Config{}, usecase.RunOptions{}, "", fmt.Errorf("invalid format: %s (must be 'text' or 'json')", opts.format)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, config.Config{}, usecase.RunOptions{}, "", fmt.Errorf("loading config: %w", err)
	}
	if opts.workbook != "" {
		cfg.Workbook.Path = opts.workbook
	}
	if opts.debug {
		cfg.Logging.Level = "debug"
	}

	runOpts := usecase.RunOptions{
		Filter: domain.TopicFilter{
			Include: firstSet(opts.include, cfg.Filter.Include),
			Exclude: firstSet(opts.exclude, cfg.Filter.Exclude),
		},
		Debug: opts.debug,
	}

	application, err := app.New(cfg, opts.scrapers, logging.New(cfg.Logging.Level))
	if err != nil {
		return nil, config.Config{}, usecase.RunOptions{}, "", err
	}
	return application, cfg, runOpts, format, nil
}

func runOnce(cmd *cobra.Command, opts *options) error {
	application, cfg, runOpts, format, err := setup(opts)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	report, err := application.RunOnce(ctx, runOpts)
	if err != nil {
		return fmt.Errorf("running pipeline: %w", err)
	}

	if err := WriteOutput(cmd.OutOrStdout(), NewOutputResult(report, runOpts.Filter, cfg.Workbook.Path), format); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

func runSchedule(cmd *cobra.Command, opts *options) error {
	application, cfg, runOpts, format, err := setup(opts)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	out := cmd.OutOrStdout()
	return application.Schedule(ctx, runOpts, func(report usecase.Report) {
		if err := WriteOutput(out, NewOutputResult(report, runOpts.Filter, cfg.Workbook.Path), format); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "writing output: %v\n", err)
		}
	})
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func firstSet(flag, fallback string) string {
	if strings.TrimSpace(flag) != "" {
		return strings.TrimSpace(flag)
	}
	return strings.TrimSpace(fallback)
}

// Execute runs the CLI
func Execute() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.Execute(); err != nil {
		return ExitError
	}
	return ExitSuccess
}
