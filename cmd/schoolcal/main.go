package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"schoolcal/internal/browser"
	"schoolcal/internal/config"
	appLog "schoolcal/internal/log"
	"schoolcal/internal/pipeline"
)

const (
	ExitSuccess  = 0
	ExitError    = 1
	ExitNoEvents = 2
)

// flagConfig holds CLI flag values; each one overrides the config file
// only when it was set explicitly.
type flagConfig struct {
	configPath string
	url        string
	output     string
	timeout    int
	driverPath string
	engine     string
	logLevel   string
	verify     bool
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	code := ExitSuccess
	cmd := newRootCmd(&code)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return ExitError
	}
	return code
}

func newRootCmd(code *int) *cobra.Command {
	var flags flagConfig

	cmd := &cobra.Command{
		Use:   "schoolcal",
		Short: "Export a school's web calendar to an .ics file",
		Long: `schoolcal loads the school calendar page in a headless browser,
extracts the listed events and writes them to an iCalendar file that can be
imported into Google Calendar or any other calendar application.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			*code = run(cmd.Context(), cmd.OutOrStdout(), cfg)
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.configPath, "config", "schoolcal.yaml", "Path to YAML config file (optional)")
	cmd.Flags().StringVar(&flags.url, "url", "", "Calendar page to scrape")
	cmd.Flags().StringVar(&flags.output, "output", "", "Destination .ics file")
	cmd.Flags().IntVar(&flags.timeout, "timeout", 0, "Seconds to wait for the event list to render")
	cmd.Flags().StringVar(&flags.driverPath, "driver-path", "", "Chrome/Chromium executable")
	cmd.Flags().StringVar(&flags.engine, "engine", "", "Page engine: chromium or static")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.Flags().BoolVar(&flags.verify, "verify", false, "Read the written file back and check the event count")

	return cmd
}

// loadConfig reads the config file and applies explicitly set flags.
func loadConfig(cmd *cobra.Command, flags flagConfig) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	if f.Changed("url") {
		cfg.URL = flags.url
	}
	if f.Changed("output") {
		cfg.OutputPath = flags.output
	}
	if f.Changed("timeout") {
		cfg.TimeoutSeconds = flags.timeout
	}
	if f.Changed("driver-path") {
		cfg.DriverPath = flags.driverPath
	}
	if f.Changed("engine") {
		cfg.Engine = flags.engine
	}
	if f.Changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if f.Changed("verify") {
		cfg.Verify = flags.verify
	}
	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, err := appLog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	appLog.SetLevel(level)

	return cfg, nil
}

func run(parent context.Context, stdout io.Writer, cfg *config.Config) int {
	if parent == nil {
		parent = context.Background()
	}
	// Root context with cancellation on SIGINT/SIGTERM; browser teardown
	// still runs on the way out.
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appLog.Info("effective config",
		"url", browser.RedactURL(cfg.URL),
		"output", cfg.OutputPath,
		"engine", cfg.Engine,
		"driver_path", cfg.DriverPath,
		"timeout_seconds", cfg.TimeoutSeconds,
		"timezone", cfg.Timezone,
		"settle_polls", cfg.SettlePolls,
	)

	p := pipeline.New(cfg, pipeline.NewBrowser(cfg))
	rep := p.Run(ctx)

	for _, skip := range rep.ExtractSkip {
		fmt.Fprintf(stdout, "Skipped event %d: %s.\n", skip.Index, skip.Reason)
	}

	switch rep.Outcome {
	case pipeline.Written:
		fmt.Fprintf(stdout, "Fetched %d events. Saving to file...\n", len(rep.Records))
		if n := len(rep.WriteSkip); n > 0 {
			fmt.Fprintf(stdout, "Skipped %d events with an unreadable date or time.\n", n)
		}
		fmt.Fprintf(stdout, "Events saved to '%s'. You can now import this file into your calendar.\n", rep.OutputPath)
		return ExitSuccess
	case pipeline.WriteFailed:
		fmt.Fprintf(stdout, "Fetched %d events but could not save them: %v\n", len(rep.Records), rep.WriteErr)
		return ExitError
	default:
		fmt.Fprintln(stdout, "No events found or failed to fetch events.")
		return ExitNoEvents
	}
}
