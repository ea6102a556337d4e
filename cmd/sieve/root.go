package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/praetorian-inc/sieve/pkg/logging"
	"github.com/praetorian-inc/sieve/pkg/telemetry"
	"github.com/spf13/cobra"
)

var (
	verbose      bool
	quiet        bool
	logFormat    string
	otlpEndpoint string
	otlpInsecure bool

	stopTelemetry telemetry.Shutdown = func(context.Context) error { return nil }

	// logger is set up by the root command before any subcommand runs.
	logger = logging.Noop()
)

var rootCmd = &cobra.Command{
	Use:   "sieve",
	Short: "Sieve - multi-pattern literal scanner",
	Long: `Sieve searches files, git history, archives and packet captures for
thousands of literal byte patterns at once.

Patterns are compiled into cascading direct filters so that most input
positions are rejected by a few bit tests before any pattern is compared.`,
	SilenceUsage:      true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text, json")
	rootCmd.PersistentFlags().StringVar(&otlpEndpoint, "otlp-endpoint", "", "Push scan metrics to this OTLP gRPC collector (host:port)")
	rootCmd.PersistentFlags().BoolVar(&otlpInsecure, "otlp-insecure", false, "Connect to the OTLP collector without TLS")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(mergeCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	if err := setupLogging(cmd, args); err != nil {
		return err
	}
	shutdown, err := telemetry.Init(cmd.Context(), telemetry.Config{
		Endpoint: otlpEndpoint,
		Insecure: otlpInsecure,
		Version:  version,
	}, logger)
	if err != nil {
		return err
	}
	stopTelemetry = shutdown
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := stopTelemetry(ctx); err != nil {
		logger.Warn("flushing metrics failed", "error", err)
	}
	return nil
}

func setupLogging(cmd *cobra.Command, args []string) error {
	format, err := logging.ParseFormat(logFormat)
	if err != nil {
		return err
	}
	level := slog.LevelWarn
	switch {
	case quiet:
		level = slog.LevelError
	case verbose:
		level = slog.LevelDebug
	}
	logger = logging.Init(level, format, cmd.ErrOrStderr())
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
