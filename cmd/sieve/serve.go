package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/praetorian-inc/sieve/pkg/matcher"
	"github.com/praetorian-inc/sieve/pkg/scanner"
	"github.com/praetorian-inc/sieve/pkg/serve"
	"github.com/praetorian-inc/sieve/pkg/store"
	"github.com/praetorian-inc/sieve/pkg/types"
	"github.com/spf13/cobra"
)

var (
	serveRulesPath string
	serveEngine    string
	serveStorePath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run as a streaming NDJSON scanner",
	Long: `Run Sieve as a long-lived streaming server that accepts scan requests
via stdin and writes results to stdout using NDJSON format.

The process compiles rules once at startup and processes requests until
stdin closes or SIGTERM is received.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveRulesPath, "rules", "", "Path to rules file (.yml, .yaml, .rules) or directory")
	serveCmd.Flags().StringVar(&serveEngine, "engine", matcher.EngineDFC, "Search engine")
	serveCmd.Flags().StringVar(&serveStorePath, "store", store.MemoryPath, "Result database path")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	var opts []scanner.Option
	if serveEngine != "" {
		opts = append(opts, scanner.WithEngine(serveEngine))
	}
	if serveStorePath != "" {
		opts = append(opts, scanner.WithStorePath(serveStorePath))
	}
	opts = append(opts, scanner.WithLogger(logger))

	var rules []*types.Rule // nil selects the builtin rules
	if serveRulesPath != "" {
		loaded, err := loadRules(serveRulesPath, "", "")
		if err != nil {
			return err
		}
		rules = loaded
	}

	core, err := scanner.NewCore(rules, opts...)
	if err != nil {
		return err
	}
	defer core.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := serve.NewServer(core, cmd.InOrStdin(), cmd.OutOrStdout(), logger)
	return srv.Run(ctx)
}
