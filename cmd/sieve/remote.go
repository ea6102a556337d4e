package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/praetorian-inc/sieve/pkg/enum"
	"github.com/praetorian-inc/sieve/pkg/matcher"
	"github.com/praetorian-inc/sieve/pkg/scanner"
	"github.com/praetorian-inc/sieve/pkg/types"
	"github.com/spf13/cobra"
)

// remoteOptions holds the flags shared by the github and gitlab commands.
type remoteOptions struct {
	rulesPath     string
	engine        string
	outputPath    string
	format        string
	token         string
	apiURL        string
	user          string
	noClone       bool
	history       bool
	maxFileSize   int64
	includeHidden bool
	decompress    bool
}

func (o *remoteOptions) bind(cmd *cobra.Command, tokenEnv string) {
	f := cmd.Flags()
	f.StringVar(&o.rulesPath, "rules", "", "Path to rules file (.yml, .yaml, .rules) or directory")
	f.StringVar(&o.engine, "engine", matcher.EngineDFC, "Search engine")
	f.StringVar(&o.outputPath, "output", "sieve.db", "Output database path (:memory: for none)")
	f.StringVar(&o.format, "format", "human", "Output format: json, sarif, human")
	f.StringVar(&o.token, "token", "", "API token (or "+tokenEnv+" env)")
	f.StringVar(&o.apiURL, "api-url", "", "API base URL for self-hosted instances")
	f.StringVar(&o.user, "user", "", "Scan all repositories of a user")
	f.BoolVar(&o.noClone, "no-clone", false, "Read files through the API instead of cloning (no history)")
	f.BoolVar(&o.history, "git", false, "Scan full git history of each clone")
	f.Int64Var(&o.maxFileSize, "max-file-size", 10*1024*1024, "Maximum file size to scan (bytes)")
	f.BoolVar(&o.includeHidden, "include-hidden", false, "Include hidden files and directories")
	f.BoolVar(&o.decompress, "decompress", false, "Inflate .gz, .zst and .lz4 files before scanning")
}

func (o *remoteOptions) resolveToken(env string) string {
	if o.token != "" {
		return o.token
	}
	return os.Getenv(env)
}

func (o *remoteOptions) enumConfig() enum.Config {
	return enum.Config{
		IncludeHidden: o.includeHidden,
		MaxFileSize:   o.maxFileSize,
		Decompress:    o.decompress,
		Logger:        logger,
	}
}

// runRemoteScan scans the repositories of a hosting service either through
// api or, by default, by cloning the URLs list returns.
func runRemoteScan(cmd *cobra.Command, o *remoteOptions, token string, api enum.Enumerator, list func(context.Context) ([]enum.RepoInfo, error)) error {
	if o.history && o.noClone {
		return fmt.Errorf("--git needs clones; drop --no-clone")
	}

	rules, err := loadRules(o.rulesPath, "", "")
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}
	core, err := scanner.NewCore(rules,
		scanner.WithEngine(o.engine),
		scanner.WithStorePath(o.outputPath),
		scanner.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer core.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	enumerator := api
	if !o.noClone {
		repos, err := list(ctx)
		if err != nil {
			return fmt.Errorf("listing repositories: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Found %d repositories to scan\n", len(repos))
		clone := enum.NewCloneEnumerator(repos, o.enumConfig())
		clone.Token = token
		clone.History = o.history
		enumerator = clone
	}

	err = enumerator.Enumerate(ctx, func(content []byte, blobID types.BlobID, prov types.Provenance) error {
		_, err := core.ScanBlob(ctx, content, prov)
		return err
	})
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}
	return printResults(cmd, core, o.format, o.outputPath, false)
}
