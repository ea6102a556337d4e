package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/praetorian-inc/sieve/pkg/enum"
	"github.com/praetorian-inc/sieve/pkg/matcher"
	"github.com/praetorian-inc/sieve/pkg/rule"
	"github.com/praetorian-inc/sieve/pkg/sarif"
	"github.com/praetorian-inc/sieve/pkg/scanner"
	"github.com/praetorian-inc/sieve/pkg/store"
	"github.com/praetorian-inc/sieve/pkg/types"
	"github.com/spf13/cobra"
)

var (
	scanRulesPath     string
	scanRulesInclude  string
	scanRulesExclude  string
	scanEngine        string
	scanOutputPath    string
	scanOutputFormat  string
	scanGit           bool
	scanNoGit         bool
	scanGitHistory    bool
	scanPcap          bool
	scanPcapFlows     bool
	scanMaxFileSize   int64
	scanIncludeHidden bool
	scanIncludeBinary bool
	scanDecompress    bool
	scanExtract       string
	scanContextLines  int
	scanMaxMatches    int
	scanIncremental   bool
	scanDedupeContent bool
	scanS3Region      string
	scanS3Endpoint    string
	scanAzureEndpoint string
)

var scanCmd = &cobra.Command{
	Use:   "scan <target>",
	Short: "Scan a target for pattern matches",
	Long:  "Scan a file, directory, git repository, packet capture, s3://bucket/prefix or az://account/container/prefix using literal detection rules",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanRulesPath, "rules", "", "Path to rules file (.yml, .yaml, .rules) or directory")
	scanCmd.Flags().StringVar(&scanRulesInclude, "rules-include", "", "Include rules matching regex pattern (comma-separated)")
	scanCmd.Flags().StringVar(&scanRulesExclude, "rules-exclude", "", "Exclude rules matching regex pattern (comma-separated)")
	scanCmd.Flags().StringVar(&scanEngine, "engine", matcher.EngineDFC, "Search engine: "+strings.Join(matcher.AvailableEngines(), ", "))
	scanCmd.Flags().StringVar(&scanOutputPath, "output", "sieve.db", "Output database path (:memory: for none)")
	scanCmd.Flags().StringVar(&scanOutputFormat, "format", "human", "Output format: json, sarif, human")
	scanCmd.Flags().BoolVar(&scanGit, "git", false, "Treat target as git repository")
	scanCmd.Flags().BoolVar(&scanNoGit, "no-git", false, "Scan a git working tree as plain files")
	scanCmd.Flags().BoolVar(&scanGitHistory, "git-history", false, "Scan every commit reachable from HEAD, not just its tree")
	scanCmd.Flags().BoolVar(&scanPcap, "pcap", false, "Treat target as a pcap or pcapng capture")
	scanCmd.Flags().BoolVar(&scanPcapFlows, "pcap-flows", false, "Reassemble capture payloads per flow before scanning")
	scanCmd.Flags().Int64Var(&scanMaxFileSize, "max-file-size", 10*1024*1024, "Maximum file size to scan (bytes)")
	scanCmd.Flags().BoolVar(&scanIncludeHidden, "include-hidden", false, "Include hidden files and directories")
	scanCmd.Flags().BoolVar(&scanIncludeBinary, "include-binary", false, "Scan files containing NUL bytes")
	scanCmd.Flags().BoolVar(&scanDecompress, "decompress", false, "Inflate .gz, .zst and .lz4 files before scanning")
	scanCmd.Flags().StringVar(&scanExtract, "extract", "", "Extract archives and documents (comma-separated: zip,7z,pdf or 'all')")
	scanCmd.Flags().IntVar(&scanContextLines, "context-lines", 3, "Lines of context before/after matches (0 to disable)")
	scanCmd.Flags().IntVar(&scanMaxMatches, "max-matches", 0, "Maximum matches kept per blob (0 = unlimited)")
	scanCmd.Flags().BoolVar(&scanIncremental, "incremental", false, "Skip already-scanned blobs")
	scanCmd.Flags().BoolVar(&scanDedupeContent, "dedupe-content", false, "Keep one match per distinct matched content within a blob")
	scanCmd.Flags().StringVar(&scanS3Region, "s3-region", "", "AWS region for s3:// targets (default from environment)")
	scanCmd.Flags().StringVar(&scanS3Endpoint, "s3-endpoint", "", "Custom S3 endpoint URL for s3:// targets")
	scanCmd.Flags().StringVar(&scanAzureEndpoint, "azure-endpoint", "", "Blob service URL for az:// targets (default https://<account>.blob.core.windows.net/)")
}

func runScan(cmd *cobra.Command, args []string) error {
	target := args[0]

	var info os.FileInfo
	if !isObjectStoreURL(target) {
		var err error
		if info, err = os.Stat(target); err != nil {
			return fmt.Errorf("target does not exist: %s", target)
		}
	}

	rules, err := loadRules(scanRulesPath, scanRulesInclude, scanRulesExclude)
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}

	dedupe := matcher.DedupeByLocation
	if scanDedupeContent {
		dedupe = matcher.DedupeByContent
	}
	core, err := scanner.NewCore(rules,
		scanner.WithEngine(scanEngine),
		scanner.WithContextLines(scanContextLines),
		scanner.WithStorePath(scanOutputPath),
		scanner.WithIncremental(scanIncremental),
		scanner.WithMaxMatchesPerBlob(scanMaxMatches),
		scanner.WithDedupe(dedupe),
		scanner.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer core.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	enumerator, err := createEnumerator(ctx, cmd, target, info)
	if err != nil {
		return err
	}

	err = enumerator.Enumerate(ctx, func(content []byte, blobID types.BlobID, prov types.Provenance) error {
		_, err := core.ScanBlob(ctx, content, prov)
		return err
	})
	if err != nil {
		return fmt.Errorf("scanning: %w", err)
	}

	return printResults(cmd, core, scanOutputFormat, scanOutputPath, scanIncremental)
}

// =============================================================================
// HELPERS
// =============================================================================

// loadRules reads rules from a file or every rules file in a directory, or
// the builtin rules when path is empty, then applies include/exclude.
func loadRules(path, include, exclude string) ([]*types.Rule, error) {
	loader := rule.NewLoader()

	var rules []*types.Rule
	var err error

	switch {
	case path == "":
		rules, err = loader.LoadBuiltinRules()
	default:
		rules, err = loadRulesPath(loader, path)
	}
	if err != nil {
		return nil, err
	}

	if include != "" || exclude != "" {
		config := rule.FilterConfig{
			Include: rule.ParsePatterns(include),
			Exclude: rule.ParsePatterns(exclude),
		}
		rules, err = rule.Filter(rules, config)
		if err != nil {
			return nil, fmt.Errorf("filtering rules: %w", err)
		}
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("no rules selected")
	}
	return rules, nil
}

func loadRulesPath(loader *rule.Loader, path string) ([]*types.Rule, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return loader.LoadRulesFile(path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var rules []*types.Rule
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yml", ".yaml", ".rules":
		default:
			continue
		}
		rs, err := loader.LoadRulesFile(filepath.Join(path, e.Name()))
		if err != nil {
			return nil, err
		}
		rules = append(rules, rs...)
	}
	return rules, nil
}

func isObjectStoreURL(target string) bool {
	return strings.HasPrefix(target, "s3://") || strings.HasPrefix(target, "az://")
}

// createEnumerator picks the enumerator for target. info is nil for
// s3:// and az:// targets.
func createEnumerator(ctx context.Context, cmd *cobra.Command, target string, info os.FileInfo) (enum.Enumerator, error) {
	config := enum.Config{
		Root:            target,
		IncludeHidden:   scanIncludeHidden,
		IncludeBinary:   scanIncludeBinary,
		MaxFileSize:     scanMaxFileSize,
		Decompress:      scanDecompress,
		ExtractArchives: scanExtract,
		Logger:          logger,
	}

	if info == nil && strings.HasPrefix(target, "az://") {
		account, container, prefix, err := enum.ParseAzureURL(target)
		if err != nil {
			return nil, err
		}
		client, err := enum.NewAzureClient(account, enum.AzureOptions{Endpoint: scanAzureEndpoint})
		if err != nil {
			return nil, fmt.Errorf("creating azure client: %w", err)
		}
		return enum.NewAzureEnumerator(config, client, account, container, prefix), nil
	}
	if info == nil {
		bucket, prefix, err := enum.ParseS3URL(target)
		if err != nil {
			return nil, err
		}
		client, err := enum.NewS3Client(ctx, enum.S3Options{Region: scanS3Region, Endpoint: scanS3Endpoint})
		if err != nil {
			return nil, err
		}
		return enum.NewS3Enumerator(config, client, bucket, prefix), nil
	}

	ext := strings.ToLower(filepath.Ext(target))
	if scanPcap || (!info.IsDir() && (ext == ".pcap" || ext == ".pcapng")) {
		e := enum.NewPcapEnumerator(config)
		e.ByFlow = scanPcapFlows
		return e, nil
	}

	useGit, history := scanGit, scanGitHistory
	if !useGit && !scanNoGit && info.IsDir() {
		if _, err := os.Stat(filepath.Join(target, ".git")); err == nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "Detected git repository, scanning git history")
			useGit, history = true, true
		}
	}
	if useGit && !scanNoGit {
		e := enum.NewGitEnumerator(config)
		e.History = history
		return e, nil
	}

	return enum.NewFilesystemEnumerator(config), nil
}

// printResults writes the scan summary and the stored results in format.
func printResults(cmd *cobra.Command, core *scanner.Core, format, outputPath string, incremental bool) error {
	stats, err := core.Stats()
	if err != nil {
		return fmt.Errorf("reading stats: %w", err)
	}
	logger.Info("scan complete",
		"blobs", stats.BlobsScanned,
		"skipped", stats.BlobsSkipped,
		"bytes", stats.BytesScanned,
		"matches", stats.Matches,
		"engine", stats.Engine)

	// Summary goes to stderr for json/sarif to keep stdout machine-readable.
	summary := cmd.OutOrStdout()
	if format == "json" || format == "sarif" {
		summary = cmd.ErrOrStderr()
	}
	if incremental {
		fmt.Fprintf(summary, "Scan complete: %d matches, %d findings (%d blobs skipped)\n", stats.Matches, stats.Store.Findings, stats.BlobsSkipped)
	} else {
		fmt.Fprintf(summary, "Scan complete: %d matches, %d findings\n", stats.Matches, stats.Store.Findings)
	}
	if outputPath != store.MemoryPath {
		fmt.Fprintf(summary, "Results stored in: %s\n", outputPath)
	}

	s := core.Store()
	switch format {
	case "json":
		matches, err := s.GetAllMatches()
		if err != nil {
			return fmt.Errorf("retrieving matches: %w", err)
		}
		return outputMatches(cmd, matches)
	case "sarif":
		matches, err := s.GetAllMatches()
		if err != nil {
			return fmt.Errorf("retrieving matches: %w", err)
		}
		return outputSARIF(cmd, s, core.Rules(), matches)
	case "human":
		findings, err := s.GetFindings()
		if err != nil {
			return fmt.Errorf("retrieving findings: %w", err)
		}
		return outputFindings(cmd, findings)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

func outputMatches(cmd *cobra.Command, matches []*types.Match) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(matches)
}

func outputFindings(cmd *cobra.Command, findings []*types.Finding) error {
	out := cmd.OutOrStdout()
	if len(findings) == 0 {
		fmt.Fprintf(out, "\nNo findings.\n")
		return nil
	}

	fmt.Fprintf(out, "\nFindings:\n")
	for i, f := range findings {
		fmt.Fprintf(out, "%d. Rule: %s  Content: %q\n", i+1, f.RuleID, f.Content)
	}
	return nil
}

// outputSARIF outputs matches in SARIF 2.1.0 format
func outputSARIF(cmd *cobra.Command, s store.Store, rules []*types.Rule, matches []*types.Match) error {
	report := sarif.NewReport()
	for _, r := range rules {
		report.AddRule(r)
	}

	paths := newProvenanceCache(s)
	for _, match := range matches {
		report.AddResult(match, paths.path(match.BlobID))
	}

	if err := report.Write(cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("writing SARIF output: %w", err)
	}
	return nil
}

// provenanceCache resolves display paths for blobs, falling back to the
// blob ID when no provenance was recorded.
type provenanceCache struct {
	store store.Store
	paths map[types.BlobID]string
}

func newProvenanceCache(s store.Store) *provenanceCache {
	return &provenanceCache{store: s, paths: make(map[types.BlobID]string)}
}

func (c *provenanceCache) path(id types.BlobID) string {
	if p, ok := c.paths[id]; ok {
		return p
	}
	p := id.Hex()
	if provs, err := c.store.GetProvenance(id); err == nil && len(provs) > 0 && provs[0].Path() != "" {
		p = provs[0].Path()
	}
	c.paths[id] = p
	return p
}
