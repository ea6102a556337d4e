package main

import (
	"fmt"
	"strings"

	"github.com/praetorian-inc/sieve/pkg/enum"
	"github.com/spf13/cobra"
)

var (
	githubOpts remoteOptions
	githubOrg  string
)

var githubCmd = &cobra.Command{
	Use:   "github [owner/repo]",
	Short: "Scan GitHub repositories",
	Long: `Scan a single repository (owner/repo), every repository of an
organization (--org) or of a user (--user).

Repositories are cloned and their checkout scanned. --git scans full
history instead; --no-clone reads the default branch through the API.
No token is needed for public repositories. Use --token or GITHUB_TOKEN
for private repositories and higher rate limits.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGitHubScan,
}

func init() {
	githubOpts.bind(githubCmd, "GITHUB_TOKEN")
	githubCmd.Flags().StringVar(&githubOrg, "org", "", "Scan all repositories in organization")
	rootCmd.AddCommand(githubCmd)
}

func runGitHubScan(cmd *cobra.Command, args []string) error {
	var owner, repo string
	if len(args) > 0 {
		var ok bool
		owner, repo, ok = strings.Cut(args[0], "/")
		if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
			return fmt.Errorf("invalid repository %q, expected owner/repo", args[0])
		}
	}
	if repo == "" && githubOrg == "" && githubOpts.user == "" {
		return fmt.Errorf("must specify owner/repo, --org, or --user")
	}

	token := githubOpts.resolveToken("GITHUB_TOKEN")
	if token == "" {
		logger.Warn("no GitHub token, using unauthenticated access (60 requests/hour, public repositories only)")
	}

	gh, err := enum.NewGitHubEnumerator(enum.GitHubConfig{
		Token:   token,
		BaseURL: githubOpts.apiURL,
		Owner:   owner,
		Repo:    repo,
		Org:     githubOrg,
		User:    githubOpts.user,
		Config:  githubOpts.enumConfig(),
	})
	if err != nil {
		return fmt.Errorf("creating GitHub client: %w", err)
	}
	return runRemoteScan(cmd, &githubOpts, token, gh, gh.ListRepoURLs)
}
