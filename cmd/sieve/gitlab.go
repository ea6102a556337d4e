package main

import (
	"github.com/praetorian-inc/sieve/pkg/enum"
	"github.com/spf13/cobra"
)

var (
	gitlabOpts  remoteOptions
	gitlabGroup string
)

var gitlabCmd = &cobra.Command{
	Use:   "gitlab [namespace/project]",
	Short: "Scan GitLab projects",
	Long: `Scan a single project, every project of a group (--group) or the
projects a user owns (--user).

Projects are cloned and their checkout scanned. --git scans full history
instead; --no-clone reads the default branch through the API. Use --token
or GITLAB_TOKEN for private projects and --api-url for self-hosted GitLab.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGitLabScan,
}

func init() {
	gitlabOpts.bind(gitlabCmd, "GITLAB_TOKEN")
	gitlabCmd.Flags().StringVar(&gitlabGroup, "group", "", "Scan all projects in group")
	rootCmd.AddCommand(gitlabCmd)
}

func runGitLabScan(cmd *cobra.Command, args []string) error {
	var project string
	if len(args) > 0 {
		project = args[0]
	}
	token := gitlabOpts.resolveToken("GITLAB_TOKEN")

	gl, err := enum.NewGitLabEnumerator(enum.GitLabConfig{
		Token:   token,
		BaseURL: gitlabOpts.apiURL,
		Project: project,
		Group:   gitlabGroup,
		User:    gitlabOpts.user,
		Config:  gitlabOpts.enumConfig(),
	})
	if err != nil {
		return err
	}
	return runRemoteScan(cmd, &gitlabOpts, token, gl, gl.ListProjectURLs)
}
