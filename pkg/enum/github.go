package enum

import (
	"context"
	"fmt"
	"net/http"
	"path"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/praetorian-inc/sieve/pkg/types"
)

// GitHubConfig configures GitHub API enumeration.
type GitHubConfig struct {
	Token   string // API token, optional for public repositories
	BaseURL string // GitHub Enterprise API URL, empty for github.com
	Owner   string // Repository owner (for single repo)
	Repo    string // Repository name (for single repo)
	Org     string // list all org repos
	User    string // list all user repos
	Config
}

// GitHubEnumerator reads the default-branch tree of GitHub repositories
// through the API.
type GitHubEnumerator struct {
	client *github.Client
	config GitHubConfig
}

// NewGitHubEnumerator creates a new GitHub API enumerator.
func NewGitHubEnumerator(cfg GitHubConfig) (*GitHubEnumerator, error) {
	var hc *http.Client
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		hc = oauth2.NewClient(context.Background(), ts)
	}
	client := github.NewClient(hc)
	if cfg.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(cfg.BaseURL, cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL: %w", err)
		}
	}
	return &GitHubEnumerator{client: client, config: cfg}, nil
}

// Enumerate yields every blob of every selected repository once, even when
// forks share content.
func (e *GitHubEnumerator) Enumerate(ctx context.Context, callback func(content []byte, blobID types.BlobID, prov types.Provenance) error) error {
	repos, err := e.listRepos(ctx)
	if err != nil {
		return err
	}

	seen := make(map[string]bool)
	for _, repo := range repos {
		if err := e.enumerateRepo(ctx, repo, seen, callback); err != nil {
			return fmt.Errorf("enumerating %s: %w", repo.GetFullName(), err)
		}
	}
	return nil
}

// ListRepoURLs returns clone URLs for the selected repositories.
func (e *GitHubEnumerator) ListRepoURLs(ctx context.Context) ([]RepoInfo, error) {
	repos, err := e.listRepos(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]RepoInfo, 0, len(repos))
	for _, r := range repos {
		infos = append(infos, RepoInfo{
			Name:          r.GetFullName(),
			CloneURL:      r.GetCloneURL(),
			DefaultBranch: r.GetDefaultBranch(),
		})
	}
	return infos, nil
}

func (e *GitHubEnumerator) listRepos(ctx context.Context) ([]*github.Repository, error) {
	switch {
	case e.config.Repo != "":
		if e.config.Owner == "" {
			return nil, fmt.Errorf("owner required when repo specified")
		}
		repo, _, err := e.client.Repositories.Get(ctx, e.config.Owner, e.config.Repo)
		if err != nil {
			return nil, fmt.Errorf("getting repository: %w", err)
		}
		return []*github.Repository{repo}, nil

	case e.config.Org != "":
		opts := &github.RepositoryListByOrgOptions{ListOptions: github.ListOptions{PerPage: 100}}
		var all []*github.Repository
		for {
			repos, resp, err := e.client.Repositories.ListByOrg(ctx, e.config.Org, opts)
			if err != nil {
				return nil, fmt.Errorf("listing org repositories: %w", err)
			}
			all = append(all, repos...)
			if resp.NextPage == 0 {
				return all, nil
			}
			opts.Page = resp.NextPage
		}

	case e.config.User != "":
		opts := &github.RepositoryListOptions{ListOptions: github.ListOptions{PerPage: 100}}
		var all []*github.Repository
		for {
			repos, resp, err := e.client.Repositories.List(ctx, e.config.User, opts)
			if err != nil {
				return nil, fmt.Errorf("listing user repositories: %w", err)
			}
			all = append(all, repos...)
			if resp.NextPage == 0 {
				return all, nil
			}
			opts.Page = resp.NextPage
		}
	}
	return nil, fmt.Errorf("must specify repo (with owner), org, or user")
}

func (e *GitHubEnumerator) enumerateRepo(ctx context.Context, repo *github.Repository, seen map[string]bool, callback func(content []byte, blobID types.BlobID, prov types.Provenance) error) error {
	owner, name := repo.GetOwner().GetLogin(), repo.GetName()
	branch := repo.GetDefaultBranch()
	if branch == "" {
		branch = "main"
	}

	tree, _, err := e.client.Git.GetTree(ctx, owner, name, branch, true)
	if err != nil {
		return fmt.Errorf("getting tree: %w", err)
	}
	// The API caps recursive trees at 100k entries.
	if tree.GetTruncated() {
		return fmt.Errorf("tree of %s is truncated; clone it and run 'sieve scan' instead", repo.GetFullName())
	}

	log := e.config.logger()
	for _, entry := range tree.Entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if entry.GetType() != "blob" || seen[entry.GetSHA()] {
			continue
		}
		p := entry.GetPath()
		if !e.config.IncludeHidden && isHidden(path.Base(p)) {
			continue
		}
		if e.config.MaxFileSize > 0 && int64(entry.GetSize()) > e.config.MaxFileSize {
			continue
		}

		data, _, err := e.client.Git.GetBlobRaw(ctx, owner, name, entry.GetSHA())
		if err != nil {
			log.Debug("skipping unreadable blob", "repo", repo.GetFullName(), "path", p, "error", err)
			continue
		}
		seen[entry.GetSHA()] = true

		data, ok := e.config.prepare(p, data)
		if !ok {
			continue
		}
		prov := types.GitProvenance{RepoPath: repo.GetFullName(), BlobPath: p}
		if err := callback(data, types.ComputeBlobID(data), prov); err != nil {
			return err
		}
	}
	return nil
}
