package enum

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/praetorian-inc/sieve/pkg/types"
)

// RepoInfo holds basic repository information for clone-based scanning.
type RepoInfo struct {
	Name          string // Full name (e.g., "kubernetes/kubernetes")
	CloneURL      string
	DefaultBranch string
}

// CloneEnumerator clones each repository into a temporary directory and
// scans the checkout, or its history when History is set.
type CloneEnumerator struct {
	repos  []RepoInfo
	config Config

	// Token authenticates HTTPS clones.
	Token string
	// History walks every reachable commit instead of the checkout.
	History bool
	// Depth limits clone depth (0 = full).
	Depth int
}

// NewCloneEnumerator creates a new clone-based enumerator.
func NewCloneEnumerator(repos []RepoInfo, config Config) *CloneEnumerator {
	return &CloneEnumerator{repos: repos, config: config}
}

// Enumerate clones, scans and removes each repository in turn. A repository
// that cannot be cloned is logged and skipped.
func (e *CloneEnumerator) Enumerate(ctx context.Context, callback func(content []byte, blobID types.BlobID, prov types.Provenance) error) error {
	log := e.config.logger()
	for _, repo := range e.repos {
		if err := ctx.Err(); err != nil {
			return err
		}
		dir, err := e.clone(ctx, repo)
		if err != nil {
			log.Warn("skipping repository", "repo", repo.Name, "error", err)
			continue
		}
		err = e.scan(ctx, repo, dir, callback)
		os.RemoveAll(filepath.Dir(dir))
		if err != nil {
			return fmt.Errorf("scanning %s: %w", repo.Name, err)
		}
	}
	return nil
}

func (e *CloneEnumerator) clone(ctx context.Context, repo RepoInfo) (string, error) {
	tmp, err := os.MkdirTemp("", "sieve-clone-*")
	if err != nil {
		return "", fmt.Errorf("creating temp dir: %w", err)
	}
	dir := filepath.Join(tmp, "repo")

	opts := &git.CloneOptions{URL: repo.CloneURL, Depth: e.Depth}
	if e.Token != "" {
		// GitHub and GitLab both accept any user name with a token password.
		opts.Auth = &githttp.BasicAuth{Username: "sieve", Password: e.Token}
	}

	e.config.logger().Info("cloning", "repo", repo.Name)
	// A bare clone suffices for history scans.
	if _, err := git.PlainCloneContext(ctx, dir, e.History, opts); err != nil {
		os.RemoveAll(tmp)
		return "", fmt.Errorf("cloning %s: %w", repo.Name, err)
	}
	return dir, nil
}

func (e *CloneEnumerator) scan(ctx context.Context, repo RepoInfo, dir string, callback func(content []byte, blobID types.BlobID, prov types.Provenance) error) error {
	config := e.config
	config.Root = dir

	if e.History {
		g := NewGitEnumerator(config)
		g.History = true
		return g.Enumerate(ctx, func(content []byte, blobID types.BlobID, prov types.Provenance) error {
			if gp, ok := prov.(types.GitProvenance); ok {
				gp.RepoPath = repo.Name
				prov = gp
			}
			return callback(content, blobID, prov)
		})
	}

	return NewFilesystemEnumerator(config).Enumerate(ctx, func(content []byte, blobID types.BlobID, prov types.Provenance) error {
		if fp, ok := prov.(types.FileProvenance); ok {
			rel, err := filepath.Rel(dir, fp.FilePath)
			if err != nil {
				rel = fp.FilePath
			}
			prov = types.GitProvenance{RepoPath: repo.Name, BlobPath: filepath.ToSlash(rel)}
		}
		return callback(content, blobID, prov)
	})
}
