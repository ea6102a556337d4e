package enum

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/praetorian-inc/sieve/pkg/types"
)

// GitEnumerator enumerates blobs from a git repository.
type GitEnumerator struct {
	config Config
	// CommitRef selects the commit to enumerate (defaults to HEAD).
	CommitRef string
	// History walks every commit reachable from CommitRef instead of
	// only its tree. Each blob is yielded once, attributed to the newest
	// commit that introduced it.
	History bool
}

// NewGitEnumerator creates a new git enumerator.
func NewGitEnumerator(config Config) *GitEnumerator {
	return &GitEnumerator{
		config:    config,
		CommitRef: "HEAD",
	}
}

// Enumerate yields the unique blobs of the selected commit, or of its
// history when History is set.
func (e *GitEnumerator) Enumerate(ctx context.Context, callback func(content []byte, blobID types.BlobID, prov types.Provenance) error) error {
	repo, err := git.PlainOpen(e.config.Root)
	if err != nil {
		return fmt.Errorf("failed to open git repository: %w", err)
	}

	ref := e.CommitRef
	if ref == "" {
		ref = "HEAD"
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return fmt.Errorf("failed to resolve ref %s: %w", ref, err)
	}

	seen := make(map[plumbing.Hash]bool)

	if !e.History {
		commit, err := repo.CommitObject(*hash)
		if err != nil {
			return fmt.Errorf("failed to get commit: %w", err)
		}
		return e.walkCommit(ctx, commit, seen, callback)
	}

	iter, err := repo.Log(&git.LogOptions{From: *hash, Order: git.LogOrderCommitterTime})
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	defer iter.Close()

	err = iter.ForEach(func(c *object.Commit) error {
		return e.walkCommit(ctx, c, seen, callback)
	})
	if errors.Is(err, storer.ErrStop) {
		return nil
	}
	return err
}

// walkCommit yields every blob in commit's tree not already in seen.
func (e *GitEnumerator) walkCommit(ctx context.Context, commit *object.Commit, seen map[plumbing.Hash]bool, callback func(content []byte, blobID types.BlobID, prov types.Provenance) error) error {
	tree, err := commit.Tree()
	if err != nil {
		return fmt.Errorf("failed to get tree: %w", err)
	}

	meta := commitMetadata(commit)
	err = tree.Files().ForEach(func(f *object.File) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if seen[f.Hash] {
			return nil
		}
		seen[f.Hash] = true

		if e.config.MaxFileSize > 0 && f.Size > e.config.MaxFileSize {
			return nil
		}

		content, err := readBlob(f)
		if err != nil {
			return fmt.Errorf("failed to get contents of %s: %w", f.Name, err)
		}

		prov := types.GitProvenance{
			RepoPath: e.config.Root,
			Commit:   meta,
			BlobPath: f.Name,
		}

		if e.config.Decompress {
			if codec := codecFor(f.Name); codec != "" {
				inflated, err := Decompress(codec, content, e.config.MaxFileSize)
				if err != nil {
					e.config.logger().Debug("skipping compressed blob", "path", f.Name, "codec", codec, "error", err)
					return nil
				}
				content = inflated
			}
		}

		if !e.config.IncludeBinary && isBinary(content) {
			return nil
		}
		return callback(content, types.ComputeBlobID(content), prov)
	})
	if err != nil {
		return fmt.Errorf("failed to walk tree of %s: %w", commit.Hash, err)
	}
	return nil
}

func readBlob(f *object.File) ([]byte, error) {
	r, err := f.Reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func commitMetadata(c *object.Commit) *types.CommitMetadata {
	return &types.CommitMetadata{
		CommitID:           c.Hash.String(),
		AuthorName:         c.Author.Name,
		AuthorEmail:        c.Author.Email,
		AuthorTimestamp:    c.Author.When,
		CommitterName:      c.Committer.Name,
		CommitterEmail:     c.Committer.Email,
		CommitterTimestamp: c.Committer.When,
		Message:            c.Message,
	}
}
