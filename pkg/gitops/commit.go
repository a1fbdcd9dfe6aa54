package gitops

import (
	"fmt"
	"path/filepath"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	pterrors "github.com/natwellis/pagetender/pkg/errors"
)

// Committer records pipeline output into version control. It only
// stages and commits; pushing is the scheduler's job.
type Committer struct {
	repoPath    string
	authorName  string
	authorEmail string
}

// NewCommitter builds a committer over the repository at repoPath.
func NewCommitter(repoPath, authorName, authorEmail string) *Committer {
	if authorName == "" {
		authorName = "pagetender"
	}
	if authorEmail == "" {
		authorEmail = "pagetender@localhost"
	}
	return &Committer{
		repoPath:    repoPath,
		authorName:  authorName,
		authorEmail: authorEmail,
	}
}

// CommitPaths stages the given paths and creates a commit with the
// given message, returning the commit hash. Paths may be absolute or
// relative to the repository root.
func (c *Committer) CommitPaths(paths []string, message string, when time.Time) (string, error) {
	repo, err := git.PlainOpen(c.repoPath)
	if err != nil {
		return "", pterrors.Wrap(err, pterrors.ErrCodeCommitFailed, "open repo").
			WithContext("path", c.repoPath)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", pterrors.Wrap(err, pterrors.ErrCodeCommitFailed, "get worktree")
	}

	for _, path := range paths {
		rel, err := c.relToRoot(path)
		if err != nil {
			return "", err
		}
		if _, err := wt.Add(rel); err != nil {
			return "", pterrors.Wrap(err, pterrors.ErrCodeCommitFailed, "stage file").
				WithContext("path", rel)
		}
	}

	commit, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  c.authorName,
			Email: c.authorEmail,
			When:  when,
		},
	})
	if err != nil {
		return "", pterrors.Wrap(err, pterrors.ErrCodeCommitFailed, "commit")
	}

	return commit.String(), nil
}

// relToRoot normalizes a path to be relative to the repository root,
// which is what go-git's worktree API expects.
func (c *Committer) relToRoot(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(filepath.Clean(path)), nil
	}
	root, err := filepath.Abs(c.repoPath)
	if err != nil {
		return "", pterrors.Wrap(err, pterrors.ErrCodeCommitFailed, "resolve repo root")
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", pterrors.Wrap(err, pterrors.ErrCodeCommitFailed,
			fmt.Sprintf("path %s is outside the repository", path))
	}
	return filepath.ToSlash(rel), nil
}
