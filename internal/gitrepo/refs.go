// Package gitrepo provides a high-level wrapper over go-git.
// This file contains reference resolution operations.
package gitrepo

import (
	"context"

	"github.com/go-git/go-git/v5/plumbing"
)

// ResolveRevision resolves any valid revision specifier (branch name, remote
// branch, tag, SHA) to its full commit hash. The returned string is the
// revision pointer the sync pipeline compares by equality.
func (r *Repo) ResolveRevision(rev string) (string, error) {
	if rev == "" {
		return "", WrapError(ErrInvalidRef, "revision cannot be empty")
	}

	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return "", WrapErrorf(ErrResolveFailed, "failed to resolve %q", rev)
	}

	return hash.String(), nil
}

// CurrentBranch returns the name of the currently checked out branch.
// It returns an error if HEAD is in a detached state.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", WrapError(err, "failed to get HEAD reference")
	}

	if !head.Name().IsBranch() {
		return "", WrapError(ErrResolveFailed, "HEAD is detached")
	}

	return head.Name().Short(), nil
}
