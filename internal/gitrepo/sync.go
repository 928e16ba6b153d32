// Package gitrepo provides a high-level wrapper over go-git.
// This file contains remote synchronization operations (fetch, push).
package gitrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Fetch fetches changes from the specified remote.
// Returns ErrAlreadyUpToDate if there are no changes to fetch.
//
// Context timeout/cancellation is honored during the fetch operation.
func (r *Repo) Fetch(ctx context.Context, remote string) error {
	if remote == "" {
		remote = DefaultRemoteName
	}

	fetchOpts := &git.FetchOptions{
		RemoteName: remote,
		Progress:   r.options.Progress,
	}

	err := r.repo.FetchContext(ctx, fetchOpts)
	if err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return WrapErrorf(ErrResolveFailed, "remote %q not found", remote)
		}
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			return ErrAlreadyUpToDate
		}
		return WrapErrorf(err, "failed to fetch from %q", remote)
	}

	return nil
}

// Push pushes the given local branch to the specified remote.
// Returns ErrAlreadyUpToDate if there is nothing to push and
// ErrNotFastForward if the remote rejected the update.
//
// Context timeout/cancellation is honored during the push operation.
func (r *Repo) Push(ctx context.Context, remote, branch string) error {
	if remote == "" {
		remote = DefaultRemoteName
	}

	if branch == "" {
		return WrapError(ErrInvalidRef, "branch name cannot be empty")
	}

	refSpec := config.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))

	pushOpts := &git.PushOptions{
		RemoteName: remote,
		RefSpecs:   []config.RefSpec{refSpec},
		Progress:   r.options.Progress,
	}

	err := r.repo.PushContext(ctx, pushOpts)
	if err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return WrapErrorf(ErrResolveFailed, "remote %q not found", remote)
		}
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			return ErrAlreadyUpToDate
		}
		if errors.Is(err, git.ErrNonFastForwardUpdate) {
			return WrapErrorf(ErrNotFastForward, "push of %q rejected by %q", branch, remote)
		}
		if errors.Is(err, transport.ErrAuthenticationRequired) {
			return WrapErrorf(err, "authentication required pushing %q to %q", branch, remote)
		}
		return WrapErrorf(err, "failed to push %q to %q", branch, remote)
	}

	return nil
}
