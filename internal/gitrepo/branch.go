// Package gitrepo provides a high-level wrapper over go-git.
// This file contains branch operations used for the pre-merge snapshot.
package gitrepo

import (
	"context"

	"github.com/go-git/go-git/v5/plumbing"
)

// CreateBranch creates a new branch pointing at the specified revision.
// The worktree is not switched; the branch is a named snapshot only.
//
// Context timeout/cancellation is honored during the operation.
func (r *Repo) CreateBranch(ctx context.Context, name, startRev string) error {
	if err := ctx.Err(); err != nil {
		return WrapError(err, "context cancelled")
	}

	if name == "" {
		return WrapError(ErrInvalidRef, "branch name cannot be empty")
	}

	if startRev == "" {
		return WrapError(ErrInvalidRef, "start revision cannot be empty")
	}

	hash, err := r.repo.ResolveRevision(plumbing.Revision(startRev))
	if err != nil {
		return WrapError(ErrResolveFailed, "failed to resolve start revision")
	}

	branchRefName := plumbing.NewBranchReferenceName(name)
	if _, err := r.repo.Reference(branchRefName, true); err == nil {
		return WrapErrorf(ErrBranchExists, "branch %q", name)
	}

	newRef := plumbing.NewHashReference(branchRefName, *hash)
	if err := r.repo.Storer.SetReference(newRef); err != nil {
		return WrapError(err, "failed to create branch reference")
	}

	return nil
}

// DeleteBranch deletes the specified local branch.
// It refuses to delete the currently checked out branch.
//
// Context timeout/cancellation is honored during the operation.
func (r *Repo) DeleteBranch(ctx context.Context, name string) error {
	if name == "" {
		return WrapError(ErrInvalidRef, "branch name cannot be empty")
	}

	branchRefName := plumbing.NewBranchReferenceName(name)

	if _, err := r.repo.Reference(branchRefName, true); err != nil {
		return WrapErrorf(ErrBranchMissing, "branch %q", name)
	}

	current, err := r.CurrentBranch(ctx)
	if err == nil && current == name {
		return WrapError(ErrInvalidRef, "cannot delete the currently checked out branch")
	}

	if err := r.repo.Storer.RemoveReference(branchRefName); err != nil {
		return WrapError(err, "failed to delete branch")
	}

	return nil
}
