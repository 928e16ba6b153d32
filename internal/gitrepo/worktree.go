// Package gitrepo provides a high-level wrapper over go-git.
// This file contains worktree operations (staging, committing, status).
package gitrepo

import (
	"context"
	"errors"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// StageAll stages every modified, deleted and untracked file in the
// worktree, equivalent to 'git add -A'.
//
// Context timeout/cancellation is honored during the operation.
func (r *Repo) StageAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return WrapError(err, "context cancelled")
	}

	if err := r.worktree.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return WrapError(err, "failed to stage changes")
	}

	return nil
}

// IsDirty reports whether the worktree has uncommitted changes, staged or
// not. Untracked files count as dirty.
func (r *Repo) IsDirty(ctx context.Context) (bool, error) {
	status, err := r.worktree.Status()
	if err != nil {
		return false, WrapError(err, "failed to get worktree status")
	}

	return !status.IsClean(), nil
}

// Commit creates a new commit from the staged changes and returns its SHA.
// Returns ErrEmptyCommit when nothing is staged.
//
// Context timeout/cancellation is honored during the operation.
func (r *Repo) Commit(ctx context.Context, msg string, who Signature) (string, error) {
	if msg == "" {
		return "", WrapError(ErrInvalidRef, "commit message cannot be empty")
	}

	if who.Name == "" || who.Email == "" {
		return "", WrapError(ErrInvalidRef, "committer name and email are required")
	}

	status, err := r.worktree.Status()
	if err != nil {
		return "", WrapError(err, "failed to get worktree status")
	}

	staged := 0
	for _, fileStatus := range status {
		if fileStatus.Staging != git.Untracked && fileStatus.Staging != git.Unmodified {
			staged++
		}
	}

	if staged == 0 {
		return "", ErrEmptyCommit
	}

	when := who.When
	if when.IsZero() {
		when = time.Now()
	}

	sig := &object.Signature{
		Name:  who.Name,
		Email: who.Email,
		When:  when,
	}

	hash, err := r.worktree.Commit(msg, &git.CommitOptions{
		Author:    sig,
		Committer: sig,
	})
	if err != nil {
		if errors.Is(err, git.ErrEmptyCommit) {
			return "", ErrEmptyCommit
		}
		return "", WrapError(err, "failed to create commit")
	}

	return hash.String(), nil
}
