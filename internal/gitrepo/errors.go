// Package gitrepo provides sentinel errors for the repository operations.
// All errors can be checked using errors.Is() for programmatic handling.
package gitrepo

import (
	"errors"
	"fmt"
)

// Common sentinel errors that can be checked with errors.Is().
// These wrap underlying go-git and git CLI errors while providing a stable
// API for consumers.

// ErrAlreadyUpToDate is returned when fetch or push operations result in no
// changes because the local and remote states are already synchronized.
var ErrAlreadyUpToDate = errors.New("already up to date")

// ErrMergeConflict is returned when a merge stops with unresolved conflicts.
// This is an expected outcome, not a hard failure; callers route it into
// the protected-path restoration flow.
var ErrMergeConflict = errors.New("merge conflict")

// ErrNotFastForward is returned when a push is rejected because the remote
// holds commits the local branch does not.
var ErrNotFastForward = errors.New("not a fast-forward")

// ErrBranchExists is returned when attempting to create a branch that
// already exists.
var ErrBranchExists = errors.New("branch already exists")

// ErrBranchMissing is returned when attempting to operate on a branch that
// does not exist.
var ErrBranchMissing = errors.New("branch does not exist")

// ErrInvalidRef is returned when a reference name or revision specification
// is malformed or invalid.
var ErrInvalidRef = errors.New("invalid reference")

// ErrResolveFailed is returned when a revision specification cannot be
// resolved to a valid commit hash.
var ErrResolveFailed = errors.New("cannot resolve revision")

// ErrEmptyCommit is returned when a commit is requested with no staged
// changes.
var ErrEmptyCommit = errors.New("no changes staged for commit")

// WrapError wraps an error with additional context while preserving
// the ability to check against sentinel errors using errors.Is().
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// WrapErrorf wraps an error with formatted additional context while
// preserving the ability to check against sentinel errors using errors.Is().
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
