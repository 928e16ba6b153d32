// Package gitrepo provides a high-level wrapper over go-git.
// This file contains the merge operations, which shell out to the git CLI:
// go-git can only fast-forward, and the sync pipeline needs real three-way
// merges that stop on conflicts.
package gitrepo

import (
	"context"
	"strings"

	"github.com/Ofunrein/n8n-workflows/internal/executor"
)

// Merge merges the given revision into the currently checked out branch.
// A clean merge returns nil. A merge that stops with unresolved conflicts
// returns ErrMergeConflict; the conflicted state is left in place for the
// caller to resolve. Any other failure is returned as a hard error.
//
// Context timeout/cancellation is honored during the operation.
func (r *Repo) Merge(ctx context.Context, rev string) error {
	if rev == "" {
		return WrapError(ErrInvalidRef, "revision cannot be empty")
	}

	res, err := executor.New("git", "merge", "--no-edit", rev).Execute(ctx,
		executor.WithWorkingDir(r.options.Dir),
		executor.WithCapture(false, false, true),
	)
	if err == nil {
		return nil
	}

	conflicted, confErr := r.ConflictedPaths(ctx)
	if confErr == nil && len(conflicted) > 0 {
		return ErrMergeConflict
	}

	detail := ""
	if res != nil {
		detail = strings.TrimSpace(res.Combined)
	}
	if detail != "" {
		return WrapErrorf(err, "git merge failed: %s", detail)
	}
	return WrapError(err, "git merge failed")
}

// ConflictedPaths returns the paths that are in an unmerged state.
func (r *Repo) ConflictedPaths(ctx context.Context) ([]string, error) {
	res, err := executor.New("git", "diff", "--name-only", "--diff-filter=U").Execute(ctx,
		executor.WithWorkingDir(r.options.Dir),
	)
	if err != nil {
		return nil, WrapError(err, "failed to list conflicted paths")
	}

	var paths []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			paths = append(paths, line)
		}
	}

	return paths, nil
}

// CommitMergeResolution stages everything and commits the in-progress merge
// through the git CLI, so the resolution commit keeps both parents recorded
// in MERGE_HEAD. Returns the SHA of the resolution commit.
func (r *Repo) CommitMergeResolution(ctx context.Context, msg string, who Signature) (string, error) {
	if msg == "" {
		return "", WrapError(ErrInvalidRef, "commit message cannot be empty")
	}

	if who.Name == "" || who.Email == "" {
		return "", WrapError(ErrInvalidRef, "committer name and email are required")
	}

	env := map[string]string{
		"GIT_AUTHOR_NAME":     who.Name,
		"GIT_AUTHOR_EMAIL":    who.Email,
		"GIT_COMMITTER_NAME":  who.Name,
		"GIT_COMMITTER_EMAIL": who.Email,
	}

	if _, err := executor.New("git", "add", "-A").Execute(ctx,
		executor.WithWorkingDir(r.options.Dir),
	); err != nil {
		return "", WrapError(err, "failed to stage merge resolution")
	}

	if _, err := executor.New("git", "commit", "-m", msg).Execute(ctx,
		executor.WithWorkingDir(r.options.Dir),
		executor.WithEnv(env),
	); err != nil {
		return "", WrapError(err, "failed to commit merge resolution")
	}

	return r.ResolveRevision("HEAD")
}
