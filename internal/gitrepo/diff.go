// Package gitrepo provides a high-level wrapper over go-git.
// This file contains diff operations for comparing revisions by path.
package gitrepo

import (
	"context"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// PathFilter is a predicate for filtering changed paths. It returns true if
// the path should be included. A change must pass ALL filters to be included.
type PathFilter func(path string) bool

// PathPrefixFilter returns a filter that includes paths at or below the
// given prefix. Directory prefixes match their contents.
func PathPrefixFilter(prefix string) PathFilter {
	trimmed := strings.TrimSuffix(prefix, "/")
	return func(path string) bool {
		return path == trimmed || strings.HasPrefix(path, trimmed+"/")
	}
}

// ChangedPaths returns the sorted, de-duplicated set of paths that differ
// between revisions a and b. Renames contribute both the old and new path.
//
// Context timeout/cancellation is honored during the operation.
func (r *Repo) ChangedPaths(ctx context.Context, a, b string, filters ...PathFilter) ([]string, error) {
	if a == "" {
		return nil, WrapError(ErrInvalidRef, "revision 'a' cannot be empty")
	}
	if b == "" {
		return nil, WrapError(ErrInvalidRef, "revision 'b' cannot be empty")
	}

	treeA, err := r.treeForRevision(a)
	if err != nil {
		return nil, WrapErrorf(err, "failed to get tree for revision %q", a)
	}

	treeB, err := r.treeForRevision(b)
	if err != nil {
		return nil, WrapErrorf(err, "failed to get tree for revision %q", b)
	}

	changes, err := treeA.DiffContext(ctx, treeB)
	if err != nil {
		return nil, WrapError(err, "failed to compute changes")
	}

	seen := make(map[string]bool)
	var paths []string

	add := func(path string) {
		if path == "" || seen[path] {
			return
		}
		if !passesPathFilters(path, filters) {
			return
		}
		seen[path] = true
		paths = append(paths, path)
	}

	for _, change := range changes {
		add(change.From.Name)
		add(change.To.Name)
	}

	sort.Strings(paths)
	return paths, nil
}

// treeForRevision resolves a revision and returns its tree.
func (r *Repo) treeForRevision(rev string) (*object.Tree, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, WrapError(ErrResolveFailed, "failed to resolve revision")
	}

	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, WrapError(err, "failed to get commit object")
	}

	tree, err := commit.Tree()
	if err != nil {
		return nil, WrapError(err, "failed to get tree")
	}

	return tree, nil
}

// passesPathFilters checks if a path passes all filters.
func passesPathFilters(path string, filters []PathFilter) bool {
	for _, filter := range filters {
		if filter != nil && !filter(path) {
			return false
		}
	}
	return true
}
