// Package gitrepo provides a high-level wrapper over go-git for the fork
// checkout that upsync operates on. It exposes the handful of task-oriented
// operations the sync pipeline needs (fetch, revision resolution, branch
// snapshots, diffs, commits, push) while keeping go-git types out of callers.
package gitrepo

import (
	"context"
	"io"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

const (
	// DefaultStorerCacheSize is the default size for the LRU object cache.
	DefaultStorerCacheSize = 1000

	// DefaultRemoteName is the remote used when none is specified.
	DefaultRemoteName = "origin"
)

// Options configures repository access and performance.
type Options struct {
	// Dir is the REQUIRED path of the worktree root on disk.
	Dir string

	// StorerCacheSize sets the LRU objects cache entries.
	// Defaults to DefaultStorerCacheSize.
	StorerCacheSize int

	// Progress receives sideband progress text during fetch and push.
	// If nil, progress output is discarded.
	Progress io.Writer
}

// Validate checks that the Options are properly configured.
func (o *Options) Validate() error {
	if o.Dir == "" {
		return WrapError(ErrInvalidRef, "Dir is required")
	}

	if o.StorerCacheSize < 0 {
		return WrapError(ErrInvalidRef, "StorerCacheSize cannot be negative")
	}

	return nil
}

// applyDefaults sets default values for any unset fields in Options.
func (o *Options) applyDefaults() {
	if o.StorerCacheSize == 0 {
		o.StorerCacheSize = DefaultStorerCacheSize
	}
}

// Signature identifies the author/committer of commits the tool creates.
type Signature struct {
	// Name is the committer's name.
	Name string

	// Email is the committer's email address.
	Email string

	// When is the timestamp for the signature. Zero means time.Now at commit.
	When time.Time
}

// Repo represents an existing non-bare git checkout and provides the
// high-level operations used by the sync pipeline.
type Repo struct {
	repo     *git.Repository
	worktree *git.Worktree
	options  Options
}

// Open opens an existing non-bare repository at opts.Dir.
// Both the .git directory and the worktree must be present.
func Open(ctx context.Context, opts *Options) (*Repo, error) {
	if err := opts.Validate(); err != nil {
		return nil, WrapError(err, "invalid options")
	}

	opts.applyDefaults()

	worktreeFS := osfs.New(opts.Dir)

	dotGitFS, err := worktreeFS.Chroot(git.GitDirName)
	if err != nil {
		return nil, WrapError(err, "failed to access .git directory")
	}

	objCache := cache.NewObjectLRU(cache.FileSize(opts.StorerCacheSize))
	storage := filesystem.NewStorage(dotGitFS, objCache)

	repo, err := git.Open(storage, worktreeFS)
	if err != nil {
		return nil, WrapError(err, "failed to open repository")
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, WrapError(err, "failed to get worktree")
	}

	return &Repo{
		repo:     repo,
		worktree: worktree,
		options:  *opts,
	}, nil
}

// Init creates a new non-bare repository at opts.Dir.
// It exists primarily so tests and bootstrap tooling can build checkouts
// through the same facade the sync pipeline uses.
func Init(ctx context.Context, opts *Options) (*Repo, error) {
	if err := opts.Validate(); err != nil {
		return nil, WrapError(err, "invalid options")
	}

	opts.applyDefaults()

	worktreeFS := osfs.New(opts.Dir)

	dotGitFS, err := worktreeFS.Chroot(git.GitDirName)
	if err != nil {
		return nil, WrapError(err, "failed to create .git directory")
	}

	objCache := cache.NewObjectLRU(cache.FileSize(opts.StorerCacheSize))
	storage := filesystem.NewStorage(dotGitFS, objCache)

	repo, err := git.Init(storage, worktreeFS)
	if err != nil {
		return nil, WrapError(err, "failed to initialize repository")
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, WrapError(err, "failed to get worktree")
	}

	return &Repo{
		repo:     repo,
		worktree: worktree,
		options:  *opts,
	}, nil
}

// Dir returns the worktree root path.
func (r *Repo) Dir() string {
	return r.options.Dir
}
