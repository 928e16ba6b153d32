// Package syncer implements the protected sync workflow: change detection,
// pre-merge branch snapshot, protected-path-preserving merge, conditional
// rebuild of derived artifacts, and the push that triggers redeployment.
// Execution is a single linear, blocking pipeline; every external call is
// attempted exactly once.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/Ofunrein/n8n-workflows/internal/config"
	"github.com/Ofunrein/n8n-workflows/internal/confirm"
	"github.com/Ofunrein/n8n-workflows/internal/gitrepo"
	"github.com/Ofunrein/n8n-workflows/internal/protect"
)

// previewLimit caps how many pending paths are listed before the pre-merge
// gate; the full count is always shown.
const previewLimit = 20

// Repository is the subset of gitrepo operations the engine needs.
// *gitrepo.Repo satisfies it; tests substitute fakes.
type Repository interface {
	CurrentBranch(ctx context.Context) (string, error)
	Fetch(ctx context.Context, remote string) error
	ResolveRevision(rev string) (string, error)
	ChangedPaths(ctx context.Context, a, b string, filters ...gitrepo.PathFilter) ([]string, error)
	CreateBranch(ctx context.Context, name, startRev string) error
	DeleteBranch(ctx context.Context, name string) error
	Merge(ctx context.Context, rev string) error
	ConflictedPaths(ctx context.Context) ([]string, error)
	CommitMergeResolution(ctx context.Context, msg string, who gitrepo.Signature) (string, error)
	StageAll(ctx context.Context) error
	Commit(ctx context.Context, msg string, who gitrepo.Signature) (string, error)
	IsDirty(ctx context.Context) (bool, error)
	Push(ctx context.Context, remote, branch string) error
}

// Engine orchestrates the sync pipeline.
type Engine struct {
	cfg       *config.Config
	repo      Repository
	runner    CommandRunner
	confirmer confirm.Confirmer
	logger    *slog.Logger
	out       io.Writer
	statePath string
	dryRun    bool
	now       func() time.Time
}

// Option configures the engine.
type Option func(*Engine)

// WithOutput directs operator-facing status text to w instead of stdout.
func WithOutput(w io.Writer) Option {
	return func(e *Engine) { e.out = w }
}

// WithStatePath enables the last-run report at the given path.
func WithStatePath(path string) Option {
	return func(e *Engine) { e.statePath = path }
}

// WithDryRun stops the pipeline after the change preview.
func WithDryRun(dryRun bool) Option {
	return func(e *Engine) { e.dryRun = dryRun }
}

// WithClock overrides the time source used for backup branch names.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a sync engine with the given collaborators.
func NewEngine(cfg *config.Config, repo Repository, runner CommandRunner, confirmer confirm.Confirmer, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		repo:      repo,
		runner:    runner,
		confirmer: confirmer,
		logger:    logger,
		out:       os.Stdout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the complete sync pipeline.
//
// Errors are returned only for the two fatal branches (FetchError,
// PushError) and for unexpected internal failures. An up-to-date
// repository, an operator decline, and rebuild failures all return nil.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	rep := &Report{StartedAt: e.now()}

	branch, err := e.repo.CurrentBranch(ctx)
	if err != nil {
		return rep, fmt.Errorf("failed to determine current branch: %w", err)
	}
	if branch != e.cfg.Repo.CanonicalBranch {
		return rep, fmt.Errorf("checkout is on %q, expected canonical branch %q", branch, e.cfg.Repo.CanonicalBranch)
	}

	pending, err := e.detectChanges(ctx, rep)
	if err != nil {
		return rep, err
	}
	if rep.UpToDate {
		e.successf("Already up to date with %s.", e.cfg.UpstreamRef())
		e.writeReport(rep)
		return rep, nil
	}

	e.printPending(pending)

	if e.dryRun {
		e.infof("Dry run: no changes applied.")
		return rep, nil
	}

	backup := fmt.Sprintf("upsync-backup-%s", e.now().Format("20060102-150405"))
	if err := e.repo.CreateBranch(ctx, backup, rep.LocalBefore); err != nil {
		return rep, fmt.Errorf("failed to create backup branch: %w", err)
	}
	rep.BackupBranch = backup
	e.logger.Info("created backup branch", "branch", backup, "at", rep.LocalBefore)

	ok, err := e.confirmer.Confirm(fmt.Sprintf("Merge %d upstream change(s) into %s?", len(pending), e.cfg.Repo.CanonicalBranch))
	if err != nil {
		return rep, fmt.Errorf("confirmation failed: %w", err)
	}
	if !ok {
		if err := e.repo.DeleteBranch(ctx, backup); err != nil {
			e.logger.Warn("failed to delete backup branch after abort", "branch", backup, "error", err)
		}
		rep.BackupBranch = ""
		rep.Aborted = true
		e.infof("Sync aborted; no changes made.")
		return rep, nil
	}

	if err := e.mergeProtected(ctx, rep); err != nil {
		return rep, err
	}

	e.rebuildIfWatched(ctx, rep)

	pushCmd := fmt.Sprintf("git push %s %s", e.cfg.Repo.OriginRemote, e.cfg.Repo.CanonicalBranch)
	ok, err = e.confirmer.Confirm(fmt.Sprintf("Push %s to %s (triggers deployment)?", e.cfg.Repo.CanonicalBranch, e.cfg.Repo.OriginRemote))
	if err != nil {
		return rep, fmt.Errorf("confirmation failed: %w", err)
	}
	if !ok {
		rep.PushDeclined = true
		e.infof("Push skipped. Publish manually with: %s", pushCmd)
		e.writeReport(rep)
		return rep, nil
	}

	err = e.repo.Push(ctx, e.cfg.Repo.OriginRemote, e.cfg.Repo.CanonicalBranch)
	if err != nil && !errors.Is(err, gitrepo.ErrAlreadyUpToDate) {
		return rep, &PushError{Err: err}
	}
	rep.Pushed = true
	rep.FinishedAt = e.now()

	e.writeReport(rep)
	e.printSummary(rep)
	return rep, nil
}

// Status fetches upstream and reports pending work without mutating the
// checkout in any way.
func (e *Engine) Status(ctx context.Context) (*Report, error) {
	rep := &Report{StartedAt: e.now()}

	pending, err := e.detectChanges(ctx, rep)
	if err != nil {
		return rep, err
	}

	if rep.UpToDate {
		e.successf("Already up to date with %s.", e.cfg.UpstreamRef())
		return rep, nil
	}

	e.printPending(pending)
	return rep, nil
}

// detectChanges fetches upstream and compares the canonical branch pointer
// with the upstream pointer. Equality means no pending work.
func (e *Engine) detectChanges(ctx context.Context, rep *Report) ([]string, error) {
	e.infof("Fetching %s...", e.cfg.Repo.UpstreamRemote)
	err := e.repo.Fetch(ctx, e.cfg.Repo.UpstreamRemote)
	if err != nil && !errors.Is(err, gitrepo.ErrAlreadyUpToDate) {
		return nil, &FetchError{Err: err}
	}

	local, err := e.repo.ResolveRevision(e.cfg.Repo.CanonicalBranch)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve canonical branch: %w", err)
	}
	rep.LocalBefore = local

	upstream, err := e.repo.ResolveRevision(e.cfg.UpstreamRef())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upstream ref: %w", err)
	}
	rep.Upstream = upstream

	if local == upstream {
		rep.UpToDate = true
		return nil, nil
	}

	pending, err := e.repo.ChangedPaths(ctx, local, upstream)
	if err != nil {
		return nil, fmt.Errorf("failed to compute pending changes: %w", err)
	}
	rep.PendingPaths = len(pending)

	return pending, nil
}

// mergeProtected runs the protected merge procedure: shadow the protected
// paths, merge, and restore on conflict. After a clean merge the protected
// paths are re-verified and restored if upstream touched them, so the
// byte-identity invariant holds on both branches of the merge outcome.
func (e *Engine) mergeProtected(ctx context.Context, rep *Report) error {
	snap, err := protect.Take(protect.Set(e.cfg.Protected), e.cfg.Repo.Dir)
	if err != nil {
		return fmt.Errorf("failed to shadow protected paths: %w", err)
	}
	defer snap.Discard()

	e.logger.Info("protected paths shadowed", "count", len(snap.Members()))

	sig := e.signature()
	mergeErr := e.repo.Merge(ctx, rep.Upstream)

	switch {
	case mergeErr == nil:
		touched, err := snap.Changed()
		if err != nil {
			return fmt.Errorf("failed to verify protected paths: %w", err)
		}
		if len(touched) > 0 {
			e.warnf("Upstream modified %d protected path(s); restoring.", len(touched))
			if err := snap.Restore(touched...); err != nil {
				return fmt.Errorf("failed to restore protected paths: %w", err)
			}
			if err := e.repo.StageAll(ctx); err != nil {
				return err
			}
			if _, err := e.repo.Commit(ctx, config.ResolutionCommitMessage, sig); err != nil {
				return fmt.Errorf("failed to commit protected restore: %w", err)
			}
			rep.ProtectedRestored = len(touched)
		}
		e.successf("Merged upstream changes cleanly.")

	case errors.Is(mergeErr, gitrepo.ErrMergeConflict):
		rep.Conflicted = true
		conflicts, err := e.repo.ConflictedPaths(ctx)
		if err != nil {
			e.logger.Warn("failed to list conflicted paths", "error", err)
		} else {
			e.logger.Info("merge conflicts detected", "paths", conflicts)
		}
		e.warnf("Merge conflicts detected; restoring protected files.")

		if err := snap.RestoreAll(); err != nil {
			return fmt.Errorf("failed to restore protected paths: %w", err)
		}
		if _, err := e.repo.CommitMergeResolution(ctx, config.ResolutionCommitMessage, sig); err != nil {
			return fmt.Errorf("failed to commit merge resolution: %w", err)
		}
		rep.ProtectedRestored = len(snap.Members())
		e.successf("Merge resolved with protected files preserved.")

	default:
		return fmt.Errorf("merge failed: %w", mergeErr)
	}

	return nil
}

// rebuildIfWatched runs the derived-artifact rebuilds when the merge changed
// anything under the watched directory. Both rebuilds are best-effort: a
// failure is logged with the manual command and the sync continues.
func (e *Engine) rebuildIfWatched(ctx context.Context, rep *Report) {
	watched, err := e.repo.ChangedPaths(ctx, rep.LocalBefore, "HEAD",
		gitrepo.PathPrefixFilter(e.cfg.Watch.Dir))
	if err != nil {
		e.logger.Warn("failed to compute watched changes, skipping rebuild", "error", err)
		return
	}
	rep.WatchedChanged = len(watched)

	if len(watched) == 0 {
		e.logger.Info("no watched changes, skipping rebuild", "dir", e.cfg.Watch.Dir)
		return
	}

	e.infof("%d change(s) under %s/; rebuilding derived artifacts.", len(watched), e.cfg.Watch.Dir)

	if e.cfg.Rebuild.AutoRebuildDB {
		rep.IndexRebuilt = e.runRebuild(ctx, "workflow database", e.cfg.Rebuild.IndexCommand)
	}
	if e.cfg.Rebuild.AutoBuildDeployData {
		rep.DeployDataRebuilt = e.runRebuild(ctx, "deployment data", e.cfg.Rebuild.DeployDataCommand)
	}

	dirty, err := e.repo.IsDirty(ctx)
	if err != nil {
		e.logger.Warn("failed to check worktree after rebuild", "error", err)
		return
	}
	if !dirty {
		return
	}

	if err := e.repo.StageAll(ctx); err != nil {
		e.logger.Warn("failed to stage rebuild output", "error", err)
		return
	}
	if _, err := e.repo.Commit(ctx, config.RebuildCommitMessage, e.signature()); err != nil {
		if !errors.Is(err, gitrepo.ErrEmptyCommit) {
			e.logger.Warn("failed to commit rebuild output", "error", err)
		}
		return
	}
	rep.RebuildCommitted = true
}

// runRebuild invokes one rebuild command; returns whether it succeeded.
func (e *Engine) runRebuild(ctx context.Context, name string, argv []string) bool {
	e.logger.Info("rebuilding", "artifact", name, "command", strings.Join(argv, " "))

	out, err := e.runner.Run(ctx, e.cfg.Repo.Dir, argv)
	if err != nil {
		e.warnf("%s rebuild failed; run manually: %s", name, strings.Join(argv, " "))
		e.logger.Warn("rebuild failed", "artifact", name, "error", err, "output", strings.TrimSpace(out))
		return false
	}

	return true
}

func (e *Engine) signature() gitrepo.Signature {
	return gitrepo.Signature{
		Name:  e.cfg.Committer.Name,
		Email: e.cfg.Committer.Email,
		When:  e.now(),
	}
}

// printPending shows the pending change summary before the pre-merge gate.
func (e *Engine) printPending(pending []string) {
	e.infof("%d path(s) differ from %s:", len(pending), e.cfg.UpstreamRef())
	for i, p := range pending {
		if i == previewLimit {
			e.infof("  ... and %d more", len(pending)-previewLimit)
			break
		}
		e.infof("  %s", p)
	}
}

// printSummary reports the final outcome of a completed run.
func (e *Engine) printSummary(rep *Report) {
	e.successf("Sync complete.")
	e.infof("  upstream:          %s", rep.Upstream)
	e.infof("  backup branch:     %s", rep.BackupBranch)
	e.infof("  pending paths:     %d", rep.PendingPaths)
	e.infof("  watched changes:   %d", rep.WatchedChanged)
	if rep.Conflicted {
		e.infof("  merge:             conflicted, protected files restored")
	} else {
		e.infof("  merge:             clean")
	}
	if rep.Pushed {
		e.infof("  deployment:        triggered by push to %s", e.cfg.Repo.OriginRemote)
	}
}

// writeReport persists the last-run report; failures only warn.
func (e *Engine) writeReport(rep *Report) {
	if e.statePath == "" {
		return
	}
	if err := WriteReport(e.statePath, rep); err != nil {
		e.logger.Warn("failed to write last-run report", "path", e.statePath, "error", err)
	}
}

func (e *Engine) infof(format string, args ...interface{}) {
	fmt.Fprintf(e.out, format+"\n", args...)
}

func (e *Engine) successf(format string, args ...interface{}) {
	color.New(color.FgGreen).Fprintf(e.out, format+"\n", args...)
}

func (e *Engine) warnf(format string, args ...interface{}) {
	color.New(color.FgYellow).Fprintf(e.out, format+"\n", args...)
}
