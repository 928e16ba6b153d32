package gitrepo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRepo bundles a repository rooted in a temp dir with its context.
type testRepo struct {
	repo *Repo
	dir  string
	ctx  context.Context
}

var testSig = Signature{
	Name:  "Test Committer",
	Email: "test@example.com",
	When:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
}

// setupTestRepo initializes an empty repository in a temp dir.
func setupTestRepo(t *testing.T) *testRepo {
	t.Helper()

	dir := t.TempDir()
	ctx := context.Background()

	repo, err := Init(ctx, &Options{Dir: dir})
	require.NoError(t, err, "failed to initialize test repository")
	require.NotNil(t, repo, "repository should not be nil")

	return &testRepo{repo: repo, dir: dir, ctx: ctx}
}

// setupTestRepoWithCommit initializes a repository with one committed file.
func setupTestRepoWithCommit(t *testing.T) *testRepo {
	t.Helper()

	tr := setupTestRepo(t)
	tr.writeFile(t, "test.txt", "initial content")
	tr.commitAll(t, "Initial commit")
	return tr
}

// writeFile writes a file relative to the worktree root.
func (tr *testRepo) writeFile(t *testing.T, rel, content string) {
	t.Helper()

	path := filepath.Join(tr.dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// commitAll stages everything and commits, returning the commit SHA.
func (tr *testRepo) commitAll(t *testing.T, msg string) string {
	t.Helper()

	require.NoError(t, tr.repo.StageAll(tr.ctx))
	sha, err := tr.repo.Commit(tr.ctx, msg, testSig)
	require.NoError(t, err, "failed to commit")
	return sha
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{name: "missing dir", opts: Options{}, wantErr: true},
		{name: "negative cache", opts: Options{Dir: "/tmp/x", StorerCacheSize: -1}, wantErr: true},
		{name: "valid", opts: Options{Dir: "/tmp/x"}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidRef))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestOpenMissingRepository(t *testing.T) {
	_, err := Open(context.Background(), &Options{Dir: t.TempDir()})
	require.Error(t, err)
}

func TestOpenExistingRepository(t *testing.T) {
	tr := setupTestRepoWithCommit(t)

	reopened, err := Open(tr.ctx, &Options{Dir: tr.dir})
	require.NoError(t, err)

	head, err := reopened.ResolveRevision("HEAD")
	require.NoError(t, err)
	assert.Len(t, head, 40)
}

func TestCommit(t *testing.T) {
	tr := setupTestRepo(t)
	tr.writeFile(t, "test.txt", "content")

	require.NoError(t, tr.repo.StageAll(tr.ctx))

	sha, err := tr.repo.Commit(tr.ctx, "Initial commit", testSig)
	require.NoError(t, err)
	assert.Len(t, sha, 40)

	dirty, err := tr.repo.IsDirty(tr.ctx)
	require.NoError(t, err)
	assert.False(t, dirty, "worktree should be clean after commit")
}

func TestCommitValidation(t *testing.T) {
	tr := setupTestRepoWithCommit(t)

	_, err := tr.repo.Commit(tr.ctx, "", testSig)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRef))

	_, err = tr.repo.Commit(tr.ctx, "msg", Signature{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRef))

	// Nothing staged.
	_, err = tr.repo.Commit(tr.ctx, "msg", testSig)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyCommit))
}

func TestIsDirty(t *testing.T) {
	tr := setupTestRepoWithCommit(t)

	dirty, err := tr.repo.IsDirty(tr.ctx)
	require.NoError(t, err)
	assert.False(t, dirty)

	tr.writeFile(t, "new.txt", "untracked")

	dirty, err = tr.repo.IsDirty(tr.ctx)
	require.NoError(t, err)
	assert.True(t, dirty, "untracked files count as dirty")
}

func TestResolveRevision(t *testing.T) {
	tr := setupTestRepoWithCommit(t)

	head, err := tr.repo.ResolveRevision("HEAD")
	require.NoError(t, err)
	assert.Len(t, head, 40)

	branch, err := tr.repo.CurrentBranch(tr.ctx)
	require.NoError(t, err)

	byName, err := tr.repo.ResolveRevision(branch)
	require.NoError(t, err)
	assert.Equal(t, head, byName)

	_, err = tr.repo.ResolveRevision("no-such-rev")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResolveFailed))

	_, err = tr.repo.ResolveRevision("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRef))
}

func TestCreateAndDeleteBranch(t *testing.T) {
	tr := setupTestRepoWithCommit(t)

	require.NoError(t, tr.repo.CreateBranch(tr.ctx, "backup-1", "HEAD"))

	head, err := tr.repo.ResolveRevision("HEAD")
	require.NoError(t, err)

	at, err := tr.repo.ResolveRevision("backup-1")
	require.NoError(t, err)
	assert.Equal(t, head, at, "branch should point at start revision")

	err = tr.repo.CreateBranch(tr.ctx, "backup-1", "HEAD")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBranchExists))

	require.NoError(t, tr.repo.DeleteBranch(tr.ctx, "backup-1"))

	_, err = tr.repo.ResolveRevision("backup-1")
	require.Error(t, err)

	err = tr.repo.DeleteBranch(tr.ctx, "backup-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBranchMissing))
}

func TestDeleteCurrentBranchRefused(t *testing.T) {
	tr := setupTestRepoWithCommit(t)

	current, err := tr.repo.CurrentBranch(tr.ctx)
	require.NoError(t, err)

	err = tr.repo.DeleteBranch(tr.ctx, current)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRef))
}

func TestChangedPaths(t *testing.T) {
	tr := setupTestRepoWithCommit(t)
	first, err := tr.repo.ResolveRevision("HEAD")
	require.NoError(t, err)

	tr.writeFile(t, "workflows/0001_example.json", `{"nodes": []}`)
	tr.writeFile(t, "README.md", "docs")
	second := tr.commitAll(t, "Add workflow and docs")

	paths, err := tr.repo.ChangedPaths(tr.ctx, first, second)
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "workflows/0001_example.json"}, paths)

	watched, err := tr.repo.ChangedPaths(tr.ctx, first, second, PathPrefixFilter("workflows"))
	require.NoError(t, err)
	assert.Equal(t, []string{"workflows/0001_example.json"}, watched)

	none, err := tr.repo.ChangedPaths(tr.ctx, first, first)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestChangedPathsValidation(t *testing.T) {
	tr := setupTestRepoWithCommit(t)

	_, err := tr.repo.ChangedPaths(tr.ctx, "", "HEAD")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRef))

	_, err = tr.repo.ChangedPaths(tr.ctx, "HEAD", "no-such-rev")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResolveFailed))
}

func TestPathPrefixFilter(t *testing.T) {
	filter := PathPrefixFilter("workflows")

	assert.True(t, filter("workflows"))
	assert.True(t, filter("workflows/0001_example.json"))
	assert.True(t, filter("workflows/sub/deep.json"))
	assert.False(t, filter("workflows.json"))
	assert.False(t, filter("api/index.py"))

	trailing := PathPrefixFilter("workflows/")
	assert.True(t, trailing("workflows/0001_example.json"))
	assert.False(t, trailing("api/index.py"))
}

func TestFetchUnknownRemote(t *testing.T) {
	tr := setupTestRepoWithCommit(t)

	err := tr.repo.Fetch(tr.ctx, "nonexistent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResolveFailed))
}

func TestPushValidation(t *testing.T) {
	tr := setupTestRepoWithCommit(t)

	err := tr.repo.Push(tr.ctx, "origin", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRef))

	err = tr.repo.Push(tr.ctx, "nonexistent", "main")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrResolveFailed))
}
