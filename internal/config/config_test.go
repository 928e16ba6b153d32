package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes a config file into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "upsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "repo:\n  dir: /tmp/fork\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/fork", cfg.Repo.Dir)
	assert.Equal(t, "main", cfg.Repo.CanonicalBranch)
	assert.Equal(t, "upstream", cfg.Repo.UpstreamRemote)
	assert.Equal(t, "main", cfg.Repo.UpstreamBranch)
	assert.Equal(t, "origin", cfg.Repo.OriginRemote)
	assert.Equal(t, "workflows", cfg.Watch.Dir)
	assert.Equal(t, []string{"python3", "workflow_db.py", "--index"}, cfg.Rebuild.IndexCommand)
	assert.Equal(t, []string{"python3", "build_vercel_data.py"}, cfg.Rebuild.DeployDataCommand)
	assert.Equal(t, "upsync", cfg.Committer.Name)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
repo:
  dir: /srv/n8n-workflows
  canonical_branch: main
  upstream_remote: upstream
  upstream_branch: master
  origin_remote: origin
protected_files:
  - vercel.json
  - api/
  - build_vercel_data.py
watch:
  dir: workflows
rebuild:
  auto_rebuild_db: true
  auto_build_deploy_data: true
  index_command: ["python3", "workflow_db.py", "--index"]
  deploy_data_command: ["python3", "build_vercel_data.py"]
committer:
  name: Deploy Bot
  email: deploy@example.com
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "master", cfg.Repo.UpstreamBranch)
	assert.Equal(t, []string{"vercel.json", "api/", "build_vercel_data.py"}, cfg.Protected)
	assert.True(t, cfg.Rebuild.AutoRebuildDB)
	assert.True(t, cfg.Rebuild.AutoBuildDeployData)
	assert.Equal(t, "Deploy Bot", cfg.Committer.Name)
	assert.Equal(t, "upstream/master", cfg.UpstreamRef())
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("UPSYNC_TEST_DIR", "/srv/checkout")

	path := writeConfig(t, "repo:\n  dir: $UPSYNC_TEST_DIR\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/checkout", cfg.Repo.Dir)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "repo: [not a map")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "same remotes",
			mutate:  func(c *Config) { c.Repo.OriginRemote = c.Repo.UpstreamRemote },
			wantErr: "must differ",
		},
		{
			name:    "empty protected entry",
			mutate:  func(c *Config) { c.Protected = []string{""} },
			wantErr: "empty paths",
		},
		{
			name:    "absolute protected entry",
			mutate:  func(c *Config) { c.Protected = []string{"/etc/passwd"} },
			wantErr: "must be relative",
		},
		{
			name:    "absolute watch dir",
			mutate:  func(c *Config) { c.Watch.Dir = "/workflows" },
			wantErr: "must be relative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.applyDefaults()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
