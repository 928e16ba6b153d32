// Package config loads and validates the upsync configuration. The
// configuration is read once at startup into an immutable value that is
// passed explicitly to every component; nothing reads ambient state later.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// Fixed commit messages written by the sync pipeline.
const (
	// ResolutionCommitMessage is used for the commit that resolves a merge
	// by restoring protected files over the merge result.
	ResolutionCommitMessage = "Merge upstream changes, preserving protected files"

	// RebuildCommitMessage is used for the commit that captures regenerated
	// workflow database and deployment data artifacts.
	RebuildCommitMessage = "Rebuild workflow database and deployment data"
)

// Config represents the complete upsync configuration.
type Config struct {
	Repo      RepoConfig      `yaml:"repo"`
	Protected []string        `yaml:"protected_files"`
	Watch     WatchConfig     `yaml:"watch"`
	Rebuild   RebuildConfig   `yaml:"rebuild"`
	Committer CommitterConfig `yaml:"committer"`
}

// RepoConfig configures the fork checkout and its remotes.
type RepoConfig struct {
	// Dir is the path of the fork checkout. Defaults to the current
	// working directory.
	Dir string `yaml:"dir"`

	// CanonicalBranch is the long-lived branch representing the deployed
	// state. Pushing it triggers the hosting platform.
	CanonicalBranch string `yaml:"canonical_branch"`

	// UpstreamRemote and UpstreamBranch name the source repository line
	// updates are pulled from.
	UpstreamRemote string `yaml:"upstream_remote"`
	UpstreamBranch string `yaml:"upstream_branch"`

	// OriginRemote is the remote the canonical branch is published to.
	OriginRemote string `yaml:"origin_remote"`
}

// WatchConfig configures the regenerate-on-change directory.
type WatchConfig struct {
	// Dir is the tree whose modification triggers derived-artifact
	// rebuilds, relative to the checkout root.
	Dir string `yaml:"dir"`
}

// RebuildConfig configures the derived-artifact rebuild commands.
type RebuildConfig struct {
	// AutoRebuildDB enables the search-index rebuild after watched changes.
	AutoRebuildDB bool `yaml:"auto_rebuild_db"`

	// AutoBuildDeployData enables the deployment-data rebuild after
	// watched changes.
	AutoBuildDeployData bool `yaml:"auto_build_deploy_data"`

	// IndexCommand is the argv of the search-index rebuild.
	IndexCommand []string `yaml:"index_command"`

	// DeployDataCommand is the argv of the deployment-data rebuild.
	DeployDataCommand []string `yaml:"deploy_data_command"`
}

// CommitterConfig identifies the author of commits the tool creates.
type CommitterConfig struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// DefaultPath returns the default configuration file location under the
// XDG config directory.
func DefaultPath() (string, error) {
	path, err := xdg.ConfigFile(filepath.Join("upsync", "upsync.yaml"))
	if err != nil {
		return "", fmt.Errorf("failed to resolve config path: %w", err)
	}
	return path, nil
}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.expandEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// expandEnv expands environment variables in all path-bearing string fields.
func (c *Config) expandEnv() {
	c.Repo.Dir = os.ExpandEnv(c.Repo.Dir)
	c.Watch.Dir = os.ExpandEnv(c.Watch.Dir)
	for i, p := range c.Protected {
		c.Protected[i] = os.ExpandEnv(p)
	}
}

// applyDefaults fills in zero-value fields with the defaults the original
// operational scripts assumed.
func (c *Config) applyDefaults() {
	if c.Repo.Dir == "" {
		c.Repo.Dir = "."
	}
	if c.Repo.CanonicalBranch == "" {
		c.Repo.CanonicalBranch = "main"
	}
	if c.Repo.UpstreamRemote == "" {
		c.Repo.UpstreamRemote = "upstream"
	}
	if c.Repo.UpstreamBranch == "" {
		c.Repo.UpstreamBranch = c.Repo.CanonicalBranch
	}
	if c.Repo.OriginRemote == "" {
		c.Repo.OriginRemote = "origin"
	}
	if c.Watch.Dir == "" {
		c.Watch.Dir = "workflows"
	}
	if len(c.Rebuild.IndexCommand) == 0 {
		c.Rebuild.IndexCommand = []string{"python3", "workflow_db.py", "--index"}
	}
	if len(c.Rebuild.DeployDataCommand) == 0 {
		c.Rebuild.DeployDataCommand = []string{"python3", "build_vercel_data.py"}
	}
	if c.Committer.Name == "" {
		c.Committer.Name = "upsync"
	}
	if c.Committer.Email == "" {
		c.Committer.Email = "upsync@localhost"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Repo.UpstreamRemote == c.Repo.OriginRemote {
		return fmt.Errorf("repo.upstream_remote and repo.origin_remote must differ")
	}

	for _, p := range c.Protected {
		if p == "" {
			return fmt.Errorf("protected_files must not contain empty paths")
		}
		if filepath.IsAbs(p) {
			return fmt.Errorf("protected_files entries must be relative to the checkout: %s", p)
		}
	}

	if filepath.IsAbs(c.Watch.Dir) {
		return fmt.Errorf("watch.dir must be relative to the checkout: %s", c.Watch.Dir)
	}

	if c.Rebuild.AutoRebuildDB && len(c.Rebuild.IndexCommand) == 0 {
		return fmt.Errorf("rebuild.index_command is required when auto_rebuild_db is enabled")
	}
	if c.Rebuild.AutoBuildDeployData && len(c.Rebuild.DeployDataCommand) == 0 {
		return fmt.Errorf("rebuild.deploy_data_command is required when auto_build_deploy_data is enabled")
	}

	return nil
}

// UpstreamRef returns the remote-tracking ref of the upstream branch, as
// accepted by revision resolution.
func (c *Config) UpstreamRef() string {
	return c.Repo.UpstreamRemote + "/" + c.Repo.UpstreamBranch
}
