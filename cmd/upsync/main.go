// Command upsync synchronizes the n8n-workflows fork with its upstream
// source while preserving protected files, then pushes the canonical branch
// to trigger a Vercel redeploy.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"

	"github.com/Ofunrein/n8n-workflows/internal/config"
	"github.com/Ofunrein/n8n-workflows/internal/confirm"
	"github.com/Ofunrein/n8n-workflows/internal/gitrepo"
	"github.com/Ofunrein/n8n-workflows/internal/syncer"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string
	dryRun    bool
	assumeYes bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "upsync",
	Short: "Sync the workflows fork with upstream and trigger deployment",
	Long: `upsync keeps a fork of the n8n workflow library synchronized with its
upstream source. Protected files survive every merge, derived artifacts
(workflow database, deployment data) are rebuilt when workflows change,
and pushing the canonical branch triggers the Vercel deployment.`,
	SilenceUsage: true,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run the protected sync against upstream",
	Long: `Sync fetches the upstream remote, compares it with the canonical branch,
and when changes are pending: snapshots the branch, merges upstream while
preserving protected files, rebuilds derived artifacts if workflows
changed, and pushes the result after confirmation.`,
	RunE: runSync,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending upstream changes without modifying anything",
	RunE:  runStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("upsync %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/upsync/upsync.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	syncCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show pending changes without merging or pushing")
	syncCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "answer yes to all confirmation prompts")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	engine, err := buildEngine(ctx, logger)
	if err != nil {
		return err
	}

	if _, err := engine.Run(ctx); err != nil {
		var fetchErr *syncer.FetchError
		var pushErr *syncer.PushError
		switch {
		case errors.As(err, &fetchErr):
			logger.Error("upstream unavailable", "error", fetchErr.Err)
		case errors.As(err, &pushErr):
			logger.Error("push failed, changes remain local", "error", pushErr.Err)
		default:
			logger.Error("sync failed", "error", err)
		}
		return err
	}

	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	engine, err := buildEngine(ctx, logger)
	if err != nil {
		return err
	}

	if _, err := engine.Status(ctx); err != nil {
		logger.Error("status failed", "error", err)
		return err
	}

	return nil
}

// buildEngine loads configuration, opens the checkout and wires the engine
// collaborators.
func buildEngine(ctx context.Context, logger *slog.Logger) (*syncer.Engine, error) {
	cfg, err := loadConfig(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	repo, err := gitrepo.Open(ctx, &gitrepo.Options{
		Dir:      cfg.Repo.Dir,
		Progress: os.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open checkout at %s: %w", cfg.Repo.Dir, err)
	}

	var confirmer confirm.Confirmer = confirm.NewTerminal()
	if assumeYes {
		confirmer = confirm.Assume(true)
	}

	statePath, err := xdg.StateFile(filepath.Join("upsync", "last-run.json"))
	if err != nil {
		logger.Warn("failed to resolve state path, last-run report disabled", "error", err)
		statePath = ""
	}

	return syncer.NewEngine(cfg, repo, syncer.NewExecRunner(), confirmer, logger,
		syncer.WithDryRun(dryRun),
		syncer.WithStatePath(statePath),
	), nil
}

func loadConfig(logger *slog.Logger) (*config.Config, error) {
	configPath := cfgFile
	if configPath == "" {
		var err error
		configPath, err = config.DefaultPath()
		if err != nil {
			return nil, err
		}
	}

	logger.Info("loading configuration", "path", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded",
		"dir", cfg.Repo.Dir,
		"canonical_branch", cfg.Repo.CanonicalBranch,
		"upstream", cfg.UpstreamRef(),
		"protected", len(cfg.Protected))

	return cfg, nil
}

func setupLogger() *slog.Logger {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	return ctx, cancel
}
