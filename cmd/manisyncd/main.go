package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"manisyncd/internal/config"
	"manisyncd/internal/gitstatus"
	"manisyncd/internal/reconcile"
	"manisyncd/internal/watch"
	"manisyncd/internal/webhook"
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
	strategy  string
	output    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "manisyncd",
	Short: "Reconcile a file manifest against a git working tree",
	Long: `manisyncd compares a declarative file manifest against the live state of a
git working tree and classifies every discrepancy into an actionable change
set under a selectable strategy (merge, overwrite, selective).

It can run as a one-shot pass, as a filesystem watcher, or as a long-running
webhook daemon that reconciles on push events.`,
	SilenceUsage: true,
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Perform a one-shot reconciliation pass",
	Long: `Reconcile loads the manifest, queries git working-tree status once, and
classifies every changed path into added, modified, deleted, or conflicts.

The change set is reported without applying anything; with --output json the
full result is printed to stdout.`,
	RunE: runReconcile,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Reconcile continuously on filesystem changes",
	Long: `Watch performs an initial pass, then watches the working tree and re-runs
reconciliation whenever files change, debouncing bursts of events.`,
	RunE: runWatch,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long: `Serve starts a long-running HTTP server that listens for GitHub webhook
events and triggers reconciliation passes when the tracked repository is
updated. The most recent result is served at /result.`,
	RunE: runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("manisyncd %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/manisyncd/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	// Reconcile command flags
	reconcileCmd.Flags().BoolVar(&dryRun, "dry-run", false, "classify without updating the baseline")
	reconcileCmd.Flags().StringVar(&strategy, "strategy", "", "override the configured strategy (merge, overwrite, selective)")
	reconcileCmd.Flags().StringVar(&output, "output", "text", "output format (text, json)")

	// Add commands
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if strategy != "" {
		cfg.Sync.Strategy = config.Strategy(strategy)
	}

	engine := reconcile.NewEngine(cfg, gitstatus.NewShellClient(), logger, dryRun)

	result, err := engine.Reconcile(ctx)
	if err != nil {
		logger.Error("reconciliation failed", "error", err)
		return err
	}

	if output == "json" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	}

	if result.Status != reconcile.StatusSuccess {
		return fmt.Errorf("reconciliation pass failed")
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	runner := watch.NewRunner(cfg, gitstatus.NewShellClient(), logger)

	logger.Info("starting watch mode", "root", cfg.Repo.Root)
	return runner.Run(ctx)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.Serve.Enabled {
		return fmt.Errorf("serve is not enabled in configuration")
	}

	server, err := webhook.NewServer(cfg, gitstatus.NewShellClient(), logger)
	if err != nil {
		return fmt.Errorf("failed to create webhook server: %w", err)
	}

	return server.Start(ctx)
}

func setupLogger() *slog.Logger {
	// Parse log level
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

	// Create handler based on format
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

func loadConfig(logger *slog.Logger) (*config.Config, error) {
	// Determine config file path
	configPath := cfgFile
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		configPath = fmt.Sprintf("%s/.config/manisyncd/config.yaml", home)
	}

	logger.Info("loading configuration", "path", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded",
		"root", cfg.Repo.Root,
		"manifest", cfg.ManifestPath(),
		"strategy", cfg.Sync.Strategy)

	return cfg, nil
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
