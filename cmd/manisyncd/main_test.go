package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSetupLogger(t *testing.T) {
	// Save original globals.
	origLevel := logLevel
	origFormat := logFormat
	t.Cleanup(func() {
		logLevel = origLevel
		logFormat = origFormat
	})

	for _, tc := range []struct {
		name      string
		logLevel  string
		logFormat string
	}{
		{name: "debug/text", logLevel: "debug", logFormat: "text"},
		{name: "info/json", logLevel: "info", logFormat: "json"},
		{name: "warn/text", logLevel: "warn", logFormat: "text"},
		{name: "error/text", logLevel: "error", logFormat: "text"},
		{name: "unknown/text", logLevel: "unknown", logFormat: "text"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			logLevel = tc.logLevel
			logFormat = tc.logFormat

			logger := setupLogger()
			if logger == nil {
				t.Fatal("setupLogger returned nil")
			}
		})
	}
}

func TestLoadConfig_WithExplicitPath(t *testing.T) {
	origCfgFile := cfgFile
	t.Cleanup(func() { cfgFile = origCfgFile })

	tmpDir := t.TempDir()
	configContent := []byte(`repo:
  root: "` + tmpDir + `"
manifest:
  path: "manifest.json"
sync:
  strategy: "overwrite"
`)

	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, configContent, 0644); err != nil {
		t.Fatal(err)
	}

	cfgFile = configPath
	cfg, err := loadConfig(setupLogger())
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Repo.Root != tmpDir {
		t.Errorf("repo root: %q", cfg.Repo.Root)
	}
	if string(cfg.Sync.Strategy) != "overwrite" {
		t.Errorf("strategy: %q", cfg.Sync.Strategy)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	origCfgFile := cfgFile
	t.Cleanup(func() { cfgFile = origCfgFile })

	cfgFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := loadConfig(setupLogger()); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
