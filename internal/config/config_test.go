package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if cfg.Catalog.JournalMode != "WAL" {
		t.Errorf("expected journal_mode WAL, got %q", cfg.Catalog.JournalMode)
	}
	if cfg.Catalog.CacheSize != 10000 {
		t.Errorf("expected cache_size 10000, got %d", cfg.Catalog.CacheSize)
	}

	if !cfg.Search.Enabled {
		t.Error("expected search to be enabled by default")
	}
	if cfg.Search.DefaultLimit != 100 {
		t.Errorf("expected default_limit 100, got %d", cfg.Search.DefaultLimit)
	}

	if cfg.Worker.HeartbeatSecs != 30 {
		t.Errorf("expected heartbeat_secs 30, got %d", cfg.Worker.HeartbeatSecs)
	}
	if cfg.Worker.StaleMultiplier != 5 {
		t.Errorf("expected stale_multiplier 5, got %d", cfg.Worker.StaleMultiplier)
	}

	if cfg.Ingest.AutoEnabled {
		t.Error("expected ingest auto-enable to default to false")
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	cfg, err := Load("/nonexistent/config.yaml")
	if err != nil {
		t.Fatalf("Load should return defaults for non-existent file, got error: %v", err)
	}
	if cfg == nil {
		t.Fatal("expected non-nil config for non-existent file")
	}
}

func TestLoadValidFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	yamlContent := `
data_directory: /tmp/bdp-test
catalog:
  path: /tmp/bdp-test/test.db
  cache_size: 5000
  journal_mode: WAL
search:
  enabled: false
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.DataDirectory != "/tmp/bdp-test" {
		t.Errorf("expected data_directory /tmp/bdp-test, got %q", cfg.DataDirectory)
	}
	if cfg.Catalog.CacheSize != 5000 {
		t.Errorf("expected cache_size 5000, got %d", cfg.Catalog.CacheSize)
	}
	if cfg.Search.Enabled {
		t.Error("expected search to be disabled")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("invalid: yaml: [broken"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML, got nil")
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Catalog.CacheSize = 999
	cfg.Search.Enabled = false

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Catalog.CacheSize != 999 {
		t.Errorf("expected cache_size 999, got %d", loaded.Catalog.CacheSize)
	}
	if loaded.Search.Enabled {
		t.Error("expected search to be disabled after save/load")
	}
}

func TestExpandPath(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(string) bool
		desc  string
	}{
		{
			name:  "empty string",
			input: "",
			check: func(s string) bool { return s == "" },
			desc:  "should return empty string",
		},
		{
			name:  "absolute path",
			input: "/usr/local/bin",
			check: func(s string) bool { return s == "/usr/local/bin" },
			desc:  "should return unchanged",
		},
		{
			name:  "tilde expansion",
			input: "~/Documents",
			check: func(s string) bool { return s != "~/Documents" && len(s) > 0 },
			desc:  "should expand tilde",
		},
		{
			name:  "relative path",
			input: "relative/path",
			check: func(s string) bool { return s == "relative/path" },
			desc:  "should return unchanged",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandPath(tt.input)
			if !tt.check(result) {
				t.Errorf("expandPath(%q) = %q, %s", tt.input, result, tt.desc)
			}
		})
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("BDP_CONFIG", "/custom/config.yaml")
	path := GetConfigPath()
	if path != "/custom/config.yaml" {
		t.Errorf("expected /custom/config.yaml, got %q", path)
	}
}

func TestIsSearchEnabled(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.IsSearchEnabled() {
		t.Error("expected search to be enabled by default")
	}

	cfg.Search.Enabled = false
	if cfg.IsSearchEnabled() {
		t.Error("expected search to be disabled")
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.DataDirectory = filepath.Join(dir, "data")
	cfg.Catalog.Path = filepath.Join(dir, "data", "test.db")
	cfg.Search.IndexPath = filepath.Join(dir, "data", "test.bleve")

	err := cfg.EnsureDirectories()
	if err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	if _, err := os.Stat(cfg.DataDirectory); os.IsNotExist(err) {
		t.Error("data directory was not created")
	}
}

func TestApplyEnvOverridesIngestSource(t *testing.T) {
	t.Setenv("INGEST_AUTO_ENABLED", "true")
	t.Setenv("INGEST_UNIPROT_SCHEDULE", "0 2 * * *")
	t.Setenv("INGEST_UNIPROT_BATCH_SIZE", "2500")
	t.Setenv("BLOB_ENDPOINT", "s3.example.com")
	t.Setenv("BLOB_PATH_STYLE", "false")
	t.Setenv("WORKER_HEARTBEAT_SECS", "45")

	cfg := DefaultConfig()
	applyEnvOverrides(cfg)

	if !cfg.Ingest.AutoEnabled {
		t.Error("expected ingest auto-enable to be true from env")
	}
	src := cfg.Ingest.Sources["uniprot"]
	if src.Schedule != "0 2 * * *" {
		t.Errorf("expected schedule override, got %q", src.Schedule)
	}
	if src.BatchSize != 2500 {
		t.Errorf("expected batch size override, got %d", src.BatchSize)
	}
	if cfg.Blob.Endpoint != "s3.example.com" {
		t.Errorf("expected blob endpoint override, got %q", cfg.Blob.Endpoint)
	}
	if cfg.Blob.PathStyle {
		t.Error("expected blob path style to be overridden to false")
	}
	if cfg.Worker.HeartbeatSecs != 45 {
		t.Errorf("expected worker heartbeat override, got %d", cfg.Worker.HeartbeatSecs)
	}
}
