// Package config loads BDP's configuration: a YAML baseline overridden by
// the INGEST_*/BLOB_*/WORKER_* environment variables that operators use to
// tune a running deployment without editing the file on disk.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nishad/bdp/internal/paths"
	"gopkg.in/yaml.v3"
)

// Config represents the BDP configuration.
type Config struct {
	DataDirectory string         `yaml:"data_directory"`
	Catalog       CatalogConfig  `yaml:"catalog"`
	Blob          BlobConfig     `yaml:"blob"`
	Search        SearchConfig   `yaml:"search"`
	Worker        WorkerConfig   `yaml:"worker"`
	Ingest        IngestConfig   `yaml:"ingest"`
}

// CatalogConfig contains the relational store settings.
type CatalogConfig struct {
	Path        string `yaml:"path"`
	CacheSize   int    `yaml:"cache_size"`   // in KB
	MMapSize    int64  `yaml:"mmap_size"`    // in bytes
	JournalMode string `yaml:"journal_mode"` // WAL
}

// BlobConfig contains Blob Store Adapter (C1) connection settings, overridden
// by the BLOB_* environment variables per spec §6.
type BlobConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	PathStyle bool   `yaml:"path_style"`
	UseTLS    bool   `yaml:"use_tls"`
	// LocalPath, when set, switches the Blob Store Adapter to the
	// filesystem-backed implementation instead of the S3-compatible one —
	// used for single-node operation and tests.
	LocalPath string `yaml:"local_path"`
}

// SearchConfig contains Catalog Search (C6) settings.
type SearchConfig struct {
	Enabled        bool   `yaml:"enabled"`
	IndexPath      string `yaml:"index_path"`
	RebuildOnStart bool   `yaml:"rebuild_on_start"`
	DefaultLimit   int    `yaml:"default_limit"`
	BatchSize      int    `yaml:"batch_size"`
}

// WorkerConfig contains Ingestion Engine worker tuning, overridden by the
// WORKER_* environment variables per spec §6.
type WorkerConfig struct {
	HeartbeatSecs    int `yaml:"heartbeat_secs"`
	StaleMultiplier  int `yaml:"stale_multiplier"`
	PoolSize         int `yaml:"pool_size"`
	DrainWindowSecs  int `yaml:"drain_window_secs"`
	DownloadParallel int `yaml:"download_parallel"`
	BlobUploadLimit  int `yaml:"blob_upload_limit"`
}

// SourceConfig holds the per-source ingestion settings that the
// INGEST_<SOURCE>_* environment variables populate.
type SourceConfig struct {
	Schedule       string `yaml:"schedule"`         // cron expression, shape-validated only
	BatchSize      int    `yaml:"batch_size"`       // work-unit record count
	FTPHost        string `yaml:"ftp_host"`
	FTPPath        string `yaml:"ftp_path"`
	FTPTimeoutSecs int    `yaml:"ftp_timeout_secs"`
}

// IngestConfig contains the global and per-source ingestion settings.
type IngestConfig struct {
	AutoEnabled bool                    `yaml:"auto_enabled"`
	Sources     map[string]SourceConfig `yaml:"sources"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	p := paths.GetPaths()

	return &Config{
		DataDirectory: p.DataDir,
		Catalog: CatalogConfig{
			Path:        paths.GetCatalogPath(),
			CacheSize:   10000,     // 10000 KB (~10MB)
			MMapSize:    268435456, // 256MB
			JournalMode: "WAL",
		},
		Blob: BlobConfig{
			Endpoint:  "localhost:9000",
			Bucket:    "bdp",
			Region:    "us-east-1",
			PathStyle: true,
			LocalPath: paths.GetLocalBlobPath(),
		},
		Search: SearchConfig{
			Enabled:        true,
			IndexPath:      paths.GetIndexPath(),
			RebuildOnStart: false,
			DefaultLimit:   100,
			BatchSize:      1000,
		},
		Worker: WorkerConfig{
			HeartbeatSecs:    30,
			StaleMultiplier:  5,
			PoolSize:         4,
			DrainWindowSecs:  60,
			DownloadParallel: 4,
			BlobUploadLimit:  10,
		},
		Ingest: IngestConfig{
			AutoEnabled: false,
			Sources:     map[string]SourceConfig{},
		},
	}
}

// Load loads configuration from a YAML file, then layers environment
// variable overrides on top, following the two-pass precedence spec §6
// describes: file settings establish the baseline, environment variables
// are the operator's final word.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		applyEnvOverrides(config)
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.DataDirectory = expandPath(config.DataDirectory)
	config.Catalog.Path = expandPath(config.Catalog.Path)
	config.Search.IndexPath = expandPath(config.Search.IndexPath)
	if config.Blob.LocalPath != "" {
		config.Blob.LocalPath = expandPath(config.Blob.LocalPath)
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides layers the INGEST_*/BLOB_*/WORKER_* environment
// variables from spec §6 on top of whatever the YAML file (or defaults)
// established. Unset variables leave the existing value untouched.
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("INGEST_AUTO_ENABLED"); v != "" {
		c.Ingest.AutoEnabled = parseBool(v, c.Ingest.AutoEnabled)
	}

	for _, source := range knownSources() {
		prefix := "INGEST_" + strings.ToUpper(source) + "_"
		sc := c.Ingest.Sources[source]
		if v := os.Getenv(prefix + "SCHEDULE"); v != "" {
			sc.Schedule = v
		}
		if v := os.Getenv(prefix + "BATCH_SIZE"); v != "" {
			sc.BatchSize = parseInt(v, sc.BatchSize)
		}
		if v := os.Getenv(prefix + "FTP_HOST"); v != "" {
			sc.FTPHost = v
		}
		if v := os.Getenv(prefix + "FTP_PATH"); v != "" {
			sc.FTPPath = v
		}
		if v := os.Getenv(prefix + "FTP_TIMEOUT_SECS"); v != "" {
			sc.FTPTimeoutSecs = parseInt(v, sc.FTPTimeoutSecs)
		}
		if c.Ingest.Sources == nil {
			c.Ingest.Sources = map[string]SourceConfig{}
		}
		c.Ingest.Sources[source] = sc
	}

	if v := os.Getenv("BLOB_ENDPOINT"); v != "" {
		c.Blob.Endpoint = v
	}
	if v := os.Getenv("BLOB_BUCKET"); v != "" {
		c.Blob.Bucket = v
	}
	if v := os.Getenv("BLOB_ACCESS_KEY"); v != "" {
		c.Blob.AccessKey = v
	}
	if v := os.Getenv("BLOB_SECRET_KEY"); v != "" {
		c.Blob.SecretKey = v
	}
	if v := os.Getenv("BLOB_REGION"); v != "" {
		c.Blob.Region = v
	}
	if v := os.Getenv("BLOB_PATH_STYLE"); v != "" {
		c.Blob.PathStyle = parseBool(v, c.Blob.PathStyle)
	}

	if v := os.Getenv("WORKER_HEARTBEAT_SECS"); v != "" {
		c.Worker.HeartbeatSecs = parseInt(v, c.Worker.HeartbeatSecs)
	}
	if v := os.Getenv("WORKER_STALE_MULTIPLIER"); v != "" {
		c.Worker.StaleMultiplier = parseInt(v, c.Worker.StaleMultiplier)
	}
}

// knownSources lists the organization slugs the INGEST_<SOURCE>_* variables
// address. New organizations registered at bootstrap extend this set; it is
// intentionally small and explicit rather than discovered, since env-var
// names must be known ahead of time.
func knownSources() []string {
	return []string{"uniprot", "taxonomy", "genbank", "go", "interpro"}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func parseInt(v string, fallback int) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// Save saves the configuration to a file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the default config file path.
func GetConfigPath() string {
	if path := os.Getenv("BDP_CONFIG"); path != "" {
		return path
	}

	if _, err := os.Stat("bdp.yaml"); err == nil {
		return "bdp.yaml"
	}

	p := paths.GetPaths()
	return filepath.Join(p.ConfigDir, "config.yaml")
}

// EnsureDirectories creates necessary directories.
func (c *Config) EnsureDirectories() error {
	if err := paths.EnsureDirectories(); err != nil {
		return err
	}

	dirs := []string{
		c.DataDirectory,
		filepath.Dir(c.Catalog.Path),
		filepath.Dir(c.Search.IndexPath),
	}
	if c.Blob.LocalPath != "" {
		dirs = append(dirs, c.Blob.LocalPath)
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

func expandPath(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// IsSearchEnabled returns true if catalog search is enabled.
func (c *Config) IsSearchEnabled() bool {
	return c.Search.Enabled
}

// UsesRemoteBlobStore returns true when the configuration points at an
// S3-compatible endpoint rather than the local-filesystem adapter.
func (c *Config) UsesRemoteBlobStore() bool {
	return c.Blob.LocalPath == ""
}
