// Package paths centralizes BDP's on-disk layout: config, data, cache, and
// state directories, following XDG conventions with BDP-specific overrides.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

type Paths struct {
	ConfigDir string
	DataDir   string
	CacheDir  string
	StateDir  string
}

// GetPaths returns all base paths respecting environment variables.
func GetPaths() Paths {
	return Paths{
		ConfigDir: getDir("BDP_CONFIG_HOME", "XDG_CONFIG_HOME", ".config", "bdp"),
		DataDir:   getDir("BDP_DATA_HOME", "XDG_DATA_HOME", ".local/share", "bdp"),
		CacheDir:  getDir("BDP_CACHE_HOME", "XDG_CACHE_HOME", ".cache", "bdp"),
		StateDir:  getDir("BDP_STATE_HOME", "XDG_STATE_HOME", ".local/state", "bdp"),
	}
}

func getDir(bdpEnv, xdgEnv, defaultBase, appName string) string {
	if dir := os.Getenv(bdpEnv); dir != "" {
		return dir
	}
	if xdgBase := os.Getenv(xdgEnv); xdgBase != "" {
		return filepath.Join(xdgBase, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, defaultBase, appName)
}

// GetCatalogPath returns the path to the catalog (registry) database.
func GetCatalogPath() string {
	if path := os.Getenv("BDP_CATALOG_PATH"); path != "" {
		return path
	}
	return filepath.Join(GetPaths().DataDir, "catalog.db")
}

// GetIndexPath returns the path to the search index, adjacent to the
// catalog database for easy backup/migration.
func GetIndexPath() string {
	if path := os.Getenv("BDP_INDEX_PATH"); path != "" {
		return path
	}
	dbPath := GetCatalogPath()
	dir := filepath.Dir(dbPath)
	dbName := filepath.Base(dbPath)
	dbNameNoExt := dbName[:len(dbName)-len(filepath.Ext(dbName))]
	return filepath.Join(dir, dbNameNoExt+".bleve")
}

// GetDownloadsPath returns the path to the raw-file download cache.
func GetDownloadsPath() string {
	return filepath.Join(GetPaths().CacheDir, "downloads")
}

// GetCheckpointPath returns the path to the ingestion checkpoint directory.
func GetCheckpointPath() string {
	return filepath.Join(GetPaths().StateDir, "checkpoints")
}

// GetLocalBlobPath returns the path used by the local-filesystem blob store
// implementation, for single-node operation and tests.
func GetLocalBlobPath() string {
	if path := os.Getenv("BDP_LOCAL_BLOB_PATH"); path != "" {
		return path
	}
	return filepath.Join(GetPaths().DataDir, "blobs")
}

// EnsureDirectories creates all necessary directories.
func EnsureDirectories() error {
	p := GetPaths()
	dirs := []string{
		p.ConfigDir,
		p.DataDir,
		p.CacheDir,
		GetDownloadsPath(),
		p.StateDir,
		GetCheckpointPath(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
