package main

import (
	"context"
	"fmt"

	"github.com/nishad/bdp/internal/blobstore"
	"github.com/nishad/bdp/internal/catalog"
	"github.com/nishad/bdp/internal/config"
	"github.com/nishad/bdp/internal/parser"
)

// app bundles the long-lived dependencies every subcommand wires from
// config, following the teacher's cmd/server/main.go "load config, open
// database, construct handler" sequencing.
type app struct {
	Config *config.Config
	DB     *catalog.DB
	Blobs  blobstore.Store
}

func loadApp(ctx context.Context) (*app, error) {
	path := configPath
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	db, err := catalog.Initialize(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	blobs, err := blobstore.NewFromConfig(ctx, cfg.Blob)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	parser.RegisterDefaults()

	return &app{Config: cfg, DB: db, Blobs: blobs}, nil
}

func (a *app) Close() error {
	return a.DB.Close()
}
