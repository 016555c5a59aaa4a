package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/TFMV/kirby/config"
	"github.com/TFMV/kirby/integrations"
	"github.com/TFMV/kirby/integrations/postgres"
	"github.com/TFMV/kirby/logger"
	"github.com/TFMV/kirby/migration"
	"github.com/TFMV/kirby/pkg/archive"
	"github.com/TFMV/kirby/pkg/core"
)

// runtime holds everything a command needs to run migrations.
type runtime struct {
	cfg      *config.Config
	log      *zap.Logger
	pair     *integrations.DatabasePair
	migrator *migration.Migrator
}

// loadConfig resolves configuration and applies command-line overrides.
func loadConfig(opts *globalOptions) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.configPath, opts.envFile)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.logFile != "" {
		cfg.Log.File = opts.logFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newRuntime(ctx context.Context, opts *globalOptions) (*runtime, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logger.SetLogPath(cfg.Log.File)
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		return nil, err
	}
	log := logger.GetLogger().With(zap.String("environment", cfg.Environment))

	master, err := postgres.NewPostgres(endpointOptions(ctx, "master", cfg.Master)...)
	if err != nil {
		return nil, fmt.Errorf("master database: %w", err)
	}
	slave, err := postgres.NewPostgres(endpointOptions(ctx, "slave", cfg.Slave)...)
	if err != nil {
		master.Close()
		return nil, fmt.Errorf("slave database: %w", err)
	}
	pair := integrations.NewDatabasePair(master, slave)

	m := migration.NewMigrator(pair, log)
	m.KeyColumn = cfg.KeyColumn
	m.ReportDir = cfg.ReportDir

	if cfg.Archive.Enabled() {
		var uploader archive.Uploader
		if cfg.Archive.S3Bucket != "" {
			s3u, err := archive.NewS3Uploader(ctx, cfg.Archive.S3Bucket, cfg.Archive.S3Prefix)
			if err != nil {
				pair.Close()
				return nil, err
			}
			uploader = s3u
		}
		archiver, err := archive.NewFileArchiver(core.ArchiveConfig{Type: cfg.Archive.Format, Path: cfg.Archive.Dir}, uploader, log)
		if err != nil {
			pair.Close()
			return nil, err
		}
		m.Archiver = archiver
	}

	return &runtime{cfg: cfg, log: log, pair: pair, migrator: m}, nil
}

func endpointOptions(ctx context.Context, name string, db config.DBConfig) []integrations.Option {
	return []integrations.Option{
		integrations.WithName(name),
		integrations.WithDSN(db.DSN()),
		integrations.WithSchema(db.Schema),
		integrations.WithMaxConns(db.MaxConns),
		integrations.WithContext(ctx),
	}
}

// Close releases the pools and flushes logs.
func (r *runtime) Close() {
	r.pair.Close()
	logger.Sync()
}
