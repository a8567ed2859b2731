package main

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/vbonduro/opname/internal/config"
	"github.com/vbonduro/opname/internal/db"
	"github.com/vbonduro/opname/internal/logging"
	"github.com/vbonduro/opname/internal/media"
	"github.com/vbonduro/opname/internal/photostore/local"
	"github.com/vbonduro/opname/internal/service"
	"github.com/vbonduro/opname/internal/store"
)

// app holds the wired services shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	database *sql.DB
	audits   *service.AuditService
	migrator *service.LegacyMigrator
	sweeper  *service.Sweeper
	cleanup  func()
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	files, err := local.NewLocalPhotoStore(cfg.MediaRoot)
	if err != nil {
		_ = database.Close()
		cleanup()
		return nil, fmt.Errorf("failed to initialize media store: %w", err)
	}

	repos := service.Repositories{
		Audits:   store.NewAuditStore(database),
		Sections: store.NewSectionStore(database),
		Answers:  store.NewAnswerStore(database),
		Photos:   store.NewPhotoStore(database),
		Contacts: store.NewContactStore(database),
		Advanced: store.NewAdvancedDataStore(database),
	}
	pipeline := media.NewPipeline(files, media.Config{
		MaxUploadBytes:    cfg.MaxUploadBytes,
		CompressThreshold: cfg.CompressThresholdBytes,
		MaxDimension:      cfg.MaxImageDimension,
	}, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		database: database,
		audits:   service.NewAuditService(repos, pipeline, files, logger),
		migrator: service.NewLegacyMigrator(repos.Audits, repos.Sections, repos.Photos, pipeline, files,
			cfg.LegacySections, logger),
		sweeper: service.NewSweeper(repos.Audits, files, logger),
		cleanup: cleanup,
	}, nil
}

func (a *app) Close() {
	if err := a.database.Close(); err != nil {
		a.logger.Error("failed to close database", "error", err)
	}
	a.cleanup()
}
