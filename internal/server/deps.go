package server

import (
	"context"
	"log/slog"

	"github.com/raphaelgruber/circles/internal/config"
	"github.com/raphaelgruber/circles/internal/db"
	"github.com/raphaelgruber/circles/internal/layout"
	"github.com/raphaelgruber/circles/internal/llm"
	"github.com/raphaelgruber/circles/internal/metrics"
	"github.com/raphaelgruber/circles/internal/service"
)

// Deps holds the services shared by the HTTP and MCP front ends.
type Deps struct {
	DB        *db.Client
	Persons   *service.PersonService
	Imports   *service.ImportService
	Circles   *service.CircleService
	Scheduler *layout.Scheduler
	Metrics   *metrics.Collector
	Logger    *slog.Logger
}

// NewDeps connects to the database, initializes the schema and builds the
// services.
func NewDeps(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Deps, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Create metrics collector for runtime statistics
	mc := metrics.NewCollector()

	dbCfg := db.Config{
		URL:       cfg.SurrealDBURL,
		Namespace: cfg.SurrealDBNamespace,
		Database:  cfg.SurrealDBDatabase,
		Username:  cfg.SurrealDBUser,
		Password:  cfg.SurrealDBPass,
		AuthLevel: cfg.SurrealDBAuthLevel,
	}

	dbClient, err := db.NewClient(ctx, dbCfg, logger, mc)
	if err != nil {
		return nil, err
	}

	if err := dbClient.InitSchema(ctx); err != nil {
		dbClient.Close(ctx)
		return nil, err
	}

	model, err := llm.NewModel(ctx, cfg, mc)
	if err != nil {
		dbClient.Close(ctx)
		return nil, err
	}
	logger.Info("extraction model ready", "provider", cfg.LLMProvider, "model", model.Model())

	persons := service.NewPersonService(dbClient, model, mc, cfg.MaxTextLength)

	return &Deps{
		DB:        dbClient,
		Persons:   persons,
		Imports:   service.NewImportService(persons, service.NewJobManager(cfg.ImportConcurrency)),
		Circles:   service.NewCircleService(dbClient),
		Scheduler: layout.NewScheduler(cfg.LayoutDebounce),
		Metrics:   mc,
		Logger:    logger,
	}, nil
}

// Close flushes pending layout saves and closes the database connection.
func (d *Deps) Close(ctx context.Context) error {
	if d.Scheduler != nil {
		d.Scheduler.FlushAll()
	}
	if d.DB != nil {
		return d.DB.Close(ctx)
	}
	return nil
}

// WipeData deletes all data from the database. Use for testing only.
func (d *Deps) WipeData(ctx context.Context) error {
	return d.DB.WipeData(ctx)
}
