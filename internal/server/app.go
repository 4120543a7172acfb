// Package server assembles the invoice tracker from configuration and runs
// its network surfaces.
package server

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/invoice-tracker/internal/async"
	"github.com/joseph-ayodele/invoice-tracker/internal/common"
	"github.com/joseph-ayodele/invoice-tracker/internal/events"
	"github.com/joseph-ayodele/invoice-tracker/internal/export"
	"github.com/joseph-ayodele/invoice-tracker/internal/ingest"
	"github.com/joseph-ayodele/invoice-tracker/internal/invoices"
	"github.com/joseph-ayodele/invoice-tracker/internal/normalize"
	"github.com/joseph-ayodele/invoice-tracker/internal/pipeline"
	"github.com/joseph-ayodele/invoice-tracker/internal/repository"
)

// App holds every wired component of one process.
type App struct {
	Config       *common.Config
	Logger       *slog.Logger
	Capabilities pipeline.Capabilities

	DB           *repository.DB
	Repo         repository.InvoiceRepository
	Bus          *events.Bus
	Pipeline     *pipeline.Pipeline
	Orchestrator *async.Orchestrator
	Ingestor     *ingest.Ingestor
	Invoices     *invoices.Service
	Export       *export.Service
}

// NewApp validates cfg, connects the store, detects capabilities once and
// builds the pipeline around whatever is available.
func NewApp(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	caps := pipeline.DetectCapabilities(cfg)
	logger.Info("capabilities detected", "capabilities", caps)

	p, err := pipeline.Build(ctx, cfg, caps, logger)
	if err != nil {
		return nil, err
	}

	db, err := ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	repo := repository.NewInvoiceRepository(db, logger)
	bus := events.NewBus(logger)
	orch := async.NewOrchestrator(p, repo, bus, logger, async.WithJobTimeout(cfg.Jobs.Timeout))

	return &App{
		Config:       cfg,
		Logger:       logger,
		Capabilities: caps,
		DB:           db,
		Repo:         repo,
		Bus:          bus,
		Pipeline:     p,
		Orchestrator: orch,
		Ingestor:     ingest.NewIngestor(orch, logger),
		Invoices:     invoices.NewService(repo, normalize.New(logger), bus, logger),
		Export:       export.NewService(repo, logger),
	}, nil
}

// Close waits for running jobs until ctx is done, then closes the store.
func (a *App) Close(ctx context.Context) error {
	err := a.Orchestrator.Shutdown(ctx)
	a.DB.Close()
	return err
}
