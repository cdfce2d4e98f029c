package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zyxiao/pocketledger/internal/domain/analytics"
	analyticshandler "github.com/zyxiao/pocketledger/internal/domain/analytics/handler"
	"github.com/zyxiao/pocketledger/internal/domain/classification"
	"github.com/zyxiao/pocketledger/internal/domain/expense"
	expensehandler "github.com/zyxiao/pocketledger/internal/domain/expense/handler"
	importhandler "github.com/zyxiao/pocketledger/internal/domain/importer/handler"
	importrepo "github.com/zyxiao/pocketledger/internal/domain/importer/repository"
	importservice "github.com/zyxiao/pocketledger/internal/domain/importer/service"
	"github.com/zyxiao/pocketledger/pkg/config"
	"github.com/zyxiao/pocketledger/pkg/cron"
	"github.com/zyxiao/pocketledger/pkg/db"
)

// Dependencies holds all application dependencies.
type Dependencies struct {
	Config *config.Config
	Pool   *pgxpool.Pool
	Logger *slog.Logger

	// Repositories
	ImportRepo    importrepo.Repository
	ExpenseRepo   expense.Repository
	AnalyticsRepo analytics.Repository

	// Services
	ImportService    *importservice.Service
	ExpenseService   *expense.Service
	ClassifyService  *classification.Service
	AnalyticsService *analytics.Service
	Scheduler        *cron.Scheduler

	// Handlers
	ImportHandler    *importhandler.ImportHandler
	ExpenseHandler   *expensehandler.ExpenseHandler
	AnalyticsHandler *analyticshandler.AnalyticsHandler
}

// InitDependencies initializes all application dependencies.
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}
	if err := deps.initServices(); err != nil {
		return nil, fmt.Errorf("failed to init services: %w", err)
	}
	deps.initHandlers()

	logger.Info("all dependencies initialized")
	return deps, nil
}

// initDatabase connects the pool and applies migrations.
func (d *Dependencies) initDatabase(ctx context.Context) error {
	dsn := d.Config.Database.DSN()

	if err := db.RunMigrations(dsn); err != nil {
		return err
	}

	pool, err := db.NewPool(ctx, dsn, int32(d.Config.Database.MaxConns))
	if err != nil {
		return err
	}
	d.Pool = pool

	d.Logger.Info("database connected and migrations applied")
	return nil
}

func (d *Dependencies) initServices() error {
	d.ImportRepo = importrepo.NewPostgresRepository(d.Pool)
	d.ExpenseRepo = expense.NewPostgresRepository(d.Pool)
	d.AnalyticsRepo = analytics.NewPostgresRepository(d.Pool)

	d.ImportService = importservice.NewService(d.ImportRepo, d.Logger)
	d.ExpenseService = expense.NewService(d.ExpenseRepo, d.Logger)
	d.AnalyticsService = analytics.NewService(d.AnalyticsRepo)

	tax := classification.DefaultTaxonomy()
	if path := d.Config.Classify.TaxonomyPath; path != "" {
		loaded, err := classification.LoadTaxonomy(path)
		if err != nil {
			return err
		}
		tax = loaded
	}

	var llm classification.Classifier
	if d.Config.LLM.Enabled() {
		llm = classification.NewLLMClient(
			d.Config.LLM.BaseURL, d.Config.LLM.APIKey, d.Config.LLM.Model, d.Logger)
	} else {
		d.Logger.Info("no llm configured, classification uses keywords only")
	}
	d.ClassifyService = classification.NewService(d.ExpenseRepo, llm, tax, d.Logger)

	d.Scheduler = cron.NewScheduler(
		d.ClassifyService, d.Config.Classify.Schedule, d.Config.Classify.BatchSize, d.Logger)

	d.Logger.Info("services initialized")
	return nil
}

func (d *Dependencies) initHandlers() {
	d.ImportHandler = importhandler.NewImportHandler(d.ImportService, d.Logger)
	d.ExpenseHandler = expensehandler.NewExpenseHandler(d.ExpenseService, d.Logger)
	d.AnalyticsHandler = analyticshandler.NewAnalyticsHandler(d.AnalyticsService, d.Logger)

	d.Logger.Info("handlers initialized")
}

// Cleanup closes all resources.
func (d *Dependencies) Cleanup() {
	if d.Scheduler != nil {
		<-d.Scheduler.Stop().Done()
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
	d.Logger.Info("cleanup completed")
}
