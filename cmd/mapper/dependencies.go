package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping/classifier"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping/learned"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping/repository"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping/service"
	"github.com/FACorreiaa/depletion-mapper/internal/domain/mapping/synonym"
	"github.com/FACorreiaa/depletion-mapper/pkg/config"
	"github.com/FACorreiaa/depletion-mapper/pkg/cron"
	"github.com/FACorreiaa/depletion-mapper/pkg/db"
	"github.com/FACorreiaa/depletion-mapper/pkg/metrics"
	"github.com/FACorreiaa/depletion-mapper/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config   *config.Config
	DB       *db.DB
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	// Stores
	HistoryStore learned.Store
	SynonymStore synonym.Store
	Archive      storage.Archive

	// Services
	Synonyms  *synonym.Table
	Engine    *service.Engine
	Scheduler *cron.Scheduler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	deps.initMetrics()

	if err := deps.initStores(ctx); err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to init stores: %w", err)
	}

	if err := deps.initServices(ctx); err != nil {
		deps.Close()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	logger.Info("all dependencies initialized successfully",
		slog.String("store", cfg.Store.Backend),
		slog.Bool("classifier", cfg.Classifier.Enabled()),
	)
	return deps, nil
}

func (d *Dependencies) initMetrics() {
	d.Registry = prometheus.NewRegistry()
	d.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	d.Metrics = metrics.New(d.Registry)
}

// initStores picks the memory or postgres backend and seeds the synonym table.
func (d *Dependencies) initStores(ctx context.Context) error {
	seed, err := synonym.Seed()
	if err != nil {
		return fmt.Errorf("failed to load synonym seed: %w", err)
	}

	switch d.Config.Store.Backend {
	case config.StorePostgres:
		database, err := db.New(db.Config{
			DSN:             d.Config.Database.DSN(),
			MaxConns:        10,
			MinConns:        2,
			MaxConnLifetime: 5 * time.Minute,
			MaxConnIdleTime: 10 * time.Minute,
		}, d.Logger)
		if err != nil {
			return err
		}
		d.DB = database

		if err := d.DB.RunMigrations(); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		synonyms := repository.NewSynonymRepository(d.DB.Pool)
		inserted, err := synonyms.Seed(ctx, seed)
		if err != nil {
			return err
		}
		d.Logger.Info("database connected and migrations completed successfully",
			slog.Int("seeded_synonyms", inserted))

		d.SynonymStore = synonyms
		d.HistoryStore = repository.NewHistoryRepository(d.DB.Pool)
	default:
		d.SynonymStore = synonym.NewMemoryStore(seed)
		d.HistoryStore = learned.NewMemoryStore()
	}

	if dir := d.Config.Archive.Dir; dir != "" {
		archive, err := storage.NewLocalArchive(dir)
		if err != nil {
			return err
		}
		d.Archive = archive
	}

	d.Logger.Info("stores initialized",
		slog.String("backend", d.Config.Store.Backend),
		slog.Bool("archive", d.Archive != nil),
	)
	return nil
}

// initServices initializes the synonym table, the pipeline and background jobs
func (d *Dependencies) initServices(ctx context.Context) error {
	d.Synonyms = synonym.NewTable(d.SynonymStore, d.Logger)
	if err := d.Synonyms.Refresh(ctx); err != nil {
		return fmt.Errorf("failed to load synonyms: %w", err)
	}

	opts := []service.Option{service.WithMetrics(d.Metrics)}

	if cc := d.Config.Classifier; cc.Enabled() {
		client := classifier.NewHTTPClient(classifier.Config{
			BaseURL:    cc.BaseURL,
			APIKey:     cc.APIKey,
			Model:      cc.Model,
			HTTPClient: &http.Client{Timeout: cc.Timeout},
		})
		guard := classifier.NewGuard(client, cc.Timeout, d.Config.Policy.AIFloor, d.Logger,
			classifier.WithFailureHook(d.Metrics.ClassifierFailure))
		batches := classifier.NewBatchValueClassifier(client, cc.BatchSize, cc.BatchDelay, d.Logger)

		opts = append(opts,
			service.WithClassifier(guard),
			service.WithCategoryClassifier(batches),
		)
		d.Logger.Info("classifier enabled", slog.String("model", cc.Model))
	}

	d.Engine = service.New(d.Config.Policy, d.Synonyms, d.HistoryStore, d.Logger, opts...)

	// Other writers may add synonyms to a shared database.
	if d.Config.Store.Backend == config.StorePostgres {
		d.Scheduler = cron.NewScheduler(d.Synonyms, d.Config.Scheduler.SynonymRefreshCron, d.Logger)
		if err := d.Scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	d.Logger.Info("services initialized", slog.Int("synonyms", d.Synonyms.Size()))
	return nil
}

// Close releases background jobs and connections.
func (d *Dependencies) Close() {
	if d.Scheduler != nil {
		<-d.Scheduler.Stop().Done()
	}
	if d.Synonyms != nil {
		if err := d.Synonyms.Close(); err != nil {
			d.Logger.Warn("failed to close synonym index", slog.Any("error", err))
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
