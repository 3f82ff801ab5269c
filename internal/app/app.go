// Package app builds the harvester's long-lived services from configuration and owns their shutdown.
package app

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/borsa-crawler/internal/archive"
	"github.com/JakeFAU/borsa-crawler/internal/backoff"
	"github.com/JakeFAU/borsa-crawler/internal/clock/system"
	"github.com/JakeFAU/borsa-crawler/internal/config"
	"github.com/JakeFAU/borsa-crawler/internal/extract"
	"github.com/JakeFAU/borsa-crawler/internal/fetcher"
	collyfetcher "github.com/JakeFAU/borsa-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/borsa-crawler/internal/hash/sha256"
	"github.com/JakeFAU/borsa-crawler/internal/id/uuid"
	"github.com/JakeFAU/borsa-crawler/internal/logging"
	"github.com/JakeFAU/borsa-crawler/internal/policy/ratelimit"
	gcppublisher "github.com/JakeFAU/borsa-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/borsa-crawler/internal/runner"
	"github.com/JakeFAU/borsa-crawler/internal/scrape"
	"github.com/JakeFAU/borsa-crawler/internal/storage"
	gcsstorage "github.com/JakeFAU/borsa-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/borsa-crawler/internal/storage/local"
	memorystorage "github.com/JakeFAU/borsa-crawler/internal/storage/memory"
	pgstore "github.com/JakeFAU/borsa-crawler/internal/storage/postgres"
)

// App contains the application's dependencies.
type App struct {
	cfg    config.Config
	logger *zap.Logger
	repo   storage.ShareRepository
	runs   runner.RunStore
	runner *runner.Runner

	// closers run in reverse order on Close.
	closers []func()
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Repository returns the share repository.
func (a *App) Repository() storage.ShareRepository { return a.repo }

// RunStore returns the run record store.
func (a *App) RunStore() runner.RunStore { return a.runs }

// Runner returns the workflow runner.
func (a *App) Runner() *runner.Runner { return a.runner }

// Build creates the application's dependencies. A nil logger is built from cfg.Logging.
// On error everything built so far is closed.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (app *App, err error) {
	if logger == nil {
		logger, err = logging.New(cfg.Logging.Development, cfg.Logging.Level)
		if err != nil {
			return nil, fmt.Errorf("logger init failed: %w", err)
		}
		zap.ReplaceGlobals(logger)
	}

	app = &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			app.Close()
			app = nil
		}
	}()

	app.logger.Info("building application dependencies",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Bool("postgres", cfg.DB.DSN != ""),
	)

	if err = setupDatabase(ctx, app); err != nil {
		return app, err
	}

	pages, err := setupFetcher(ctx, app)
	if err != nil {
		return app, err
	}

	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		return app, err
	}

	app.runner, err = setupRunner(app, pages, publisher)
	if err != nil {
		return app, err
	}
	return app, nil
}

func setupDatabase(ctx context.Context, app *App) error {
	if app.cfg.DB.DSN == "" {
		app.logger.Warn("no DSN specified for database, using in-memory stores")
		app.repo = memorystorage.NewShareStore(nil)
		app.runs = memorystorage.NewRunStore()
		return nil
	}
	if app.cfg.DB.MigrateOnStart {
		if err := pgstore.Migrate(app.cfg.DB.DSN, pgstore.Up); err != nil {
			return fmt.Errorf("migrations failed: %w", err)
		}
		app.logger.Info("database migrated")
	}
	pool, err := pgstore.Open(ctx, pgstore.Config{
		DSN:             app.cfg.DB.DSN,
		MaxConns:        app.cfg.DB.MaxConns,
		MinConns:        app.cfg.DB.MinConns,
		MaxConnLifetime: app.cfg.DB.MaxConnLifetime(),
	})
	if err != nil {
		return fmt.Errorf("postgres init failed: %w", err)
	}
	app.closers = append(app.closers, pool.Close)

	shares, err := pgstore.NewShareStore(pool)
	if err != nil {
		return fmt.Errorf("share store init failed: %w", err)
	}
	runs, err := pgstore.NewRunStore(pool)
	if err != nil {
		return fmt.Errorf("run store init failed: %w", err)
	}
	app.repo, app.runs = shares, runs
	app.logger.Info("postgres stores initialized", zap.Int32("max_conns", app.cfg.DB.MaxConns))
	return nil
}

// setupFetcher builds the retrying, rate-limited page fetcher and wraps it in the archive
// decorator when a blob backend is configured.
func setupFetcher(ctx context.Context, app *App) (scrape.Fetcher, error) {
	httpCfg := app.cfg.HTTP
	getter := collyfetcher.New(collyfetcher.Config{
		UserAgent:     httpCfg.UserAgent,
		RespectRobots: httpCfg.RespectRobots,
		Timeout:       httpCfg.Timeout(),
	})
	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: httpCfg.RatePerSecond,
		Burst:             httpCfg.Burst,
	})
	b := app.cfg.Backoff
	driver := backoff.New(b.MaxRetries, b.Base(), b.Cap(), b.MaxExponent)
	app.logger.Info("using colly page fetcher",
		zap.String("user_agent", httpCfg.UserAgent),
		zap.Float64("rate_per_second", httpCfg.RatePerSecond),
		zap.Int("max_retries", driver.MaxRetries),
	)

	pages := fetcher.New(getter,
		fetcher.WithDriver(driver),
		fetcher.WithLimiter(limiter),
		fetcher.WithLogger(app.logger.Named("fetcher")),
	)

	blobs, err := setupStorage(ctx, app)
	if err != nil {
		return nil, err
	}
	if blobs == nil {
		return pages, nil
	}
	return archive.New(pages, blobs, sha256.New(), system.New(), archive.Config{
		Prefix:      app.cfg.Storage.Prefix,
		ContentType: app.cfg.Storage.ContentType,
	}, app.logger.Named("archive")), nil
}

func setupStorage(ctx context.Context, app *App) (archive.BlobStore, error) {
	switch app.cfg.Storage.Backend {
	case config.BackendGCS:
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.closers = append(app.closers, func() {
			if err := client.Close(); err != nil {
				app.logger.Warn("gcs client close failed", zap.Error(err))
			}
		})
		blobs, err := gcsstorage.New(client, gcsstorage.Config{Bucket: app.cfg.Storage.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		app.logger.Info("archiving pages to GCS", zap.String("bucket", app.cfg.Storage.GCSBucket))
		return blobs, nil
	case config.BackendLocal:
		blobs, err := localstorage.New(localstorage.Config{BaseDir: app.cfg.Storage.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		app.logger.Info("archiving pages locally", zap.String("path", app.cfg.Storage.BaseDir))
		return blobs, nil
	case config.BackendMemory:
		app.logger.Info("archiving pages in memory")
		return memorystorage.NewBlobStore(), nil
	default:
		app.logger.Info("page archive disabled")
		return nil, nil
	}
}

func setupPublisher(ctx context.Context, app *App) (runner.Publisher, error) {
	if app.cfg.PubSub.TopicName == "" || app.cfg.PubSub.ProjectID == "" {
		app.logger.Warn("no Pub/Sub topic configured, run summaries are only logged")
		return nil, nil
	}
	client, err := pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	publisher := gcppublisher.New(client)
	app.closers = append(app.closers, func() {
		publisher.Stop()
		if err := client.Close(); err != nil {
			app.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	})
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return publisher, nil
}

func setupRunner(app *App, pages scrape.Fetcher, publisher runner.Publisher) (*runner.Runner, error) {
	strategy, err := extract.ParseStrategy(app.cfg.Extract.Strategy)
	if err != nil {
		return nil, err
	}
	factory, err := extract.NewFactory(strategy, extract.DefaultTables())
	if err != nil {
		return nil, fmt.Errorf("extractor init failed: %w", err)
	}
	clock := system.New()
	sc := app.cfg.Scrape
	listing := scrape.NewListingScraper(pages, clock, scrape.ListingConfig{
		BaseURL:     sc.BaseURL,
		Letters:     sc.Letters,
		Pages:       sc.Pages,
		Concurrency: sc.Concurrency,
	}, app.logger.Named("scrape.listing"))
	detail := scrape.NewDetailScraper(pages, factory, clock, scrape.DetailConfig{
		BaseURL:      sc.BaseURL,
		Concurrency:  sc.Concurrency,
		TaskTimeout:  sc.TaskTimeout(),
		FillDefaults: app.cfg.Extract.FillDefaults,
	}, app.logger.Named("scrape.detail"))
	app.logger.Info("scrapers configured",
		zap.String("strategy", string(strategy)),
		zap.Int("letters", len(sc.Letters)),
		zap.Int("pages", sc.Pages),
		zap.Int("concurrency", sc.Concurrency),
		zap.Duration("task_timeout", sc.TaskTimeout()),
	)

	return runner.New(runner.Deps{
		Repo:      app.repo,
		Isins:     listing,
		Shares:    detail,
		Publisher: publisher,
		IDs:       uuid.New(),
		Clock:     clock,
	}, runner.Config{
		InsertConcurrency: app.cfg.DB.InsertConcurrency,
		RefreshAfter:      sc.RefreshAfter(),
		Topic:             app.cfg.PubSub.TopicName,
	}, app.logger), nil
}

// Close releases every service in reverse build order and flushes the logger.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
}
