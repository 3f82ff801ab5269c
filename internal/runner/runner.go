// Package runner executes the three harvesting workflows and reports a summary for each.
//
// A workflow scrapes, persists what it scraped and returns an Info. Per-item failures only
// show up in the metrics; a workflow fails as a whole only when it cannot load its input.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/borsa-crawler/internal/isin"
	"github.com/JakeFAU/borsa-crawler/internal/metrics"
	"github.com/JakeFAU/borsa-crawler/internal/scrape"
	"github.com/JakeFAU/borsa-crawler/internal/share"
	"github.com/JakeFAU/borsa-crawler/internal/storage"
)

// DefaultRefreshAfter is the staleness threshold of the refresh workflow.
const DefaultRefreshAfter = 15 * time.Minute

// IsinScraper walks the A-Z listing.
type IsinScraper interface {
	ScrapeIsins(ctx context.Context) (*isin.Set, scrape.Metrics)
}

// ShareScraper scrapes detail pages.
type ShareScraper interface {
	ScrapeShares(ctx context.Context, ids []isin.ShareIsin) ([]share.Share, scrape.Metrics)
}

// Publisher pushes run summaries to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Deps are the collaborators of a Runner. Publisher is optional.
type Deps struct {
	Repo      storage.ShareRepository
	Isins     IsinScraper
	Shares    ShareScraper
	Publisher Publisher
	IDs       IDGenerator
	Clock     Clock
}

// Config tunes the workflows.
type Config struct {
	InsertConcurrency int
	RefreshAfter      time.Duration
	// Topic receives one Info per finished run; empty disables publishing.
	Topic string
}

// Runner runs workflows. It is safe for concurrent use once hooks are registered.
type Runner struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
	hooks  []func(Info)
}

// New constructs a Runner.
func New(deps Deps, cfg Config, logger *zap.Logger) *Runner {
	if cfg.InsertConcurrency <= 0 {
		cfg.InsertConcurrency = storage.DefaultBatchConcurrency
	}
	if cfg.RefreshAfter <= 0 {
		cfg.RefreshAfter = DefaultRefreshAfter
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{deps: deps, cfg: cfg, logger: logger.Named("runner")}
}

// OnFinish registers fn to be called after every run, failed ones included.
// Register hooks before the first run starts.
func (r *Runner) OnFinish(fn func(Info)) {
	r.hooks = append(r.hooks, fn)
}

// ScrapeAndInsertIsins walks the listing and inserts every identifier found.
func (r *Runner) ScrapeAndInsertIsins(ctx context.Context) (Info, error) {
	return r.Run(ctx, KindIsins, "")
}

// ScrapeAndInsertShares scrapes every stored identifier and upserts the results.
func (r *Runner) ScrapeAndInsertShares(ctx context.Context) (Info, error) {
	return r.Run(ctx, KindShares, "")
}

// RefreshShares scrapes only identifiers whose data is at least olderThan old.
func (r *Runner) RefreshShares(ctx context.Context, olderThan time.Duration) (Info, error) {
	return r.timed(ctx, KindRefresh, "", func(ctx context.Context) (Metrics, error) {
		return r.refresh(ctx, olderThan)
	})
}

// Run executes kind under runID, generating an ID when runID is empty.
func (r *Runner) Run(ctx context.Context, kind Kind, runID string) (Info, error) {
	var work func(context.Context) (Metrics, error)
	switch kind {
	case KindIsins:
		work = r.isins
	case KindShares:
		work = r.shares
	case KindRefresh:
		work = func(ctx context.Context) (Metrics, error) {
			return r.refresh(ctx, r.cfg.RefreshAfter)
		}
	default:
		return Info{}, fmt.Errorf("unknown run kind %q", kind)
	}
	return r.timed(ctx, kind, runID, work)
}

func (r *Runner) isins(ctx context.Context) (Metrics, error) {
	found, scraped := r.deps.Isins.ScrapeIsins(ctx)
	inserted := storage.InsertAllIsins(ctx, r.deps.Repo, found.Items(), r.cfg.InsertConcurrency, r.logger)
	return Metrics{Scrape: scraped, Insert: inserted}, nil
}

func (r *Runner) shares(ctx context.Context) (Metrics, error) {
	ids, err := r.deps.Repo.QueryAllIsins(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("load isins: %w", err)
	}
	return r.scrapeAndUpsert(ctx, ids), nil
}

func (r *Runner) refresh(ctx context.Context, olderThan time.Duration) (Metrics, error) {
	ids, err := r.deps.Repo.QueryStaleIsins(ctx, olderThan)
	if err != nil {
		return Metrics{}, fmt.Errorf("load stale isins: %w", err)
	}
	r.logger.Info("refreshing stale shares", zap.Int("count", len(ids)), zap.Duration("older_than", olderThan))
	return r.scrapeAndUpsert(ctx, ids), nil
}

func (r *Runner) scrapeAndUpsert(ctx context.Context, ids []isin.ShareIsin) Metrics {
	shares, scraped := r.deps.Shares.ScrapeShares(ctx, ids)
	upserted := storage.UpsertAllShares(ctx, r.deps.Repo, shares, r.cfg.InsertConcurrency, r.logger)
	return Metrics{Scrape: scraped, Insert: upserted}
}

// timed wraps a workflow with its ID, timing, metrics, logging and publication.
func (r *Runner) timed(ctx context.Context, kind Kind, runID string, work func(context.Context) (Metrics, error)) (Info, error) {
	if runID == "" {
		id, err := r.deps.IDs.NewID()
		if err != nil {
			return Info{}, fmt.Errorf("run id: %w", err)
		}
		runID = id
	}
	logger := r.logger.With(zap.String("run_id", runID), zap.String("kind", string(kind)))
	start := r.deps.Clock.Now()
	logger.Info("run started")

	m, err := work(ctx)
	elapsed := r.deps.Clock.Now().Sub(start)
	info := Info{
		RunID:          runID,
		Kind:           kind,
		Metrics:        m,
		StartTime:      start,
		DurationMillis: elapsed.Milliseconds(),
	}

	status := StatusSucceeded
	switch {
	case errors.Is(err, context.Canceled):
		status = StatusCanceled
	case err != nil:
		status = StatusFailed
	}
	metrics.ObserveRun(string(kind), string(status), elapsed)

	fields := []zap.Field{
		zap.Int("scrape_total", m.Scrape.Total),
		zap.Int("scrape_successful", m.Scrape.Successful),
		zap.Int("insert_total", m.Insert.Total),
		zap.Int("insert_successful", m.Insert.Successful),
		zap.Int64("duration_ms", info.DurationMillis),
	}
	if err != nil {
		logger.Error("run failed", append(fields, zap.Error(err))...)
	} else {
		logger.Info("run finished", fields...)
	}

	r.publish(ctx, logger, info)
	for _, hook := range r.hooks {
		hook(info)
	}
	return info, err
}

func (r *Runner) publish(ctx context.Context, logger *zap.Logger, info Info) {
	if r.deps.Publisher == nil || r.cfg.Topic == "" {
		return
	}
	// Summaries of cancelled runs are published too.
	id, err := r.deps.Publisher.Publish(context.WithoutCancel(ctx), r.cfg.Topic, info)
	if err != nil {
		logger.Warn("publish run summary failed", zap.Error(err))
		return
	}
	logger.Debug("run summary published", zap.String("message_id", id))
}

// Attributes tags the published summary for subscription filters.
func (i Info) Attributes() map[string]string {
	return map[string]string{"run_id": i.RunID, "kind": string(i.Kind)}
}
