package scrape

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/borsa-crawler/internal/extract"
	"github.com/JakeFAU/borsa-crawler/internal/isin"
	"github.com/JakeFAU/borsa-crawler/internal/metrics"
	"github.com/JakeFAU/borsa-crawler/internal/share"
)

// DetailConfig tunes the detail-page scraper.
type DetailConfig struct {
	BaseURL     string
	Concurrency int
	TaskTimeout time.Duration
	// FillDefaults turns on the default-filled compatibility records.
	FillDefaults bool
}

func (c DetailConfig) withDefaults() DetailConfig {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = DefaultTaskTimeout
	}
	return c
}

// DetailScraper turns ISINs into assembled shares.
type DetailScraper struct {
	fetcher Fetcher
	factory *extract.Factory
	clock   Clock
	cfg     DetailConfig
	logger  *zap.Logger
}

// NewDetailScraper builds a DetailScraper. factory picks the field extraction strategy.
func NewDetailScraper(f Fetcher, factory *extract.Factory, clock Clock, cfg DetailConfig, logger *zap.Logger) *DetailScraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DetailScraper{
		fetcher: f,
		factory: factory,
		clock:   clock,
		cfg:     cfg.withDefaults(),
		logger:  logger.Named("scrape.detail"),
	}
}

type detailResult struct {
	share share.Share
	err   error
}

// ScrapeShares scrapes one detail page per ISIN.
// Every input yields one share; failed items yield the identity-only share and are counted by category.
func (s *DetailScraper) ScrapeShares(ctx context.Context, ids []isin.ShareIsin) ([]share.Share, Metrics) {
	s.logger.Info("scraping detail pages", zap.Int("isins", len(ids)))

	shares := make([]share.Share, 0, len(ids))
	var m Metrics
	fanOut(ctx, s.cfg.Concurrency, ids, s.scrapeWithTimeout, func(res detailResult) {
		m = m.Merge(Outcome(res.err))
		kind := Classify(res.err)
		metrics.ObserveScrape("detail", kind.String())
		if res.err != nil {
			s.logger.Warn("detail page failed",
				zap.String("isin", res.share.Isin()),
				zap.Stringer("kind", kind),
				zap.Error(res.err),
			)
		}
		shares = append(shares, res.share)
	})

	s.logger.Info("detail scrape finished",
		zap.Int("total", m.Total),
		zap.Int("successful", m.Successful),
		zap.Int("timeouts", m.Errors.Timeout),
	)
	return shares, m
}

func (s *DetailScraper) scrapeWithTimeout(ctx context.Context, id isin.ShareIsin) detailResult {
	taskCtx, cancel := context.WithTimeout(ctx, s.cfg.TaskTimeout)
	defer cancel()

	done := make(chan detailResult, 1)
	go func() {
		sh, err := s.ScrapeShare(taskCtx, id)
		done <- detailResult{share: sh, err: err}
	}()

	select {
	case res := <-done:
		return res
	case <-taskCtx.Done():
		return detailResult{
			share: share.WithIsin(id),
			err:   fmt.Errorf("%w: %s after %s", ErrTimeout, id.Isin, s.cfg.TaskTimeout),
		}
	}
}

// ScrapeShare fetches and assembles a single share without the task timeout.
// On failure it returns the identity-only share together with the error.
func (s *DetailScraper) ScrapeShare(ctx context.Context, id isin.ShareIsin) (share.Share, error) {
	body, err := s.fetcher.FetchPage(ctx, DetailURL(s.cfg.BaseURL, id.Isin.String()))
	if err != nil {
		return share.WithIsin(id), err
	}
	doc, err := extract.ParseDocument(body)
	if err != nil {
		return share.WithIsin(id), err
	}
	reader := extract.NewReader(
		s.factory.For(doc),
		extract.WithDefaults(s.cfg.FillDefaults),
		extract.WithLogger(s.logger.With(zap.String("isin", id.Isin.String()))),
	)
	return share.Assemble(id, reader, s.clock.Now()), nil
}
