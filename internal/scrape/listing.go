package scrape

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/borsa-crawler/internal/extract"
	"github.com/JakeFAU/borsa-crawler/internal/isin"
	"github.com/JakeFAU/borsa-crawler/internal/metrics"
)

// ListingConfig sets the letter x page grid of listing pages.
type ListingConfig struct {
	BaseURL     string
	Letters     []string
	Pages       int
	Concurrency int
}

func (c ListingConfig) withDefaults() ListingConfig {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if len(c.Letters) == 0 {
		c.Letters = DefaultLetters
	}
	if c.Pages <= 0 {
		c.Pages = DefaultPages
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	return c
}

// ListingScraper discovers ISINs from the A-Z listing pages.
//
// The grid is fixed: every letter is fetched for pages 1..Pages whether or not the
// site has that many pages, so the same security can appear more than once.
type ListingScraper struct {
	fetcher Fetcher
	clock   Clock
	cfg     ListingConfig
	logger  *zap.Logger
}

// NewListingScraper builds a ListingScraper.
func NewListingScraper(f Fetcher, clock Clock, cfg ListingConfig, logger *zap.Logger) *ListingScraper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListingScraper{
		fetcher: f,
		clock:   clock,
		cfg:     cfg.withDefaults(),
		logger:  logger.Named("scrape.listing"),
	}
}

type listingPage struct {
	letter string
	page   int
}

type listingResult struct {
	page   listingPage
	result extract.ListingResult
	err    error
}

// ScrapeIsins fetches every grid page and returns the distinct securities found.
func (s *ListingScraper) ScrapeIsins(ctx context.Context) (*isin.Set, Metrics) {
	grid := make([]listingPage, 0, len(s.cfg.Letters)*s.cfg.Pages)
	for _, letter := range s.cfg.Letters {
		for page := 1; page <= s.cfg.Pages; page++ {
			grid = append(grid, listingPage{letter: letter, page: page})
		}
	}
	s.logger.Info("scraping listing pages", zap.Int("pages", len(grid)))

	set := isin.NewSet()
	var m Metrics
	fanOut(ctx, s.cfg.Concurrency, grid, s.scrapePage, func(res listingResult) {
		m = m.Merge(Outcome(res.err))
		metrics.ObserveScrape("listing", Classify(res.err).String())
		if res.err != nil {
			s.logger.Warn("listing page failed",
				zap.String("letter", res.page.letter),
				zap.Int("page", res.page.page),
				zap.Stringer("kind", Classify(res.err)),
				zap.Error(res.err),
			)
			return
		}
		if res.result.Skipped > 0 {
			s.logger.Debug("skipped listing anchors",
				zap.String("letter", res.page.letter),
				zap.Int("page", res.page.page),
				zap.Int("skipped", res.result.Skipped),
			)
		}
		for _, item := range res.result.Shares {
			set.Add(item)
		}
	})

	s.logger.Info("listing scrape finished",
		zap.Int("isins", set.Len()),
		zap.Int("total", m.Total),
		zap.Int("successful", m.Successful),
	)
	return set, m
}

func (s *ListingScraper) scrapePage(ctx context.Context, p listingPage) listingResult {
	out := listingResult{page: p}
	url := ListingURL(s.cfg.BaseURL, p.letter, p.page)
	body, err := s.fetcher.FetchPage(ctx, url)
	if err != nil {
		out.err = err
		return out
	}
	doc, err := extract.ParseDocument(body)
	if err != nil {
		out.err = err
		return out
	}
	res, err := extract.ParseListing(doc, s.clock.Now())
	if err != nil {
		out.err = fmt.Errorf("%s: %w", url, err)
		return out
	}
	out.result = res
	return out
}
