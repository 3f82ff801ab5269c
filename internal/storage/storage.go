// Package storage defines the persistence contract of the harvester and the batch helpers built on it.
package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/borsa-crawler/internal/isin"
	"github.com/JakeFAU/borsa-crawler/internal/metrics"
	"github.com/JakeFAU/borsa-crawler/internal/share"
)

var (
	// ErrNotFound is returned when a lookup matches nothing.
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict is returned by plain inserts of an existing key.
	ErrConflict = errors.New("storage: already exists")
)

// ShareQuery filters QueryShares. An exact Isin wins over the other fields.
// Lang matches the ISIN prefix (e.g. "IT") and Name is a case-insensitive substring.
type ShareQuery struct {
	Name string
	Isin string
	Lang string
}

// ShareRepository persists identifiers and assembled shares.
type ShareRepository interface {
	// InsertIsin is a plain insert; an existing ISIN fails with ErrConflict.
	InsertIsin(ctx context.Context, item isin.ShareIsin) error
	// UpsertShare writes all four sub-records in one transaction, keeping stored values
	// wherever the incoming field is absent.
	UpsertShare(ctx context.Context, s share.Share) error
	QueryAllIsins(ctx context.Context) ([]isin.ShareIsin, error)
	// QueryStaleIsins returns identifiers whose newest sub-record is at least olderThan old.
	QueryStaleIsins(ctx context.Context, olderThan time.Duration) ([]isin.ShareIsin, error)
	QueryShares(ctx context.Context, q ShareQuery) ([]share.Share, error)
	Ping(ctx context.Context) error
}

// InsertionMetrics counts persistence calls. The repository reports only success or failure.
type InsertionMetrics struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
}

// Merge returns the field-wise sum of m and other.
func (m InsertionMetrics) Merge(other InsertionMetrics) InsertionMetrics {
	return InsertionMetrics{
		Total:      m.Total + other.Total,
		Successful: m.Successful + other.Successful,
	}
}

// DefaultBatchConcurrency bounds batch writes when none is configured.
const DefaultBatchConcurrency = 8

// InsertAllIsins inserts every item, at most concurrency at a time. Failures are logged and counted.
func InsertAllIsins(ctx context.Context, repo ShareRepository, items []isin.ShareIsin, concurrency int, logger *zap.Logger) InsertionMetrics {
	return forEach(ctx, items, concurrency, func(ctx context.Context, item isin.ShareIsin) error {
		err := repo.InsertIsin(ctx, item)
		metrics.ObserveInsert("insert_isin", err == nil)
		if err != nil && logger != nil {
			logger.Warn("insert isin failed", zap.String("isin", item.Isin.String()), zap.Error(err))
		}
		return err
	})
}

// UpsertAllShares upserts every share, at most concurrency at a time. Failures are logged and counted.
func UpsertAllShares(ctx context.Context, repo ShareRepository, shares []share.Share, concurrency int, logger *zap.Logger) InsertionMetrics {
	return forEach(ctx, shares, concurrency, func(ctx context.Context, s share.Share) error {
		err := repo.UpsertShare(ctx, s)
		metrics.ObserveInsert("upsert_share", err == nil)
		if err != nil && logger != nil {
			logger.Warn("upsert share failed", zap.String("isin", s.Isin()), zap.Error(err))
		}
		return err
	})
}

func forEach[T any](ctx context.Context, items []T, concurrency int, write func(context.Context, T) error) InsertionMetrics {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}
	var (
		mu  sync.Mutex
		out InsertionMetrics
	)
	var g errgroup.Group
	g.SetLimit(concurrency)
	for _, item := range items {
		g.Go(func() error {
			err := write(ctx, item)
			mu.Lock()
			defer mu.Unlock()
			out.Total++
			if err == nil {
				out.Successful++
			}
			// One failed write never stops the batch.
			return nil
		})
	}
	_ = g.Wait()
	return out
}
