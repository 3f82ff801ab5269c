// Package scrape fans page fetches out over a bounded pool and aggregates their outcomes.
//
// Both orchestrators consume results in completion order on a single goroutine, so the
// result collection and Metrics need no locking. A failing item only shows up in Metrics;
// it never fails the batch.
package scrape

import (
	"context"
	"time"
)

// Fetcher returns the body of a page.
type Fetcher interface {
	FetchPage(ctx context.Context, url string) (string, error)
}

// Clock supplies timestamps for observed and assembled records.
type Clock interface {
	Now() time.Time
}

// DefaultConcurrency bounds in-flight page fetches when none is configured.
const DefaultConcurrency = 8

// DefaultTaskTimeout bounds one detail scrape, retries included.
const DefaultTaskTimeout = 300 * time.Second
