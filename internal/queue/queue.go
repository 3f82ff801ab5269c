// Package queue carries requested runs from the API to the run workers.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/JakeFAU/borsa-crawler/internal/runner"
)

// ErrClosed is returned by Dequeue once the queue is closed and drained.
var ErrClosed = errors.New("queue closed")

// Item is one requested run.
type Item struct {
	RunID     string
	Kind      runner.Kind
	Submitted time.Time
}

// Queue provides enqueue/dequeue semantics for run requests.
type Queue interface {
	Enqueue(ctx context.Context, item Item) error
	Dequeue(ctx context.Context) (Item, error)
}
