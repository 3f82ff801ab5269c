// Package dispatcher accepts run requests and fans them out to the workers.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/borsa-crawler/internal/queue"
	"github.com/JakeFAU/borsa-crawler/internal/runner"
	"github.com/JakeFAU/borsa-crawler/internal/worker"
)

// DefaultEnqueueTimeout bounds how long Submit waits for queue space.
const DefaultEnqueueTimeout = 2 * time.Second

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock stamps queued runs.
type Clock interface {
	Now() time.Time
}

// Dispatcher fans out queued runs to a pool of workers.
type Dispatcher struct {
	queue          queue.Queue
	runs           runner.RunStore
	ids            IDGenerator
	clock          Clock
	workers        []*worker.Worker
	enqueueTimeout time.Duration
}

// New creates a Dispatcher.
func New(q queue.Queue, runs runner.RunStore, ids IDGenerator, clock Clock, workers []*worker.Worker) *Dispatcher {
	return &Dispatcher{
		queue:          q,
		runs:           runs,
		ids:            ids,
		clock:          clock,
		workers:        workers,
		enqueueTimeout: DefaultEnqueueTimeout,
	}
}

// Run starts all workers and blocks until the context finishes.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	wg.Wait()
}

// Submit records a queued run of kind and enqueues it.
// A run that cannot be enqueued is marked failed and the error returned.
func (d *Dispatcher) Submit(ctx context.Context, kind runner.Kind) (runner.Run, error) {
	id, err := d.ids.NewID()
	if err != nil {
		return runner.Run{}, fmt.Errorf("run id: %w", err)
	}
	run := runner.Run{ID: id, Kind: kind, Status: runner.StatusQueued, Queued: d.clock.Now()}
	if err := d.runs.CreateRun(ctx, run); err != nil {
		return runner.Run{}, fmt.Errorf("create run: %w", err)
	}

	enqueueCtx, cancel := context.WithTimeout(ctx, d.enqueueTimeout)
	defer cancel()
	if err := d.queue.Enqueue(enqueueCtx, queue.Item{RunID: id, Kind: kind, Submitted: run.Queued}); err != nil {
		_ = d.runs.UpdateRun(context.WithoutCancel(ctx), id, runner.StatusFailed, err.Error(), nil)
		return run, fmt.Errorf("queue enqueue: %w", err)
	}
	return run, nil
}
