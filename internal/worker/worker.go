// Package worker executes queued runs and records their lifecycle.
package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/borsa-crawler/internal/metrics"
	"github.com/JakeFAU/borsa-crawler/internal/queue"
	"github.com/JakeFAU/borsa-crawler/internal/runner"
)

// Executor runs one workflow.
type Executor interface {
	Run(ctx context.Context, kind runner.Kind, runID string) (runner.Info, error)
}

// Worker consumes queue items and executes them through the runner.
type Worker struct {
	queue  queue.Queue
	runs   runner.RunStore
	exec   Executor
	logger *zap.Logger
}

// New constructs a Worker.
func New(q queue.Queue, runs runner.RunStore, exec Executor, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{queue: q, runs: runs, exec: exec, logger: logger}
}

// Run blocks, consuming queue items until the context finishes or the queue closes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued run", zap.String("run_id", item.RunID), zap.String("kind", string(item.Kind)))
		w.process(ctx, item)
	}
}

func (w *Worker) process(ctx context.Context, item queue.Item) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	if err := w.runs.UpdateRun(ctx, item.RunID, runner.StatusRunning, "", nil); err != nil {
		w.logger.Error("update run status failed", zap.String("run_id", item.RunID), zap.Error(err))
		return
	}

	info, err := w.exec.Run(ctx, item.Kind, item.RunID)
	status, errText := finalStatus(ctx, err)

	// The final status is recorded even when shutdown cancelled the run.
	if err := w.runs.UpdateRun(context.WithoutCancel(ctx), item.RunID, status, errText, &info); err != nil {
		w.logger.Error("final run status update failed", zap.String("run_id", item.RunID), zap.Error(err))
	}
}

func finalStatus(ctx context.Context, err error) (runner.Status, string) {
	switch {
	case ctx.Err() != nil:
		errText := ctx.Err().Error()
		if err != nil {
			errText = err.Error()
		}
		return runner.StatusCanceled, errText
	case err != nil:
		return runner.StatusFailed, err.Error()
	default:
		return runner.StatusSucceeded, ""
	}
}
