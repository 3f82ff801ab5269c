package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/borsa-crawler/internal/api"
	"github.com/JakeFAU/borsa-crawler/internal/clock/system"
	"github.com/JakeFAU/borsa-crawler/internal/dispatcher"
	"github.com/JakeFAU/borsa-crawler/internal/id/uuid"
	queuememory "github.com/JakeFAU/borsa-crawler/internal/queue/memory"
	"github.com/JakeFAU/borsa-crawler/internal/runner"
	"github.com/JakeFAU/borsa-crawler/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// Serve runs the HTTP API and the run workers until ctx is canceled.
func (a *App) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.serve(ctx, ln)
}

func (a *App) serve(ctx context.Context, ln net.Listener) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	q := queuememory.NewQueue(a.cfg.API.QueueDepth)
	workers := make([]*worker.Worker, 0, a.cfg.API.Workers)
	for i := 0; i < a.cfg.API.Workers; i++ {
		workers = append(workers, worker.New(q, a.runs, a.runner, a.logger.Named("worker")))
	}
	dispatch := dispatcher.New(q, a.runs, uuid.New(), system.New(), workers)

	apiServer := api.NewServer(a.repo, a.runs, dispatch, a.cfg, a.logger)
	a.runner.OnFinish(func(runner.Info) { apiServer.Invalidate() })

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		a.logger.Info("dispatcher started", zap.Int("workers", len(workers)))
		dispatch.Run(ctx)
	}()

	srv := &http.Server{
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	q.Close()
	<-dispatchDone
	a.logger.Info("shutdown complete")

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}
