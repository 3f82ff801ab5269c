package scrape

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// fanOut runs task for every item with at most limit in flight and hands each result to
// consume in completion order. consume runs on the calling goroutine only.
//
// Once ctx is done the remaining items still run, with the dead context, so every item
// produces exactly one result.
func fanOut[In, Out any](
	ctx context.Context,
	limit int,
	items []In,
	task func(context.Context, In) Out,
	consume func(Out),
) {
	if limit <= 0 {
		limit = 1
	}
	sem := semaphore.NewWeighted(int64(limit))
	results := make(chan Out)

	go func() {
		var wg sync.WaitGroup
		for _, item := range items {
			if err := sem.Acquire(ctx, 1); err != nil {
				results <- task(ctx, item)
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer sem.Release(1)
				results <- task(ctx, item)
			}()
		}
		wg.Wait()
		close(results)
	}()

	for out := range results {
		consume(out)
	}
}
