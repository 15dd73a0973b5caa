package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// TaskFunc processes one job. The boolean result reports whether the value
// should be collected.
type TaskFunc[J, R any] func(ctx context.Context, j J) (R, bool)

// workerPool runs a TaskFunc over queued jobs with a fixed number of
// goroutines.
type workerPool[J, R any] struct {
	workers int
	jobs    chan J
	results chan R
	wg      sync.WaitGroup
}

// newWorkerPool creates a pool with the given number of workers.
// The channels are buffered at workers*2 to allow some pipelining.
func newWorkerPool[J, R any](workers int) *workerPool[J, R] {
	if workers <= 0 {
		workers = 1
	}
	return &workerPool[J, R]{
		workers: workers,
		jobs:    make(chan J, workers*2),
		results: make(chan R, workers*2),
	}
}

// start launches all worker goroutines.
func (p *workerPool[J, R]) start(ctx context.Context, logger *slog.Logger, stage string, fn TaskFunc[J, R]) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, logger, stage, fn)
	}
}

// worker is the main loop for a single worker goroutine.
func (p *workerPool[J, R]) worker(ctx context.Context, logger *slog.Logger, stage string, fn TaskFunc[J, R]) {
	defer p.wg.Done()

	for j := range p.jobs {
		// Recover from panics so one bad job does not crash the pool.
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("worker recovered from panic",
						"stage", stage,
						"job", fmt.Sprintf("%v", j),
						"panic", fmt.Sprintf("%v", r),
					)
				}
			}()

			if ctx.Err() != nil {
				return
			}

			if res, keep := fn(ctx, j); keep {
				p.results <- res
			}
		}()
	}
}

// submit adds a job to the queue. It blocks if the jobs channel is full.
func (p *workerPool[J, R]) submit(j J) {
	p.jobs <- j
}

// close signals that no more jobs will be submitted, then waits for all
// workers to finish and closes the results channel.
func (p *workerPool[J, R]) close() {
	close(p.jobs)
	p.wg.Wait()
	close(p.results)
}

// runPool feeds jobs to a bounded pool and collects the kept results in
// completion order. Submission stops early once ctx is done.
func runPool[J, R any](ctx context.Context, logger *slog.Logger, stage string, workers int, jobs []J, fn TaskFunc[J, R]) []R {
	if len(jobs) == 0 {
		return nil
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	pool := newWorkerPool[J, R](workers)
	pool.start(ctx, logger, stage, fn)

	go func() {
		defer pool.close()
		for _, j := range jobs {
			if ctx.Err() != nil {
				return
			}
			pool.submit(j)
		}
	}()

	var out []R
	for r := range pool.results {
		out = append(out, r)
	}
	return out
}
