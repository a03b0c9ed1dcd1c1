package concurrent

import (
	"context"
	"sync"
)

type JobFunc[T any, G any] func(ctx context.Context, job T) (G, error)

// WorkerPool runs jobs on a fixed number of goroutines. Once a job fails or ctx is
// cancelled the remaining jobs are drained without being run, and Wait reports the first error.
type WorkerPool[T any, G any] struct {
	numWorkers int
	jobQueue   chan T
	results    chan G
	wg         sync.WaitGroup

	errOnce sync.Once
	err     error
	cancel  context.CancelFunc
}

// NewWorkerPool. resultQueueSize must hold every result that is not consumed
// concurrently with AddJob.
func NewWorkerPool[T any, G any](numWorkers, jobQueueSize, resultQueueSize int) *WorkerPool[T, G] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &WorkerPool[T, G]{
		numWorkers: numWorkers,
		jobQueue:   make(chan T, jobQueueSize),
		results:    make(chan G, resultQueueSize),
	}
}

func (wp *WorkerPool[T, G]) worker(ctx context.Context, jobFunc JobFunc[T, G]) {
	defer wp.wg.Done()
	for job := range wp.jobQueue {
		if ctx.Err() != nil {
			wp.setErr(ctx.Err())
			continue
		}
		res, err := jobFunc(ctx, job)
		if err != nil {
			wp.setErr(err)
			continue
		}
		wp.results <- res
	}
}

func (wp *WorkerPool[T, G]) setErr(err error) {
	wp.errOnce.Do(func() {
		wp.err = err
		wp.cancel()
	})
}

func (wp *WorkerPool[T, G]) Start(ctx context.Context, jobFunc JobFunc[T, G]) {
	ctx, wp.cancel = context.WithCancel(ctx)
	for i := 1; i <= wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, jobFunc)
	}
}

// Wait blocks until every worker is done, then closes the result channel.
func (wp *WorkerPool[T, G]) Wait() error {
	wp.wg.Wait()
	close(wp.results)
	wp.cancel()
	return wp.err
}

func (wp *WorkerPool[T, G]) AddJob(job T) {
	wp.jobQueue <- job
}

func (wp *WorkerPool[T, G]) CollectResults() chan G {
	return wp.results
}

func (wp *WorkerPool[T, G]) Close() {
	close(wp.jobQueue)
}
