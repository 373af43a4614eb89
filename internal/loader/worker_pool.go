package loader

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ppiankov/catalogspectre/internal/models"
)

// entityJob is one entity to build. index preserves source order.
type entityJob struct {
	index int
	dir   string
	entry map[string]any
}

type entityResult struct {
	index int
	row   models.Row
	ok    bool
}

type buildFunc func(ctx context.Context, job entityJob) (models.Row, bool)

// WorkerPool builds entity rows concurrently with a fixed number of workers
type WorkerPool struct {
	workers int
	build   buildFunc
	jobs    chan entityJob
	results chan entityResult
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	mu      sync.Mutex
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workers int, build buildFunc) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		build:   build,
		jobs:    make(chan entityJob, workers*2),
		results: make(chan entityResult, workers*2),
	}
}

// Start starts the worker pool
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}

			result := p.run(id, job)
			select {
			case <-p.ctx.Done():
				return
			case p.results <- result:
			}
		}
	}
}

// run builds one entity. A panic only loses that entity.
func (p *WorkerPool) run(id int, job entityJob) (result entityResult) {
	result.index = job.index
	defer func() {
		if r := recover(); r != nil {
			slog.Error("worker panic recovered",
				slog.Int("worker_id", id),
				slog.String("entity", job.dir),
				slog.String("panic", fmt.Sprint(r)),
			)
			result.ok = false
		}
	}()

	result.row, result.ok = p.build(p.ctx, job)
	return result
}

// Submit submits a job to the worker pool
func (p *WorkerPool) Submit(job entityJob) {
	select {
	case <-p.ctx.Done():
		return
	case p.jobs <- job:
	}
}

// Results returns the results channel. It is closed by Stop.
func (p *WorkerPool) Results() <-chan entityResult {
	return p.results
}

// Stop stops the worker pool and waits for all workers to finish
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	close(p.jobs)
	p.wg.Wait()
	close(p.results)

	if p.cancel != nil {
		p.cancel()
	}

	p.mu.Lock()
	p.started = false
	p.mu.Unlock()
}

// runAll builds every job and returns results in job order
func runAll(ctx context.Context, workers int, jobs []entityJob, build buildFunc) []entityResult {
	results := make([]entityResult, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	pool := NewWorkerPool(workers, build)
	pool.Start(ctx)

	go func() {
		for _, job := range jobs {
			pool.Submit(job)
		}
		pool.Stop()
	}()

	for res := range pool.Results() {
		results[res.index] = res
	}
	return results
}
