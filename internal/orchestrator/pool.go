package orchestrator

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/eEcoLiDAR/lcMacroPipeline/internal/failure"
)

// workerPool runs submitted functions on goroutines, at most size at a time.
type workerPool struct {
	name string
	size int
	sem  *semaphore.Weighted

	mu     sync.Mutex
	closed bool

	// wg tracks submitted functions
	wg sync.WaitGroup
}

func newWorkerPool(name string, size int) *workerPool {
	if size < 1 {
		size = 1
	}
	return &workerPool{
		name: name,
		size: size,
		sem:  semaphore.NewWeighted(int64(size)),
	}
}

// submit schedules fn without blocking. A closed pool resolves the outcome
// with failure.ErrClosed.
func (p *workerPool) submit(ctx context.Context, fn runFunc) *outcome {
	out := newOutcome()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		out.resolve(nil, failure.ErrClosed, 0)
		return out
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()

		if err := p.sem.Acquire(ctx, 1); err != nil {
			out.resolve(nil, err, 0)
			return
		}
		defer p.sem.Release(1)

		start := time.Now()
		v, err := isolate(ctx, fn)
		out.resolve(v, err, time.Since(start))
	}()

	return out
}

// close refuses further submissions and waits for running functions.
func (p *workerPool) close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
	log.Printf("[pool] %s pool (%d workers) shut down", p.name, p.size)
}
