package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eEcoLiDAR/lcMacroPipeline/internal/failure"
)

func TestWorkerPool_BoundsConcurrency(t *testing.T) {
	pool := newWorkerPool("test", 2)

	var running, peak atomic.Int32
	var outs []*outcome
	for i := 0; i < 8; i++ {
		outs = append(outs, pool.submit(context.Background(), func(context.Context) (any, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return nil, nil
		}))
	}
	for _, o := range outs {
		o.wait()
		if o.err != nil {
			t.Errorf("unexpected error: %v", o.err)
		}
	}
	pool.close()

	if got := peak.Load(); got > 2 || got < 1 {
		t.Errorf("peak concurrency = %d, want 1..2", got)
	}
}

func TestWorkerPool_SubmitDoesNotBlock(t *testing.T) {
	pool := newWorkerPool("test", 1)
	release := make(chan struct{})

	done := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			pool.submit(context.Background(), func(context.Context) (any, error) {
				<-release
				return nil, nil
			})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("submit blocked while workers were busy")
	}
	close(release)
	pool.close()
}

func TestWorkerPool_RecoversPanic(t *testing.T) {
	pool := newWorkerPool("test", 1)
	defer pool.close()

	out := pool.submit(context.Background(), func(context.Context) (any, error) {
		panic("boom")
	})
	out.wait()

	var pe *failure.PanicError
	if !errors.As(out.err, &pe) {
		t.Fatalf("error = %v, want *failure.PanicError", out.err)
	}
	if pe.Value != "boom" || len(pe.Stack) == 0 {
		t.Errorf("panic error = %+v", pe)
	}
}

func TestWorkerPool_ClosedRefusesWork(t *testing.T) {
	pool := newWorkerPool("test", 1)
	pool.close()

	var mu sync.Mutex
	ran := false
	out := pool.submit(context.Background(), func(context.Context) (any, error) {
		mu.Lock()
		ran = true
		mu.Unlock()
		return nil, nil
	})
	out.wait()

	if !errors.Is(out.err, failure.ErrClosed) {
		t.Errorf("error = %v, want ErrClosed", out.err)
	}
	mu.Lock()
	defer mu.Unlock()
	if ran {
		t.Error("closed pool ran a function")
	}
}

func TestWorkerPool_CloseWaitsForRunning(t *testing.T) {
	pool := newWorkerPool("test", 2)

	var finished atomic.Bool
	pool.submit(context.Background(), func(context.Context) (any, error) {
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
		return nil, nil
	})
	pool.close()

	if !finished.Load() {
		t.Error("close returned before the running function finished")
	}
}
