package orchestrator

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eEcoLiDAR/lcMacroPipeline/internal/exec"
	"github.com/eEcoLiDAR/lcMacroPipeline/internal/failure"
)

// Executor runs a collection of independent tasks on one backend.
// An Executor is single-use: after Run has shut the backend down, it is
// closed.
type Executor struct {
	mu      sync.Mutex
	tasks   []Task
	backend backend
	mode    string
	closed  bool

	runner   exec.CommandRunner
	logger   *DebugLogger
	progress func(done, total int, r Result)
}

// NewExecutor creates an Executor with no tasks and no backend.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddTask appends t and returns the Executor for chaining.
func (e *Executor) AddTask(t Task) *Executor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks = append(e.tasks, t)
	return e
}

// SetTasks replaces the task list with a copy of tasks.
func (e *Executor) SetTasks(tasks []Task) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks = append([]Task(nil), tasks...)
}

// Tasks returns a copy of the task list.
func (e *Executor) Tasks() []Task {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Task(nil), e.tasks...)
}

// Mode returns the configured execution mode, or "" when none is set.
func (e *Executor) Mode() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// SetupClient installs the backend for mode. On error the previous backend,
// if any, is kept.
func (e *Executor) SetupClient(mode string, opts BackendOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return failure.ErrClosed
	}

	b, err := newBackend(mode, opts, e.runner)
	if err != nil {
		if errors.Is(err, failure.ErrUnsupportedMode) {
			log.Printf("[executor] %s mode is not supported", mode)
		}
		return err
	}
	if e.backend != nil {
		e.backend.shutdown()
	}
	e.backend = b
	e.mode = mode
	return nil
}

// Run submits every task, waits for all of them and returns one Result per
// task in submission order. A failing or panicking task never affects the
// others. The backend is shut down before Run returns and the Executor is
// closed; later calls report failure.ErrClosed for every task.
//
// Without a backend, nothing is submitted and every Result carries a
// configuration error.
func (e *Executor) Run(ctx context.Context) []Result {
	e.mu.Lock()
	tasks := append([]Task(nil), e.tasks...)
	b := e.backend
	closed := e.closed
	if b != nil {
		e.closed = true
		e.backend = nil
	}
	e.mu.Unlock()

	results := make([]Result, len(tasks))
	for i, t := range tasks {
		results[i] = Result{Index: i, TaskID: uuid.New().String()[:8], Name: taskName(t)}
	}

	switch {
	case closed:
		for i := range results {
			results[i].fail(failure.ErrClosed)
		}
		return results
	case b == nil:
		for i := range results {
			results[i].fail(failure.Configf("no execution backend, call SetupClient first"))
		}
		return results
	}

	defer func() {
		b.shutdown()
		e.logger.Log("backend %s shut down", e.mode)
	}()

	pending := make([]*outcome, len(tasks))
	for i, t := range tasks {
		if t == nil {
			pending[i] = newOutcome()
			pending[i].resolve(nil, failure.Configf("task %d is nil", i), 0)
			continue
		}
		e.logger.Log("submit %s %s", results[i].TaskID, results[i].Name)
		pending[i] = submit(ctx, b, t)
	}

	for i, p := range pending {
		p.wait()
		results[i].Value = p.value
		results[i].Duration = p.duration
		results[i].fail(p.err)
		if results[i].OK() {
			e.logger.Log("finish %s %s ok in %s", results[i].TaskID, results[i].Name, p.duration.Round(time.Millisecond))
		} else {
			e.logger.Log("finish %s %s %s: %v", results[i].TaskID, results[i].Name, results[i].Kind, p.err)
		}
		if e.progress != nil {
			e.progress(i+1, len(results), results[i])
		}
	}

	s := Summarize(results)
	log.Printf("[executor] %d tasks: %d succeeded, %d failed", s.Total, s.Succeeded, s.Failed)
	return results
}

// submit hands t to b, capturing a panic raised while submitting.
func submit(ctx context.Context, b backend, t Task) (out *outcome) {
	defer func() {
		if p := recover(); p != nil {
			out = newOutcome()
			out.resolve(nil, &failure.PanicError{Value: p}, 0)
		}
	}()
	return b.submit(ctx, t)
}

func (r *Result) fail(err error) {
	if err == nil {
		return
	}
	r.Value = nil
	r.Err = err
	r.Kind = failure.KindOf(err)
}

func taskName(t Task) (name string) {
	if t == nil {
		return "<nil>"
	}
	defer func() {
		if recover() != nil {
			name = "<unnamed>"
		}
	}()
	return t.Name()
}
