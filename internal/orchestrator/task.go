package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/eEcoLiDAR/lcMacroPipeline/internal/failure"
)

// Task is one independent unit of work.
type Task interface {
	Name() string
	Run(ctx context.Context) (any, error)
}

// RemoteTask is a Task that can also run as an lcpipe invocation on another
// host. The ssh backend only accepts RemoteTasks.
type RemoteTask interface {
	Task
	// RemoteArgs returns the lcpipe arguments performing the task.
	RemoteArgs() []string
	// DecodeRemote turns the invocation's stdout into the task value.
	DecodeRemote(stdout []byte) (any, error)
}

// Result is the outcome of one task. Exactly one of Value and Err is
// meaningful.
type Result struct {
	// Index is the task's position in submission order.
	Index    int
	TaskID   string
	Name     string
	Value    any
	Err      error
	Kind     failure.Kind
	Duration time.Duration
}

// OK reports whether the task succeeded.
func (r Result) OK() bool { return r.Err == nil }

func (r Result) String() string {
	if r.OK() {
		return fmt.Sprintf("%s: ok (%s)", r.Name, r.Duration.Round(time.Millisecond))
	}
	return fmt.Sprintf("%s: %s: %v", r.Name, r.Kind, r.Err)
}

// Summary counts results.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
}

// Summarize counts successes and failures.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.OK() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}

// runFunc is the body a backend executes for a task.
type runFunc func(ctx context.Context) (any, error)

// isolate runs fn and converts a panic into a *failure.PanicError.
func isolate(ctx context.Context, fn runFunc) (v any, err error) {
	defer func() {
		if p := recover(); p != nil {
			v = nil
			err = &failure.PanicError{Value: p, Stack: debug.Stack()}
		}
	}()
	return fn(ctx)
}

// outcome is a pending task result, resolved exactly once by the backend.
type outcome struct {
	done     chan struct{}
	value    any
	err      error
	duration time.Duration
}

func newOutcome() *outcome {
	return &outcome{done: make(chan struct{})}
}

func (o *outcome) resolve(v any, err error, d time.Duration) {
	o.value, o.err, o.duration = v, err, d
	close(o.done)
}

func (o *outcome) wait() { <-o.done }
