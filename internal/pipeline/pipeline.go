// Package pipeline runs a named, ordered sequence of steps against a single
// task context value.
//
// Each step receives the context produced by the previous one and returns
// an updated value. The first failing step aborts the run; its error is
// returned to the caller as-is. No isolation happens at this layer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrAlreadyRun is returned when Run is called on a pipeline that has
// already been started.
var ErrAlreadyRun = errors.New("pipeline already run")

// StepFunc transforms the task context.
type StepFunc[C any] func(ctx context.Context, c C) (C, error)

// Step is a named pipeline stage.
type Step[C any] struct {
	Name string
	Fn   StepFunc[C]
}

// Status is the state of a pipeline run.
type Status int

const (
	NotStarted Status = iota
	Running
	Completed
	Failed
)

func (s Status) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Pipeline is a one-shot ordered step executor.
type Pipeline[C any] struct {
	name  string
	steps []Step[C]

	mu        sync.RWMutex
	status    Status
	current   int
	completed []string
}

// New builds a pipeline. It panics on empty or duplicate step names or nil
// step functions.
func New[C any](name string, steps ...Step[C]) *Pipeline[C] {
	seen := make(map[string]bool, len(steps))
	for i, s := range steps {
		if s.Name == "" {
			panic(fmt.Sprintf("pipeline %s: step %d has no name", name, i))
		}
		if s.Fn == nil {
			panic(fmt.Sprintf("pipeline %s: step %s has no function", name, s.Name))
		}
		if seen[s.Name] {
			panic(fmt.Sprintf("pipeline %s: duplicate step %s", name, s.Name))
		}
		seen[s.Name] = true
	}

	return &Pipeline[C]{
		name:    name,
		steps:   append([]Step[C](nil), steps...),
		current: -1,
	}
}

// Name returns the pipeline name.
func (p *Pipeline[C]) Name() string { return p.name }

// Steps returns the declared step names in order.
func (p *Pipeline[C]) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name
	}
	return names
}

// Run executes the steps in order and returns the final context. On failure
// it returns the context as left by the last successful step together with
// the failing step's error.
func (p *Pipeline[C]) Run(ctx context.Context, c C) (C, error) {
	p.mu.Lock()
	if p.status != NotStarted {
		p.mu.Unlock()
		return c, fmt.Errorf("pipeline %s: %w", p.name, ErrAlreadyRun)
	}
	p.status = Running
	p.mu.Unlock()

	for i, step := range p.steps {
		p.setCurrent(i)

		if err := ctx.Err(); err != nil {
			p.fail()
			return c, err
		}

		next, err := step.Fn(ctx, c)
		if err != nil {
			p.fail()
			return c, err
		}
		c = next

		p.mu.Lock()
		p.completed = append(p.completed, step.Name)
		p.mu.Unlock()
	}

	p.mu.Lock()
	p.status = Completed
	p.current = -1
	p.mu.Unlock()
	return c, nil
}

func (p *Pipeline[C]) setCurrent(i int) {
	p.mu.Lock()
	p.current = i
	p.mu.Unlock()
}

func (p *Pipeline[C]) fail() {
	p.mu.Lock()
	p.status = Failed
	p.mu.Unlock()
}

// Status returns the run state.
func (p *Pipeline[C]) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Current returns the name of the running step, or "" when none is running.
func (p *Pipeline[C]) Current() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.status != Running || p.current < 0 {
		return ""
	}
	return p.steps[p.current].Name
}

// FailedStep returns the name of the step that failed, or "".
func (p *Pipeline[C]) FailedStep() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.status != Failed {
		return ""
	}
	return p.steps[p.current].Name
}

// Completed returns the names of the steps that finished successfully.
func (p *Pipeline[C]) Completed() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.completed...)
}
