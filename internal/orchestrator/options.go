package orchestrator

import (
	"github.com/eEcoLiDAR/lcMacroPipeline/internal/exec"
)

// Option configures an Executor. Use With* functions to create Options.
type Option func(*Executor)

// WithDebugLogger records per-task submit and finish lines in l.
func WithDebugLogger(l *DebugLogger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithCommandRunner sets the runner used by the ssh backend.
func WithCommandRunner(r exec.CommandRunner) Option {
	return func(e *Executor) { e.runner = r }
}

// WithProgress calls fn as each result is collected, in submission order.
// fn runs on the goroutine calling Run.
func WithProgress(fn func(done, total int, r Result)) Option {
	return func(e *Executor) { e.progress = fn }
}
