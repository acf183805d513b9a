// Package exec runs external programs for the collaborators lcpipe drives
// from the outside: the PDAL command line and the OpenSSH client.
package exec

import (
	"context"
	"strings"
)

// Command describes one external program invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Stdin is fed to the process when non-nil.
	Stdin []byte
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Output holds what a finished process wrote.
type Output struct {
	Stdout []byte
	Stderr []byte
}

// CommandRunner defines the interface for running external commands.
// This abstraction allows mocking command execution in tests.
type CommandRunner interface {
	// Run executes cmd and waits for it. A non-zero exit status is an error;
	// the output collected so far is returned alongside it.
	Run(ctx context.Context, cmd Command) (Output, error)
}

// RunnerFunc adapts a function to CommandRunner.
type RunnerFunc func(ctx context.Context, cmd Command) (Output, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, cmd Command) (Output, error) {
	return f(ctx, cmd)
}
