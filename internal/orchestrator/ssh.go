package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/eEcoLiDAR/lcMacroPipeline/internal/exec"
	"github.com/eEcoLiDAR/lcMacroPipeline/internal/failure"
)

const defaultRemoteBinary = "lcpipe"

// sshBackend runs RemoteTasks on a fixed set of hosts through the OpenSSH
// client. Hosts are assigned round-robin in submission order; each host
// runs at most WorkersPerHost tasks at once.
type sshBackend struct {
	opts   SSHOptions
	runner exec.CommandRunner
	pools  []*workerPool

	mu   sync.Mutex
	next int
}

func newSSHBackend(opts SSHOptions, runner exec.CommandRunner) (*sshBackend, error) {
	if len(opts.Hosts) == 0 {
		return nil, failure.Configf("ssh mode requires at least one host")
	}
	for _, h := range opts.Hosts {
		if strings.TrimSpace(h) == "" {
			return nil, failure.Configf("ssh mode: empty host name")
		}
	}
	if opts.Port < 0 || opts.Port > 65535 {
		return nil, failure.Configf("ssh mode: invalid port %d", opts.Port)
	}
	if opts.RemoteBinary == "" {
		opts.RemoteBinary = defaultRemoteBinary
	}
	if opts.WorkersPerHost <= 0 {
		opts.WorkersPerHost = 1
	}
	if runner == nil {
		runner = exec.NewRunner()
	}

	b := &sshBackend{opts: opts, runner: runner}
	for _, h := range opts.Hosts {
		b.pools = append(b.pools, newWorkerPool(h, opts.WorkersPerHost))
	}
	return b, nil
}

func (b *sshBackend) submit(ctx context.Context, t Task) *outcome {
	b.mu.Lock()
	i := b.next % len(b.pools)
	b.next++
	b.mu.Unlock()

	host := b.opts.Hosts[i]
	rt, ok := t.(RemoteTask)
	if !ok {
		out := newOutcome()
		out.resolve(nil, failure.Configf("task %s cannot run in ssh mode: no remote invocation", t.Name()), 0)
		return out
	}

	return b.pools[i].submit(ctx, func(ctx context.Context) (any, error) {
		cmd := b.command(host, rt.RemoteArgs())
		log.Printf("[ssh] %s -> %s", t.Name(), host)
		out, err := b.runner.Run(ctx, cmd)
		if err != nil {
			return nil, fmt.Errorf("%w: %s on %s: %w", failure.ErrTransport, t.Name(), host, err)
		}
		return rt.DecodeRemote(out.Stdout)
	})
}

func (b *sshBackend) shutdown() {
	for _, p := range b.pools {
		p.close()
	}
}

// command renders the ssh invocation running lcpipe with args on host.
func (b *sshBackend) command(host string, args []string) exec.Command {
	var sshArgs []string
	if b.opts.KeyFile != "" {
		sshArgs = append(sshArgs, "-i", b.opts.KeyFile)
	}
	if b.opts.Port != 0 {
		sshArgs = append(sshArgs, "-p", strconv.Itoa(b.opts.Port))
	}
	for _, o := range b.opts.Options {
		sshArgs = append(sshArgs, "-o", o)
	}
	// Fail instead of prompting when a host needs a password.
	sshArgs = append(sshArgs, "-o", "BatchMode=yes")

	target := host
	if b.opts.User != "" && !strings.Contains(target, "@") {
		target = fmt.Sprintf("%s@%s", b.opts.User, target)
	}

	remote := make([]string, 0, len(args)+1)
	remote = append(remote, shellQuote(b.opts.RemoteBinary))
	for _, a := range args {
		remote = append(remote, shellQuote(a))
	}
	sshArgs = append(sshArgs, target, strings.Join(remote, " "))

	return exec.Command{Name: "ssh", Args: sshArgs}
}

// shellQuote quotes s for the remote login shell.
func shellQuote(s string) string {
	if s != "" && strings.IndexFunc(s, needsQuote) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func needsQuote(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("-_./,:=+@%", r)
}
