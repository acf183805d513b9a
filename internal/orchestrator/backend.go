package orchestrator

import (
	"context"
	"runtime"

	"github.com/eEcoLiDAR/lcMacroPipeline/internal/exec"
	"github.com/eEcoLiDAR/lcMacroPipeline/internal/failure"
)

// Execution modes accepted by SetupClient.
const (
	ModeLocal = "local"
	ModeSSH   = "ssh"
	ModeSlurm = "slurm"
)

// BackendOptions configures the execution backend.
type BackendOptions struct {
	// Workers bounds concurrent tasks in local mode. Zero means
	// runtime.NumCPU().
	Workers int
	SSH     SSHOptions
}

// SSHOptions configures the ssh backend. Values are forwarded to the ssh
// client as given.
type SSHOptions struct {
	Hosts []string
	User  string
	// KeyFile is passed as -i.
	KeyFile string
	Port    int
	// Options are passed as -o entries, e.g. "ConnectTimeout=10".
	Options []string
	// RemoteBinary is the lcpipe executable on the hosts. Default "lcpipe".
	RemoteBinary   string
	WorkersPerHost int
}

// backend runs tasks submitted by the Executor.
type backend interface {
	// submit schedules t and returns immediately.
	submit(ctx context.Context, t Task) *outcome
	// shutdown waits for submitted tasks and refuses further ones.
	shutdown()
}

// newBackend builds the backend for mode.
func newBackend(mode string, opts BackendOptions, runner exec.CommandRunner) (backend, error) {
	switch mode {
	case ModeLocal:
		workers := opts.Workers
		if workers <= 0 {
			workers = runtime.NumCPU()
		}
		return newLocalBackend(workers), nil
	case ModeSSH:
		return newSSHBackend(opts.SSH, runner)
	case ModeSlurm:
		return nil, failure.ErrUnsupportedMode
	default:
		return nil, failure.Configf("unknown execution mode %q", mode)
	}
}

// localBackend runs tasks in-process.
type localBackend struct {
	pool *workerPool
}

func newLocalBackend(workers int) *localBackend {
	return &localBackend{pool: newWorkerPool("local", workers)}
}

func (b *localBackend) submit(ctx context.Context, t Task) *outcome {
	return b.pool.submit(ctx, t.Run)
}

func (b *localBackend) shutdown() { b.pool.close() }
