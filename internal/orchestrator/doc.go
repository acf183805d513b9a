// Package orchestrator fans independent tasks out to an execution backend
// and gathers one result per task.
//
// An Executor holds an ordered list of tasks and a backend chosen with
// SetupClient:
//   - local: an in-process worker pool bounded by a weighted semaphore
//   - ssh: tasks re-run as lcpipe invocations on remote hosts, round-robin
//   - slurm: recognised but not supported
//
// Every task runs behind an isolating adapter, so a task that returns an
// error or panics becomes a failed Result instead of aborting the batch.
//
// Example usage:
//
//	ex := orchestrator.NewExecutor()
//	for _, r := range retilers {
//		ex.AddTask(r)
//	}
//	if err := ex.SetupClient(orchestrator.ModeLocal, orchestrator.BackendOptions{Workers: 4}); err != nil {
//		return err
//	}
//	results := ex.Run(ctx)
package orchestrator
