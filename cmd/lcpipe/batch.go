package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/eEcoLiDAR/lcMacroPipeline/internal/config"
	"github.com/eEcoLiDAR/lcMacroPipeline/internal/exec"
	"github.com/eEcoLiDAR/lcMacroPipeline/internal/orchestrator"
	"github.com/eEcoLiDAR/lcMacroPipeline/internal/pointcloud"
	"github.com/eEcoLiDAR/lcMacroPipeline/internal/retile"
	"github.com/eEcoLiDAR/lcMacroPipeline/internal/state"
	"github.com/eEcoLiDAR/lcMacroPipeline/internal/tui"
	"github.com/eEcoLiDAR/lcMacroPipeline/pkg/models"
)

var (
	batchMode      string
	batchWorkers   int
	batchNoHistory bool
	batchProgress  bool
	batchStopFile  string
)

var batchCmd = &cobra.Command{
	Use:   "batch <manifest>",
	Short: "Retile every input of a manifest",
	Long: `Run one retiling job per input listed in a YAML manifest.

Jobs are independent: a failing job is reported and the others carry on.
The backend (local worker pool or ssh hosts) comes from the configuration
and can be overridden with --mode. Outcomes are stored in the run history
shown by 'lcpipe status'.

Example manifest:
  output_folder: retiled
  grid:
    min_x: -113107.81
    min_y: 214783.87
    max_x: 398892.19
    max_y: 726783.87
    n_tiles_side: 256
  inputs:
    - raw/*.LAZ`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVar(&batchMode, "mode", "", "Execution backend: local, ssh or slurm (default from config)")
	batchCmd.Flags().IntVarP(&batchWorkers, "workers", "w", 0, "Concurrent local jobs (default from config, 0 = number of CPUs)")
	batchCmd.Flags().BoolVar(&batchNoHistory, "no-history", false, "Do not store the run in the history database")
	batchCmd.Flags().BoolVar(&batchProgress, "progress", false, "Show a live progress view while jobs run")
	batchCmd.Flags().StringVar(&batchStopFile, "stop-file", "", "Cancel pending jobs when this file is created")
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("mode") {
		cfg.Backend.Mode = batchMode
	}
	if cmd.Flags().Changed("workers") {
		cfg.Backend.Workers = batchWorkers
	}

	manifest, err := retile.LoadManifest(args[0])
	if err != nil {
		return err
	}
	runner := exec.NewRunner()
	retilers, err := manifest.Retilers(
		pointcloud.NewPDALSplitter(runner, cfg.Splitter.PDALBinary),
		pointcloud.NewLASReader(),
	)
	if err != nil {
		return err
	}

	opts := []orchestrator.Option{orchestrator.WithCommandRunner(runner)}
	if cfg.Log.DebugFile != "" {
		logger, err := orchestrator.NewDebugLogger(cfg.Log.DebugFile)
		if err != nil {
			return err
		}
		defer logger.Close()
		opts = append(opts, orchestrator.WithDebugLogger(logger))
	}

	var view *tui.BatchView
	var program *tea.Program
	if batchProgress {
		view = tui.NewBatchView(len(retilers), cfg.Backend.Mode)
		program = tui.NewBatchProgram(view)
		opts = append(opts, orchestrator.WithProgress(func(done, total int, r orchestrator.Result) {
			program.Send(tui.JobDone(done, total, r))
		}))
	}

	executor := orchestrator.NewExecutor(opts...)
	for _, r := range retilers {
		executor.AddTask(r)
	}
	if err := executor.SetupClient(cfg.Backend.Mode, backendOptions(cfg)); err != nil {
		return err
	}

	var db *state.DB
	run := &state.Run{
		Manifest: absPath(args[0]),
		Mode:     executor.Mode(),
		Total:    len(retilers),
	}
	if !batchNoHistory {
		db = openHistory(cfg.State.DBPath, run)
		if db != nil {
			defer db.Close()
		}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	if batchStopFile != "" {
		var stop func()
		ctx, stop, err = orchestrator.WatchStopFile(ctx, batchStopFile)
		if err != nil {
			return err
		}
		defer stop()
	}

	var results []orchestrator.Result
	if program != nil {
		results, err = runWithProgress(ctx, cancel, executor, program, view)
		if err != nil {
			return err
		}
	} else {
		fmt.Printf("Retiling %d inputs (%s backend)\n", len(retilers), executor.Mode())
		results = executor.Run(ctx)
	}

	invalid := 0
	for _, res := range results {
		rec, ok := res.Value.(models.RetileRecord)
		switch {
		case !res.OK():
			printStatus("✗", fmt.Sprintf("%s: %s: %v", res.Name, res.Kind, res.Err), color.FgRed)
		case ok:
			printRecord(rec)
			if !rec.Validated {
				invalid++
			}
		default:
			printStatus("✓", res.String(), color.FgGreen)
		}
		if db != nil {
			saveResult(db, run.ID, res)
		}
	}

	sum := orchestrator.Summarize(results)
	if db != nil {
		run.Succeeded = sum.Succeeded
		run.Failed = sum.Failed
		run.Status = state.RunCompleted
		if sum.Failed > 0 || invalid > 0 {
			run.Status = state.RunFailed
		}
		if err := db.FinishRun(run); err != nil {
			log.Printf("[state] %v", err)
		}
	}

	fmt.Printf("\n%d jobs: %d succeeded, %d failed, %d not validated\n", sum.Total, sum.Succeeded, sum.Failed, invalid)
	if db != nil {
		fmt.Printf("Run %s stored in %s\n", run.ID, db.Path())
	}

	if sum.Failed > 0 || invalid > 0 {
		return fmt.Errorf("batch finished with %d failed and %d unvalidated jobs", sum.Failed, invalid)
	}
	return nil
}

// runWithProgress runs the executor in the background while the progress
// view owns the terminal. Quitting the view cancels pending jobs; Run still
// returns a result for each of them.
func runWithProgress(ctx context.Context, cancel context.CancelFunc, executor *orchestrator.Executor, program *tea.Program, view *tui.BatchView) ([]orchestrator.Result, error) {
	finished := make(chan []orchestrator.Result, 1)
	go func() {
		results := executor.Run(ctx)
		finished <- results
		program.Send(tui.BatchDoneMsg{})
	}()

	if _, err := program.Run(); err != nil {
		cancel()
		<-finished
		return nil, fmt.Errorf("progress view: %w", err)
	}
	if view.Aborted() {
		log.Printf("[batch] progress view closed, canceling pending jobs")
		cancel()
	}
	return <-finished, nil
}

// backendOptions maps the configuration onto executor backend options.
func backendOptions(cfg *config.Config) orchestrator.BackendOptions {
	s := cfg.Backend.SSH
	return orchestrator.BackendOptions{
		Workers: cfg.Backend.Workers,
		SSH: orchestrator.SSHOptions{
			Hosts:          s.Hosts,
			User:           s.User,
			KeyFile:        s.KeyFile,
			Port:           s.Port,
			Options:        s.Options,
			RemoteBinary:   s.RemoteBinary,
			WorkersPerHost: s.WorkersPerHost,
		},
	}
}

// openHistory opens the run history and registers run. History is best
// effort: on failure the batch proceeds without it.
func openHistory(path string, run *state.Run) *state.DB {
	db, err := state.Open(path)
	if err != nil {
		log.Printf("[state] run history disabled: %v", err)
		return nil
	}
	if err := db.Migrate(); err != nil {
		log.Printf("[state] run history disabled: %v", err)
		db.Close()
		return nil
	}
	if err := db.CreateRun(run); err != nil {
		log.Printf("[state] run history disabled: %v", err)
		db.Close()
		return nil
	}
	return db
}

func saveResult(db *state.DB, runID string, res orchestrator.Result) {
	tr := &state.TaskResult{
		ID:       res.TaskID,
		RunID:    runID,
		Index:    res.Index,
		Name:     res.Name,
		Duration: res.Duration,
	}
	if !res.OK() {
		tr.Kind = string(res.Kind)
		tr.Error = res.Err.Error()
	}
	if err := db.RecordTaskResult(tr); err != nil {
		log.Printf("[state] %v", err)
		return
	}
	if rec, ok := res.Value.(models.RetileRecord); ok {
		if err := db.SaveRetileRecord(runID, res.TaskID, rec); err != nil {
			log.Printf("[state] %v", err)
		}
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
