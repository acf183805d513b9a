package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/eEcoLiDAR/lcMacroPipeline/internal/state"
)

var (
	statusLimit int
	statusPurge time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status [run-id]",
	Short: "Show batch run history",
	Long: `Display recent batch runs, or the jobs of one run.

Shows:
  - Run mode, job counts and duration
  - Per-job outcome and failure kind
  - Cells each validated input was redistributed to`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 10, "Number of runs to list")
	statusCmd.Flags().DurationVar(&statusPurge, "purge", 0, "Delete runs started longer ago than this (e.g. 720h)")
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	okStyle     = cellStyle.Foreground(lipgloss.Color("34"))  // Green
	warnStyle   = cellStyle.Foreground(lipgloss.Color("214")) // Orange
	failStyle   = cellStyle.Foreground(lipgloss.Color("196")) // Red
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfg.State.DBPath); os.IsNotExist(err) {
		fmt.Println("No runs recorded. Run 'lcpipe batch <manifest>' to start.")
		return nil
	}

	db, err := state.Open(cfg.State.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	if statusPurge > 0 {
		n, err := db.PurgeOldRuns(statusPurge)
		if err != nil {
			return err
		}
		fmt.Printf("Purged %d runs older than %s\n", n, statusPurge)
	}

	if len(args) == 1 {
		return showRun(db, args[0])
	}

	runs, err := db.ListRuns(statusLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}
	fmt.Println(runsTable(runs, time.Now()))
	return nil
}

func showRun(db *state.DB, id string) error {
	run, err := db.GetRun(id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s not found", id)
	}
	results, err := db.ListTaskResults(id)
	if err != nil {
		return err
	}
	records, err := db.ListRetileRecords(id)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s (%s, %s)\n", run.ID, run.Mode, run.Status)
	fmt.Printf("Manifest: %s\n", run.Manifest)
	fmt.Printf("Started:  %s\n", run.StartedAt.Local().Format(time.DateTime))
	fmt.Println(tasksTable(results, records))
	return nil
}

// runsTable renders the run list.
func runsTable(runs []state.Run, now time.Time) string {
	rows := make([][]string, len(runs))
	for i, r := range runs {
		end := now
		if r.FinishedAt != nil {
			end = *r.FinishedAt
		}
		rows[i] = []string{
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Mode,
			strconv.Itoa(r.Total),
			strconv.Itoa(r.Succeeded),
			strconv.Itoa(r.Failed),
			string(r.Status),
			formatDuration(end.Sub(r.StartedAt)),
		}
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("RUN", "STARTED", "MODE", "JOBS", "OK", "FAILED", "STATUS", "DURATION").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 6 {
				return statusStyle(runs[row].Status)
			}
			return cellStyle
		}).
		String()
}

func statusStyle(s state.RunStatus) lipgloss.Style {
	switch s {
	case state.RunCompleted:
		return okStyle
	case state.RunFailed:
		return failStyle
	default:
		return warnStyle
	}
}

// tasksTable renders the jobs of one run with their validation outcome.
func tasksTable(results []state.TaskResult, records []state.StoredRecord) string {
	byTask := make(map[string]state.StoredRecord, len(records))
	for _, r := range records {
		byTask[r.TaskID] = r
	}

	rows := make([][]string, len(results))
	outcome := make([]string, len(results))
	for i, tr := range results {
		result, cells := "ok", ""
		switch rec, ok := byTask[tr.ID]; {
		case !tr.OK():
			result = tr.Kind
			cells = tr.Error
		case ok:
			if !rec.Validated {
				result = "not validated"
			}
			cells = strconv.Itoa(countCells(rec.RetileRecord))
		}
		outcome[i] = result
		rows[i] = []string{strconv.Itoa(tr.Index), tr.Name, result, formatDuration(tr.Duration), cells}
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("#", "INPUT", "RESULT", "DURATION", "CELLS / ERROR").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 2 {
				switch outcome[row] {
				case "ok":
					return okStyle
				case "not validated":
					return warnStyle
				default:
					return failStyle
				}
			}
			return cellStyle
		}).
		String()
}
