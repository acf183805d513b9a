// Package tui renders the live progress view of a batch run.
package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/eEcoLiDAR/lcMacroPipeline/internal/orchestrator"
	"github.com/eEcoLiDAR/lcMacroPipeline/pkg/models"
)

// maxRecent is the number of finished jobs kept on screen.
const maxRecent = 8

// JobDoneMsg is sent when the result of one job has been collected.
type JobDoneMsg struct {
	Done  int
	Total int
	Name  string
	// Outcome is "ok", "not validated" or the failure kind.
	Outcome string
	Detail  string
}

// JobDone converts an executor result into a JobDoneMsg.
func JobDone(done, total int, r orchestrator.Result) JobDoneMsg {
	msg := JobDoneMsg{Done: done, Total: total, Name: r.Name, Outcome: "ok"}
	switch rec, ok := r.Value.(models.RetileRecord); {
	case !r.OK():
		msg.Outcome = string(r.Kind)
		msg.Detail = r.Err.Error()
	case ok && !rec.Validated:
		msg.Outcome = "not validated"
		msg.Detail = fmt.Sprintf("%d tiles", len(rec.RedistributedTo))
	case ok:
		msg.Detail = fmt.Sprintf("%d tiles", len(rec.RedistributedTo))
	}
	return msg
}

// BatchDoneMsg signals that every job has finished.
type BatchDoneMsg struct{}

// BatchView shows a progress bar and the most recently finished jobs.
type BatchView struct {
	total   int
	mode    string
	done    int
	failed  int
	invalid int
	recent  []JobDoneMsg

	finished bool
	aborted  bool
	width    int

	spinner spinner.Model
	bar     progress.Model

	// Styles
	titleStyle lipgloss.Style
	okStyle    lipgloss.Style
	warnStyle  lipgloss.Style
	failStyle  lipgloss.Style
	dimStyle   lipgloss.Style
}

// NewBatchView creates the view for a batch of total jobs.
func NewBatchView(total int, mode string) *BatchView {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))

	return &BatchView{
		total:   total,
		mode:    mode,
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),

		titleStyle: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")),
		okStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("34")),  // Green
		warnStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")), // Orange
		failStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")), // Red
		dimStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// NewBatchProgram wraps v in a bubbletea program.
func NewBatchProgram(v *BatchView) *tea.Program {
	return tea.NewProgram(v)
}

// Aborted reports whether the user quit before the batch finished.
func (v *BatchView) Aborted() bool { return v.aborted }

// Init implements tea.Model.
func (v *BatchView) Init() tea.Cmd {
	return v.spinner.Tick
}

// Update implements tea.Model.
func (v *BatchView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if !v.finished {
				v.aborted = true
			}
			return v, tea.Quit
		}

	case tea.WindowSizeMsg:
		v.width = msg.Width
		if w := msg.Width - 20; w > 10 && w < 60 {
			v.bar.Width = w
		}

	case JobDoneMsg:
		v.done = msg.Done
		switch msg.Outcome {
		case "ok":
		case "not validated":
			v.invalid++
		default:
			v.failed++
		}
		v.recent = append(v.recent, msg)
		if len(v.recent) > maxRecent {
			v.recent = v.recent[len(v.recent)-maxRecent:]
		}

	case BatchDoneMsg:
		v.finished = true
		return v, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd
	}
	return v, nil
}

// View implements tea.Model.
func (v *BatchView) View() string {
	var sb strings.Builder

	sb.WriteString(v.titleStyle.Render(fmt.Sprintf("Retiling %d inputs (%s backend)", v.total, v.mode)))
	sb.WriteString("\n\n")

	indicator := v.spinner.View()
	if v.finished {
		indicator = v.okStyle.Render("✓")
	}
	fmt.Fprintf(&sb, "%s %s %d/%d\n", indicator, v.bar.ViewAs(v.percent()), v.done, v.total)
	fmt.Fprintf(&sb, "  %s  %s  %s\n\n",
		v.okStyle.Render(fmt.Sprintf("%d ok", v.done-v.failed-v.invalid)),
		v.warnStyle.Render(fmt.Sprintf("%d not validated", v.invalid)),
		v.failStyle.Render(fmt.Sprintf("%d failed", v.failed)),
	)

	for _, j := range v.recent {
		sb.WriteString(v.jobLine(j))
		sb.WriteString("\n")
	}

	if !v.finished {
		sb.WriteString("\n")
		sb.WriteString(v.dimStyle.Render("q: stop waiting and cancel pending jobs"))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (v *BatchView) percent() float64 {
	if v.total == 0 {
		return 1
	}
	return float64(v.done) / float64(v.total)
}

func (v *BatchView) jobLine(j JobDoneMsg) string {
	name := filepath.Base(j.Name)
	var symbol string
	switch j.Outcome {
	case "ok":
		symbol = v.okStyle.Render("✓")
	case "not validated":
		symbol = v.warnStyle.Render("!")
	default:
		symbol = v.failStyle.Render("✗")
	}

	line := fmt.Sprintf("%s %s %s", symbol, name, v.dimStyle.Render(j.Outcome))
	if j.Detail != "" {
		line += v.dimStyle.Render(": " + j.Detail)
	}
	if v.width > 0 {
		line = ansi.Truncate(line, v.width, "...")
	}
	return line
}
