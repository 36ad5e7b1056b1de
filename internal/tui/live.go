// Package tui is the live terminal view shown while a run is in progress.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"gonum.org/v1/gonum/floats"

	"github.com/san-kum/dendrite/internal/grid"
	"github.com/san-kum/dendrite/internal/metrics"
	"github.com/san-kum/dendrite/internal/sim"
	"github.com/san-kum/dendrite/internal/viz"
)

const (
	canvasCols   = 60
	canvasRows   = 15
	sparkWidth   = 50
	historyLimit = 200
	barWidth     = 40
)

// StepMsg carries one step's outcome to the model. Phase is a copy of the
// phase field, set only on frames that redraw the field.
type StepMsg struct {
	Report        sim.StepReport
	SolidFraction float64
	Grid          grid.Grid
	Phase         []float64
}

// DoneMsg ends the view once the run has returned.
type DoneMsg struct {
	Err error
}

// Model renders run progress. Quitting cancels the run through cancel.
type Model struct {
	title  string
	steps  int
	cancel context.CancelFunc

	last      sim.StepReport
	seen      bool
	solid     []float64
	canvas    *viz.Canvas
	warnings  int
	snapshots int
	started   time.Time

	done bool
	err  error
}

// NewModel builds a view for a run of steps+1 steps.
func NewModel(title string, steps int, cancel context.CancelFunc) Model {
	return Model{
		title:   title,
		steps:   steps,
		cancel:  cancel,
		canvas:  viz.NewCanvas(canvasCols, canvasRows),
		started: time.Now(),
	}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}

	case StepMsg:
		m.last = msg.Report
		m.seen = true
		m.solid = append(m.solid, msg.SolidFraction)
		if len(m.solid) > historyLimit {
			m.solid = m.solid[len(m.solid)-historyLimit:]
		}
		if !msg.Report.Phase.Converged || !msg.Report.Heat.Converged {
			m.warnings++
		}
		if msg.Report.Snapshot {
			m.snapshots++
		}
		if msg.Phase != nil {
			m.canvas = viz.FieldCanvas(msg.Grid, msg.Phase, metrics.FrontThreshold, canvasCols, canvasRows)
		}

	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(viz.TitleStyle.Render(m.title) + "\n\n")

	progress := 0.0
	if m.seen {
		progress = float64(m.last.Step+1) / float64(m.steps+1)
	}
	b.WriteString(viz.ProgressBar(progress, barWidth))
	b.WriteString(fmt.Sprintf(" %5.1f%%\n", progress*100))

	b.WriteString(m.canvas.String())
	b.WriteString(viz.Separator(canvasCols) + "\n")

	row := func(label, value string) {
		b.WriteString(viz.MetricLabel.Render(label) + viz.MetricValue.Render(value) + "\n")
	}
	row("step", fmt.Sprintf("%d/%d", m.last.Step, m.steps))
	row("time", fmt.Sprintf("%.5f", m.last.Time))
	row("snapshots", fmt.Sprintf("%d", m.snapshots))
	row("phase solve", solveText(m.last.Phase))
	row("heat solve", solveText(m.last.Heat))
	if m.warnings > 0 {
		b.WriteString(viz.MetricLabel.Render("warnings") +
			viz.StatusWarn.Render(fmt.Sprintf("%d steps with unconverged solves", m.warnings)) + "\n")
	}
	b.WriteString(viz.MetricLabel.Render("solid fraction") + viz.SparklineChart(m.solid, sparkWidth) + "\n")
	b.WriteString(fmt.Sprintf("%s%s\n", viz.MetricLabel.Render("elapsed"),
		time.Since(m.started).Round(time.Millisecond)))

	switch {
	case m.err != nil:
		b.WriteString("\n" + viz.StatusFail.Render(m.err.Error()) + "\n")
	case m.done:
		b.WriteString("\n" + viz.StatusOK.Render("done") + "\n")
	default:
		b.WriteString("\n" + viz.KeyHint.Render("q: stop run") + "\n")
	}
	return b.String()
}

func solveText(s sim.SolveStats) string {
	text := fmt.Sprintf("%d it, r=%.2e", s.Iterations, s.Residual)
	if !s.Converged {
		text += " (not converged)"
	}
	return text
}

// Observer forwards step reports into a running program. Non-snapshot steps
// are dropped when they arrive faster than frameRate.
type Observer struct {
	send      func(tea.Msg)
	frameRate int
	lastFrame time.Time
}

var _ sim.Observer = (*Observer)(nil)

// NewObserver forwards to send, typically (*tea.Program).Send.
func NewObserver(send func(tea.Msg), frameRate int) *Observer {
	if frameRate <= 0 {
		frameRate = 30
	}
	return &Observer{send: send, frameRate: frameRate}
}

func (o *Observer) OnStep(r sim.StepReport, f *grid.Fields) {
	if !r.Snapshot && time.Since(o.lastFrame) < time.Second/time.Duration(o.frameRate) {
		return
	}
	o.lastFrame = time.Now()

	g := f.Grid()
	phase := make([]float64, len(f.Phase))
	copy(phase, f.Phase)
	o.send(StepMsg{
		Report:        r,
		SolidFraction: floats.Sum(f.Phase) / float64(g.Size()),
		Grid:          g,
		Phase:         phase,
	})
}
