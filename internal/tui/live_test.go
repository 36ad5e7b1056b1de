package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/dendrite/internal/grid"
	"github.com/san-kum/dendrite/internal/sim"
)

func TestObserverThrottlesNonSnapshotSteps(t *testing.T) {
	var msgs []tea.Msg
	obs := NewObserver(func(m tea.Msg) { msgs = append(msgs, m) }, 1)

	g := grid.Grid{Nx: 4, Ny: 4, Dx: 1}
	f := grid.Initialize(g, 0.5, 0)

	obs.OnStep(sim.StepReport{Step: 0}, f)
	obs.OnStep(sim.StepReport{Step: 1}, f)
	obs.OnStep(sim.StepReport{Step: 2, Snapshot: true}, f)

	require.Len(t, msgs, 2)
	first := msgs[0].(StepMsg)
	assert.Equal(t, 0, first.Report.Step)
	assert.InDelta(t, 0.5, first.SolidFraction, 1e-12)
	assert.Equal(t, 2, msgs[1].(StepMsg).Report.Step)

	f.Phase[0] = 0.25
	assert.Equal(t, 1.0, first.Phase[0], "forwarded phase must be a copy")
}

func TestModelUpdate(t *testing.T) {
	g := grid.Grid{Nx: 4, Ny: 4, Dx: 1}
	f := grid.Initialize(g, 0.5, 0)

	m := NewModel("run_x", 4, nil)
	next, cmd := m.Update(StepMsg{
		Report: sim.StepReport{
			Step:     2,
			Snapshot: true,
			Phase:    sim.SolveStats{Iterations: 3, Converged: true},
			Heat:     sim.SolveStats{Iterations: 10000, Converged: false},
		},
		SolidFraction: 0.5,
		Grid:          g,
		Phase:         f.Phase,
	})
	assert.Nil(t, cmd)
	m = next.(Model)

	assert.Equal(t, 1, m.warnings)
	assert.Equal(t, 1, m.snapshots)
	view := m.View()
	assert.Contains(t, view, "2/4")
	assert.Contains(t, view, "not converged")
	assert.Contains(t, view, "q: stop run")

	next, cmd = m.Update(DoneMsg{Err: errors.New("boom")})
	require.NotNil(t, cmd)
	assert.Contains(t, next.(Model).View(), "boom")
}

func TestModelQuitCancelsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := NewModel("run_x", 10, cancel)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.True(t, strings.Contains(m.View(), "0/10"))
}
