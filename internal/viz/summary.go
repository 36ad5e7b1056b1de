package viz

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/dendrite/internal/storage"
)

const summaryWidth = 60

// Summary renders the headline facts of a run.
func Summary(meta *storage.RunMetadata) string {
	var b strings.Builder
	row := func(label, value string) {
		b.WriteString(MetricLabel.Render(label) + MetricValue.Render(value) + "\n")
	}

	row("status", statusText(meta))
	row("grid", fmt.Sprintf("%dx%d (dx=%g)", meta.Nx, meta.Ny, meta.Dx))
	row("steps", fmt.Sprintf("%d/%d (dt=%g)", meta.StepsTaken, meta.Steps+1, meta.Dt))
	row("snapshots", fmt.Sprintf("%d every %d steps", meta.Snapshots, meta.OutputInterval))
	row("solver", meta.Solver)
	row("seed", fmt.Sprintf("%d", meta.Seed))
	row("elapsed", (time.Duration(meta.ElapsedSeconds * float64(time.Second))).Round(time.Millisecond).String())

	nc := meta.NonConverged
	health := StatusOK.Render("all solves converged")
	if nc.Total() > 0 {
		health = StatusWarn.Render(fmt.Sprintf("%d phase / %d heat solves hit the iteration cap", nc.Phase, nc.Heat))
	}
	b.WriteString(MetricLabel.Render("linear solves") + health + "\n")

	if len(meta.Metrics) > 0 {
		b.WriteString("\n")
		names := make([]string, 0, len(meta.Metrics))
		for name := range meta.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			row(name, fmt.Sprintf("%.6g", meta.Metrics[name]))
		}
	}
	if meta.Error != "" {
		b.WriteString("\n" + StatusFail.Render(meta.Error) + "\n")
	}

	return BoxWithTitle(meta.ID, strings.TrimRight(b.String(), "\n"), summaryWidth)
}

func statusText(meta *storage.RunMetadata) string {
	switch meta.Status {
	case storage.StatusCompleted:
		return StatusOK.Render(meta.Status)
	case storage.StatusFailed:
		return StatusFail.Render(meta.Status)
	default:
		return StatusWarn.Render(meta.Status)
	}
}

// History plots one metric series. A single point is drawn as a flat line.
func History(name string, values []float64, width, height int) string {
	if len(values) == 0 {
		return Subtle.Render(name + ": no samples")
	}
	if len(values) == 1 {
		values = []float64{values[0], values[0]}
	}
	return asciigraph.Plot(values,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(name),
	)
}
