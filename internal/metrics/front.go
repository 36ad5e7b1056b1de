package metrics

import (
	"github.com/san-kum/dendrite/internal/grid"
)

// FrontThreshold is the column-mean phase at which a column counts as solid.
const FrontThreshold = 0.5

// InterfacePosition tracks how far the solid has advanced along X: the
// largest x = i·dx whose column-mean phase reaches FrontThreshold, or 0
// when no column does.
type InterfacePosition struct {
	name  string
	value float64
}

func NewInterfacePosition() *InterfacePosition {
	return &InterfacePosition{name: "interface_position"}
}

func (p *InterfacePosition) Name() string { return p.name }

func (p *InterfacePosition) Observe(step int, f *grid.Fields) {
	g := f.Grid()
	p.value = 0
	for i := g.Nx - 1; i >= 0; i-- {
		var sum float64
		for j := 0; j < g.Ny; j++ {
			sum += f.Phase[g.Index(i, j)]
		}
		if sum/float64(g.Ny) >= FrontThreshold {
			p.value = g.X(i)
			return
		}
	}
}

func (p *InterfacePosition) Value() float64 { return p.value }

func (p *InterfacePosition) Reset() { p.value = 0 }
