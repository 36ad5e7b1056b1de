package snapshot

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/san-kum/dendrite/internal/grid"
	"github.com/san-kum/dendrite/internal/sim"
)

// paletteSize is the number of colour steps in each heat map.
const paletteSize = 64

// Renderer writes a false-colour PNG of both fields for every snapshot.
type Renderer struct {
	dir    string
	width  vg.Length
	height vg.Length
}

// NewRenderer creates dir if needed.
func NewRenderer(dir string) (*Renderer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("snapshot: image dir: %w", err)
	}
	return &Renderer{dir: dir, width: 12 * vg.Inch, height: 5 * vg.Inch}, nil
}

// Path is the image file for step.
func (r *Renderer) Path(step int) string {
	return filepath.Join(r.dir, fmt.Sprintf("step_%05d.png", step))
}

func (r *Renderer) WriteSnapshot(s sim.Snapshot) error {
	n := s.Grid.Size()
	if len(s.Phase) != n || len(s.Temp) != n {
		return fmt.Errorf("%w: cannot render step %d", grid.ErrShapeMismatch, s.Step)
	}

	phaseMap := moreland.Kindlmann()
	phaseMap.SetMin(0)
	phaseMap.SetMax(1)
	panels := [][]*plot.Plot{{
		fieldPlot(fmt.Sprintf("phase, t = %.4g", s.Time), s.Grid, s.Phase, phaseMap.Palette(paletteSize)),
		fieldPlot(fmt.Sprintf("temperature, t = %.4g", s.Time), s.Grid, s.Temp, palette.Heat(paletteSize, 1)),
	}}

	img := vgimg.New(r.width, r.height)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      1,
		Cols:      2,
		PadX:      vg.Millimeter * 4,
		PadY:      vg.Millimeter * 4,
		PadTop:    vg.Millimeter * 2,
		PadBottom: vg.Millimeter * 2,
		PadLeft:   vg.Millimeter * 2,
		PadRight:  vg.Millimeter * 2,
	}
	canvases := plot.Align(panels, tiles, dc)
	for j, p := range panels[0] {
		p.Draw(canvases[0][j])
	}

	f, err := os.Create(r.Path(s.Step))
	if err != nil {
		return fmt.Errorf("snapshot: create image: %w", err)
	}
	if err := writeImage(f, img); err != nil {
		return fmt.Errorf("snapshot: image for step %d: %w", s.Step, err)
	}
	return nil
}

// writeImage encodes img as PNG into w and closes it. A failed close is
// reported since it can mean the file was not fully written.
func writeImage(w io.WriteCloser, img *vgimg.Canvas) error {
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(w); err != nil {
		w.Close()
		return fmt.Errorf("write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

func fieldPlot(title string, g grid.Grid, data []float64, pal palette.Palette) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"
	p.BackgroundColor = color.White

	hm := plotter.NewHeatMap(fieldGrid{g: g, data: data}, pal)
	if hm.Min == hm.Max {
		hm.Min -= 0.5
		hm.Max += 0.5
	}
	p.Add(hm)
	return p
}

// fieldGrid adapts a row-major field to plotter.GridXYZ with columns along
// X (index i) and rows along Y (index j).
type fieldGrid struct {
	g    grid.Grid
	data []float64
}

func (f fieldGrid) Dims() (c, r int)   { return f.g.Nx, f.g.Ny }
func (f fieldGrid) Z(c, r int) float64 { return f.data[f.g.Index(c, r)] }
func (f fieldGrid) X(c int) float64    { return f.g.X(c) }
func (f fieldGrid) Y(r int) float64    { return f.g.Y(r) }
