package viz

import (
	"strings"

	"github.com/san-kum/dendrite/internal/grid"
)

// Braille Patterns: 2x4 dots
// 1 4
// 2 5
// 3 6
// 7 8
//
// Unicode offset 0x2800
var pixelMap = [4][2]int{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const brailleBlank = 0x2800

// Canvas is a character grid where each cell holds 2x4 Braille dots.
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{
		Width:  w,
		Height: h,
		Grid:   make([][]rune, h),
	}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

// Set lights the dot at sub-pixel (x, y). The canvas is Width*2 by
// Height*4 dots.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= rune(pixelMap[y%4][x%2])
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = brailleBlank
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

// FieldCanvas draws every cell whose phase reaches threshold, with X to the
// right and Y upwards, scaled to fit a canvas of cols by rows characters.
func FieldCanvas(g grid.Grid, phase []float64, threshold float64, cols, rows int) *Canvas {
	c := NewCanvas(cols, rows)
	if len(phase) != g.Size() {
		return c
	}
	dotsX, dotsY := cols*2, rows*4
	for x := 0; x < dotsX; x++ {
		i := x * g.Nx / dotsX
		for y := 0; y < dotsY; y++ {
			j := (dotsY - 1 - y) * g.Ny / dotsY
			if phase[g.Index(i, j)] >= threshold {
				c.Set(x, y)
			}
		}
	}
	return c
}
