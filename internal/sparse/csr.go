// Package sparse holds the compressed-row operators handed to the linear
// solvers. Operators are assembled as triplets and finalized once into CSR.
package sparse

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Triplets accumulates (row, col, value) entries of a square matrix.
type Triplets struct {
	n    int
	rows []int
	cols []int
	vals []float64
}

// NewTriplets starts an order-n matrix with room for capHint entries.
func NewTriplets(n, capHint int) *Triplets {
	return &Triplets{
		n:    n,
		rows: make([]int, 0, capHint),
		cols: make([]int, 0, capHint),
		vals: make([]float64, 0, capHint),
	}
}

// Add records A[i][j] += v. Indices outside [0, n) panic.
func (t *Triplets) Add(i, j int, v float64) {
	if i < 0 || i >= t.n || j < 0 || j >= t.n {
		panic(fmt.Sprintf("sparse: entry (%d,%d) outside order %d", i, j, t.n))
	}
	t.rows = append(t.rows, i)
	t.cols = append(t.cols, j)
	t.vals = append(t.vals, v)
}

func (t *Triplets) Len() int { return len(t.vals) }

// ToCSR finalizes the triplets. Duplicate coordinates are summed and
// columns are sorted within each row.
func (t *Triplets) ToCSR() *CSR {
	rowPtr := make([]int, t.n+1)
	for _, r := range t.rows {
		rowPtr[r+1]++
	}
	for i := 0; i < t.n; i++ {
		rowPtr[i+1] += rowPtr[i]
	}

	cols := make([]int, len(t.vals))
	vals := make([]float64, len(t.vals))
	next := make([]int, t.n)
	copy(next, rowPtr[:t.n])
	for k, r := range t.rows {
		pos := next[r]
		cols[pos] = t.cols[k]
		vals[pos] = t.vals[k]
		next[r]++
	}

	m := &CSR{n: t.n, RowPtr: make([]int, t.n+1)}
	m.ColIdx = make([]int, 0, len(cols))
	m.Val = make([]float64, 0, len(vals))
	for i := 0; i < t.n; i++ {
		start, end := rowPtr[i], rowPtr[i+1]
		row := entries{cols: cols[start:end], vals: vals[start:end]}
		sort.Stable(row)
		for k := start; k < end; k++ {
			last := len(m.ColIdx) - 1
			if last >= m.RowPtr[i] && m.ColIdx[last] == cols[k] {
				m.Val[last] += vals[k]
				continue
			}
			m.ColIdx = append(m.ColIdx, cols[k])
			m.Val = append(m.Val, vals[k])
		}
		m.RowPtr[i+1] = len(m.ColIdx)
	}
	return m
}

type entries struct {
	cols []int
	vals []float64
}

func (e entries) Len() int           { return len(e.cols) }
func (e entries) Less(a, b int) bool { return e.cols[a] < e.cols[b] }
func (e entries) Swap(a, b int) {
	e.cols[a], e.cols[b] = e.cols[b], e.cols[a]
	e.vals[a], e.vals[b] = e.vals[b], e.vals[a]
}

// CSR is a square matrix in compressed sparse row form. It satisfies
// mat.Matrix so gonum routines can read it directly.
type CSR struct {
	n      int
	RowPtr []int
	ColIdx []int
	Val    []float64
}

var _ mat.Matrix = (*CSR)(nil)

func (m *CSR) Order() int { return m.n }
func (m *CSR) NNZ() int   { return len(m.Val) }

func (m *CSR) RowNNZ(i int) int { return m.RowPtr[i+1] - m.RowPtr[i] }

// Row returns the column indices and values stored for row i. The slices
// alias the matrix storage.
func (m *CSR) Row(i int) ([]int, []float64) {
	start, end := m.RowPtr[i], m.RowPtr[i+1]
	return m.ColIdx[start:end], m.Val[start:end]
}

func (m *CSR) Dims() (r, c int) { return m.n, m.n }

func (m *CSR) At(i, j int) float64 {
	if i < 0 || i >= m.n || j < 0 || j >= m.n {
		panic(mat.ErrIndexOutOfRange)
	}
	cols, vals := m.Row(i)
	k := sort.SearchInts(cols, j)
	if k < len(cols) && cols[k] == j {
		return vals[k]
	}
	return 0
}

func (m *CSR) T() mat.Matrix { return mat.Transpose{Matrix: m} }

// MulVec computes dst = A·x.
func (m *CSR) MulVec(dst, x []float64) {
	for i := 0; i < m.n; i++ {
		var sum float64
		for k := m.RowPtr[i]; k < m.RowPtr[i+1]; k++ {
			sum += m.Val[k] * x[m.ColIdx[k]]
		}
		dst[i] = sum
	}
}

// Diagonal writes A[i][i] into dst.
func (m *CSR) Diagonal(dst []float64) {
	for i := 0; i < m.n; i++ {
		dst[i] = m.At(i, i)
	}
}

func (m *CSR) RowSum(i int) float64 {
	_, vals := m.Row(i)
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum
}

// IsSymmetric reports whether |A[i][j] - A[j][i]| <= tol for every stored
// entry.
func (m *CSR) IsSymmetric(tol float64) bool {
	for i := 0; i < m.n; i++ {
		cols, vals := m.Row(i)
		for k, j := range cols {
			if math.Abs(vals[k]-m.At(j, i)) > tol {
				return false
			}
		}
	}
	return true
}

// MaxRowNNZ is the widest row, used to check stencil bandwidth.
func (m *CSR) MaxRowNNZ() int {
	widest := 0
	for i := 0; i < m.n; i++ {
		if w := m.RowNNZ(i); w > widest {
			widest = w
		}
	}
	return widest
}
