package utils

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"github.com/james-bowman/sparse/blas"
	"gonum.org/v1/gonum/mat"
)

type SparseFormat uint8

const (
	COOFormat SparseFormat = iota
	CSRFormat
)

func (sf SparseFormat) String() string {
	switch sf {
	case COOFormat:
		return "coo"
	case CSRFormat:
		return "csr"
	}
	return fmt.Sprintf("SparseFormat(%d)", uint8(sf))
}

func NewSparseFormat(label string) (sf SparseFormat, err error) {
	switch label {
	case "coo", "COO":
		return COOFormat, nil
	case "csr", "CSR", "":
		return CSRFormat, nil
	}
	err = fmt.Errorf("unknown sparse format %q", label)
	return
}

// SparseMatrix is what assembly hands back, either layout.
type SparseMatrix interface {
	mat.Matrix
	NNZ() int
	ToCSR() CSR
	DoNonZero(fn func(i, j int, v float64))
}

/*
Triplets is the scatter-add accumulator used during assembly. It keeps a sparse.DOK, so adding to
a coordinate that already holds an entry sums into it and the stored coordinates are unique.
*/
type Triplets struct {
	nr, nc int
	dok    *sparse.DOK
}

func NewTriplets(nr, nc int) (T *Triplets) {
	T = &Triplets{
		nr:  nr,
		nc:  nc,
		dok: sparse.NewDOK(nr, nc),
	}
	return
}

func (T *Triplets) Dims() (r, c int) { return T.nr, T.nc }
func (T *Triplets) Len() int         { return T.dok.NNZ() }

func (T *Triplets) Add(i, j int, v float64) {
	if i < 0 || i >= T.nr || j < 0 || j >= T.nc {
		panic(fmt.Errorf("entry (%d,%d) outside of a %dx%d matrix", i, j, T.nr, T.nc))
	}
	T.dok.Set(i, j, T.dok.At(i, j)+v)
}

// AddBlock scatters a dense local matrix through row and column maps, offset into a block.
func (T *Triplets) AddBlock(rowMap, colMap []int, rowOff, colOff int, local []float64) {
	nc := len(colMap)
	for a, I := range rowMap {
		for b, J := range colMap {
			T.Add(rowOff+I, colOff+J, local[a*nc+b])
		}
	}
}

func (T *Triplets) ToCOO() COO { return COO{M: T.dok.ToCOO()} }
func (T *Triplets) ToCSR() CSR { return wrapCSR(T.dok.ToCSR()) }

type COO struct {
	M *sparse.COO
}

func NewCOO(nr, nc int, rows, cols []int, vals []float64) (R COO) {
	R = COO{M: sparse.NewCOO(nr, nc, rows, cols, vals)}
	return
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m COO) Dims() (r, c int)    { return m.M.Dims() }
func (m COO) At(i, j int) float64 { return m.M.At(i, j) }
func (m COO) T() mat.Matrix       { return m.M.T() }
func (m COO) NNZ() int            { return m.M.NNZ() }

func (m COO) DoNonZero(fn func(i, j int, v float64)) { m.M.DoNonZero(fn) }

// ToCSR sums any repeated coordinates.
func (m COO) ToCSR() CSR {
	T := NewTriplets(m.Dims())
	m.M.DoNonZero(T.Add)
	return T.ToCSR()
}

/*
CSR wraps a sparse.CSR with a read only guard. The compressed arrays live in M.RawMatrix(); column
indices within a row are not sorted.
*/
type CSR struct {
	M        *sparse.CSR
	readOnly bool
	name     string
}

func NewCSR(nr, nc int, indptr, ind []int, data []float64) (R CSR) {
	if len(indptr) != nr+1 || len(ind) != len(data) {
		panic(fmt.Errorf("inconsistent CSR arrays: nr = %d, len(indptr) = %d, len(ind) = %d, len(data) = %d",
			nr, len(indptr), len(ind), len(data)))
	}
	return wrapCSR(sparse.NewCSR(nr, nc, indptr, ind, data))
}

func wrapCSR(M *sparse.CSR) CSR {
	return CSR{
		M:    M,
		name: "unnamed - hint: pass a variable name to SetReadOnly()",
	}
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m CSR) Dims() (r, c int)    { return m.M.Dims() }
func (m CSR) At(i, j int) float64 { return m.M.At(i, j) }
func (m CSR) T() mat.Matrix       { return m.M.T() }
func (m CSR) NNZ() int            { return m.M.NNZ() }
func (m CSR) ToCSR() CSR          { return m }

func (m CSR) RawMatrix() *blas.SparseMatrix { return m.M.RawMatrix() }

func (m CSR) DoNonZero(fn func(i, j int, v float64)) { m.M.DoNonZero(fn) }

// find returns the storage position of (i,j), or -1 when it is not in the pattern.
func (m CSR) find(i, j int) int {
	raw := m.M.RawMatrix()
	for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
		if raw.Ind[k] == j {
			return k
		}
	}
	return -1
}

// Set overwrites an entry already in the pattern.
func (m CSR) Set(i, j int, v float64) (err error) {
	m.checkWritable()
	k := m.find(i, j)
	if k < 0 {
		err = fmt.Errorf("entry (%d,%d) is not in the sparsity pattern of %q", i, j, m.name)
		return
	}
	m.M.RawMatrix().Data[k] = v
	return
}

func (m CSR) Copy() (R CSR) {
	var (
		nr, nc = m.Dims()
		raw    = m.M.RawMatrix()
	)
	R = NewCSR(nr, nc,
		append([]int{}, raw.Indptr...),
		append([]int{}, raw.Ind...),
		append([]float64{}, raw.Data...))
	return
}

func (m CSR) Transpose() CSR {
	return wrapCSR(m.M.T().(*sparse.CSC).ToCSR())
}

func (m CSR) MulVec(x []float64) (y []float64) {
	nr, _ := m.Dims()
	y = make([]float64, nr)
	m.M.MulVecTo(y, false, x)
	return
}

func (m CSR) ToDense() *mat.Dense { return m.M.ToDense() }

func (m CSR) Diagonal() (d []float64) {
	nr, _ := m.Dims()
	d = make([]float64, nr)
	for i := range d {
		d[i] = m.M.At(i, i)
	}
	return
}

func (m *CSR) SetReadOnly(name ...string) {
	if len(name) != 0 {
		m.name = name[0]
	}
	m.readOnly = true
}

func (m *CSR) SetWritable() {
	m.readOnly = false
}

func (m CSR) IsReadOnly() bool { return m.readOnly }

func (m CSR) checkWritable() {
	if m.readOnly {
		err := fmt.Errorf("attempt to write to a read only matrix named: \"%v\"", m.name)
		panic(err)
	}
}

// CheckWritable is the exported form used by in-place operations in other packages.
func (m CSR) CheckWritable() { m.checkWritable() }
