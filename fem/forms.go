package fem

import (
	"fmt"

	"github.com/notargets/gofea/space"
	"github.com/notargets/gofea/types"
	"github.com/notargets/gofea/utils"
)

// Form is a matrix block that can scatter itself into a larger system.
type Form interface {
	Shape() (rows, cols int)
	AssembleInto(T *utils.Triplets, rowOff, colOff int) error
}

/*
BilinearForm sums its integrators' local matrices cell by cell and scatter-adds them. Rows
follow the test space and columns the trial space, T() swaps them.
*/
type BilinearForm struct {
	trial, test    space.Space
	integrators    []BilinearIntegrator
	transposed     bool
	ParallelDegree int // <= 0 uses every CPU
}

func NewBilinearForm(trial, test space.Space) *BilinearForm {
	return &BilinearForm{trial: trial, test: test}
}

func (bf *BilinearForm) AddIntegrator(its ...BilinearIntegrator) *BilinearForm {
	bf.integrators = append(bf.integrators, its...)
	return bf
}

func (bf *BilinearForm) Integrators() []BilinearIntegrator { return bf.integrators }

// T returns the transposed form. It shares the integrators, which are immutable.
func (bf *BilinearForm) T() *BilinearForm {
	return &BilinearForm{
		trial:          bf.trial,
		test:           bf.test,
		integrators:    bf.integrators,
		transposed:     !bf.transposed,
		ParallelDegree: bf.ParallelDegree,
	}
}

func (bf *BilinearForm) Shape() (rows, cols int) {
	rows, cols = bf.test.NumberOfGlobalDofs(), bf.trial.NumberOfGlobalDofs()
	if bf.transposed {
		rows, cols = cols, rows
	}
	return
}

/*
LocalMatrices returns (NC, test ldof, trial ldof), untransposed. Cells are split into buckets
that are computed concurrently, each bucket writing only its own cells.
*/
func (bf *BilinearForm) LocalMatrices() (L *utils.Tensor, err error) {
	var (
		m       = bf.trial.Mesh()
		NC      = m.NumberOfCells()
		lt, ls  = bf.test.NumberOfLocalDofs(), bf.trial.NumberOfLocalDofs()
		kernels = make([]CellKernel, len(bf.integrators))
	)
	if len(bf.integrators) == 0 {
		err = fmt.Errorf("bilinear form without integrators: %w", types.ErrUnsupportedOperation)
		return
	}
	for n, it := range bf.integrators {
		if kernels[n], err = it.Kernel(bf.trial, bf.test); err != nil {
			return
		}
	}
	L = utils.NewTensor([]int{NC, lt, ls})
	pm := utils.NewPartitionMap(utils.ParallelDegree(bf.ParallelDegree, NC), NC)
	pm.ParallelFor(func(bucket, kMin, kMax int) {
		for c := kMin; c < kMax; c++ {
			slab := L.Slab(c)
			for _, kern := range kernels {
				kern(c, slab)
			}
		}
	})
	return
}

func (bf *BilinearForm) AssembleInto(T *utils.Triplets, rowOff, colOff int) (err error) {
	var L *utils.Tensor
	if L, err = bf.LocalMatrices(); err != nil {
		return
	}
	var (
		tc2d, sc2d = bf.test.CellToDof(), bf.trial.CellToDof()
		lt, ls     = L.Shape[1], L.Shape[2]
	)
	for c := range tc2d {
		slab := L.Slab(c)
		if !bf.transposed {
			T.AddBlock(tc2d[c], sc2d[c], rowOff, colOff, slab)
			continue
		}
		for i := 0; i < lt; i++ {
			for j := 0; j < ls; j++ {
				T.Add(rowOff+sc2d[c][j], colOff+tc2d[c][i], slab[i*ls+j])
			}
		}
	}
	return
}

// Assembly builds the global matrix in the requested format.
func (bf *BilinearForm) Assembly(format utils.SparseFormat) (A utils.SparseMatrix, err error) {
	return assemble(bf, format)
}

func assemble(f Form, format utils.SparseFormat) (A utils.SparseMatrix, err error) {
	T := utils.NewTriplets(f.Shape())
	if err = f.AssembleInto(T, 0, 0); err != nil {
		return
	}
	if format == utils.COOFormat {
		return T.ToCOO(), nil
	}
	return T.ToCSR(), nil
}

/*
BlockForm arranges forms in a block matrix. Nil blocks are structural zeros; every block row
and column needs at least one form to fix its size.
*/
type BlockForm struct {
	blocks     [][]Form
	rowSizes   []int
	colSizes   []int
	rowOffsets []int
	colOffsets []int
}

func NewBlockForm(blocks [][]Form) (bf *BlockForm, err error) {
	if len(blocks) == 0 {
		err = fmt.Errorf("empty block form: %w", types.ErrShapeMismatch)
		return
	}
	var (
		nr = len(blocks)
		nc = len(blocks[0])
	)
	bf = &BlockForm{
		blocks:   blocks,
		rowSizes: make([]int, nr),
		colSizes: make([]int, nc),
	}
	for i := range bf.rowSizes {
		bf.rowSizes[i] = -1
	}
	for j := range bf.colSizes {
		bf.colSizes[j] = -1
	}
	for i, row := range blocks {
		if len(row) != nc {
			return nil, fmt.Errorf("block row %d has %d blocks, want %d: %w", i, len(row), nc, types.ErrShapeMismatch)
		}
		for j, f := range row {
			if f == nil {
				continue
			}
			r, c := f.Shape()
			if err = fixSize(bf.rowSizes, i, r, "row"); err != nil {
				return nil, err
			}
			if err = fixSize(bf.colSizes, j, c, "column"); err != nil {
				return nil, err
			}
		}
	}
	if bf.rowOffsets, err = offsets(bf.rowSizes, "row"); err != nil {
		return nil, err
	}
	if bf.colOffsets, err = offsets(bf.colSizes, "column"); err != nil {
		return nil, err
	}
	return
}

func fixSize(sizes []int, k, n int, what string) error {
	if sizes[k] >= 0 && sizes[k] != n {
		return fmt.Errorf("block %s %d has sizes %d and %d: %w", what, k, sizes[k], n, types.ErrShapeMismatch)
	}
	sizes[k] = n
	return nil
}

func offsets(sizes []int, what string) (off []int, err error) {
	off = make([]int, len(sizes)+1)
	for k, n := range sizes {
		if n < 0 {
			return nil, fmt.Errorf("block %s %d holds only nil blocks: %w", what, k, types.ErrShapeMismatch)
		}
		off[k+1] = off[k] + n
	}
	return
}

func (bf *BlockForm) Shape() (rows, cols int) {
	return bf.rowOffsets[len(bf.rowSizes)], bf.colOffsets[len(bf.colSizes)]
}

// Offsets returns the first global row of every block row, plus the total.
func (bf *BlockForm) Offsets() []int { return bf.rowOffsets }

func (bf *BlockForm) AssembleInto(T *utils.Triplets, rowOff, colOff int) (err error) {
	for i, row := range bf.blocks {
		for j, f := range row {
			if f == nil {
				continue
			}
			if err = f.AssembleInto(T, rowOff+bf.rowOffsets[i], colOff+bf.colOffsets[j]); err != nil {
				return fmt.Errorf("block (%d,%d): %w", i, j, err)
			}
		}
	}
	return
}

func (bf *BlockForm) Assembly(format utils.SparseFormat) (utils.SparseMatrix, error) {
	return assemble(bf, format)
}

type LinearForm struct {
	space          space.Space
	integrators    []LinearIntegrator
	ParallelDegree int
}

func NewLinearForm(s space.Space) *LinearForm {
	return &LinearForm{space: s}
}

func (lf *LinearForm) AddIntegrator(its ...LinearIntegrator) *LinearForm {
	lf.integrators = append(lf.integrators, its...)
	return lf
}

func (lf *LinearForm) Size() int { return lf.space.NumberOfGlobalDofs() }

// LocalVectors returns (NC, ldof).
func (lf *LinearForm) LocalVectors() (L *utils.Tensor, err error) {
	var (
		NC      = lf.space.Mesh().NumberOfCells()
		kernels = make([]CellVectorKernel, len(lf.integrators))
	)
	for n, it := range lf.integrators {
		if kernels[n], err = it.Kernel(lf.space); err != nil {
			return
		}
	}
	L = utils.NewTensor([]int{NC, lf.space.NumberOfLocalDofs()})
	pm := utils.NewPartitionMap(utils.ParallelDegree(lf.ParallelDegree, NC), NC)
	pm.ParallelFor(func(bucket, kMin, kMax int) {
		for c := kMin; c < kMax; c++ {
			slab := L.Slab(c)
			for _, kern := range kernels {
				kern(c, slab)
			}
		}
	})
	return
}

// Assembly returns the global load vector; a form without integrators gives zeros.
func (lf *LinearForm) Assembly() (F []float64, err error) {
	F = make([]float64, lf.Size())
	err = lf.assembleInto(F)
	return
}

func (lf *LinearForm) assembleInto(F []float64) (err error) {
	var L *utils.Tensor
	if L, err = lf.LocalVectors(); err != nil {
		return
	}
	for c, c2d := range lf.space.CellToDof() {
		slab := L.Slab(c)
		for l, g := range c2d {
			F[g] += slab[l]
		}
	}
	return
}

// LinearBlockForm stacks linear forms in the same order as the rows of a BlockForm.
type LinearBlockForm struct {
	forms []*LinearForm
}

func NewLinearBlockForm(forms ...*LinearForm) *LinearBlockForm {
	return &LinearBlockForm{forms: forms}
}

func (lb *LinearBlockForm) Size() (n int) {
	for _, lf := range lb.forms {
		n += lf.Size()
	}
	return
}

func (lb *LinearBlockForm) Assembly() (F []float64, err error) {
	F = make([]float64, lb.Size())
	var off int
	for k, lf := range lb.forms {
		n := lf.Size()
		if err = lf.assembleInto(F[off : off+n]); err != nil {
			return nil, fmt.Errorf("block %d: %w", k, err)
		}
		off += n
	}
	return
}
