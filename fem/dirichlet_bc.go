package fem

import (
	"fmt"

	"github.com/notargets/gofea/mesh"
	"github.com/notargets/gofea/space"
	"github.com/notargets/gofea/types"
	"github.com/notargets/gofea/utils"
)

/*
BCBlock prescribes Gd on the boundary DOFs of Space selected by Threshold (every boundary DOF
when nil). A nil Gd leaves the block unconstrained.
*/
type BCBlock struct {
	Space     space.Space
	Gd        space.VectorFunction
	Threshold mesh.Threshold
}

/*
DirichletBC eliminates prescribed DOFs from a system: their rows and columns become identity
rows and columns, and the load vector takes the prescribed values. Blocks are laid out back to
back like the rows of a BlockForm.
*/
type DirichletBC struct {
	blocks []BCBlock
	isBd   []bool
	bd     utils.Index
	uh     []float64
}

func NewDirichletBC(blocks ...BCBlock) (bc *DirichletBC, err error) {
	var gdof int
	for _, b := range blocks {
		gdof += b.Space.NumberOfGlobalDofs()
	}
	bc = &DirichletBC{
		blocks: blocks,
		isBd:   make([]bool, gdof),
		uh:     make([]float64, gdof),
	}
	var off int
	for k, b := range blocks {
		n := b.Space.NumberOfGlobalDofs()
		if b.Gd != nil {
			var isBd []bool
			if isBd, err = b.Space.BoundaryInterpolate(b.Gd, bc.uh[off:off+n], b.Threshold); err != nil {
				return nil, fmt.Errorf("boundary block %d: %w", k, err)
			}
			copy(bc.isBd[off:off+n], isBd)
		}
		off += n
	}
	// BoundaryInterpolate may touch interior entries of uh
	for i, b := range bc.isBd {
		if !b {
			bc.uh[i] = 0
		}
	}
	bc.bd = utils.NewIndexFromFlags(bc.isBd)
	return
}

func (bc *DirichletBC) Size() int { return len(bc.isBd) }

func (bc *DirichletBC) IsBoundaryDof() []bool { return bc.isBd }

// BoundaryValues is zero away from the prescribed DOFs.
func (bc *DirichletBC) BoundaryValues() []float64 { return bc.uh }

// BoundaryDofs lists the prescribed DOFs in ascending order.
func (bc *DirichletBC) BoundaryDofs() utils.Index { return bc.bd }

func (bc *DirichletBC) NumberOfBoundaryDofs() int { return len(bc.bd) }

func (bc *DirichletBC) checkSize(nr, nc int) error {
	if nr != bc.Size() || nc != bc.Size() {
		return fmt.Errorf("%dx%d system for %d constrained unknowns: %w", nr, nc, bc.Size(), types.ErrShapeMismatch)
	}
	return nil
}

// ApplyMatrix returns a constrained copy of A, inserting any missing boundary diagonal.
func (bc *DirichletBC) ApplyMatrix(A utils.SparseMatrix) (R utils.CSR, err error) {
	nr, nc := A.Dims()
	if err = bc.checkSize(nr, nc); err != nil {
		return
	}
	T := utils.NewTriplets(nr, nc)
	A.DoNonZero(func(i, j int, v float64) {
		if bc.isBd[i] || bc.isBd[j] {
			return
		}
		T.Add(i, j, v)
	})
	for _, i := range bc.bd {
		T.Add(i, i, 1)
	}
	return T.ToCSR(), nil
}

// ApplyMatrixInPlace constrains A within its pattern, which must hold every boundary diagonal.
func (bc *DirichletBC) ApplyMatrixInPlace(A utils.CSR) (err error) {
	nr, nc := A.Dims()
	if err = bc.checkSize(nr, nc); err != nil {
		return
	}
	A.CheckWritable()
	for _, i := range bc.bd {
		if err = A.Set(i, i, 1); err != nil {
			return fmt.Errorf("boundary row %d: %w", i, err)
		}
	}
	raw := A.RawMatrix()
	for i := 0; i < nr; i++ {
		for k := raw.Indptr[i]; k < raw.Indptr[i+1]; k++ {
			j := raw.Ind[k]
			if i != j && (bc.isBd[i] || bc.isBd[j]) {
				raw.Data[k] = 0
			}
		}
	}
	return
}

/*
ApplyVector moves the known boundary values to the right hand side, F - A uh, and then sets the
boundary rows to the prescribed values. A must be the matrix before ApplyMatrix, or a matrix
already constrained by this condition.
*/
func (bc *DirichletBC) ApplyVector(F []float64, A utils.SparseMatrix) (R []float64, err error) {
	nr, nc := A.Dims()
	if err = bc.checkSize(nr, nc); err != nil {
		return
	}
	if len(F) != nr {
		err = fmt.Errorf("load vector of length %d for %d unknowns: %w", len(F), nr, types.ErrShapeMismatch)
		return
	}
	R = make([]float64, nr)
	copy(R, F)
	A.DoNonZero(func(i, j int, v float64) {
		R[i] -= v * bc.uh[j]
	})
	for _, i := range bc.bd {
		R[i] = bc.uh[i]
	}
	return
}

// Apply constrains a system, returning new storage for both A and F.
func (bc *DirichletBC) Apply(A utils.SparseMatrix, F []float64) (Ac utils.CSR, Fc []float64, err error) {
	if Fc, err = bc.ApplyVector(F, A); err != nil {
		return
	}
	Ac, err = bc.ApplyMatrix(A)
	return
}
