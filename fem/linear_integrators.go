package fem

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gofea/mesh"
	"github.com/notargets/gofea/space"
	"github.com/notargets/gofea/types"
	"github.com/notargets/gofea/utils"
)

// CellVectorKernel adds the local load vector of cell c into local.
type CellVectorKernel func(c int, local []float64)

type LinearIntegrator interface {
	Kernel(s space.Space) (CellVectorKernel, error)
}

// SourceIntegrator is f v on a scalar space.
type SourceIntegrator struct {
	Source Coefficient
	Q      int
}

func NewSourceIntegrator(f Coefficient, q int) SourceIntegrator {
	return SourceIntegrator{Source: f, Q: q}
}

func (si SourceIntegrator) WithCoef(f Coefficient) SourceIntegrator {
	si.Source = f
	return si
}

func (si SourceIntegrator) Kernel(s space.Space) (kern CellVectorKernel, err error) {
	var (
		cd cellData
		V  *utils.Tensor
	)
	if s.Components() != 1 {
		err = fmt.Errorf("scalar source on a %d component space: %w", s.Components(), types.ErrShapeMismatch)
		return
	}
	if cd, err = newCellData(s.Mesh(), si.Q, si.Source.needsPoints()); err != nil {
		return
	}
	if err = si.Source.check(cd.NC, cd.NQ); err != nil {
		return
	}
	if V, err = s.CellBasis(cd.rule); err != nil {
		return
	}
	var (
		ldof = V.Shape[2]
		f    = si.Source
	)
	kern = func(c int, local []float64) {
		vs := V.Slab(c)
		for q := 0; q < cd.NQ; q++ {
			w := cd.W.At(c, q) * f.Eval(c, q, cd.point(c, q))
			for i := 0; i < ldof; i++ {
				local[i] += w * vs[q*ldof+i]
			}
		}
	}
	return
}

// VectorSourceIntegrator is f . v with f of the same length as the space's components.
type VectorSourceIntegrator struct {
	Source VectorCoefficient
	Q      int
}

func NewVectorSourceIntegrator(f VectorCoefficient, q int) VectorSourceIntegrator {
	return VectorSourceIntegrator{Source: f, Q: q}
}

func (vi VectorSourceIntegrator) WithCoef(f VectorCoefficient) VectorSourceIntegrator {
	vi.Source = f
	return vi
}

func (vi VectorSourceIntegrator) Kernel(s space.Space) (kern CellVectorKernel, err error) {
	var (
		cd cellData
		V  *utils.Tensor
		nc = s.Components()
	)
	if cd, err = newCellData(s.Mesh(), vi.Q, vi.Source.needsPoints()); err != nil {
		return
	}
	if err = vi.Source.check(cd.NC, cd.NQ, nc); err != nil {
		return
	}
	if V, err = s.CellBasis(cd.rule); err != nil {
		return
	}
	var (
		ldof = V.Shape[2]
		f    = vi.Source
	)
	kern = func(c int, local []float64) {
		vs := V.Slab(c)
		for q := 0; q < cd.NQ; q++ {
			var (
				w  = cd.W.At(c, q)
				fq = f.Eval(c, q, cd.point(c, q))
				vq = vs[q*ldof*nc : (q+1)*ldof*nc]
			)
			for i := 0; i < ldof; i++ {
				local[i] += w * utils.Dot(fq, vq[i*nc:(i+1)*nc])
			}
		}
	}
	return
}

// BoundaryFunction is a boundary load at x, n being the outward unit normal (nil when GD > TD).
type BoundaryFunction func(x, n []float64) []float64

/*
BoundaryFaceSourceIntegrator is g . v integrated over the boundary faces whose barycenter passes
Threshold (all boundary faces when nil): a Neumann flux for scalar spaces, a traction for vector
spaces. Only Lagrange type scalar spaces and their tensor lifts are supported.
*/
type BoundaryFaceSourceIntegrator struct {
	Source    BoundaryFunction
	Threshold mesh.Threshold
	Q         int
}

func NewBoundaryFaceSourceIntegrator(g BoundaryFunction, threshold mesh.Threshold, q int) BoundaryFaceSourceIntegrator {
	return BoundaryFaceSourceIntegrator{Source: g, Threshold: threshold, Q: q}
}

func (bi BoundaryFaceSourceIntegrator) WithSource(g BoundaryFunction) BoundaryFaceSourceIntegrator {
	bi.Source = g
	return bi
}

func (bi BoundaryFaceSourceIntegrator) Kernel(s space.Space) (kern CellVectorKernel, err error) {
	var (
		m    = s.Mesh()
		nc   = s.Components()
		ldof = s.NumberOfLocalDofs()
		q    = bi.Q
		fqs  []mesh.FaceQuadrature
	)
	if bi.Source == nil {
		err = fmt.Errorf("boundary source without a function: %w", types.ErrShapeMismatch)
		return
	}
	if q <= 0 {
		q = defaultQuadratureOrder
	}
	if fqs, err = m.BoundaryFaceQuadrature(q, bi.Threshold); err != nil {
		return
	}
	// integrated load vectors of the boundary faces, keyed by cell
	loads := make(map[int][][]float64)
	for _, fq := range fqs {
		var B *utils.Tensor
		if B, err = faceBasis(s, fq.Points); err != nil {
			return
		}
		fl := make([]float64, ldof)
		for iq, x := range fq.Phys {
			g := bi.Source(x, fq.Normal)
			if len(g) != nc {
				err = fmt.Errorf("boundary source of length %d for a %d component space: %w",
					len(g), nc, types.ErrShapeMismatch)
				return
			}
			bq := B.Slab(iq)
			for i := 0; i < ldof; i++ {
				fl[i] += fq.Weights[iq] * utils.Dot(g, bq[i*nc:(i+1)*nc])
			}
		}
		loads[fq.Cell] = append(loads[fq.Cell], fl)
	}
	kern = func(c int, local []float64) {
		for _, fl := range loads[c] {
			for i, v := range fl {
				local[i] += v
			}
		}
	}
	return
}

// faceBasis evaluates the cell basis at reference points, (NP, ldof, ncomp).
func faceBasis(s space.Space, points [][]float64) (B *utils.Tensor, err error) {
	var phi *mat.Dense
	switch sp := s.(type) {
	case space.ScalarSpace:
		if phi, err = sp.EvaluateBasis(points); err != nil {
			return
		}
		NP, ldof := phi.Dims()
		B = utils.NewTensor([]int{NP, ldof, 1})
		for q := 0; q < NP; q++ {
			for l := 0; l < ldof; l++ {
				B.Set(phi.At(q, l), q, l, 0)
			}
		}
	case *space.TensorFunctionSpace:
		if phi, err = sp.Scalar.EvaluateBasis(points); err != nil {
			return
		}
		NP, ldof := phi.Dims()
		B = utils.NewTensor([]int{NP, sp.GD * ldof, sp.GD})
		for q := 0; q < NP; q++ {
			for l := 0; l < ldof; l++ {
				for c := 0; c < sp.GD; c++ {
					B.Set(phi.At(q, l), q, sp.LocalIndex(l, c), c)
				}
			}
		}
	default:
		err = fmt.Errorf("boundary face integration on %T: %w", s, types.ErrUnsupportedOperation)
	}
	return
}
