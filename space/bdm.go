package space

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gofea/mesh"
	"github.com/notargets/gofea/quadrature"
	"github.com/notargets/gofea/types"
	"github.com/notargets/gofea/utils"
)

/*
BDMFESpace is the lowest order Brezzi-Douglas-Marini space on triangles: piecewise linear vector
fields with continuous normal components. Edge e owns global DOFs 2e and 2e+1, the flux
(v . n_e)|e| at its lower and higher numbered vertex. n_e rotates the tangent from the lower to
the higher vertex clockwise, so both cells sharing an edge use the same normal.
*/
type BDMFESpace struct {
	mesh     *mesh.Mesh
	cell2dof [][]int
	normals  [][]float64 // unit normal per edge
	lengths  []float64
	// coef[c] maps the local DOFs to the functions lambda_j e_d, row j*2+d
	coef  []*mat.Dense
	cache tensorCache
}

func NewBDMFESpace(m *mesh.Mesh) (bs *BDMFESpace, err error) {
	if m.Type != mesh.Triangle || m.GD != 2 {
		err = fmt.Errorf("BDM space on %v cells in %dD: %w", m.Type, m.GD, types.ErrUnsupportedDimension)
		return
	}
	var (
		NE = m.NumberOfEdges()
		NC = m.NumberOfCells()
	)
	bs = &BDMFESpace{
		mesh:     m,
		cell2dof: make([][]int, NC),
		normals:  make([][]float64, NE),
		lengths:  make([]float64, NE),
		coef:     make([]*mat.Dense, NC),
	}
	for e, ev := range m.Edges {
		a, b := m.Nodes[ev[0]], m.Nodes[ev[1]]
		tx, ty := b[0]-a[0], b[1]-a[1]
		h := math.Hypot(tx, ty)
		bs.lengths[e] = h
		bs.normals[e] = []float64{ty / h, -tx / h}
	}
	for c, cell := range m.Cells {
		var (
			D   = mat.NewDense(6, 6, nil)
			c2d = make([]int, 6)
		)
		for le, ev := range m.Type.LocalEdges() {
			var (
				e    = m.EToEdge[c][le]
				n    = bs.normals[e]
				h    = bs.lengths[e]
				ends = [2]int{ev[0], ev[1]}
			)
			if cell[ends[0]] > cell[ends[1]] {
				ends[0], ends[1] = ends[1], ends[0]
			}
			for k, v := range ends {
				i := 2*le + k
				c2d[i] = 2*e + k
				// lambda_j vanishes at vertex v unless j == v
				for d := 0; d < 2; d++ {
					D.Set(i, v*2+d, n[d]*h)
				}
			}
		}
		C := mat.NewDense(6, 6, nil)
		if err = C.Inverse(D); err != nil {
			return nil, fmt.Errorf("cell %d: %w", c, err)
		}
		bs.cell2dof[c] = c2d
		bs.coef[c] = C
	}
	return
}

func (bs *BDMFESpace) Mesh() *mesh.Mesh        { return bs.mesh }
func (bs *BDMFESpace) Components() int         { return 2 }
func (bs *BDMFESpace) NumberOfLocalDofs() int  { return 6 }
func (bs *BDMFESpace) NumberOfGlobalDofs() int { return 2 * bs.mesh.NumberOfEdges() }
func (bs *BDMFESpace) CellToDof() [][]int      { return bs.cell2dof }

// CellBasis is (NC, NQ, 6, 2).
func (bs *BDMFESpace) CellBasis(rule *quadrature.Rule) (B *utils.Tensor, err error) {
	v, err := bs.cache.get(rule, "cell", func() (any, error) {
		var (
			NC = bs.mesh.NumberOfCells()
			NQ = rule.NumberOfPoints()
			B  = utils.NewTensor([]int{NC, NQ, 6, 2})
		)
		for c := 0; c < NC; c++ {
			C := bs.coef[c]
			for q, bc := range rule.Points {
				for i := 0; i < 6; i++ {
					for j := 0; j < 3; j++ {
						for d := 0; d < 2; d++ {
							B.AddAt(C.At(j*2+d, i)*bc[j], c, q, i, d)
						}
					}
				}
			}
		}
		return B, nil
	})
	if err != nil {
		return
	}
	return v.(*utils.Tensor), nil
}

// CellGradBasis is (NC, NQ, 6, 2, 2), constant on each cell.
func (bs *BDMFESpace) CellGradBasis(rule *quadrature.Rule) (G *utils.Tensor, err error) {
	gl, err := bs.mesh.GradLambda()
	if err != nil {
		return
	}
	v, err := bs.cache.get(rule, "grad", func() (any, error) {
		var (
			NC = bs.mesh.NumberOfCells()
			NQ = rule.NumberOfPoints()
			G  = utils.NewTensor([]int{NC, NQ, 6, 2, 2})
		)
		for c := 0; c < NC; c++ {
			C := bs.coef[c]
			for q := 0; q < NQ; q++ {
				for i := 0; i < 6; i++ {
					for j := 0; j < 3; j++ {
						for d := 0; d < 2; d++ {
							for g := 0; g < 2; g++ {
								G.AddAt(C.At(j*2+d, i)*gl.At(c, j, g), c, q, i, d, g)
							}
						}
					}
				}
			}
		}
		return G, nil
	})
	if err != nil {
		return
	}
	return v.(*utils.Tensor), nil
}

// DivBasis is (NC, NQ, 6).
func (bs *BDMFESpace) DivBasis(rule *quadrature.Rule) (D *utils.Tensor, err error) {
	var G *utils.Tensor
	if G, err = bs.CellGradBasis(rule); err != nil {
		return
	}
	var (
		NC, NQ = G.Shape[0], G.Shape[1]
	)
	D = utils.NewTensor([]int{NC, NQ, 6})
	for c := 0; c < NC; c++ {
		for q := 0; q < NQ; q++ {
			for i := 0; i < 6; i++ {
				D.Set(G.At(c, q, i, 0, 0)+G.At(c, q, i, 1, 1), c, q, i)
			}
		}
	}
	return
}

func (bs *BDMFESpace) Value(uh []float64, rule *quadrature.Rule) (*utils.Tensor, error) {
	return Value(bs, uh, rule)
}

// Interpolate takes the endpoint fluxes of f on every edge.
func (bs *BDMFESpace) Interpolate(f VectorFunction) (uh []float64) {
	uh = make([]float64, bs.NumberOfGlobalDofs())
	for e, ev := range bs.mesh.Edges {
		for k, v := range ev {
			fv := f(bs.mesh.Nodes[v])
			uh[2*e+k] = (fv[0]*bs.normals[e][0] + fv[1]*bs.normals[e][1]) * bs.lengths[e]
		}
	}
	return
}

func (bs *BDMFESpace) IsBoundaryDof(threshold mesh.Threshold) (isBd []bool, err error) {
	isBd = make([]bool, bs.NumberOfGlobalDofs())
	// faces of a triangle mesh are its edges
	for _, f := range bs.mesh.BoundaryFaces(threshold) {
		isBd[2*f], isBd[2*f+1] = true, true
	}
	return
}

func (bs *BDMFESpace) BoundaryInterpolate(gd VectorFunction, uh []float64, threshold mesh.Threshold) (isBd []bool, err error) {
	if err = checkCoefficients(bs, uh); err != nil {
		return
	}
	if isBd, err = bs.IsBoundaryDof(threshold); err != nil {
		return
	}
	full := bs.Interpolate(gd)
	for i, b := range isBd {
		if b {
			uh[i] = full[i]
		}
	}
	return
}

func (bs *BDMFESpace) L2Error(u VectorFunction, uh []float64, q int) (float64, error) {
	return L2Error(bs, u, uh, q)
}
