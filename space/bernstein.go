package space

import (
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gofea/basis"
	"github.com/notargets/gofea/dof"
	"github.com/notargets/gofea/mesh"
	"github.com/notargets/gofea/quadrature"
	"github.com/notargets/gofea/utils"
)

/*
BernsteinFESpace uses the Bernstein polynomials p!/alpha! lambda^alpha on simplices. It shares
the DOF numbering of the Lagrange space of the same degree; the coefficients are Bernstein
coefficients, not point values.
*/
type BernsteinFESpace struct {
	mesh  *mesh.Mesh
	p     int
	dof   dof.Manager
	cache tensorCache
}

func NewBernsteinFESpace(m *mesh.Mesh, p int, continuous bool) (bs *BernsteinFESpace, err error) {
	if err = requireSimplex(m, "Bernstein space"); err != nil {
		return
	}
	var dm dof.Manager
	if dm, err = dof.NewManager(m, p, continuous); err != nil {
		return
	}
	bs = &BernsteinFESpace{mesh: m, p: p, dof: dm}
	return
}

func (bs *BernsteinFESpace) Mesh() *mesh.Mesh                 { return bs.mesh }
func (bs *BernsteinFESpace) Degree() int                      { return bs.p }
func (bs *BernsteinFESpace) Components() int                  { return 1 }
func (bs *BernsteinFESpace) Dof() dof.Manager                 { return bs.dof }
func (bs *BernsteinFESpace) NumberOfLocalDofs() int           { return bs.dof.NumberOfLocalDofs() }
func (bs *BernsteinFESpace) NumberOfGlobalDofs() int          { return bs.dof.NumberOfGlobalDofs() }
func (bs *BernsteinFESpace) CellToDof() [][]int               { return bs.dof.CellToDof() }
func (bs *BernsteinFESpace) InterpolationPoints() [][]float64 { return bs.dof.InterpolationPoints() }

func (bs *BernsteinFESpace) IsBoundaryDof(threshold mesh.Threshold) ([]bool, error) {
	return bs.dof.IsBoundaryDof(threshold)
}

func (bs *BernsteinFESpace) Basis(rule *quadrature.Rule) (phi *mat.Dense, err error) {
	v, err := bs.cache.get(rule, "basis", func() (any, error) {
		return bs.EvaluateBasis(rule.Points)
	})
	if err != nil {
		return
	}
	return v.(*mat.Dense), nil
}

func (bs *BernsteinFESpace) EvaluateBasis(points [][]float64) (*mat.Dense, error) {
	return basis.BernsteinBasis(points, bs.p, bs.dof.Layout().Weights)
}

func (bs *BernsteinFESpace) GradBasis(rule *quadrature.Rule) (G *utils.Tensor, err error) {
	v, err := bs.cache.get(rule, "grad", func() (any, error) {
		return physicalGradient(bs.mesh, rule, func(r *quadrature.Rule) (*utils.Tensor, error) {
			return basis.BernsteinGradBasis(r.Points, bs.p, bs.dof.Layout().Weights)
		})
	})
	if err != nil {
		return
	}
	return v.(*utils.Tensor), nil
}

// GradMBasis is (NQ, NC, ldof, N), see basis.BernsteinGradMBasis.
func (bs *BernsteinFESpace) GradMBasis(rule *quadrature.Rule, m int) (G *utils.Tensor, err error) {
	var gl *utils.Tensor
	if gl, err = bs.mesh.GradLambda(); err != nil {
		return
	}
	return basis.BernsteinGradMBasis(rule.Points, bs.p, m, gl)
}

// HessBasis is GradMBasis with m = 2, components xx, xy, yy in 2D.
func (bs *BernsteinFESpace) HessBasis(rule *quadrature.Rule) (*utils.Tensor, error) {
	return bs.GradMBasis(rule, 2)
}

func (bs *BernsteinFESpace) CellBasis(rule *quadrature.Rule) (B *utils.Tensor, err error) {
	phi, err := bs.Basis(rule)
	if err != nil {
		return
	}
	v, err := bs.cache.get(rule, "cell", func() (any, error) {
		return broadcast(phi, bs.mesh.NumberOfCells()), nil
	})
	if err != nil {
		return
	}
	return v.(*utils.Tensor), nil
}

func (bs *BernsteinFESpace) CellGradBasis(rule *quadrature.Rule) (G *utils.Tensor, err error) {
	if G, err = bs.GradBasis(rule); err != nil {
		return
	}
	return G.Reshape(G.Shape[0], G.Shape[1], G.Shape[2], 1, G.Shape[3]), nil
}

func (bs *BernsteinFESpace) Value(uh []float64, rule *quadrature.Rule) (V *utils.Tensor, err error) {
	if V, err = Value(bs, uh, rule); err != nil {
		return
	}
	return V.Reshape(V.Shape[0], V.Shape[1]), nil
}

func (bs *BernsteinFESpace) GradValue(uh []float64, rule *quadrature.Rule) (G *utils.Tensor, err error) {
	if G, err = GradValue(bs, uh, rule); err != nil {
		return
	}
	return G.Reshape(G.Shape[0], G.Shape[1], G.Shape[3]), nil
}

// changeOfBasis applies a local (ldof, ldof) matrix cell by cell to a global coefficient vector.
func (bs *BernsteinFESpace) changeOfBasis(A *mat.Dense, u []float64) (r []float64, err error) {
	if err = checkCoefficients(bs, u); err != nil {
		return
	}
	var (
		ldof = bs.NumberOfLocalDofs()
		in   = mat.NewVecDense(ldof, nil)
		out  = mat.NewVecDense(ldof, nil)
		done = make([]bool, len(u))
	)
	r = make([]float64, len(u))
	for _, c2d := range bs.CellToDof() {
		for l, g := range c2d {
			in.SetVec(l, u[g])
		}
		out.MulVec(A, in)
		for l, g := range c2d {
			if !done[g] {
				r[g] = out.AtVec(l)
				done[g] = true
			}
		}
	}
	return
}

// LagrangeToBernstein converts nodal values of the Lagrange space of the same degree.
func (bs *BernsteinFESpace) LagrangeToBernstein(uL []float64) ([]float64, error) {
	_, Minv, err := basis.LagrangeBernsteinMatrices(bs.p, bs.mesh.TD)
	if err != nil {
		return nil, err
	}
	return bs.changeOfBasis(Minv, uL)
}

func (bs *BernsteinFESpace) BernsteinToLagrange(uB []float64) ([]float64, error) {
	M, _, err := basis.LagrangeBernsteinMatrices(bs.p, bs.mesh.TD)
	if err != nil {
		return nil, err
	}
	return bs.changeOfBasis(M, uB)
}

// Interpolate samples f at the Lagrange nodes and converts to Bernstein coefficients.
func (bs *BernsteinFESpace) Interpolate(f ScalarFunction) (uh []float64) {
	ip := bs.InterpolationPoints()
	uL := make([]float64, len(ip))
	for i, x := range ip {
		uL[i] = f(x)
	}
	uh, err := bs.LagrangeToBernstein(uL)
	if err != nil {
		panic(err)
	}
	return
}

// BoundaryInterpolate relies on boundary coefficients depending only on boundary values.
func (bs *BernsteinFESpace) BoundaryInterpolate(gd VectorFunction, uh []float64, threshold mesh.Threshold) (isBd []bool, err error) {
	if err = checkCoefficients(bs, uh); err != nil {
		return
	}
	if isBd, err = bs.IsBoundaryDof(threshold); err != nil {
		return
	}
	full := bs.Interpolate(func(x []float64) float64 { return gd(x)[0] })
	for i, b := range isBd {
		if b {
			uh[i] = full[i]
		}
	}
	return
}

func (bs *BernsteinFESpace) L2Error(u ScalarFunction, uh []float64, q int) (float64, error) {
	return L2Error(bs, u.Vector(), uh, q)
}
