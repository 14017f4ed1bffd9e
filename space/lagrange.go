package space

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gofea/basis"
	"github.com/notargets/gofea/dof"
	"github.com/notargets/gofea/mesh"
	"github.com/notargets/gofea/quadrature"
	"github.com/notargets/gofea/types"
	"github.com/notargets/gofea/utils"
)

/*
LagrangeFESpace is the nodal space of degree p on simplex or tensor product cells. On simplices
the local DOFs follow the multi-index table, on quadrangles and hexahedra the tensor index with x
slowest.
*/
type LagrangeFESpace struct {
	mesh  *mesh.Mesh
	p     int
	dof   dof.Manager
	cache tensorCache
}

func NewLagrangeFESpace(m *mesh.Mesh, p int, continuous bool) (ls *LagrangeFESpace, err error) {
	var dm dof.Manager
	if dm, err = dof.NewManager(m, p, continuous); err != nil {
		return
	}
	ls = &LagrangeFESpace{mesh: m, p: p, dof: dm}
	return
}

func (ls *LagrangeFESpace) Mesh() *mesh.Mesh                 { return ls.mesh }
func (ls *LagrangeFESpace) Degree() int                      { return ls.p }
func (ls *LagrangeFESpace) Components() int                  { return 1 }
func (ls *LagrangeFESpace) Dof() dof.Manager                 { return ls.dof }
func (ls *LagrangeFESpace) NumberOfLocalDofs() int           { return ls.dof.NumberOfLocalDofs() }
func (ls *LagrangeFESpace) NumberOfGlobalDofs() int          { return ls.dof.NumberOfGlobalDofs() }
func (ls *LagrangeFESpace) CellToDof() [][]int               { return ls.dof.CellToDof() }
func (ls *LagrangeFESpace) InterpolationPoints() [][]float64 { return ls.dof.InterpolationPoints() }

func (ls *LagrangeFESpace) IsBoundaryDof(threshold mesh.Threshold) ([]bool, error) {
	return ls.dof.IsBoundaryDof(threshold)
}

// Basis is the (NQ, ldof) table of reference values at the rule points.
func (ls *LagrangeFESpace) Basis(rule *quadrature.Rule) (phi *mat.Dense, err error) {
	v, err := ls.cache.get(rule, "basis", func() (any, error) {
		return ls.EvaluateBasis(rule.Points)
	})
	if err != nil {
		return
	}
	return v.(*mat.Dense), nil
}

// EvaluateBasis is Basis at arbitrary reference points, without caching.
func (ls *LagrangeFESpace) EvaluateBasis(points [][]float64) (*mat.Dense, error) {
	if ls.mesh.Type.IsSimplex() {
		return basis.SimplexShapeFunction(points, ls.p, ls.dof.Layout().Weights)
	}
	return basis.TensorProductShapeFunction(points, ls.p)
}

// referenceGradient is (NQ, ldof, K): barycentric derivatives on simplices, d/dxi otherwise.
func (ls *LagrangeFESpace) referenceGradient(rule *quadrature.Rule) (*utils.Tensor, error) {
	if ls.mesh.Type.IsSimplex() {
		return basis.SimplexGradShapeFunction(rule.Points, ls.p, ls.dof.Layout().Weights)
	}
	return basis.TensorProductGradShapeFunction(rule.Points, ls.p)
}

// GradBasis is the (NC, NQ, ldof, GD) table of physical gradients.
func (ls *LagrangeFESpace) GradBasis(rule *quadrature.Rule) (G *utils.Tensor, err error) {
	v, err := ls.cache.get(rule, "grad", func() (any, error) {
		return physicalGradient(ls.mesh, rule, ls.referenceGradient)
	})
	if err != nil {
		return
	}
	return v.(*utils.Tensor), nil
}

func physicalGradient(m *mesh.Mesh, rule *quadrature.Rule,
	ref func(*quadrature.Rule) (*utils.Tensor, error)) (G *utils.Tensor, err error) {
	var R, T *utils.Tensor
	if R, err = ref(rule); err != nil {
		return
	}
	if m.Type.IsSimplex() {
		if T, err = m.GradLambda(); err != nil {
			return
		}
		return basis.PhysicalGradient(R, T)
	}
	if T, err = m.GradTransform(rule); err != nil {
		return
	}
	return basis.MapGradient(R, T)
}

/*
GradMBasis is the m-th derivative tensor (NQ, NC, ldof, N), N the number of independent
components of a symmetric m-tensor in GD dimensions. Simplex cells only.
*/
func (ls *LagrangeFESpace) GradMBasis(rule *quadrature.Rule, m int) (G *utils.Tensor, err error) {
	var gl *utils.Tensor
	if gl, err = ls.mesh.GradLambda(); err != nil {
		return
	}
	return basis.LagrangeGradMBasis(rule.Points, ls.p, m, gl)
}

func (ls *LagrangeFESpace) CellBasis(rule *quadrature.Rule) (B *utils.Tensor, err error) {
	phi, err := ls.Basis(rule)
	if err != nil {
		return
	}
	v, err := ls.cache.get(rule, "cell", func() (any, error) {
		return broadcast(phi, ls.mesh.NumberOfCells()), nil
	})
	if err != nil {
		return
	}
	return v.(*utils.Tensor), nil
}

func (ls *LagrangeFESpace) CellGradBasis(rule *quadrature.Rule) (G *utils.Tensor, err error) {
	if G, err = ls.GradBasis(rule); err != nil {
		return
	}
	return G.Reshape(G.Shape[0], G.Shape[1], G.Shape[2], 1, G.Shape[3]), nil
}

// Value is (NC, NQ).
func (ls *LagrangeFESpace) Value(uh []float64, rule *quadrature.Rule) (V *utils.Tensor, err error) {
	if V, err = Value(ls, uh, rule); err != nil {
		return
	}
	return V.Reshape(V.Shape[0], V.Shape[1]), nil
}

// GradValue is (NC, NQ, GD).
func (ls *LagrangeFESpace) GradValue(uh []float64, rule *quadrature.Rule) (G *utils.Tensor, err error) {
	if G, err = GradValue(ls, uh, rule); err != nil {
		return
	}
	return G.Reshape(G.Shape[0], G.Shape[1], G.Shape[3]), nil
}

func (ls *LagrangeFESpace) Interpolate(f ScalarFunction) (uh []float64) {
	ip := ls.InterpolationPoints()
	uh = make([]float64, len(ip))
	for i, x := range ip {
		uh[i] = f(x)
	}
	return
}

// BoundaryInterpolate writes gd into the boundary entries of uh and returns the boundary flags.
func (ls *LagrangeFESpace) BoundaryInterpolate(gd VectorFunction, uh []float64, threshold mesh.Threshold) (isBd []bool, err error) {
	if err = checkCoefficients(ls, uh); err != nil {
		return
	}
	if isBd, err = ls.IsBoundaryDof(threshold); err != nil {
		return
	}
	ip := ls.InterpolationPoints()
	for i, b := range isBd {
		if b {
			uh[i] = gd(ip[i])[0]
		}
	}
	return
}

func (ls *LagrangeFESpace) L2Error(u ScalarFunction, uh []float64, q int) (float64, error) {
	return L2Error(ls, u.Vector(), uh, q)
}

func requireSimplex(m *mesh.Mesh, what string) error {
	if !m.Type.IsSimplex() {
		return fmt.Errorf("%s on %v cells: %w", what, m.Type, types.ErrUnsupportedOperation)
	}
	return nil
}
