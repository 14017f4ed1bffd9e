package space

import (
	"fmt"
	"strings"

	"github.com/notargets/gofea/mesh"
	"github.com/notargets/gofea/quadrature"
	"github.com/notargets/gofea/types"
	"github.com/notargets/gofea/utils"
)

// DofOrdering lays out the components of a vector space
type DofOrdering int

const (
	// DofMajor keeps each component contiguous: global c*gdof + i, local c*ldof + l
	DofMajor DofOrdering = iota
	// ComponentMajor interleaves components: global i*GD + c, local l*GD + c
	ComponentMajor
)

func (o DofOrdering) String() string {
	if o == ComponentMajor {
		return "ComponentMajor"
	}
	return "DofMajor"
}

func NewDofOrdering(label string) (o DofOrdering, err error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "dof", "dofmajor", "dof-major", "dof_major":
		return DofMajor, nil
	case "component", "componentmajor", "component-major", "component_major", "gd":
		return ComponentMajor, nil
	}
	err = fmt.Errorf("dof ordering %q: %w", label, types.ErrUnsupportedOperation)
	return
}

/*
TensorFunctionSpace replicates a scalar space over the GD components of a vector field. Each
vector basis function is a scalar basis function in exactly one component.
*/
type TensorFunctionSpace struct {
	Scalar   ScalarSpace
	GD       int
	Ordering DofOrdering
	cell2dof [][]int
	cache    tensorCache
}

func NewTensorFunctionSpace(s ScalarSpace, ordering DofOrdering) (ts *TensorFunctionSpace) {
	ts = &TensorFunctionSpace{
		Scalar:   s,
		GD:       s.Mesh().GD,
		Ordering: ordering,
	}
	var (
		sc2d = s.CellToDof()
		ldof = s.NumberOfLocalDofs()
	)
	ts.cell2dof = make([][]int, len(sc2d))
	for cell, c2d := range sc2d {
		ts.cell2dof[cell] = make([]int, ts.GD*ldof)
		for l, i := range c2d {
			for c := 0; c < ts.GD; c++ {
				ts.cell2dof[cell][ts.LocalIndex(l, c)] = ts.GlobalIndex(i, c)
			}
		}
	}
	return
}

// LocalIndex places component c of scalar local dof l.
func (ts *TensorFunctionSpace) LocalIndex(l, c int) int {
	if ts.Ordering == ComponentMajor {
		return l*ts.GD + c
	}
	return c*ts.Scalar.NumberOfLocalDofs() + l
}

// GlobalIndex places component c of scalar global dof i.
func (ts *TensorFunctionSpace) GlobalIndex(i, c int) int {
	if ts.Ordering == ComponentMajor {
		return i*ts.GD + c
	}
	return c*ts.Scalar.NumberOfGlobalDofs() + i
}

func (ts *TensorFunctionSpace) Mesh() *mesh.Mesh        { return ts.Scalar.Mesh() }
func (ts *TensorFunctionSpace) Components() int         { return ts.GD }
func (ts *TensorFunctionSpace) NumberOfLocalDofs() int  { return ts.GD * ts.Scalar.NumberOfLocalDofs() }
func (ts *TensorFunctionSpace) NumberOfGlobalDofs() int { return ts.GD * ts.Scalar.NumberOfGlobalDofs() }
func (ts *TensorFunctionSpace) CellToDof() [][]int      { return ts.cell2dof }

// Basis is the block diagonal (NQ, GD*ldof, GD) table.
func (ts *TensorFunctionSpace) Basis(rule *quadrature.Rule) (B *utils.Tensor, err error) {
	phi, err := ts.Scalar.Basis(rule)
	if err != nil {
		return
	}
	var (
		NQ, ldof = phi.Dims()
		GD       = ts.GD
	)
	B = utils.NewTensor([]int{NQ, GD * ldof, GD})
	for q := 0; q < NQ; q++ {
		for l := 0; l < ldof; l++ {
			for c := 0; c < GD; c++ {
				B.Set(phi.At(q, l), q, ts.LocalIndex(l, c), c)
			}
		}
	}
	return
}

// GradBasis is (NC, NQ, GD*ldof, GD, GD), entry [.., j, c, :] the gradient of component c.
func (ts *TensorFunctionSpace) GradBasis(rule *quadrature.Rule) (G *utils.Tensor, err error) {
	v, err := ts.cache.get(rule, "grad", func() (any, error) {
		S, err := ts.Scalar.GradBasis(rule)
		if err != nil {
			return nil, err
		}
		var (
			NC, NQ, ldof, GD = S.Shape[0], S.Shape[1], S.Shape[2], ts.GD
			G                = utils.NewTensor([]int{NC, NQ, GD * ldof, GD, GD})
		)
		for cell := 0; cell < NC; cell++ {
			var (
				ss = S.Slab(cell)
				gs = G.Slab(cell)
			)
			for q := 0; q < NQ; q++ {
				for l := 0; l < ldof; l++ {
					grad := ss[(q*ldof+l)*GD : (q*ldof+l+1)*GD]
					for c := 0; c < GD; c++ {
						j := ts.LocalIndex(l, c)
						copy(gs[((q*GD*ldof+j)*GD+c)*GD:], grad)
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

// DivBasis is (NC, NQ, GD*ldof).
func (ts *TensorFunctionSpace) DivBasis(rule *quadrature.Rule) (D *utils.Tensor, err error) {
	S, err := ts.Scalar.GradBasis(rule)
	if err != nil {
		return
	}
	var (
		NC, NQ, ldof, GD = S.Shape[0], S.Shape[1], S.Shape[2], ts.GD
	)
	D = utils.NewTensor([]int{NC, NQ, GD * ldof})
	for cell := 0; cell < NC; cell++ {
		for q := 0; q < NQ; q++ {
			for l := 0; l < ldof; l++ {
				for c := 0; c < GD; c++ {
					D.Set(S.At(cell, q, l, c), cell, q, ts.LocalIndex(l, c))
				}
			}
		}
	}
	return
}

func (ts *TensorFunctionSpace) CellBasis(rule *quadrature.Rule) (B *utils.Tensor, err error) {
	ref, err := ts.Basis(rule)
	if err != nil {
		return
	}
	v, err := ts.cache.get(rule, "cell", func() (any, error) {
		var (
			NC = ts.Mesh().NumberOfCells()
			B  = utils.NewTensor(append([]int{NC}, ref.Shape...))
		)
		for c := 0; c < NC; c++ {
			copy(B.Slab(c), ref.Data)
		}
		return B, nil
	})
	if err != nil {
		return
	}
	return v.(*utils.Tensor), nil
}

func (ts *TensorFunctionSpace) CellGradBasis(rule *quadrature.Rule) (*utils.Tensor, error) {
	return ts.GradBasis(rule)
}

func (ts *TensorFunctionSpace) IsBoundaryDof(threshold mesh.Threshold) (isBd []bool, err error) {
	var sb []bool
	if sb, err = ts.Scalar.IsBoundaryDof(threshold); err != nil {
		return
	}
	isBd = make([]bool, ts.NumberOfGlobalDofs())
	for i, b := range sb {
		for c := 0; c < ts.GD; c++ {
			isBd[ts.GlobalIndex(i, c)] = b
		}
	}
	return
}

// Interpolate works through the scalar space one component at a time.
func (ts *TensorFunctionSpace) Interpolate(f VectorFunction) (uh []float64) {
	uh = make([]float64, ts.NumberOfGlobalDofs())
	for c := 0; c < ts.GD; c++ {
		comp := c
		for i, v := range ts.Scalar.Interpolate(func(x []float64) float64 { return f(x)[comp] }) {
			uh[ts.GlobalIndex(i, c)] = v
		}
	}
	return
}

func (ts *TensorFunctionSpace) BoundaryInterpolate(gd VectorFunction, uh []float64, threshold mesh.Threshold) (isBd []bool, err error) {
	if err = checkCoefficients(ts, uh); err != nil {
		return
	}
	if isBd, err = ts.IsBoundaryDof(threshold); err != nil {
		return
	}
	full := ts.Interpolate(gd)
	for i, b := range isBd {
		if b {
			uh[i] = full[i]
		}
	}
	return
}

// Split returns the scalar coefficient vector of every component.
func (ts *TensorFunctionSpace) Split(uh []float64) (comps [][]float64) {
	gdof := ts.Scalar.NumberOfGlobalDofs()
	comps = make([][]float64, ts.GD)
	for c := range comps {
		comps[c] = make([]float64, gdof)
		for i := range comps[c] {
			comps[c][i] = uh[ts.GlobalIndex(i, c)]
		}
	}
	return
}

func (ts *TensorFunctionSpace) L2Error(u VectorFunction, uh []float64, q int) (float64, error) {
	return L2Error(ts, u, uh, q)
}
