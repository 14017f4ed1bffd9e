package fem

import (
	"fmt"

	"github.com/notargets/gofea/mesh"
	"github.com/notargets/gofea/quadrature"
	"github.com/notargets/gofea/space"
	"github.com/notargets/gofea/types"
	"github.com/notargets/gofea/utils"
)

// CellKernel adds the (test ldof, trial ldof) local matrix of cell c into local.
type CellKernel func(c int, local []float64)

/*
BilinearIntegrator produces the local matrix kernel of one term of a bilinear form. Kernel
precomputes everything that depends on the spaces, the returned kernel only reads it and may be
called concurrently for different cells. Integrators are values: the With* methods return a
modified copy and never touch the receiver.
*/
type BilinearIntegrator interface {
	Kernel(trial, test space.Space) (CellKernel, error)
}

const defaultQuadratureOrder = 3

// cellData is the per-rule geometry shared by the cell integrators.
type cellData struct {
	mesh   *mesh.Mesh
	rule   *quadrature.Rule
	W      *utils.Tensor // (NC, NQ)
	X      *utils.Tensor // (NC, NQ, GD), nil unless a coefficient needs positions
	NC, NQ int
}

func newCellData(m *mesh.Mesh, q int, needPoints bool) (cd cellData, err error) {
	if q <= 0 {
		q = defaultQuadratureOrder
	}
	cd = cellData{
		mesh: m,
		rule: m.QuadratureFormula(q),
		NC:   m.NumberOfCells(),
	}
	cd.NQ = cd.rule.NumberOfPoints()
	if cd.W, err = m.QuadratureMeasure(cd.rule); err != nil {
		return
	}
	if needPoints {
		cd.X = m.BCToPoint(cd.rule)
	}
	return
}

func (cd cellData) point(c, q int) []float64 {
	if cd.X == nil {
		return nil
	}
	GD := cd.X.Shape[2]
	off := (c*cd.NQ + q) * GD
	return cd.X.Data[off : off+GD]
}

func sameMesh(trial, test space.Space) (m *mesh.Mesh, err error) {
	if m = trial.Mesh(); m != test.Mesh() {
		err = fmt.Errorf("trial and test spaces live on different meshes: %w", types.ErrShapeMismatch)
	}
	return
}

func sameComponents(trial, test int) error {
	if trial != test {
		return fmt.Errorf("trial space with %d components, test space with %d: %w",
			trial, test, types.ErrShapeMismatch)
	}
	return nil
}

// ScalarMassIntegrator is the term coef * u . v, for scalar and vector spaces alike.
type ScalarMassIntegrator struct {
	Coef Coefficient
	Q    int
}

func NewScalarMassIntegrator(q int) ScalarMassIntegrator {
	return ScalarMassIntegrator{Coef: ConstantCoef(1), Q: q}
}

func (mi ScalarMassIntegrator) WithCoef(cf Coefficient) ScalarMassIntegrator {
	mi.Coef = cf
	return mi
}

func (mi ScalarMassIntegrator) Kernel(trial, test space.Space) (kern CellKernel, err error) {
	var (
		m    *mesh.Mesh
		cd   cellData
		U, V *utils.Tensor
	)
	if m, err = sameMesh(trial, test); err != nil {
		return
	}
	if cd, err = newCellData(m, mi.Q, mi.Coef.needsPoints()); err != nil {
		return
	}
	if err = mi.Coef.check(cd.NC, cd.NQ); err != nil {
		return
	}
	if U, err = trial.CellBasis(cd.rule); err != nil {
		return
	}
	if V, err = test.CellBasis(cd.rule); err != nil {
		return
	}
	if err = sameComponents(U.Shape[3], V.Shape[3]); err != nil {
		return
	}
	var (
		ls, lt, nc = U.Shape[2], V.Shape[2], U.Shape[3]
		coef       = mi.Coef
	)
	kern = func(c int, local []float64) {
		us, vs := U.Slab(c), V.Slab(c)
		for q := 0; q < cd.NQ; q++ {
			var (
				w  = cd.W.At(c, q) * coef.Eval(c, q, cd.point(c, q))
				uq = us[q*ls*nc : (q+1)*ls*nc]
				vq = vs[q*lt*nc : (q+1)*lt*nc]
			)
			for i := 0; i < lt; i++ {
				for j := 0; j < ls; j++ {
					local[i*ls+j] += w * utils.Dot(vq[i*nc:(i+1)*nc], uq[j*nc:(j+1)*nc])
				}
			}
		}
	}
	return
}

// ScalarDiffusionIntegrator is coef * grad u : grad v, componentwise for vector spaces.
type ScalarDiffusionIntegrator struct {
	Coef Coefficient
	Q    int
}

func NewScalarDiffusionIntegrator(q int) ScalarDiffusionIntegrator {
	return ScalarDiffusionIntegrator{Coef: ConstantCoef(1), Q: q}
}

func (di ScalarDiffusionIntegrator) WithCoef(cf Coefficient) ScalarDiffusionIntegrator {
	di.Coef = cf
	return di
}

func (di ScalarDiffusionIntegrator) Kernel(trial, test space.Space) (kern CellKernel, err error) {
	var (
		m    *mesh.Mesh
		cd   cellData
		U, V *utils.Tensor
	)
	if m, err = sameMesh(trial, test); err != nil {
		return
	}
	if cd, err = newCellData(m, di.Q, di.Coef.needsPoints()); err != nil {
		return
	}
	if err = di.Coef.check(cd.NC, cd.NQ); err != nil {
		return
	}
	if U, err = trial.CellGradBasis(cd.rule); err != nil {
		return
	}
	if V, err = test.CellGradBasis(cd.rule); err != nil {
		return
	}
	if err = sameComponents(U.Shape[3], V.Shape[3]); err != nil {
		return
	}
	var (
		ls, lt = U.Shape[2], V.Shape[2]
		n      = U.Shape[3] * U.Shape[4]
		coef   = di.Coef
	)
	kern = func(c int, local []float64) {
		us, vs := U.Slab(c), V.Slab(c)
		for q := 0; q < cd.NQ; q++ {
			var (
				w  = cd.W.At(c, q) * coef.Eval(c, q, cd.point(c, q))
				uq = us[q*ls*n : (q+1)*ls*n]
				vq = vs[q*lt*n : (q+1)*lt*n]
			)
			for i := 0; i < lt; i++ {
				for j := 0; j < ls; j++ {
					local[i*ls+j] += w * utils.Dot(vq[i*n:(i+1)*n], uq[j*n:(j+1)*n])
				}
			}
		}
	}
	return
}

// ScalarConvectionIntegrator is (b . grad u) v for a velocity field b of length GD.
type ScalarConvectionIntegrator struct {
	Coef VectorCoefficient
	Q    int
}

func NewScalarConvectionIntegrator(b VectorCoefficient, q int) ScalarConvectionIntegrator {
	return ScalarConvectionIntegrator{Coef: b, Q: q}
}

func (ci ScalarConvectionIntegrator) WithCoef(b VectorCoefficient) ScalarConvectionIntegrator {
	ci.Coef = b
	return ci
}

func (ci ScalarConvectionIntegrator) Kernel(trial, test space.Space) (kern CellKernel, err error) {
	var (
		m    *mesh.Mesh
		cd   cellData
		G, V *utils.Tensor
	)
	if m, err = sameMesh(trial, test); err != nil {
		return
	}
	if cd, err = newCellData(m, ci.Q, ci.Coef.needsPoints()); err != nil {
		return
	}
	if err = ci.Coef.check(cd.NC, cd.NQ, m.GD); err != nil {
		return
	}
	if G, err = trial.CellGradBasis(cd.rule); err != nil {
		return
	}
	if V, err = test.CellBasis(cd.rule); err != nil {
		return
	}
	if err = sameComponents(G.Shape[3], V.Shape[3]); err != nil {
		return
	}
	var (
		ls, lt, nc, GD = G.Shape[2], V.Shape[2], G.Shape[3], G.Shape[4]
		coef           = ci.Coef
	)
	kern = func(c int, local []float64) {
		var (
			gs, vs = G.Slab(c), V.Slab(c)
			bgrad  = make([]float64, ls*nc)
		)
		for q := 0; q < cd.NQ; q++ {
			var (
				w  = cd.W.At(c, q)
				b  = coef.Eval(c, q, cd.point(c, q))
				gq = gs[q*ls*nc*GD : (q+1)*ls*nc*GD]
				vq = vs[q*lt*nc : (q+1)*lt*nc]
			)
			for jk := range bgrad {
				bgrad[jk] = utils.Dot(b, gq[jk*GD:(jk+1)*GD])
			}
			for i := 0; i < lt; i++ {
				for j := 0; j < ls; j++ {
					local[i*ls+j] += w * utils.Dot(vq[i*nc:(i+1)*nc], bgrad[j*nc:(j+1)*nc])
				}
			}
		}
	}
	return
}

// ElasticHypothesis selects how a material behaves in the space dimension of the mesh
type ElasticHypothesis uint8

const (
	ThreeD ElasticHypothesis = iota
	PlaneStrain
	PlaneStress
)

func (h ElasticHypothesis) String() string {
	switch h {
	case ThreeD:
		return "3D"
	case PlaneStrain:
		return "PlaneStrain"
	case PlaneStress:
		return "PlaneStress"
	}
	return fmt.Sprintf("ElasticHypothesis(%d)", uint8(h))
}

func NewElasticHypothesis(label string) (h ElasticHypothesis, err error) {
	switch label {
	case "", "3D", "3d":
		return ThreeD, nil
	case "PlaneStrain", "plane_strain", "plane-strain":
		return PlaneStrain, nil
	case "PlaneStress", "plane_stress", "plane-stress":
		return PlaneStress, nil
	}
	err = fmt.Errorf("elastic hypothesis %q: %w", label, types.ErrUnsupportedOperation)
	return
}

type LinearElasticMaterial struct {
	Lambda, Mu float64
	Hypothesis ElasticHypothesis
}

// NewLinearElasticMaterial converts Young's modulus and Poisson's ratio to Lame parameters.
func NewLinearElasticMaterial(E, nu float64, h ElasticHypothesis) LinearElasticMaterial {
	return LinearElasticMaterial{
		Lambda:     E * nu / ((1 + nu) * (1 - 2*nu)),
		Mu:         E / (2 * (1 + nu)),
		Hypothesis: h,
	}
}

// EffectiveLambda is the first Lame parameter entering the stiffness, reduced under plane stress.
func (lm LinearElasticMaterial) EffectiveLambda() float64 {
	if lm.Hypothesis == PlaneStress {
		return 2 * lm.Lambda * lm.Mu / (lm.Lambda + 2*lm.Mu)
	}
	return lm.Lambda
}

func (lm LinearElasticMaterial) check(GD int) error {
	want := 2
	if lm.Hypothesis == ThreeD {
		want = 3
	}
	if GD != want {
		return fmt.Errorf("%v material in %dD: %w", lm.Hypothesis, GD, types.ErrUnsupportedDimension)
	}
	return nil
}

// Stress returns lambda tr(eps) I + 2 mu eps for the displacement gradient g, (GD, GD) row-major.
func (lm LinearElasticMaterial) Stress(g []float64, GD int) (s []float64) {
	var (
		lambda = lm.EffectiveLambda()
		tr     float64
	)
	for k := 0; k < GD; k++ {
		tr += g[k*GD+k]
	}
	s = make([]float64, GD*GD)
	for k := 0; k < GD; k++ {
		for l := 0; l < GD; l++ {
			s[k*GD+l] = lm.Mu * (g[k*GD+l] + g[l*GD+k])
		}
		s[k*GD+k] += lambda * tr
	}
	return
}

// LinearElasticIntegrator is sigma(u) : eps(v) on a vector space with GD components.
type LinearElasticIntegrator struct {
	Material LinearElasticMaterial
	Q        int
}

func NewLinearElasticIntegrator(material LinearElasticMaterial, q int) LinearElasticIntegrator {
	return LinearElasticIntegrator{Material: material, Q: q}
}

func (ei LinearElasticIntegrator) WithMaterial(material LinearElasticMaterial) LinearElasticIntegrator {
	ei.Material = material
	return ei
}

func (ei LinearElasticIntegrator) Kernel(trial, test space.Space) (kern CellKernel, err error) {
	var (
		m    *mesh.Mesh
		cd   cellData
		U, V *utils.Tensor
	)
	if m, err = sameMesh(trial, test); err != nil {
		return
	}
	if err = ei.Material.check(m.GD); err != nil {
		return
	}
	if cd, err = newCellData(m, ei.Q, false); err != nil {
		return
	}
	if U, err = trial.CellGradBasis(cd.rule); err != nil {
		return
	}
	if V, err = test.CellGradBasis(cd.rule); err != nil {
		return
	}
	if U.Shape[3] != m.GD || V.Shape[3] != m.GD {
		err = fmt.Errorf("elasticity needs %d component spaces, have %d and %d: %w",
			m.GD, U.Shape[3], V.Shape[3], types.ErrShapeMismatch)
		return
	}
	var (
		ls, lt, GD = U.Shape[2], V.Shape[2], m.GD
		n          = GD * GD
		lambda     = ei.Material.EffectiveLambda()
		mu         = ei.Material.Mu
	)
	kern = func(c int, local []float64) {
		var (
			us, vs = U.Slab(c), V.Slab(c)
			divU   = make([]float64, ls)
			symU   = make([]float64, ls*n)
		)
		for q := 0; q < cd.NQ; q++ {
			var (
				w  = cd.W.At(c, q)
				uq = us[q*ls*n : (q+1)*ls*n]
				vq = vs[q*lt*n : (q+1)*lt*n]
			)
			for j := 0; j < ls; j++ {
				g := uq[j*n : (j+1)*n]
				divU[j] = 0
				for k := 0; k < GD; k++ {
					divU[j] += g[k*GD+k]
					for l := 0; l < GD; l++ {
						symU[j*n+k*GD+l] = g[k*GD+l] + g[l*GD+k]
					}
				}
			}
			for i := 0; i < lt; i++ {
				var (
					g    = vq[i*n : (i+1)*n]
					divV float64
				)
				for k := 0; k < GD; k++ {
					divV += g[k*GD+k]
				}
				for j := 0; j < ls; j++ {
					local[i*ls+j] += w * (lambda*divV*divU[j] + mu*utils.Dot(g, symU[j*n:(j+1)*n]))
				}
			}
		}
	}
	return
}

/*
PressWorkIntegrator couples a scalar pressure trial space to a vector test space through
coef * p div v. Stokes systems use it with coef = -1.
*/
type PressWorkIntegrator struct {
	Coef Coefficient
	Q    int
}

func NewPressWorkIntegrator(q int) PressWorkIntegrator {
	return PressWorkIntegrator{Coef: ConstantCoef(1), Q: q}
}

func (pi PressWorkIntegrator) WithCoef(cf Coefficient) PressWorkIntegrator {
	pi.Coef = cf
	return pi
}

func (pi PressWorkIntegrator) Kernel(trial, test space.Space) (kern CellKernel, err error) {
	var (
		m    *mesh.Mesh
		cd   cellData
		P, G *utils.Tensor
	)
	if m, err = sameMesh(trial, test); err != nil {
		return
	}
	if cd, err = newCellData(m, pi.Q, pi.Coef.needsPoints()); err != nil {
		return
	}
	if err = pi.Coef.check(cd.NC, cd.NQ); err != nil {
		return
	}
	if P, err = trial.CellBasis(cd.rule); err != nil {
		return
	}
	if G, err = test.CellGradBasis(cd.rule); err != nil {
		return
	}
	if P.Shape[3] != 1 || G.Shape[3] != m.GD {
		err = fmt.Errorf("pressure work between a %d component trial and a %d component test space: %w",
			P.Shape[3], G.Shape[3], types.ErrShapeMismatch)
		return
	}
	var (
		ls, lt, GD = P.Shape[2], G.Shape[2], m.GD
		n          = GD * GD
		coef       = pi.Coef
	)
	kern = func(c int, local []float64) {
		ps, gs := P.Slab(c), G.Slab(c)
		for q := 0; q < cd.NQ; q++ {
			var (
				w  = cd.W.At(c, q) * coef.Eval(c, q, cd.point(c, q))
				pq = ps[q*ls : (q+1)*ls]
				gq = gs[q*lt*n : (q+1)*lt*n]
			)
			for i := 0; i < lt; i++ {
				var div float64
				for k := 0; k < GD; k++ {
					div += gq[i*n+k*GD+k]
				}
				for j := 0; j < ls; j++ {
					local[i*ls+j] += w * div * pq[j]
				}
			}
		}
	}
	return
}
