package quadrature

import (
	"fmt"
)

/*
Rule is a quadrature point set on a reference cell. On simplices each point is a barycentric
tuple of length TD+1, on quadrangles and hexahedra it is a coordinate in [0,1]^TD. The weights
sum to one, so the physical measure of the cell scales them to an integral.
*/
type Rule struct {
	Points  [][]float64
	Weights []float64
	Order   int // Points per direction
	Simplex bool
}

func (r *Rule) NumberOfPoints() int { return len(r.Weights) }

// Dim is the length of each point: TD+1 for simplex rules, TD otherwise.
func (r *Rule) Dim() int {
	if len(r.Points) == 0 {
		return 0
	}
	return len(r.Points[0])
}

func (r *Rule) String() string {
	return fmt.Sprintf("Rule(order %d, %d points, dim %d)", r.Order, r.NumberOfPoints(), r.Dim())
}

// gaussUnit maps a Gauss-Jacobi rule from [-1,1] onto [0,1]
func gaussUnit(alpha, beta float64, q int) (x, w []float64) {
	var (
		X, W = JacobiGQ(alpha, beta, q-1)
		sum  float64
	)
	x, w = make([]float64, q), make([]float64, q)
	for i := range X {
		x[i] = 0.5 * (X[i] + 1)
		sum += W[i]
	}
	for i := range W {
		w[i] = W[i] / sum
	}
	return
}

func clampOrder(q int) int {
	if q < 1 {
		return 1
	}
	return q
}

// IntervalRule is q point Gauss-Legendre in barycentric form, exact to degree 2q-1.
func IntervalRule(q int) (r *Rule) {
	q = clampOrder(q)
	x, w := gaussUnit(0, 0, q)
	r = &Rule{Order: q, Simplex: true, Weights: w, Points: make([][]float64, q)}
	for i, xi := range x {
		r.Points[i] = []float64{1 - xi, xi}
	}
	return
}

/*
TriangleRule is the collapsed (Stroud conical) product rule with q points per direction,
exact to degree 2q-1. With lambda1 = s and lambda2 = t(1-s), the Jacobian (1-s) is absorbed in
a Gauss-Jacobi(1,0) rule in s.
*/
func TriangleRule(q int) (r *Rule) {
	q = clampOrder(q)
	var (
		s, ws = gaussUnit(1, 0, q)
		t, wt = gaussUnit(0, 0, q)
	)
	r = &Rule{Order: q, Simplex: true}
	for i := range s {
		for j := range t {
			l1 := s[i]
			l2 := t[j] * (1 - s[i])
			r.Points = append(r.Points, []float64{1 - l1 - l2, l1, l2})
			r.Weights = append(r.Weights, ws[i]*wt[j])
		}
	}
	return
}

// TetrahedronRule collapses the unit cube with Jacobian (1-s)^2 (1-t).
func TetrahedronRule(q int) (r *Rule) {
	q = clampOrder(q)
	var (
		s, ws = gaussUnit(2, 0, q)
		t, wt = gaussUnit(1, 0, q)
		u, wu = gaussUnit(0, 0, q)
	)
	r = &Rule{Order: q, Simplex: true}
	for i := range s {
		for j := range t {
			for k := range u {
				l1 := s[i]
				l2 := t[j] * (1 - s[i])
				l3 := u[k] * (1 - s[i]) * (1 - t[j])
				r.Points = append(r.Points, []float64{1 - l1 - l2 - l3, l1, l2, l3})
				r.Weights = append(r.Weights, ws[i]*wt[j]*wu[k])
			}
		}
	}
	return
}

// TensorRule is the TD fold Gauss-Legendre product on [0,1]^TD, x slowest.
func TensorRule(q, TD int) (r *Rule) {
	q = clampOrder(q)
	var (
		x, w = gaussUnit(0, 0, q)
		N    = 1
	)
	for d := 0; d < TD; d++ {
		N *= q
	}
	r = &Rule{Order: q, Points: make([][]float64, N), Weights: make([]float64, N)}
	for n := 0; n < N; n++ {
		var (
			pt  = make([]float64, TD)
			wgt = 1.
			rem = n
		)
		for d := TD - 1; d >= 0; d-- {
			i := rem % q
			rem /= q
			pt[d] = x[i]
			wgt *= w[i]
		}
		r.Points[n] = pt
		r.Weights[n] = wgt
	}
	return
}

func QuadrangleRule(q int) *Rule { return TensorRule(q, 2) }

func HexahedronRule(q int) *Rule { return TensorRule(q, 3) }
