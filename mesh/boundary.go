package mesh

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/gofea/basis"
	"github.com/notargets/gofea/quadrature"
)

// FaceQuadrature carries one boundary face's integration data as seen from its cell.
type FaceQuadrature struct {
	Face, Cell, LocalFace int
	Points                [][]float64 // reference points in the cell, same layout as a cell rule
	Phys                  [][]float64
	Weights               []float64 // rule weights times the face measure
	Normal                []float64 // outward unit normal, nil when GD > TD
}

// BoundaryFaces lists boundary faces, restricted by threshold on the face barycenter when given.
func (m *Mesh) BoundaryFaces(threshold Threshold) (faces []int) {
	for f, isBd := range m.BoundaryFaceFlag() {
		if !isBd {
			continue
		}
		if threshold != nil && !threshold(m.barycenter(m.Faces[f])) {
			continue
		}
		faces = append(faces, f)
	}
	return
}

/*
BoundaryFaceQuadrature builds quadrature data on boundary faces selected by threshold, with q
points per direction on each face.
*/
func (m *Mesh) BoundaryFaceQuadrature(q int, threshold Threshold) (fqs []FaceQuadrature, err error) {
	var (
		rule = m.FaceQuadratureFormula(q)
		et   = m.Type
	)
	for _, f := range m.BoundaryFaces(threshold) {
		var (
			c, lf = m.FaceToCell[f][0], m.FaceToCell[f][1]
			fv    = et.LocalFaces()[lf]
			fq    = FaceQuadrature{Face: f, Cell: c, LocalFace: lf}
		)
		if fq.Points, fq.Weights, err = m.faceReference(c, fv, rule); err != nil {
			return
		}
		for _, pt := range fq.Points {
			fq.Phys = append(fq.Phys, m.ReferenceToPhysical(c, pt))
		}
		if m.GD == m.TD {
			fq.Normal = m.outwardNormal(c, fv)
		}
		fqs = append(fqs, fq)
	}
	return
}

// faceReference lifts face rule points into the cell and scales weights by the face measure.
func (m *Mesh) faceReference(c int, fv []int, rule *quadrature.Rule) (pts [][]float64, w []float64, err error) {
	var (
		et   = m.Type
		cell = m.Cells[c]
		FD   = m.TD - 1
	)
	pts = make([][]float64, rule.NumberOfPoints())
	w = make([]float64, rule.NumberOfPoints())
	if et.IsSimplex() {
		var vol = 1.
		if FD > 0 {
			J := mat.NewDense(m.GD, FD, nil)
			for k := 1; k <= FD; k++ {
				for d := 0; d < m.GD; d++ {
					J.Set(d, k-1, m.Nodes[cell[fv[k]]][d]-m.Nodes[cell[fv[0]]][d])
				}
			}
			var JtJ mat.Dense
			JtJ.Mul(J.T(), J)
			vol = math.Sqrt(mat.Det(&JtJ))
			for k := 2; k <= FD; k++ {
				vol /= float64(k)
			}
		}
		for i, fb := range rule.Points {
			bc := make([]float64, m.TD+1)
			for k, b := range fb {
				bc[fv[k]] = b
			}
			pts[i] = bc
			w[i] = rule.Weights[i] * vol
		}
		return
	}
	phi, err := basis.TensorProductShapeFunction(rule.Points, 1)
	if err != nil {
		return
	}
	dphi, err := basis.TensorProductGradShapeFunction(rule.Points, 1)
	if err != nil {
		return
	}
	for i := range rule.Points {
		ref := make([]float64, m.TD)
		J := mat.NewDense(m.GD, FD, nil)
		for k, v := range fv {
			rv := et.ReferenceVertex(v)
			for t := range ref {
				ref[t] += phi.At(i, k) * rv[t]
			}
			for d := 0; d < m.GD; d++ {
				for t := 0; t < FD; t++ {
					J.Set(d, t, J.At(d, t)+m.Nodes[cell[v]][d]*dphi.At(i, k, t))
				}
			}
		}
		var JtJ mat.Dense
		JtJ.Mul(J.T(), J)
		pts[i] = ref
		w[i] = rule.Weights[i] * math.Sqrt(mat.Det(&JtJ))
	}
	return
}

func (m *Mesh) outwardNormal(c int, fv []int) (n []float64) {
	var (
		cell = m.Cells[c]
		x0   = m.Nodes[cell[fv[0]]]
	)
	n = make([]float64, m.GD)
	switch m.TD {
	case 1:
		n[0] = 1
	case 2:
		x1 := m.Nodes[cell[fv[1]]]
		n[0], n[1] = x1[1]-x0[1], -(x1[0] - x0[0])
	case 3:
		a, b := m.Nodes[cell[fv[1]]], m.Nodes[cell[fv[2]]]
		u := []float64{a[0] - x0[0], a[1] - x0[1], a[2] - x0[2]}
		v := []float64{b[0] - x0[0], b[1] - x0[1], b[2] - x0[2]}
		n[0] = u[1]*v[2] - u[2]*v[1]
		n[1] = u[2]*v[0] - u[0]*v[2]
		n[2] = u[0]*v[1] - u[1]*v[0]
	}
	var (
		fverts = make([]int, len(fv))
		norm   float64
		dot    float64
	)
	for k, v := range fv {
		fverts[k] = cell[v]
	}
	xf, xc := m.barycenter(fverts), m.barycenter(cell)
	for d := range n {
		dot += n[d] * (xf[d] - xc[d])
		norm += n[d] * n[d]
	}
	norm = math.Sqrt(norm)
	if dot < 0 {
		norm = -norm
	}
	for d := range n {
		n[d] /= norm
	}
	return
}
