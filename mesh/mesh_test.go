package mesh

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gofea/types"
)

// Helper function to create temporary test files
func createTempMshFile(t *testing.T, content string) string {
	t.Helper()
	tmpFile := filepath.Join(t.TempDir(), "test.msh")
	require.NoError(t, os.WriteFile(tmpFile, []byte(content), 0644))
	return tmpFile
}

func sum(v []float64) (s float64) {
	for _, x := range v {
		s += x
	}
	return
}

func TestBoxMeshCounts(t *testing.T) {
	tests := []struct {
		et                                   ElementType
		n                                    []int
		nodes, cells, edges, faces, boundary int
	}{
		{Interval, []int{4}, 5, 4, 4, 5, 2},
		{Triangle, []int{2, 2}, 9, 8, 16, 16, 8},
		{Quadrangle, []int{2, 2}, 9, 4, 12, 12, 8},
		{Tetrahedron, []int{1, 1, 1}, 8, 6, 19, 18, 12},
		{Hexahedron, []int{2, 2, 2}, 27, 8, 54, 36, 24},
	}
	for _, tt := range tests {
		t.Run(tt.et.String(), func(t *testing.T) {
			m, err := NewBoxMesh(tt.et, nil, tt.n...)
			require.NoError(t, err)
			assert.Equal(t, tt.nodes, m.NumberOfNodes())
			assert.Equal(t, tt.cells, m.NumberOfCells())
			assert.Equal(t, tt.edges, m.NumberOfEdges())
			assert.Equal(t, tt.faces, m.NumberOfFaces())
			assert.Equal(t, tt.boundary, len(m.BoundaryFaces(nil)))
			nf, err := m.NumberOfEntities(m.TD - 1)
			require.NoError(t, err)
			assert.Equal(t, tt.faces, nf)

			// Neighbors are symmetric and share the face
			for c := range m.Cells {
				for lf, nb := range m.EToE[c] {
					f := m.EToF[c][lf]
					if nb < 0 {
						assert.Equal(t, -1, m.FaceToCell[f][2])
						continue
					}
					assert.Contains(t, m.EToE[nb], c)
					fc := m.FaceToCell[f]
					assert.ElementsMatch(t, []int{c, nb}, []int{fc[0], fc[2]})
				}
			}
		})
	}

	_, err := NewBoxMesh(ElementType(9), nil)
	assert.True(t, errors.Is(err, types.ErrUnknownElementType))
	_, err = NewBoxMesh(Triangle, nil, 0, 2)
	assert.Error(t, err)
	_, err = NewBoxMesh(Hexahedron, []float64{0, 1})
	assert.True(t, errors.Is(err, types.ErrShapeMismatch))
}

func TestCellMeasure(t *testing.T) {
	for _, et := range []ElementType{Interval, Triangle, Quadrangle, Tetrahedron, Hexahedron} {
		box := []float64{0, 2, -1, 1, 0, 0.5}[:2*et.TD()]
		vol := 1.
		for t := 0; t < et.TD(); t++ {
			vol *= box[2*t+1] - box[2*t]
		}
		m, err := NewBoxMesh(et, box, 2, 3, 2)
		require.NoError(t, err)
		measure, err := m.CellMeasure()
		require.NoError(t, err)
		assert.InDelta(t, vol, sum(measure), 1e-12, et.String())
		for _, v := range measure {
			assert.Greater(t, v, 0.)
		}
		W, err := m.QuadratureMeasure(m.QuadratureFormula(3))
		require.NoError(t, err)
		assert.InDelta(t, vol, sum(W.Data), 1e-12, et.String())
	}
}

func TestGradLambda(t *testing.T) {
	m, err := NewMesh(Triangle, [][]float64{{0, 0}, {2, 0}, {0, 1}}, [][]int{{0, 1, 2}})
	require.NoError(t, err)
	gl, err := m.GradLambda()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 2}, gl.Shape)
	assert.InDeltaSlice(t, []float64{-0.5, -1, 0.5, 0, 0, 1}, gl.Data, 1e-14)

	// A triangle embedded in 3D keeps the surface gradients
	m3, err := NewMesh(Triangle, [][]float64{{0, 0, 1}, {2, 0, 1}, {0, 1, 1}}, [][]int{{0, 1, 2}})
	require.NoError(t, err)
	gl3, err := m3.GradLambda()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{-0.5, -1, 0, 0.5, 0, 0, 0, 1, 0}, gl3.Data, 1e-14)
	measure, err := m3.CellMeasure()
	require.NoError(t, err)
	assert.InDelta(t, 1., measure[0], 1e-14)

	tet, err := NewBoxMesh(Tetrahedron, nil, 1, 1, 1)
	require.NoError(t, err)
	gl, err = tet.GradLambda()
	require.NoError(t, err)
	for c := 0; c < tet.NumberOfCells(); c++ {
		for d := 0; d < 3; d++ {
			var s float64
			for k := 0; k < 4; k++ {
				s += gl.At(c, k, d)
			}
			assert.InDelta(t, 0., s, 1e-14)
		}
	}

	hex, err := NewBoxMesh(Hexahedron, nil)
	require.NoError(t, err)
	_, err = hex.GradLambda()
	assert.True(t, errors.Is(err, types.ErrUnsupportedOperation))
}

func TestGradTransform(t *testing.T) {
	m, err := NewBoxMesh(Quadrangle, []float64{0, 2, 0, 1})
	require.NoError(t, err)
	rule := m.QuadratureFormula(2)
	T, err := m.GradTransform(rule)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 4, 2, 2}, T.Shape)
	for q := 0; q < 4; q++ {
		assert.InDeltaSlice(t, []float64{0.5, 0, 0, 1}, T.Slab(0)[q*4:(q+1)*4], 1e-14)
	}
	X := m.BCToPoint(rule)
	for q, pt := range rule.Points {
		assert.InDelta(t, 2*pt[0], X.At(0, q, 0), 1e-14)
		assert.InDelta(t, pt[1], X.At(0, q, 1), 1e-14)
	}

	tri, err := NewBoxMesh(Triangle, nil, 2, 2)
	require.NoError(t, err)
	T, err = tri.GradTransform(tri.QuadratureFormula(2))
	require.NoError(t, err)
	gl, err := tri.GradLambda()
	require.NoError(t, err)
	assert.Equal(t, []int{8, 4, 3, 2}, T.Shape)
	assert.Equal(t, gl.Slab(5), T.Slab(5)[2*6:3*6])
}

func TestBoundaryFaceQuadrature(t *testing.T) {
	tests := []struct {
		et      ElementType
		n       []int
		area    float64 // boundary measure of the unit box
		xMoment float64 // integral of x over the boundary
	}{
		{Interval, []int{3}, 2, 1},
		{Triangle, []int{2, 2}, 4, 2},
		{Quadrangle, []int{3, 2}, 4, 2},
		{Tetrahedron, []int{1, 2, 1}, 6, 3},
		{Hexahedron, []int{2, 1, 2}, 6, 3},
	}
	for _, tt := range tests {
		t.Run(tt.et.String(), func(t *testing.T) {
			m, err := NewBoxMesh(tt.et, nil, tt.n...)
			require.NoError(t, err)
			fqs, err := m.BoundaryFaceQuadrature(2, nil)
			require.NoError(t, err)
			var area, moment float64
			for _, fq := range fqs {
				for q, w := range fq.Weights {
					area += w
					moment += w * fq.Phys[q][0]
				}
				// Outward normals of a box are axis aligned
				var nn float64
				for _, v := range fq.Normal {
					nn += v * v
				}
				assert.InDelta(t, 1., nn, 1e-12)
				x := m.barycenter(m.Faces[fq.Face])
				for d := range x {
					switch {
					case math.Abs(x[d]) < 1e-12:
						assert.InDelta(t, -1., fq.Normal[d], 1e-12)
					case math.Abs(x[d]-1) < 1e-12:
						assert.InDelta(t, 1., fq.Normal[d], 1e-12)
					}
				}
			}
			assert.InDelta(t, tt.area, area, 1e-12)
			assert.InDelta(t, tt.xMoment, moment, 1e-12)

			left, err := m.BoundaryFaceQuadrature(2, func(x []float64) bool { return x[0] < 1e-12 })
			require.NoError(t, err)
			var leftArea float64
			for _, fq := range left {
				leftArea += sum(fq.Weights)
			}
			assert.InDelta(t, 1., leftArea, 1e-12)
		})
	}
}

func TestEntityIndex(t *testing.T) {
	m, err := NewBoxMesh(Tetrahedron, nil, 1, 1, 1)
	require.NoError(t, err)
	for e, ev := range m.Edges {
		idx, err := m.EntityIndex(1, []int{ev[1], ev[0]})
		require.NoError(t, err)
		assert.Equal(t, e, idx)
	}
	for f, fv := range m.Faces {
		idx, err := m.EntityIndex(2, []int{fv[2], fv[0], fv[1]})
		require.NoError(t, err)
		assert.Equal(t, f, idx)
	}
	_, err = m.EntityIndex(3, []int{0, 1, 2, 3})
	assert.True(t, errors.Is(err, types.ErrUnsupportedOperation))
	// Opposite corners of the cube share no edge
	_, err = m.EntityIndex(1, []int{1, 6})
	assert.Error(t, err)

	c2e, err := m.CellToEntity(1)
	require.NoError(t, err)
	assert.Equal(t, 6, len(c2e[0]))
	_, err = m.Entity(4)
	assert.True(t, errors.Is(err, types.ErrUnsupportedDimension))
}

func TestReadGmsh22(t *testing.T) {
	t.Run("triangles", func(t *testing.T) {
		content := `$MeshFormat
2.2 0 8
$EndMeshFormat
$PhysicalNames
1
1 1 "wall"
$EndPhysicalNames
$Nodes
4
10 0.0 0.0 0.0
25 1.0 0.0 0.0
30 1.0 1.0 0.0
100 0.0 1.0 0.0
$EndNodes
$Elements
3
1 1 2 1 1 10 25
2 2 2 0 1 10 25 30
3 2 2 0 1 10 30 100
$EndElements`
		m, err := ReadMeshFile(createTempMshFile(t, content))
		require.NoError(t, err)
		assert.Equal(t, Triangle, m.Type)
		assert.Equal(t, 2, m.GD)
		assert.Equal(t, 4, m.NumberOfNodes())
		assert.Equal(t, [][]int{{0, 1, 2}, {0, 2, 3}}, m.Cells)
		assert.Equal(t, 5, m.NumberOfEdges())
		measure, err := m.CellMeasure()
		require.NoError(t, err)
		assert.InDelta(t, 1., sum(measure), 1e-14)
	})

	t.Run("hexahedron", func(t *testing.T) {
		content := `$MeshFormat
2.2 0 8
$EndMeshFormat
$Nodes
8
1 0 0 0
2 1 0 0
3 1 1 0
4 0 1 0
5 0 0 1
6 1 0 1
7 1 1 1
8 0 1 1
$EndNodes
$Elements
1
1 5 2 0 1 1 2 3 4 5 6 7 8
$EndElements`
		m, err := ReadMeshFile(createTempMshFile(t, content))
		require.NoError(t, err)
		assert.Equal(t, Hexahedron, m.Type)
		assert.Equal(t, 3, m.GD)
		for v, n := range m.Cells[0] {
			assert.Equal(t, Hexahedron.ReferenceVertex(v), m.Nodes[n])
		}
		measure, err := m.CellMeasure()
		require.NoError(t, err)
		assert.InDelta(t, 1., measure[0], 1e-14)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := ReadMeshFile("mesh.su2")
		assert.Error(t, err)
		_, err = ReadGmsh22(createTempMshFile(t, "$MeshFormat\n4.1 0 8\n$EndMeshFormat\n"))
		assert.Error(t, err)
		_, err = ReadGmsh22(createTempMshFile(t, "$MeshFormat\n2.2 0 8\n$EndMeshFormat\n$Nodes\n1\n1 0 0 0\n$EndNodes\n"))
		assert.Error(t, err)
		_, err = ReadGmsh22(createTempMshFile(t, "$MeshFormat\n2.2 0 8\n$EndMeshFormat\n$Nodes\n1\n1 0 0 0\n$EndNodes\n$Elements\n1\n1 2 0 1 2 3\n$EndElements\n"))
		assert.Error(t, err)
	})
}
