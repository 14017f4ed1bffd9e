package dof

import (
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/gofea/mesh"
	"github.com/notargets/gofea/types"
)

func TestSingleTetrahedron(t *testing.T) {
	m, err := mesh.NewMesh(mesh.Tetrahedron,
		[][]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, [][]int{{0, 1, 2, 3}})
	require.NoError(t, err)
	cd, err := NewCFEDof(m, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, cd.NumberOfLocalDofs())
	assert.Equal(t, 4, cd.NumberOfGlobalDofs())
	assert.Equal(t, [][]int{{0, 1, 2, 3}}, cd.CellToDof())
	assert.Equal(t, m.Nodes, cd.InterpolationPoints())
}

func TestLayout(t *testing.T) {
	tests := []struct {
		et       mesh.ElementType
		p        int
		interior []int
	}{
		{mesh.Interval, 3, []int{1, 2}},
		{mesh.Triangle, 3, []int{1, 2, 1}},
		{mesh.Tetrahedron, 4, []int{1, 3, 3, 1}},
		{mesh.Quadrangle, 3, []int{1, 2, 4}},
		{mesh.Hexahedron, 3, []int{1, 2, 4, 8}},
		{mesh.Triangle, 0, []int{0, 0, 1}},
	}
	for _, tt := range tests {
		lo, err := NewLayout(tt.et, tt.p)
		require.NoError(t, err)
		for d, n := range tt.interior {
			assert.Equal(t, n, lo.InteriorDofs(d), "%v p=%d d=%d", tt.et, tt.p, d)
		}
	}
	_, err := NewLayout(mesh.Triangle, -1)
	assert.True(t, errors.Is(err, types.ErrShapeMismatch))
}

func TestContinuity(t *testing.T) {
	tests := []struct {
		et mesh.ElementType
		n  []int
		p  int
	}{
		{mesh.Interval, []int{4}, 3},
		{mesh.Triangle, []int{2, 3}, 3},
		{mesh.Quadrangle, []int{2, 3}, 3},
		{mesh.Tetrahedron, []int{2, 1, 2}, 3},
		{mesh.Hexahedron, []int{2, 2, 1}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.et.String(), func(t *testing.T) {
			m, err := mesh.NewBoxMesh(tt.et, nil, tt.n...)
			require.NoError(t, err)
			cd, err := NewCFEDof(m, tt.p)
			require.NoError(t, err)

			// A box has the (p*n+1)^TD lattice points as DOFs
			expected := 1
			for _, n := range tt.n {
				expected *= tt.p*n + 1
			}
			assert.Equal(t, expected, cd.NumberOfGlobalDofs())

			// Every local DOF lands on the global point it stands for
			ip := cd.InterpolationPoints()
			for c, c2d := range cd.CellToDof() {
				for l, g := range c2d {
					x := m.ReferenceToPhysical(c, cd.Layout().Nodes[l])
					assert.InDeltaSlice(t, x, ip[g], 1e-12)
				}
			}

			// Shared faces see the same global DOFs from both sides
			FD := m.TD - 1
			for _, fc := range m.FaceToCell {
				if fc[2] < 0 {
					continue
				}
				var left, right []int
				for _, l := range cd.Layout().EntityDofs[FD][fc[1]] {
					left = append(left, cd.CellToDof()[fc[0]][l])
				}
				for _, l := range cd.Layout().EntityDofs[FD][fc[3]] {
					right = append(right, cd.CellToDof()[fc[2]][l])
				}
				sort.Ints(left)
				sort.Ints(right)
				assert.Equal(t, left, right)
			}
		})
	}
}

func TestBoundaryDof(t *testing.T) {
	for _, et := range []mesh.ElementType{mesh.Triangle, mesh.Quadrangle} {
		m, err := mesh.NewBoxMesh(et, nil, 2, 2)
		require.NoError(t, err)
		cd, err := NewCFEDof(m, 2)
		require.NoError(t, err)
		isBd, err := cd.IsBoundaryDof(nil)
		require.NoError(t, err)
		var count int
		for g, b := range isBd {
			x := cd.InterpolationPoints()[g]
			onBoundary := x[0] < 1e-12 || x[1] < 1e-12 || math.Abs(x[0]-1) < 1e-12 || math.Abs(x[1]-1) < 1e-12
			assert.Equal(t, onBoundary, b, "dof %d at %v", g, x)
			if b {
				count++
			}
		}
		assert.Equal(t, 16, count)

		left, err := cd.IsBoundaryDof(func(x []float64) bool { return x[0] < 1e-12 })
		require.NoError(t, err)
		count = 0
		for _, b := range left {
			if b {
				count++
			}
		}
		assert.Equal(t, 5, count)
	}
}

func TestEntityToDof(t *testing.T) {
	m, err := mesh.NewBoxMesh(mesh.Triangle, nil, 2, 2)
	require.NoError(t, err)
	cd, err := NewCFEDof(m, 3)
	require.NoError(t, err)
	e2d, err := cd.EntityToDof(1)
	require.NoError(t, err)
	require.Equal(t, m.NumberOfEdges(), len(e2d))
	for e, dofs := range e2d {
		assert.Equal(t, 4, len(dofs))
		// the edge endpoints are among them
		assert.Contains(t, dofs, m.Edges[e][0])
		assert.Contains(t, dofs, m.Edges[e][1])
	}
	f2d, err := cd.FaceToDof()
	require.NoError(t, err)
	assert.Equal(t, e2d, f2d)
	c2d, err := cd.EntityToDof(2)
	require.NoError(t, err)
	assert.Equal(t, cd.CellToDof(), c2d)
	_, err = cd.EntityToDof(3)
	assert.True(t, errors.Is(err, types.ErrUnsupportedDimension))

	p0, err := NewCFEDof(m, 0)
	require.NoError(t, err)
	assert.Equal(t, m.NumberOfCells(), p0.NumberOfGlobalDofs())
}

func TestDFEDof(t *testing.T) {
	m, err := mesh.NewBoxMesh(mesh.Quadrangle, nil, 2, 2)
	require.NoError(t, err)
	dm, err := NewManager(m, 1, false)
	require.NoError(t, err)
	assert.False(t, dm.Continuous())
	assert.Equal(t, 16, dm.NumberOfGlobalDofs())
	assert.Equal(t, []int{12, 13, 14, 15}, dm.CellToDof()[3])
	_, err = dm.IsBoundaryDof(nil)
	assert.True(t, errors.Is(err, types.ErrUnsupportedOperation))
	_, err = dm.FaceToDof()
	assert.True(t, errors.Is(err, types.ErrUnsupportedOperation))
	c2d, err := dm.EntityToDof(2)
	require.NoError(t, err)
	assert.Equal(t, dm.CellToDof(), c2d)
}
