package mesh

import (
	"fmt"

	"github.com/notargets/gofea/types"
)

// BoxFactory builds a structured mesh of box = [x0, x1, y0, y1, z0, z1] (first 2*TD entries).
type BoxFactory func(box []float64, n []int) (*Mesh, error)

var boxFactories = map[ElementType]BoxFactory{
	Interval:    intervalBox,
	Triangle:    triangleBox,
	Quadrangle:  quadrangleBox,
	Tetrahedron: tetrahedronBox,
	Hexahedron:  hexahedronBox,
}

// NewBoxMesh resolves the factory for et. The cell counts n default to 1 per direction.
func NewBoxMesh(et ElementType, box []float64, n ...int) (m *Mesh, err error) {
	factory, ok := boxFactories[et]
	if !ok {
		err = fmt.Errorf("box mesh of %v: %w", et, types.ErrUnknownElementType)
		return
	}
	TD := et.TD()
	if box == nil {
		box = []float64{0, 1, 0, 1, 0, 1}[:2*TD]
	}
	if len(box) < 2*TD {
		err = fmt.Errorf("box %v too short for a %dD mesh: %w", box, TD, types.ErrShapeMismatch)
		return
	}
	counts := make([]int, TD)
	for t := range counts {
		counts[t] = 1
		if t < len(n) {
			counts[t] = n[t]
		}
		if counts[t] < 1 {
			err = fmt.Errorf("box mesh with %d cells along direction %d", counts[t], t)
			return
		}
	}
	return factory(box, counts)
}

// gridNodes places (n0+1)(n1+1)... nodes with the first direction slowest.
func gridNodes(box []float64, n []int) (nodes [][]float64) {
	var (
		TD    = len(n)
		total = 1
	)
	for _, nt := range n {
		total *= nt + 1
	}
	nodes = make([][]float64, total)
	for k := range nodes {
		var (
			x   = make([]float64, TD)
			rem = k
		)
		for t := TD - 1; t >= 0; t-- {
			i := rem % (n[t] + 1)
			rem /= n[t] + 1
			x[t] = box[2*t] + (box[2*t+1]-box[2*t])*float64(i)/float64(n[t])
		}
		nodes[k] = x
	}
	return
}

// gridCells lists the tensor-ordered corner nodes of every grid cell, first direction slowest.
func gridCells(n []int) (cells [][]int) {
	var (
		TD      = len(n)
		ncell   = 1
		strides = make([]int, TD)
		stride  = 1
	)
	for t := TD - 1; t >= 0; t-- {
		strides[t] = stride
		stride *= n[t] + 1
		ncell *= n[t]
	}
	nv := 1 << TD
	cells = make([][]int, ncell)
	for c := range cells {
		var (
			base = 0
			rem  = c
		)
		for t := TD - 1; t >= 0; t-- {
			base += (rem % n[t]) * strides[t]
			rem /= n[t]
		}
		cell := make([]int, nv)
		for v := 0; v < nv; v++ {
			node := base
			for t := 0; t < TD; t++ {
				if v&(1<<(TD-1-t)) != 0 {
					node += strides[t]
				}
			}
			cell[v] = node
		}
		cells[c] = cell
	}
	return
}

func intervalBox(box []float64, n []int) (*Mesh, error) {
	return NewMesh(Interval, gridNodes(box, n), gridCells(n))
}

func quadrangleBox(box []float64, n []int) (*Mesh, error) {
	return NewMesh(Quadrangle, gridNodes(box, n), gridCells(n))
}

func hexahedronBox(box []float64, n []int) (*Mesh, error) {
	return NewMesh(Hexahedron, gridNodes(box, n), gridCells(n))
}

// triangleBox splits every square along its (1,0)-(0,1) diagonal, counterclockwise.
func triangleBox(box []float64, n []int) (*Mesh, error) {
	var (
		squares = gridCells(n)
		cells   = make([][]int, 0, 2*len(squares))
	)
	for _, sq := range squares {
		// sq = [n00, n01, n10, n11]
		cells = append(cells,
			[]int{sq[2], sq[3], sq[0]},
			[]int{sq[1], sq[0], sq[3]})
	}
	return NewMesh(Triangle, gridNodes(box, n), cells)
}

// kuhnTets are the six tetrahedra along monotone paths from corner 0 to corner 7.
var kuhnTets = [6][4]int{
	{0, 4, 6, 7}, {0, 4, 5, 7},
	{0, 2, 6, 7}, {0, 2, 3, 7},
	{0, 1, 5, 7}, {0, 1, 3, 7},
}

func tetrahedronBox(box []float64, n []int) (*Mesh, error) {
	var (
		nodes = gridNodes(box, n)
		cubes = gridCells(n)
		cells = make([][]int, 0, 6*len(cubes))
	)
	for _, cube := range cubes {
		for _, kt := range kuhnTets {
			tet := []int{cube[kt[0]], cube[kt[1]], cube[kt[2]], cube[kt[3]]}
			if orientation(nodes, tet) < 0 {
				tet[2], tet[3] = tet[3], tet[2]
			}
			cells = append(cells, tet)
		}
	}
	return NewMesh(Tetrahedron, nodes, cells)
}

func orientation(nodes [][]float64, tet []int) float64 {
	var (
		a = nodes[tet[0]]
		u = make([]float64, 3)
		v = make([]float64, 3)
		w = make([]float64, 3)
	)
	for d := 0; d < 3; d++ {
		u[d] = nodes[tet[1]][d] - a[d]
		v[d] = nodes[tet[2]][d] - a[d]
		w[d] = nodes[tet[3]][d] - a[d]
	}
	return u[0]*(v[1]*w[2]-v[2]*w[1]) - u[1]*(v[0]*w[2]-v[2]*w[0]) + u[2]*(v[0]*w[1]-v[1]*w[0])
}
