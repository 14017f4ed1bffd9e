package mesh

import (
	"fmt"
	"strings"

	"github.com/notargets/gofea/types"
)

// ElementType represents the supported cell shapes
type ElementType int

const (
	Interval ElementType = iota
	Triangle
	Quadrangle
	Tetrahedron
	Hexahedron
)

func (e ElementType) String() string {
	if e < Interval || e > Hexahedron {
		return fmt.Sprintf("ElementType(%d)", int(e))
	}
	return [...]string{"Interval", "Triangle", "Quadrangle", "Tetrahedron", "Hexahedron"}[e]
}

func NewElementType(label string) (e ElementType, err error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "interval", "line":
		return Interval, nil
	case "triangle", "tri":
		return Triangle, nil
	case "quadrangle", "quad":
		return Quadrangle, nil
	case "tetrahedron", "tet":
		return Tetrahedron, nil
	case "hexahedron", "hex":
		return Hexahedron, nil
	}
	err = fmt.Errorf("element type %q: %w", label, types.ErrUnknownElementType)
	return
}

// TD is the topological dimension of the cell
func (e ElementType) TD() int {
	return [...]int{1, 2, 2, 3, 3}[e]
}

func (e ElementType) IsSimplex() bool {
	return e == Interval || e == Triangle || e == Tetrahedron
}

func (e ElementType) GetNumNodes() int {
	return [...]int{2, 3, 4, 4, 8}[e]
}

/*
Tensor product cells number their vertices by reference coordinate bits with x slowest:
quadrangle v = 2*bx + by, hexahedron v = 4*bx + 2*by + bz. Local faces of those cells keep
the same ordering so a face is itself a tensor product cell one dimension down.
*/
var (
	localEdges = [...][][2]int{
		Interval:    {{0, 1}},
		Triangle:    {{1, 2}, {2, 0}, {0, 1}},
		Quadrangle:  {{0, 1}, {2, 3}, {0, 2}, {1, 3}},
		Tetrahedron: {{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}},
		Hexahedron: {
			{0, 4}, {1, 5}, {2, 6}, {3, 7}, // along x
			{0, 2}, {1, 3}, {4, 6}, {5, 7}, // along y
			{0, 1}, {2, 3}, {4, 5}, {6, 7}, // along z
		},
	}
	localFaces = [...][][]int{
		Interval:    {{0}, {1}},
		Triangle:    {{1, 2}, {2, 0}, {0, 1}},
		Quadrangle:  {{0, 1}, {2, 3}, {0, 2}, {1, 3}},
		Tetrahedron: {{1, 2, 3}, {0, 3, 2}, {0, 1, 3}, {0, 2, 1}},
		Hexahedron: {
			{0, 1, 2, 3}, {4, 5, 6, 7},
			{0, 1, 4, 5}, {2, 3, 6, 7},
			{0, 2, 4, 6}, {1, 3, 5, 7},
		},
	}
)

func (e ElementType) LocalEdges() [][2]int { return localEdges[e] }

// LocalFaces are the (TD-1)-dimensional boundary entities of the reference cell.
func (e ElementType) LocalFaces() [][]int { return localFaces[e] }

// ReferenceVertex is the vertex in [0,1]^TD for tensor cells, or its barycentric unit vector.
func (e ElementType) ReferenceVertex(v int) (x []float64) {
	TD := e.TD()
	if e.IsSimplex() {
		x = make([]float64, TD+1)
		x[v] = 1
		return
	}
	x = make([]float64, TD)
	for t := TD - 1; t >= 0; t-- {
		x[t] = float64(v % 2)
		v /= 2
	}
	return
}

// FaceType is the shape of the local faces, false for TD = 1 where faces are points.
func (e ElementType) FaceType() (f ElementType, ok bool) {
	switch e {
	case Triangle, Quadrangle:
		return Interval, true
	case Tetrahedron:
		return Triangle, true
	case Hexahedron:
		return Quadrangle, true
	}
	return
}

// gmshElementType2_2 maps the Gmsh 2.2 first order element types to ours
var gmshElementType2_2 = map[int]ElementType{
	1: Interval,
	2: Triangle,
	3: Quadrangle,
	4: Tetrahedron,
	5: Hexahedron,
}

// gmshToTensor[e][t] is the Gmsh local vertex placed at tensor vertex t.
var gmshToTensor = map[ElementType][]int{
	Quadrangle: {0, 3, 1, 2},
	Hexahedron: {0, 4, 3, 7, 1, 5, 2, 6},
}
