package mesh

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/notargets/gofea/basis"
	"github.com/notargets/gofea/quadrature"
	"github.com/notargets/gofea/types"
	"github.com/notargets/gofea/utils"
)

// Threshold selects boundary entities by a point on them, usually the barycenter.
type Threshold func(x []float64) bool

/*
Mesh is a conforming mesh of a single cell type. Faces are the (TD-1)-dimensional entities:
nodes for intervals, edges for 2D cells, polygons for 3D cells.
*/
type Mesh struct {
	Type   ElementType
	TD, GD int

	// Geometry
	Nodes [][]float64 // [NN][GD]

	// Topology
	Cells [][]int  // [NC][nverts_per_cell], local vertex order of Type
	Edges [][2]int // ascending vertex pairs
	Faces [][]int  // vertices in the local order of the first cell that owns the face

	EdgeMap map[types.EdgeKey]int
	FaceMap map[types.FaceKey]int // 3D only, 2D faces are edges and 1D faces are nodes

	// Connectivity (built during initialization)
	EToE       [][]int  // neighbor across each local face, -1 on the boundary
	EToF       [][]int  // local face to global face
	EToEdge    [][]int  // local edge to global edge
	FaceToCell [][4]int // {cell0, localFace0, cell1, localFace1}, cell1 = -1 on the boundary

	mu        sync.Mutex
	rules     map[int]*quadrature.Rule
	faceRules map[int]*quadrature.Rule
	glambda   *utils.Tensor
	measure   []float64
}

// NewMesh takes ownership of nodes and cells and builds the connectivity.
func NewMesh(et ElementType, nodes [][]float64, cells [][]int) (m *Mesh, err error) {
	if et < Interval || et > Hexahedron {
		err = fmt.Errorf("mesh of %v: %w", et, types.ErrUnknownElementType)
		return
	}
	if len(nodes) == 0 || len(cells) == 0 {
		err = fmt.Errorf("mesh needs nodes and cells, have %d and %d: %w", len(nodes), len(cells), types.ErrShapeMismatch)
		return
	}
	m = &Mesh{
		Type:      et,
		TD:        et.TD(),
		GD:        len(nodes[0]),
		Nodes:     nodes,
		Cells:     cells,
		EdgeMap:   make(map[types.EdgeKey]int),
		FaceMap:   make(map[types.FaceKey]int),
		rules:     make(map[int]*quadrature.Rule),
		faceRules: make(map[int]*quadrature.Rule),
	}
	if m.GD < m.TD {
		err = fmt.Errorf("geometric dimension %d below topological dimension %d: %w", m.GD, m.TD, types.ErrUnsupportedDimension)
		return
	}
	nv := et.GetNumNodes()
	for c, cell := range cells {
		if len(cell) != nv {
			err = fmt.Errorf("cell %d has %d vertices, %v needs %d: %w", c, len(cell), et, nv, types.ErrShapeMismatch)
			return
		}
		for _, v := range cell {
			if v < 0 || v >= len(nodes) {
				err = fmt.Errorf("cell %d references node %d of %d", c, v, len(nodes))
				return
			}
		}
	}
	m.BuildConnectivity()
	return
}

// ReadMeshFile reads a mesh file based on extension
func ReadMeshFile(filename string) (*Mesh, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".msh":
		return ReadGmsh22(filename)
	default:
		return nil, fmt.Errorf("unsupported mesh format: %s", ext)
	}
}

func (m *Mesh) faceIndex(verts []int) (f int, ok bool) {
	switch m.TD {
	case 1:
		return verts[0], true
	case 2:
		f, ok = m.EdgeMap[types.NewEdgeKey([2]int{verts[0], verts[1]})]
	case 3:
		f, ok = m.FaceMap[types.NewFaceKey(verts)]
	}
	return
}

// BuildConnectivity numbers edges and faces and links cells across faces
func (m *Mesh) BuildConnectivity() {
	var (
		NC = len(m.Cells)
		et = m.Type
	)
	m.Edges = m.Edges[:0]
	m.EToEdge = make([][]int, NC)
	for c, cell := range m.Cells {
		m.EToEdge[c] = make([]int, len(et.LocalEdges()))
		for le, ev := range et.LocalEdges() {
			key := types.NewEdgeKey([2]int{cell[ev[0]], cell[ev[1]]})
			e, exists := m.EdgeMap[key]
			if !exists {
				e = len(m.Edges)
				m.EdgeMap[key] = e
				m.Edges = append(m.Edges, key.GetVertices(false))
			}
			m.EToEdge[c][le] = e
		}
	}

	m.Faces = m.Faces[:0]
	switch m.TD {
	case 1:
		for n := range m.Nodes {
			m.Faces = append(m.Faces, []int{n})
		}
	case 2:
		for _, e := range m.Edges {
			m.Faces = append(m.Faces, []int{e[0], e[1]})
		}
	}
	m.FaceToCell = make([][4]int, len(m.Faces))
	for f := range m.FaceToCell {
		m.FaceToCell[f] = [4]int{-1, -1, -1, -1}
	}

	m.EToE = make([][]int, NC)
	m.EToF = make([][]int, NC)
	for c, cell := range m.Cells {
		lfs := et.LocalFaces()
		m.EToE[c] = make([]int, len(lfs))
		m.EToF[c] = make([]int, len(lfs))
		for lf, fv := range lfs {
			verts := make([]int, len(fv))
			for k, v := range fv {
				verts[k] = cell[v]
			}
			f, exists := m.faceIndex(verts)
			if m.TD == 3 && !exists {
				f = len(m.Faces)
				m.FaceMap[types.NewFaceKey(verts)] = f
				m.Faces = append(m.Faces, verts)
				m.FaceToCell = append(m.FaceToCell, [4]int{-1, -1, -1, -1})
			}
			m.EToF[c][lf] = f
			m.EToE[c][lf] = -1
			if fc := &m.FaceToCell[f]; fc[0] < 0 {
				fc[0], fc[1] = c, lf
			} else {
				fc[2], fc[3] = c, lf
				m.EToE[c][lf] = fc[0]
				m.EToE[fc[0]][fc[1]] = c
			}
		}
	}
}

func (m *Mesh) NumberOfNodes() int { return len(m.Nodes) }
func (m *Mesh) NumberOfCells() int { return len(m.Cells) }
func (m *Mesh) NumberOfEdges() int { return len(m.Edges) }
func (m *Mesh) NumberOfFaces() int { return len(m.Faces) }

func (m *Mesh) NumberOfEntities(dim int) (n int, err error) {
	var ent [][]int
	if ent, err = m.Entity(dim); err != nil {
		return
	}
	return len(ent), nil
}

// Entity lists the vertices of every entity of dimension dim.
func (m *Mesh) Entity(dim int) (ent [][]int, err error) {
	switch {
	case dim == 0:
		ent = make([][]int, len(m.Nodes))
		for n := range ent {
			ent[n] = []int{n}
		}
	case dim == m.TD:
		ent = m.Cells
	case dim == 1:
		ent = make([][]int, len(m.Edges))
		for e, ev := range m.Edges {
			ent[e] = []int{ev[0], ev[1]}
		}
	case dim == m.TD-1:
		ent = m.Faces
	default:
		err = fmt.Errorf("entity of dimension %d in a %dD mesh: %w", dim, m.TD, types.ErrUnsupportedDimension)
	}
	return
}

// CellToEntity gives, per cell, the global index of each local entity of dimension dim.
func (m *Mesh) CellToEntity(dim int) (c2e [][]int, err error) {
	switch {
	case dim == 0:
		c2e = m.Cells
	case dim == m.TD:
		c2e = make([][]int, len(m.Cells))
		for c := range c2e {
			c2e[c] = []int{c}
		}
	case dim == 1:
		c2e = m.EToEdge
	case dim == m.TD-1:
		c2e = m.EToF
	default:
		err = fmt.Errorf("cell to entity of dimension %d in a %dD mesh: %w", dim, m.TD, types.ErrUnsupportedDimension)
	}
	return
}

// EntityIndex finds the global entity of dimension dim < TD spanned by the given vertices.
func (m *Mesh) EntityIndex(dim int, verts []int) (idx int, err error) {
	var ok bool
	switch {
	case dim == 0 && len(verts) == 1:
		idx, ok = verts[0], verts[0] >= 0 && verts[0] < len(m.Nodes)
	case dim == 1 && len(verts) == 2:
		idx, ok = m.EdgeMap[types.NewEdgeKey([2]int{verts[0], verts[1]})]
	case dim == 2 && m.TD == 3:
		idx, ok = m.FaceMap[types.NewFaceKey(verts)]
	default:
		err = fmt.Errorf("entity lookup of dimension %d from %d vertices: %w", dim, len(verts), types.ErrUnsupportedOperation)
		return
	}
	if !ok {
		err = fmt.Errorf("no entity of dimension %d with vertices %v", dim, verts)
	}
	return
}

// BoundaryFaceFlag marks faces with a single adjacent cell
func (m *Mesh) BoundaryFaceFlag() (flag []bool) {
	flag = make([]bool, len(m.Faces))
	for f, fc := range m.FaceToCell {
		flag[f] = fc[2] < 0
	}
	return
}

func (m *Mesh) EntityBarycenter(dim int) (bc [][]float64, err error) {
	var ent [][]int
	if ent, err = m.Entity(dim); err != nil {
		return
	}
	bc = make([][]float64, len(ent))
	for i, verts := range ent {
		bc[i] = m.barycenter(verts)
	}
	return
}

func (m *Mesh) barycenter(verts []int) (x []float64) {
	x = make([]float64, m.GD)
	for _, v := range verts {
		for d := 0; d < m.GD; d++ {
			x[d] += m.Nodes[v][d]
		}
	}
	for d := range x {
		x[d] /= float64(len(verts))
	}
	return
}

func (m *Mesh) MultiIndexMatrix(p, TD int) ([][]int, error) { return basis.MultiIndexMatrix(p, TD) }

// QuadratureFormula returns the cached cell rule with q points per direction.
func (m *Mesh) QuadratureFormula(q int) *quadrature.Rule {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rules[q]; ok {
		return r
	}
	r := cellRule(m.Type, q)
	m.rules[q] = r
	return r
}

// FaceQuadratureFormula is the rule on the reference face, a single point for 1D meshes.
func (m *Mesh) FaceQuadratureFormula(q int) *quadrature.Rule {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.faceRules[q]; ok {
		return r
	}
	var r *quadrature.Rule
	ft, ok := m.Type.FaceType()
	switch {
	case !ok:
		r = &quadrature.Rule{Points: [][]float64{{1}}, Weights: []float64{1}, Order: 1, Simplex: true}
	case ft == Interval && !m.Type.IsSimplex():
		// edges of a quadrangle use reference coordinates, not barycentric ones
		r = quadrature.TensorRule(q, 1)
	default:
		r = cellRule(ft, q)
	}
	m.faceRules[q] = r
	return r
}

func cellRule(et ElementType, q int) (r *quadrature.Rule) {
	switch et {
	case Interval:
		r = quadrature.IntervalRule(q)
	case Triangle:
		r = quadrature.TriangleRule(q)
	case Tetrahedron:
		r = quadrature.TetrahedronRule(q)
	case Quadrangle:
		r = quadrature.QuadrangleRule(q)
	case Hexahedron:
		r = quadrature.HexahedronRule(q)
	}
	return
}

// PrintStatistics prints mesh statistics
func (m *Mesh) PrintStatistics() {
	var boundaryFaces int
	for _, b := range m.BoundaryFaceFlag() {
		if b {
			boundaryFaces++
		}
	}
	fmt.Printf("Mesh Statistics:\n")
	fmt.Printf("  Element type: %s (TD = %d, GD = %d)\n", m.Type, m.TD, m.GD)
	fmt.Printf("  Nodes: %d\n", m.NumberOfNodes())
	fmt.Printf("  Cells: %d\n", m.NumberOfCells())
	fmt.Printf("  Edges: %d\n", m.NumberOfEdges())
	fmt.Printf("  Faces: %d\n", m.NumberOfFaces())
	fmt.Printf("  Boundary faces: %d\n", boundaryFaces)
}
