package dof

import (
	"fmt"
	"sort"

	"github.com/notargets/gofea/mesh"
	"github.com/notargets/gofea/types"
)

// Manager numbers the DOFs of a scalar space on a mesh.
type Manager interface {
	Mesh() *mesh.Mesh
	Layout() *Layout
	Continuous() bool
	CellToDof() [][]int
	NumberOfLocalDofs() int
	NumberOfGlobalDofs() int
	InterpolationPoints() [][]float64
	IsBoundaryDof(threshold mesh.Threshold) ([]bool, error)
	EntityToDof(dim int) ([][]int, error)
	FaceToDof() ([][]int, error)
}

// NewManager builds a continuous or discontinuous numbering of degree p on m.
func NewManager(m *mesh.Mesh, p int, continuous bool) (Manager, error) {
	if continuous {
		return NewCFEDof(m, p)
	}
	return NewDFEDof(m, p)
}

/*
CFEDof numbers a continuous space. Vertex DOFs take the node index; after them every edge, face
and cell owns a block of InteriorDofs(d) DOFs in entity order. Inside a block DOFs are ranked by
their vertex weights listed in ascending global vertex order, which does not depend on the cell
the entity is seen from.
*/
type CFEDof struct {
	mesh     *mesh.Mesh
	layout   *Layout
	cell2dof [][]int
	gdof     int
	ipoints  [][]float64
}

type rankedDof struct {
	local int
	key   []int
}

func NewCFEDof(m *mesh.Mesh, p int) (cd *CFEDof, err error) {
	var (
		lo *Layout
		TD = m.TD
	)
	if lo, err = NewLayout(m.Type, p); err != nil {
		return
	}
	cd = &CFEDof{mesh: m, layout: lo}
	// offsets[d] is the first global DOF of entities of dimension d
	offsets := make([]int, TD+2)
	for d := 0; d <= TD; d++ {
		var ne int
		if ne, err = m.NumberOfEntities(d); err != nil {
			return
		}
		offsets[d+1] = offsets[d] + ne*lo.InteriorDofs(d)
	}
	cd.gdof = offsets[TD+1]

	cd.cell2dof = make([][]int, len(m.Cells))
	for c, cell := range m.Cells {
		var (
			groups = make(map[[2]int][]rankedDof)
			c2d    = make([]int, lo.NumberOfLocalDofs())
		)
		for l, sup := range lo.Support {
			var (
				d     = lo.Dim[l]
				verts = make([]int, len(sup))
				e     int
			)
			for k, v := range sup {
				verts[k] = cell[v]
			}
			if d == TD {
				e = c
			} else if e, err = m.EntityIndex(d, verts); err != nil {
				return nil, fmt.Errorf("cell %d, local dof %d: %w", c, l, err)
			}
			if d == 0 {
				c2d[l] = verts[0]
				continue
			}
			groups[[2]int{d, e}] = append(groups[[2]int{d, e}], rankedDof{local: l, key: globalKey(cell, lo.Weights[l], sup)})
		}
		for de, g := range groups {
			sort.Slice(g, func(i, j int) bool { return lessKey(g[i].key, g[j].key) })
			base := offsets[de[0]] + de[1]*lo.InteriorDofs(de[0])
			for r, rd := range g {
				c2d[rd.local] = base + r
			}
		}
		cd.cell2dof[c] = c2d
	}

	cd.ipoints = make([][]float64, cd.gdof)
	for c, c2d := range cd.cell2dof {
		for l, g := range c2d {
			if cd.ipoints[g] == nil {
				cd.ipoints[g] = m.ReferenceToPhysical(c, lo.Nodes[l])
			}
		}
	}
	return
}

// globalKey lists the weights of the support vertices by ascending global vertex index.
func globalKey(cell, weights, support []int) (key []int) {
	idx := make([]int, len(support))
	copy(idx, support)
	sort.Slice(idx, func(i, j int) bool { return cell[idx[i]] < cell[idx[j]] })
	key = make([]int, len(idx))
	for k, v := range idx {
		key[k] = weights[v]
	}
	return
}

func lessKey(a, b []int) bool {
	for k := range a {
		if a[k] != b[k] {
			return a[k] < b[k]
		}
	}
	return false
}

func (cd *CFEDof) Mesh() *mesh.Mesh                 { return cd.mesh }
func (cd *CFEDof) Layout() *Layout                  { return cd.layout }
func (cd *CFEDof) Continuous() bool                 { return true }
func (cd *CFEDof) CellToDof() [][]int               { return cd.cell2dof }
func (cd *CFEDof) NumberOfLocalDofs() int           { return cd.layout.NumberOfLocalDofs() }
func (cd *CFEDof) NumberOfGlobalDofs() int          { return cd.gdof }
func (cd *CFEDof) InterpolationPoints() [][]float64 { return cd.ipoints }

/*
IsBoundaryDof flags the DOFs on boundary faces. A nil threshold takes every boundary face,
otherwise the faces whose barycenter satisfies it.
*/
func (cd *CFEDof) IsBoundaryDof(threshold mesh.Threshold) (flag []bool, err error) {
	var (
		m  = cd.mesh
		FD = m.TD - 1
	)
	flag = make([]bool, cd.gdof)
	for _, f := range m.BoundaryFaces(threshold) {
		c, lf := m.FaceToCell[f][0], m.FaceToCell[f][1]
		for _, l := range cd.layout.EntityDofs[FD][lf] {
			flag[cd.cell2dof[c][l]] = true
		}
	}
	return
}

// EntityToDof lists the DOFs on the closure of every entity of dimension dim.
func (cd *CFEDof) EntityToDof(dim int) (e2d [][]int, err error) {
	var (
		m   = cd.mesh
		c2e [][]int
		ne  int
	)
	if dim < 0 || dim > m.TD {
		err = fmt.Errorf("entity to dof of dimension %d: %w", dim, types.ErrUnsupportedDimension)
		return
	}
	if c2e, err = m.CellToEntity(dim); err != nil {
		return
	}
	if ne, err = m.NumberOfEntities(dim); err != nil {
		return
	}
	e2d = make([][]int, ne)
	for c, ents := range c2e {
		for j, e := range ents {
			if e2d[e] != nil {
				continue
			}
			local := cd.layout.EntityDofs[dim][j]
			e2d[e] = make([]int, len(local))
			for k, l := range local {
				e2d[e][k] = cd.cell2dof[c][l]
			}
		}
	}
	return
}

func (cd *CFEDof) FaceToDof() ([][]int, error) { return cd.EntityToDof(cd.mesh.TD - 1) }
