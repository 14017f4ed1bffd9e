package dof

import (
	"fmt"

	"github.com/notargets/gofea/basis"
	"github.com/notargets/gofea/mesh"
	"github.com/notargets/gofea/types"
)

/*
Layout describes the local DOFs of one reference cell. Every local DOF is a point of the cell
written as integer weights over the cell vertices: the multi-index for simplices, products of
1D indices for tensor product cells. The vertices with a nonzero weight span the entity the DOF
belongs to.
*/
type Layout struct {
	Type    mesh.ElementType
	P       int
	Weights [][]int     // [ldof][nverts]
	Support [][]int     // local vertices with a nonzero weight
	Dim     []int       // dimension of the entity owning each DOF
	Nodes   [][]float64 // reference interpolation nodes, in the layout of a quadrature rule
	// EntityDofs[d][j] lists the local DOFs on the closure of local entity j of dimension d
	EntityDofs [][][]int
}

func NewLayout(et mesh.ElementType, p int) (lo *Layout, err error) {
	if et < mesh.Interval || et > mesh.Hexahedron {
		err = fmt.Errorf("dof layout of %v: %w", et, types.ErrUnknownElementType)
		return
	}
	if p < 0 {
		err = fmt.Errorf("dof layout of degree %d: %w", p, types.ErrShapeMismatch)
		return
	}
	var (
		TD = et.TD()
		nv = et.GetNumNodes()
	)
	lo = &Layout{Type: et, P: p}
	if et.IsSimplex() {
		var mi [][]int
		if mi, err = basis.MultiIndexMatrix(p, TD); err != nil {
			return
		}
		lo.Weights = mi
		lo.Nodes = basis.LagrangeNodes(p, mi)
	} else {
		ldof := basis.NumberOfTensorDofs(p, TD)
		lo.Weights = make([][]int, ldof)
		for l := range lo.Weights {
			ii := basis.TensorIndex(l, p, TD)
			w := make([]int, nv)
			for v := range w {
				w[v] = 1
				for t := 0; t < TD; t++ {
					if (v>>(TD-1-t))&1 == 1 {
						w[v] *= ii[t]
					} else {
						w[v] *= p - ii[t]
					}
				}
			}
			lo.Weights[l] = w
		}
		lo.Nodes = basis.TensorProductNodes(p, TD)
	}
	lo.Support = make([][]int, len(lo.Weights))
	lo.Dim = make([]int, len(lo.Weights))
	for l, w := range lo.Weights {
		for v, wv := range w {
			if wv > 0 {
				lo.Support[l] = append(lo.Support[l], v)
			}
		}
		switch ns := len(lo.Support[l]); {
		case p == 0:
			lo.Dim[l] = TD
		case et.IsSimplex():
			lo.Dim[l] = ns - 1
		default:
			for ns > 1 {
				lo.Dim[l]++
				ns /= 2
			}
		}
	}
	lo.EntityDofs = make([][][]int, TD+1)
	for d := 0; d <= TD; d++ {
		for _, verts := range localEntities(et, d) {
			var dofs []int
			for l, sup := range lo.Support {
				if d == TD || (p > 0 && subset(sup, verts)) {
					dofs = append(dofs, l)
				}
			}
			lo.EntityDofs[d] = append(lo.EntityDofs[d], dofs)
		}
	}
	return
}

func (lo *Layout) NumberOfLocalDofs() int { return len(lo.Weights) }

// InteriorDofs is the number of DOFs owned by the interior of each entity of dimension d.
func (lo *Layout) InteriorDofs(d int) (n int) {
	for _, dl := range lo.Dim {
		if dl == d {
			n++
		}
	}
	return n / len(localEntities(lo.Type, d))
}

// localEntities lists the local vertices of each local entity of dimension d, in the order
// used by mesh.CellToEntity(d).
func localEntities(et mesh.ElementType, d int) (ents [][]int) {
	TD := et.TD()
	switch {
	case d == 0:
		for v := 0; v < et.GetNumNodes(); v++ {
			ents = append(ents, []int{v})
		}
	case d == TD:
		all := make([]int, et.GetNumNodes())
		for v := range all {
			all[v] = v
		}
		ents = [][]int{all}
	case d == 1:
		for _, e := range et.LocalEdges() {
			ents = append(ents, []int{e[0], e[1]})
		}
	default:
		ents = et.LocalFaces()
	}
	return
}

func subset(a, b []int) bool {
	for _, x := range a {
		found := false
		for _, y := range b {
			if x == y {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
