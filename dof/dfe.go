package dof

import (
	"fmt"

	"github.com/notargets/gofea/mesh"
	"github.com/notargets/gofea/types"
)

// DFEDof numbers a discontinuous space, cell c owns [c*ldof, (c+1)*ldof).
type DFEDof struct {
	mesh     *mesh.Mesh
	layout   *Layout
	cell2dof [][]int
	ipoints  [][]float64
}

func NewDFEDof(m *mesh.Mesh, p int) (dd *DFEDof, err error) {
	var lo *Layout
	if lo, err = NewLayout(m.Type, p); err != nil {
		return
	}
	var (
		ldof = lo.NumberOfLocalDofs()
	)
	dd = &DFEDof{
		mesh:     m,
		layout:   lo,
		cell2dof: make([][]int, len(m.Cells)),
		ipoints:  make([][]float64, len(m.Cells)*ldof),
	}
	for c := range m.Cells {
		dd.cell2dof[c] = make([]int, ldof)
		for l := 0; l < ldof; l++ {
			dd.cell2dof[c][l] = c*ldof + l
			dd.ipoints[c*ldof+l] = m.ReferenceToPhysical(c, lo.Nodes[l])
		}
	}
	return
}

func (dd *DFEDof) Mesh() *mesh.Mesh                 { return dd.mesh }
func (dd *DFEDof) Layout() *Layout                  { return dd.layout }
func (dd *DFEDof) Continuous() bool                 { return false }
func (dd *DFEDof) CellToDof() [][]int               { return dd.cell2dof }
func (dd *DFEDof) NumberOfLocalDofs() int           { return dd.layout.NumberOfLocalDofs() }
func (dd *DFEDof) NumberOfGlobalDofs() int          { return len(dd.ipoints) }
func (dd *DFEDof) InterpolationPoints() [][]float64 { return dd.ipoints }

func (dd *DFEDof) IsBoundaryDof(mesh.Threshold) ([]bool, error) {
	return nil, fmt.Errorf("boundary dofs of a discontinuous space: %w", types.ErrUnsupportedOperation)
}

// EntityToDof is only defined for cells, lower entities own no DOFs of their own.
func (dd *DFEDof) EntityToDof(dim int) ([][]int, error) {
	if dim != dd.mesh.TD {
		return nil, fmt.Errorf("entity to dof of dimension %d in a discontinuous space: %w", dim, types.ErrUnsupportedOperation)
	}
	return dd.cell2dof, nil
}

func (dd *DFEDof) FaceToDof() ([][]int, error) { return dd.EntityToDof(dd.mesh.TD - 1) }
