package mesh

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/notargets/gofea/utils"
)

// gmshContent is what the reader keeps from a Gmsh 2.2 file before building the mesh
type gmshContent struct {
	FormatVersion string
	nodeIndex     map[int]int // Gmsh node id -> position in coords
	coords        [][]float64
	elements      map[ElementType][][]int
}

// ReadGmsh22 reads an ASCII Gmsh 2.2 file. The highest dimensional elements become the cells.
func ReadGmsh22(filename string) (*Mesh, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ReadGmsh22From(file)
}

func ReadGmsh22From(r io.Reader) (*Mesh, error) {
	var (
		gc = &gmshContent{
			nodeIndex: make(map[int]int),
			elements:  make(map[ElementType][][]int),
		}
	)
	scanner := bufio.NewScanner(r)

	// Increase scanner buffer for large files
	const maxScanTokenSize = 1024 * 1024 * 10 // 10MB
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, maxScanTokenSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "$MeshFormat":
			if err := readMeshFormat(scanner, gc); err != nil {
				return nil, err
			}

		case "$Nodes":
			if err := readNodes(scanner, gc); err != nil {
				return nil, err
			}

		case "$Elements":
			if err := readElements(scanner, gc); err != nil {
				return nil, err
			}

		case "$PhysicalNames":
			if err := skipSection(scanner, "$EndPhysicalNames"); err != nil {
				return nil, err
			}

		case "$NodeData", "$ElementData", "$ElementNodeData", "$Periodic":
			if err := skipSection(scanner, "$End"+line[1:]); err != nil {
				return nil, err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %v", err)
	}
	return gc.toMesh()
}

// readMeshFormat reads the MeshFormat section
func readMeshFormat(scanner *bufio.Scanner, gc *gmshContent) error {
	if !scanner.Scan() {
		return fmt.Errorf("unexpected EOF in MeshFormat")
	}

	parts := strings.Fields(scanner.Text())
	if len(parts) < 3 {
		return fmt.Errorf("invalid MeshFormat line")
	}

	gc.FormatVersion = parts[0]
	if !strings.HasPrefix(gc.FormatVersion, "2") {
		return fmt.Errorf("unsupported Gmsh version: %s", gc.FormatVersion)
	}
	if fileType, _ := strconv.Atoi(parts[1]); fileType != 0 {
		return fmt.Errorf("binary Gmsh files are not supported")
	}
	return skipSection(scanner, "$EndMeshFormat")
}

// readNodes reads the Nodes section
func readNodes(scanner *bufio.Scanner, gc *gmshContent) error {
	if !scanner.Scan() {
		return fmt.Errorf("unexpected EOF in Nodes")
	}

	numNodes, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil {
		return fmt.Errorf("invalid number of nodes: %v", err)
	}

	for i := 0; i < numNodes; i++ {
		if !scanner.Scan() {
			return fmt.Errorf("unexpected EOF in Nodes at node %d", i)
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			return fmt.Errorf("invalid node entry at line %d", i+1)
		}

		nodeID, err := strconv.Atoi(fields[0])
		if err != nil {
			return fmt.Errorf("invalid node ID: %v", err)
		}

		coords := make([]float64, 3)
		for j := 0; j < 3; j++ {
			coords[j], err = strconv.ParseFloat(fields[j+1], 64)
			if err != nil {
				return fmt.Errorf("invalid coordinate: %v", err)
			}
		}

		gc.nodeIndex[nodeID] = len(gc.coords)
		gc.coords = append(gc.coords, coords)
	}

	return skipSection(scanner, "$EndNodes")
}

// readElements reads the Elements section, skipping element types without a mesh counterpart
func readElements(scanner *bufio.Scanner, gc *gmshContent) error {
	if !scanner.Scan() {
		return fmt.Errorf("unexpected EOF in Elements")
	}

	numElems, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil {
		return fmt.Errorf("invalid number of elements: %v", err)
	}

	for i := 0; i < numElems; i++ {
		if !scanner.Scan() {
			return fmt.Errorf("unexpected EOF in Elements at element %d", i)
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			return fmt.Errorf("invalid element entry at line %d", i+1)
		}

		gmshType, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("invalid element type: %v", err)
		}

		numTags, err := strconv.Atoi(fields[2])
		if err != nil {
			return fmt.Errorf("invalid number of tags: %v", err)
		}

		elemType, ok := gmshElementType2_2[gmshType]
		if !ok {
			continue
		}

		startIdx := 3 + numTags
		expectedNodes := elemType.GetNumNodes()
		if len(fields)-startIdx != expectedNodes {
			return fmt.Errorf("element type %v expects %d nodes, got %d", elemType, expectedNodes, len(fields)-startIdx)
		}

		nodeIDs := make([]int, expectedNodes)
		for j := 0; j < expectedNodes; j++ {
			id, err := strconv.Atoi(fields[startIdx+j])
			if err != nil {
				return fmt.Errorf("invalid node ID: %v", err)
			}
			if nodeIDs[j], ok = gc.nodeIndex[id]; !ok {
				return fmt.Errorf("element references unknown node %d", id)
			}
		}
		if perm, ok := gmshToTensor[elemType]; ok {
			tensor := make([]int, expectedNodes)
			for t, g := range perm {
				tensor[t] = nodeIDs[g]
			}
			nodeIDs = tensor
		}
		gc.elements[elemType] = append(gc.elements[elemType], nodeIDs)
	}

	return skipSection(scanner, "$EndElements")
}

func skipSection(scanner *bufio.Scanner, endMarker string) error {
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == endMarker {
			return nil
		}
	}
	return fmt.Errorf("missing %s", endMarker)
}

// toMesh keeps the cells of highest dimension and the nodes they use, renumbered in file order.
func (gc *gmshContent) toMesh() (*Mesh, error) {
	var (
		et    ElementType
		found bool
	)
	for _, cand := range []ElementType{Hexahedron, Tetrahedron, Quadrangle, Triangle, Interval} {
		if len(gc.elements[cand]) > 0 && (!found || cand.TD() > et.TD()) {
			et, found = cand, true
		}
	}
	if !found {
		return nil, fmt.Errorf("no supported elements in Gmsh file")
	}
	var (
		cells = gc.elements[et]
		used  = make([]int, len(gc.coords))
		nodes [][]float64
	)
	for i := range used {
		used[i] = -1
	}
	for _, cell := range cells {
		for _, n := range cell {
			used[n] = 0
		}
	}
	// Trailing coordinates that vanish everywhere are dropped
	GD := 3
	for GD > et.TD() {
		flat := true
		for n, u := range used {
			if u == 0 && math.Abs(gc.coords[n][GD-1]) > utils.NODETOL {
				flat = false
				break
			}
		}
		if !flat {
			break
		}
		GD--
	}
	for n, u := range used {
		if u == 0 {
			used[n] = len(nodes)
			nodes = append(nodes, gc.coords[n][:GD])
		}
	}
	renumbered := make([][]int, len(cells))
	for c, cell := range cells {
		renumbered[c] = make([]int, len(cell))
		for k, n := range cell {
			renumbered[c][k] = used[n]
		}
	}
	return NewMesh(et, nodes, renumbered)
}
