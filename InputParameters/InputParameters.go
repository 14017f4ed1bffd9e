package InputParameters

import (
	"fmt"
	"os"
	"sort"

	"github.com/ghodss/yaml"
)

type MeshParameters struct {
	Type     string    `yaml:"Type"` // Interval, Triangle, Quadrangle, Tetrahedron, Hexahedron
	Box      []float64 `yaml:"Box"`
	Elements []int     `yaml:"Elements"` // cells per direction
	File     string    `yaml:"File"`     // Gmsh 2.2 ASCII, replaces Type/Box/Elements when set
}

// Parameters obtained from the YAML input file
type InputParameters struct {
	Title           string         `yaml:"Title"`
	Problem         string         `yaml:"Problem"`
	Mesh            MeshParameters `yaml:"Mesh"`
	Space           string         `yaml:"Space"` // Lagrange or Bernstein
	PolynomialOrder int            `yaml:"PolynomialOrder"`
	QuadratureOrder int            `yaml:"QuadratureOrder"`
	Lambda          float64        `yaml:"Lambda"`
	Mu              float64        `yaml:"Mu"`
	Solver          string         `yaml:"Solver"` // direct or cg
	Tolerance       float64        `yaml:"Tolerance"`
	DofOrdering     string         `yaml:"DofOrdering"`
	MaxIterations   int            `yaml:"MaxIterations"`
	Refinements     int            `yaml:"Refinements"`

	// Boundary condition type per box face (xmin, xmax, ymin, ...), Poisson only
	BCs map[string]string `yaml:"BCs"`
}

// Defaults fills in every field left empty by the input file.
func (ip *InputParameters) Defaults() {
	if ip.PolynomialOrder == 0 {
		ip.PolynomialOrder = 1
	}
	if ip.QuadratureOrder == 0 {
		ip.QuadratureOrder = ip.PolynomialOrder + 2
	}
	if ip.Lambda == 0 && ip.Mu == 0 {
		ip.Lambda, ip.Mu = 1, 1
	}
	if ip.Tolerance == 0 {
		ip.Tolerance = 1e-10
	}
	if ip.MaxIterations == 0 {
		ip.MaxIterations = 1000
	}
	if ip.Refinements == 0 {
		ip.Refinements = 1
	}
}

func (ip *InputParameters) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, ip); err != nil {
		return err
	}
	ip.Defaults()
	return nil
}

func ReadFile(fileName string) (ip *InputParameters, err error) {
	var data []byte
	if data, err = os.ReadFile(fileName); err != nil {
		return
	}
	ip = &InputParameters{}
	if err = ip.Parse(data); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", fileName, err)
	}
	return
}

func (ip *InputParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	fmt.Printf("[%s]\t\t\t= Problem\n", ip.Problem)
	if len(ip.Mesh.File) != 0 {
		fmt.Printf("[%s]\t= Mesh File\n", ip.Mesh.File)
	} else {
		fmt.Printf("[%s] %v %v\t= Mesh\n", ip.Mesh.Type, ip.Mesh.Box, ip.Mesh.Elements)
	}
	fmt.Printf("[%s]\t\t\t= Space\n", ip.Space)
	fmt.Printf("[%d]\t\t\t\t= Polynomial Order\n", ip.PolynomialOrder)
	fmt.Printf("[%d]\t\t\t\t= Quadrature Order\n", ip.QuadratureOrder)
	fmt.Printf("%8.5f\t\t= Lambda\n", ip.Lambda)
	fmt.Printf("%8.5f\t\t= Mu\n", ip.Mu)
	fmt.Printf("[%s]\t\t\t= Solver\n", ip.Solver)
	fmt.Printf("%8.2e\t\t= Tolerance\n", ip.Tolerance)
	fmt.Printf("[%s]\t\t\t= Dof Ordering\n", ip.DofOrdering)
	fmt.Printf("[%d]\t\t\t\t= Max Iterations\n", ip.MaxIterations)
	fmt.Printf("[%d]\t\t\t\t= Refinements\n", ip.Refinements)
	keys := make([]string, 0, len(ip.BCs))
	for k := range ip.BCs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("BCs[%s] = %v\n", key, ip.BCs[key])
	}
}
