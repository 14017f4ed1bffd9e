package types

import (
	"fmt"
	"strings"
)

type BCFLAG uint8

const (
	BC_None BCFLAG = iota
	BC_Dirichlet
	BC_Neumann
)

var BCNameMap = map[string]BCFLAG{
	"none":      BC_None,
	"dirichlet": BC_Dirichlet,
	"essential": BC_Dirichlet,
	"neumann":   BC_Neumann,
	"neuman":    BC_Neumann,
	"traction":  BC_Neumann,
	"natural":   BC_Neumann,
}

func (bf BCFLAG) String() string {
	return [...]string{"None", "Dirichlet", "Neumann"}[bf]
}

// NewBCFLAG parses a boundary condition name, ignoring case and surrounding space
func NewBCFLAG(name string) (bf BCFLAG, err error) {
	var ok bool
	if bf, ok = BCNameMap[strings.ToLower(strings.TrimSpace(name))]; !ok {
		err = fmt.Errorf("unknown boundary condition type %q", name)
	}
	return
}
