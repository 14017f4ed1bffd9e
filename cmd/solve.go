/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/notargets/gofea/InputParameters"
	"github.com/notargets/gofea/mesh"
	"github.com/notargets/gofea/model_problems"
	"github.com/notargets/gofea/results"
	"github.com/notargets/gofea/solver"
	"github.com/notargets/gofea/space"
	"github.com/notargets/gofea/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const exampleFile = `
########################################
Title: "Poisson convergence"
Problem: poisson # elasticity3d, stokes2d, semilinear
Mesh:
  Type: Triangle # Interval, Quadrangle, Tetrahedron, Hexahedron
  Box: [0, 1, 0, 1]
  Elements: [4, 4]
  # File: mesh.msh # Gmsh 2.2 ASCII instead of a box
Space: Lagrange # or Bernstein
PolynomialOrder: 2
Solver: cg # or direct
Refinements: 3
BCs: # Poisson only, every other box face is Dirichlet
  xmax: Neumann
########################################
`

// SolveCmd represents the solve command
var SolveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve a model problem over a sequence of refined meshes",
	Long: `
Solves the model problem named in the input file on each refinement of the mesh, prints the L2
error and the observed convergence order, and records the runs when --db is set.

gofea solve -I input.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		icFile, _ := cmd.Flags().GetString("inputConditionsFile")
		if len(icFile) == 0 {
			fmt.Printf("error: must supply an input parameters file (-I, --inputConditionsFile)\n")
			fmt.Printf("Example File:%s\n", exampleFile)
			os.Exit(1)
		}
		ip, err := InputParameters.ReadFile(icFile)
		if err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
		ip.Print()
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		if err = RunSolve(ctx, ip, newLogger()); err != nil {
			fmt.Printf("error: %s\n", err.Error())
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(SolveCmd)
	SolveCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for input parameters like:\n\t- Problem\n\t- Mesh\n\t- PolynomialOrder")
}

// NewConfig translates the input parameters into a solver configuration without a mesh.
func NewConfig(ip *InputParameters.InputParameters, logger *log.Logger) (cfg model_problems.Config, err error) {
	cfg = model_problems.Config{
		P:              ip.PolynomialOrder,
		Q:              ip.QuadratureOrder,
		Lambda:         ip.Lambda,
		Mu:             ip.Mu,
		Tolerance:      ip.Tolerance,
		MaxIterations:  ip.MaxIterations,
		ParallelDegree: viper.GetInt("parallel"),
		Dump:           viper.GetString("dump"),
		Logger:         logger,
	}
	if len(ip.BCs) != 0 {
		cfg.BCs = make(map[string]types.BCFLAG, len(ip.BCs))
		for face, name := range ip.BCs {
			if cfg.BCs[face], err = types.NewBCFLAG(name); err != nil {
				return
			}
		}
	}
	if cfg.Kind, err = space.NewKind(ip.Space); err != nil {
		return
	}
	if cfg.Ordering, err = space.NewDofOrdering(ip.DofOrdering); err != nil {
		return
	}
	cfg.Solver, err = solver.NewMethod(ip.Solver)
	return
}

// Meshes returns the mesh of every refinement level with a label for each. A mesh file gives a
// single level.
func Meshes(mp InputParameters.MeshParameters, refinements int) (meshes []*mesh.Mesh, labels []string, err error) {
	if len(mp.File) != 0 {
		var m *mesh.Mesh
		if m, err = mesh.ReadMeshFile(mp.File); err != nil {
			return
		}
		return []*mesh.Mesh{m}, []string{mp.File}, nil
	}
	var et mesh.ElementType
	if et, err = mesh.NewElementType(mp.Type); err != nil {
		return
	}
	for k := 0; k < refinements; k++ {
		n := make([]int, et.TD())
		for t := range n {
			n[t] = 1
			if t < len(mp.Elements) {
				n[t] = mp.Elements[t]
			}
			n[t] <<= k
		}
		var m *mesh.Mesh
		if m, err = mesh.NewBoxMesh(et, mp.Box, n...); err != nil {
			return
		}
		meshes = append(meshes, m)
		dims := make([]string, len(n))
		for t, v := range n {
			dims[t] = strconv.Itoa(v)
		}
		labels = append(labels, et.String()+" "+strings.Join(dims, "x"))
	}
	return
}

func RunSolve(ctx context.Context, ip *InputParameters.InputParameters, logger *log.Logger) (err error) {
	var (
		prob   model_problems.Problem
		cfg    model_problems.Config
		meshes []*mesh.Mesh
		labels []string
		store  *results.Store
		runs   []results.Run
	)
	if prob, err = model_problems.New(ip.Problem); err != nil {
		return
	}
	if cfg, err = NewConfig(ip, logger); err != nil {
		return
	}
	if meshes, labels, err = Meshes(ip.Mesh, ip.Refinements); err != nil {
		return
	}
	if dbFile := viper.GetString("db"); len(dbFile) != 0 {
		if store, err = results.Open(dbFile); err != nil {
			return
		}
		defer store.Close()
	}
	fmt.Printf("%-24s %8s %12s %14s %8s\n", "Mesh", "NDof", "h", "L2 error", "Order")
	for k, m := range meshes {
		if err = prob.Check(m); err != nil {
			return
		}
		if viper.GetBool("verbose") {
			m.PrintStatistics()
		}
		cfg.Mesh = m
		var r *model_problems.Result
		if r, err = prob.Solve(ctx, cfg); err != nil {
			return fmt.Errorf("%s on %s: %w", prob.Name(), labels[k], err)
		}
		run := results.Run{
			Problem:    prob.Name(),
			Mesh:       labels[k],
			Degree:     cfg.P,
			NDof:       r.NDof,
			H:          r.H,
			L2Error:    r.L2Error,
			Iterations: r.Iterations,
		}
		if store != nil {
			if err = store.Insert(ctx, &run); err != nil {
				return
			}
		}
		runs = append(runs, run)
		order := "-"
		if k > 0 {
			orders := results.ConvergenceOrders(runs[k-1:])
			order = fmt.Sprintf("%8.3f", orders[0])
		}
		fmt.Printf("%-24s %8d %12.5e %14.6e %8s\n", labels[k], r.NDof, r.H, r.L2Error, order)
	}
	return
}
