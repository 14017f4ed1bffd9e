package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/notargets/gofea/results"
)

var (
	dbFile  string
	problem string
	degree  int
)

func main() {
	dbFilePtr := flag.String("db", dbFile, "SQLite file written by gofea solve --db")
	problemPtr := flag.String("problem", problem, "restrict to one model problem")
	degreePtr := flag.Int("degree", degree, "restrict to one polynomial degree, 0 for all")
	flag.Parse()
	dbFile, problem, degree = *dbFilePtr, *problemPtr, *degreePtr
	if len(dbFile) == 0 {
		flag.Usage()
		os.Exit(1)
	}
	fmt.Printf("Input file: %v\n", dbFile)
	store, err := results.Open(dbFile)
	if err != nil {
		panic(err)
	}
	defer store.Close()
	runs, err := store.Runs(context.Background(), problem, degree)
	if err != nil {
		panic(err)
	}
	studies := NewConvergenceStudies(runs)
	for _, cs := range studies {
		fmt.Printf("Problem = %s, Order = %d\n", cs.problem, cs.degree)
		orders := results.ConvergenceOrders(cs.runs)
		for i, r := range cs.runs {
			order := "-"
			if i > 0 {
				order = fmt.Sprintf("%5.2f", orders[i-1])
			}
			fmt.Printf("%s, %d, %v, %v, %s\n", r.Mesh, r.NDof, r.H, r.L2Error, order)
		}
	}
}

type ConvergenceStudy struct {
	problem string
	degree  int
	runs    []results.Run
}

// NewConvergenceStudies groups runs by problem and degree, each group sorted from coarse to fine.
func NewConvergenceStudies(runs []results.Run) (studies []*ConvergenceStudy) {
	type key struct {
		problem string
		degree  int
	}
	byKey := make(map[key]*ConvergenceStudy)
	for _, r := range runs {
		k := key{r.Problem, r.Degree}
		cs, ok := byKey[k]
		if !ok {
			cs = &ConvergenceStudy{problem: r.Problem, degree: r.Degree}
			byKey[k] = cs
			studies = append(studies, cs)
		}
		cs.runs = append(cs.runs, r)
	}
	for _, cs := range studies {
		sort.SliceStable(cs.runs, func(i, j int) bool { return cs.runs[i].H > cs.runs[j].H })
	}
	sort.Slice(studies, func(i, j int) bool {
		if studies[i].problem != studies[j].problem {
			return studies[i].problem < studies[j].problem
		}
		return studies[i].degree < studies[j].degree
	})
	return
}
