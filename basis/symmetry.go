package basis

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/notargets/gofea/types"
)

/*
SymmetricIndex flattens a symmetric order-m tensor over d directions. Component n stands for
the sorted direction sequence Sequences[n]; components follow MultiIndexMatrix(m, d-1), so for
d=2, m=3 the order is xxx, xxy, xyy, yyy. Full maps each of the d^m full-tensor positions
(first index slowest) onto its component.
*/
type SymmetricIndex struct {
	Dim, Order   int
	Counts       [][]int // per component, how often each direction occurs
	Sequences    [][]int
	Multiplicity []int // number of full-tensor entries sharing a component
	Full         []int
	Permutations [][]int
}

type symKey struct{ d, m int }

var (
	symArena = make(map[symKey]*SymmetricIndex)
	symMutex sync.Mutex
)

func SymmetryIndex(d, m int) (si *SymmetricIndex, err error) {
	if d < 1 || d > 3 {
		err = fmt.Errorf("symmetric index over %d directions: %w", d, types.ErrUnsupportedDimension)
		return
	}
	key := symKey{d, m}
	symMutex.Lock()
	if si = symArena[key]; si != nil {
		symMutex.Unlock()
		return
	}
	symMutex.Unlock()
	si = &SymmetricIndex{Dim: d, Order: m}
	if m == 0 {
		si.Counts = [][]int{make([]int, d)}
		si.Sequences = [][]int{{}}
		si.Multiplicity = []int{1}
		si.Full = []int{0}
		si.Permutations = [][]int{{}}
	} else {
		if d == 1 {
			si.Counts = [][]int{{m}}
		} else if si.Counts, err = MultiIndexMatrix(m, d-1); err != nil {
			return
		}
		byKey := make(map[string]int)
		for n, counts := range si.Counts {
			seq := make([]int, 0, m)
			for dir, c := range counts {
				for k := 0; k < c; k++ {
					seq = append(seq, dir)
				}
			}
			si.Sequences = append(si.Sequences, seq)
			byKey[seqKey(seq)] = n
		}
		si.Multiplicity = make([]int, len(si.Counts))
		nFull := 1
		for k := 0; k < m; k++ {
			nFull *= d
		}
		si.Full = make([]int, nFull)
		for f := 0; f < nFull; f++ {
			var (
				seq = make([]int, m)
				rem = f
			)
			for k := m - 1; k >= 0; k-- {
				seq[k] = rem % d
				rem /= d
			}
			sort.Ints(seq)
			n := byKey[seqKey(seq)]
			si.Full[f] = n
			si.Multiplicity[n]++
		}
		si.Permutations = permutations(m)
	}
	symMutex.Lock()
	if prev := symArena[key]; prev != nil {
		si = prev
	} else {
		symArena[key] = si
	}
	symMutex.Unlock()
	return
}

func (si *SymmetricIndex) NumberOfComponents() int { return len(si.Sequences) }

// Label spells a component with x, y, z, e.g. "xxy".
func (si *SymmetricIndex) Label(n int) string {
	var b strings.Builder
	for _, dir := range si.Sequences[n] {
		b.WriteByte("xyz"[dir])
	}
	return b.String()
}

/*
Symmetrize returns the symmetric part of the product of m vectors g[t[0]], ..., g[t[m-1]]
evaluated at each component: the average over orderings sigma of prod_k g[t[sigma(k)]][s_k].
g holds one GD vector per row, row major.
*/
func (si *SymmetricIndex) Symmetrize(g []float64, t []int, out []float64) {
	var (
		d     = si.Dim
		nperm = float64(len(si.Permutations))
	)
	for n, seq := range si.Sequences {
		var sum float64
		for _, perm := range si.Permutations {
			prod := 1.
			for k, s := range seq {
				prod *= g[t[perm[k]]*d+s]
			}
			sum += prod
		}
		out[n] = sum / nperm
	}
}

func seqKey(seq []int) string {
	return fmt.Sprint(seq)
}

func permutations(m int) (perms [][]int) {
	var rec func(cur []int, used []bool)
	rec = func(cur []int, used []bool) {
		if len(cur) == m {
			perms = append(perms, append([]int{}, cur...))
			return
		}
		for i := 0; i < m; i++ {
			if !used[i] {
				used[i] = true
				rec(append(cur, i), used)
				used[i] = false
			}
		}
	}
	rec(make([]int, 0, m), make([]bool, m))
	return
}
