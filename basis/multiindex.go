package basis

import (
	"fmt"
	"math"
	"sync"

	"github.com/notargets/gofea/types"
	"github.com/notargets/gofea/utils"
)

type miKey struct{ p, TD int }

var (
	miCache = make(map[miKey][][]int)
	miMutex sync.Mutex
)

func NumberOfMultiIndices(p, TD int) int { return utils.Binomial(p+TD, TD) }

/*
MultiIndexMatrix enumerates the (TD+1)-tuples of non-negative integers summing to p, in the
order used by every simplex basis. Row 0 is (p, 0, ..., 0). The table is cached and shared, so
callers must not modify it.
*/
func MultiIndexMatrix(p, TD int) (mi [][]int, err error) {
	if TD < 1 || TD > 3 {
		err = fmt.Errorf("multi-index for TD = %d: %w", TD, types.ErrUnsupportedDimension)
		return
	}
	if p < 0 {
		err = fmt.Errorf("multi-index for negative order p = %d: %w", p, types.ErrShapeMismatch)
		return
	}
	key := miKey{p, TD}
	miMutex.Lock()
	defer miMutex.Unlock()
	if mi = miCache[key]; mi != nil {
		return
	}
	var (
		ldof = NumberOfMultiIndices(p, TD)
	)
	mi = make([][]int, ldof)
	for idx := 0; idx < ldof; idx++ {
		row := make([]int, TD+1)
		switch TD {
		case 1:
			row[1] = idx
		case 2:
			idx0 := int(math.Floor((-1 + math.Sqrt(1+8*float64(idx))) / 2))
			row[2] = idx - idx0*(idx0+1)/2
			row[1] = idx0 - row[2]
		case 3:
			fidx := float64(idx)
			t := math.Cbrt(3*fidx + math.Sqrt(81*fidx*fidx-1./3)/3)
			idx0 := 0
			if idx > 0 {
				idx0 = int(math.Floor(t + 1/t/3 - 1 + 1e-4))
			}
			idx1 := idx - idx0*(idx0+1)*(idx0+2)/6
			idx2 := int(math.Floor((-1 + math.Sqrt(1+8*float64(idx1))) / 2))
			row[3] = idx1 - idx2*(idx2+1)/2
			row[2] = idx2 - row[3]
			row[1] = idx0 - idx2
		}
		sum := 0
		for _, a := range row[1:] {
			sum += a
		}
		row[0] = p - sum
		mi[idx] = row
	}
	miCache[key] = mi
	return
}

// MultiIndexNumber is the inverse of MultiIndexMatrix: the row holding the tuple a.
func MultiIndexNumber(a []int) (idx int) {
	switch len(a) {
	case 2:
		idx = a[1]
	case 3:
		s := a[1] + a[2]
		idx = s*(s+1)/2 + a[2]
	case 4:
		s := a[1] + a[2] + a[3]
		s2 := a[2] + a[3]
		idx = s*(s+1)*(s+2)/6 + s2*(s2+1)/2 + a[3]
	default:
		panic(fmt.Errorf("multi-index number for a tuple of length %d", len(a)))
	}
	return
}
