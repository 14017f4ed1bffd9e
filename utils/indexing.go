package utils

type Index []int

// NewIndexFromFlags collects the positions where flags is true, in ascending order.
func NewIndexFromFlags(flags []bool) (I Index) {
	I = make(Index, 0)
	for i, f := range flags {
		if f {
			I = append(I, i)
		}
	}
	return
}
