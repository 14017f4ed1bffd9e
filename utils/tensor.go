package utils

import (
	"fmt"
	"strings"
)

/*
Tensor is a dense row-major array of arbitrary rank. The last index varies fastest, so a
(NC, NQ, ldof, GD) gradient table stores one contiguous (NQ, ldof, GD) slab per cell.
*/
type Tensor struct {
	Shape   []int
	Strides []int
	Data    []float64
}

func NewTensor(shape []int, dataO ...[]float64) (T *Tensor) {
	var (
		size = 1
	)
	for _, n := range shape {
		if n < 0 {
			panic(fmt.Errorf("negative tensor dimension in shape %v", shape))
		}
		size *= n
	}
	T = &Tensor{
		Shape:   append([]int{}, shape...),
		Strides: make([]int, len(shape)),
	}
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		T.Strides[i] = stride
		stride *= shape[i]
	}
	if len(dataO) != 0 {
		if len(dataO[0]) != size {
			panic(fmt.Errorf("data length %d does not match shape %v", len(dataO[0]), shape))
		}
		T.Data = dataO[0]
	} else {
		T.Data = make([]float64, size)
	}
	return
}

func (T *Tensor) Rank() int { return len(T.Shape) }

func (T *Tensor) Size() int { return len(T.Data) }

func (T *Tensor) Dim(i int) int { return T.Shape[i] }

func (T *Tensor) Offset(idx ...int) (ind int) {
	if len(idx) != len(T.Shape) {
		panic(fmt.Errorf("index %v has rank %d, tensor has shape %v", idx, len(idx), T.Shape))
	}
	for i, ii := range idx {
		ind += ii * T.Strides[i]
	}
	return
}

func (T *Tensor) At(idx ...int) float64 { return T.Data[T.Offset(idx...)] }

func (T *Tensor) Set(val float64, idx ...int) { T.Data[T.Offset(idx...)] = val }

func (T *Tensor) AddAt(val float64, idx ...int) { T.Data[T.Offset(idx...)] += val }

// Slab returns the contiguous storage under leading index i, aliased to the tensor.
func (T *Tensor) Slab(i int) []float64 {
	n := T.Strides[0]
	return T.Data[i*n : (i+1)*n]
}

// SubTensor aliases the slab under leading index i as a tensor of one lower rank.
func (T *Tensor) SubTensor(i int) *Tensor {
	return NewTensor(T.Shape[1:], T.Slab(i))
}

func (T *Tensor) Copy() (R *Tensor) {
	R = NewTensor(T.Shape)
	copy(R.Data, T.Data)
	return
}

func (T *Tensor) Reshape(shape ...int) (R *Tensor) {
	return NewTensor(shape, T.Data)
}

func (T *Tensor) Scale(a float64) *Tensor {
	for i := range T.Data {
		T.Data[i] *= a
	}
	return T
}

func (T *Tensor) SameShape(S *Tensor) bool {
	if len(T.Shape) != len(S.Shape) {
		return false
	}
	for i := range T.Shape {
		if T.Shape[i] != S.Shape[i] {
			return false
		}
	}
	return true
}

func (T *Tensor) String() string {
	var (
		b strings.Builder
	)
	fmt.Fprintf(&b, "Tensor%v\n", T.Shape)
	if len(T.Shape) == 0 || T.Size() == 0 {
		return b.String()
	}
	last := T.Shape[len(T.Shape)-1]
	for i := 0; i < T.Size(); i += last {
		fmt.Fprintf(&b, "%8.5f\n", T.Data[i:i+last])
	}
	return b.String()
}
