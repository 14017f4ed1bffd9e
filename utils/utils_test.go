package utils

import (
	"bytes"
	"math"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestPartitionMap(t *testing.T) {
	{ // Buckets differ in size by at most one and cover every index
		getHisto := func(K, Np int) (histo map[int]int) {
			pm := NewPartitionMap(Np, K)
			histo = make(map[int]int)
			for np := 0; np < pm.ParallelDegree; np++ {
				kMin, kMax := pm.GetBucketRange(np)
				histo[kMax-kMin]++
			}
			return
		}
		assert.Equal(t, map[int]int{0: 30, 1: 2}, getHisto(2, 32))
		assert.Equal(t, map[int]int{1: 32}, getHisto(32, 32))
		assert.Equal(t, map[int]int{8: 32}, getHisto(256, 32))
		assert.Equal(t, map[int]int{8: 1, 9: 31}, getHisto(287, 32))
	}
	{ // Inverted bucket lookup
		for maxIndex := 10; maxIndex < 200; maxIndex++ {
			pm := NewPartitionMap(5, maxIndex)
			for k := 0; k < maxIndex; k++ {
				bn, min, max := pm.GetBucket(k)
				mmin, mmax := pm.GetBucketRange(bn)
				assert.True(t, k >= min && k < max && min == mmin && max == mmax)
			}
			bn, _, _ := pm.GetBucket(maxIndex)
			assert.Equal(t, -1, bn)
		}
	}
	{ // ParallelFor visits each index once
		var (
			N       = 1001
			visited = make([]int32, N)
			total   int64
		)
		pm := NewPartitionMap(ParallelDegree(7, N), N)
		pm.ParallelFor(func(bucket, kMin, kMax int) {
			for k := kMin; k < kMax; k++ {
				atomic.AddInt32(&visited[k], 1)
				atomic.AddInt64(&total, int64(k))
			}
		})
		for k := range visited {
			assert.Equal(t, int32(1), visited[k])
		}
		assert.Equal(t, int64(N*(N-1)/2), total)
		assert.Equal(t, 3, ParallelDegree(8, 3))
		assert.Equal(t, 1, ParallelDegree(4, 0))
		assert.True(t, ParallelDegree(0, 1000) >= 1)
	}
}

func TestTensor(t *testing.T) {
	T := NewTensor([]int{2, 3, 4})
	assert.Equal(t, []int{12, 4, 1}, T.Strides)
	assert.Equal(t, 24, T.Size())
	T.Set(5, 1, 2, 3)
	assert.Equal(t, 5., T.Data[23])
	assert.Equal(t, 5., T.At(1, 2, 3))
	T.AddAt(1, 1, 2, 3)
	assert.Equal(t, 6., T.At(1, 2, 3))

	sub := T.SubTensor(1)
	assert.Equal(t, []int{3, 4}, sub.Shape)
	assert.Equal(t, 6., sub.At(2, 3))
	sub.Set(-1, 0, 0)
	assert.Equal(t, -1., T.At(1, 0, 0))

	C := T.Copy()
	C.Scale(2)
	assert.Equal(t, 6., T.At(1, 2, 3))
	assert.Equal(t, 12., C.At(1, 2, 3))
	assert.True(t, C.SameShape(T))
	assert.False(t, C.SameShape(T.Reshape(6, 4)))
	assert.False(t, IsNan(T))
	T.Data[0] = math.NaN()
	assert.True(t, IsNan(T))

	assert.Panics(t, func() { NewTensor([]int{2, 2}, []float64{1, 2, 3}) })
	assert.Panics(t, func() { T.At(1, 2) })
}

func TestTriplets(t *testing.T) {
	T := NewTriplets(3, 3)
	T.Add(0, 0, 1)
	T.Add(2, 1, 4)
	T.Add(0, 0, 2)
	T.Add(1, 2, -1)
	T.Add(2, 0, 3)
	assert.Equal(t, 4, T.Len())
	assert.Panics(t, func() { T.Add(3, 0, 1) })

	A := T.ToCSR()
	raw := A.RawMatrix()
	assert.Equal(t, []int{0, 1, 2, 4}, raw.Indptr)
	assert.ElementsMatch(t, []int{0, 1}, raw.Ind[2:4])
	assert.Equal(t, 4, A.NNZ())
	assert.Equal(t, 3., A.At(0, 0))
	assert.Equal(t, 0., A.At(0, 1))
	assert.Equal(t, 4., A.At(2, 1))

	B := T.ToCOO()
	assert.Equal(t, 4, B.NNZ())
	assert.Equal(t, 3., B.At(0, 0))
	assert.True(t, mat.Equal(A.ToDense(), B.ToCSR().ToDense()))

	{ // Repeated coordinates within a row, including its first entry, collapse to one
		R := NewTriplets(2, 3)
		for k := 0; k < 3; k++ {
			R.Add(1, 2, 1)
			R.Add(1, 0, 2)
			R.Add(0, 1, 0.5)
		}
		assert.Equal(t, 3, R.Len())
		C := R.ToCSR()
		assert.Equal(t, 3, C.NNZ())
		assert.Equal(t, []int{0, 1, 3}, C.RawMatrix().Indptr)
		assert.Equal(t, 6., C.At(1, 0))
		assert.Equal(t, 3., C.At(1, 2))
		assert.Equal(t, 1.5, C.At(0, 1))
		var sum float64
		C.DoNonZero(func(i, j int, v float64) { sum += v })
		assert.Equal(t, 10.5, sum)

		// a COO with repeats sums on conversion
		D := NewCOO(2, 2, []int{0, 0, 1}, []int{1, 1, 0}, []float64{1, 2, 4}).ToCSR()
		assert.Equal(t, 2, D.NNZ())
		assert.Equal(t, 3., D.At(0, 1))
	}

	{ // Local block scatter with offsets
		S := NewTriplets(4, 4)
		S.AddBlock([]int{0, 1}, []int{1, 0}, 2, 2, []float64{1, 2, 3, 4})
		D := S.ToCSR().ToDense()
		assert.Equal(t, 2., D.At(2, 2))
		assert.Equal(t, 1., D.At(2, 3))
		assert.Equal(t, 4., D.At(3, 2))
		assert.Equal(t, 3., D.At(3, 3))
	}
}

func TestCSR(t *testing.T) {
	T := NewTriplets(2, 3)
	T.Add(0, 0, 1)
	T.Add(0, 2, 2)
	T.Add(1, 1, 3)
	A := T.ToCSR()
	assert.Equal(t, []float64{7, 6}, A.MulVec([]float64{1, 2, 3}))
	assert.Panics(t, func() { A.MulVec([]float64{1}) })

	At := A.Transpose()
	assert.Equal(t, A.NNZ(), At.NNZ())
	r, c := At.Dims()
	assert.Equal(t, [2]int{3, 2}, [2]int{r, c})
	assert.Equal(t, 2., At.At(2, 0))
	assert.True(t, mat.Equal(A.ToDense().T(), At.ToDense()))

	B := A.Copy()
	require.NoError(t, B.Set(0, 2, 10))
	assert.Error(t, B.Set(1, 0, 1))
	assert.Equal(t, 2., A.At(0, 2))
	assert.Equal(t, 10., B.At(0, 2))
	assert.Equal(t, []float64{31, 6}, B.MulVec([]float64{1, 2, 3}))

	B.SetReadOnly("B")
	assert.True(t, B.IsReadOnly())
	assert.Panics(t, func() { _ = B.Set(0, 0, 1) })
	B.SetWritable()
	assert.NoError(t, B.Set(0, 0, 1))

	var count int
	A.DoNonZero(func(i, j int, v float64) { count++ })
	assert.Equal(t, A.NNZ(), count)
	assert.Equal(t, []float64{1, 3}, A.Diagonal())

	sf, err := NewSparseFormat("coo")
	assert.NoError(t, err)
	assert.Equal(t, COOFormat, sf)
	assert.Equal(t, "csr", CSRFormat.String())
	_, err = NewSparseFormat("dia")
	assert.Error(t, err)
}

func TestDump(t *testing.T) {
	var buf bytes.Buffer
	T := NewTensor([]int{2, 2}, []float64{1, 2, 3.5, -4})
	require.NoError(t, WriteArray(&buf, T))
	assert.Equal(t, "# Array shape: (2, 2)\n1.00000000\t2.00000000\n3.50000000\t-4.00000000\n", buf.String())

	buf.Reset()
	T3 := NewTensor([]int{2, 1, 2}, []float64{1, 2, 3, 4})
	require.NoError(t, WriteArray(&buf, T3))
	lines := strings.Split(buf.String(), "\n")
	assert.Equal(t, "# Array shape: (2, 1, 2)", lines[0])
	assert.Equal(t, "# Layer 0", lines[1])
	assert.Equal(t, "1.00000000\t2.00000000", lines[2])
	assert.Equal(t, "", lines[3])
	assert.Equal(t, "# Layer 1", lines[4])

	buf.Reset()
	require.NoError(t, WriteMatrix(&buf, mat.NewDense(1, 2, []float64{0.5, 0})))
	assert.Equal(t, "# Array shape: (1, 2)\n0.50000000\t0.00000000\n", buf.String())
	assert.Error(t, WriteArray(&buf, NewTensor([]int{1, 1, 1, 1})))
}

func TestIndexAndMath(t *testing.T) {
	assert.Equal(t, Index{1, 3}, NewIndexFromFlags([]bool{false, true, false, true}))
	assert.Equal(t, 10, Binomial(5, 2))
	assert.Equal(t, 1, Binomial(3, 0))
	assert.Equal(t, 0, Binomial(2, 3))
	assert.Equal(t, 120., Factorial(5))
	assert.Equal(t, 1., Factorial(0))
	assert.InDelta(t, 1./27, POW(3, -3), 1e-15)
	assert.Equal(t, 11., Dot([]float64{1, 2}, []float64{3, 4}))
}
