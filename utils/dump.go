package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"gonum.org/v1/gonum/mat"
)

func shapeString(shape []int) string {
	parts := make([]string, len(shape))
	for i, n := range shape {
		parts[i] = fmt.Sprintf("%d", n)
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func writeRow(w io.Writer, row []float64) (err error) {
	parts := make([]string, len(row))
	for i, x := range row {
		parts[i] = fmt.Sprintf("%.8f", x)
	}
	_, err = fmt.Fprintln(w, strings.Join(parts, "\t"))
	return
}

/*
WriteArray dumps a rank 1, 2 or 3 tensor as text. The first line is a shape comment, rows are
tab separated with 8 decimals, and a rank 3 tensor is written one "# Layer i" block per leading
index with a blank line after each block.
*/
func WriteArray(w io.Writer, T *Tensor) (err error) {
	bw := bufio.NewWriter(w)
	if _, err = fmt.Fprintf(bw, "# Array shape: %s\n", shapeString(T.Shape)); err != nil {
		return
	}
	switch T.Rank() {
	case 1:
		err = writeRow(bw, T.Data)
	case 2:
		for i := 0; i < T.Shape[0]; i++ {
			if err = writeRow(bw, T.Slab(i)); err != nil {
				return
			}
		}
	case 3:
		for i := 0; i < T.Shape[0]; i++ {
			if _, err = fmt.Fprintf(bw, "# Layer %d\n", i); err != nil {
				return
			}
			layer := T.Slab(i)
			for j := 0; j < T.Shape[1]; j++ {
				if err = writeRow(bw, layer[j*T.Shape[2]:(j+1)*T.Shape[2]]); err != nil {
					return
				}
			}
			if _, err = fmt.Fprintln(bw); err != nil {
				return
			}
		}
	default:
		return fmt.Errorf("cannot dump an array of shape %v", T.Shape)
	}
	if err != nil {
		return
	}
	return bw.Flush()
}

func WriteMatrix(w io.Writer, A mat.Matrix) error {
	nr, nc := A.Dims()
	T := NewTensor([]int{nr, nc})
	for i := 0; i < nr; i++ {
		for j := 0; j < nc; j++ {
			T.Data[i*nc+j] = A.At(i, j)
		}
	}
	return WriteArray(w, T)
}

func SaveArray(fileName string, T *Tensor) (err error) {
	var (
		file *os.File
	)
	if file, err = os.Create(fileName); err != nil {
		return
	}
	defer file.Close()
	return WriteArray(file, T)
}

func SaveMatrix(fileName string, A mat.Matrix) (err error) {
	var (
		file *os.File
	)
	if file, err = os.Create(fileName); err != nil {
		return
	}
	defer file.Close()
	return WriteMatrix(file, A)
}
