package types

import (
	"fmt"
	"math"
	"sort"
)

/*
EdgeKey is an always positive number that stores an edge's vertices as indices in a way that can be compared
An edge between vertices [4] and [0] will always be stored as [0,4], in the ascending order of the index values
*/
type EdgeKey uint64

func NewEdgeKey(verts [2]int) (packed EdgeKey) {
	// This packs two index coordinates into two 32 bit unsigned integers to act as a hash and an indirect access method
	var (
		limit = math.MaxUint32
	)
	for _, vert := range verts {
		if vert < 0 || vert > limit {
			panic(fmt.Errorf("unable to pack two ints into a uint64, have %d and %d as inputs",
				verts[0], verts[1]))
		}
	}
	var i1, i2 int
	if verts[0] <= verts[1] {
		i1, i2 = verts[0], verts[1]
	} else {
		i1, i2 = verts[1], verts[0]
	}
	packed = EdgeKey(i1 + i2<<32)
	return
}

func (ek EdgeKey) GetVertices(rev bool) (verts [2]int) {
	var (
		enTmp EdgeKey
	)
	enTmp = ek >> 32
	verts[1] = int(enTmp)
	verts[0] = int(ek - enTmp*(1<<32))
	if rev {
		verts[0], verts[1] = verts[1], verts[0]
	}
	return
}

/*
FaceKey identifies a face (triangle or quadrilateral) by its sorted vertex indices. Unused slots
are -1, so a triangle [7,2,5] is stored as [2,5,7,-1]. Arrays compare by value, which lets the key
index a map directly.
*/
type FaceKey [4]int

func NewFaceKey(verts []int) (fk FaceKey) {
	if len(verts) < 3 || len(verts) > 4 {
		panic(fmt.Errorf("a face has 3 or 4 vertices, have %d", len(verts)))
	}
	sorted := make([]int, len(verts))
	copy(sorted, verts)
	sort.Ints(sorted)
	fk = FaceKey{-1, -1, -1, -1}
	copy(fk[:], sorted)
	return
}

func (fk FaceKey) GetVertices() (verts []int) {
	for _, v := range fk {
		if v >= 0 {
			verts = append(verts, v)
		}
	}
	return
}
