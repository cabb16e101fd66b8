package lattice

import (
	"fmt"
	"strconv"
)

const (
	KindRing  = "ring"
	KindTorus = "torus"
)

// Topology is a fixed neighbour relation over nodes addressed by flat index.
// Neighbors returns the neighbour list in the topology's documented
// enumeration order; callers must not modify the returned slice.
type Topology interface {
	Kind() string
	Nodes() int
	Degree() int
	Neighbors(k int) []int
	Label(k int) string
}

// NewTopology builds a ring of size nodes or a size x size torus.
func NewTopology(kind string, size int) (Topology, error) {
	if size <= 0 {
		return nil, fmt.Errorf("lattice size must be > 0, got %d", size)
	}
	switch kind {
	case KindRing:
		return NewRing(size), nil
	case KindTorus:
		return NewTorus(size), nil
	default:
		return nil, fmt.Errorf("unsupported topology: %s", kind)
	}
}

// Ring is a 1-D periodic lattice. Neighbour order is [successor, predecessor].
type Ring struct {
	n     int
	table []int
}

// NewRing panics when n <= 0.
func NewRing(n int) *Ring {
	if n <= 0 {
		panic(fmt.Sprintf("lattice: ring size must be > 0, got %d", n))
	}
	table := make([]int, 0, 2*n)
	for i := 0; i < n; i++ {
		table = append(table, wrap(i+1, n), wrap(i-1, n))
	}
	return &Ring{n: n, table: table}
}

func (r *Ring) Kind() string { return KindRing }
func (r *Ring) Nodes() int   { return r.n }
func (r *Ring) Degree() int  { return 2 }

func (r *Ring) Neighbors(k int) []int {
	checkNode(k, r.n)
	return r.table[2*k : 2*k+2 : 2*k+2]
}

func (r *Ring) Label(k int) string {
	checkNode(k, r.n)
	return strconv.Itoa(k)
}

// Torus is a W x W grid with periodic boundaries on both axes. Node (r, c)
// has flat index r*W + c. Neighbour order is [up, down, left, right].
type Torus struct {
	w     int
	table []int
}

// NewTorus panics when w <= 0.
func NewTorus(w int) *Torus {
	if w <= 0 {
		panic(fmt.Sprintf("lattice: torus width must be > 0, got %d", w))
	}
	t := &Torus{w: w, table: make([]int, 0, 4*w*w)}
	for r := 0; r < w; r++ {
		for c := 0; c < w; c++ {
			t.table = append(t.table,
				wrap(r-1, w)*w+c,
				wrap(r+1, w)*w+c,
				r*w+wrap(c-1, w),
				r*w+wrap(c+1, w),
			)
		}
	}
	return t
}

func (t *Torus) Kind() string { return KindTorus }
func (t *Torus) Nodes() int   { return t.w * t.w }
func (t *Torus) Degree() int  { return 4 }
func (t *Torus) Width() int   { return t.w }

func (t *Torus) Neighbors(k int) []int {
	checkNode(k, t.w*t.w)
	return t.table[4*k : 4*k+4 : 4*k+4]
}

// Index converts a (row, col) pair to its flat index.
func (t *Torus) Index(row, col int) int {
	checkNode(row, t.w)
	checkNode(col, t.w)
	return row*t.w + col
}

// Coord converts a flat index to its (row, col) pair.
func (t *Torus) Coord(k int) (int, int) {
	checkNode(k, t.w*t.w)
	return k / t.w, k % t.w
}

func (t *Torus) Label(k int) string {
	row, col := t.Coord(k)
	return fmt.Sprintf("%d,%d", row, col)
}

func wrap(i, n int) int {
	return ((i % n) + n) % n
}

func checkNode(k, n int) {
	if k < 0 || k >= n {
		panic(fmt.Sprintf("lattice: node %d out of range [0,%d)", k, n))
	}
}
