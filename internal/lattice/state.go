package lattice

import (
	"math"
	"math/rand"
)

// Initial sampling ranges for the fast (x) and recovery (y) variables.
const (
	InitialXMin = -2.0
	InitialXMax = 0.4
	InitialYMin = 0.0
	InitialYMax = 4.0
)

// State holds the per-node (x, y) pairs of a lattice plus the coupling field
// of the most recent step. The next buffers receive the updated values during
// a step and are swapped in once every node has been computed.
type State struct {
	X []float64
	Y []float64
	S []float64

	nextX []float64
	nextY []float64
}

// NewState returns a zeroed state for n nodes.
func NewState(n int) *State {
	return &State{
		X:     make([]float64, n),
		Y:     make([]float64, n),
		S:     make([]float64, n),
		nextX: make([]float64, n),
		nextY: make([]float64, n),
	}
}

// RandomState draws x from U[-2, 0.4] and y from U[0, 4] for every node in
// node order (x then y per node), each rounded to 2 decimal places.
func RandomState(n int, rng *rand.Rand) *State {
	s := NewState(n)
	for k := 0; k < n; k++ {
		s.X[k] = Round(uniform(rng, InitialXMin, InitialXMax), 2)
		s.Y[k] = Round(uniform(rng, InitialYMin, InitialYMax), 2)
	}
	return s
}

func (s *State) Len() int {
	return len(s.X)
}

// NonFinite reports the first node whose x or y is NaN or infinite.
func (s *State) NonFinite() (int, bool) {
	for k := range s.X {
		if !finite(s.X[k]) || !finite(s.Y[k]) {
			return k, true
		}
	}
	return -1, false
}

// Clone returns a deep copy, including the coupling field.
func (s *State) Clone() *State {
	out := NewState(s.Len())
	copy(out.X, s.X)
	copy(out.Y, s.Y)
	copy(out.S, s.S)
	return out
}

func (s *State) swap() {
	s.X, s.nextX = s.nextX, s.X
	s.Y, s.nextY = s.nextY, s.Y
}

// Round rounds v half away from zero to the given number of decimal places.
func Round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
