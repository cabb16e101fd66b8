package lattice

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func referenceDynamics() Dynamics {
	return Dynamics{
		DT:         0.01,
		Threshold:  0.5,
		Coupling:   0.3,
		Epsilon:    0.02,
		A:          6,
		Beta:       0.1,
		Bias:       0,
		Excitation: 0.1,
	}
}

func TestStepTwoNodeRingIsSynchronous(t *testing.T) {
	d := referenceDynamics()
	s := NewState(2)
	s.X[0], s.Y[0] = 0.49, 0
	s.X[1], s.Y[1] = 0, 0

	NewIntegrator(NewRing(2), d, 1).Step(s)

	// Node 0 is below threshold before the step and above it after. Node 1
	// must see the pre-step value, so it receives no coupling.
	require.Equal(t, 0.0, s.S[0])
	require.Equal(t, 0.0, s.S[1])
	require.Greater(t, s.X[0], d.Threshold)

	x0 := 0.49 + (3*0.49-0.49*0.49*0.49+2-0+0.1+0+0)*0.01
	y0 := 0 + (0.02*(6*(1+math.Tanh(0.49/0.1))-0))*0.01
	require.InDelta(t, 0.52452351, x0, 1e-12)
	require.InDelta(t, x0, s.X[0], 1e-15)
	require.InDelta(t, y0, s.Y[0], 1e-15)

	require.InDelta(t, 0.021, s.X[1], 1e-15)
	require.InDelta(t, (0.02*(6*(1+math.Tanh(0))-0))*0.01, s.Y[1], 1e-15)
}

func TestStepThreeNodeRingHandComputed(t *testing.T) {
	d := referenceDynamics()
	s := NewState(3)
	copy(s.X, []float64{0.6, 0.0, -1.0})
	copy(s.Y, []float64{1, 2, 3})

	NewIntegrator(NewRing(3), d, 1).Step(s)

	require.InDeltaSlice(t, []float64{0, 0.3, 0.3}, s.S, 1e-15)
	require.InDelta(t, 0.62684, s.X[0], 1e-12)
	require.InDelta(t, 0.004, s.X[1], 1e-12)
	require.InDelta(t, -1.026, s.X[2], 1e-12)

	for k, x := range []float64{0.6, 0.0, -1.0} {
		y := []float64{1, 2, 3}[k]
		want := y + (0.02*(6*(1+math.Tanh(x/0.1))-y))*0.01
		require.InDelta(t, want, s.Y[k], 1e-15, "node %d", k)
	}
}

func TestStepSingleNodeRingCouplesToItself(t *testing.T) {
	d := referenceDynamics()
	s := NewState(1)
	s.X[0], s.Y[0] = 1.0, 0.5

	NewIntegrator(NewRing(1), d, 1).Step(s)

	require.InDelta(t, 0.6, s.S[0], 1e-15)
	require.InDelta(t, 1.0+(3-1+2-0.5+0.1+0+0.6)*0.01, s.X[0], 1e-15)
}

func TestStepParallelMatchesSequential(t *testing.T) {
	d := referenceDynamics()
	topo := NewTorus(7)
	seq := RandomState(topo.Nodes(), rand.New(rand.NewSource(3)))
	par := seq.Clone()

	sequential := NewIntegrator(topo, d, 1)
	parallel := NewIntegrator(topo, d, 4)
	for i := 0; i < 500; i++ {
		sequential.Step(seq)
		parallel.Step(par)
	}
	require.Equal(t, seq.X, par.X)
	require.Equal(t, seq.Y, par.Y)
	require.Equal(t, seq.S, par.S)
}

func TestStepLargeTimeStepDiverges(t *testing.T) {
	d := referenceDynamics()
	d.DT = 10
	s := NewState(3)
	copy(s.X, []float64{1.5, -1.5, 0.3})

	in := NewIntegrator(NewRing(3), d, 1)
	for i := 0; i < 20; i++ {
		in.Step(s)
	}
	_, bad := s.NonFinite()
	require.True(t, bad)
}

func TestRandomStateIsSeededAndRounded(t *testing.T) {
	a := RandomState(50, rand.New(rand.NewSource(10)))
	b := RandomState(50, rand.New(rand.NewSource(10)))
	require.Equal(t, a.X, b.X)
	require.Equal(t, a.Y, b.Y)

	for k := 0; k < a.Len(); k++ {
		require.GreaterOrEqual(t, a.X[k], InitialXMin)
		require.LessOrEqual(t, a.X[k], InitialXMax)
		require.GreaterOrEqual(t, a.Y[k], InitialYMin)
		require.LessOrEqual(t, a.Y[k], InitialYMax)
		require.Equal(t, Round(a.X[k], 2), a.X[k])
		require.Equal(t, Round(a.Y[k], 2), a.Y[k])
	}

	c := RandomState(50, rand.New(rand.NewSource(11)))
	require.NotEqual(t, a.X, c.X)
}

func TestRound(t *testing.T) {
	require.Equal(t, 1.23, Round(1.2345, 2))
	require.Equal(t, -0.5, Round(-0.499999, 4))
	require.Equal(t, 0.1235, Round(0.12345678, 4))
}
