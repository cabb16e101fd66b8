package lattice

import (
	"math"

	"golang.org/x/sync/errgroup"
)

// Dynamics carries the coefficients of the coupled map update. The engine
// applies them as given; no defaults and no range checks.
type Dynamics struct {
	DT         float64
	Threshold  float64
	Coupling   float64
	Epsilon    float64
	A          float64
	Beta       float64
	Bias       float64
	Excitation float64
}

// Integrator advances a State by one explicit Euler step of
//
//	S(k)  = w * sum(H(x[n] - t) for n in Nb(k))
//	dx(k) = (3x - x^3 + 2 - y + I + p + S(k)) * DT
//	dy(k) = (e * (a*(1 + tanh(x/B)) - y)) * DT
//
// Every S(k) is computed from the pre-step x before any node is written.
type Integrator struct {
	topo    Topology
	dyn     Dynamics
	workers int
}

// NewIntegrator splits each step phase across workers goroutines when
// workers > 1. Results are identical for any worker count.
func NewIntegrator(topo Topology, dyn Dynamics, workers int) *Integrator {
	if workers < 1 {
		workers = 1
	}
	if n := topo.Nodes(); workers > n {
		workers = n
	}
	return &Integrator{topo: topo, dyn: dyn, workers: workers}
}

func (in *Integrator) Topology() Topology { return in.topo }
func (in *Integrator) Dynamics() Dynamics { return in.dyn }

// Step applies one synchronous lattice update to s.
func (in *Integrator) Step(s *State) {
	n := in.topo.Nodes()
	if in.workers == 1 {
		in.coupling(s, 0, n)
		in.update(s, 0, n)
		s.swap()
		return
	}
	in.parallel(n, func(lo, hi int) { in.coupling(s, lo, hi) })
	in.parallel(n, func(lo, hi int) { in.update(s, lo, hi) })
	s.swap()
}

func (in *Integrator) coupling(s *State, lo, hi int) {
	t := in.dyn.Threshold
	for k := lo; k < hi; k++ {
		sum := 0.0
		for _, nb := range in.topo.Neighbors(k) {
			sum += H(s.X[nb] - t)
		}
		s.S[k] = in.dyn.Coupling * sum
	}
}

func (in *Integrator) update(s *State, lo, hi int) {
	d := in.dyn
	for k := lo; k < hi; k++ {
		x := s.X[k]
		y := s.Y[k]
		dx := (3*x - x*x*x + 2 - y + d.Excitation + d.Bias + s.S[k]) * d.DT
		dy := (d.Epsilon * (d.A*(1+math.Tanh(x/d.Beta)) - y)) * d.DT
		s.nextX[k] = x + dx
		s.nextY[k] = y + dy
	}
}

// parallel runs fn over contiguous node ranges and returns once all ranges
// are done, which is the barrier between the two phases of a step.
func (in *Integrator) parallel(n int, fn func(lo, hi int)) {
	var g errgroup.Group
	chunk := (n + in.workers - 1) / in.workers
	for lo := 0; lo < n; lo += chunk {
		lo, hi := lo, min(lo+chunk, n)
		g.Go(func() error {
			fn(lo, hi)
			return nil
		})
	}
	_ = g.Wait()
}
