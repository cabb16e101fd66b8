package simulation

import (
	"context"
	"fmt"
	"math/rand"

	"chialvo/internal/lattice"
)

// Result is the outcome of one completed run.
type Result struct {
	Params      Params      `json:"params"`
	Nodes       int         `json:"nodes"`
	Iterations  int         `json:"iterations"`
	SamplePhase SamplePhase `json:"sample_phase"`
	Series      [][]float64 `json:"series"`
	Recovery    [][]float64 `json:"recovery,omitempty"`
}

// Samples is the number of recorded ticks per node.
func (r Result) Samples() int {
	if len(r.Series) == 0 {
		return 0
	}
	return len(r.Series[0])
}

type runOptions struct {
	sinks    []SampleSink
	progress func(done, total int)
}

type Option func(*runOptions)

// WithSinks attaches observers that see every recorded tick.
func WithSinks(sinks ...SampleSink) Option {
	return func(o *runOptions) {
		o.sinks = append(o.sinks, sinks...)
	}
}

// WithProgress reports completed steps at every sampling tick and once at the
// end of the run.
func WithProgress(fn func(done, total int)) Option {
	return func(o *runOptions) {
		o.progress = fn
	}
}

// Simulate validates p, seeds the initializer with p.Seed, and runs
// floor(Tmax/DT) synchronous lattice steps, recording x every Stride steps.
// The same parameters always yield the same series. A run either completes
// or fails; no partial series is returned.
func Simulate(ctx context.Context, p Params, opts ...Option) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}

	topo, err := lattice.NewTopology(p.Topology, p.Size)
	if err != nil {
		return Result{}, &ConfigError{Problems: []FieldProblem{{Field: "topology", Reason: err.Error()}}}
	}

	rng := rand.New(rand.NewSource(p.Seed))
	state := lattice.RandomState(topo.Nodes(), rng)
	integrator := lattice.NewIntegrator(topo, p.Dynamics(), p.Workers)

	iterations := p.Iterations()
	phase := p.Phase()
	rec := NewRecorder(topo.Nodes(), p.Stride, p.Samples(), p.RecordRecovery, o.sinks...)

	for i := 0; i < iterations; i++ {
		if phase == PhasePre {
			if err := observe(ctx, rec, i, state); err != nil {
				return Result{}, err
			}
		}
		integrator.Step(state)
		if phase == PhasePost {
			if err := observe(ctx, rec, i, state); err != nil {
				return Result{}, err
			}
		}
		if o.progress != nil && i%p.Stride == 0 {
			o.progress(i+1, iterations)
		}
	}
	if err := checkFinite(state, iterations); err != nil {
		return Result{}, err
	}
	if o.progress != nil {
		o.progress(iterations, iterations)
	}

	return Result{
		Params:      p,
		Nodes:       topo.Nodes(),
		Iterations:  iterations,
		SamplePhase: phase,
		Series:      rec.Series(),
		Recovery:    rec.Recovery(),
	}, nil
}

func observe(ctx context.Context, rec *Recorder, step int, state *lattice.State) error {
	if step%rec.stride != 0 {
		return nil
	}
	if err := checkFinite(state, step); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := rec.Observe(step, state); err != nil {
		return fmt.Errorf("sample step %d: %w", step, err)
	}
	return nil
}

func checkFinite(state *lattice.State, step int) error {
	node, bad := state.NonFinite()
	if !bad {
		return nil
	}
	return &DivergenceError{Step: step, Node: node, X: state.X[node], Y: state.Y[node]}
}
