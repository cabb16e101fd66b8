package simulation

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"chialvo/internal/lattice"
)

func shortParams() Params {
	p := DefaultParams()
	p.Tmax = 20
	return p
}

func TestSimulateDefaultsShape(t *testing.T) {
	p := DefaultParams()
	res, err := Simulate(context.Background(), p)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if res.Iterations != 100000 {
		t.Fatalf("expected 100000 iterations, got %d", res.Iterations)
	}
	if len(res.Series) != 5 {
		t.Fatalf("expected 5 node series, got %d", len(res.Series))
	}
	want := res.Iterations / p.Stride
	for k, s := range res.Series {
		if d := len(s) - want; d < 0 || d > 1 {
			t.Fatalf("node %d: series length %d not within floor(%d/%d)+1", k, len(s), res.Iterations, p.Stride)
		}
	}
	if res.Samples() != p.Samples() {
		t.Fatalf("expected %d samples, got %d", p.Samples(), res.Samples())
	}
	if res.SamplePhase != PhasePre {
		t.Fatalf("expected ring default phase pre, got %s", res.SamplePhase)
	}
}

func TestSimulateIsDeterministic(t *testing.T) {
	p := shortParams()
	p.Topology = lattice.KindTorus
	p.Size = 4
	a, err := Simulate(context.Background(), p)
	if err != nil {
		t.Fatalf("simulate a: %v", err)
	}
	b, err := Simulate(context.Background(), p)
	if err != nil {
		t.Fatalf("simulate b: %v", err)
	}
	for k := range a.Series {
		for i := range a.Series[k] {
			if math.Float64bits(a.Series[k][i]) != math.Float64bits(b.Series[k][i]) {
				t.Fatalf("node %d sample %d differs: %v vs %v", k, i, a.Series[k][i], b.Series[k][i])
			}
		}
	}

	p.Seed = 11
	c, err := Simulate(context.Background(), p)
	if err != nil {
		t.Fatalf("simulate c: %v", err)
	}
	if c.Series[0][0] == a.Series[0][0] && c.Series[1][0] == a.Series[1][0] && c.Series[2][0] == a.Series[2][0] {
		t.Fatal("expected a different seed to change the trajectory")
	}
}

func TestSimulateDeterminismProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 15
	properties := gopter.NewProperties(parameters)

	properties.Property("same seed gives the same series", prop.ForAll(
		func(seed int64, size int, workers int) bool {
			p := shortParams()
			p.Tmax = 5
			p.Seed = seed
			p.Size = size
			p.Workers = workers
			a, errA := Simulate(context.Background(), p)
			p.Workers = 1
			b, errB := Simulate(context.Background(), p)
			if errA != nil || errB != nil {
				return false
			}
			for k := range a.Series {
				for i := range a.Series[k] {
					if a.Series[k][i] != b.Series[k][i] {
						return false
					}
				}
			}
			return true
		},
		gen.Int64(),
		gen.IntRange(1, 12),
		gen.IntRange(1, 4),
	))

	properties.TestingRun(t)
}

func TestSimulateFirstPreSampleIsInitialState(t *testing.T) {
	p := shortParams()
	res, err := Simulate(context.Background(), p)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	for k, s := range res.Series {
		if s[0] < lattice.InitialXMin || s[0] > lattice.InitialXMax {
			t.Fatalf("node %d: first pre-update sample %v outside initial range", k, s[0])
		}
		if lattice.Round(s[0], 2) != s[0] {
			t.Fatalf("node %d: first pre-update sample %v is not the 2-decimal initial value", k, s[0])
		}
	}
}

func TestSimulatePhasesAreOneStepApart(t *testing.T) {
	p := shortParams()
	p.Stride = 1
	p.SamplePhase = PhasePre
	pre, err := Simulate(context.Background(), p)
	if err != nil {
		t.Fatalf("simulate pre: %v", err)
	}
	p.SamplePhase = PhasePost
	post, err := Simulate(context.Background(), p)
	if err != nil {
		t.Fatalf("simulate post: %v", err)
	}
	if len(pre.Series[0]) != len(post.Series[0]) {
		t.Fatalf("phase lengths differ: %d vs %d", len(pre.Series[0]), len(post.Series[0]))
	}
	for k := range pre.Series {
		for i := 0; i+1 < len(pre.Series[k]); i++ {
			if pre.Series[k][i+1] != post.Series[k][i] {
				t.Fatalf("node %d: pre[%d]=%v post[%d]=%v", k, i+1, pre.Series[k][i+1], i, post.Series[k][i])
			}
		}
	}
}

func TestSimulateTorusDefaultsToPostPhase(t *testing.T) {
	p := shortParams()
	p.Topology = lattice.KindTorus
	p.Size = 3
	res, err := Simulate(context.Background(), p)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if res.SamplePhase != PhasePost {
		t.Fatalf("expected post phase for torus, got %s", res.SamplePhase)
	}
	if res.Nodes != 9 || len(res.Series) != 9 {
		t.Fatalf("expected 9 nodes, got %d/%d", res.Nodes, len(res.Series))
	}
}

type captureSink struct {
	ticks []int
	steps []int
	last  []float64
}

func (c *captureSink) Sample(tick, step int, x []float64) error {
	c.ticks = append(c.ticks, tick)
	c.steps = append(c.steps, step)
	c.last = append(c.last[:0], x...)
	return nil
}

func TestSimulateSamplesAreRoundedToFourPlaces(t *testing.T) {
	p := shortParams()
	p.RecordRecovery = true
	sink := &captureSink{}
	res, err := Simulate(context.Background(), p, WithSinks(sink))
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	for k := range res.Series {
		for i, v := range res.Series[k] {
			if lattice.Round(v, 4) != v {
				t.Fatalf("node %d sample %d not rounded: %v", k, i, v)
			}
			if r := res.Recovery[k][i]; lattice.Round(r, 4) != r {
				t.Fatalf("node %d recovery %d not rounded: %v", k, i, r)
			}
		}
	}
	if len(sink.ticks) != res.Samples() {
		t.Fatalf("sink saw %d ticks, want %d", len(sink.ticks), res.Samples())
	}
	for i, step := range sink.steps {
		if step != i*p.Stride {
			t.Fatalf("tick %d recorded at step %d", i, step)
		}
	}
	for k := range res.Series {
		if sink.last[k] != res.Series[k][len(res.Series[k])-1] {
			t.Fatalf("sink value for node %d does not match series", k)
		}
	}
}

func TestSimulateSingleNodeRing(t *testing.T) {
	p := shortParams()
	p.Size = 1
	res, err := Simulate(context.Background(), p)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if len(res.Series) != 1 || len(res.Series[0]) != p.Samples() {
		t.Fatalf("unexpected single node series shape: %d nodes", len(res.Series))
	}
}

func TestSimulateRejectsInvalidParams(t *testing.T) {
	cases := map[string]func(*Params){
		"zero size":     func(p *Params) { p.Size = 0 },
		"negative size": func(p *Params) { p.Size = -3 },
		"zero dt":       func(p *Params) { p.DT = 0 },
		"nan coupling":  func(p *Params) { p.Coupling = math.NaN() },
		"inf threshold": func(p *Params) { p.Threshold = math.Inf(1) },
		"zero stride":   func(p *Params) { p.Stride = 0 },
		"bad topology":  func(p *Params) { p.Topology = "hex" },
		"bad phase":     func(p *Params) { p.SamplePhase = "middle" },
		"huge run":      func(p *Params) { p.DT = 1e-300 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := shortParams()
			mutate(&p)
			called := false
			_, err := Simulate(context.Background(), p, WithProgress(func(int, int) { called = true }))
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) || len(cfgErr.Problems) == 0 {
				t.Fatalf("expected ConfigError with problems, got %v", err)
			}
			if called {
				t.Fatal("no step may run on invalid configuration")
			}
		})
	}
}

func TestSimulateReportsDivergence(t *testing.T) {
	p := shortParams()
	p.DT = 5
	p.Tmax = 500
	p.Stride = 1
	_, err := Simulate(context.Background(), p)
	if !errors.Is(err, ErrNumericalDivergence) {
		t.Fatalf("expected divergence, got %v", err)
	}
	var divErr *DivergenceError
	if !errors.As(err, &divErr) {
		t.Fatalf("expected DivergenceError, got %T", err)
	}
	if divErr.Node < 0 || divErr.Node >= p.Size {
		t.Fatalf("unexpected divergent node %d", divErr.Node)
	}
}

func TestSimulateHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Simulate(ctx, shortParams())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSimulateZeroIterations(t *testing.T) {
	p := shortParams()
	p.Tmax = 0
	res, err := Simulate(context.Background(), p)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if res.Iterations != 0 || res.Samples() != 0 {
		t.Fatalf("expected empty run, got %d iterations %d samples", res.Iterations, res.Samples())
	}
}
