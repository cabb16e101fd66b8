package simulation

import (
	"chialvo/internal/lattice"
)

// SamplePhase selects whether a tick records the state before or after the
// step with the same index is applied.
type SamplePhase string

const (
	PhasePre  SamplePhase = "pre"
	PhasePost SamplePhase = "post"
)

// Recording precision of sampled values.
const samplePlaces = 4

// SampleSink observes every recorded tick. The values slice is reused between
// calls and must not be retained.
type SampleSink interface {
	Sample(tick, step int, x []float64) error
}

// Recorder samples the fast variable of every node each stride steps.
type Recorder struct {
	stride   int
	series   [][]float64
	recovery [][]float64
	sinks    []SampleSink
	buf      []float64
	ticks    int
}

// NewRecorder preallocates expected samples per node. The recovery variable
// is recorded alongside x when recordRecovery is set.
func NewRecorder(nodes, stride, expected int, recordRecovery bool, sinks ...SampleSink) *Recorder {
	r := &Recorder{
		stride: stride,
		series: make([][]float64, nodes),
		sinks:  sinks,
		buf:    make([]float64, nodes),
	}
	for k := range r.series {
		r.series[k] = make([]float64, 0, expected)
	}
	if recordRecovery {
		r.recovery = make([][]float64, nodes)
		for k := range r.recovery {
			r.recovery[k] = make([]float64, 0, expected)
		}
	}
	return r
}

// Observe appends a sample for every node iff step is a multiple of the
// stride, and reports whether it did.
func (r *Recorder) Observe(step int, s *lattice.State) (bool, error) {
	if step%r.stride != 0 {
		return false, nil
	}
	for k, x := range s.X {
		v := lattice.Round(x, samplePlaces)
		r.series[k] = append(r.series[k], v)
		r.buf[k] = v
	}
	for k := range r.recovery {
		r.recovery[k] = append(r.recovery[k], lattice.Round(s.Y[k], samplePlaces))
	}
	tick := r.ticks
	r.ticks++
	for _, sink := range r.sinks {
		if err := sink.Sample(tick, step, r.buf); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (r *Recorder) Ticks() int { return r.ticks }

func (r *Recorder) Series() [][]float64 { return r.series }

// Recovery is nil unless the recorder was built with recordRecovery.
func (r *Recorder) Recovery() [][]float64 { return r.recovery }
