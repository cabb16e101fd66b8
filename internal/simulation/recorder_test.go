package simulation

import (
	"errors"
	"testing"

	"chialvo/internal/lattice"
)

type failingSink struct{}

func (failingSink) Sample(int, int, []float64) error { return errors.New("sink closed") }

func TestRecorderSamplesOnStride(t *testing.T) {
	s := lattice.NewState(2)
	s.X[0], s.X[1] = 0.123456, -1.99996
	rec := NewRecorder(2, 3, 4, false)

	for step := 0; step < 10; step++ {
		sampled, err := rec.Observe(step, s)
		if err != nil {
			t.Fatalf("observe: %v", err)
		}
		if sampled != (step%3 == 0) {
			t.Fatalf("step %d: sampled=%t", step, sampled)
		}
	}
	if rec.Ticks() != 4 {
		t.Fatalf("expected 4 ticks, got %d", rec.Ticks())
	}
	series := rec.Series()
	if len(series[0]) != 4 || series[0][0] != 0.1235 || series[1][0] != -2.0 {
		t.Fatalf("unexpected series: %+v", series)
	}
	if rec.Recovery() != nil {
		t.Fatal("recovery must stay nil when disabled")
	}
}

func TestRecorderPropagatesSinkErrors(t *testing.T) {
	rec := NewRecorder(1, 1, 1, true, failingSink{})
	_, err := rec.Observe(0, lattice.NewState(1))
	if err == nil {
		t.Fatal("expected sink error")
	}
	if len(rec.Recovery()[0]) != 1 {
		t.Fatal("expected recovery sample to be recorded")
	}
}
