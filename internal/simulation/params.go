package simulation

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"chialvo/internal/lattice"
)

const (
	maxIterations = 1 << 40
	maxNodes      = 1 << 24
)

// Params are the recognized simulation options. Size is the neuron count for
// the ring and the grid width for the torus.
type Params struct {
	Topology       string      `json:"topology" yaml:"topology" validate:"oneof=ring torus"`
	Size           int         `json:"size" yaml:"size" validate:"min=1"`
	DT             float64     `json:"dt" yaml:"dt" validate:"finite,gt=0"`
	Tmax           float64     `json:"tmax" yaml:"tmax" validate:"finite,gte=0"`
	Threshold      float64     `json:"threshold" yaml:"threshold" validate:"finite"`
	Coupling       float64     `json:"coupling" yaml:"coupling" validate:"finite"`
	Epsilon        float64     `json:"epsilon" yaml:"epsilon" validate:"finite"`
	A              float64     `json:"a" yaml:"a" validate:"finite"`
	Beta           float64     `json:"beta" yaml:"beta" validate:"finite"`
	Bias           float64     `json:"bias" yaml:"bias" validate:"finite"`
	Excitation     float64     `json:"excitation" yaml:"excitation" validate:"finite"`
	Stride         int         `json:"stride" yaml:"stride" validate:"min=1"`
	Seed           int64       `json:"seed" yaml:"seed"`
	SamplePhase    SamplePhase `json:"sample_phase,omitempty" yaml:"sample_phase,omitempty" validate:"omitempty,oneof=pre post"`
	Workers        int         `json:"workers,omitempty" yaml:"workers,omitempty" validate:"min=0"`
	RecordRecovery bool        `json:"record_recovery,omitempty" yaml:"record_recovery,omitempty"`
}

// DefaultParams returns the reference configuration: a ring of 5 nodes run
// for Tmax=1000 at DT=0.01, sampled every 15 steps, seeded with 10.
func DefaultParams() Params {
	return Params{
		Topology:   lattice.KindRing,
		Size:       5,
		DT:         0.01,
		Tmax:       1000,
		Threshold:  0.5,
		Coupling:   0.3,
		Epsilon:    0.02,
		A:          6,
		Beta:       0.1,
		Bias:       0,
		Excitation: 0.1,
		Stride:     15,
		Seed:       10,
		Workers:    1,
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	})
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate returns a *ConfigError describing every rejected field.
func (p Params) Validate() error {
	var problems []FieldProblem
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return &ConfigError{Problems: []FieldProblem{{Field: "params", Reason: err.Error()}}}
		}
		for _, fe := range verrs {
			problems = append(problems, FieldProblem{Field: fe.Field(), Reason: describe(fe)})
		}
	}
	if len(problems) == 0 {
		if steps := p.Tmax / p.DT; steps > maxIterations {
			problems = append(problems, FieldProblem{Field: "tmax", Reason: fmt.Sprintf("tmax/dt = %g exceeds %d steps", steps, maxIterations)})
		}
		if p.Size > maxNodes || (p.Topology == lattice.KindTorus && p.Size*p.Size > maxNodes) {
			problems = append(problems, FieldProblem{Field: "size", Reason: fmt.Sprintf("lattice exceeds %d nodes", maxNodes)})
		}
	}
	if len(problems) > 0 {
		return &ConfigError{Problems: problems}
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "finite":
		return "must be finite"
	case "gt":
		return "must be > " + fe.Param()
	case "gte":
		return "must be >= " + fe.Param()
	case "min":
		return "must be >= " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// Iterations is floor(Tmax / DT).
func (p Params) Iterations() int {
	return int(math.Floor(p.Tmax / p.DT))
}

// Nodes is the number of lattice nodes the parameters describe.
func (p Params) Nodes() int {
	if p.Topology == lattice.KindTorus {
		return p.Size * p.Size
	}
	return p.Size
}

// Phase resolves the sampling phase, falling back to the topology default:
// pre-update for the ring, post-update for the torus.
func (p Params) Phase() SamplePhase {
	if p.SamplePhase != "" {
		return p.SamplePhase
	}
	if p.Topology == lattice.KindTorus {
		return PhasePost
	}
	return PhasePre
}

// Samples is the number of recorded ticks a run produces.
func (p Params) Samples() int {
	n := p.Iterations()
	if n <= 0 {
		return 0
	}
	samples := n / p.Stride
	if n%p.Stride != 0 {
		samples++
	}
	return samples
}

func (p Params) Dynamics() lattice.Dynamics {
	return lattice.Dynamics{
		DT:         p.DT,
		Threshold:  p.Threshold,
		Coupling:   p.Coupling,
		Epsilon:    p.Epsilon,
		A:          p.A,
		Beta:       p.Beta,
		Bias:       p.Bias,
		Excitation: p.Excitation,
	}
}
