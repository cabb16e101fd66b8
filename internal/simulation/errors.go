package simulation

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidConfig is wrapped by every ConfigError.
	ErrInvalidConfig = errors.New("simulation: invalid configuration")

	// ErrNumericalDivergence is wrapped by every DivergenceError.
	ErrNumericalDivergence = errors.New("simulation: state diverged (NaN or Inf detected)")
)

// FieldProblem names a single rejected parameter.
type FieldProblem struct {
	Field  string
	Reason string
}

// ConfigError is returned before any integration step when the parameters
// are non-finite or structurally invalid.
type ConfigError struct {
	Problems []FieldProblem
}

func (e *ConfigError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.Field+": "+p.Reason)
	}
	return fmt.Sprintf("%v: %s", ErrInvalidConfig, strings.Join(parts, "; "))
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

// DivergenceError reports the first non-finite node found during a run.
type DivergenceError struct {
	Step int
	Node int
	X    float64
	Y    float64
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("%v: node %d at step %d (x=%g, y=%g)", ErrNumericalDivergence, e.Node, e.Step, e.X, e.Y)
}

func (e *DivergenceError) Unwrap() error {
	return ErrNumericalDivergence
}
