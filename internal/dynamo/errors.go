package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for simulation operations.
var (
	// ErrConfig indicates invalid run parameters, reported before a run starts.
	ErrConfig = errors.New("dynamo: invalid configuration")

	// ErrDomain indicates a force model was evaluated outside its domain,
	// e.g. a particle sitting at the gravitational source.
	ErrDomain = errors.New("dynamo: force model domain error")

	// ErrInvalidState indicates a state with NaN or Inf components.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrDimensionMismatch indicates mismatched per-particle slice lengths.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between particles and vectors")
)

// SimulationError wraps an error with the step at which the run aborted.
type SimulationError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}

// DomainError reports the particle that triggered [ErrDomain].
type DomainError struct {
	Particle int
	Reason   string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("dynamo: particle %d: %s", e.Particle, e.Reason)
}

func (e *DomainError) Is(target error) bool {
	return target == ErrDomain
}

// Configf returns an error wrapping [ErrConfig].
func Configf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}
