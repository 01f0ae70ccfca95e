package dynamo

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Particle is a single point mass. Species and Mass are fixed for a run.
type Particle struct {
	Species  string
	Mass     float64
	Position r3.Vec
	Velocity r3.Vec
}

// System is the complete simulation state owned by one run.
type System struct {
	Particles []Particle
	Time      float64
	Step      int
}

// NewSystem builds a system from parallel per-particle slices. A nil
// velocities slice starts every particle at rest.
func NewSystem(species []string, masses []float64, positions, velocities []r3.Vec) (*System, error) {
	n := len(species)
	if n == 0 {
		return nil, Configf("no particles")
	}
	if len(masses) != n {
		return nil, Configf("%d species but %d masses: %v", n, len(masses), ErrDimensionMismatch)
	}
	if len(positions) != n {
		return nil, Configf("%d species but %d positions: %v", n, len(positions), ErrDimensionMismatch)
	}
	if velocities != nil && len(velocities) != n {
		return nil, Configf("%d species but %d velocities: %v", n, len(velocities), ErrDimensionMismatch)
	}

	sys := &System{Particles: make([]Particle, n)}
	for i := range species {
		if !(masses[i] > 0) {
			return nil, Configf("particle %d (%s): mass must be positive, got %g", i, species[i], masses[i])
		}
		p := Particle{Species: species[i], Mass: masses[i], Position: positions[i]}
		if velocities != nil {
			p.Velocity = velocities[i]
		}
		sys.Particles[i] = p
	}
	return sys, nil
}

func (s *System) Len() int { return len(s.Particles) }

func (s *System) Clone() *System {
	c := &System{
		Particles: make([]Particle, len(s.Particles)),
		Time:      s.Time,
		Step:      s.Step,
	}
	copy(c.Particles, s.Particles)
	return c
}

func (s *System) Species() []string {
	out := make([]string, len(s.Particles))
	for i, p := range s.Particles {
		out[i] = p.Species
	}
	return out
}

func (s *System) Positions() []r3.Vec {
	out := make([]r3.Vec, len(s.Particles))
	for i, p := range s.Particles {
		out[i] = p.Position
	}
	return out
}

func (s *System) Velocities() []r3.Vec {
	out := make([]r3.Vec, len(s.Particles))
	for i, p := range s.Particles {
		out[i] = p.Velocity
	}
	return out
}

func (s *System) KineticEnergy() float64 {
	ke := 0.0
	for _, p := range s.Particles {
		ke += 0.5 * p.Mass * r3.Norm2(p.Velocity)
	}
	return ke
}

// IsValid reports whether every position and velocity component is finite.
func (s *System) IsValid() bool {
	for _, p := range s.Particles {
		if !finite(p.Position) || !finite(p.Velocity) {
			return false
		}
	}
	return true
}

// Frame returns a copy of the current state for observers.
func (s *System) Frame() Frame {
	return Frame{
		Step:       s.Step,
		Time:       s.Time,
		Masses:     s.masses(),
		Positions:  s.Positions(),
		Velocities: s.Velocities(),
	}
}

func (s *System) masses() []float64 {
	out := make([]float64, len(s.Particles))
	for i, p := range s.Particles {
		out[i] = p.Mass
	}
	return out
}

func finite(v r3.Vec) bool {
	for _, c := range [3]float64{v.X, v.Y, v.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Frame is a read-only copy of the system at the end of a step. Mutating
// its slices never affects the running system.
type Frame struct {
	Step       int
	Time       float64
	Masses     []float64
	Positions  []r3.Vec
	Velocities []r3.Vec
}

// System rebuilds a standalone system from the frame. Species are not
// part of a frame and are left empty.
func (f Frame) System() *System {
	sys := &System{Particles: make([]Particle, len(f.Positions)), Time: f.Time, Step: f.Step}
	for i := range sys.Particles {
		sys.Particles[i] = Particle{Mass: f.Masses[i], Position: f.Positions[i], Velocity: f.Velocities[i]}
	}
	return sys
}

// ForceModel maps a configuration to its potential energy and the
// per-particle forces (negative gradient of the energy).
type ForceModel interface {
	Energy(sys *System) (float64, error)
	// Forces writes one force per particle into dst, reallocating it when
	// its length does not match, and returns it.
	Forces(sys *System, dst []r3.Vec) ([]r3.Vec, error)
}

// Stepper advances the system by one timestep dt, including the clock.
type Stepper interface {
	Step(sys *System, model ForceModel, dt float64) error
}

// Resetter is implemented by steppers that cache state between steps.
type Resetter interface {
	Reset()
}

type Observer interface {
	OnStep(f Frame)
}

// ObserverFunc adapts a plain function to [Observer].
type ObserverFunc func(f Frame)

func (fn ObserverFunc) OnStep(f Frame) { fn(f) }

type Metric interface {
	Name() string
	Observe(f Frame)
	Value() float64
	Reset()
}

// Starter is implemented by metrics that need the pre-run frame.
type Starter interface {
	Start(f Frame)
}

type Config struct {
	Dt            float64
	Steps         int
	ValidateState bool
	// LogEvery sets the progress log interval in steps; zero disables it.
	LogEvery int
}

func DefaultConfig() Config {
	return Config{
		Dt:            0.01,
		Steps:         20000,
		ValidateState: true,
		LogEvery:      5000,
	}
}

func (c Config) Validate() error {
	if !(c.Dt > 0) || math.IsInf(c.Dt, 0) {
		return Configf("dt must be positive, got %g", c.Dt)
	}
	if c.Steps <= 0 {
		return Configf("steps must be positive, got %d", c.Steps)
	}
	if c.LogEvery < 0 {
		return Configf("log interval must not be negative, got %d", c.LogEvery)
	}
	return nil
}

type Result struct {
	Initial       Frame
	Final         Frame
	Trajectory    *Trajectory
	StepsTaken    int
	InitialEnergy float64
	FinalEnergy   float64
	// EnergyDrift is |E_final - E_initial| / |E_initial|.
	EnergyDrift float64
	Metrics     map[string]float64
}
