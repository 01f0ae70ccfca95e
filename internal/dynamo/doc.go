// Package dynamo provides the core types for point-mass orbital simulation.
//
// The package defines the state and capability interfaces shared by the
// force models, integrators and simulator:
//
//   - [Particle]: species, mass, position and velocity of one point mass
//   - [System]: ordered particles plus the simulation clock
//   - [ForceModel]: potential energy and its negative gradient
//   - [Stepper]: advances a [System] by one fixed timestep
//   - [Observer]: receives a read-only [Frame] after every completed step
//   - [Trajectory]: append-only record of per-step positions
//
// # Example
//
//	sys, _ := dynamo.NewSystem(species, masses, positions, velocities)
//	s := sim.New(force.NewCentralGravity(1), integrators.NewVelocityVerlet())
//	result, err := s.Run(ctx, sys, dynamo.Config{Dt: 0.01, Steps: 20000})
//
// # Thread Safety
//
// A [System] is owned by a single run and is NOT safe for concurrent use.
// For parallel runs use [Ensemble], which clones the system per run.
package dynamo
