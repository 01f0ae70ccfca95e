package integrators

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/orbitsim/internal/dynamo"
)

// Euler is the explicit first-order scheme. It does not conserve energy and
// closed orbits spiral outward; it exists as a baseline.
type Euler struct {
	forces []r3.Vec
}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(sys *dynamo.System, model dynamo.ForceModel, dt float64) error {
	var err error
	e.forces, err = model.Forces(sys, e.forces)
	if err != nil {
		return err
	}

	for i := range sys.Particles {
		p := &sys.Particles[i]
		acc := r3.Scale(1/p.Mass, e.forces[i])
		p.Position = r3.Add(p.Position, r3.Scale(dt, p.Velocity))
		p.Velocity = r3.Add(p.Velocity, r3.Scale(dt, acc))
	}

	sys.Step++
	sys.Time += dt
	return nil
}
