package integrators

import (
	"reflect"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/orbitsim/internal/dynamo"
)

// VelocityVerlet is the symplectic kick-drift-kick scheme. The force at the
// end of one step is reused as the start force of the next, as long as the
// same system, model and positions come back.
type VelocityVerlet struct {
	forces []r3.Vec
	next   []r3.Vec
	prev   []r3.Vec

	cached   bool
	cachedAt int
	sys      *dynamo.System
	model    dynamo.ForceModel
	at       []r3.Vec
}

func NewVelocityVerlet() *VelocityVerlet {
	return &VelocityVerlet{}
}

func (v *VelocityVerlet) Reset() {
	v.cached = false
	v.sys = nil
	v.model = nil
}

// Step leaves sys untouched when either force evaluation fails.
func (v *VelocityVerlet) Step(sys *dynamo.System, model dynamo.ForceModel, dt float64) error {
	var err error
	if !v.cacheValid(sys, model) {
		v.forces, err = model.Forces(sys, v.forces)
		if err != nil {
			v.Reset()
			return err
		}
	}

	v.prev = v.prev[:0]
	halfDt2 := 0.5 * dt * dt
	for i := range sys.Particles {
		p := &sys.Particles[i]
		v.prev = append(v.prev, p.Position)
		acc := r3.Scale(1/p.Mass, v.forces[i])
		p.Position = r3.Add(p.Position, r3.Add(r3.Scale(dt, p.Velocity), r3.Scale(halfDt2, acc)))
	}

	v.next, err = model.Forces(sys, v.next)
	if err != nil {
		for i := range sys.Particles {
			sys.Particles[i].Position = v.prev[i]
		}
		v.Reset()
		return err
	}

	halfDt := 0.5 * dt
	for i := range sys.Particles {
		p := &sys.Particles[i]
		sum := r3.Add(v.forces[i], v.next[i])
		p.Velocity = r3.Add(p.Velocity, r3.Scale(halfDt/p.Mass, sum))
	}

	sys.Step++
	sys.Time += dt

	v.forces, v.next = v.next, v.forces
	v.remember(sys, model)
	return nil
}

func (v *VelocityVerlet) remember(sys *dynamo.System, model dynamo.ForceModel) {
	v.cached = true
	v.cachedAt = sys.Step
	v.sys = sys
	v.model = model
	v.at = v.at[:0]
	for _, p := range sys.Particles {
		v.at = append(v.at, p.Position)
	}
}

func (v *VelocityVerlet) cacheValid(sys *dynamo.System, model dynamo.ForceModel) bool {
	if !v.cached || v.sys != sys || v.cachedAt != sys.Step || !sameModel(v.model, model) {
		return false
	}
	if len(v.forces) != sys.Len() || len(v.at) != sys.Len() {
		return false
	}
	for i, p := range sys.Particles {
		if p.Position != v.at[i] {
			return false
		}
	}
	return true
}

// sameModel compares models by identity. Models of a non-comparable type
// never match, so they are always re-evaluated.
func sameModel(a, b dynamo.ForceModel) bool {
	if a == nil || b == nil {
		return false
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}
