package force

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/orbitsim/internal/dynamo"
)

// PotentialFunc returns the total potential energy for flattened N×3
// coordinates (x0, y0, z0, x1, ...).
type PotentialFunc func(masses, coords []float64) (float64, error)

// CentralPotential is the energy of [CentralGravity] as a [PotentialFunc].
func CentralPotential(gm float64) PotentialFunc {
	return func(masses, coords []float64) (float64, error) {
		pe := 0.0
		for i, m := range masses {
			x, y, z := coords[3*i], coords[3*i+1], coords[3*i+2]
			r := math.Sqrt(x*x + y*y + z*z)
			if err := checkRadius(i, r); err != nil {
				return 0, err
			}
			pe -= gm * m / r
		}
		return pe, nil
	}
}

// FiniteDifference derives forces from an arbitrary potential as the
// negative central-difference gradient.
type FiniteDifference struct {
	Potential PotentialFunc
	// Step is the finite-difference step; zero selects 1e-5.
	Step float64

	masses []float64
	coords []float64
	grad   []float64
}

func NewFiniteDifference(p PotentialFunc) *FiniteDifference {
	return &FiniteDifference{Potential: p}
}

func (f *FiniteDifference) load(sys *dynamo.System) {
	n := sys.Len()
	if len(f.masses) != n {
		f.masses = make([]float64, n)
		f.coords = make([]float64, 3*n)
		f.grad = make([]float64, 3*n)
	}
	for i, p := range sys.Particles {
		f.masses[i] = p.Mass
		f.coords[3*i] = p.Position.X
		f.coords[3*i+1] = p.Position.Y
		f.coords[3*i+2] = p.Position.Z
	}
}

func (f *FiniteDifference) Energy(sys *dynamo.System) (float64, error) {
	f.load(sys)
	return f.Potential(f.masses, f.coords)
}

func (f *FiniteDifference) Forces(sys *dynamo.System, dst []r3.Vec) ([]r3.Vec, error) {
	f.load(sys)
	if len(dst) != sys.Len() {
		dst = make([]r3.Vec, sys.Len())
	}

	e0, err := f.Potential(f.masses, f.coords)
	if err != nil {
		return dst, err
	}

	var evalErr error
	energy := func(x []float64) float64 {
		v, err := f.Potential(f.masses, x)
		if err != nil {
			if evalErr == nil {
				evalErr = err
			}
			return math.NaN()
		}
		return v
	}

	step := f.Step
	if step == 0 {
		step = 1e-5
	}
	fd.Gradient(f.grad, energy, f.coords, &fd.Settings{
		Formula:     fd.Central,
		Step:        step,
		OriginKnown: true,
		OriginValue: e0,
	})
	if evalErr != nil {
		return dst, evalErr
	}

	for i := range dst {
		g := r3.Vec{X: f.grad[3*i], Y: f.grad[3*i+1], Z: f.grad[3*i+2]}
		if math.IsNaN(g.X+g.Y+g.Z) || math.IsInf(g.X+g.Y+g.Z, 0) {
			return dst, &dynamo.DomainError{Particle: i, Reason: "non-finite energy gradient"}
		}
		dst[i] = r3.Scale(-1, g)
	}
	return dst, nil
}
