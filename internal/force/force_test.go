package force

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/orbitsim/internal/dynamo"
)

func system(t *testing.T, positions ...r3.Vec) *dynamo.System {
	t.Helper()
	species := make([]string, len(positions))
	masses := make([]float64, len(positions))
	for i := range positions {
		species[i] = "C"
		masses[i] = 12.011
	}
	sys, err := dynamo.NewSystem(species, masses, positions, nil)
	if err != nil {
		t.Fatalf("NewSystem: %v", err)
	}
	return sys
}

func TestCentralGravity_Energy(t *testing.T) {
	g := NewCentralGravity(1)
	sys := system(t, r3.Vec{X: 1}, r3.Vec{X: 2})

	e, err := g.Energy(sys)
	if err != nil {
		t.Fatalf("Energy: %v", err)
	}
	want := -12.011/1 - 12.011/2
	if math.Abs(e-want) > 1e-12 {
		t.Errorf("Energy() = %v, want %v", e, want)
	}
}

func TestCentralGravity_ForcesPointInward(t *testing.T) {
	g := NewCentralGravity(2)
	sys := system(t, r3.Vec{X: 1}, r3.Vec{Y: -2}, r3.Vec{X: 1, Y: 1, Z: 1})

	forces, err := g.Forces(sys, nil)
	if err != nil {
		t.Fatalf("Forces: %v", err)
	}

	for i, p := range sys.Particles {
		r := r3.Norm(p.Position)
		want := 2 * p.Mass / (r * r)
		if got := r3.Norm(forces[i]); math.Abs(got-want) > 1e-12 {
			t.Errorf("particle %d: |F| = %v, want %v", i, got, want)
		}
		if cos := r3.Dot(forces[i], p.Position) / (r3.Norm(forces[i]) * r); math.Abs(cos+1) > 1e-12 {
			t.Errorf("particle %d: force not radial inward (cos=%v)", i, cos)
		}
	}
}

func TestCentralGravity_NoOutOfPlaneForce(t *testing.T) {
	g := NewCentralGravity(1)
	sys := system(t, r3.Vec{X: 0.3, Y: -1.7})

	forces, err := g.Forces(sys, nil)
	if err != nil {
		t.Fatalf("Forces: %v", err)
	}
	if forces[0].Z != 0 {
		t.Errorf("expected exactly zero z force, got %v", forces[0].Z)
	}
}

func TestCentralGravity_Origin(t *testing.T) {
	g := NewCentralGravity(1)
	sys := system(t, r3.Vec{X: 1}, r3.Vec{})

	if _, err := g.Energy(sys); !errors.Is(err, dynamo.ErrDomain) {
		t.Errorf("Energy: expected ErrDomain, got %v", err)
	}

	_, err := g.Forces(sys, nil)
	if !errors.Is(err, dynamo.ErrDomain) {
		t.Fatalf("Forces: expected ErrDomain, got %v", err)
	}
	var de *dynamo.DomainError
	if !errors.As(err, &de) || de.Particle != 1 {
		t.Errorf("expected DomainError for particle 1, got %v", err)
	}
}

func TestCentralGravity_ParallelMatchesSequential(t *testing.T) {
	n := 2 * parallelThreshold
	positions := make([]r3.Vec, n)
	for i := range positions {
		a := float64(i) * 0.37
		positions[i] = r3.Vec{X: (1 + float64(i%5)) * math.Cos(a), Y: (1 + float64(i%5)) * math.Sin(a), Z: 0.01 * float64(i%3)}
	}
	sys := system(t, positions...)
	g := NewCentralGravity(1)

	forces, err := g.Forces(sys, make([]r3.Vec, n))
	if err != nil {
		t.Fatalf("Forces: %v", err)
	}
	for i, p := range sys.Particles {
		r := r3.Norm(p.Position)
		want := r3.Scale(-p.Mass/(r*r*r), p.Position)
		if forces[i] != want {
			t.Fatalf("particle %d: got %v, want %v", i, forces[i], want)
		}
	}
}

func TestFiniteDifference_MatchesAnalytic(t *testing.T) {
	sys := system(t, r3.Vec{X: 1}, r3.Vec{X: 2}, r3.Vec{X: -0.5, Y: 0.8, Z: 0.3})
	analytic := NewCentralGravity(1)
	numeric := NewFiniteDifference(CentralPotential(1))

	ea, _ := analytic.Energy(sys)
	en, err := numeric.Energy(sys)
	if err != nil {
		t.Fatalf("numeric Energy: %v", err)
	}
	if math.Abs(ea-en) > 1e-12 {
		t.Errorf("energy mismatch: analytic %v numeric %v", ea, en)
	}

	fa, _ := analytic.Forces(sys, nil)
	fn, err := numeric.Forces(sys, nil)
	if err != nil {
		t.Fatalf("numeric Forces: %v", err)
	}
	for i := range fa {
		if d := r3.Norm(r3.Sub(fa[i], fn[i])); d > 1e-6*r3.Norm(fa[i]) {
			t.Errorf("particle %d: analytic %v numeric %v", i, fa[i], fn[i])
		}
	}
}

func TestFiniteDifference_Origin(t *testing.T) {
	sys := system(t, r3.Vec{})
	numeric := NewFiniteDifference(CentralPotential(1))

	if _, err := numeric.Forces(sys, nil); !errors.Is(err, dynamo.ErrDomain) {
		t.Errorf("expected ErrDomain, got %v", err)
	}
}

func TestFiniteDifference_NonFiniteGradient(t *testing.T) {
	sys := system(t, r3.Vec{X: 1})
	blowup := func(masses, coords []float64) (float64, error) {
		if coords[0] != 1 {
			return math.Inf(1), nil
		}
		return 0, nil
	}

	_, err := NewFiniteDifference(blowup).Forces(sys, nil)
	if !errors.Is(err, dynamo.ErrDomain) {
		t.Errorf("expected ErrDomain, got %v", err)
	}
}
