package force

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/orbitsim/internal/dynamo"
)

// parallelThreshold is the particle count above which forces are computed
// in goroutine chunks.
const parallelThreshold = 256

// CentralGravity is a fixed attracting source at the origin. Particles do
// not interact with each other.
type CentralGravity struct {
	GM float64
}

func NewCentralGravity(gm float64) *CentralGravity {
	return &CentralGravity{GM: gm}
}

func (g *CentralGravity) Energy(sys *dynamo.System) (float64, error) {
	pe := 0.0
	for i, p := range sys.Particles {
		r := r3.Norm(p.Position)
		if err := checkRadius(i, r); err != nil {
			return 0, err
		}
		pe -= g.GM * p.Mass / r
	}
	return pe, nil
}

func (g *CentralGravity) Forces(sys *dynamo.System, dst []r3.Vec) ([]r3.Vec, error) {
	n := sys.Len()
	if len(dst) != n {
		dst = make([]r3.Vec, n)
	}

	for i, p := range sys.Particles {
		if err := checkRadius(i, r3.Norm(p.Position)); err != nil {
			return dst, err
		}
	}

	dynamo.ParallelFor(n, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			p := sys.Particles[i]
			r := r3.Norm(p.Position)
			dst[i] = r3.Scale(-g.GM*p.Mass/(r*r*r), p.Position)
		}
	})

	return dst, nil
}

// PotentialAt returns the potential energy of a single mass m at r.
func (g *CentralGravity) PotentialAt(m float64, r r3.Vec) float64 {
	return -g.GM * m / r3.Norm(r)
}

func checkRadius(i int, r float64) error {
	if r == 0 {
		return &dynamo.DomainError{Particle: i, Reason: "distance from origin is zero"}
	}
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return &dynamo.DomainError{Particle: i, Reason: "distance from origin is not finite"}
	}
	return nil
}
