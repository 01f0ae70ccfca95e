package metrics

import (
	"math"

	"github.com/san-kum/orbitsim/internal/dynamo"
)

// PlanarDeviation is the largest |z| seen for any particle.
type PlanarDeviation struct {
	name string
	maxZ float64
}

func NewPlanarDeviation() *PlanarDeviation {
	return &PlanarDeviation{name: "planar_deviation"}
}

func (p *PlanarDeviation) Name() string { return p.name }

func (p *PlanarDeviation) Observe(f dynamo.Frame) {
	for _, pos := range f.Positions {
		p.maxZ = math.Max(p.maxZ, math.Abs(pos.Z))
	}
}

func (p *PlanarDeviation) Value() float64 { return p.maxZ }

func (p *PlanarDeviation) Reset() { p.maxZ = 0 }

// Defaults returns the standard metric set for an orbital run.
func Defaults(model dynamo.ForceModel) []dynamo.Metric {
	return []dynamo.Metric{
		NewEnergyDrift(model),
		NewRadialDeviation(),
		NewPlanarDeviation(),
	}
}
