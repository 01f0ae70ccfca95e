package metrics

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/orbitsim/internal/dynamo"
)

// RadialDeviation is the largest | |r_i(t)| - |r_i(0)| | over all particles.
type RadialDeviation struct {
	name     string
	initial  []float64
	maxDelta float64
}

func NewRadialDeviation() *RadialDeviation {
	return &RadialDeviation{name: "radial_deviation"}
}

func (r *RadialDeviation) Name() string { return r.name }

func (r *RadialDeviation) Start(f dynamo.Frame) {
	r.initial = make([]float64, len(f.Positions))
	for i, p := range f.Positions {
		r.initial[i] = r3.Norm(p)
	}
}

func (r *RadialDeviation) Observe(f dynamo.Frame) {
	if r.initial == nil {
		r.Start(f)
		return
	}
	for i, p := range f.Positions {
		r.maxDelta = math.Max(r.maxDelta, math.Abs(r3.Norm(p)-r.initial[i]))
	}
}

func (r *RadialDeviation) Value() float64 { return r.maxDelta }

func (r *RadialDeviation) Reset() {
	r.initial = nil
	r.maxDelta = 0
}
