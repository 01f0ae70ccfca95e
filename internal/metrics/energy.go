package metrics

import (
	"math"

	"github.com/san-kum/orbitsim/internal/dynamo"
)

// EnergyDrift tracks the maximum relative deviation of total energy from
// its pre-run value.
type EnergyDrift struct {
	name          string
	model         dynamo.ForceModel
	initialEnergy float64
	maxDrift      float64
	samples       int
	failed        bool
}

func NewEnergyDrift(model dynamo.ForceModel) *EnergyDrift {
	return &EnergyDrift{
		name:  "energy_drift",
		model: model,
	}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Start(f dynamo.Frame) {
	energy, ok := e.energy(f)
	if !ok {
		return
	}
	e.initialEnergy = energy
	e.samples = 1
}

func (e *EnergyDrift) Observe(f dynamo.Frame) {
	energy, ok := e.energy(f)
	if !ok {
		return
	}

	if e.samples == 0 {
		e.initialEnergy = energy
	}
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) energy(f dynamo.Frame) (float64, bool) {
	sys := f.System()
	pe, err := e.model.Energy(sys)
	if err != nil {
		e.failed = true
		return 0, false
	}
	return sys.KineticEnergy() + pe, true
}

// Value is NaN when the energy could not be evaluated for some frame.
func (e *EnergyDrift) Value() float64 {
	if e.failed {
		return math.NaN()
	}
	return e.maxDrift
}

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.maxDrift = 0
	e.samples = 0
	e.failed = false
}
