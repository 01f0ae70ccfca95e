package sweep

import (
	"context"

	"github.com/san-kum/orbitsim/internal/config"
	"github.com/san-kum/orbitsim/internal/metrics"
	"github.com/san-kum/orbitsim/internal/sim"
)

// FinalDrift is the relative energy change between the first and last
// step, reported alongside the running metrics.
const FinalDrift = "final_energy_drift"

// Evaluate runs cfg once with the default metrics and returns their values.
func Evaluate(ctx context.Context, cfg *config.Config, opts ...sim.Option) (map[string]float64, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	model, err := cfg.ForceModel()
	if err != nil {
		return nil, err
	}
	stepper, err := cfg.Stepper()
	if err != nil {
		return nil, err
	}
	rc, err := cfg.RunConfig()
	if err != nil {
		return nil, err
	}
	sys, err := cfg.System()
	if err != nil {
		return nil, err
	}

	s := sim.New(model, stepper, opts...)
	for _, m := range metrics.Defaults(model) {
		s.AddMetric(m)
	}
	result, err := s.Run(ctx, sys, rc)
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64, len(result.Metrics)+1)
	for k, v := range result.Metrics {
		out[k] = v
	}
	out[FinalDrift] = result.EnergyDrift
	return out, nil
}
