package sim

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/logger"
)

// Simulator drives a fixed number of steps of one stepper over one force
// model. A Simulator is used by one run at a time.
type Simulator struct {
	model     dynamo.ForceModel
	stepper   dynamo.Stepper
	metrics   []dynamo.Metric
	observers []dynamo.Observer
	log       *logger.Logger
}

type Option func(*Simulator)

func WithLogger(l *logger.Logger) Option {
	return func(s *Simulator) { s.log = l }
}

func New(model dynamo.ForceModel, stepper dynamo.Stepper, opts ...Option) *Simulator {
	s := &Simulator{
		model:     model,
		stepper:   stepper,
		metrics:   make([]dynamo.Metric, 0),
		observers: make([]dynamo.Observer, 0),
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) AddMetric(m dynamo.Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o dynamo.Observer) { s.observers = append(s.observers, o) }

// maxPrealloc caps the snapshots reserved up front; longer runs grow the
// trajectory as they go.
const maxPrealloc = 1 << 16

// Run advances sys in place for cfg.Steps steps. On failure the partial
// result, with the trajectory truncated at the last completed step, is
// returned together with a *dynamo.SimulationError.
func (s *Simulator) Run(ctx context.Context, sys *dynamo.System, cfg dynamo.Config) (*dynamo.Result, error) {
	if err := s.validate(sys, cfg); err != nil {
		return nil, err
	}

	if r, ok := s.stepper.(dynamo.Resetter); ok {
		r.Reset()
	}
	for _, m := range s.metrics {
		m.Reset()
	}

	initialEnergy, err := s.totalEnergy(sys)
	if err != nil {
		return nil, &dynamo.SimulationError{Step: sys.Step, Time: sys.Time, Wrapped: err}
	}

	result := &dynamo.Result{
		Initial:       sys.Frame(),
		Trajectory:    dynamo.NewTrajectory(sys.Species(), min(cfg.Steps, maxPrealloc)),
		InitialEnergy: initialEnergy,
		Metrics:       make(map[string]float64),
	}

	for _, m := range s.metrics {
		if st, ok := m.(dynamo.Starter); ok {
			st.Start(result.Initial)
		}
	}

	log := s.log.With("particles", sys.Len(), "dt", cfg.Dt, "steps", cfg.Steps)
	log.Info("run started", "energy", initialEnergy)

	for i := 0; i < cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			if err := s.finish(sys, result); err != nil {
				return result, errors.Join(ctx.Err(), fmt.Errorf("final energy: %w", err))
			}
			return result, ctx.Err()
		default:
		}

		if err := s.stepper.Step(sys, s.model, cfg.Dt); err != nil {
			return s.abort(log, sys, result, err)
		}

		if cfg.ValidateState && !sys.IsValid() {
			return s.abort(log, sys, result, dynamo.ErrInvalidState)
		}

		if err := result.Trajectory.Append(dynamo.Snapshot{
			Step:      sys.Step,
			Time:      sys.Time,
			Positions: sys.Positions(),
		}); err != nil {
			return s.abort(log, sys, result, err)
		}
		result.StepsTaken++

		frame := sys.Frame()
		for _, m := range s.metrics {
			m.Observe(frame)
		}
		for _, obs := range s.observers {
			obs.OnStep(sys.Frame())
		}

		if cfg.LogEvery > 0 && result.StepsTaken%cfg.LogEvery == 0 {
			log.Debug("progress", "step", sys.Step, "time", sys.Time)
		}
	}

	if err := s.finish(sys, result); err != nil {
		return s.abort(log, sys, result, err)
	}

	log.Info("run finished",
		"steps_taken", result.StepsTaken,
		"energy", result.FinalEnergy,
		"energy_drift", result.EnergyDrift,
	)
	return result, nil
}

func (s *Simulator) validate(sys *dynamo.System, cfg dynamo.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if sys == nil || sys.Len() == 0 {
		return dynamo.Configf("system has no particles")
	}
	for i, p := range sys.Particles {
		if !(p.Mass > 0) {
			return dynamo.Configf("particle %d (%s): mass must be positive, got %g", i, p.Species, p.Mass)
		}
	}
	if !sys.IsValid() {
		return dynamo.Configf("initial state: %v", dynamo.ErrInvalidState)
	}
	return nil
}

func (s *Simulator) totalEnergy(sys *dynamo.System) (float64, error) {
	pe, err := s.model.Energy(sys)
	if err != nil {
		return 0, err
	}
	return sys.KineticEnergy() + pe, nil
}

func (s *Simulator) finish(sys *dynamo.System, result *dynamo.Result) error {
	result.Final = sys.Frame()
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	finalEnergy, err := s.totalEnergy(sys)
	if err != nil {
		return err
	}
	result.FinalEnergy = finalEnergy
	if result.InitialEnergy != 0 {
		result.EnergyDrift = math.Abs(finalEnergy-result.InitialEnergy) / math.Abs(result.InitialEnergy)
	}
	return nil
}

func (s *Simulator) abort(log *logger.Logger, sys *dynamo.System, result *dynamo.Result, cause error) (*dynamo.Result, error) {
	result.Final = sys.Frame()
	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	err := &dynamo.SimulationError{Step: sys.Step, Time: sys.Time, Wrapped: cause}
	log.Error("run aborted", "step", sys.Step, "time", sys.Time, "error", cause)
	return result, err
}
