package sim

import (
	"context"
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/force"
	"github.com/san-kum/orbitsim/internal/integrators"
	"github.com/san-kum/orbitsim/internal/logger"
	"github.com/san-kum/orbitsim/internal/metrics"
)

func circularSystem(t *testing.T) *dynamo.System {
	t.Helper()
	sys, err := dynamo.NewSystem(
		[]string{"C", "H"},
		[]float64{12.011, 1.008},
		[]r3.Vec{{X: 1}, {X: 2}},
		[]r3.Vec{{Y: 1}, {Y: 1 / math.Sqrt2}},
	)
	if err != nil {
		t.Fatalf("NewSystem: %v", err)
	}
	return sys
}

func newSimulator(opts ...Option) *Simulator {
	return New(force.NewCentralGravity(1), integrators.NewVelocityVerlet(), opts...)
}

func TestSimulatorRun(t *testing.T) {
	s := newSimulator()
	cfg := dynamo.Config{Dt: 0.01, Steps: 100, ValidateState: true}

	result, err := s.Run(context.Background(), circularSystem(t), cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if result.StepsTaken != 100 {
		t.Errorf("expected 100 steps, got %d", result.StepsTaken)
	}
	if result.Trajectory.Len() != 100 {
		t.Errorf("expected one snapshot per step, got %d", result.Trajectory.Len())
	}
	if first := result.Trajectory.Snapshots[0]; first.Step != 1 {
		t.Errorf("first snapshot should be step 1, got %d", first.Step)
	}
	if result.Initial.Step != 0 || result.Initial.Positions[0] != (r3.Vec{X: 1}) {
		t.Errorf("unexpected initial frame: %+v", result.Initial)
	}
	if math.Abs(result.Final.Time-1.0) > 1e-12 {
		t.Errorf("expected final t=1, got %v", result.Final.Time)
	}
	if result.EnergyDrift > 1e-6 {
		t.Errorf("energy drift too high: %e", result.EnergyDrift)
	}
}

func TestSimulatorInvalidConfig(t *testing.T) {
	s := newSimulator()

	tests := []struct {
		name string
		cfg  dynamo.Config
	}{
		{"zero dt", dynamo.Config{Dt: 0, Steps: 10}},
		{"negative dt", dynamo.Config{Dt: -0.1, Steps: 10}},
		{"zero steps", dynamo.Config{Dt: 0.1, Steps: 0}},
		{"negative steps", dynamo.Config{Dt: 0.1, Steps: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Run(context.Background(), circularSystem(t), tt.cfg)
			if !errors.Is(err, dynamo.ErrConfig) {
				t.Errorf("expected ErrConfig, got %v", err)
			}
		})
	}

	if _, err := s.Run(context.Background(), &dynamo.System{}, dynamo.DefaultConfig()); !errors.Is(err, dynamo.ErrConfig) {
		t.Errorf("empty system: expected ErrConfig, got %v", err)
	}

	bad := circularSystem(t)
	bad.Particles[1].Velocity.X = math.Inf(1)
	if _, err := s.Run(context.Background(), bad, dynamo.DefaultConfig()); !errors.Is(err, dynamo.ErrConfig) {
		t.Errorf("non-finite initial state: expected ErrConfig, got %v", err)
	}
}

func TestSimulatorOriginIsDomainError(t *testing.T) {
	sys, _ := dynamo.NewSystem([]string{"C"}, []float64{12.011}, []r3.Vec{{}}, nil)

	result, err := newSimulator().Run(context.Background(), sys, dynamo.Config{Dt: 0.01, Steps: 10})
	if !errors.Is(err, dynamo.ErrDomain) {
		t.Fatalf("expected ErrDomain, got %v", err)
	}
	var se *dynamo.SimulationError
	if !errors.As(err, &se) || se.Step != 0 {
		t.Errorf("expected SimulationError at step 0, got %v", err)
	}
	if result != nil {
		t.Errorf("no trajectory should exist when the initial state is outside the domain")
	}
}

// blowup returns ErrDomain once the clock reaches a given step.
type blowup struct {
	*force.CentralGravity
	at int
}

func (b *blowup) Forces(sys *dynamo.System, dst []r3.Vec) ([]r3.Vec, error) {
	if sys.Step >= b.at {
		return dst, &dynamo.DomainError{Particle: 0, Reason: "injected"}
	}
	return b.CentralGravity.Forces(sys, dst)
}

func TestSimulatorAbortTruncatesTrajectory(t *testing.T) {
	model := &blowup{CentralGravity: force.NewCentralGravity(1), at: 5}
	s := New(model, integrators.NewVelocityVerlet())

	seen := 0
	s.AddObserver(dynamo.ObserverFunc(func(f dynamo.Frame) { seen++ }))

	result, err := s.Run(context.Background(), circularSystem(t), dynamo.Config{Dt: 0.01, Steps: 50})
	if !errors.Is(err, dynamo.ErrDomain) {
		t.Fatalf("expected ErrDomain, got %v", err)
	}
	if result == nil {
		t.Fatal("expected partial result")
	}
	// Force evaluations fail once the clock reads 5, so the sixth step aborts.
	if result.Trajectory.Len() != 5 || seen != 5 || result.StepsTaken != 5 {
		t.Errorf("expected 5 completed steps, got traj=%d observed=%d taken=%d",
			result.Trajectory.Len(), seen, result.StepsTaken)
	}
	for _, snap := range result.Trajectory.Snapshots {
		for _, p := range snap.Positions {
			if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsNaN(p.Z) {
				t.Fatal("trajectory contains NaN")
			}
		}
	}

	last := result.Trajectory.Snapshots[result.Trajectory.Len()-1]
	if result.Final.Step != last.Step {
		t.Errorf("final frame at step %d, last snapshot at %d", result.Final.Step, last.Step)
	}
	for i, p := range result.Final.Positions {
		if p != last.Positions[i] {
			t.Errorf("particle %d: final %+v differs from last snapshot %+v", i, p, last.Positions[i])
		}
	}
}

func TestSimulatorObserverGetsCopies(t *testing.T) {
	s := newSimulator()
	rec := NewRecorder(10)
	s.AddObserver(rec)
	s.AddObserver(dynamo.ObserverFunc(func(f dynamo.Frame) {
		f.Positions[0] = r3.Vec{X: 100}
		f.Velocities[0] = r3.Vec{}
	}))

	result, err := s.Run(context.Background(), circularSystem(t), dynamo.Config{Dt: 0.01, Steps: 10})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if rec.Len() != 10 {
		t.Fatalf("expected 10 recorded frames, got %d", rec.Len())
	}
	for k, snap := range result.Trajectory.Snapshots {
		if snap.Positions[0].X > 1.01 {
			t.Fatalf("observer mutation leaked into trajectory at %d", k)
		}
		if rec.Frames[k].Positions[0] != snap.Positions[0] {
			t.Fatalf("recorder saw a different state at %d", k)
		}
	}
	if math.Abs(r3.Norm(result.Final.Positions[0])-1) > 1e-3 {
		t.Error("observer mutation leaked into system state")
	}
}

func TestSimulatorMetrics(t *testing.T) {
	model := force.NewCentralGravity(1)
	s := New(model, integrators.NewVelocityVerlet())
	for _, m := range metrics.Defaults(model) {
		s.AddMetric(m)
	}

	result, err := s.Run(context.Background(), circularSystem(t), dynamo.Config{Dt: 0.01, Steps: 2000})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for _, name := range []string{"energy_drift", "radial_deviation", "planar_deviation"} {
		if _, ok := result.Metrics[name]; !ok {
			t.Errorf("metric %s not found in result", name)
		}
	}
	if result.Metrics["planar_deviation"] != 0 {
		t.Errorf("expected exactly planar motion, got %v", result.Metrics["planar_deviation"])
	}
	if v := result.Metrics["radial_deviation"]; v <= 0 || v > 1e-3 {
		t.Errorf("unexpected radial deviation %v", v)
	}
	if v := result.Metrics["energy_drift"]; v > 1e-6 {
		t.Errorf("unexpected energy drift %v", v)
	}
}

func TestSimulatorContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newSimulator()
	s.AddObserver(dynamo.ObserverFunc(func(f dynamo.Frame) {
		if f.Step == 3 {
			cancel()
		}
	}))

	result, err := s.Run(ctx, circularSystem(t), dynamo.Config{Dt: 0.01, Steps: 100})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result.Trajectory.Len() != 3 {
		t.Errorf("expected 3 snapshots before cancel, got %d", result.Trajectory.Len())
	}
}

// energyFails returns an error from Energy after the first call.
type energyFails struct {
	*force.CentralGravity
	calls int
	err   error
}

func (e *energyFails) Energy(sys *dynamo.System) (float64, error) {
	e.calls++
	if e.calls > 1 {
		return 0, e.err
	}
	return e.CentralGravity.Energy(sys)
}

func TestSimulatorContextCanceledReportsFinalEnergyError(t *testing.T) {
	boom := errors.New("boom")
	model := &energyFails{CentralGravity: force.NewCentralGravity(1), err: boom}
	s := New(model, integrators.NewVelocityVerlet())

	ctx, cancel := context.WithCancel(context.Background())
	s.AddObserver(dynamo.ObserverFunc(func(f dynamo.Frame) {
		if f.Step == 2 {
			cancel()
		}
	}))

	result, err := s.Run(ctx, circularSystem(t), dynamo.Config{Dt: 0.01, Steps: 100})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected final energy error in %v", err)
	}
	if result == nil || result.Trajectory.Len() != 2 {
		t.Fatalf("expected partial result with 2 snapshots, got %+v", result)
	}
}

func TestSimulatorHugeStepCountDoesNotPreallocate(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := newSimulator().Run(ctx, circularSystem(t), dynamo.Config{Dt: 0.01, Steps: 1 << 40})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if c := cap(result.Trajectory.Snapshots); c > maxPrealloc {
		t.Errorf("reserved %d snapshots", c)
	}
}

func TestSimulatorLogs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &logger.Logger{SugaredLogger: zap.New(core).Sugar()}

	s := newSimulator(WithLogger(l))
	cfg := dynamo.Config{Dt: 0.01, Steps: 10, LogEvery: 5}
	if _, err := s.Run(context.Background(), circularSystem(t), cfg); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if n := logs.FilterMessage("run started").Len(); n != 1 {
		t.Errorf("expected 1 start entry, got %d", n)
	}
	if n := logs.FilterMessage("progress").Len(); n != 2 {
		t.Errorf("expected 2 progress entries, got %d", n)
	}
	if n := logs.FilterMessage("run finished").Len(); n != 1 {
		t.Errorf("expected 1 finish entry, got %d", n)
	}
}

func TestSimulatorDeterministic(t *testing.T) {
	cfg := dynamo.Config{Dt: 0.01, Steps: 1000}
	a, err := newSimulator().Run(context.Background(), circularSystem(t), cfg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := newSimulator().Run(context.Background(), circularSystem(t), cfg)
	if err != nil {
		t.Fatal(err)
	}
	for k := range a.Trajectory.Snapshots {
		for i := range a.Trajectory.Snapshots[k].Positions {
			if a.Trajectory.Snapshots[k].Positions[i] != b.Trajectory.Snapshots[k].Positions[i] {
				t.Fatalf("runs differ at snapshot %d particle %d", k, i)
			}
		}
	}
}
