// Package validate checks geometric and conservation properties of a
// finished trajectory.
//
// Each check returns nil or an error built from [Violation] values joined
// with errors.Join, so callers can inspect every failure:
//
//	var v *validate.Violation
//	if errors.As(err, &v) { ... }
package validate

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/orbitsim/internal/dynamo"
)

const (
	DefaultPlanarTolerance = 1e-4
	DefaultRadiusTolerance = 0.1
	DefaultEnergyTolerance = 1e-3

	// maxViolations bounds how many violations one check reports.
	maxViolations = 10
)

// Violation describes one failed sample.
type Violation struct {
	Check    string
	Step     int
	Particle int
	Value    float64
	Limit    float64
}

func (v *Violation) Error() string {
	if v.Particle < 0 {
		return fmt.Sprintf("%s: step %d: value %.6g exceeds %.6g", v.Check, v.Step, v.Value, v.Limit)
	}
	return fmt.Sprintf("%s: step %d particle %d: value %.6g exceeds %.6g", v.Check, v.Step, v.Particle, v.Value, v.Limit)
}

type collector struct {
	errs    []error
	dropped int
}

func (c *collector) add(v *Violation) {
	if len(c.errs) < maxViolations {
		c.errs = append(c.errs, v)
		return
	}
	c.dropped++
}

func (c *collector) err(check string) error {
	if c.dropped > 0 {
		c.errs = append(c.errs, fmt.Errorf("%s: %d more violations", check, c.dropped))
	}
	return errors.Join(c.errs...)
}

// Planar requires |z| < tol for every particle at every step.
func Planar(traj *dynamo.Trajectory, tol float64) error {
	var c collector
	for _, s := range traj.Snapshots {
		for i, p := range s.Positions {
			if !(math.Abs(p.Z) < tol) {
				c.add(&Violation{Check: "planar", Step: s.Step, Particle: i, Value: math.Abs(p.Z), Limit: tol})
			}
		}
	}
	return c.err("planar")
}

// Circular requires | |r_i| - radii[i] | < tol for every particle at every step.
func Circular(traj *dynamo.Trajectory, radii []float64, tol float64) error {
	if len(radii) != traj.NumParticles() {
		return fmt.Errorf("circular: %d radii for %d particles: %w", len(radii), traj.NumParticles(), dynamo.ErrDimensionMismatch)
	}
	var c collector
	for _, s := range traj.Snapshots {
		for i, p := range s.Positions {
			if d := math.Abs(r3.Norm(p) - radii[i]); !(d < tol) {
				c.add(&Violation{Check: "circular", Step: s.Step, Particle: i, Value: d, Limit: tol})
			}
		}
	}
	return c.err("circular")
}

// EnergyConserved requires |e1 - e0| / |e0| < tol, or |e1 - e0| < tol when e0 is zero.
func EnergyConserved(e0, e1 float64, step int, tol float64) error {
	d := math.Abs(e1 - e0)
	if e0 != 0 {
		d /= math.Abs(e0)
	}
	if !(d < tol) {
		return &Violation{Check: "energy", Step: step, Particle: -1, Value: d, Limit: tol}
	}
	return nil
}

// Identical requires two trajectories to match bit for bit.
func Identical(a, b *dynamo.Trajectory) error {
	if a.Len() != b.Len() || a.NumParticles() != b.NumParticles() {
		return fmt.Errorf("identical: shapes differ: %dx%d vs %dx%d",
			a.Len(), a.NumParticles(), b.Len(), b.NumParticles())
	}
	for k := range a.Snapshots {
		sa, sb := a.Snapshots[k], b.Snapshots[k]
		if sa.Step != sb.Step || sa.Time != sb.Time {
			return fmt.Errorf("identical: snapshot %d clock differs: step %d t=%v vs step %d t=%v",
				k, sa.Step, sa.Time, sb.Step, sb.Time)
		}
		for i := range sa.Positions {
			if sa.Positions[i] != sb.Positions[i] {
				return &Violation{
					Check:    "identical",
					Step:     sa.Step,
					Particle: i,
					Value:    r3.Norm(r3.Sub(sa.Positions[i], sb.Positions[i])),
					Limit:    0,
				}
			}
		}
	}
	return nil
}

type Options struct {
	PlanarTolerance float64
	RadiusTolerance float64
	EnergyTolerance float64
	// SkipPlanar and SkipCircular disable checks that do not apply, e.g.
	// for inclined or eccentric orbits.
	SkipPlanar   bool
	SkipCircular bool
}

func DefaultOptions() Options {
	return Options{
		PlanarTolerance: DefaultPlanarTolerance,
		RadiusTolerance: DefaultRadiusTolerance,
		EnergyTolerance: DefaultEnergyTolerance,
	}
}

// Report is the outcome of every check in a suite run.
type Report struct {
	Checks []CheckResult
}

type CheckResult struct {
	Name string
	Err  error
}

func (r *Report) Passed() bool {
	return r.Err() == nil
}

func (r *Report) Err() error {
	errs := make([]error, 0, len(r.Checks))
	for _, c := range r.Checks {
		errs = append(errs, c.Err)
	}
	return errors.Join(errs...)
}

// Suite runs every enabled check against a finished run. Reference radii
// come from the initial frame.
func Suite(result *dynamo.Result, opts Options) *Report {
	r := &Report{}
	if !opts.SkipPlanar {
		r.Checks = append(r.Checks, CheckResult{"planar", Planar(result.Trajectory, opts.PlanarTolerance)})
	}
	if !opts.SkipCircular {
		radii := make([]float64, len(result.Initial.Positions))
		for i, p := range result.Initial.Positions {
			radii[i] = r3.Norm(p)
		}
		r.Checks = append(r.Checks, CheckResult{"circular", Circular(result.Trajectory, radii, opts.RadiusTolerance)})
	}
	r.Checks = append(r.Checks, CheckResult{"energy",
		EnergyConserved(result.InitialEnergy, result.FinalEnergy, result.Final.Step, opts.EnergyTolerance)})
	return r
}
