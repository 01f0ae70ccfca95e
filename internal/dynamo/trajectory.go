package dynamo

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Snapshot holds one position per particle at the end of a step.
type Snapshot struct {
	Step      int
	Time      float64
	Positions []r3.Vec
}

// Trajectory is an append-only, time-ordered record of snapshots. Position
// order always matches Species.
type Trajectory struct {
	Species   []string
	Snapshots []Snapshot
}

func NewTrajectory(species []string, capacity int) *Trajectory {
	sp := make([]string, len(species))
	copy(sp, species)
	return &Trajectory{
		Species:   sp,
		Snapshots: make([]Snapshot, 0, capacity),
	}
}

// Append adds a snapshot. The particle count must match Species and steps
// must be strictly increasing.
func (t *Trajectory) Append(s Snapshot) error {
	if len(s.Positions) != len(t.Species) {
		return fmt.Errorf("append step %d: %d positions for %d particles: %w",
			s.Step, len(s.Positions), len(t.Species), ErrDimensionMismatch)
	}
	if n := len(t.Snapshots); n > 0 && s.Step <= t.Snapshots[n-1].Step {
		return fmt.Errorf("append step %d after step %d: trajectory is append-only", s.Step, t.Snapshots[n-1].Step)
	}
	t.Snapshots = append(t.Snapshots, s)
	return nil
}

func (t *Trajectory) Len() int { return len(t.Snapshots) }

func (t *Trajectory) NumParticles() int { return len(t.Species) }

// Particle returns the path of particle i across all snapshots.
func (t *Trajectory) Particle(i int) []r3.Vec {
	path := make([]r3.Vec, len(t.Snapshots))
	for k, s := range t.Snapshots {
		path[k] = s.Positions[i]
	}
	return path
}

// Radii returns |r| of particle i across all snapshots.
func (t *Trajectory) Radii(i int) []float64 {
	radii := make([]float64, len(t.Snapshots))
	for k, s := range t.Snapshots {
		radii[k] = r3.Norm(s.Positions[i])
	}
	return radii
}
