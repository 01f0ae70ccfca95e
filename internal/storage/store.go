package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/orbitsim/internal/dynamo"
)

const (
	metadataFile   = "metadata.json"
	trajectoryFile = "trajectory.csv"
)

var ErrRunNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Timestamp     time.Time          `json:"timestamp"`
	Species       []string           `json:"species"`
	Masses        []float64          `json:"masses"`
	GM            float64            `json:"gm"`
	Dt            float64            `json:"dt"`
	Steps         int                `json:"steps"`
	StepsTaken    int                `json:"steps_taken"`
	Integrator    string             `json:"integrator"`
	Force         string             `json:"force"`
	Positions     [][]float64        `json:"initial_positions"`
	Velocities    [][]float64        `json:"initial_velocities"`
	InitialEnergy float64            `json:"initial_energy"`
	FinalEnergy   float64            `json:"final_energy"`
	EnergyDrift   float64            `json:"energy_drift"`
	Metrics       map[string]float64 `json:"metrics"`
	Error         string             `json:"error,omitempty"`
}

// Save writes a run directory and returns its ID. Fields derived from the
// result (species, initial state, energies, metrics) overwrite meta.
func (s *Store) Save(meta RunMetadata, result *dynamo.Result) (string, error) {
	name := meta.Name
	if name == "" {
		name = "run"
	}
	meta.ID = fmt.Sprintf("%s_%s", name, uuid.NewString()[:8])
	meta.Timestamp = time.Now().UTC()
	meta.Species = result.Trajectory.Species
	meta.Masses = result.Initial.Masses
	meta.Positions = rows(result.Initial.Positions)
	meta.Velocities = rows(result.Initial.Velocities)
	meta.StepsTaken = result.StepsTaken
	meta.InitialEnergy = result.InitialEnergy
	meta.FinalEnergy = result.FinalEnergy
	meta.EnergyDrift = result.EnergyDrift
	meta.Metrics = finiteMetrics(result.Metrics)

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeTrajectory(filepath.Join(runDir, trajectoryFile), result.Trajectory); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTrajectory(path string, traj *dynamo.Trajectory) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := []string{"step", "time"}
	for i, sp := range traj.Species {
		for _, axis := range []string{"x", "y", "z"} {
			header = append(header, fmt.Sprintf("%s%d_%s", sp, i, axis))
		}
	}
	if err := w.Write(header); err != nil {
		return err
	}

	row := make([]string, len(header))
	for _, snap := range traj.Snapshots {
		row = row[:0]
		row = append(row, strconv.Itoa(snap.Step), formatFloat(snap.Time))
		for _, p := range snap.Positions {
			row = append(row, formatFloat(p.X), formatFloat(p.Y), formatFloat(p.Z))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

// formatFloat uses the shortest exact representation so trajectories
// survive a save/load cycle bit for bit.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Skipped is a directory under the data dir that could not be read as a run.
type Skipped struct {
	ID  string
	Err error
}

// List returns every readable run, oldest first, and the directories it
// had to skip.
func (s *Store) List() ([]RunMetadata, []Skipped, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil, nil
		}
		return nil, nil, err
	}

	runs := make([]RunMetadata, 0)
	var skipped []Skipped
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			skipped = append(skipped, Skipped{ID: entry.Name(), Err: err})
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, skipped, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

func (s *Store) LoadTrajectory(runID string) (*dynamo.Trajectory, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(s.baseDir, runID, trajectoryFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("run %s: empty trajectory file", runID)
	}

	n := len(meta.Species)
	if want := 2 + 3*n; len(records[0]) != want {
		return nil, fmt.Errorf("run %s: header has %d columns, want %d: %w",
			runID, len(records[0]), want, dynamo.ErrDimensionMismatch)
	}

	traj := dynamo.NewTrajectory(meta.Species, len(records)-1)
	for line, record := range records[1:] {
		snap, err := parseRow(record, n)
		if err != nil {
			return nil, fmt.Errorf("run %s line %d: %w", runID, line+2, err)
		}
		if err := traj.Append(snap); err != nil {
			return nil, fmt.Errorf("run %s line %d: %w", runID, line+2, err)
		}
	}
	return traj, nil
}

func parseRow(record []string, n int) (dynamo.Snapshot, error) {
	step, err := strconv.Atoi(record[0])
	if err != nil {
		return dynamo.Snapshot{}, err
	}
	vals := make([]float64, len(record)-1)
	for i, field := range record[1:] {
		if vals[i], err = strconv.ParseFloat(strings.TrimSpace(field), 64); err != nil {
			return dynamo.Snapshot{}, err
		}
	}

	snap := dynamo.Snapshot{Step: step, Time: vals[0], Positions: make([]r3.Vec, n)}
	for i := 0; i < n; i++ {
		snap.Positions[i] = r3.Vec{X: vals[1+3*i], Y: vals[2+3*i], Z: vals[3+3*i]}
	}
	return snap, nil
}

// LoadResult rebuilds enough of a run's result to validate it.
func (s *Store) LoadResult(runID string) (*RunMetadata, *dynamo.Result, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	traj, err := s.LoadTrajectory(runID)
	if err != nil {
		return nil, nil, err
	}

	initial := dynamo.Frame{
		Masses:     meta.Masses,
		Positions:  vecs(meta.Positions),
		Velocities: vecs(meta.Velocities),
	}
	final := dynamo.Frame{}
	if n := traj.Len(); n > 0 {
		last := traj.Snapshots[n-1]
		final.Step, final.Time, final.Positions = last.Step, last.Time, last.Positions
	}

	return meta, &dynamo.Result{
		Initial:       initial,
		Final:         final,
		Trajectory:    traj,
		StepsTaken:    meta.StepsTaken,
		InitialEnergy: meta.InitialEnergy,
		FinalEnergy:   meta.FinalEnergy,
		EnergyDrift:   meta.EnergyDrift,
		Metrics:       meta.Metrics,
	}, nil
}

func rows(vs []r3.Vec) [][]float64 {
	out := make([][]float64, len(vs))
	for i, v := range vs {
		out[i] = []float64{v.X, v.Y, v.Z}
	}
	return out
}

func vecs(rs [][]float64) []r3.Vec {
	out := make([]r3.Vec, len(rs))
	for i, r := range rs {
		if len(r) == 3 {
			out[i] = r3.Vec{X: r[0], Y: r[1], Z: r[2]}
		}
	}
	return out
}

// finiteMetrics drops NaN and Inf values, which JSON cannot encode.
func finiteMetrics(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[k] = v
		}
	}
	return out
}
