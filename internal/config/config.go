package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/force"
	"github.com/san-kum/orbitsim/internal/integrators"
	"github.com/san-kum/orbitsim/internal/species"
)

const (
	DefaultGM         = 1.0
	DefaultDt         = 0.01
	DefaultSteps      = 20000
	DefaultIntegrator = "verlet"
	DefaultForce      = "analytic"
	DefaultTimeUnit   = "native"
	DefaultLogEvery   = 5000

	// EnvPrefix is prepended to every environment override.
	EnvPrefix = "ORBITSIM_"

	// Femtosecond is one femtosecond in the eV/Å/amu unit system.
	Femtosecond = 0.09822694788464063
)

type Config struct {
	Name       string      `yaml:"name"`
	GM         float64     `yaml:"gm" env:"GM"`
	Dt         float64     `yaml:"dt" env:"DT"`
	TimeUnit   string      `yaml:"time_unit" env:"TIME_UNIT"`
	Steps      int         `yaml:"steps" env:"STEPS"`
	Integrator string      `yaml:"integrator" env:"INTEGRATOR"`
	Force      string      `yaml:"force" env:"FORCE"`
	LogEvery   int         `yaml:"log_every" env:"LOG_EVERY"`
	Species    SpeciesList `yaml:"species"`
	Masses     []float64   `yaml:"masses,omitempty"`
	Positions  [][]float64 `yaml:"positions"`
	Velocities [][]float64 `yaml:"velocities,omitempty"`
}

// SpeciesList accepts either a YAML sequence of symbols or a formula
// string such as "CH".
type SpeciesList []string

func (s *SpeciesList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		symbols, err := species.Parse(value.Value)
		if err != nil {
			return err
		}
		*s = symbols
		return nil
	case yaml.SequenceNode:
		var symbols []string
		if err := value.Decode(&symbols); err != nil {
			return err
		}
		*s = symbols
		return nil
	default:
		return fmt.Errorf("species: expected string or list at line %d", value.Line)
	}
}

func DefaultConfig() *Config {
	return &Config{
		GM:         DefaultGM,
		Dt:         DefaultDt,
		TimeUnit:   DefaultTimeUnit,
		Steps:      DefaultSteps,
		Integrator: DefaultIntegrator,
		Force:      DefaultForce,
		LogEvery:   DefaultLogEvery,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overrides scalar run parameters from ORBITSIM_* variables.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate reports every configuration problem before a run starts.
func (c *Config) Validate() error {
	if _, err := c.RunConfig(); err != nil {
		return err
	}
	if !(c.GM > 0) {
		return dynamo.Configf("gm must be positive, got %g", c.GM)
	}
	if _, err := c.Stepper(); err != nil {
		return err
	}
	if _, err := c.ForceModel(); err != nil {
		return err
	}
	_, err := c.System()
	return err
}

// TimeScale is the factor converting dt into native time units.
func (c *Config) TimeScale() (float64, error) {
	switch c.TimeUnit {
	case "", "native":
		return 1, nil
	case "fs":
		return Femtosecond, nil
	default:
		return 0, dynamo.Configf("unknown time unit: %s", c.TimeUnit)
	}
}

func (c *Config) RunConfig() (dynamo.Config, error) {
	scale, err := c.TimeScale()
	if err != nil {
		return dynamo.Config{}, err
	}
	rc := dynamo.Config{
		Dt:            c.Dt * scale,
		Steps:         c.Steps,
		ValidateState: true,
		LogEvery:      c.LogEvery,
	}
	return rc, rc.Validate()
}

func (c *Config) ForceModel() (dynamo.ForceModel, error) {
	switch c.Force {
	case "", "analytic":
		return force.NewCentralGravity(c.GM), nil
	case "numeric":
		return force.NewFiniteDifference(force.CentralPotential(c.GM)), nil
	default:
		return nil, dynamo.Configf("unknown force model: %s", c.Force)
	}
}

func (c *Config) Stepper() (dynamo.Stepper, error) {
	name := c.Integrator
	if name == "" {
		name = DefaultIntegrator
	}
	return integrators.New(name)
}

// System builds the initial state. Masses come from the species table
// unless listed explicitly.
func (c *Config) System() (*dynamo.System, error) {
	n := len(c.Species)
	if n == 0 {
		return nil, dynamo.Configf("no species given")
	}
	if len(c.Positions) != n {
		return nil, dynamo.Configf("%d species but %d positions", n, len(c.Positions))
	}
	if len(c.Velocities) != 0 && len(c.Velocities) != n {
		return nil, dynamo.Configf("%d species but %d velocities", n, len(c.Velocities))
	}
	if len(c.Masses) != 0 && len(c.Masses) != n {
		return nil, dynamo.Configf("%d species but %d masses", n, len(c.Masses))
	}

	masses := c.Masses
	if len(masses) == 0 {
		var err error
		if masses, err = species.Masses(c.Species); err != nil {
			return nil, fmt.Errorf("%w: %w", dynamo.ErrConfig, err)
		}
	}

	positions, err := vectors("position", c.Positions)
	if err != nil {
		return nil, err
	}
	var velocities []r3.Vec
	if len(c.Velocities) != 0 {
		if velocities, err = vectors("velocity", c.Velocities); err != nil {
			return nil, err
		}
	}

	return dynamo.NewSystem(c.Species, masses, positions, velocities)
}

func vectors(kind string, rows [][]float64) ([]r3.Vec, error) {
	out := make([]r3.Vec, len(rows))
	for i, row := range rows {
		if len(row) != 3 {
			return nil, dynamo.Configf("%s %d: expected 3 components, got %d", kind, i, len(row))
		}
		out[i] = r3.Vec{X: row[0], Y: row[1], Z: row[2]}
	}
	return out, nil
}
