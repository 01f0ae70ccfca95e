package config

import (
	"math"
	"sort"
)

var Presets = map[string]*Config{
	"circular": {
		Name: "circular", GM: 1, Dt: 0.01, TimeUnit: "native", Steps: 20000,
		Integrator: "verlet", Force: "analytic", LogEvery: DefaultLogEvery,
		Species:    SpeciesList{"C", "H"},
		Positions:  [][]float64{{1, 0, 0}, {2, 0, 0}},
		Velocities: [][]float64{{0, 1, 0}, {0, 1 / math.Sqrt2, 0}},
	},
	"ase-tutorial": {
		Name: "ase-tutorial", GM: 1, Dt: 0.01, TimeUnit: "fs", Steps: 20000,
		Integrator: "verlet", Force: "analytic", LogEvery: DefaultLogEvery,
		Species:    SpeciesList{"C", "H"},
		Positions:  [][]float64{{1, 0, 0}, {2, 0, 0}},
		Velocities: [][]float64{{0, 1, 0}, {0, 1 / math.Sqrt2, 0}},
	},
	"eccentric": {
		Name: "eccentric", GM: 1, Dt: 0.005, TimeUnit: "native", Steps: 20000,
		Integrator: "verlet", Force: "analytic", LogEvery: DefaultLogEvery,
		Species:    SpeciesList{"H"},
		Positions:  [][]float64{{1, 0, 0}},
		Velocities: [][]float64{{0, 1.2, 0}},
	},
	"euler-baseline": {
		Name: "euler-baseline", GM: 1, Dt: 0.01, TimeUnit: "native", Steps: 20000,
		Integrator: "euler", Force: "analytic", LogEvery: DefaultLogEvery,
		Species:    SpeciesList{"C", "H"},
		Positions:  [][]float64{{1, 0, 0}, {2, 0, 0}},
		Velocities: [][]float64{{0, 1, 0}, {0, 1 / math.Sqrt2, 0}},
	},
}

// GetPreset returns a deep copy so callers may modify it freely.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	c := *p
	c.Species = append(SpeciesList(nil), p.Species...)
	c.Masses = append([]float64(nil), p.Masses...)
	c.Positions = copyRows(p.Positions)
	c.Velocities = copyRows(p.Velocities)
	return &c
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func copyRows(rows [][]float64) [][]float64 {
	if rows == nil {
		return nil
	}
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = append([]float64(nil), r...)
	}
	return out
}
