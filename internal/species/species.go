// Package species maps chemical symbols to standard atomic masses (amu).
package species

import (
	"errors"
	"fmt"
	"sort"
	"unicode"
)

var ErrUnknownSpecies = errors.New("species: unknown symbol")

// masses holds standard atomic weights for the first rows of the table.
var masses = map[string]float64{
	"H":  1.008,
	"He": 4.002602,
	"Li": 6.94,
	"Be": 9.0121831,
	"B":  10.81,
	"C":  12.011,
	"N":  14.007,
	"O":  15.999,
	"F":  18.998403163,
	"Ne": 20.1797,
	"Na": 22.98976928,
	"Mg": 24.305,
	"Al": 26.9815385,
	"Si": 28.085,
	"P":  30.973761998,
	"S":  32.06,
	"Cl": 35.45,
	"Ar": 39.948,
	"K":  39.0983,
	"Ca": 40.078,
	"Fe": 55.845,
	"Cu": 63.546,
	"Zn": 65.38,
	"Ag": 107.8682,
	"Au": 196.966569,
}

func Mass(symbol string) (float64, error) {
	m, ok := masses[symbol]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownSpecies, symbol)
	}
	return m, nil
}

// Masses looks up every symbol in order.
func Masses(symbols []string) ([]float64, error) {
	out := make([]float64, len(symbols))
	for i, s := range symbols {
		m, err := Mass(s)
		if err != nil {
			return nil, fmt.Errorf("particle %d: %w", i, err)
		}
		out[i] = m
	}
	return out, nil
}

// MaxCount bounds one element count in a formula, MaxParticles the
// expanded total.
const (
	MaxCount     = 1000
	MaxParticles = 1 << 16
)

// Parse splits a formula-style string such as "CH" or "HeNe" into symbols.
// Counts are expanded, so "H2O" yields H, H, O.
func Parse(formula string) ([]string, error) {
	var out []string
	runes := []rune(formula)
	for i := 0; i < len(runes); {
		r := runes[i]
		if !unicode.IsUpper(r) {
			return nil, fmt.Errorf("species: parse %q: unexpected %q at %d", formula, r, i)
		}
		j := i + 1
		for j < len(runes) && unicode.IsLower(runes[j]) {
			j++
		}
		sym := string(runes[i:j])
		if _, ok := masses[sym]; !ok {
			return nil, fmt.Errorf("%w: %q in %q", ErrUnknownSpecies, sym, formula)
		}

		count, digits := 0, 0
		for j < len(runes) && runes[j] >= '0' && runes[j] <= '9' {
			count = count*10 + int(runes[j]-'0')
			digits++
			j++
			if count > MaxCount {
				return nil, fmt.Errorf("species: parse %q: count for %s exceeds %d", formula, sym, MaxCount)
			}
		}
		switch {
		case digits == 0:
			count = 1
		case count == 0:
			return nil, fmt.Errorf("species: parse %q: zero count for %s", formula, sym)
		}
		if len(out)+count > MaxParticles {
			return nil, fmt.Errorf("species: parse %q: more than %d particles", formula, MaxParticles)
		}
		for k := 0; k < count; k++ {
			out = append(out, sym)
		}
		i = j
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("species: parse %q: empty formula", formula)
	}
	return out, nil
}

func Known() []string {
	names := make([]string, 0, len(masses))
	for name := range masses {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
