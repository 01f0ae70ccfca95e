package integrators

import (
	"sort"

	"github.com/san-kum/orbitsim/internal/dynamo"
)

var registry = map[string]func() dynamo.Stepper{
	"verlet": func() dynamo.Stepper { return NewVelocityVerlet() },
	"euler":  func() dynamo.Stepper { return NewEuler() },
}

// New returns a fresh stepper by name.
func New(name string) (dynamo.Stepper, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, dynamo.Configf("unknown integrator: %s", name)
	}
	return fn(), nil
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
