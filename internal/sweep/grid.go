// Package sweep runs a simulation over a grid of scalar parameters and
// ranks the points by one metric.
package sweep

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/orbitsim/internal/config"
	"github.com/san-kum/orbitsim/internal/dynamo"
)

// Params that can be swept.
const (
	ParamDt    = "dt"
	ParamGM    = "gm"
	ParamSteps = "steps"
)

// RunFunc evaluates one grid point and returns its metrics.
type RunFunc func(ctx context.Context, params map[string]float64) (map[string]float64, error)

type Point struct {
	Params  map[string]float64
	Metrics map[string]float64
	Err     error
}

type Grid struct {
	paramNames []string
	ranges     [][]float64
}

func NewGrid(params []string, ranges [][]float64) (*Grid, error) {
	if len(params) == 0 {
		return nil, dynamo.Configf("sweep needs at least one parameter")
	}
	if len(params) != len(ranges) {
		return nil, dynamo.Configf("%d parameters but %d ranges", len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, dynamo.Configf("parameter %s has no values", params[i])
		}
	}
	return &Grid{paramNames: params, ranges: ranges}, nil
}

// Size is the number of points in the grid.
func (g *Grid) Size() int {
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Search evaluates every point in row-major order. Failed points are kept
// with their error; only context cancellation stops the sweep early.
func (g *Grid) Search(ctx context.Context, run RunFunc) ([]Point, error) {
	points := make([]Point, 0, g.Size())
	err := g.searchRecursive(ctx, 0, map[string]float64{}, run, &points)
	return points, err
}

func (g *Grid) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	run RunFunc,
	points *[]Point,
) error {
	if depth == len(g.paramNames) {
		if err := ctx.Err(); err != nil {
			return err
		}
		m, err := run(ctx, current)
		*points = append(*points, Point{Params: current, Metrics: m, Err: err})
		return nil
	}

	name := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		next := make(map[string]float64, len(current)+1)
		for k, v := range current {
			next[k] = v
		}
		next[name] = val

		if err := g.searchRecursive(ctx, depth+1, next, run, points); err != nil {
			return err
		}
	}
	return nil
}

// Best returns the successful point with the lowest finite value of
// metric, or false when there is none.
func Best(points []Point, metric string) (Point, bool) {
	best := math.Inf(1)
	idx := -1
	for i, p := range points {
		if p.Err != nil {
			continue
		}
		v, ok := p.Metrics[metric]
		if !ok || math.IsNaN(v) {
			continue
		}
		if v < best {
			best, idx = v, i
		}
	}
	if idx < 0 {
		return Point{}, false
	}
	return points[idx], true
}

// Apply copies params onto cfg.
func Apply(cfg *config.Config, params map[string]float64) error {
	for _, name := range SortedNames(params) {
		v := params[name]
		switch name {
		case ParamDt:
			cfg.Dt = v
		case ParamGM:
			cfg.GM = v
		case ParamSteps:
			if v != math.Trunc(v) {
				return dynamo.Configf("steps must be an integer, got %g", v)
			}
			cfg.Steps = int(v)
		default:
			return fmt.Errorf("%w: cannot sweep %q", dynamo.ErrConfig, name)
		}
	}
	return nil
}

func SortedNames(params map[string]float64) []string {
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
