// Package report renders run summaries, validation outcomes and radius
// plots for the terminal.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/validate"
)

var (
	title = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	label = lipgloss.NewStyle().Foreground(lipgloss.Color("242")).Width(18)
	value = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	pass  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("82"))
	fail  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	dim   = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	box   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")).Padding(0, 1)
)

var seriesColors = []asciigraph.AnsiColor{
	asciigraph.Cyan, asciigraph.Yellow, asciigraph.Magenta, asciigraph.Green, asciigraph.Red, asciigraph.Blue,
}

// Summary is the header block printed after a run.
type Summary struct {
	RunID      string
	Name       string
	Integrator string
	Force      string
	Dt         float64
}

func row(k, v string) string {
	return label.Render(k) + value.Render(v)
}

func WriteSummary(w io.Writer, s Summary, result *dynamo.Result) error {
	var b strings.Builder
	b.WriteString(title.Render(s.Name))
	b.WriteString("\n")
	if s.RunID != "" {
		b.WriteString(row("run", s.RunID) + "\n")
	}
	b.WriteString(row("integrator", s.Integrator) + "\n")
	b.WriteString(row("force", s.Force) + "\n")
	b.WriteString(row("dt", fmt.Sprintf("%g", s.Dt)) + "\n")
	b.WriteString(row("steps", fmt.Sprintf("%d", result.StepsTaken)) + "\n")
	b.WriteString(row("time", fmt.Sprintf("%.4f", result.Final.Time)) + "\n")
	b.WriteString(row("energy", fmt.Sprintf("%.10g -> %.10g", result.InitialEnergy, result.FinalEnergy)) + "\n")
	b.WriteString(row("energy drift", fmt.Sprintf("%.3e", result.EnergyDrift)))

	for _, name := range sortedKeys(result.Metrics) {
		b.WriteString("\n" + row(name, fmt.Sprintf("%.3e", result.Metrics[name])))
	}

	if n := len(result.Final.Positions); n > 0 {
		b.WriteString("\n" + dim.Render("final positions"))
		for i, p := range result.Final.Positions {
			sp := ""
			if i < len(result.Trajectory.Species) {
				sp = result.Trajectory.Species[i]
			}
			b.WriteString("\n" + row(fmt.Sprintf("  %s%d", sp, i),
				fmt.Sprintf("(%.6f, %.6f, %.6f) |r|=%.6f", p.X, p.Y, p.Z, r3.Norm(p))))
		}
	}

	_, err := fmt.Fprintln(w, box.Render(b.String()))
	return err
}

// WriteChecks prints one line per check; failures list their violations.
func WriteChecks(w io.Writer, r *validate.Report) error {
	var b strings.Builder
	for i, c := range r.Checks {
		if i > 0 {
			b.WriteString("\n")
		}
		if c.Err == nil {
			b.WriteString(pass.Render("PASS") + " " + c.Name)
			continue
		}
		b.WriteString(fail.Render("FAIL") + " " + c.Name)
		for _, line := range strings.Split(c.Err.Error(), "\n") {
			b.WriteString("\n     " + dim.Render(line))
		}
	}
	_, err := fmt.Fprintln(w, b.String())
	return err
}

// PlotRadii draws |r| against step for every particle.
func PlotRadii(traj *dynamo.Trajectory, width, height int) (string, error) {
	if traj.Len() < 2 {
		return "", fmt.Errorf("report: need at least 2 snapshots to plot, got %d", traj.Len())
	}

	series := make([][]float64, traj.NumParticles())
	legends := make([]string, traj.NumParticles())
	for i := range series {
		series[i] = traj.Radii(i)
		legends[i] = fmt.Sprintf("%s%d", traj.Species[i], i)
	}

	colors := make([]asciigraph.AnsiColor, len(series))
	for i := range colors {
		colors[i] = seriesColors[i%len(seriesColors)]
	}

	return asciigraph.PlotMany(series,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.SeriesColors(colors...),
		asciigraph.Caption("|r| vs step: "+strings.Join(legends, ", ")),
	), nil
}
