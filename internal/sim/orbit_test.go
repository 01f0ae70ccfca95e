package sim_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/force"
	"github.com/san-kum/orbitsim/internal/integrators"
	"github.com/san-kum/orbitsim/internal/sim"
	"github.com/san-kum/orbitsim/internal/species"
	"github.com/san-kum/orbitsim/internal/validate"
)

func carbonHydrogen() *dynamo.System {
	symbols, err := species.Parse("CH")
	Expect(err).NotTo(HaveOccurred())
	masses, err := species.Masses(symbols)
	Expect(err).NotTo(HaveOccurred())

	sys, err := dynamo.NewSystem(symbols, masses,
		[]r3.Vec{{X: 1}, {X: 2}},
		[]r3.Vec{{Y: 1}, {Y: 1 / math.Sqrt2}},
	)
	Expect(err).NotTo(HaveOccurred())
	return sys
}

func run(model dynamo.ForceModel, sys *dynamo.System, steps int) (*dynamo.Result, error) {
	s := sim.New(model, integrators.NewVelocityVerlet())
	return s.Run(context.Background(), sys, dynamo.Config{Dt: 0.01, Steps: steps, ValidateState: true})
}

var _ = Describe("two bodies on circular orbits", Ordered, func() {
	var result *dynamo.Result

	BeforeAll(func() {
		var err error
		result, err = run(force.NewCentralGravity(1), carbonHydrogen(), 20000)
		Expect(err).NotTo(HaveOccurred())
	})

	It("records one snapshot per step", func() {
		Expect(result.StepsTaken).To(Equal(20000))
		Expect(result.Trajectory.Len()).To(Equal(20000))
		Expect(result.Trajectory.Species).To(Equal([]string{"C", "H"}))
	})

	It("stays in the XY plane", func() {
		Expect(validate.Planar(result.Trajectory, 1e-4)).To(Succeed())
	})

	It("keeps each body near its initial radius", func() {
		Expect(validate.Circular(result.Trajectory, []float64{1, 2}, 0.1)).To(Succeed())
	})

	It("conserves total energy", func() {
		Expect(validate.EnergyConserved(result.InitialEnergy, result.FinalEnergy, result.Final.Step, 1e-6)).To(Succeed())
		Expect(result.EnergyDrift).To(BeNumerically("<", 1e-6))
	})

	It("closes the inner orbit", func() {
		period := 2 * math.Pi
		steps := int(math.Round(period / 0.01))
		p := result.Trajectory.Snapshots[steps-1].Positions[0]
		Expect(r3.Norm(r3.Sub(p, r3.Vec{X: 1}))).To(BeNumerically("<", 0.01))
	})

	It("passes the default suite", func() {
		Expect(validate.Suite(result, validate.DefaultOptions()).Err()).To(Succeed())
	})
})

var _ = Describe("determinism", func() {
	It("produces identical trajectories for identical inputs", func() {
		a, err := run(force.NewCentralGravity(1), carbonHydrogen(), 3000)
		Expect(err).NotTo(HaveOccurred())
		b, err := run(force.NewCentralGravity(1), carbonHydrogen(), 3000)
		Expect(err).NotTo(HaveOccurred())
		Expect(validate.Identical(a.Trajectory, b.Trajectory)).To(Succeed())
	})

	It("is identical across a concurrent ensemble", func() {
		runOne := func(ctx context.Context, sys *dynamo.System) (*dynamo.Result, error) {
			s := sim.New(force.NewCentralGravity(1), integrators.NewVelocityVerlet())
			return s.Run(ctx, sys, dynamo.Config{Dt: 0.01, Steps: 1000})
		}
		results, err := dynamo.NewEnsemble(runOne, 4).Run(context.Background(), carbonHydrogen())
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(4))
		for _, r := range results[1:] {
			Expect(validate.Identical(results[0].Trajectory, r.Trajectory)).To(Succeed())
		}
	})
})

var _ = Describe("finite-difference forces", func() {
	It("track the analytic trajectory", func() {
		analytic, err := run(force.NewCentralGravity(1), carbonHydrogen(), 2000)
		Expect(err).NotTo(HaveOccurred())
		numeric, err := run(force.NewFiniteDifference(force.CentralPotential(1)), carbonHydrogen(), 2000)
		Expect(err).NotTo(HaveOccurred())

		a := analytic.Final.Positions
		n := numeric.Final.Positions
		for i := range a {
			Expect(r3.Norm(r3.Sub(a[i], n[i]))).To(BeNumerically("<", 1e-4))
		}
	})
})

var _ = Describe("a body at the origin", func() {
	It("fails with a domain error instead of producing NaN", func() {
		sys, err := dynamo.NewSystem([]string{"H"}, []float64{1.008}, []r3.Vec{{}}, []r3.Vec{{Y: 1}})
		Expect(err).NotTo(HaveOccurred())

		_, err = run(force.NewCentralGravity(1), sys, 10)
		Expect(err).To(MatchError(dynamo.ErrDomain))
	})
})
