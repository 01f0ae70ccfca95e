package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/orbitsim/internal/config"
	"github.com/san-kum/orbitsim/internal/dynamo"
	"github.com/san-kum/orbitsim/internal/logger"
	"github.com/san-kum/orbitsim/internal/metrics"
	"github.com/san-kum/orbitsim/internal/report"
	"github.com/san-kum/orbitsim/internal/sim"
	"github.com/san-kum/orbitsim/internal/storage"
	"github.com/san-kum/orbitsim/internal/sweep"
	"github.com/san-kum/orbitsim/internal/validate"
)

var (
	dataDir    string
	logMode    string
	verbose    bool
	configFile string
	preset     string
	dt         float64
	steps      int
	gm         float64
	timeUnit   string
	integrator string
	forceModel string
	noSave     bool
	numRuns    int
	plotWidth  int
	plotHeight int
	outFile    string
	dtValues   []float64
	gmValues   []float64
	rankBy     string
	checkOpts  = validate.DefaultOptions()

	log = logger.Nop()
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "orbitsim",
		Short:         "point masses orbiting a central source, integrated with velocity Verlet",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := logger.New(logMode, verbose)
			if err != nil {
				return err
			}
			log = l
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".orbitsim", "data directory")
	rootCmd.PersistentFlags().StringVar(&logMode, "log-mode", "dev", "log format (dev|prod)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation and store its trajectory",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addRunFlags(runCmd)
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")

	checkCmd := &cobra.Command{
		Use:   "check [run_id]",
		Short: "validate a stored run, or a fresh run when no id is given",
		Args:  cobra.MaximumNArgs(1),
		RunE:  checkRun,
	}
	addRunFlags(checkCmd)
	checkCmd.Flags().Float64Var(&checkOpts.PlanarTolerance, "planar-tol", validate.DefaultPlanarTolerance, "max |z|")
	checkCmd.Flags().Float64Var(&checkOpts.RadiusTolerance, "radius-tol", validate.DefaultRadiusTolerance, "max radius deviation")
	checkCmd.Flags().Float64Var(&checkOpts.EnergyTolerance, "energy-tol", validate.DefaultEnergyTolerance, "max relative energy change")
	checkCmd.Flags().BoolVar(&checkOpts.SkipPlanar, "skip-planar", false, "skip the planar check")
	checkCmd.Flags().BoolVar(&checkOpts.SkipCircular, "skip-circular", false, "skip the circular check")

	verifyCmd := &cobra.Command{
		Use:   "verify",
		Short: "run identical simulations concurrently and compare trajectories",
		Args:  cobra.NoArgs,
		RunE:  verifyDeterminism,
	}
	addRunFlags(verifyCmd)
	verifyCmd.Flags().IntVar(&numRuns, "runs", 4, "number of identical runs")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot orbital radius against step",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&plotWidth, "width", 80, "plot width")
	plotCmd.Flags().IntVar(&plotHeight, "height", 12, "plot height")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&outFile, "output", "o", "", "output file (default stdout)")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "run a preset over a grid of dt and gm values and rank by a metric",
		Args:  cobra.NoArgs,
		RunE:  sweepGrid,
	}
	addRunFlags(sweepCmd)
	sweepCmd.Flags().Float64SliceVar(&dtValues, "dt-values", []float64{0.05, 0.02, 0.01, 0.005}, "dt values to sweep")
	sweepCmd.Flags().Float64SliceVar(&gmValues, "gm-values", nil, "gm values to sweep")
	sweepCmd.Flags().StringVar(&rankBy, "metric", "energy_drift", "metric to minimize")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	rootCmd.AddCommand(runCmd, checkCmd, verifyCmd, listCmd, plotCmd, exportCmd, sweepCmd, presetsCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Error("command failed", "error", err)
		log.Sync()
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	log.Sync()
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "circular", "preset configuration")
	cmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "timestep")
	cmd.Flags().IntVar(&steps, "steps", config.DefaultSteps, "number of steps")
	cmd.Flags().Float64Var(&gm, "gm", config.DefaultGM, "GM of the central source")
	cmd.Flags().StringVar(&timeUnit, "time-unit", config.DefaultTimeUnit, "timestep unit (native|fs)")
	cmd.Flags().StringVar(&integrator, "integrator", config.DefaultIntegrator, "integrator (verlet|euler)")
	cmd.Flags().StringVar(&forceModel, "force", config.DefaultForce, "force model (analytic|numeric)")
}

// loadConfig layers preset or file, then environment, then explicit flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	if configFile != "" {
		c, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = c
	} else {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, dynamo.Configf("unknown preset: %s (have %v)", preset, config.ListPresets())
		}
	}

	if err := config.ApplyEnv(cfg); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Dt = dt
	}
	if flags.Changed("steps") {
		cfg.Steps = steps
	}
	if flags.Changed("gm") {
		cfg.GM = gm
	}
	if flags.Changed("time-unit") {
		cfg.TimeUnit = timeUnit
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("force") {
		cfg.Force = forceModel
	}
	if cfg.Name == "" {
		cfg.Name = "run"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// simulate builds a fresh simulator for cfg and runs it on sys.
func simulate(ctx context.Context, cfg *config.Config, sys *dynamo.System) (*dynamo.Result, error) {
	model, err := cfg.ForceModel()
	if err != nil {
		return nil, err
	}
	stepper, err := cfg.Stepper()
	if err != nil {
		return nil, err
	}
	rc, err := cfg.RunConfig()
	if err != nil {
		return nil, err
	}

	s := sim.New(model, stepper, sim.WithLogger(log.With("run", cfg.Name)))
	for _, m := range metrics.Defaults(model) {
		s.AddMetric(m)
	}
	return s.Run(ctx, sys, rc)
}

func runFresh(cmd *cobra.Command) (*config.Config, *dynamo.Result, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	sys, err := cfg.System()
	if err != nil {
		return nil, nil, err
	}
	result, err := simulate(cmd.Context(), cfg, sys)
	return cfg, result, err
}

func summaryFor(cfg *config.Config, runID string) report.Summary {
	rc, _ := cfg.RunConfig()
	return report.Summary{
		RunID:      runID,
		Name:       cfg.Name,
		Integrator: cfg.Integrator,
		Force:      cfg.Force,
		Dt:         rc.Dt,
	}
}

func metadataFor(cfg *config.Config) storage.RunMetadata {
	rc, _ := cfg.RunConfig()
	return storage.RunMetadata{
		Name:       cfg.Name,
		GM:         cfg.GM,
		Dt:         rc.Dt,
		Steps:      cfg.Steps,
		Integrator: cfg.Integrator,
		Force:      cfg.Force,
	}
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, result, runErr := runFresh(cmd)
	if result == nil {
		return runErr
	}

	runID := ""
	if !noSave {
		st := storage.New(dataDir)
		if err := st.Init(); err != nil {
			return err
		}
		meta := metadataFor(cfg)
		if runErr != nil {
			meta.Error = runErr.Error()
		}
		id, err := st.Save(meta, result)
		if err != nil {
			return errors.Join(runErr, err)
		}
		runID = id
		log.Info("run saved", "id", runID, "dir", dataDir)
	}

	if err := report.WriteSummary(cmd.OutOrStdout(), summaryFor(cfg, runID), result); err != nil {
		return err
	}
	return runErr
}

func checkRun(cmd *cobra.Command, args []string) error {
	var result *dynamo.Result

	if len(args) == 1 {
		st := storage.New(dataDir)
		meta, r, err := st.LoadResult(args[0])
		if err != nil {
			return err
		}
		if meta.Error != "" {
			log.Warn("checking a run that aborted", "id", meta.ID, "error", meta.Error)
		}
		result = r
		fmt.Fprintf(cmd.OutOrStdout(), "run: %s (%d steps)\n", meta.ID, result.Trajectory.Len())
	} else {
		cfg, r, err := runFresh(cmd)
		if err != nil {
			return err
		}
		result = r
		fmt.Fprintf(cmd.OutOrStdout(), "preset: %s (%d steps)\n", cfg.Name, result.Trajectory.Len())
	}

	rep := validate.Suite(result, checkOpts)
	if err := report.WriteChecks(cmd.OutOrStdout(), rep); err != nil {
		return err
	}
	if !rep.Passed() {
		return fmt.Errorf("%d of %d checks failed", failed(rep), len(rep.Checks))
	}
	return nil
}

func failed(rep *validate.Report) int {
	n := 0
	for _, c := range rep.Checks {
		if c.Err != nil {
			n++
		}
	}
	return n
}

func verifyDeterminism(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sys, err := cfg.System()
	if err != nil {
		return err
	}

	runOne := func(ctx context.Context, s *dynamo.System) (*dynamo.Result, error) {
		return simulate(ctx, cfg, s)
	}
	results, err := dynamo.NewEnsemble(runOne, numRuns).Run(cmd.Context(), sys)
	if err != nil {
		return err
	}

	for i, r := range results[1:] {
		if err := validate.Identical(results[0].Trajectory, r.Trajectory); err != nil {
			return fmt.Errorf("run %d differs from run 0: %w", i+1, err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d runs of %d steps produced identical trajectories\n",
		len(results), results[0].Trajectory.Len())
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, skipped, err := st.List()
	if err != nil {
		return err
	}
	for _, sk := range skipped {
		log.Warn("skipping unreadable run", "id", sk.ID, "error", sk.Err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no runs found")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tBODIES\tSTEPS\tDT\tINTEG\tFORCE\tDRIFT\tSTATUS")

	for _, run := range runs {
		status := "ok"
		if run.Error != "" {
			status = "aborted"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d/%d\t%g\t%s\t%s\t%.2e\t%s\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			len(run.Species),
			run.StepsTaken,
			run.Steps,
			run.Dt,
			run.Integrator,
			run.Force,
			run.EnergyDrift,
			status,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	traj, err := st.LoadTrajectory(args[0])
	if err != nil {
		return err
	}

	plot, err := report.PlotRadii(traj, plotWidth, plotHeight)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run: %s\n", meta.ID)
	fmt.Fprintf(out, "samples: %d\n\n", traj.Len())
	fmt.Fprintln(out, plot)
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	traj, err := st.LoadTrajectory(args[0])
	if err != nil {
		return err
	}

	if outFile == "" {
		return storage.ExportJSON(cmd.OutOrStdout(), meta, traj)
	}

	f, err := os.Create(outFile)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := storage.ExportJSON(f, meta, traj); err != nil {
		return err
	}
	log.Info("exported", "id", meta.ID, "path", outFile)
	return nil
}

func sweepGrid(cmd *cobra.Command, args []string) error {
	base, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var names []string
	var ranges [][]float64
	if len(dtValues) > 0 {
		names, ranges = append(names, sweep.ParamDt), append(ranges, dtValues)
	}
	if len(gmValues) > 0 {
		names, ranges = append(names, sweep.ParamGM), append(ranges, gmValues)
	}
	grid, err := sweep.NewGrid(names, ranges)
	if err != nil {
		return err
	}
	log.Info("sweep started", "points", grid.Size(), "metric", rankBy)

	points, err := grid.Search(cmd.Context(), func(ctx context.Context, params map[string]float64) (map[string]float64, error) {
		cfg := *base
		if err := sweep.Apply(&cfg, params); err != nil {
			return nil, err
		}
		return sweep.Evaluate(ctx, &cfg, sim.WithLogger(log.With("sweep", params)))
	})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PARAMS\tMETRIC\tSTATUS")
	for _, p := range points {
		status, value := "ok", "-"
		if p.Err != nil {
			status = p.Err.Error()
		} else if v, ok := p.Metrics[rankBy]; ok {
			value = fmt.Sprintf("%.3e", v)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", formatParams(p.Params), value, status)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	best, ok := sweep.Best(points, rankBy)
	if !ok {
		return fmt.Errorf("no successful point reported %q", rankBy)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nbest: %s (%s=%.3e)\n", formatParams(best.Params), rankBy, best.Metrics[rankBy])
	return nil
}

func formatParams(params map[string]float64) string {
	out := ""
	for i, name := range sweep.SortedNames(params) {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s=%g", name, params[name])
	}
	return out
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tBODIES\tDT\tUNIT\tSTEPS\tINTEG")
	for _, name := range config.ListPresets() {
		p := config.GetPreset(name)
		fmt.Fprintf(w, "%s\t%v\t%g\t%s\t%d\t%s\n", name, []string(p.Species), p.Dt, p.TimeUnit, p.Steps, p.Integrator)
	}
	return w.Flush()
}
