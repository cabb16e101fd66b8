package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"chialvo/internal/lattice"
	"chialvo/internal/simulation"
	"chialvo/pkg/chialvo"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run one lattice simulation and store it",
		Long: `Run one lattice simulation.

Parameters come from the defaults, then the simulation section of --config,
then CHIALVO_SEED, then the flags given here. The run is persisted to the
store, written to the artifacts directory and optionally plotted.`,
		Args: cobra.NoArgs,
		RunE: runSimulate,
	}

	flags := cmd.Flags()
	flags.String("topology", lattice.KindRing, "Lattice topology: ring|torus")
	flags.Int("neurons", 5, "Ring size")
	flags.Int("width", 5, "Torus width; the torus has width*width nodes")
	flags.Float64("dt", 0.01, "Integration step")
	flags.Float64("tmax", 1000, "Simulated duration; the run takes floor(tmax/dt) steps")
	flags.Float64P("threshold", "t", 0.5, "Spike threshold")
	flags.Float64P("coupling", "w", 0.3, "Coupling strength")
	flags.Float64P("epsilon", "e", 0.02, "Recovery rate")
	flags.Float64P("gain", "a", 6, "Recovery gain")
	flags.Float64P("beta", "B", 0.1, "Recovery sigmoid width")
	flags.Float64P("bias", "p", 0, "Constant bias added to dx")
	flags.Float64P("excitation", "I", 0.1, "External excitation added to dx")
	flags.IntP("stride", "o", 15, "Record every n-th step")
	flags.Int64("seed", 10, "Initial condition seed")
	flags.String("sample-phase", "", "Record before (pre) or after (post) each step; empty uses the topology default")
	flags.Int("workers", 1, "Goroutines per integrator phase")
	flags.Bool("record-recovery", false, "Also record the recovery variable y")

	flags.String("run-id", "", "Run id; generated when empty")
	flags.String("events-rule", "", "Event rule: local-max|above")
	flags.Bool("plot", false, "Render the run figure")
	flags.String("plot-dir", "", "Figure directory; defaults to the run's artifact directory")
	flags.String("plot-format", "png", "Figure format: png|svg|pdf")
	flags.String("stream-addr", "", "Publish ticks on this nanomsg address, e.g. tcp://127.0.0.1:40899")
	flags.String("metrics-file", "", "Write Prometheus metrics to this textfile after the run")
	flags.Bool("no-progress", false, "Never draw the progress bar")

	cmd.MarkFlagsMutuallyExclusive("neurons", "width")
	return cmd
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	applySimulationFlags(flags, &cfg.Simulation)
	if flags.Changed("events-rule") {
		cfg.Artifacts.EventRule, _ = flags.GetString("events-rule")
	}
	if flags.Changed("plot-dir") {
		cfg.Artifacts.PlotDir, _ = flags.GetString("plot-dir")
	}
	if flags.Changed("stream-addr") {
		cfg.Stream.Addr, _ = flags.GetString("stream-addr")
	}
	if flags.Changed("metrics-file") {
		cfg.Metrics.Textfile, _ = flags.GetString("metrics-file")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	client, err := openClient(cmd, cfg, cfg.Stream.Addr)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runID, _ := flags.GetString("run-id")
	plotFigure, _ := flags.GetBool("plot")
	plotFormat, _ := flags.GetString("plot-format")
	jsonOut, _ := flags.GetBool("json")
	noProgress, _ := flags.GetBool("no-progress")

	req := chialvo.SimulateRequest{
		RunID:       runID,
		Params:      cfg.Simulation,
		EventRule:   cfg.Artifacts.EventRule,
		Plot:        plotFigure,
		PlotDir:     cfg.Artifacts.PlotDir,
		PlotFormat:  plotFormat,
		MetricsFile: cfg.Metrics.Textfile,
	}
	var bar *progressBar
	if !jsonOut && !noProgress && isTerminal(cmd.ErrOrStderr()) {
		bar = newProgressBar(cmd.ErrOrStderr())
		req.Progress = bar.Update
	}

	summary, err := client.Simulate(cmd.Context(), req)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	if jsonOut {
		return writeJSON(cmd.OutOrStdout(), simulateOutput(summary, cfg.Simulation))
	}
	printRunSummary(cmd.OutOrStdout(), summary, cfg.Simulation)
	return nil
}

// applySimulationFlags copies only the flags given on the command line so
// that config file values survive.
func applySimulationFlags(flags *pflag.FlagSet, p *simulation.Params) {
	if flags.Changed("topology") {
		p.Topology, _ = flags.GetString("topology")
	}
	if flags.Changed("neurons") {
		p.Size, _ = flags.GetInt("neurons")
	}
	if flags.Changed("width") {
		p.Size, _ = flags.GetInt("width")
	}
	if flags.Changed("sample-phase") {
		phase, _ := flags.GetString("sample-phase")
		p.SamplePhase = simulation.SamplePhase(phase)
	}

	floats := []struct {
		flag string
		dst  *float64
	}{
		{"dt", &p.DT},
		{"tmax", &p.Tmax},
		{"threshold", &p.Threshold},
		{"coupling", &p.Coupling},
		{"epsilon", &p.Epsilon},
		{"gain", &p.A},
		{"beta", &p.Beta},
		{"bias", &p.Bias},
		{"excitation", &p.Excitation},
	}
	for _, f := range floats {
		if flags.Changed(f.flag) {
			*f.dst, _ = flags.GetFloat64(f.flag)
		}
	}

	ints := []struct {
		flag string
		dst  *int
	}{
		{"stride", &p.Stride},
		{"workers", &p.Workers},
	}
	for _, f := range ints {
		if flags.Changed(f.flag) {
			*f.dst, _ = flags.GetInt(f.flag)
		}
	}
	if flags.Changed("seed") {
		p.Seed, _ = flags.GetInt64("seed")
	}
	if flags.Changed("record-recovery") {
		p.RecordRecovery, _ = flags.GetBool("record-recovery")
	}
}

type simulateJSON struct {
	RunID        string            `json:"run_id"`
	ArtifactsDir string            `json:"artifacts_dir"`
	FigurePath   string            `json:"figure_path,omitempty"`
	Params       simulation.Params `json:"params"`
	Nodes        int               `json:"nodes"`
	Iterations   int               `json:"iterations"`
	Samples      int               `json:"samples"`
	SamplePhase  string            `json:"sample_phase"`
	TotalSpikes  int               `json:"total_spikes"`
	MeanRate     float64           `json:"mean_rate"`
	ElapsedMS    int64             `json:"elapsed_ms"`
}

func simulateOutput(s chialvo.RunSummary, p simulation.Params) simulateJSON {
	return simulateJSON{
		RunID:        s.RunID,
		ArtifactsDir: s.ArtifactsDir,
		FigurePath:   s.FigurePath,
		Params:       p,
		Nodes:        s.Nodes,
		Iterations:   s.Iterations,
		Samples:      s.Samples,
		SamplePhase:  s.SamplePhase,
		TotalSpikes:  s.TotalSpikes,
		MeanRate:     s.MeanRate,
		ElapsedMS:    s.Elapsed.Milliseconds(),
	}
}

func describeLattice(p simulation.Params) string {
	if p.Topology == lattice.KindTorus {
		return fmt.Sprintf("torus %dx%d", p.Size, p.Size)
	}
	return fmt.Sprintf("ring n=%d", p.Size)
}

func roundElapsed(d time.Duration) time.Duration {
	if d < time.Second {
		return d.Round(time.Microsecond)
	}
	return d.Round(time.Millisecond)
}
