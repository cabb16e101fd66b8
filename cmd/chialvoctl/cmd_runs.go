package main

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"chialvo/internal/config"
	"chialvo/internal/simulation"
	"chialvo/pkg/chialvo"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			jsonOut, _ := cmd.Flags().GetBool("json")
			return withClient(cmd, func(client *chialvo.Client, _ *config.Config) error {
				runs, err := client.Runs(cmd.Context(), chialvo.RunsRequest{Limit: limit})
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd.OutOrStdout(), runsOutput(runs))
				}
				if len(runs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no runs found")
					return nil
				}
				rows := make([][]string, 0, len(runs))
				for _, r := range runs {
					rows = append(rows, []string{
						r.RunID,
						r.CreatedAtUTC,
						describeLattice(simulation.Params{Topology: r.Topology, Size: r.Size}),
						humanize.Comma(int64(r.Iterations)),
						humanize.Comma(int64(r.Samples)),
						strconv.FormatInt(r.Seed, 10),
						humanize.Comma(int64(r.TotalSpikes)),
					})
				}
				table(cmd.OutOrStdout(), []string{"RUN", "CREATED", "LATTICE", "STEPS", "SAMPLES", "SEED", "SPIKES"}, rows)
				return nil
			})
		},
	}
	cmd.Flags().Int("limit", 20, "Max runs to list")
	return cmd
}

type runJSON struct {
	RunID        string  `json:"run_id"`
	CreatedAtUTC string  `json:"created_at_utc"`
	Topology     string  `json:"topology"`
	Size         int     `json:"size"`
	Nodes        int     `json:"nodes"`
	Iterations   int     `json:"iterations"`
	Samples      int     `json:"samples"`
	Seed         int64   `json:"seed"`
	TotalSpikes  int     `json:"total_spikes"`
	MeanRate     float64 `json:"mean_rate"`
}

func runsOutput(runs []chialvo.RunItem) []runJSON {
	out := make([]runJSON, 0, len(runs))
	for _, r := range runs {
		out = append(out, runJSON{
			RunID:        r.RunID,
			CreatedAtUTC: r.CreatedAtUTC,
			Topology:     r.Topology,
			Size:         r.Size,
			Nodes:        r.Nodes,
			Iterations:   r.Iterations,
			Samples:      r.Samples,
			Seed:         r.Seed,
			TotalSpikes:  r.TotalSpikes,
			MeanRate:     r.MeanRate,
		})
	}
	return out
}

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print a run's configuration and per-node summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			sel := selectorFromFlags(cmd)
			return withClient(cmd, func(client *chialvo.Client, _ *config.Config) error {
				shown, err := client.Show(cmd.Context(), sel)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd.OutOrStdout(), map[string]any{
						"config":       shown.Config,
						"summary":      shown.Summary,
						"has_recovery": shown.HasRecovery,
					})
				}

				w := cmd.OutOrStdout()
				c := shown.Config
				fmt.Fprintln(w, heading("Run "+c.RunID))
				fmt.Fprintln(w, field("created", c.CreatedAtUTC))
				fmt.Fprintln(w, field("lattice", describeLattice(c.Params)))
				fmt.Fprintln(w, field("steps", humanize.Comma(int64(c.Iterations))))
				fmt.Fprintln(w, field("stride", strconv.Itoa(c.Params.Stride)))
				fmt.Fprintln(w, field("phase", c.SamplePhase))
				fmt.Fprintln(w, field("seed", strconv.FormatInt(c.Params.Seed, 10)))
				fmt.Fprintln(w, field("event rule", c.EventRule))
				fmt.Fprintln(w, field("spikes", fmt.Sprintf("%s (mean rate %.4g)", humanize.Comma(int64(shown.Summary.TotalSpikes)), shown.Summary.MeanRate)))
				fmt.Fprintln(w)

				rows := make([][]string, 0, len(shown.Summary.Nodes))
				for _, n := range shown.Summary.Nodes {
					rows = append(rows, []string{
						strconv.Itoa(n.Node),
						formatFloat(n.Mean),
						formatFloat(n.Std),
						formatFloat(n.Min),
						formatFloat(n.Max),
						strconv.Itoa(n.Spikes),
						formatFloat(n.Rate),
						formatFloat(n.MeanISI),
					})
				}
				table(w, []string{"NODE", "MEAN", "STD", "MIN", "MAX", "SPIKES", "RATE", "MEAN ISI"}, rows)
				return nil
			})
		},
	}
	selectorFlags(cmd)
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Remove a run from the store and the artifacts directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(client *chialvo.Client, _ *config.Config) error {
				if err := client.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted run %s\n", args[0])
				return nil
			})
		},
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
