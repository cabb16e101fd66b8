package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"chialvo/internal/config"
	"chialvo/pkg/chialvo"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Copy a run's artifact directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			outDir, _ := cmd.Flags().GetString("out")
			jsonOut, _ := cmd.Flags().GetBool("json")
			req := chialvo.ExportRequest{RunSelector: selectorFromFlags(cmd), OutDir: outDir}

			return withClient(cmd, func(client *chialvo.Client, _ *config.Config) error {
				exported, err := client.Export(cmd.Context(), req)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd.OutOrStdout(), map[string]string{
						"run_id":    exported.RunID,
						"directory": exported.Directory,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported run=%s dir=%s\n", exported.RunID, exported.Directory)
				return nil
			})
		},
	}
	selectorFlags(cmd)
	cmd.Flags().String("out", "", "Export directory (default exports)")
	return cmd
}

func newPlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Render the oscillation and spike raster figure of a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			format, _ := cmd.Flags().GetString("format")
			rule, _ := cmd.Flags().GetString("rule")
			maxPoints, _ := cmd.Flags().GetInt("max-points")
			jsonOut, _ := cmd.Flags().GetBool("json")

			return withClient(cmd, func(client *chialvo.Client, cfg *config.Config) error {
				if dir == "" {
					dir = cfg.Artifacts.PlotDir
				}
				plotted, err := client.Plot(cmd.Context(), chialvo.PlotRequest{
					RunSelector: selectorFromFlags(cmd),
					Dir:         dir,
					Format:      format,
					Rule:        rule,
					MaxPoints:   maxPoints,
				})
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd.OutOrStdout(), map[string]string{
						"run_id": plotted.RunID,
						"path":   plotted.Path,
					})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "plotted run=%s path=%s\n", plotted.RunID, plotted.Path)
				return nil
			})
		},
	}
	selectorFlags(cmd)
	cmd.Flags().String("dir", "", "Figure directory; defaults to the run's artifact directory")
	cmd.Flags().String("format", "png", "Figure format: png|svg|pdf")
	cmd.Flags().String("rule", "", "Raster event rule: local-max|above")
	cmd.Flags().Int("max-points", 0, "Thin oscillation lines to at most this many points per node")
	return cmd
}
