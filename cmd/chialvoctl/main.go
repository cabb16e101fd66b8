package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"chialvo/internal/config"
	"chialvo/internal/logging"
	"chialvo/pkg/chialvo"
)

var version = "0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chialvoctl",
		Short: "Chialvo coupled map-oscillator lattice simulator",
		Long: `chialvoctl simulates rings and tori of Chialvo-type excitable oscillators,
records their excitation series and extracts spike events.

Runs are persisted to the configured store and written to an artifact
directory that the runs, show, events, export and plot commands read back.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "YAML config file")
	rootCmd.PersistentFlags().String("store", "", "Store backend: memory|sqlite|postgres")
	rootCmd.PersistentFlags().String("db-path", "", "SQLite file or postgres connection string")
	rootCmd.PersistentFlags().String("artifacts-dir", "", "Run artifacts directory")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info|debug|trace")

	rootCmd.AddCommand(
		newVersionCmd(),
		newSimulateCmd(),
		newRunsCmd(),
		newShowCmd(),
		newEventsCmd(),
		newExportCmd(),
		newPlotCmd(),
		newDeleteCmd(),
		newWatchCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"version": version})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "chialvoctl version %s\n", version)
			return nil
		},
	}
}

// loadConfig layers defaults, the --config file, environment variables and
// finally the global flags that were set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	overrides := []struct {
		flag string
		dst  *string
	}{
		{"store", &cfg.Store.Kind},
		{"db-path", &cfg.Store.Path},
		{"artifacts-dir", &cfg.Artifacts.Dir},
		{"log-level", &cfg.Logging.Level},
	}
	for _, o := range overrides {
		if flags.Changed(o.flag) {
			*o.dst, _ = flags.GetString(o.flag)
		}
	}
	return cfg, nil
}

func openClient(cmd *cobra.Command, cfg *config.Config, streamAddr string) (*chialvo.Client, error) {
	logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
	logger.Debug("opening client",
		"store", cfg.Store.Kind,
		"artifacts_dir", cfg.Artifacts.Dir,
		"stream_addr", streamAddr,
	)
	return chialvo.New(chialvo.Options{
		StoreKind:    cfg.Store.Kind,
		DBPath:       cfg.Store.Path,
		ArtifactsDir: cfg.Artifacts.Dir,
		StreamAddr:   streamAddr,
		Logger:       logger,
	})
}

// withClient loads configuration, opens a client for the duration of fn and
// closes it afterwards.
func withClient(cmd *cobra.Command, fn func(*chialvo.Client, *config.Config) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	client, err := openClient(cmd, cfg, "")
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	return fn(client, cfg)
}

func selectorFlags(cmd *cobra.Command) {
	cmd.Flags().String("run-id", "", "Run id")
	cmd.Flags().Bool("latest", false, "Use the most recent run")
}

func selectorFromFlags(cmd *cobra.Command) chialvo.RunSelector {
	runID, _ := cmd.Flags().GetString("run-id")
	latest, _ := cmd.Flags().GetBool("latest")
	return chialvo.RunSelector{RunID: runID, Latest: latest}
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
