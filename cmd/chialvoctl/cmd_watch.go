package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"chialvo/internal/config"
	"chialvo/internal/stream"
	"chialvo/pkg/chialvo"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the ticks a running simulate --stream-addr publishes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, _ := cmd.Flags().GetString("stream-addr")
			runID, _ := cmd.Flags().GetString("run-id")
			idle, _ := cmd.Flags().GetDuration("idle")
			jsonOut, _ := cmd.Flags().GetBool("json")

			return withClient(cmd, func(client *chialvo.Client, cfg *config.Config) error {
				if addr == "" {
					addr = cfg.Stream.Addr
				}
				w := cmd.OutOrStdout()
				enc := json.NewEncoder(w)
				status, err := client.Watch(cmd.Context(), chialvo.WatchRequest{Addr: addr, RunID: runID, Idle: idle}, func(msg stream.Message) error {
					if jsonOut {
						return enc.Encode(msg)
					}
					_, err := fmt.Fprintf(w, "%s tick=%d t=%s x=[%s]\n", msg.RunID, msg.Tick, strconv.FormatFloat(msg.Time, 'f', -1, 64), formatValues(msg.X))
					return err
				})
				if err != nil {
					return err
				}
				if jsonOut {
					return enc.Encode(stream.Message{RunID: runID, Done: true, Status: status})
				}
				fmt.Fprintf(w, "run finished status=%s\n", status)
				return nil
			})
		},
	}
	cmd.Flags().String("stream-addr", "", "Nanomsg address the simulation publishes on")
	cmd.Flags().String("run-id", "", "Only follow this run")
	cmd.Flags().Duration("idle", 30*time.Second, "Give up after this long without frames; 0 waits forever")
	return cmd
}

func formatValues(xs []float64) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.FormatFloat(x, 'f', 4, 64)
	}
	return strings.Join(parts, " ")
}
