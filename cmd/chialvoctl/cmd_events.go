package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"chialvo/internal/config"
	"chialvo/pkg/chialvo"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Print spike ticks per node for a run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rule, _ := cmd.Flags().GetString("rule")
			nodes, _ := cmd.Flags().GetIntSlice("node")
			showTimes, _ := cmd.Flags().GetBool("times")
			jsonOut, _ := cmd.Flags().GetBool("json")
			req := chialvo.EventsRequest{RunSelector: selectorFromFlags(cmd), Rule: rule, Nodes: nodes}

			return withClient(cmd, func(client *chialvo.Client, _ *config.Config) error {
				result, err := client.Events(cmd.Context(), req)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd.OutOrStdout(), eventsOutput(result))
				}
				w := cmd.OutOrStdout()
				for _, node := range result {
					values := make([]string, 0, len(node.Spikes))
					if showTimes {
						for _, t := range node.Times {
							values = append(values, strconv.FormatFloat(t, 'f', -1, 64))
						}
					} else {
						for _, tick := range node.Spikes {
							values = append(values, strconv.Itoa(tick))
						}
					}
					fmt.Fprintf(w, "node %d (label %.1f, %d spikes): %s\n", node.Node, node.Label, len(node.Spikes), strings.Join(values, " "))
				}
				return nil
			})
		},
	}
	selectorFlags(cmd)
	cmd.Flags().String("rule", "", "Re-extract with this rule: local-max|above")
	cmd.Flags().IntSlice("node", nil, "Only these nodes (repeatable)")
	cmd.Flags().Bool("times", false, "Print simulated times instead of tick indices")
	return cmd
}

type nodeEventsJSON struct {
	Node   int       `json:"node"`
	Label  float64   `json:"label"`
	Spikes []int     `json:"spikes"`
	Times  []float64 `json:"times"`
}

func eventsOutput(result []chialvo.NodeEvents) []nodeEventsJSON {
	out := make([]nodeEventsJSON, 0, len(result))
	for _, node := range result {
		spikes := node.Spikes
		if spikes == nil {
			spikes = []int{}
		}
		out = append(out, nodeEventsJSON{Node: node.Node, Label: node.Label, Spikes: spikes, Times: node.Times})
	}
	return out
}
