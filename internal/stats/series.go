package stats

import (
	"fmt"
	"math"

	"chialvo/internal/events"
)

type NodeSummary struct {
	Node    int     `json:"node"`
	Mean    float64 `json:"mean"`
	Std     float64 `json:"std"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Spikes  int     `json:"spikes"`
	Rate    float64 `json:"rate"`
	MeanISI float64 `json:"mean_isi,omitempty"`
}

// SeriesSummary describes a run's recorded activity. Rates are spikes per unit
// of simulated time; inter-spike intervals are in simulated time.
type SeriesSummary struct {
	Samples     int           `json:"samples"`
	Duration    float64       `json:"duration"`
	TotalSpikes int           `json:"total_spikes"`
	MeanRate    float64       `json:"mean_rate"`
	Nodes       []NodeSummary `json:"nodes"`
}

// Avg returns the arithmetic mean of values.
func Avg(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, fmt.Errorf("values must not be empty")
	}
	sum := 0.0
	for _, value := range values {
		sum += value
	}
	return sum / float64(len(values)), nil
}

// Std returns population standard deviation.
func Std(values []float64) (float64, error) {
	mean, err := Avg(values)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for _, value := range values {
		diff := mean - value
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(values))), nil
}

// Summarize computes per-node statistics. sampleInterval is the simulated
// time between two ticks; evs must be aligned with series.
func Summarize(series [][]float64, evs []events.Series, sampleInterval float64) SeriesSummary {
	summary := SeriesSummary{Nodes: make([]NodeSummary, 0, len(series))}
	if len(series) > 0 {
		summary.Samples = len(series[0])
	}
	summary.Duration = float64(summary.Samples) * sampleInterval

	for k, s := range series {
		node := NodeSummary{Node: k}
		if len(s) > 0 {
			node.Mean, _ = Avg(s)
			node.Std, _ = Std(s)
			node.Min = minFloat(s)
			node.Max = maxFloat(s)
		}
		if k < len(evs) {
			spikes := evs[k].Spikes()
			node.Spikes = len(spikes)
			if len(spikes) > 1 {
				node.MeanISI = float64(spikes[len(spikes)-1]-spikes[0]) / float64(len(spikes)-1) * sampleInterval
			}
		}
		if summary.Duration > 0 {
			node.Rate = float64(node.Spikes) / summary.Duration
		}
		summary.TotalSpikes += node.Spikes
		summary.Nodes = append(summary.Nodes, node)
	}
	if len(series) > 0 && summary.Duration > 0 {
		summary.MeanRate = float64(summary.TotalSpikes) / float64(len(series)) / summary.Duration
	}
	return summary
}

func maxFloat(values []float64) float64 {
	max := values[0]
	for _, value := range values[1:] {
		if value > max {
			max = value
		}
	}
	return max
}

func minFloat(values []float64) float64 {
	min := values[0]
	for _, value := range values[1:] {
		if value < min {
			min = value
		}
	}
	return min
}
