package events

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Rule selects how a sampled value is classified as a spike.
type Rule string

const (
	// RuleLocalMax marks strict local maxima at or above the threshold.
	// The first and last samples have only one neighbour and are never
	// marked.
	RuleLocalMax Rule = "local-max"
	// RuleAbove marks every sample strictly above the threshold.
	RuleAbove Rule = "above"
)

func ParseRule(raw string) (Rule, error) {
	switch Rule(strings.ToLower(strings.TrimSpace(raw))) {
	case "", RuleLocalMax:
		return RuleLocalMax, nil
	case RuleAbove:
		return RuleAbove, nil
	default:
		return "", fmt.Errorf("unsupported event rule: %s", raw)
	}
}

// Event is one entry of an event series. Non-spike entries carry no label.
type Event struct {
	Spike bool
	Label float64
}

func (e Event) MarshalJSON() ([]byte, error) {
	if !e.Spike {
		return []byte("null"), nil
	}
	return json.Marshal(e.Label)
}

func (e *Event) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*e = Event{}
		return nil
	}
	var label float64
	if err := json.Unmarshal(data, &label); err != nil {
		return err
	}
	*e = Event{Spike: true, Label: label}
	return nil
}

// Series is aligned index-for-index with the sampled series it came from.
type Series []Event

// Spikes lists the sample indices marked as spikes.
func (s Series) Spikes() []int {
	var out []int
	for i, e := range s {
		if e.Spike {
			out = append(out, i)
		}
	}
	return out
}

// Label is the display label of node k.
func Label(node int) float64 {
	return 1 + 0.1*float64(node)
}

// Extract classifies every sample of one node's series.
func Extract(series []float64, threshold float64, rule Rule, label float64) Series {
	out := make(Series, len(series))
	switch rule {
	case RuleAbove:
		for i, v := range series {
			if v > threshold {
				out[i] = Event{Spike: true, Label: label}
			}
		}
	default:
		for i := 1; i+1 < len(series); i++ {
			v := series[i]
			if v >= threshold && v > series[i-1] && v > series[i+1] {
				out[i] = Event{Spike: true, Label: label}
			}
		}
	}
	return out
}

// ExtractAll runs Extract over every node, labelling node k with Label(k).
func ExtractAll(series [][]float64, threshold float64, rule Rule) []Series {
	out := make([]Series, len(series))
	for k, s := range series {
		out[k] = Extract(s, threshold, rule, Label(k))
	}
	return out
}

// Count returns the number of spikes per node.
func Count(all []Series) []int {
	out := make([]int, len(all))
	for k, s := range all {
		for _, e := range s {
			if e.Spike {
				out[k]++
			}
		}
	}
	return out
}
