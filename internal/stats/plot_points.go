package stats

type PlotPoint struct {
	Index int     `json:"index"`
	Value float64 `json:"value"`
}

// BuildMeanActivityPlot averages the node series tick by tick. Shorter series
// drop out of the average once exhausted.
func BuildMeanActivityPlot(series [][]float64, startIndex, step int) []PlotPoint {
	if step <= 0 {
		step = 1
	}
	if startIndex < 0 {
		startIndex = 0
	}
	longest := 0
	for _, s := range series {
		if len(s) > longest {
			longest = len(s)
		}
	}
	points := make([]PlotPoint, 0, longest)
	values := make([]float64, 0, len(series))
	for i := 0; i < longest; i++ {
		values = values[:0]
		for _, s := range series {
			if i < len(s) {
				values = append(values, s[i])
			}
		}
		avg, _ := Avg(values)
		points = append(points, PlotPoint{Index: startIndex + i*step, Value: avg})
	}
	return points
}

// Downsample keeps at most maxPoints evenly spaced samples of every series,
// always including the first sample. It returns the kept tick indices.
func Downsample(series [][]float64, maxPoints int) ([][]float64, []int) {
	ticks := 0
	if len(series) > 0 {
		ticks = len(series[0])
	}
	stride := 1
	if maxPoints > 0 && ticks > maxPoints {
		stride = (ticks + maxPoints - 1) / maxPoints
	}
	kept := make([]int, 0, (ticks+stride-1)/stride)
	for i := 0; i < ticks; i += stride {
		kept = append(kept, i)
	}
	out := make([][]float64, len(series))
	for k, s := range series {
		out[k] = make([]float64, 0, len(kept))
		for _, i := range kept {
			if i < len(s) {
				out[k] = append(out[k], s[i])
			}
		}
	}
	return out, kept
}
