package stats

import "testing"

func TestBuildMeanActivityPlot(t *testing.T) {
	points := BuildMeanActivityPlot([][]float64{{1, 2, 3}, {3, 4}}, 0, 15)
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	if points[0].Value != 2 || points[1].Value != 3 || points[2].Value != 3 {
		t.Fatalf("unexpected averages: %+v", points)
	}
	if points[2].Index != 30 {
		t.Fatalf("unexpected index: %+v", points[2])
	}
}

func TestDownsample(t *testing.T) {
	series := [][]float64{{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}}
	out, kept := Downsample(series, 4)
	if len(kept) != 4 || kept[1] != 3 {
		t.Fatalf("unexpected kept ticks: %v", kept)
	}
	if out[0][3] != 9 {
		t.Fatalf("unexpected values: %v", out[0])
	}

	out, kept = Downsample(series, 0)
	if len(kept) != 10 || len(out[0]) != 10 {
		t.Fatalf("expected no downsampling, got %d", len(kept))
	}
}
