// Package plot draws the two-panel run figure: node oscillations on top and
// the spike raster below.
package plot

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"chialvo/internal/events"
	"chialvo/internal/stats"
)

const (
	DefaultWidth  = 10 * vg.Inch
	DefaultHeight = 7 * vg.Inch

	maxLegendNodes = 10
)

var ErrEmptyFigure = errors.New("figure has no samples")

// Figure is the data behind one rendered run. Times holds the simulated time
// of every tick; Series and Events are indexed by node then tick.
type Figure struct {
	Title  string
	Times  []float64
	Series [][]float64
	Events []events.Series

	// MaxLinePoints thins the oscillation lines; zero draws every tick.
	// The raster always uses every tick.
	MaxLinePoints int
}

// NewFigure derives tick times from the sampling interval.
func NewFigure(title string, series [][]float64, evs []events.Series, sampleInterval float64) Figure {
	ticks := 0
	if len(series) > 0 {
		ticks = len(series[0])
	}
	times := make([]float64, ticks)
	for i := range times {
		times[i] = float64(i) * sampleInterval
	}
	return Figure{Title: title, Times: times, Series: series, Events: evs}
}

// Format returns the image format implied by path's extension.
func Format(path string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "png", "svg", "pdf", "jpg", "jpeg", "tif", "tiff", "eps":
		return ext, nil
	default:
		return "", fmt.Errorf("unsupported figure format: %q", ext)
	}
}

// RenderFile writes the figure to path in the format its extension names.
func RenderFile(path string, fig Figure, width, height vg.Length) error {
	format, err := Format(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Render(file, format, fig, width, height); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// Render draws both panels on one canvas and writes it to w.
func Render(w io.Writer, format string, fig Figure, width, height vg.Length) error {
	if len(fig.Series) == 0 || len(fig.Times) == 0 {
		return ErrEmptyFigure
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	top, err := oscillationPlot(fig)
	if err != nil {
		return err
	}
	bottom, err := rasterPlot(fig)
	if err != nil {
		return err
	}

	canvas, err := draw.NewFormattedCanvas(width, height, format)
	if err != nil {
		return err
	}
	tiles := draw.Tiles{
		Rows:      2,
		Cols:      1,
		PadX:      vg.Millimeter,
		PadY:      3 * vg.Millimeter,
		PadTop:    2 * vg.Millimeter,
		PadBottom: 2 * vg.Millimeter,
		PadLeft:   2 * vg.Millimeter,
		PadRight:  2 * vg.Millimeter,
	}
	plots := [][]*plot.Plot{{top}, {bottom}}
	canvases := plot.Align(plots, tiles, draw.New(canvas))
	for j := range plots {
		for i := range plots[j] {
			plots[j][i].Draw(canvases[j][i])
		}
	}

	_, err = canvas.WriteTo(w)
	return err
}

func oscillationPlot(fig Figure) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Neuron oscillation"
	if fig.Title != "" {
		p.Title.Text += " (" + fig.Title + ")"
	}
	p.X.Label.Text = "time"
	p.Y.Label.Text = "excitation"
	p.Add(plotter.NewGrid())

	series, kept := stats.Downsample(fig.Series, fig.MaxLinePoints)
	for k, s := range series {
		pts := make(plotter.XYs, 0, len(s))
		for j, v := range s {
			i := kept[j]
			if i >= len(fig.Times) {
				break
			}
			pts = append(pts, plotter.XY{X: fig.Times[i], Y: v})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("node %d line: %w", k, err)
		}
		line.Color = plotutil.Color(k)
		line.Width = vg.Points(1)
		p.Add(line)
		if len(series) <= maxLegendNodes {
			p.Legend.Add("node "+strconv.Itoa(k), line)
		}
	}

	if len(series) > 1 {
		step := 1
		if len(kept) > 1 {
			step = kept[1] - kept[0]
		}
		mean := stats.BuildMeanActivityPlot(series, 0, step)
		pts := make(plotter.XYs, 0, len(mean))
		for _, pt := range mean {
			if pt.Index >= len(fig.Times) {
				break
			}
			pts = append(pts, plotter.XY{X: fig.Times[pt.Index], Y: pt.Value})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("mean line: %w", err)
		}
		line.Width = vg.Points(1.5)
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(line)
		p.Legend.Add("mean", line)
	}
	p.Legend.Top = true
	return p, nil
}

func rasterPlot(fig Figure) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Spikes"
	p.X.Label.Text = "time"
	p.Y.Label.Text = "neuron"
	p.X.Min = fig.Times[0]
	p.X.Max = fig.Times[len(fig.Times)-1]
	p.Y.Min = events.Label(0) - 0.1
	p.Y.Max = events.Label(len(fig.Series)-1) + 0.1

	for k, evs := range fig.Events {
		spikes := evs.Spikes()
		if len(spikes) == 0 {
			continue
		}
		pts := make(plotter.XYs, 0, len(spikes))
		for _, i := range spikes {
			if i >= len(fig.Times) {
				break
			}
			pts = append(pts, plotter.XY{X: fig.Times[i], Y: evs[i].Label})
		}
		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, fmt.Errorf("node %d raster: %w", k, err)
		}
		scatter.GlyphStyle.Color = plotutil.Color(k)
		scatter.GlyphStyle.Radius = vg.Points(1.5)
		scatter.GlyphStyle.Shape = draw.CircleGlyph{}
		p.Add(scatter)
	}
	return p, nil
}
