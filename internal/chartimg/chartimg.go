// Package chartimg renders harvested chart data to PNG images that replace
// the template placeholders. Chart families the renderer has no native shape
// for fall back to a line plot rather than failing the whole document.
package chartimg

import (
	"bytes"
	"errors"
	"fmt"

	chart "github.com/wcharczuk/go-chart/v2"

	"conserva/internal/chartxml"
)

var ErrNoData = errors.New("chartimg: chart has no values")

// Spec is one chart to draw. Width and Height are in pixels; zero picks the
// defaults below.
type Spec struct {
	Type   string
	Title  string
	Labels []string
	Values []float64
	Width  int
	Height int
}

const (
	defaultWidth  = 1024
	defaultHeight = 640
	squareSide    = 720
)

// RenderPNG draws the chart and returns the encoded PNG. All-zero series
// still render, as a flat or placeholder figure; only a chart with no values
// at all is refused.
func RenderPNG(s Spec) ([]byte, error) {
	if len(s.Values) == 0 {
		return nil, ErrNoData
	}

	var buf bytes.Buffer
	var err error
	switch s.Type {
	case chartxml.TypePie, chartxml.TypePie3D:
		err = renderPie(&buf, s, false)
	case chartxml.TypeDoughnut:
		err = renderPie(&buf, s, true)
	case chartxml.TypeBar:
		err = renderBars(&buf, s)
	case chartxml.TypeArea:
		err = renderLines(&buf, s, true)
	default:
		// line, radar, scatter and unknown all plot as a line series
		err = renderLines(&buf, s, false)
	}
	if err != nil {
		return nil, fmt.Errorf("render %s chart %q: %w", s.Type, s.Title, err)
	}
	return buf.Bytes(), nil
}

func renderPie(buf *bytes.Buffer, s Spec, donut bool) error {
	values := make([]chart.Value, 0, len(s.Values))
	for i, v := range s.Values {
		if v <= 0 {
			continue
		}
		values = append(values, chart.Value{Value: v, Label: label(s.Labels, i)})
	}
	if len(values) == 0 {
		// every slice zero or negative; draw a single placeholder wedge
		values = []chart.Value{{Value: 1, Label: "Sem dados"}}
	}

	side := s.Width
	if side == 0 {
		side = squareSide
	}
	if donut {
		donutChart := chart.DonutChart{Title: s.Title, Width: side, Height: side, Values: values}
		return donutChart.Render(chart.PNG, buf)
	}
	pie := chart.PieChart{Title: s.Title, Width: side, Height: side, Values: values}
	return pie.Render(chart.PNG, buf)
}

func renderBars(buf *bytes.Buffer, s Spec) error {
	bars := make([]chart.Value, len(s.Values))
	for i, v := range s.Values {
		bars[i] = chart.Value{Value: v, Label: label(s.Labels, i)}
	}

	barChart := chart.BarChart{
		Title:  s.Title,
		Width:  dim(s.Width, defaultWidth),
		Height: dim(s.Height, defaultHeight),
		Bars:   bars,
	}
	if allZero(s.Values) {
		// a pinned range keeps the zero-height bars renderable
		barChart.YAxis = chart.YAxis{Range: &chart.ContinuousRange{Min: 0, Max: 1}}
	}
	return barChart.Render(chart.PNG, buf)
}

func renderLines(buf *bytes.Buffer, s Spec, filled bool) error {
	values := s.Values
	if len(values) == 1 {
		// continuous series need two points; draw a flat segment
		values = []float64{values[0], values[0]}
	}

	xs := make([]float64, len(values))
	ticks := make([]chart.Tick, len(values))
	for i := range values {
		xs[i] = float64(i)
		ticks[i] = chart.Tick{Value: float64(i), Label: label(s.Labels, i)}
	}

	style := chart.Style{StrokeColor: chart.ColorBlue, StrokeWidth: 2}
	if filled {
		style.FillColor = chart.ColorBlue.WithAlpha(64)
	}

	lineChart := chart.Chart{
		Title:  s.Title,
		Width:  dim(s.Width, defaultWidth),
		Height: dim(s.Height, defaultHeight),
		XAxis:  chart.XAxis{Ticks: ticks},
		Series: []chart.Series{
			chart.ContinuousSeries{Style: style, XValues: xs, YValues: values},
		},
	}
	if allZero(values) {
		lineChart.YAxis = chart.YAxis{Range: &chart.ContinuousRange{Min: 0, Max: 1}}
	}
	return lineChart.Render(chart.PNG, buf)
}

func label(labels []string, i int) string {
	if i < len(labels) && labels[i] != "" {
		return labels[i]
	}
	return fmt.Sprintf("Item %d", i+1)
}

func dim(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func allZero(values []float64) bool {
	for _, v := range values {
		if v != 0 {
			return false
		}
	}
	return true
}
