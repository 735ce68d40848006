// Package render draws datasets as charts (PNG) and as tables (text).
package render

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	apidatasets "github.com/opst/chemviz/pkg/api/types/datasets"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

const (
	ChartWidth  = 480
	ChartHeight = 360
)

// palette of the type distribution. Colors are reused when types are more than this.
var palette = []drawing.Color{
	drawing.ColorFromHex("FF6384"), drawing.ColorFromHex("36A2EB"),
	drawing.ColorFromHex("FFCE56"), drawing.ColorFromHex("4BC0C0"),
	drawing.ColorFromHex("9966FF"), drawing.ColorFromHex("FF9F40"),
	drawing.ColorFromHex("FF6384"), drawing.ColorFromHex("C9CBCF"),
	drawing.ColorFromHex("FF5A5F"), drawing.ColorFromHex("5A9FD4"),
}

// colors of bars: flowrate, pressure, temperature.
var parameterColors = []drawing.Color{
	drawing.ColorFromHex("FF6384"),
	drawing.ColorFromHex("36A2EB"),
	drawing.ColorFromHex("FFCE56"),
}

func background() chart.Style {
	return chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}}
}

// TypeDistributionChart draws the count of equipment per type as a donut.
//
// The second value is false when there is nothing to draw:
// the distribution is empty or all counts are zero.
func TypeDistributionChart(td apidatasets.TypeDistribution) ([]byte, bool, error) {
	if td.Total() <= 0 {
		return nil, false, nil
	}

	values := make([]chart.Value, 0, len(td))
	for i, tc := range td {
		if tc.Count <= 0 {
			continue
		}
		col := palette[i%len(palette)]
		values = append(values, chart.Value{
			Label: tc.Type,
			Value: float64(tc.Count),
			Style: chart.Style{FillColor: col, StrokeColor: drawing.ColorWhite, StrokeWidth: 2},
		})
	}

	ch := chart.DonutChart{
		Title:      "Equipment Distribution",
		Width:      ChartWidth,
		Height:     ChartHeight,
		Background: background(),
		Values:     values,
	}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, false, err
	}
	return buf.Bytes(), true, nil
}

// AverageParametersChart draws averages of flowrate, pressure and temperature as bars.
func AverageParametersChart(d apidatasets.Dataset) ([]byte, error) {
	values := []float64{d.AverageFlowrate, d.AveragePressure, d.AverageTemperature}
	labels := []string{"Flowrate", "Pressure", "Temperature"}

	// y axis begins at zero
	lo, hi := 0.0, 0.0
	bars := make([]chart.Value, 0, len(values))
	for i, v := range values {
		lo, hi = min(lo, v), max(hi, v)
		bars = append(bars, chart.Value{
			Label: labels[i],
			Value: v,
			Style: chart.Style{FillColor: parameterColors[i], StrokeColor: parameterColors[i], StrokeWidth: 1},
		})
	}
	if hi <= lo {
		hi = lo + 1
	}

	ch := chart.BarChart{
		Title:      "Average Parameters",
		Width:      ChartWidth,
		Height:     ChartHeight,
		BarWidth:   60,
		Background: background(),
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: lo, Max: hi * 1.1},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ChartRegion draws the charts of the analysis side by side, as one PNG.
//
// The donut of the type distribution comes first if the distribution is not empty.
// The bars of averages are always drawn.
func ChartRegion(d apidatasets.Dataset) ([]byte, error) {
	pngs := [][]byte{}

	donut, ok, err := TypeDistributionChart(d.TypeDistribution)
	if err != nil {
		return nil, err
	}
	if ok {
		pngs = append(pngs, donut)
	}

	bar, err := AverageParametersChart(d)
	if err != nil {
		return nil, err
	}
	pngs = append(pngs, bar)

	return sideBySide(pngs)
}

func sideBySide(pngs [][]byte) ([]byte, error) {
	imgs := make([]image.Image, 0, len(pngs))
	width, height := 0, 0
	for _, p := range pngs {
		img, err := png.Decode(bytes.NewReader(p))
		if err != nil {
			return nil, err
		}
		b := img.Bounds()
		width += b.Dx()
		height = max(height, b.Dy())
		imgs = append(imgs, img)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	x := 0
	for _, img := range imgs {
		b := img.Bounds()
		draw.Draw(canvas, image.Rect(x, 0, x+b.Dx(), b.Dy()), img, b.Min, draw.Over)
		x += b.Dx()
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
