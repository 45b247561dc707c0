package render

import (
	"fmt"
	"strings"

	"github.com/rewired-gh/retailfusion/internal/series"
)

const (
	chartWidth   = 720
	chartHeight  = 240
	chartPadding = 24
)

// ChartGeometry is the SVG layout of a merged series.
// The forecast polyline starts at the last historical point so the line is continuous.
type ChartGeometry struct {
	Width      int
	Height     int
	Historical string
	Forecast   string
	Labels     []AxisLabel
	Max        string
	Min        string
}

// AxisLabel is a day label placed on the x axis.
type AxisLabel struct {
	X   float64
	Day string
}

// Geometry lays out points on a fixed canvas, one slot per point on the x axis.
// Only the Type tag decides which polyline a point belongs to.
func Geometry(points []series.ChartPoint) ChartGeometry {
	g := ChartGeometry{Width: chartWidth, Height: chartHeight}
	lo, hi, ok := series.Bounds(points)
	if !ok {
		return g
	}
	if hi == lo {
		hi = lo + 1
	}
	g.Min = formatNumber(lo)
	g.Max = formatNumber(hi)

	plotW := float64(chartWidth - 2*chartPadding)
	plotH := float64(chartHeight - 2*chartPadding)
	step := 0.0
	if len(points) > 1 {
		step = plotW / float64(len(points)-1)
	}

	var hist, fc []string
	var lastHist string
	labelEvery := 1 + len(points)/8
	for i, p := range points {
		x := float64(chartPadding) + step*float64(i)
		y := float64(chartPadding) + plotH*(1-(p.Demand-lo)/(hi-lo))
		xy := fmt.Sprintf("%.1f,%.1f", x, y)

		switch p.Type {
		case series.Historical:
			hist = append(hist, xy)
			lastHist = xy
		case series.Forecast:
			if len(fc) == 0 && lastHist != "" {
				fc = append(fc, lastHist)
			}
			fc = append(fc, xy)
		}
		if i%labelEvery == 0 {
			g.Labels = append(g.Labels, AxisLabel{X: x, Day: p.Day})
		}
	}
	g.Historical = strings.Join(hist, " ")
	g.Forecast = strings.Join(fc, " ")
	return g
}
