// Package series stitches the historical and forecast demand segments into
// one chart-ready sequence.
package series

import "github.com/rewired-gh/retailfusion/internal/models"

// Origin tags where a chart point came from.
type Origin string

const (
	Historical Origin = "Historical"
	Forecast   Origin = "Forecast"
)

// ChartPoint is one labeled point on the shared day axis.
// The Type tag is the only boundary marker between the two segments.
type ChartPoint struct {
	Day    string  `json:"day"`
	Demand float64 `json:"demand"`
	Type   Origin  `json:"type"`
}

// Merge returns historical followed by forecast, each point tagged with its
// origin. Input order is preserved; nothing is sorted, deduplicated or
// interpolated across the boundary.
func Merge(historical, forecast []models.DemandPoint) []ChartPoint {
	out := make([]ChartPoint, 0, len(historical)+len(forecast))
	for _, p := range historical {
		out = append(out, ChartPoint{Day: p.Day, Demand: p.Demand, Type: Historical})
	}
	for _, p := range forecast {
		out = append(out, ChartPoint{Day: p.Day, Demand: p.Demand, Type: Forecast})
	}
	return out
}

// MergeSnapshot merges the forecast segments of s. A nil snapshot yields an empty series.
func MergeSnapshot(s *models.Snapshot) []ChartPoint {
	if s == nil {
		return []ChartPoint{}
	}
	return Merge(s.Forecast.Historical, s.Forecast.Forecast)
}

// Bounds returns the minimum and maximum demand in points.
// ok is false for an empty series.
func Bounds(points []ChartPoint) (lo, hi float64, ok bool) {
	if len(points) == 0 {
		return 0, 0, false
	}
	lo, hi = points[0].Demand, points[0].Demand
	for _, p := range points[1:] {
		if p.Demand < lo {
			lo = p.Demand
		}
		if p.Demand > hi {
			hi = p.Demand
		}
	}
	return lo, hi, true
}
