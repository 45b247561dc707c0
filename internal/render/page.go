// Package render turns the current view state into the dashboard page model.
package render

import (
	"strconv"
	"time"

	"github.com/rewired-gh/retailfusion/internal/series"
	"github.com/rewired-gh/retailfusion/internal/severity"
	"github.com/rewired-gh/retailfusion/internal/viewstate"
)

const (
	placeholder      = "--"
	noAnomaliesLabel = "No anomalies detected yet."
)

// Options carries the presentation settings that do not come from the snapshot.
type Options struct {
	DefaultTitle    string
	RefreshInterval time.Duration
}

// Card is one top-line metric.
type Card struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// FeedItem is one row of the transaction feed.
type FeedItem struct {
	ID        string `json:"id"`
	Product   string `json:"product"`
	Quantity  int    `json:"quantity"`
	Timestamp string `json:"timestamp"`
	// Badge is set iff the transaction is flagged as an anomaly.
	Badge string `json:"badge,omitempty"`
}

// RecommendationRow is a classified reorder recommendation.
type RecommendationRow struct {
	Product      string         `json:"product"`
	CurrentStock int            `json:"current_stock"`
	ReorderQty   int            `json:"reorder_qty"`
	AnomalyHits  int            `json:"anomaly_hits"`
	Status       string         `json:"status"`
	Class        severity.Class `json:"class"`
	Style        severity.Style `json:"-"`
}

// AnomalyRow is one entry of the anomaly alert list.
type AnomalyRow struct {
	ID       string `json:"id"`
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
	ZScore   string `json:"z_score"`
}

// Page is everything the dashboard displays for one view state.
type Page struct {
	Title           string              `json:"title"`
	WeatherImpact   string              `json:"weather_impact"`
	Banner          string              `json:"banner,omitempty"`
	HasSnapshot     bool                `json:"has_snapshot"`
	Cards           []Card              `json:"cards"`
	Chart           []series.ChartPoint `json:"chart"`
	Transactions    []FeedItem          `json:"transactions"`
	Recommendations []RecommendationRow `json:"recommendations"`
	Anomalies       []AnomalyRow        `json:"anomalies"`
	AnomaliesEmpty  string              `json:"anomalies_empty,omitempty"`
	UnknownStatuses []string            `json:"unknown_statuses,omitempty"`
	LastSuccess     *time.Time          `json:"last_success,omitempty"`
	RefreshSeconds  float64             `json:"refresh_seconds"`
	Geometry        ChartGeometry       `json:"-"`
}

// Build is a pure function from view state to page model. Unrecognized
// recommendation statuses are rendered with the unknown class and listed in
// UnknownStatuses so the caller can report them.
func Build(v viewstate.ViewState, opts Options) Page {
	p := Page{
		Title:           opts.DefaultTitle,
		WeatherImpact:   "0%",
		Chart:           []series.ChartPoint{},
		Transactions:    []FeedItem{},
		Recommendations: []RecommendationRow{},
		Anomalies:       []AnomalyRow{},
		RefreshSeconds:  opts.RefreshInterval.Seconds(),
	}
	if msg, ok := v.LastError(); ok {
		p.Banner = msg
	}
	if !v.LastSuccess.IsZero() {
		t := v.LastSuccess
		p.LastSuccess = &t
	}

	snap, ok := v.Snapshot()
	if !ok {
		p.Cards = []Card{
			{Label: "Total Stock", Value: placeholder},
			{Label: "Active Anomalies", Value: placeholder},
			{Label: "7-Day Forecast", Value: placeholder},
			{Label: "Temperature", Value: placeholder + " C"},
		}
		p.AnomaliesEmpty = noAnomaliesLabel
		p.Geometry = Geometry(p.Chart)
		return p
	}

	p.HasSnapshot = true
	if snap.ProjectTitle != "" {
		p.Title = snap.ProjectTitle
	}
	p.WeatherImpact = strconv.Itoa(snap.Metrics.WeatherImpactPct) + "%"
	p.Cards = []Card{
		{Label: "Total Stock", Value: strconv.Itoa(snap.Metrics.TotalStock)},
		{Label: "Active Anomalies", Value: strconv.Itoa(snap.Metrics.ActiveAnomalies)},
		{Label: "7-Day Forecast", Value: strconv.Itoa(snap.Metrics.Forecast7Day)},
		{Label: "Temperature", Value: formatNumber(snap.Weather.TemperatureC) + " C"},
	}

	p.Chart = series.MergeSnapshot(snap)
	p.Geometry = Geometry(p.Chart)

	for _, tx := range snap.Transactions {
		item := FeedItem{
			ID:        tx.ID,
			Product:   tx.Product,
			Quantity:  tx.Quantity,
			Timestamp: tx.Timestamp,
		}
		if tx.IsAnomaly {
			item.Badge = "anomaly z:" + formatNumber(tx.ZScore)
		}
		p.Transactions = append(p.Transactions, item)
	}

	for _, r := range snap.Recommendations {
		class, err := severity.Classify(r.Status)
		if err != nil {
			p.UnknownStatuses = append(p.UnknownStatuses, r.Status)
		}
		p.Recommendations = append(p.Recommendations, RecommendationRow{
			Product:      r.Product,
			CurrentStock: r.CurrentStock,
			ReorderQty:   r.ReorderQty,
			AnomalyHits:  r.AnomalyHits,
			Status:       r.Status,
			Class:        class,
			Style:        class.Style(),
		})
	}

	for _, a := range snap.Anomalies {
		p.Anomalies = append(p.Anomalies, AnomalyRow{
			ID:       a.ID,
			Product:  a.Product,
			Quantity: a.Quantity,
			ZScore:   formatNumber(a.ZScore),
		})
	}
	if len(p.Anomalies) == 0 {
		p.AnomaliesEmpty = noAnomaliesLabel
	}

	return p
}

// formatNumber prints the shortest representation, so 22 renders as "22" and 4.2 as "4.2".
func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
