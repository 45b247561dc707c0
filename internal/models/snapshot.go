// Package models defines the dashboard snapshot delivered by the inventory backend.
package models

import (
	"errors"
	"fmt"
)

// Snapshot is one complete payload of GET /api/dashboard.
// A new fetch always produces a new Snapshot; values are never patched in place.
type Snapshot struct {
	ProjectTitle    string           `json:"project_title"`
	Metrics         Metrics          `json:"metrics"`
	Weather         Weather          `json:"weather"`
	Forecast        Forecast         `json:"forecast"`
	Transactions    []Transaction    `json:"transactions"`
	Anomalies       []AnomalyAlert   `json:"anomalies"`
	Recommendations []Recommendation `json:"recommendations"`
}

// Metrics holds the top-line KPIs.
type Metrics struct {
	TotalStock       int `json:"total_stock"`
	ActiveAnomalies  int `json:"active_anomalies"`
	Forecast7Day     int `json:"forecast_7_day"`
	WeatherImpactPct int `json:"weather_impact_pct"`
}

// Weather is the backend's weather signal used to adjust the forecast.
type Weather struct {
	Location        string  `json:"location"`
	TemperatureC    float64 `json:"temperature_c"`
	WindKph         float64 `json:"wind_kph"`
	PrecipitationMM float64 `json:"precipitation_mm"`
	InfluenceFactor float64 `json:"influence_factor"`
	LastUpdated     string  `json:"last_updated"`
}

// Forecast carries the two demand segments in delivery order.
type Forecast struct {
	Historical []DemandPoint `json:"historical"`
	Forecast   []DemandPoint `json:"forecast"`
}

// DemandPoint is a single day of demand, observed or predicted.
type DemandPoint struct {
	Day    string  `json:"day"`
	Demand float64 `json:"demand"`
}

// Transaction is one entry of the rolling sales feed.
// ZScore is only meaningful when IsAnomaly is set.
type Transaction struct {
	ID        string  `json:"id"`
	ProductID int     `json:"product_id,omitempty"`
	Product   string  `json:"product"`
	Quantity  int     `json:"quantity"`
	Timestamp string  `json:"timestamp"`
	IsAnomaly bool    `json:"is_anomaly"`
	ZScore    float64 `json:"z_score"`
}

// AnomalyAlert is a transaction the backend flagged as statistically unusual.
type AnomalyAlert struct {
	ID        string  `json:"id"`
	ProductID int     `json:"product_id,omitempty"`
	Product   string  `json:"product"`
	Quantity  int     `json:"quantity"`
	ZScore    float64 `json:"z_score"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// Recommendation is a reorder suggestion keyed by product.
type Recommendation struct {
	Product      string `json:"product"`
	CurrentStock int    `json:"current_stock"`
	ReorderQty   int    `json:"reorder_qty"`
	AnomalyHits  int    `json:"anomaly_hits"`
	Status       string `json:"status"`
}

// Validate checks the structural constraints of a snapshot.
// It does not judge the status vocabulary; that belongs to the severity classifier.
func (s *Snapshot) Validate() error {
	if s.Metrics.TotalStock < 0 {
		return errors.New("total stock must not be negative")
	}
	if s.Metrics.ActiveAnomalies < 0 {
		return errors.New("active anomalies must not be negative")
	}

	// Transaction ids are random and may repeat within one feed
	for i := range s.Transactions {
		if err := s.Transactions[i].Validate(); err != nil {
			return fmt.Errorf("transaction %d: %w", i, err)
		}
	}

	for i, a := range s.Anomalies {
		if a.ID == "" {
			return fmt.Errorf("anomaly %d: id must not be empty", i)
		}
		if a.Quantity <= 0 {
			return fmt.Errorf("anomaly %d: quantity must be positive", i)
		}
	}

	products := make(map[string]struct{}, len(s.Recommendations))
	for i := range s.Recommendations {
		r := &s.Recommendations[i]
		if err := r.Validate(); err != nil {
			return fmt.Errorf("recommendation %d: %w", i, err)
		}
		if _, dup := products[r.Product]; dup {
			return fmt.Errorf("duplicate recommendation for product %q", r.Product)
		}
		products[r.Product] = struct{}{}
	}
	return nil
}

// Validate checks transaction field constraints.
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return errors.New("id must not be empty")
	}
	if t.Product == "" {
		return errors.New("product must not be empty")
	}
	if t.Quantity <= 0 {
		return errors.New("quantity must be positive")
	}
	return nil
}

// Validate checks recommendation field constraints.
func (r *Recommendation) Validate() error {
	if r.Product == "" {
		return errors.New("product must not be empty")
	}
	if r.CurrentStock < 0 {
		return errors.New("current stock must not be negative")
	}
	if r.ReorderQty < 0 {
		return errors.New("reorder quantity must not be negative")
	}
	if r.AnomalyHits < 0 {
		return errors.New("anomaly hits must not be negative")
	}
	return nil
}

// FindRecommendation returns the recommendation for product, if present.
func (s *Snapshot) FindRecommendation(product string) (Recommendation, bool) {
	for _, r := range s.Recommendations {
		if r.Product == product {
			return r, true
		}
	}
	return Recommendation{}, false
}
