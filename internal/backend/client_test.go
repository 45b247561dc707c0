package backend

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rewired-gh/retailfusion/internal/models"
)

const snapshotBody = `{
	"project_title": "Retail Fusion",
	"metrics": {"total_stock": 120, "active_anomalies": 1, "forecast_7_day": 84, "weather_impact_pct": 0},
	"weather": {"location": "New York", "temperature_c": 22.0},
	"forecast": {"historical": [{"day": "Mon", "demand": 10}], "forecast": [{"day": "Tue", "demand": 12}]},
	"transactions": [{"id": "TX-10001", "product": "Gaming Mice", "quantity": 72, "is_anomaly": true, "z_score": 4.2, "timestamp": "2024-03-01 10:00:00 UTC"}],
	"anomalies": [{"id": "TX-10001", "product": "Gaming Mice", "quantity": 72, "z_score": 4.2}],
	"recommendations": [{"product": "Gaming Mice", "current_stock": 40, "reorder_qty": 90, "anomaly_hits": 1, "status": "critical"}]
}`

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, time.Second, ClientConfig{})
}

func TestFetchSnapshot(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/dashboard" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Accept header = %q", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(snapshotBody))
	})

	snap, err := c.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}
	if snap.Metrics.TotalStock != 120 {
		t.Errorf("total stock = %d, want 120", snap.Metrics.TotalStock)
	}
	if len(snap.Forecast.Historical) != 1 || len(snap.Forecast.Forecast) != 1 {
		t.Errorf("forecast segments = %+v", snap.Forecast)
	}
	if snap.Recommendations[0].Status != "critical" {
		t.Errorf("status = %q", snap.Recommendations[0].Status)
	}
}

func TestFetchSnapshot_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"metrics": {`))
			},
		},
		{
			name: "missing forecast",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"metrics": {}, "transactions": [], "anomalies": [], "recommendations": []}`))
			},
		},
		{
			name: "wrong field type",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"metrics": {"total_stock": "many"}, "forecast": {"historical": [], "forecast": []}, "transactions": [], "anomalies": [], "recommendations": []}`))
			},
		},
		{
			name: "null historical segment",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"metrics": {}, "forecast": {"historical": null, "forecast": []}, "transactions": [], "anomalies": [], "recommendations": []}`))
			},
		},
		{
			name: "metrics is not an object",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"metrics": [], "forecast": {"historical": [], "forecast": []}, "transactions": [], "anomalies": [], "recommendations": []}`))
			},
		},
		{
			name: "structurally invalid snapshot",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"metrics": {}, "forecast": {"historical": [], "forecast": []}, "transactions": [{"id": "TX-1", "product": "Gaming Mice", "quantity": 0}], "anomalies": [], "recommendations": []}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, tt.handler)
			snap, err := c.FetchSnapshot(context.Background())
			if err == nil {
				t.Fatalf("expected failure, got snapshot %+v", snap)
			}
			if !errors.Is(err, ErrFetchFailure) {
				t.Errorf("error %v does not wrap ErrFetchFailure", err)
			}
		})
	}
}

func TestFetchSnapshot_RepeatedTransactionIDs(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"metrics": {}, "forecast": {"historical": [], "forecast": []}, "transactions": [
			{"id": "TX-12345", "product": "Gaming Mice", "quantity": 3},
			{"id": "TX-12345", "product": "Smart Watches", "quantity": 5}
		], "anomalies": [], "recommendations": []}`))
	})

	snap, err := c.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}
	if len(snap.Transactions) != 2 {
		t.Errorf("transactions = %d, want 2", len(snap.Transactions))
	}
}

func TestFetchSnapshot_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, time.Second, ClientConfig{})
	if _, err := c.FetchSnapshot(context.Background()); !errors.Is(err, ErrFetchFailure) {
		t.Errorf("expected ErrFetchFailure, got %v", err)
	}
}

func TestFetchSnapshot_NoRetriesByDefault(t *testing.T) {
	var calls int32
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	if _, err := c.FetchSnapshot(context.Background()); err == nil {
		t.Fatal("expected failure")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("backend called %d times, want 1", got)
	}
}

func TestFetchSnapshot_ConfiguredRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(snapshotBody))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second, ClientConfig{
		MaxRetries:   2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
	})
	if _, err := c.FetchSnapshot(context.Background()); err != nil {
		t.Fatalf("FetchSnapshot: %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("backend called %d times, want 2", got)
	}
}

func TestFetchSnapshot_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 20*time.Millisecond, ClientConfig{})
	if _, err := c.FetchSnapshot(context.Background()); !errors.Is(err, ErrFetchFailure) {
		t.Errorf("expected ErrFetchFailure on timeout, got %v", err)
	}
}

func TestHealth(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"status": "ok", "project": "Retail Fusion"}`))
	})

	project, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if project != "Retail Fusion" {
		t.Errorf("project = %q", project)
	}
}

type countingSource struct {
	calls int32
}

func (s *countingSource) FetchSnapshot(ctx context.Context) (*models.Snapshot, error) {
	atomic.AddInt32(&s.calls, 1)
	return &models.Snapshot{}, nil
}

func TestRateLimitedSource(t *testing.T) {
	src := &countingSource{}
	limited := NewRateLimitedSource(src, 1, 1)

	if _, err := limited.FetchSnapshot(context.Background()); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	// The burst is spent; a second call must wait longer than this deadline
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := limited.FetchSnapshot(ctx)
	if !errors.Is(err, ErrFetchFailure) {
		t.Errorf("expected ErrFetchFailure when limiter wait is canceled, got %v", err)
	}
	if got := atomic.LoadInt32(&src.calls); got != 1 {
		t.Errorf("underlying source called %d times, want 1", got)
	}
}
