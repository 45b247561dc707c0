// Package backend fetches dashboard snapshots from the inventory API.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rewired-gh/retailfusion/internal/models"
	"github.com/tidwall/gjson"
)

// ErrFetchFailure is the single failure kind of a snapshot fetch.
// Transport errors, non-success statuses and malformed bodies all wrap it.
var ErrFetchFailure = errors.New("snapshot fetch failed")

const (
	dashboardPath = "/api/dashboard"
	healthPath    = "/api/health"
	maxBodyBytes  = 4 << 20
)

// requiredPaths must be present in every snapshot body with the given JSON
// kind; a body that decodes cleanly but lacks them, or holds null, is not a snapshot.
var requiredPaths = []struct {
	path   string
	object bool
}{
	{"metrics", true},
	{"forecast.historical", false},
	{"forecast.forecast", false},
	{"transactions", false},
	{"anomalies", false},
	{"recommendations", false},
}

// Client provides access to the dashboard snapshot endpoint
type Client struct {
	baseURL    string
	httpClient *retryablehttp.Client
	timeout    time.Duration
}

// ClientConfig holds transport tuning for the snapshot client
type ClientConfig struct {
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
}

// NewClient creates a new snapshot client for the backend at baseURL
func NewClient(baseURL string, timeout time.Duration, cfg ClientConfig) *Client {
	rc := retryablehttp.NewClient()
	rc.Logger = nil
	rc.RetryMax = cfg.MaxRetries
	if cfg.RetryWaitMin > 0 {
		rc.RetryWaitMin = cfg.RetryWaitMin
	}
	if cfg.RetryWaitMax > 0 {
		rc.RetryWaitMax = cfg.RetryWaitMax
	}
	// Hand the last response back so status handling stays in one place
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: rc,
		timeout:    timeout,
	}
}

// Name identifies the source in logs.
func (c *Client) Name() string {
	return c.baseURL + dashboardPath
}

// FetchSnapshot retrieves and parses the current dashboard snapshot.
// Every failure is reported as ErrFetchFailure with the cause attached.
func (c *Client) FetchSnapshot(ctx context.Context) (*models.Snapshot, error) {
	body, err := c.get(ctx, dashboardPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailure, err)
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: response is not valid JSON", ErrFetchFailure)
	}
	for _, rp := range requiredPaths {
		res := gjson.GetBytes(body, rp.path)
		if !res.Exists() {
			return nil, fmt.Errorf("%w: response is missing %q", ErrFetchFailure, rp.path)
		}
		if rp.object && !res.IsObject() {
			return nil, fmt.Errorf("%w: %q is not an object", ErrFetchFailure, rp.path)
		}
		if !rp.object && !res.IsArray() {
			return nil, fmt.Errorf("%w: %q is not an array", ErrFetchFailure, rp.path)
		}
	}

	var snapshot models.Snapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, fmt.Errorf("%w: failed to decode snapshot: %v", ErrFetchFailure, err)
	}
	if err := snapshot.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid snapshot: %v", ErrFetchFailure, err)
	}

	return &snapshot, nil
}

// Health calls the backend health endpoint and returns the reported project name.
func (c *Client) Health(ctx context.Context) (string, error) {
	body, err := c.get(ctx, healthPath)
	if err != nil {
		return "", fmt.Errorf("health check failed: %w", err)
	}
	if status := gjson.GetBytes(body, "status").String(); status != "ok" {
		return "", fmt.Errorf("health check reported status %q", status)
	}
	return gjson.GetBytes(body, "project").String(), nil
}

// get performs a GET against path and returns the body of a 2xx response
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(reqCtx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The passthrough handler may return the last response alongside the error
		if resp != nil {
			resp.Body.Close()
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}
