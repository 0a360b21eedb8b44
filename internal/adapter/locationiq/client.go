// Package locationiq implements the external geocoding oracle against the
// LocationIQ search API, with a TTL-bounded LRU cache decorator.
package locationiq

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/disasterwatch/geocoder/internal/domain"
	"github.com/disasterwatch/geocoder/internal/observability"
)

// resultLimit caps how many candidates the oracle returns per query; the
// disambiguation step only ever needs a handful.
const resultLimit = 5

// Client implements domain.Oracle using the LocationIQ search API, with
// results restricted to one country.
type Client struct {
	apiKey      string
	baseURL     string
	countryCode string
	httpClient  *http.Client
	metrics     *observability.Metrics
	logger      *slog.Logger
}

// NewClient creates a LocationIQ client. countryCode is the ISO code passed
// as the countrycodes filter, e.g. "pk".
func NewClient(apiKey, baseURL, countryCode string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		apiKey:      apiKey,
		baseURL:     baseURL,
		countryCode: countryCode,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		metrics: metrics,
		logger:  logger,
	}
}

// Geocode resolves a place name to candidate coordinates, best match first.
func (c *Client) Geocode(ctx context.Context, name string) ([]domain.Coordinate, error) {
	params := url.Values{
		"key":          {c.apiKey},
		"q":            {name},
		"format":       {"json"},
		"countrycodes": {c.countryCode},
		"limit":        {strconv.Itoa(resultLimit)},
	}

	start := time.Now()
	coords, err := c.doRequest(ctx, c.baseURL+"/search?"+params.Encode())
	c.metrics.OracleDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		c.metrics.OracleRequests.WithLabelValues("error").Inc()
	case len(coords) == 0:
		c.metrics.OracleRequests.WithLabelValues("empty").Inc()
	default:
		c.metrics.OracleRequests.WithLabelValues("success").Inc()
	}
	return coords, err
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]domain.Coordinate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oracle request: %w", err)
	}
	defer resp.Body.Close()

	// LocationIQ answers 404 for "no results found", which is a valid empty
	// outcome, not a failure.
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("locationiq API error: status %d: %s", resp.StatusCode, body)
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	coords := make([]domain.Coordinate, 0, len(results))
	for _, r := range results {
		lat, errLat := strconv.ParseFloat(r.Lat, 64)
		lon, errLon := strconv.ParseFloat(r.Lon, 64)
		if errLat != nil || errLon != nil {
			c.logger.Warn("skipping oracle result with bad coordinates", "lat", r.Lat, "lon", r.Lon)
			continue
		}
		coords = append(coords, domain.Coordinate{Lon: lon, Lat: lat, Quality: r.Importance})
	}
	return coords, nil
}

// LocationIQ API response types. Coordinates arrive as strings.

type searchResult struct {
	Lat        string  `json:"lat"`
	Lon        string  `json:"lon"`
	Importance float64 `json:"importance"`
}
