package osrm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ride-convoy/internal/domain/geo"
	"ride-convoy/internal/ports"
)

var ErrBadResponse = errors.New("osrm: malformed response")

// Client queries an OSRM route service.
type Client struct {
	baseURL    string
	profile    string
	httpClient *http.Client
}

var _ ports.RouteProvider = (*Client)(nil)

// NewClient builds a client for baseURL (e.g. https://router.project-osrm.org).
func NewClient(baseURL, profile string, timeout time.Duration) *Client {
	if profile == "" {
		profile = "driving"
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		profile:    profile,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// OSRM response format
type routeResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"routes"`
}

// Route returns the candidates OSRM ranks for start -> end. "NoRoute" and
// "NoSegment" answers are an empty result, not an error.
func (c *Client) Route(ctx context.Context, start, end geo.Coordinate) ([]ports.RouteCandidate, error) {
	// OSRM takes lon,lat
	url := fmt.Sprintf("%s/route/v1/%s/%.6f,%.6f;%.6f,%.6f?overview=full&geometries=geojson",
		c.baseURL, c.profile, start.Lon, start.Lat, end.Lon, end.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("osrm: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("osrm: request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("osrm: read body: %w", err)
	}

	var parsed routeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("osrm: HTTP %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	switch parsed.Code {
	case "Ok":
	case "NoRoute", "NoSegment":
		return nil, nil
	default:
		return nil, fmt.Errorf("osrm: HTTP %d code %q: %s", resp.StatusCode, parsed.Code, parsed.Message)
	}

	candidates := make([]ports.RouteCandidate, 0, len(parsed.Routes))
	for _, r := range parsed.Routes {
		geometry := make([]geo.Coordinate, 0, len(r.Geometry.Coordinates))
		for _, pair := range r.Geometry.Coordinates {
			if len(pair) < 2 {
				return nil, fmt.Errorf("%w: coordinate with %d values", ErrBadResponse, len(pair))
			}
			geometry = append(geometry, geo.Coordinate{Lon: pair[0], Lat: pair[1]})
		}
		candidates = append(candidates, ports.RouteCandidate{
			Geometry:        geometry,
			DistanceMeters:  r.Distance,
			DurationSeconds: r.Duration,
		})
	}

	return candidates, nil
}
