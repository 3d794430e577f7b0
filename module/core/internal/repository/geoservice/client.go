package geoservice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/nandanugg/opstate/module/core/domain"
)

const containsPath = "/v1/geofences/contains"

// Client queries the remote geofencing service. Callers bound each call with
// a context deadline; the client itself never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

type containsResponse struct {
	Inside   bool `json:"inside"`
	Geofence *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"geofence"`
}

func (c *Client) Contains(ctx context.Context, lat, lon float64, kind domain.GeofenceKind) (domain.GeofenceMatch, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("kind", string(kind))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+containsPath+"?"+q.Encode(), nil)
	if err != nil {
		return domain.GeofenceMatch{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.GeofenceMatch{}, fmt.Errorf("geofence service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return domain.GeofenceMatch{}, fmt.Errorf("geofence service: HTTP %d", resp.StatusCode)
	}

	var body containsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.GeofenceMatch{}, fmt.Errorf("decode response: %w", err)
	}

	m := domain.GeofenceMatch{Inside: body.Inside}
	if body.Inside && body.Geofence != nil {
		m.Geofence = &domain.GeofenceRef{ID: body.Geofence.ID, Name: body.Geofence.Name}
	}
	return m, nil
}
