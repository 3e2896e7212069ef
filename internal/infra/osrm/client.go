// Package osrm talks to an OSRM-compatible routing API.
package osrm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"

	"shopradar/config"
	"shopradar/internal/domain/entity"
	domainerrors "shopradar/internal/domain/errors"
	"shopradar/internal/domain/service"
)

const (
	defaultProfile = "driving"
	defaultTimeout = 20 * time.Second
)

// client implements the RouteProvider interface over the OSRM HTTP API
type client struct {
	baseURL    string
	profile    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new OSRM routing client
func NewClient(cfg *config.RoutingConfig, logger *slog.Logger) service.RouteProvider {
	profile := cfg.Profile
	if profile == "" {
		profile = defaultProfile
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		profile: profile,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// osrmResponse is the subset of the OSRM route response the coordinator
// consumes. Geometry coordinates arrive as [lng, lat] pairs.
type osrmResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
		Distance float64 `json:"distance"`
		Duration float64 `json:"duration"`
	} `json:"routes"`
}

// Route computes a driving route between two points. The engine reporting
// no route maps to ErrRouteNotFound; everything else that goes wrong is an
// ErrRouteTransport.
func (c *client) Route(ctx context.Context, from, to entity.Coordinate) (*entity.Route, error) {
	rawURL := fmt.Sprintf("%s/route/v1/%s/%s;%s?overview=full&geometries=geojson",
		c.baseURL, c.profile, formatPoint(from), formatPoint(to))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrRouteTransport, err.Error())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(domainerrors.ErrRouteTransport, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Wrapf(domainerrors.ErrRouteTransport, "routing engine returned status %d", resp.StatusCode)
	}

	var payload osrmResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.Wrap(domainerrors.ErrRouteTransport, err.Error())
	}

	if payload.Code != "Ok" || len(payload.Routes) == 0 {
		c.logger.Debug("routing engine found no route", slog.String("code", payload.Code))
		return nil, errors.Wrapf(domainerrors.ErrRouteNotFound, "engine code %q", payload.Code)
	}

	best := payload.Routes[0]
	line := make(orb.LineString, 0, len(best.Geometry.Coordinates))
	for _, pair := range best.Geometry.Coordinates {
		if len(pair) < 2 {
			return nil, errors.Wrap(domainerrors.ErrRouteTransport, "malformed geometry coordinate")
		}
		line = append(line, orb.Point{pair[0], pair[1]})
	}

	route := &entity.Route{
		From:           from,
		To:             to,
		Geometry:       line,
		DistanceMeters: best.Distance,
		Duration:       time.Duration(best.Duration * float64(time.Second)),
	}
	c.logger.Debug("route computed",
		slog.Float64("distance_m", route.DistanceMeters),
		slog.Duration("duration", route.Duration))

	return route, nil
}

// formatPoint renders a coordinate the way OSRM expects it: lng,lat.
func formatPoint(c entity.Coordinate) string {
	return strconv.FormatFloat(c.Lng, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lat, 'f', -1, 64)
}
