// Package shopapi talks to the marketplace backend's shop directory.
package shopapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"shopradar/config"
	"shopradar/internal/domain/entity"
	"shopradar/internal/domain/service"
	"shopradar/internal/metrics"
)

const defaultTimeout = 30 * time.Second

// client implements the ShopSource interface over the directory's HTTP API
type client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new shop directory client
func NewClient(cfg *config.ShopAPIConfig, logger *slog.Logger) service.ShopSource {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// shopDTO is the directory's wire representation of one shop.
type shopDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Locality string `json:"locality"`
	Featured bool   `json:"featured"`
	Location *struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"location,omitempty"`
}

// directoryResponse is the directory's response envelope.
type directoryResponse struct {
	Success bool      `json:"success"`
	Shops   []shopDTO `json:"shops"`
}

// FetchAllWithLocation retrieves every shop that has published coordinates.
func (c *client) FetchAllWithLocation(ctx context.Context) ([]entity.Shop, error) {
	return c.fetch(ctx, "with_location", c.baseURL+"/api/shops/with-location")
}

// FetchNearby retrieves shops within radiusMeters of center, capped at
// limit, ordered by the backend.
func (c *client) FetchNearby(ctx context.Context, center entity.Coordinate, radiusMeters float64, limit int) ([]entity.Shop, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(center.Lat, 'f', -1, 64))
	params.Set("lng", strconv.FormatFloat(center.Lng, 'f', -1, 64))
	params.Set("maxDistance", strconv.FormatFloat(radiusMeters, 'f', -1, 64))
	params.Set("limit", strconv.Itoa(limit))

	return c.fetch(ctx, "nearby", fmt.Sprintf("%s/api/shops/nearby?%s", c.baseURL, params.Encode()))
}

func (c *client) fetch(ctx context.Context, endpoint, rawURL string) ([]entity.Shop, error) {
	shops, err := c.doFetch(ctx, rawURL)
	if err != nil {
		metrics.ShopFetches.WithLabelValues(endpoint, "error").Inc()
		return nil, err
	}
	metrics.ShopFetches.WithLabelValues(endpoint, "ok").Inc()
	c.logger.Debug("shop directory fetch",
		slog.String("endpoint", endpoint),
		slog.Int("count", len(shops)))

	return shops, nil
}

func (c *client) doFetch(ctx context.Context, rawURL string) ([]entity.Shop, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("shop directory returned non-success status: %d", resp.StatusCode)
	}

	var payload directoryResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.WithStack(err)
	}
	if !payload.Success {
		return nil, errors.New("shop directory reported failure")
	}

	shops := make([]entity.Shop, 0, len(payload.Shops))
	for _, dto := range payload.Shops {
		shops = append(shops, dto.toEntity())
	}

	return shops, nil
}

func (dto shopDTO) toEntity() entity.Shop {
	shop := entity.Shop{
		ID:       dto.ID,
		Name:     dto.Name,
		Locality: dto.Locality,
		Featured: dto.Featured,
	}
	if dto.Location != nil {
		shop.Location = &entity.Coordinate{Lat: dto.Location.Lat, Lng: dto.Location.Lng}
	}

	return shop
}
