package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaultsFillsPolicyKnobs(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	assert.Equal(t, 50000.0, cfg.ShopAPI.NearbyRadiusMeters)
	assert.Equal(t, 120, cfg.ShopAPI.NearbyLimit)
	assert.Equal(t, 40.0, cfg.Tracking.MinMoveMeters)
	assert.Equal(t, 45*time.Second, cfg.Tracking.RefreshInterval)
	assert.Equal(t, 20*time.Second, cfg.Location.HighAccuracyTimeout)
	assert.Equal(t, 35*time.Second, cfg.Location.LowAccuracyTimeout)
	assert.Equal(t, 1200*time.Millisecond, cfg.Location.MaxReadingAge)
	assert.Equal(t, 350, cfg.Markers.LiteThreshold)
	assert.Equal(t, "driving", cfg.Routing.Profile)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		Tracking: &TrackingConfig{MinMoveMeters: 25, RefreshInterval: time.Minute},
		Markers:  &MarkersConfig{LiteThreshold: 500},
	}
	cfg.applyDefaults()

	assert.Equal(t, 25.0, cfg.Tracking.MinMoveMeters)
	assert.Equal(t, time.Minute, cfg.Tracking.RefreshInterval)
	assert.Equal(t, 500, cfg.Markers.LiteThreshold)
}

func TestValidateRejectsMissingEndpoints(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.HTTP.Port = 8080

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shopApi.baseUrl")
	assert.Contains(t, err.Error(), "routing.baseUrl")

	cfg.ShopAPI.BaseURL = "http://directory.local"
	cfg.Routing.BaseURL = "http://osrm.local"
	assert.NoError(t, cfg.Validate())
}
