package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

const defaultPath = "."

// Policy defaults. These mirror the storefront client so both sides of the
// product behave identically when a value is left unconfigured.
const (
	defaultNearbyRadiusMeters = 50000.0
	defaultNearbyLimit        = 120
	defaultClientTimeout      = 30 * time.Second

	defaultMinMoveMeters   = 40.0
	defaultRefreshInterval = 45 * time.Second

	defaultHighAccuracyTimeout = 20 * time.Second
	defaultLowAccuracyTimeout  = 35 * time.Second
	defaultWatchTimeout        = 20 * time.Second
	defaultMaxReadingAge       = 1200 * time.Millisecond
	defaultHighAccuracyMaxM    = 50.0

	defaultLiteThreshold   = 350
	defaultInstructionSize = 512
)

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port     int `json:"port" yaml:"port"`
		Timeouts struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	// ShopAPI configures the marketplace shop directory client.
	ShopAPI *ShopAPIConfig `json:"shopApi" yaml:"shopApi"`

	// Routing configures the external routing API client.
	Routing *RoutingConfig `json:"routing" yaml:"routing"`

	// Location configures position acquisition.
	Location *LocationConfig `json:"location" yaml:"location"`

	// Tracking configures route refresh policy.
	Tracking *TrackingConfig `json:"tracking" yaml:"tracking"`

	// Markers configures marker rendering policy.
	Markers *MarkersConfig `json:"markers" yaml:"markers"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// ShopAPIConfig defines the shop directory client configuration
type ShopAPIConfig struct {
	BaseURL string        `json:"baseUrl" yaml:"baseUrl"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// NearbyRadiusMeters is the search radius sent to the nearby endpoint.
	NearbyRadiusMeters float64 `json:"nearbyRadiusMeters" yaml:"nearbyRadiusMeters"`

	// NearbyLimit caps how many shops the nearby endpoint may return.
	NearbyLimit int `json:"nearbyLimit" yaml:"nearbyLimit"`
}

// RoutingConfig defines the external routing API configuration
type RoutingConfig struct {
	BaseURL string        `json:"baseUrl" yaml:"baseUrl"`
	Profile string        `json:"profile" yaml:"profile"`
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// LocationConfig defines position acquisition tunables
type LocationConfig struct {
	// HighAccuracyTimeout bounds the first, high-accuracy locate attempt.
	HighAccuracyTimeout time.Duration `json:"highAccuracyTimeout" yaml:"highAccuracyTimeout"`

	// LowAccuracyTimeout bounds the single fallback attempt after a timeout.
	LowAccuracyTimeout time.Duration `json:"lowAccuracyTimeout" yaml:"lowAccuracyTimeout"`

	// WatchTimeout is the longest tolerated silence between watch readings.
	WatchTimeout time.Duration `json:"watchTimeout" yaml:"watchTimeout"`

	// MaxReadingAge lets a cached fix this fresh satisfy a request.
	MaxReadingAge time.Duration `json:"maxReadingAge" yaml:"maxReadingAge"`

	// HighAccuracyMaxMeters is the accuracy bound a reading must meet to
	// count as high accuracy.
	HighAccuracyMaxMeters float64 `json:"highAccuracyMaxMeters" yaml:"highAccuracyMaxMeters"`
}

// TrackingConfig defines route coordination policy
type TrackingConfig struct {
	// MinMoveMeters is the straight-line movement needed before a route is
	// recomputed for an unchanged target.
	MinMoveMeters float64 `json:"minMoveMeters" yaml:"minMoveMeters"`

	// RefreshInterval is the period of silent refreshes while tracking.
	RefreshInterval time.Duration `json:"refreshInterval" yaml:"refreshInterval"`
}

// MarkersConfig defines marker rendering policy
type MarkersConfig struct {
	// LiteThreshold is the marker count above which rendering switches to
	// lightweight markers.
	LiteThreshold int `json:"liteThreshold" yaml:"liteThreshold"`

	// InstructionQueueSize bounds the per-session render instruction queue.
	InstructionQueueSize int `json:"instructionQueueSize" yaml:"instructionQueueSize"`
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	// Build list of paths to search for config file
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			abs := filepath.Join(pwd, path)
			searchPaths = append(searchPaths, abs)
		}
	}

	// Try to find and load the config file
	var configFile string
	var found bool
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			found = true

			break
		}
	}

	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	// Load YAML config file
	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Load environment variables
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			// Convert ENV_VAR_NAME to path and align each segment with existing YAML keys.
			// Example: SHOPAPI_BASEURL -> shopApi.baseUrl (not shopapi.baseurl)
			key := canonicalizeEnvKey(k, existingConfigMap)

			return key, v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	// Unmarshal into the config struct (case-insensitive to match env vars)
	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				// Case-insensitive matching for env var overrides
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults fills every policy knob left at its zero value.
func (c *Config) applyDefaults() {
	if c.ShopAPI == nil {
		c.ShopAPI = &ShopAPIConfig{}
	}
	if c.ShopAPI.Timeout <= 0 {
		c.ShopAPI.Timeout = defaultClientTimeout
	}
	if c.ShopAPI.NearbyRadiusMeters <= 0 {
		c.ShopAPI.NearbyRadiusMeters = defaultNearbyRadiusMeters
	}
	if c.ShopAPI.NearbyLimit <= 0 {
		c.ShopAPI.NearbyLimit = defaultNearbyLimit
	}

	if c.Routing == nil {
		c.Routing = &RoutingConfig{}
	}
	if c.Routing.Profile == "" {
		c.Routing.Profile = "driving"
	}
	if c.Routing.Timeout <= 0 {
		c.Routing.Timeout = defaultClientTimeout
	}

	if c.Location == nil {
		c.Location = &LocationConfig{}
	}
	if c.Location.HighAccuracyTimeout <= 0 {
		c.Location.HighAccuracyTimeout = defaultHighAccuracyTimeout
	}
	if c.Location.LowAccuracyTimeout <= 0 {
		c.Location.LowAccuracyTimeout = defaultLowAccuracyTimeout
	}
	if c.Location.WatchTimeout <= 0 {
		c.Location.WatchTimeout = defaultWatchTimeout
	}
	if c.Location.MaxReadingAge <= 0 {
		c.Location.MaxReadingAge = defaultMaxReadingAge
	}
	if c.Location.HighAccuracyMaxMeters <= 0 {
		c.Location.HighAccuracyMaxMeters = defaultHighAccuracyMaxM
	}

	if c.Tracking == nil {
		c.Tracking = &TrackingConfig{}
	}
	if c.Tracking.MinMoveMeters <= 0 {
		c.Tracking.MinMoveMeters = defaultMinMoveMeters
	}
	if c.Tracking.RefreshInterval <= 0 {
		c.Tracking.RefreshInterval = defaultRefreshInterval
	}

	if c.Markers == nil {
		c.Markers = &MarkersConfig{}
	}
	if c.Markers.LiteThreshold <= 0 {
		c.Markers.LiteThreshold = defaultLiteThreshold
	}
	if c.Markers.InstructionQueueSize <= 0 {
		c.Markers.InstructionQueueSize = defaultInstructionSize
	}
}

// Validate rejects configurations the coordinator cannot run with.
func (c *Config) Validate() error {
	var problems []string

	if c.ShopAPI.BaseURL == "" {
		problems = append(problems, "shopApi.baseUrl is required")
	}
	if c.Routing.BaseURL == "" {
		problems = append(problems, "routing.baseUrl is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		problems = append(problems, "http.port must be between 1 and 65535")
	}

	if len(problems) > 0 {
		return errors.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}

	return nil
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}
