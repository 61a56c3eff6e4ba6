package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Backend struct {
		BaseURL        string        `yaml:"base_url"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
	} `yaml:"backend"`

	Transport struct {
		SignalingURL string        `yaml:"signaling_url"`
		JoinTimeout  time.Duration `yaml:"join_timeout"`
		ICEServers   []struct {
			URLs       []string `yaml:"urls"`
			Username   string   `yaml:"username,omitempty"`
			Credential string   `yaml:"credential,omitempty"`
		} `yaml:"ice_servers"`
	} `yaml:"transport"`

	Layout struct {
		MinTileWidth int `yaml:"min_tile_width"`
		TileGap      int `yaml:"tile_gap"`
		HeaderHeight int `yaml:"header_height"`
		FooterHeight int `yaml:"footer_height"`
		FixedPadding int `yaml:"fixed_padding"`
	} `yaml:"layout"`

	Roster struct {
		PollsPerMinute float64 `yaml:"polls_per_minute"`
		Burst          int     `yaml:"burst"`
	} `yaml:"roster"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		ServiceName string  `yaml:"service_name"`
		JaegerURL   string  `yaml:"jaeger_url"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`
}

// DefaultConfig returns a config with working defaults for everything
// except the backend and signaling endpoints.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Backend.RequestTimeout = 30 * time.Second
	cfg.Transport.JoinTimeout = 15 * time.Second
	cfg.Layout.MinTileWidth = 300
	cfg.Layout.TileGap = 16
	cfg.Layout.HeaderHeight = 64
	cfg.Layout.FooterHeight = 80
	cfg.Layout.FixedPadding = 24
	cfg.Roster.PollsPerMinute = 12
	cfg.Roster.Burst = 3
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"
	cfg.Tracing.ServiceName = "stagecall"
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.SampleRate = 1.0
	return cfg
}

// Load reads a YAML config file and applies defaults for omitted keys.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants the rest of the module assumes.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.Backend.RequestTimeout <= 0 {
		return fmt.Errorf("backend.request_timeout must be > 0")
	}
	if c.Layout.MinTileWidth <= 0 {
		return fmt.Errorf("layout.min_tile_width must be > 0")
	}
	if c.Layout.TileGap < 0 {
		return fmt.Errorf("layout.tile_gap must be >= 0")
	}
	if c.Roster.PollsPerMinute <= 0 {
		return fmt.Errorf("roster.polls_per_minute must be > 0")
	}
	if c.Roster.Burst <= 0 {
		return fmt.Errorf("roster.burst must be > 0")
	}
	return nil
}
