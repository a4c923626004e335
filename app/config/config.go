package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"

	"github.com/sethvargo/go-envconfig"
)

type MapDefn struct {
	CenterLat   float64 `json:"center_lat"`
	CenterLng   float64 `json:"center_lng"`
	Zoom        int     `json:"zoom"`
	TileURL     string  `json:"tile_url"`
	Attribution string  `json:"attribution"`
	MaxZoom     int     `json:"max_zoom"`
}

type ExportDefn struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type DashboardConfig struct {
	InstanceName string `json:"instance_name"`
	DataDir      string `json:"-"`

	// Base URL of the analytics engine, eg: http://localhost:5000
	AnalyticsURL string `json:"analytics_url" env:"SPA_ANALYTICS_URL, overwrite"`
	// Per-request timeout for analytics calls. 0 means no timeout.
	AnalyticsTimeoutSeconds int `json:"analytics_timeout_seconds" env:"SPA_ANALYTICS_TIMEOUT_SECONDS, overwrite"`
	ColumnsCacheSeconds     int `json:"columns_cache_seconds" env:"SPA_COLUMNS_CACHE_SECONDS, overwrite"`

	// Categorical columns with more distinct values than this get no filter checkboxes.
	MaxFilterCardinality int `json:"max_filter_cardinality"`

	SessionIdleMinutes int    `json:"session_idle_minutes" env:"SPA_SESSION_IDLE_MINUTES, overwrite"`
	TimeoutSeconds     int    `json:"timeout_seconds"`
	LogLatency         bool   `json:"log_latency"`
	LogLevel           string `json:"log_level" env:"SPA_LOG_LEVEL, overwrite"`

	Hostnames []string   `json:"hostnames"`
	Map       MapDefn    `json:"map"`
	Export    ExportDefn `json:"export"`
}

// ServerRuntimeConfig holds options that come from the command line rather
// than the config file.
type ServerRuntimeConfig struct {
	Addr               string
	Port               int
	CertDir            string
	AcmeEnabled        bool
	BehindLoadBalancer bool
	RateLimit          int
	GzipLevel          int
}

func DefaultConfig() DashboardConfig {
	return DashboardConfig{
		InstanceName:         "SPA - FMPSC",
		AnalyticsURL:         "http://localhost:5000",
		ColumnsCacheSeconds:  120,
		MaxFilterCardinality: 40,
		SessionIdleMinutes:   60,
		LogLevel:             "info",
		Hostnames:            []string{"localhost"},
		Map: MapDefn{
			CenterLat:   -27.6453,
			CenterLng:   -48.6697,
			Zoom:        10,
			TileURL:     "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
			Attribution: "Leaflet | © OpenStreetMap contributors",
			MaxZoom:     19,
		},
		Export: ExportDefn{Width: 1200, Height: 700},
	}
}

// Load reads config.json from dataDir (when present) on top of the defaults,
// then applies SPA_* environment overrides.
func Load(ctx context.Context, dataDir string) (*DashboardConfig, error) {
	conf := DefaultConfig()
	conf.DataDir = dataDir

	if dataDir != "" {
		confPath := path.Join(dataDir, "config.json")
		confFile, err := os.Open(confPath)
		switch {
		case err == nil:
			defer confFile.Close()
			if err := json.NewDecoder(confFile).Decode(&conf); err != nil {
				return nil, fmt.Errorf("error while reading %s: %w", confPath, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("error while opening %s: %w", confPath, err)
		}
	}

	if err := envconfig.Process(ctx, &conf); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}

func (c *DashboardConfig) Validate() error {
	if c.AnalyticsURL == "" {
		return fmt.Errorf("analytics_url must be set")
	}
	if c.MaxFilterCardinality <= 0 {
		return fmt.Errorf("max_filter_cardinality must be positive, got %d", c.MaxFilterCardinality)
	}
	if c.SessionIdleMinutes <= 0 {
		return fmt.Errorf("session_idle_minutes must be positive, got %d", c.SessionIdleMinutes)
	}
	if c.Export.Width <= 0 || c.Export.Height <= 0 {
		return fmt.Errorf("export size must be positive, got %dx%d", c.Export.Width, c.Export.Height)
	}
	return nil
}
