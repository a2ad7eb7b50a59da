package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

type Server struct {
	Port              string `json:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
	DevMode           bool   `json:"dev_mode"`
}

type Database struct {
	Path string `json:"path"`
}

type NSE struct {
	BaseURL         string `json:"base_url"`
	SearchURL       string `json:"search_url"`
	BootstrapSymbol string `json:"bootstrap_symbol"`
	// SessionValidityMin is how long a harvested cookie pair is trusted.
	SessionValidityMin int `json:"session_validity_min"`
	// RefreshSchedule is a cron spec for the background session refresh.
	RefreshSchedule  string `json:"refresh_schedule"`
	QuoteCacheTTLSec int    `json:"quote_cache_ttl_sec"`
	// BatchStaggerMs delays the i-th upstream fetch of a batch by i*stagger
	// to stay under the site's bot detection. Heuristic, not a contract.
	BatchStaggerMs     int `json:"batch_stagger_ms"`
	UpstreamTimeoutSec int `json:"upstream_timeout_sec"`
}

type Config struct {
	Server   Server   `json:"server"`
	Database Database `json:"database"`
	NSE      NSE      `json:"nse"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "5000", RequestTimeoutSec: 15},
		Database: Database{
			Path: "data/etfwatch.db",
		},
		NSE: NSE{
			BaseURL:            "https://www.nseindia.com",
			SearchURL:          "https://groww.in/v1/api/search/v3/query/global/st_query",
			BootstrapSymbol:    "NIFTYBEES",
			SessionValidityMin: 30,
			RefreshSchedule:    "@every 25m",
			QuoteCacheTTLSec:   300,
			BatchStaggerMs:     300,
			UpstreamTimeoutSec: 10,
		},
	}
}

// Load reads JSON config from path. If path is empty or file does not exist,
// it returns defaults. Environment variables override select fields.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Server.RequestTimeoutSec = x
		}
	}
	if v := os.Getenv("DEV_MODE"); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "y":
			cfg.Server.DevMode = true
		case "0", "false", "no", "n":
			cfg.Server.DevMode = false
		}
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("NSE_BASE_URL"); v != "" {
		cfg.NSE.BaseURL = v
	}
	if v := os.Getenv("NSE_SEARCH_URL"); v != "" {
		cfg.NSE.SearchURL = v
	}
	if v := os.Getenv("NSE_BOOTSTRAP_SYMBOL"); v != "" {
		cfg.NSE.BootstrapSymbol = v
	}
	if v := os.Getenv("NSE_SESSION_VALIDITY_MIN"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.NSE.SessionValidityMin = x
		}
	}
	if v := os.Getenv("NSE_REFRESH_SCHEDULE"); v != "" {
		cfg.NSE.RefreshSchedule = v
	}
	if v := os.Getenv("NSE_QUOTE_CACHE_TTL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.NSE.QuoteCacheTTLSec = x
		}
	}
	if v := os.Getenv("NSE_BATCH_STAGGER_MS"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.NSE.BatchStaggerMs = x
		}
	}
	if v := os.Getenv("NSE_UPSTREAM_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.NSE.UpstreamTimeoutSec = x
		}
	}
}
