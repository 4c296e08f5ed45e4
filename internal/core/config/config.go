package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the top-level application config.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Universe UniverseConfig `koanf:"universe"`
	Tunes    TunesConfig    `koanf:"tunes"`
	Plans    PlansConfig    `koanf:"plans"`
	Notify   NotifyConfig   `koanf:"notify"`
}

type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // debug | release
}

// UniverseConfig configures the ticketing SaaS integration: the
// authenticated GraphQL adapter, the public JSON adapter and the public
// page crawl adapter all share it.
type UniverseConfig struct {
	APIBase       string `koanf:"api_base"`
	TokenURL      string `koanf:"token_url"` // derived from api_base when empty
	GraphQLPath   string `koanf:"graphql_path"`
	ClientID      string `koanf:"client_id"`
	ClientSecret  string `koanf:"client_secret"`
	AccessToken   string `koanf:"access_token"` // static token override; skips the OAuth grant
	OrganizerID   string `koanf:"organizer_id"` // enables the GraphQL adapter when set
	OrganizerSlug string `koanf:"organizer_slug"`
	WebhookSecret string `koanf:"webhook_secret"`
	CrawlWorkers  int    `koanf:"crawl_workers"`
}

type TunesConfig struct {
	SheetCSVURL string `koanf:"sheet_csv_url"`
	CacheTTL    string `koanf:"cache_ttl"`
}

type PlansConfig struct {
	Site         string `koanf:"site"`
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
}

type NotifyConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Schedule string `koanf:"schedule"`
	Timezone string `koanf:"timezone"`
}

func (c TunesConfig) EffectiveCacheTTL() (time.Duration, error) {
	return time.ParseDuration(c.CacheTTL)
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.MaxBodySizeMB <= 0 {
		return fmt.Errorf("server.max_body_size_mb must be > 0")
	}
	if c.Server.Mode != "debug" && c.Server.Mode != "release" {
		return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
	}

	if strings.TrimSpace(c.Universe.APIBase) == "" {
		return fmt.Errorf("universe.api_base is required")
	}
	if strings.TrimSpace(c.Universe.GraphQLPath) == "" {
		return fmt.Errorf("universe.graphql_path is required")
	}
	if c.Universe.CrawlWorkers <= 0 {
		return fmt.Errorf("universe.crawl_workers must be > 0")
	}

	if strings.TrimSpace(c.Tunes.SheetCSVURL) == "" {
		return fmt.Errorf("tunes.sheet_csv_url is required")
	}
	ttl, err := c.Tunes.EffectiveCacheTTL()
	if err != nil {
		return fmt.Errorf("invalid tunes.cache_ttl %q: %w", c.Tunes.CacheTTL, err)
	}
	if ttl <= 0 {
		return fmt.Errorf("tunes.cache_ttl must be > 0")
	}

	if c.Notify.Enabled {
		if strings.TrimSpace(c.Notify.Schedule) == "" {
			return fmt.Errorf("notify.schedule is required when notify.enabled")
		}
		if _, err := time.LoadLocation(c.Notify.Timezone); err != nil {
			return fmt.Errorf("invalid notify.timezone %q: %w", c.Notify.Timezone, err)
		}
	}

	return nil
}

// Load parses config from file + env, applies derived defaults and
// validates the result.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":             4000,
		"server.host":             "0.0.0.0",
		"server.max_body_size_mb": 1,
		"server.mode":             "release",
		"universe.api_base":       "https://www.universe.com",
		"universe.graphql_path":   "/graphql",
		"universe.organizer_slug": "the-church-studio",
		"universe.crawl_workers":  4,
		"tunes.sheet_csv_url":     "https://docs.google.com/spreadsheets/d/e/2PACX-1vRoMIis2XZig04Jfxh764tdQ4XiZcuM_I3FP8ViiCo2OsWL763BKPfQzg6MzrUnS1jwis2_GaTIbSb8/pub?gid=0&single=true&output=csv",
		"tunes.cache_ttl":         "15m",
		"notify.enabled":          true,
		"notify.schedule":         "15 11 * * *",
		"notify.timezone":         "America/Chicago",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("VENUE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "VENUE_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Universe.APIBase = strings.TrimRight(cfg.Universe.APIBase, "/")
	if cfg.Universe.TokenURL == "" {
		cfg.Universe.TokenURL = cfg.Universe.APIBase + "/oauth/token"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
