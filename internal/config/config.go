package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/hyemembers/vipauction/internal/database"
	"github.com/hyemembers/vipauction/internal/database/mongodb"
	"github.com/pelletier/go-toml/v2"
)

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

type Config struct {
	Log     LogConfig         `toml:"log"`
	HTTP    HTTPConfig        `toml:"http"`
	Store   StoreConfig       `toml:"store"`
	DB      database.DBConfig `toml:"db"`
	Mongo   mongodb.Config    `toml:"mongo"`
	Auction AuctionConfig     `toml:"auction"`
}

type LogConfig struct {
	Level  slog.Level `toml:"level"`
	Prefix string     `toml:"prefix"`
}

type HTTPConfig struct {
	Addr string `toml:"addr"`
	// AdminToken protects the /api/admin surface. Empty disables those
	// routes entirely rather than leaving them open.
	AdminToken string `toml:"admin_token"`
}

// StoreConfig selects the persistence backend. "postgres" and "mongodb" are
// the real drivers; "memory" exists for local development only.
type StoreConfig struct {
	Driver string `toml:"driver"`
}

type AuctionConfig struct {
	// SettingsTTLSeconds bounds how stale the cached operator settings
	// may be.
	SettingsTTLSeconds int `toml:"settings_ttl_seconds"`
	// WinnerWebhookURL, when set, switches notification dispatch from the
	// log dispatcher to the webhook dispatcher.
	WinnerWebhookURL string `toml:"winner_webhook_url"`
	AdminWebhookURL  string `toml:"admin_webhook_url"`
}

func (c *Config) applyDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "postgres"
	}
	if c.Auction.SettingsTTLSeconds <= 0 {
		c.Auction.SettingsTTLSeconds = 60
	}
}
