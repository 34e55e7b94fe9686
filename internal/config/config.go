// Package config loads the console configuration: a TOML file with
// environment variable overrides, read once at startup.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config represents ~/.chatdeck/config.toml.
type Config struct {
	DataDir     string `toml:"data_dir"`
	ListenAddr  string `toml:"listen_addr"`
	WebhookURL  string `toml:"webhook_url"`
	FromNumber  string `toml:"from_number"`
	LoginDomain string `toml:"login_domain"`

	PageSize         int `toml:"page_size"`
	PollSeconds      int `toml:"poll_seconds"`
	FreshnessMinutes int `toml:"freshness_minutes"`
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".chatdeck", "config.toml")
}

func defaults() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DataDir:          filepath.Join(home, ".chatdeck"),
		ListenAddr:       ":8642",
		PageSize:         50,
		PollSeconds:      30,
		FreshnessMinutes: 60,
	}
}

// Load reads config from the given path (DefaultPath when empty), applies
// environment overrides and fills defaults. A missing file is not an error;
// the environment alone can configure the daemon.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := defaults()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// DBPath returns the SQLite database location inside the data dir.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "chatdeck.db")
}

// LogPath returns the daemon log file location inside the data dir.
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "chatdeckd.log")
}

func applyEnv(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString("CHATDECK_DATA_DIR", &cfg.DataDir)
	setString("CHATDECK_LISTEN_ADDR", &cfg.ListenAddr)
	setString("CHATDECK_WEBHOOK_URL", &cfg.WebhookURL)
	setString("CHATDECK_FROM_NUMBER", &cfg.FromNumber)
	setString("CHATDECK_LOGIN_DOMAIN", &cfg.LoginDomain)
	setInt("CHATDECK_PAGE_SIZE", &cfg.PageSize)
	setInt("CHATDECK_POLL_SECONDS", &cfg.PollSeconds)
	setInt("CHATDECK_FRESHNESS_MINUTES", &cfg.FreshnessMinutes)
}
