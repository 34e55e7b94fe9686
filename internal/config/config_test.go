package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":8642" {
		t.Errorf("listen_addr = %q", cfg.ListenAddr)
	}
	if cfg.PageSize != 50 || cfg.PollSeconds != 30 || cfg.FreshnessMinutes != 60 {
		t.Errorf("defaults = %+v", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	want := &Config{
		DataDir:          "/tmp/chatdeck-test",
		ListenAddr:       ":9999",
		WebhookURL:       "https://flows.example/hook",
		FromNumber:       "5550000",
		LoginDomain:      "example.com",
		PageSize:         25,
		PollSeconds:      10,
		FreshnessMinutes: 5,
	}
	if err := Save(path, want); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if *got != *want {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, want)
	}
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := Save(path, &Config{ListenAddr: ":1111", PageSize: 10, PollSeconds: 30, FreshnessMinutes: 60, DataDir: "/tmp/x"}); err != nil {
		t.Fatal(err)
	}

	t.Setenv("CHATDECK_LISTEN_ADDR", ":2222")
	t.Setenv("CHATDECK_PAGE_SIZE", "77")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ListenAddr != ":2222" {
		t.Errorf("listen_addr = %q, env must win over the file", cfg.ListenAddr)
	}
	if cfg.PageSize != 77 {
		t.Errorf("page_size = %d, want 77", cfg.PageSize)
	}
}

func TestEnvIgnoresUnparsableInt(t *testing.T) {
	t.Setenv("CHATDECK_PAGE_SIZE", "not-a-number")
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PageSize != 50 {
		t.Errorf("page_size = %d, want default kept", cfg.PageSize)
	}
}

func TestDerivedPaths(t *testing.T) {
	cfg := &Config{DataDir: "/var/lib/chatdeck"}
	if !strings.HasSuffix(cfg.DBPath(), "chatdeck.db") {
		t.Errorf("db path = %q", cfg.DBPath())
	}
	if !strings.HasSuffix(cfg.LogPath(), "chatdeckd.log") {
		t.Errorf("log path = %q", cfg.LogPath())
	}
}
