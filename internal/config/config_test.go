package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultsAreValid(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := Defaults()
	cfg.HTTP.Port = 3001
	cfg.General.LogLevel = "debug"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.HTTP.Port != 3001 {
		t.Fatalf("port = %d, want 3001", loaded.HTTP.Port)
	}
	if loaded.General.LogLevel != "debug" {
		t.Fatalf("logLevel = %q", loaded.General.LogLevel)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("BACKSTAGE_TEST_TOKEN", "abc123")
	defer os.Unsetenv("BACKSTAGE_TEST_TOKEN")
	os.Unsetenv("BACKSTAGE_TEST_UNSET")

	tests := []struct {
		in   string
		want string
	}{
		{"${BACKSTAGE_TEST_TOKEN}", "abc123"},
		{"prefix-${BACKSTAGE_TEST_TOKEN}-suffix", "prefix-abc123-suffix"},
		{"${BACKSTAGE_TEST_UNSET:-fallback}", "fallback"},
		{"${BACKSTAGE_TEST_TOKEN:-fallback}", "abc123"},
		{"${BACKSTAGE_TEST_UNSET}", "${BACKSTAGE_TEST_UNSET}"}, // unset, no default: kept
		{"no vars here", "no vars here"},
	}
	for _, tt := range tests {
		if got := ExpandEnvVars(tt.in); got != tt.want {
			t.Errorf("ExpandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	os.Setenv("BACKSTAGE_TEST_PORT", "8088")
	defer os.Unsetenv("BACKSTAGE_TEST_PORT")

	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{"http":{"host":"127.0.0.1","port":${BACKSTAGE_TEST_PORT}}}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Port != 8088 {
		t.Fatalf("port = %d, want 8088", cfg.HTTP.Port)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad log level", func(c *Config) { c.General.LogLevel = "verbose" }, "general.logLevel"},
		{"bad port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"missing store path", func(c *Config) { c.WhatsApp.StorePath = "" }, "whatsapp.storePath"},
		{"bad whatsapp level", func(c *Config) { c.WhatsApp.LogLevel = "TRACE" }, "whatsapp.logLevel"},
		{"bad max bytes", func(c *Config) { c.Uploads.MaxBytes = 0 }, "uploads.maxBytes"},
		{"telegram without token", func(c *Config) {
			c.Notify.Telegram.Enabled = true
			c.Notify.Telegram.ChatID = 42
		}, "notify.telegram.token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestAccessorRoundTrip(t *testing.T) {
	cfg := Defaults()

	if err := SetByPath(cfg, "http.port", "3001"); err != nil {
		t.Fatalf("SetByPath: %v", err)
	}
	if cfg.HTTP.Port != 3001 {
		t.Fatalf("port = %d after set", cfg.HTTP.Port)
	}

	val, err := GetByPath(cfg, "http.port")
	if err != nil {
		t.Fatalf("GetByPath: %v", err)
	}
	if n, ok := val.(float64); !ok || n != 3001 {
		t.Fatalf("GetByPath = %v (%T)", val, val)
	}

	if err := SetByPath(cfg, "notify.telegram.enabled", "true"); err != nil {
		t.Fatalf("SetByPath bool: %v", err)
	}
	if !cfg.Notify.Telegram.Enabled {
		t.Fatal("enabled not set")
	}

	if _, err := GetByPath(cfg, "http.nothing"); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestSanitizeMasksToken(t *testing.T) {
	cfg := Defaults()
	cfg.Notify.Telegram.Token = "123456789:AAHsampletokensample"

	masked := Sanitize(cfg)
	if masked.Notify.Telegram.Token == cfg.Notify.Telegram.Token {
		t.Fatal("token not masked")
	}
	if !strings.Contains(masked.Notify.Telegram.Token, "****") {
		t.Fatalf("masked token = %q", masked.Notify.Telegram.Token)
	}
	// Original untouched.
	if cfg.Notify.Telegram.Token != "123456789:AAHsampletokensample" {
		t.Fatal("Sanitize mutated the original config")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	if got := ExpandPath("~/x.db"); got != filepath.Join(home, "x.db") {
		t.Fatalf("ExpandPath = %q", got)
	}
	if got := ExpandPath("/abs/x.db"); got != "/abs/x.db" {
		t.Fatalf("ExpandPath = %q", got)
	}
}
