package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for the Backstage gateway.
type Config struct {
	General  GeneralConfig  `json:"general"`
	HTTP     HTTPConfig     `json:"http"`
	WhatsApp WhatsAppConfig `json:"whatsapp"`
	Uploads  UploadsConfig  `json:"uploads"`
	Notify   NotifyConfig   `json:"notify"`
	Metrics  MetricsConfig  `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel"`
	LogFile  string `json:"logFile,omitempty"` // optional log file path
}

// HTTPConfig configures the REST control plane.
type HTTPConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// WhatsAppConfig configures the session transport.
type WhatsAppConfig struct {
	StorePath string `json:"storePath"` // sqlite file holding session credentials
	LogLevel  string `json:"logLevel"`  // whatsmeow log level: DEBUG|INFO|WARN|ERROR
}

// UploadsConfig configures the temporary image spool.
type UploadsConfig struct {
	Dir      string `json:"dir"`
	MaxBytes int64  `json:"maxBytes"`
}

// NotifyConfig configures operator notifications.
type NotifyConfig struct {
	Telegram TelegramNotifyConfig `json:"telegram"`
}

type TelegramNotifyConfig struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"`
	ChatID  int64  `json:"chatId,omitempty"`
}

// MetricsConfig configures the Prometheus text endpoint.
type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.backstage).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".backstage"
	}
	return filepath.Join(home, ".backstage")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.WhatsApp.StorePath = ExpandPath(cfg.WhatsApp.StorePath)
	cfg.Uploads.Dir = ExpandPath(cfg.Uploads.Dir)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // Keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.HTTP.Port < 1 || cfg.HTTP.Port > 65535 {
		errs = append(errs, "http.port must be between 1 and 65535")
	}

	if cfg.WhatsApp.StorePath == "" {
		errs = append(errs, "whatsapp.storePath is required")
	}
	switch cfg.WhatsApp.LogLevel {
	case "", "DEBUG", "INFO", "WARN", "ERROR":
		// valid
	default:
		errs = append(errs, "whatsapp.logLevel must be one of: DEBUG, INFO, WARN, ERROR")
	}

	if cfg.Uploads.MaxBytes < 1 {
		errs = append(errs, "uploads.maxBytes must be >= 1")
	}

	if cfg.Notify.Telegram.Enabled {
		if cfg.Notify.Telegram.Token == "" {
			errs = append(errs, "notify.telegram.token is required when enabled")
		}
		if cfg.Notify.Telegram.ChatID == 0 {
			errs = append(errs, "notify.telegram.chatId is required when enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
