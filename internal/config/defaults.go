package config

import "path/filepath"

func Defaults() *Config {
	dir := DefaultConfigDir()
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		HTTP: HTTPConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		WhatsApp: WhatsAppConfig{
			StorePath: filepath.Join(dir, "session.db"),
			LogLevel:  "ERROR",
		},
		Uploads: UploadsConfig{
			Dir:      filepath.Join(dir, "uploads"),
			MaxBytes: 10 << 20, // 10MB
		},
		Notify: NotifyConfig{
			Telegram: TelegramNotifyConfig{
				Enabled: false,
			},
		},
		Metrics: MetricsConfig{
			Enabled:  false,
			Endpoint: "/metrics",
		},
	}
}
