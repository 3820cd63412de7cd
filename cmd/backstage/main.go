package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"

	"github.com/flp-cmd/WhatsappBackstageAPI/internal/api"
	"github.com/flp-cmd/WhatsappBackstageAPI/internal/config"
	"github.com/flp-cmd/WhatsappBackstageAPI/internal/gateway"
	"github.com/flp-cmd/WhatsappBackstageAPI/internal/notify"
	"github.com/flp-cmd/WhatsappBackstageAPI/internal/session"
	"github.com/flp-cmd/WhatsappBackstageAPI/internal/upload"
	"github.com/flp-cmd/WhatsappBackstageAPI/internal/whatsapp"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:     "backstage",
		Short:   "Backstage: HTTP gateway for a WhatsApp group-messaging session",
		Long:    "Backstage bridges automation tools (n8n etc.) to a persistent WhatsApp session:\nlist groups and send text/image messages over a small REST API.",
		Version: version,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.backstage/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(logoutCmd())
	root.AddCommand(configCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func loadConfig() *config.Config {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		return config.Defaults()
	}
	return cfg
}

// buildLogger applies the configured level and optional log file.
func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.General.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	out := io.Writer(os.Stderr)
	if cfg.General.LogFile != "" {
		f, err := os.OpenFile(cfg.General.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			logger.Warn("cannot open log file, logging to stderr", "path", cfg.General.LogFile, "err", err)
		} else {
			out = io.MultiWriter(os.Stderr, f)
		}
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize config and data directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			cfg := config.Defaults()
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.Uploads.Dir, 0o755); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath, "uploads", cfg.Uploads.Dir)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway (WhatsApp session + HTTP API)",
		Long:  "Connects (or pairs) the WhatsApp session and serves the REST API. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger = buildLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(filepath.Dir(cfg.WhatsApp.StorePath), 0o755); err != nil {
		return err
	}

	store, err := whatsapp.OpenStore(ctx, cfg.WhatsApp.StorePath, cfg.WhatsApp.LogLevel)
	if err != nil {
		return fmt.Errorf("credential store: %w", err)
	}
	defer store.Close()

	uploads, err := upload.NewStore(upload.StoreConfig{
		Dir:      cfg.Uploads.Dir,
		MaxBytes: cfg.Uploads.MaxBytes,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("upload store: %w", err)
	}

	supCfg := session.SupervisorConfig{
		Factory:   whatsapp.NewFactory(store, cfg.WhatsApp.LogLevel, logger),
		OnPairing: printQR,
		Logger:    logger,
	}
	if cfg.Notify.Telegram.Enabled {
		notifier, err := notify.NewTelegram(notify.TelegramConfig{
			Token:  cfg.Notify.Telegram.Token,
			ChatID: cfg.Notify.Telegram.ChatID,
			Logger: logger,
		})
		if err != nil {
			logger.Warn("telegram notifier disabled", "err", err)
		} else {
			supCfg.Notifier = notifier
		}
	}
	supervisor := session.NewSupervisor(supCfg)

	resolver := gateway.NewResolver(supervisor)
	dispatcher := gateway.NewDispatcher(gateway.DispatcherConfig{
		Sessions: supervisor,
		Resolver: resolver,
		Logger:   logger,
	})

	metricsEndpoint := ""
	if cfg.Metrics.Enabled {
		metricsEndpoint = cfg.Metrics.Endpoint
	}
	server := api.NewServer(api.ServerConfig{
		Host:            cfg.HTTP.Host,
		Port:            cfg.HTTP.Port,
		Sessions:        supervisor,
		Dispatcher:      dispatcher,
		Uploads:         uploads,
		Logger:          logger,
		MetricsEndpoint: metricsEndpoint,
	})

	go func() {
		if err := supervisor.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("session supervisor stopped", "err", err)
		}
	}()

	return server.Start(ctx)
}

// printQR renders the pairing QR code in the terminal.
func printQR(code string) {
	fmt.Fprintln(os.Stdout, "Escaneie o QR Code abaixo com seu WhatsApp:")
	qrterminal.GenerateHalfBlock(code, qrterminal.L, os.Stdout)
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check the running gateway's readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			host := cfg.HTTP.Host
			if host == "0.0.0.0" || host == "" {
				host = "127.0.0.1"
			}
			url := fmt.Sprintf("http://%s:%d/health", host, cfg.HTTP.Port)

			client := &http.Client{Timeout: 5 * time.Second}
			resp, err := client.Get(url)
			if err != nil {
				logger.Info("gateway", "url", url, "running", false)
				return nil
			}
			defer resp.Body.Close()

			var health struct {
				OK bool `json:"ok"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
				return fmt.Errorf("decode health response: %w", err)
			}
			logger.Info("gateway", "url", url, "running", true, "session_ready", health.OK)
			return nil
		},
	}
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Delete stored WhatsApp credentials (forces QR pairing on next serve)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			ctx := context.Background()

			store, err := whatsapp.OpenStore(ctx, cfg.WhatsApp.StorePath, cfg.WhatsApp.LogLevel)
			if err != nil {
				return fmt.Errorf("credential store: %w", err)
			}
			defer store.Close()

			if err := store.Clear(ctx); err != nil {
				return err
			}
			logger.Info("stored credentials cleared", "store", cfg.WhatsApp.StorePath)
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. http.port)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(cfg, args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. http.port 3001)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			logger.Info("config updated", "path", args[0], "value", args[1], "file", cfgPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all config values",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			data, _ := json.MarshalIndent(config.Sanitize(cfg), "", "  ")
			fmt.Println(string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(resolveConfigPath())
		},
	})

	return cmd
}
