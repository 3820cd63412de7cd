// Package api is the REST control plane consumed by automation tools
// (n8n and similar). It translates HTTP requests into dispatcher and
// resolver calls; all session logic lives behind those.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/flp-cmd/WhatsappBackstageAPI/internal/gateway"
	"github.com/flp-cmd/WhatsappBackstageAPI/internal/metrics"
	"github.com/flp-cmd/WhatsappBackstageAPI/internal/upload"
)

// Server serves the gateway's HTTP surface.
type Server struct {
	host       string
	port       int
	sessions   gateway.SessionSource
	dispatcher *gateway.Dispatcher
	uploads    *upload.Store
	logger     *slog.Logger

	metricsEndpoint string // empty = disabled

	server *http.Server
}

type ServerConfig struct {
	Host            string
	Port            int
	Sessions        gateway.SessionSource
	Dispatcher      *gateway.Dispatcher
	Uploads         *upload.Store
	Logger          *slog.Logger
	MetricsEndpoint string
}

func NewServer(cfg ServerConfig) *Server {
	return &Server{
		host:            cfg.Host,
		port:            cfg.Port,
		sessions:        cfg.Sessions,
		dispatcher:      cfg.Dispatcher,
		uploads:         cfg.Uploads,
		logger:          cfg.Logger,
		metricsEndpoint: cfg.MetricsEndpoint,
	}
}

// Handler builds the route table (exported for httptest).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /groups", s.handleGroups)
	mux.HandleFunc("POST /send", s.handleSend)
	// Route kept from the first deployment so existing n8n flows keep working.
	mux.HandleFunc("POST /send-group", s.handleSend)
	if s.metricsEndpoint != "" {
		mux.HandleFunc("GET "+s.metricsEndpoint, metrics.Default.Handler())
	}
	return mux
}

// Start serves until ctx is canceled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second, // image uploads can be slow
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	s.logger.Info("http api started", "addr", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Close()
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
