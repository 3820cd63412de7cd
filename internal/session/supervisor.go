// Package session supervises the single WhatsApp session: it creates
// transports, consumes their lifecycle events, restarts after
// recoverable disconnects and publishes the readiness flag every
// outbound request consults.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/flp-cmd/WhatsappBackstageAPI/internal/domain"
	"github.com/flp-cmd/WhatsappBackstageAPI/internal/metrics"
)

// Supervisor owns exactly one live transport at a time. After a
// transient disconnect it immediately creates a fresh transport with
// the same stored credentials; after a logged-out disconnect it stands
// down for the rest of the process and the operator must clear the
// stored credentials (backstage logout) before a new attempt can work.
type Supervisor struct {
	factory  domain.TransportFactory
	notifier domain.Notifier    // optional
	onPair   func(code string)  // optional, e.g. terminal QR rendering
	logger   *slog.Logger

	ready     atomic.Bool
	loggedOut atomic.Bool

	mu      sync.RWMutex
	current domain.Transport
	state   domain.SessionState
}

type SupervisorConfig struct {
	Factory   domain.TransportFactory
	Notifier  domain.Notifier
	OnPairing func(code string)
	Logger    *slog.Logger
}

func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	return &Supervisor{
		factory:  cfg.Factory,
		notifier: cfg.Notifier,
		onPair:   cfg.OnPairing,
		logger:   cfg.Logger,
	}
}

// Ready reports whether outbound sends are currently permitted.
func (s *Supervisor) Ready() bool { return s.ready.Load() }

// State returns the current lifecycle state (for status reporting).
func (s *Supervisor) State() domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Session returns the live transport handle, or ErrNotReady. The
// handle is only valid while the session stays connected; callers must
// tolerate send failures from a concurrent disconnect.
func (s *Supervisor) Session() (domain.Transport, error) {
	if !s.ready.Load() {
		return nil, domain.ErrNotReady
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, domain.ErrNotReady
	}
	return s.current, nil
}

// Run drives the session lifecycle until ctx is canceled or the
// session is revoked. Construction errors abandon the attempt; only
// reconnect-after-disconnect is automatic.
func (s *Supervisor) Run(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		t, err := s.factory(ctx)
		if err != nil {
			s.logger.Error("whatsapp session construction failed", "err", err)
			return err
		}
		s.transition(domain.StateAwaitingAuth, t)
		if attempt > 0 {
			metrics.Reconnects.Inc()
		}

		reason, canceled := s.consume(ctx, t)
		s.setReady(false)
		t.Close()
		s.transition(domain.StateDisconnected, nil)

		if canceled {
			return ctx.Err()
		}
		if reason == domain.ReasonLoggedOut {
			s.loggedOut.Store(true)
			s.logger.Error("whatsapp session revoked; clear stored credentials (backstage logout) to re-pair")
			s.notify(ctx, "Sessão do WhatsApp desconectada. Rode `backstage logout` e escaneie o QR novamente.")
			return nil
		}

		s.logger.Warn("whatsapp disconnected, reconnecting", "reason", reason.String())
	}
}

// consume handles one transport's events until it disconnects or ctx
// ends. Events arrive on a single channel and are handled one at a
// time, so the readiness flag can never lag behind a disconnect.
func (s *Supervisor) consume(ctx context.Context, t domain.Transport) (domain.DisconnectReason, bool) {
	for {
		select {
		case <-ctx.Done():
			return domain.ReasonTransient, true
		case ev, ok := <-t.Events():
			if !ok {
				// Transport went away without an explicit disconnect event.
				return domain.ReasonTransient, false
			}
			switch ev.Kind {
			case domain.EventPairingCode:
				s.logger.Info("pairing code received, scan with WhatsApp")
				if s.onPair != nil {
					s.onPair(ev.Code)
				}
				s.notify(ctx, "Novo QR Code gerado. Escaneie com seu WhatsApp para parear.")
			case domain.EventConnected:
				s.transition(domain.StateConnected, t)
				s.setReady(true)
				s.logger.Info("whatsapp connected")
			case domain.EventDisconnected:
				s.setReady(false)
				return ev.Reason, false
			case domain.EventMessage:
				s.handleMessage(ctx, t, ev)
			}
		}
	}
}

// handleMessage answers the !ping health probe; everything else is ignored.
func (s *Supervisor) handleMessage(ctx context.Context, t domain.Transport, ev domain.SessionEvent) {
	if strings.ToLower(strings.TrimSpace(ev.Text)) != "!ping" {
		return
	}
	if _, err := t.Send(ctx, ev.Chat, domain.Payload{Text: "pong"}); err != nil {
		s.logger.Warn("ping reply failed", "chat", ev.Chat, "err", err)
	}
}

func (s *Supervisor) setReady(v bool) {
	// A sticky logged-out state can never become ready again.
	if v && s.loggedOut.Load() {
		return
	}
	s.ready.Store(v)
	if v {
		metrics.SessionReady.Set(1)
	} else {
		metrics.SessionReady.Set(0)
	}
}

func (s *Supervisor) transition(state domain.SessionState, t domain.Transport) {
	s.mu.Lock()
	s.state = state
	s.current = t
	s.mu.Unlock()
}

func (s *Supervisor) notify(ctx context.Context, text string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, text); err != nil {
		s.logger.Warn("operator notification failed", "err", err)
	}
}
