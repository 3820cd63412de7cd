package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flp-cmd/WhatsappBackstageAPI/internal/domain"
	"github.com/flp-cmd/WhatsappBackstageAPI/internal/metrics"
)

// Dispatcher validates and delivers outbound send requests. The
// attachment backing a request, when present, is released exactly once
// on every exit path.
type Dispatcher struct {
	sessions SessionSource
	resolver *Resolver
	logger   *slog.Logger
}

type DispatcherConfig struct {
	Sessions SessionSource
	Resolver *Resolver
	Logger   *slog.Logger
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{
		sessions: cfg.Sessions,
		resolver: cfg.Resolver,
		logger:   cfg.Logger,
	}
}

// Result is the outcome of a successful send.
type Result struct {
	MessageID string // backend-assigned, may be empty
}

// Send delivers req to its destination group. Errors are one of
// ErrNotReady, ErrInvalidRequest, ErrGroupNotFound, or a wrapped
// ErrSendFailed.
func (d *Dispatcher) Send(ctx context.Context, req domain.SendRequest) (Result, error) {
	if req.Attachment != nil {
		defer req.Attachment.Release()
	}

	t, err := d.sessions.Session()
	if err != nil {
		return Result{}, err
	}
	if req.Message == "" && req.Attachment == nil {
		return Result{}, domain.ErrInvalidRequest
	}

	jid, err := d.resolver.Resolve(ctx, req.Destination)
	if err != nil {
		return Result{}, err
	}

	payload := domain.Payload{Text: req.Message}
	if req.Attachment != nil {
		data, err := req.Attachment.Bytes()
		if err != nil {
			metrics.SendFailuresTotal.Inc()
			return Result{}, fmt.Errorf("%w: read attachment: %v", domain.ErrSendFailed, err)
		}
		payload.Image = data
		payload.MediaType = req.Attachment.MediaType()
		payload.Filename = req.Attachment.Filename()
	}

	start := time.Now()
	id, err := t.Send(ctx, jid, payload)
	metrics.SendLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SendFailuresTotal.Inc()
		d.logger.Error("send failed", "group", jid, "err", err)
		return Result{}, fmt.Errorf("%w: %v", domain.ErrSendFailed, err)
	}

	metrics.SendsTotal.Inc()
	d.logger.Info("message sent", "group", jid, "id", id, "image", payload.Image != nil)
	return Result{MessageID: id}, nil
}
