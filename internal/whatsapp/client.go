package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/flp-cmd/WhatsappBackstageAPI/internal/domain"
)

// eventBuffer bounds how many untaken events a transport holds before
// new ones are dropped (only relevant after the supervisor stopped
// consuming, i.e. past a disconnect).
const eventBuffer = 16

// Client is one whatsmeow connection attempt implementing
// domain.Transport. Reconnection is owned by the supervisor, so the
// library's own auto-reconnect stays disabled and every attempt gets a
// fresh Client.
type Client struct {
	wm     *whatsmeow.Client
	logger *slog.Logger

	events    chan domain.SessionEvent
	done      chan struct{}
	closeOnce sync.Once
}

// NewFactory returns a TransportFactory bound to the credential store.
func NewFactory(st *Store, logLevel string, logger *slog.Logger) domain.TransportFactory {
	return func(ctx context.Context) (domain.Transport, error) {
		device, err := st.Device(ctx)
		if err != nil {
			return nil, fmt.Errorf("load credentials: %w", err)
		}

		wm := whatsmeow.NewClient(device, waLog.Stdout("Client", logLevel, false))
		wm.EnableAutoReconnect = false

		c := &Client{
			wm:     wm,
			logger: logger,
			events: make(chan domain.SessionEvent, eventBuffer),
			done:   make(chan struct{}),
		}
		wm.AddEventHandler(c.translate)

		if wm.Store.ID == nil {
			// No stored credentials: pairing flow. The QR channel must be
			// requested before Connect.
			qrChan, err := wm.GetQRChannel(ctx)
			if err != nil {
				return nil, fmt.Errorf("qr channel: %w", err)
			}
			go c.forwardQR(qrChan)
		}

		if err := wm.Connect(); err != nil {
			return nil, fmt.Errorf("connect: %w", err)
		}
		return c, nil
	}
}

func (c *Client) Events() <-chan domain.SessionEvent { return c.events }

func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
	c.wm.Disconnect()
}

// emit hands an event to the supervisor. After Close the supervisor is
// gone and events are discarded.
func (c *Client) emit(ev domain.SessionEvent) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *Client) forwardQR(ch <-chan whatsmeow.QRChannelItem) {
	for item := range ch {
		if item.Event == whatsmeow.QRChannelEventCode {
			c.emit(domain.SessionEvent{Kind: domain.EventPairingCode, Code: item.Code})
		}
	}
}

// translate maps whatsmeow events onto the session event stream.
// whatsmeow dispatches handlers one at a time, which is what gives the
// supervisor its ordered, single-consumer event model.
func (c *Client) translate(evt any) {
	switch v := evt.(type) {
	case *events.Connected:
		c.emit(domain.SessionEvent{Kind: domain.EventConnected})
	case *events.LoggedOut:
		c.logger.Warn("whatsapp logged out", "reason", v.Reason)
		c.emit(domain.SessionEvent{Kind: domain.EventDisconnected, Reason: domain.ReasonLoggedOut})
	case *events.Disconnected:
		c.emit(domain.SessionEvent{Kind: domain.EventDisconnected, Reason: domain.ReasonTransient})
	case *events.StreamReplaced:
		c.emit(domain.SessionEvent{Kind: domain.EventDisconnected, Reason: domain.ReasonTransient})
	case *events.TemporaryBan:
		c.logger.Warn("whatsapp temporary ban", "expire", v.Expire)
		c.emit(domain.SessionEvent{Kind: domain.EventDisconnected, Reason: domain.ReasonTransient})
	case *events.Message:
		if v.Info.IsFromMe {
			return
		}
		text := v.Message.GetConversation()
		if text == "" {
			text = v.Message.GetExtendedTextMessage().GetText()
		}
		if text == "" {
			return
		}
		c.emit(domain.SessionEvent{
			Kind:   domain.EventMessage,
			Chat:   v.Info.Chat.String(),
			Sender: v.Info.Sender.String(),
			Text:   text,
		})
	}
}

// ListGroups enumerates all participating groups, live from the backend.
func (c *Client) ListGroups(ctx context.Context) ([]domain.Group, error) {
	infos, err := c.wm.GetJoinedGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch joined groups: %w", err)
	}
	groups := make([]domain.Group, 0, len(infos))
	for _, g := range infos {
		groups = append(groups, domain.Group{ID: g.JID.String(), Name: g.Name})
	}
	return groups, nil
}

// Send delivers a text or image payload to the given chat JID.
func (c *Client) Send(ctx context.Context, to string, p domain.Payload) (string, error) {
	jid, err := types.ParseJID(to)
	if err != nil {
		return "", fmt.Errorf("parse jid %q: %w", to, err)
	}

	var msg *waE2E.Message
	if p.Image != nil {
		uploaded, err := c.wm.Upload(ctx, p.Image, whatsmeow.MediaImage)
		if err != nil {
			return "", fmt.Errorf("upload image %q: %w", p.Filename, err)
		}
		img := &waE2E.ImageMessage{
			Mimetype:      proto.String(p.MediaType),
			URL:           proto.String(uploaded.URL),
			DirectPath:    proto.String(uploaded.DirectPath),
			MediaKey:      uploaded.MediaKey,
			FileEncSHA256: uploaded.FileEncSHA256,
			FileSHA256:    uploaded.FileSHA256,
			FileLength:    proto.Uint64(uploaded.FileLength),
		}
		if p.Text != "" {
			img.Caption = proto.String(p.Text)
		}
		msg = &waE2E.Message{ImageMessage: img}
	} else {
		msg = &waE2E.Message{Conversation: proto.String(p.Text)}
	}

	resp, err := c.wm.SendMessage(ctx, jid, msg)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}
