package domain

import (
	"context"
	"strings"
)

// GroupSuffix is the server part of every WhatsApp group JID.
const GroupSuffix = "@g.us"

// IsGroupID reports whether id follows the group JID convention.
func IsGroupID(id string) bool {
	return strings.HasSuffix(id, GroupSuffix)
}

// Group is one group conversation the session participates in.
// Groups are fetched live from the backend on every lookup and never
// cached; the backend is the sole source of truth.
type Group struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Payload is an outbound message. When Image is nil the payload is
// text-only; otherwise Text (if any) becomes the image caption.
type Payload struct {
	Text      string
	Image     []byte
	MediaType string
	Filename  string
}

// Transport is one authenticated connection attempt to WhatsApp.
// A transport is created once, emits events until it disconnects, and
// is then discarded; reconnecting means creating a new one.
type Transport interface {
	// Events yields lifecycle and inbound-message events. After Close the
	// channel goes quiet; it may or may not be closed.
	Events() <-chan SessionEvent
	// ListGroups returns all groups the session participates in.
	ListGroups(ctx context.Context) ([]Group, error)
	// Send delivers a payload to a chat JID and returns the
	// backend-assigned message ID (may be empty). Safe for concurrent use.
	Send(ctx context.Context, to string, p Payload) (string, error)
	// Close tears the connection down and releases resources.
	Close()
}

// TransportFactory creates a fresh transport with the stored
// credentials. The supervisor calls it on startup and after every
// transient disconnect.
type TransportFactory func(ctx context.Context) (Transport, error)

// Attachment is a materialized upload backing an outbound image.
// Release must be called exactly once on every path that obtained the
// attachment; implementations make it idempotent.
type Attachment interface {
	Bytes() ([]byte, error)
	MediaType() string
	Filename() string
	Release()
}

// SendRequest is one outbound send, built per HTTP request and
// consumed once. At least one of Message/Attachment must be present.
type SendRequest struct {
	Destination string // group JID or display name
	Message     string
	Attachment  Attachment // nil when text-only
}

// Notifier delivers operator-facing notices (pairing codes, session
// revocation) outside the WhatsApp session itself.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}
