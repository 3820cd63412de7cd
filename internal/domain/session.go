package domain

// SessionState is the lifecycle state of the WhatsApp session.
// Exactly one session exists per process; transitions are driven only
// by transport events.
type SessionState int

const (
	StateUninitialized SessionState = iota
	StateAwaitingAuth
	StateConnected
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAwaitingAuth:
		return "awaiting_auth"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// DisconnectReason classifies a disconnect event. LoggedOut means the
// session was revoked on the phone and reconnecting with the same
// credentials cannot succeed; everything else is Transient.
type DisconnectReason int

const (
	ReasonTransient DisconnectReason = iota
	ReasonLoggedOut
)

func (r DisconnectReason) String() string {
	if r == ReasonLoggedOut {
		return "logged_out"
	}
	return "transient"
}

// SessionEventKind discriminates SessionEvent.
type SessionEventKind int

const (
	// EventPairingCode carries a QR payload to show the operator.
	EventPairingCode SessionEventKind = iota
	// EventConnected means the backend confirmed the session.
	EventConnected
	// EventDisconnected means the connection was lost; Reason says whether
	// a reconnect can succeed.
	EventDisconnected
	// EventMessage is an inbound text message from another user.
	EventMessage
)

// SessionEvent is a single transport lifecycle or inbound-message event.
// The transport delivers these on one channel, one at a time.
type SessionEvent struct {
	Kind   SessionEventKind
	Code   string           // EventPairingCode: QR payload
	Reason DisconnectReason // EventDisconnected
	Chat   string           // EventMessage: chat JID
	Sender string           // EventMessage: sender JID
	Text   string           // EventMessage: text content
}
