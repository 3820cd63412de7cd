package domain

import "errors"

// Error taxonomy surfaced by the dispatcher. The HTTP layer maps these
// to status codes with errors.Is; transport-level errors during
// reconnect never reach callers directly.
var (
	// ErrNotReady: the session is not connected; sends are rejected.
	ErrNotReady = errors.New("whatsapp session not ready")
	// ErrInvalidRequest: neither message text nor image present.
	ErrInvalidRequest = errors.New("message or image required")
	// ErrGroupNotFound: destination did not resolve to a group JID.
	ErrGroupNotFound = errors.New("group not found")
	// ErrSendFailed wraps transport errors from the send primitive.
	ErrSendFailed = errors.New("send failed")
)
