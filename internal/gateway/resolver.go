// Package gateway holds the outbound delivery path: resolving a
// human-supplied destination to a group JID and dispatching validated
// send requests to the live session.
package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/flp-cmd/WhatsappBackstageAPI/internal/domain"
)

// Resolver maps a group JID or display name to a validated group JID.
// Every resolution queries the backend live; group membership changes
// on the phone are visible immediately, at the cost of one round trip.
type Resolver struct {
	sessions SessionSource
}

// SessionSource yields the live transport while the session is
// connected. The supervisor implements it.
type SessionSource interface {
	Ready() bool
	Session() (domain.Transport, error)
}

func NewResolver(sessions SessionSource) *Resolver {
	return &Resolver{sessions: sessions}
}

// Resolve validates a group JID or looks a display name up in the live
// group list (case-insensitive exact match, first match wins).
// Returns ErrGroupNotFound when neither works.
func (r *Resolver) Resolve(ctx context.Context, destination string) (string, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return "", domain.ErrGroupNotFound
	}
	if domain.IsGroupID(destination) {
		return destination, nil
	}

	t, err := r.sessions.Session()
	if err != nil {
		return "", err
	}
	groups, err := t.ListGroups(ctx)
	if err != nil {
		return "", fmt.Errorf("list groups: %w", err)
	}
	for _, g := range groups {
		if strings.EqualFold(g.Name, destination) {
			return g.ID, nil
		}
	}
	return "", domain.ErrGroupNotFound
}
