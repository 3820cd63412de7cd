// Package whatsapp adapts go.mau.fi/whatsmeow to the domain.Transport
// contract: credential persistence, pairing, lifecycle events, group
// listing and text/image delivery.
package whatsapp

import (
	"context"
	"fmt"

	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"

	_ "modernc.org/sqlite"
)

// Store owns the sqlite-backed credential container. whatsmeow writes
// every credential update back into it on its own, so reconnects always
// see the latest session keys.
type Store struct {
	container *sqlstore.Container
}

func OpenStore(ctx context.Context, path, logLevel string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)", path)
	container, err := sqlstore.New(ctx, "sqlite", dsn, waLog.Stdout("Database", logLevel, false))
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}
	return &Store{container: container}, nil
}

// Device loads the stored device credentials, or a blank device when
// none exist yet (which makes the next connect go through QR pairing).
func (s *Store) Device(ctx context.Context) (*store.Device, error) {
	return s.container.GetFirstDevice(ctx)
}

// Clear deletes all stored credentials. This is the out-of-band reset
// an operator runs after the session was revoked on the phone.
func (s *Store) Clear(ctx context.Context) error {
	devices, err := s.container.GetAllDevices(ctx)
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}
	for _, d := range devices {
		if err := s.container.DeleteDevice(ctx, d); err != nil {
			return fmt.Errorf("delete device %s: %w", d.ID, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.container.Close()
}
