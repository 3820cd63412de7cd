package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/flp-cmd/WhatsappBackstageAPI/internal/domain"
)

type fakeSessions struct {
	transport domain.Transport
}

func (f *fakeSessions) Ready() bool { return f.transport != nil }

func (f *fakeSessions) Session() (domain.Transport, error) {
	if f.transport == nil {
		return nil, domain.ErrNotReady
	}
	return f.transport, nil
}

type fakeTransport struct {
	groups  []domain.Group
	listErr error
	sendErr error
	sendID  string

	mu    sync.Mutex
	sends []sentMessage
}

type sentMessage struct {
	to      string
	payload domain.Payload
}

func (f *fakeTransport) Events() <-chan domain.SessionEvent { return nil }
func (f *fakeTransport) Close()                             {}

func (f *fakeTransport) ListGroups(ctx context.Context) ([]domain.Group, error) {
	return f.groups, f.listErr
}

func (f *fakeTransport) Send(ctx context.Context, to string, p domain.Payload) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sends = append(f.sends, sentMessage{to: to, payload: p})
	return f.sendID, nil
}

type fakeAttachment struct {
	data      []byte
	mediaType string
	readErr   error

	mu       sync.Mutex
	releases int
}

func (a *fakeAttachment) Bytes() ([]byte, error) {
	if a.readErr != nil {
		return nil, a.readErr
	}
	return a.data, nil
}

func (a *fakeAttachment) MediaType() string { return a.mediaType }
func (a *fakeAttachment) Filename() string  { return "photo.png" }

func (a *fakeAttachment) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.releases++
}

func (a *fakeAttachment) releaseCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.releases
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newDispatcher(sessions SessionSource) *Dispatcher {
	return NewDispatcher(DispatcherConfig{
		Sessions: sessions,
		Resolver: NewResolver(sessions),
		Logger:   testLogger(),
	})
}

var teamGroups = []domain.Group{
	{ID: "120363041234567890@g.us", Name: "Team Alpha"},
	{ID: "120363049876543210@g.us", Name: "Backstage Crew"},
}

func TestResolverPassesGroupIDThrough(t *testing.T) {
	// A JID-shaped destination never triggers a backend round trip.
	r := NewResolver(&fakeSessions{})

	got, err := r.Resolve(context.Background(), "120363041234567890@g.us")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "120363041234567890@g.us" {
		t.Fatalf("Resolve = %q", got)
	}
}

func TestResolverMatchesNameCaseInsensitive(t *testing.T) {
	sessions := &fakeSessions{transport: &fakeTransport{groups: teamGroups}}
	r := NewResolver(sessions)

	for _, name := range []string{"Team Alpha", "team alpha", "  TEAM ALPHA  "} {
		got, err := r.Resolve(context.Background(), name)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", name, err)
		}
		if got != "120363041234567890@g.us" {
			t.Fatalf("Resolve(%q) = %q", name, got)
		}
	}
}

func TestResolverUnknownName(t *testing.T) {
	sessions := &fakeSessions{transport: &fakeTransport{groups: teamGroups}}
	r := NewResolver(sessions)

	if _, err := r.Resolve(context.Background(), "No Such Group"); !errors.Is(err, domain.ErrGroupNotFound) {
		t.Fatalf("Resolve error = %v, want ErrGroupNotFound", err)
	}
	if _, err := r.Resolve(context.Background(), "   "); !errors.Is(err, domain.ErrGroupNotFound) {
		t.Fatalf("Resolve(blank) error = %v, want ErrGroupNotFound", err)
	}
}

func TestResolverNotReadyForNameLookup(t *testing.T) {
	r := NewResolver(&fakeSessions{})

	if _, err := r.Resolve(context.Background(), "Team Alpha"); !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("Resolve error = %v, want ErrNotReady", err)
	}
}

func TestDispatchNotReadyReleasesAttachment(t *testing.T) {
	d := newDispatcher(&fakeSessions{})
	att := &fakeAttachment{data: []byte("png"), mediaType: "image/png"}

	_, err := d.Send(context.Background(), domain.SendRequest{
		Destination: "Team Alpha",
		Message:     "hi",
		Attachment:  att,
	})
	if !errors.Is(err, domain.ErrNotReady) {
		t.Fatalf("Send error = %v, want ErrNotReady", err)
	}
	if att.releaseCount() != 1 {
		t.Fatalf("attachment released %d times, want 1", att.releaseCount())
	}
}

func TestDispatchRejectsEmptyRequest(t *testing.T) {
	tr := &fakeTransport{groups: teamGroups, sendID: "MSG1"}
	d := newDispatcher(&fakeSessions{transport: tr})

	_, err := d.Send(context.Background(), domain.SendRequest{Destination: "Team Alpha"})
	if !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("Send error = %v, want ErrInvalidRequest", err)
	}
	if len(tr.sends) != 0 {
		t.Fatal("backend send attempted for an empty request")
	}
}

func TestDispatchUnknownGroupReleasesAttachment(t *testing.T) {
	tr := &fakeTransport{groups: teamGroups}
	d := newDispatcher(&fakeSessions{transport: tr})
	att := &fakeAttachment{data: []byte("png"), mediaType: "image/png"}

	_, err := d.Send(context.Background(), domain.SendRequest{
		Destination: "No Such Group",
		Attachment:  att,
	})
	if !errors.Is(err, domain.ErrGroupNotFound) {
		t.Fatalf("Send error = %v, want ErrGroupNotFound", err)
	}
	if att.releaseCount() != 1 {
		t.Fatalf("attachment released %d times, want 1", att.releaseCount())
	}
}

func TestDispatchTextMessage(t *testing.T) {
	tr := &fakeTransport{groups: teamGroups, sendID: "3EB0ABCDEF"}
	d := newDispatcher(&fakeSessions{transport: tr})

	res, err := d.Send(context.Background(), domain.SendRequest{
		Destination: "team alpha",
		Message:     "deploy finished",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.MessageID != "3EB0ABCDEF" {
		t.Fatalf("MessageID = %q", res.MessageID)
	}
	if len(tr.sends) != 1 {
		t.Fatalf("got %d sends", len(tr.sends))
	}
	sent := tr.sends[0]
	if sent.to != "120363041234567890@g.us" {
		t.Fatalf("sent to %q", sent.to)
	}
	if sent.payload.Text != "deploy finished" || sent.payload.Image != nil {
		t.Fatalf("payload = %+v", sent.payload)
	}
}

func TestDispatchImageMessage(t *testing.T) {
	tr := &fakeTransport{groups: teamGroups, sendID: "3EB0IMAGE"}
	d := newDispatcher(&fakeSessions{transport: tr})
	att := &fakeAttachment{data: []byte("fake png bytes"), mediaType: "image/png"}

	res, err := d.Send(context.Background(), domain.SendRequest{
		Destination: "120363049876543210@g.us",
		Message:     "screenshot",
		Attachment:  att,
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.MessageID != "3EB0IMAGE" {
		t.Fatalf("MessageID = %q", res.MessageID)
	}
	if att.releaseCount() != 1 {
		t.Fatalf("attachment released %d times, want 1", att.releaseCount())
	}

	sent := tr.sends[0]
	if string(sent.payload.Image) != "fake png bytes" {
		t.Fatalf("payload image = %q", sent.payload.Image)
	}
	if sent.payload.MediaType != "image/png" || sent.payload.Text != "screenshot" {
		t.Fatalf("payload = %+v", sent.payload)
	}
}

func TestDispatchBackendFailure(t *testing.T) {
	tr := &fakeTransport{groups: teamGroups, sendErr: errors.New("stream closed")}
	d := newDispatcher(&fakeSessions{transport: tr})
	att := &fakeAttachment{data: []byte("png"), mediaType: "image/png"}

	_, err := d.Send(context.Background(), domain.SendRequest{
		Destination: "Team Alpha",
		Message:     "hi",
		Attachment:  att,
	})
	if !errors.Is(err, domain.ErrSendFailed) {
		t.Fatalf("Send error = %v, want ErrSendFailed", err)
	}
	if att.releaseCount() != 1 {
		t.Fatalf("attachment released %d times, want 1", att.releaseCount())
	}
}

func TestDispatchAttachmentReadFailure(t *testing.T) {
	tr := &fakeTransport{groups: teamGroups}
	d := newDispatcher(&fakeSessions{transport: tr})
	att := &fakeAttachment{readErr: errors.New("file vanished"), mediaType: "image/png"}

	_, err := d.Send(context.Background(), domain.SendRequest{
		Destination: "Team Alpha",
		Attachment:  att,
	})
	if !errors.Is(err, domain.ErrSendFailed) {
		t.Fatalf("Send error = %v, want ErrSendFailed", err)
	}
	if att.releaseCount() != 1 {
		t.Fatalf("attachment released %d times, want 1", att.releaseCount())
	}
	if len(tr.sends) != 0 {
		t.Fatal("backend send attempted with unreadable attachment")
	}
}
