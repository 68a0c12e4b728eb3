package smtpd

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/tonojkeee/koordinator/internal/services"
	"github.com/tonojkeee/koordinator/internal/settings"
)

type mapProvider map[string]string

func (m mapProvider) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

type delivery struct {
	sender string
	rcpts  []string
	raw    string
}

type fakeIngester struct {
	mu   sync.Mutex
	fail error
	got  []delivery
}

func (f *fakeIngester) Deliver(_ context.Context, sender string, rcpts []string, raw []byte) (*services.DeliveryReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	f.got = append(f.got, delivery{sender, rcpts, string(raw)})
	ids := make([]uint, len(rcpts))
	for i := range ids {
		ids[i] = uint(i + 1)
	}
	return &services.DeliveryReport{MessageIDs: ids, State: services.StateCommitted}, nil
}

func startServer(t *testing.T, ing services.Ingester) (*services.SMTPTransmitter, func()) {
	t.Helper()
	srv := NewServer(NewBackend(ing), Options{
		Domain:          "localhost",
		MaxMessageBytes: 1 << 20,
		MaxRecipients:   50,
		Timeout:         5 * time.Second,
	})
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go srv.Serve(l)

	port := l.Addr().(*net.TCPAddr).Port
	tr := services.NewSMTPTransmitter(settings.New(mapProvider{
		settings.KeySMTPHost: "127.0.0.1",
		settings.KeySMTPPort: strconv.Itoa(port),
	}, "coordinator.local"))
	tr.Timeout = 5 * time.Second
	return tr, func() { srv.Close() }
}

const sample = "From: a@example.com\r\nTo: b@coordinator.local\r\nSubject: hi\r\n\r\nhello\r\n"

func TestListenerHandsMessagesToIngester(t *testing.T) {
	ing := &fakeIngester{}
	tr, stop := startServer(t, ing)
	defer stop()
	ctx := context.Background()

	if _, err := tr.Probe(ctx); err != nil {
		t.Fatalf("Probe failed: %v", err)
	}

	rcpts := []string{"b@coordinator.local", "c@coordinator.local"}
	if err := tr.Transmit(ctx, "a@example.com", rcpts, []byte(sample)); err != nil {
		t.Fatalf("Transmit failed: %v", err)
	}

	ing.mu.Lock()
	defer ing.mu.Unlock()
	if len(ing.got) != 1 {
		t.Fatalf("expected one delivery, got %d", len(ing.got))
	}
	d := ing.got[0]
	if d.sender != "a@example.com" || strings.Join(d.rcpts, ",") != strings.Join(rcpts, ",") {
		t.Errorf("envelope = %s -> %v", d.sender, d.rcpts)
	}
	if !strings.Contains(d.raw, "Subject: hi") || !strings.Contains(d.raw, "hello") {
		t.Errorf("raw message = %q", d.raw)
	}
}

func TestListenerRejectsTemporarilyOnPersistenceFailure(t *testing.T) {
	ing := &fakeIngester{fail: services.ErrPersistence}
	tr, stop := startServer(t, ing)
	defer stop()

	err := tr.Transmit(context.Background(), "a@example.com", []string{"b@coordinator.local"}, []byte(sample))
	if !errors.Is(err, services.ErrTransmissionFailed) {
		t.Fatalf("expected a transmission failure, got %v", err)
	}
	var smtpErr *smtp.SMTPError
	if errors.As(err, &smtpErr) {
		if smtpErr.Code != 451 {
			t.Errorf("code = %d, want 451", smtpErr.Code)
		}
	} else if !strings.Contains(err.Error(), "451") && !strings.Contains(err.Error(), "local error") {
		t.Errorf("unexpected rejection: %v", err)
	}
}

func TestTransmitFailsWhenRelayIsDown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	tr := services.NewSMTPTransmitter(settings.New(mapProvider{
		settings.KeySMTPHost: "127.0.0.1",
		settings.KeySMTPPort: strconv.Itoa(port),
	}, "coordinator.local"))
	err = tr.Transmit(context.Background(), "a@example.com", []string{"b@example.com"}, []byte(sample))
	if !errors.Is(err, services.ErrTransmissionFailed) {
		t.Errorf("expected ErrTransmissionFailed, got %v", err)
	}
}
