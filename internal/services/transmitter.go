package services

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/tonojkeee/koordinator/internal/settings"
)

// Transmitter hands a composed message to a relay.
type Transmitter interface {
	Transmit(ctx context.Context, from string, rcpts []string, msg []byte) error
}

// SMTPTransmitter relays through the SMTP endpoint configured in settings.
// The endpoint is read on every call.
type SMTPTransmitter struct {
	settings *settings.Settings
	Timeout  time.Duration
}

// NewSMTPTransmitter creates a new SMTPTransmitter
func NewSMTPTransmitter(s *settings.Settings) *SMTPTransmitter {
	return &SMTPTransmitter{settings: s, Timeout: 30 * time.Second}
}

// Transmit sends msg to rcpts. Credentials are used only when configured.
func (t *SMTPTransmitter) Transmit(ctx context.Context, from string, rcpts []string, msg []byte) error {
	endpoint, err := t.settings.SMTPEndpoint(ctx)
	if err != nil {
		return fmt.Errorf("%w: read smtp endpoint: %w", ErrTransmissionFailed, err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrTransmissionFailed, err)
	}

	addr := net.JoinHostPort(endpoint.Host, strconv.Itoa(endpoint.Port))
	c, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %w", ErrTransmissionFailed, addr, err)
	}
	defer c.Close()
	c.CommandTimeout = t.Timeout
	c.SubmissionTimeout = t.Timeout

	if endpoint.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", endpoint.Username, endpoint.Password)); err != nil {
			return fmt.Errorf("%w: auth: %w", ErrTransmissionFailed, err)
		}
	}
	if err := c.SendMail(from, rcpts, bytes.NewReader(msg)); err != nil {
		return fmt.Errorf("%w: %w", ErrTransmissionFailed, err)
	}
	if err := c.Quit(); err != nil {
		return fmt.Errorf("%w: quit: %w", ErrTransmissionFailed, err)
	}
	return nil
}

// Probe connects to the configured relay and authenticates when credentials
// are set, without sending anything.
func (t *SMTPTransmitter) Probe(ctx context.Context) (string, error) {
	endpoint, err := t.settings.SMTPEndpoint(ctx)
	if err != nil {
		return "", err
	}
	addr := net.JoinHostPort(endpoint.Host, strconv.Itoa(endpoint.Port))
	c, err := smtp.Dial(addr)
	if err != nil {
		return addr, fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer c.Close()
	c.CommandTimeout = t.Timeout

	if err := c.Noop(); err != nil {
		return addr, fmt.Errorf("SMTP server did not answer: %w", err)
	}
	if endpoint.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", endpoint.Username, endpoint.Password)); err != nil {
			return addr, fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}
	return addr, c.Quit()
}
