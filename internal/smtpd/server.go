// Package smtpd accepts inbound mail over SMTP and hands every message to
// the ingestion service.
package smtpd

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/tonojkeee/koordinator/internal/services"
)

// Options configures the listener
type Options struct {
	Addr            string
	Domain          string
	MaxMessageBytes int64
	MaxRecipients   int
	Timeout         time.Duration
}

// Backend implements smtp.Backend on top of an Ingester.
type Backend struct {
	ingester services.Ingester
	// DeliverTimeout bounds one ingestion call.
	DeliverTimeout time.Duration
}

// NewBackend creates a new Backend
func NewBackend(ingester services.Ingester) *Backend {
	return &Backend{ingester: ingester, DeliverTimeout: 2 * time.Minute}
}

// NewServer returns a go-smtp server for be. The caller starts it with
// ListenAndServe or Serve.
func NewServer(be *Backend, opts Options) *smtp.Server {
	s := smtp.NewServer(be)
	s.Addr = opts.Addr
	s.Domain = opts.Domain
	s.MaxMessageBytes = opts.MaxMessageBytes
	s.MaxRecipients = opts.MaxRecipients
	if opts.Timeout > 0 {
		s.ReadTimeout = opts.Timeout
		s.WriteTimeout = opts.Timeout
	}
	return s
}

// NewSession implements smtp.Backend
func (be *Backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	remote := ""
	if conn := c.Conn(); conn != nil {
		remote = conn.RemoteAddr().String()
	}
	return &session{backend: be, remote: remote}, nil
}

// errTemporary is returned when a message could not be stored. The client
// is expected to retry later.
var errTemporary = &smtp.SMTPError{
	Code:         451,
	EnhancedCode: smtp.EnhancedCode{4, 3, 0},
	Message:      "Requested action aborted: local error in processing",
}

type session struct {
	backend *Backend
	remote  string
	from    string
	rcpts   []string
}

func (s *session) Mail(from string, _ *smtp.MailOptions) error {
	s.from = from
	return nil
}

func (s *session) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.rcpts = append(s.rcpts, to)
	return nil
}

func (s *session) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.backend.DeliverTimeout)
	defer cancel()

	report, err := s.backend.ingester.Deliver(ctx, s.from, s.rcpts, raw)
	if err != nil {
		log.Printf("[smtpd] %s: delivery from %s failed: %v", s.remote, s.from, err)
		if errors.Is(err, services.ErrInvalidEmailData) {
			return &smtp.SMTPError{
				Code:         554,
				EnhancedCode: smtp.EnhancedCode{5, 6, 0},
				Message:      "Message could not be parsed",
			}
		}
		return errTemporary
	}
	log.Printf("[smtpd] %s: accepted message from %s, %d copies", s.remote, s.from, len(report.MessageIDs))
	return nil
}

func (s *session) Reset() {
	s.from = ""
	s.rcpts = nil
}

func (s *session) Logout() error {
	return nil
}
