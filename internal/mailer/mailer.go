package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"progress/internal/config"
	"progress/internal/logger"
)

// ErrNotConfigured is returned by Disabled.
var ErrNotConfigured = errors.New("smtp not configured")

type Message struct {
	To      string
	Subject string
	HTML    string
}

// Receipt identifies an accepted message.
type Receipt struct {
	MessageID string
}

// Dispatcher delivers a rendered email.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}

const plainFallback = "Please view this email in an HTML-capable email client."

// SMTP sends mail through a configured relay.
type SMTP struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTP(cfg config.SMTPConfig) *SMTP {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.SSL = cfg.Port == 465
	if cfg.UseTLS {
		d.TLSConfig = &tls.Config{ServerName: cfg.Host}
	}
	return &SMTP{dialer: d, from: cfg.From}
}

// New returns an SMTP dispatcher when cfg names a host and Disabled otherwise.
func New(cfg config.SMTPConfig) Dispatcher {
	if !cfg.Configured() {
		logger.Warn("SMTP not configured, emails will not be sent")
		return Disabled{}
	}
	return NewSMTP(cfg)
}

func (s *SMTP) Send(ctx context.Context, msg Message) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	m, receipt := buildMessage(s.from, msg)
	logger.Debug("sending email", "to", msg.To, "subject", msg.Subject, "bytes", len(msg.HTML))
	if err := s.dialer.DialAndSend(m); err != nil {
		return Receipt{}, fmt.Errorf("send to %s: %w", msg.To, err)
	}
	return receipt, nil
}

func buildMessage(from string, msg Message) (*gomail.Message, Receipt) {
	receipt := Receipt{MessageID: fmt.Sprintf("<%s@%s>", uuid.NewString(), domainOf(from))}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", receipt.MessageID)
	m.SetBody("text/plain", plainFallback)
	m.AddAlternative("text/html", msg.HTML)
	return m, receipt
}

func domainOf(addr string) string {
	addr = strings.TrimSuffix(addr, ">")
	if i := strings.LastIndex(addr, "@"); i >= 0 && i < len(addr)-1 {
		return addr[i+1:]
	}
	return "localhost"
}

// Disabled rejects every message.
type Disabled struct{}

func (Disabled) Send(_ context.Context, msg Message) (Receipt, error) {
	logger.Debug("email skipped", "to", msg.To, "subject", msg.Subject)
	return Receipt{}, ErrNotConfigured
}
