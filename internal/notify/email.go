package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"github.com/mabott/snmp-agent-app/internal/config"
)

// SMTPSender sends plain-text alert mail over SMTP with STARTTLS. The
// account credentials live behind a mutex because the credential watcher
// swaps them at runtime when the environment file changes.
type SMTPSender struct {
	server      string
	port        int
	addressFrom string
	addressTo   string

	mu       sync.RWMutex
	account  string
	password string
}

// NewSMTPSender creates a sender from the email channel configuration.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		server:      cfg.Server,
		port:        cfg.TLSPort,
		addressFrom: cfg.AddressFrom,
		addressTo:   cfg.AddressTo,
		account:     cfg.Account,
		password:    cfg.Password,
	}
}

// SetCredentials replaces the SMTP account credentials. In-flight sends keep
// the credentials they started with; the next send uses the new ones.
func (s *SMTPSender) SetCredentials(account, password string) {
	s.mu.Lock()
	s.account = account
	s.password = password
	s.mu.Unlock()
}

func (s *SMTPSender) credentials() (string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account, s.password
}

// Send delivers one message to the configured recipient. The context bounds
// the whole SMTP conversation via the dial deadline.
func (s *SMTPSender) Send(ctx context.Context, subject, body string) error {
	account, password := s.credentials()
	addr := net.JoinHostPort(s.server, fmt.Sprintf("%d", s.port))

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.server)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake with %s: %w", s.server, err)
	}
	defer client.Close()

	if err := client.StartTLS(&tls.Config{ServerName: s.server}); err != nil {
		return fmt.Errorf("starttls with %s: %w", s.server, err)
	}
	auth := smtp.PlainAuth("", account, password, s.server)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("smtp auth for %s: %w", account, err)
	}

	if err := client.Mail(s.addressFrom); err != nil {
		return fmt.Errorf("mail from %s: %w", s.addressFrom, err)
	}
	if err := client.Rcpt(s.addressTo); err != nil {
		return fmt.Errorf("rcpt to %s: %w", s.addressTo, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write([]byte(s.message(subject, body))); err != nil {
		w.Close()
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}

	return client.Quit()
}

func (s *SMTPSender) message(subject, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.addressFrom)
	fmt.Fprintf(&b, "To: %s\r\n", s.addressTo)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return b.String()
}
