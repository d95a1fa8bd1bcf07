// Package notify delivers OTP codes over email and SMS and enforces the
// duplicate-send window shared by both registration and reset flows.
package notify

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"github.com/krishiconnect/backend/internal/logger"
)

// EmailSender delivers a multipart message to a single recipient.
type EmailSender interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// SMTPSender sends mail through an authenticated SMTP relay.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	fromName string
	fromAddr string
}

// NewSMTPSender creates a sender for the given relay.
func NewSMTPSender(host string, port int, username, password, fromName, fromAddr string) *SMTPSender {
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		fromName: fromName,
		fromAddr: fromAddr,
	}
}

// Send builds a multipart/alternative message and submits it. The HTML
// part is listed last so capable clients prefer it.
func (s *SMTPSender) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := s.buildMessage(to, subject, htmlBody, textBody)
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	auth := smtp.PlainAuth("", s.username, s.password, s.host)

	if err := smtp.SendMail(addr, auth, s.fromAddr, []string{to}, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", maskEmail(to), err)
	}
	return nil
}

func (s *SMTPSender) buildMessage(to, subject, htmlBody, textBody string) []byte {
	const boundary = "krishiconnect-alt-boundary"

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", s.fromName), s.fromAddr)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n", boundary)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(textBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s\r\n", boundary)
	b.WriteString("Content-Type: text/html; charset=utf-8\r\n\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")

	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}

// LogEmailSender writes messages to the log instead of sending them.
// Used in development when no SMTP credentials are configured.
type LogEmailSender struct{}

func (LogEmailSender) Send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	logger.Log.WithField("to", maskEmail(to)).WithField("subject", subject).Info("email (dev mode, not sent)")
	return nil
}

// maskEmail hides most of the local part for log output.
func maskEmail(addr string) string {
	at := strings.Index(addr, "@")
	if at <= 2 {
		return "***" + addr[max(at, 0):]
	}
	return addr[:2] + "***" + addr[at:]
}
