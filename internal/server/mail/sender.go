// Package mail delivers notification emails through a background queue so
// that request handling never blocks on SMTP round-trips.
package mail

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/dmitrijs2005/vaultshare/internal/logging"
)

// Message is a single outgoing email.
type Message struct {
	Subject    string
	Body       string
	Recipients []string
}

// Sender delivers one message synchronously.
type Sender interface {
	Send(msg Message) error
}

// SMTPSender delivers messages through a plain SMTP server.
type SMTPSender struct {
	addr string
	from string
}

// NewSMTPSender constructs a sender for the given server address (host:port)
// and envelope sender.
func NewSMTPSender(addr string, from string) *SMTPSender {
	return &SMTPSender{addr: addr, from: from}
}

func (s *SMTPSender) Send(msg Message) error {
	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		s.from, strings.Join(msg.Recipients, ", "), msg.Subject, msg.Body)
	if err := smtp.SendMail(s.addr, nil, s.from, msg.Recipients, []byte(body)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// LogSender writes messages to the log instead of delivering them. Used in
// development when no SMTP server is configured.
type LogSender struct {
	logger logging.Logger
}

func NewLogSender(logger logging.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(msg Message) error {
	s.logger.Info(context.Background(), "mail (not sent)",
		"subject", msg.Subject,
		"recipients", strings.Join(msg.Recipients, ", "),
		"body", msg.Body,
	)
	return nil
}
