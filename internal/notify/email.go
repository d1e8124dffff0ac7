package notify

import (
	"context"
	"fmt"
	"net/smtp"

	"meanrev/internal/ledger"
)

// EmailSink mails the daily summary over SMTP with STARTTLS.
type EmailSink struct {
	host     string
	port     int
	user     string
	password string
	from     string
	to       string
}

func NewEmailSink(host string, port int, user, password, from, to string) *EmailSink {
	return &EmailSink{host: host, port: port, user: user, password: password, from: from, to: to}
}

func (s *EmailSink) Publish(ctx context.Context, events []ledger.Event) error {
	body := Summary(events)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Daily trading summary\r\n\r\n%s", s.from, s.to, body)

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.password, s.host)
	}
	if err := smtp.SendMail(addr, auth, s.from, []string{s.to}, []byte(msg)); err != nil {
		return fmt.Errorf("send summary email: %w", err)
	}
	return nil
}
