package common

import (
	"sync"

	"github.com/rs/zerolog"
)

// EmailSender defines the contract for sending emails.
type EmailSender interface {
	Send(to, subject, body string) error
}

// InMemoryEmail provides a test-friendly email sender that records messages.
type InMemoryEmail struct {
	mu     sync.Mutex
	Outbox []Email
}

// Email represents a single email message captured by InMemoryEmail.
type Email struct {
	To      string
	Subject string
	Body    string
}

// Send records the email in memory.
func (m *InMemoryEmail) Send(to, subject, body string) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Outbox = append(m.Outbox, Email{To: to, Subject: subject, Body: body})
	return nil
}

// Sent returns a snapshot of the outbox.
func (m *InMemoryEmail) Sent() []Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Email(nil), m.Outbox...)
}

// LogEmailSender writes every message to the logger instead of a mail server.
type LogEmailSender struct {
	Logger zerolog.Logger
}

// Send implements EmailSender.
func (s LogEmailSender) Send(to, subject, body string) error {
	s.Logger.Info().Str("to", to).Str("subject", subject).Str("body", body).Msg("email_sent")
	return nil
}

// NopEmailSender implements EmailSender without performing any action.
type NopEmailSender struct{}

// Send implements EmailSender.
func (NopEmailSender) Send(string, string, string) error { return nil }
