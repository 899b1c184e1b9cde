package notify

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/events"
)

// SMSSender delivers a short text message.
type SMSSender interface {
	SendSMS(to, message string) error
}

// LogSMSSender writes messages to the logger.
type LogSMSSender struct {
	Logger zerolog.Logger
}

// SendSMS implements SMSSender.
func (s LogSMSSender) SendSMS(to, message string) error {
	s.Logger.Info().Str("to", to).Str("message", message).Msg("sms_sent")
	return nil
}

// SMSNotifier texts order confirmations to customers with a phone number.
type SMSNotifier struct {
	SMS SMSSender
}

// Notify implements events.Notifier.
func (n SMSNotifier) Notify(_ context.Context, event events.Event) error {
	if n.SMS == nil || event.Topic != events.TopicOrderCreated {
		return nil
	}
	payload, err := decode(event)
	if err != nil {
		return fmt.Errorf("sms notify: %w", err)
	}
	phone := str(payload, "phone")
	if phone == "" {
		return nil
	}
	return n.SMS.SendSMS(phone, fmt.Sprintf("Order %s confirmed", str(payload, "orderId")))
}
