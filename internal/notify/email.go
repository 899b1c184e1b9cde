package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/noah-isme/toko-checkout/internal/common"
	"github.com/noah-isme/toko-checkout/internal/events"
)

// EmailNotifier sends transactional emails for selected topics.
type EmailNotifier struct {
	Mail         common.EmailSender
	Enabled      bool
	From         string
	TopicToggles map[string]bool
}

// Notify implements the events.Notifier interface.
func (n EmailNotifier) Notify(_ context.Context, event events.Event) error {
	if !n.Enabled || n.Mail == nil {
		return nil
	}
	if n.TopicToggles != nil {
		if enabled, ok := n.TopicToggles[event.Topic]; ok && !enabled {
			return nil
		}
	}
	payload, err := decode(event)
	if err != nil {
		return fmt.Errorf("email notify: %w", err)
	}
	to := str(payload, "email")
	if to == "" {
		return nil
	}
	subject, body := render(event.Topic, payload)
	if n.From != "" {
		body += "\n\n-- " + n.From
	}
	return n.Mail.Send(to, subject, body)
}

func decode(event events.Event) (map[string]any, error) {
	payload := map[string]any{}
	if len(event.Payload) > 0 {
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
	}
	return payload, nil
}

func str(payload map[string]any, key string) string {
	switch v := payload[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}

func render(topic string, p map[string]any) (string, string) {
	orderID := str(p, "orderId")
	switch topic {
	case events.TopicOrderCreated:
		return fmt.Sprintf("Order %s confirmed", orderID),
			fmt.Sprintf("Order %s confirmed! Total: $%s", orderID, str(p, "total"))
	case events.TopicOrderStatusChanged:
		body := fmt.Sprintf("Order %s status changed to %s", orderID, str(p, "status"))
		if tracking := str(p, "trackingNumber"); tracking != "" {
			body += fmt.Sprintf("\nTracking number: %s", tracking)
		}
		return fmt.Sprintf("Order %s update", orderID), body
	case events.TopicOrderCancelled:
		return fmt.Sprintf("Order %s cancelled", orderID),
			fmt.Sprintf("Order %s has been cancelled. Reason: %s", orderID, str(p, "reason"))
	case events.TopicCustomerUpgraded:
		return "Membership upgraded",
			fmt.Sprintf("Your membership moved from %s to %s.", str(p, "from"), str(p, "to"))
	case events.TopicCustomerMarketing:
		return "News from the store", str(p, "message")
	case events.TopicSupplierLowStock:
		return fmt.Sprintf("Low stock alert for %s", str(p, "product")),
			fmt.Sprintf("Low stock alert for %s (%s units left)", str(p, "product"), str(p, "quantity"))
	default:
		return fmt.Sprintf("Notification %s", topic), ""
	}
}
