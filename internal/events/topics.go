package events

// Topic constants for domain events emitted by the checkout core.
const (
	TopicOrderCreated       = "order.created"
	TopicOrderStatusChanged = "order.status_changed"
	TopicOrderCancelled     = "order.cancelled"
	TopicCustomerUpgraded   = "customer.tier_upgraded"
	TopicCustomerMarketing  = "customer.marketing"
	TopicSupplierLowStock   = "supplier.low_stock"
	TopicAdminAction        = "admin.action"
)

// DefaultTopics returns the canonical list of topics that support notifications.
func DefaultTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicOrderStatusChanged,
		TopicOrderCancelled,
		TopicCustomerUpgraded,
		TopicCustomerMarketing,
		TopicSupplierLowStock,
	}
}
