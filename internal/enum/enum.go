package enum

// ── Order lifecycle (CHECK constrained in DB) ──

const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// OrderSourceWeb is the only order source this API accepts.
const OrderSourceWeb = "web"

// ── Settings keys (app_settings table) ──

const SettingOrderStop = "order_stop"

// ── Change-feed event types ──

const (
	EventOrderCreated = "order.created"
	EventOrderUpdated = "order.updated"
	EventOrdersReset  = "orders.reset"

	// EventOrdersChanged is the catch-all emitted when a burst of changes is
	// collapsed into a single broadcast.
	EventOrdersChanged = "orders.changed"
)

// ── Order number formats ──

const (
	OrderNoFormatDaily = "daily" // YYYYMMDD-NNNN
	OrderNoFormatShort = "short" // ORD-YYYYMMDD-XXXXXX
)

// ── Dashboard urgency tiers (derived from order age, pending orders only) ──

const (
	UrgencyNormal   = "normal"
	UrgencyWarning  = "warning"
	UrgencyCritical = "critical"
)
