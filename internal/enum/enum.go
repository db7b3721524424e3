package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	SaleStatusOpen      = "open"
	SaleStatusFinalized = "finalized"
	SaleStatusCancelled = "cancelled"
)

const (
	ItemStatusPending   = "pending"
	ItemStatusReady     = "ready"
	ItemStatusDelivered = "delivered"
)

const (
	TableStatusFree        = "free"
	TableStatusOccupied    = "occupied"
	TableStatusReserved    = "reserved"
	TableStatusMaintenance = "maintenance"
)

const (
	CashSessionOpen   = "open"
	CashSessionClosed = "closed"
)

const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusDone       = "done"
	JobStatusFailed     = "failed"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	SaleKindTable = "table"
	SaleKindTab   = "tab"
)

const (
	PaymentMethodCash = "cash"
	PaymentMethodCard = "card"
	PaymentMethodPix  = "pix"
)

const (
	DeliveryModePrinter   = "printer"
	DeliveryModeMessaging = "messaging"
)

const (
	PricingRuleHighest         = "highest"
	PricingRuleWeightedAverage = "weighted_average"
	PricingRuleFixed           = "fixed"
)

const (
	EmployeeRoleAdmin   = "ADMIN"
	EmployeeRoleManager = "MANAGER"
	EmployeeRoleWaiter  = "WAITER"
	EmployeeRoleKitchen = "KITCHEN"
)

// ── Group B: Configurable labels (no DB constraint) ──

// Device classes that place orders. A shared terminal merges repeated products
// into one line; a per-seat device keeps every addition as its own line.
const (
	OriginTerminal = "terminal"
	OriginSeat     = "seat"
)

const AdministratorName = "Administrator"

const EventOrderChanged = "order-changed"
