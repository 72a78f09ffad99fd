package audithook

// Action constants for audit events.
const (
	// Entitlement actions
	ActionEntitlementGranted = "entitlement.granted"
	ActionEntitlementRevoked = "entitlement.revoked"
	ActionCustomerLinked     = "customer.linked"

	// Webhook actions
	ActionWebhookReceived = "webhook.received"
	ActionWebhookIgnored  = "webhook.ignored"

	// Job actions
	ActionJobCreated   = "job.created"
	ActionJobDuplicate = "job.duplicate"

	// Rate limit actions
	ActionRateLimitDenied = "ratelimit.denied"
)

// Resource constants for audit events.
const (
	ResourceEntitlement = "entitlement"
	ResourceCustomer    = "customer"
	ResourceWebhook     = "webhook"
	ResourceJob         = "job"
	ResourceRateLimit   = "ratelimit"
)

// Category constants for audit events.
const (
	CategoryBilling     = "billing"
	CategoryAccess      = "access"
	CategoryContent     = "content"
	CategoryIntegration = "integration"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
