// Package plugin provides an extensible plugin system for Entitle.
// Plugins can hook into various lifecycle events to extend functionality.
package plugin

import (
	"context"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, e interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Entitlement hooks
// ──────────────────────────────────────────────────

// OnEntitlementGranted is called when a user's subscription becomes active.
type OnEntitlementGranted interface {
	Plugin
	OnEntitlementGranted(ctx context.Context, userID, subscriptionID, status string) error
}

// OnEntitlementRevoked is called when a user's subscription is deleted.
type OnEntitlementRevoked interface {
	Plugin
	OnEntitlementRevoked(ctx context.Context, userID, subscriptionID string) error
}

// OnCustomerLinked is called when a billing customer is linked to a user.
type OnCustomerLinked interface {
	Plugin
	OnCustomerLinked(ctx context.Context, userID, customerID string) error
}

// ──────────────────────────────────────────────────
// Webhook hooks
// ──────────────────────────────────────────────────

// OnWebhookReceived is called for every verified webhook event, before processing.
type OnWebhookReceived interface {
	Plugin
	OnWebhookReceived(ctx context.Context, eventType string, payload []byte) error
}

// OnWebhookIgnored is called when a verified event is dropped without effect,
// either because its type is unhandled or because no user matched.
type OnWebhookIgnored interface {
	Plugin
	OnWebhookIgnored(ctx context.Context, eventType, reason string) error
}

// ──────────────────────────────────────────────────
// Job hooks
// ──────────────────────────────────────────────────

// OnJobCreated is called when a new job posting is created.
type OnJobCreated interface {
	Plugin
	OnJobCreated(ctx context.Context, job interface{}) error
}

// OnDuplicateJob is called when job creation is absorbed by the idempotency guard.
type OnDuplicateJob interface {
	Plugin
	OnDuplicateJob(ctx context.Context, ownerID, title string) error
}

// ──────────────────────────────────────────────────
// Rate limit hooks
// ──────────────────────────────────────────────────

// OnRateLimitDenied is called when a request is denied by the rate limiter.
// The result is a ratelimit.Result carrying the retry metadata.
type OnRateLimitDenied interface {
	Plugin
	OnRateLimitDenied(ctx context.Context, key string, result interface{}) error
}
