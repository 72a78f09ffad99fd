// Package audithook bridges Entitle lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import an
// audit backend directly. Callers inject a RecorderFunc adapter that bridges
// to the concrete backend at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jobdeck/entitle/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin               = (*Extension)(nil)
	_ plugin.OnEntitlementGranted = (*Extension)(nil)
	_ plugin.OnEntitlementRevoked = (*Extension)(nil)
	_ plugin.OnCustomerLinked     = (*Extension)(nil)
	_ plugin.OnWebhookIgnored     = (*Extension)(nil)
	_ plugin.OnJobCreated         = (*Extension)(nil)
	_ plugin.OnDuplicateJob       = (*Extension)(nil)
	_ plugin.OnRateLimitDenied    = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// It is defined locally so that the audit_hook package does not depend on
// any particular audit system; callers inject the concrete recorder at
// wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Entitle lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Entitlement lifecycle hooks
// ──────────────────────────────────────────────────

// OnEntitlementGranted implements plugin.OnEntitlementGranted.
func (e *Extension) OnEntitlementGranted(ctx context.Context, userID, subscriptionID, status string) error {
	return e.record(ctx, ActionEntitlementGranted, SeverityInfo, OutcomeSuccess,
		ResourceEntitlement, userID, CategoryBilling, nil,
		"user_id", userID,
		"subscription_id", subscriptionID,
		"status", status,
	)
}

// OnEntitlementRevoked implements plugin.OnEntitlementRevoked.
func (e *Extension) OnEntitlementRevoked(ctx context.Context, userID, subscriptionID string) error {
	return e.record(ctx, ActionEntitlementRevoked, SeverityWarning, OutcomeSuccess,
		ResourceEntitlement, userID, CategoryBilling, nil,
		"user_id", userID,
		"subscription_id", subscriptionID,
	)
}

// OnCustomerLinked implements plugin.OnCustomerLinked.
func (e *Extension) OnCustomerLinked(ctx context.Context, userID, customerID string) error {
	return e.record(ctx, ActionCustomerLinked, SeverityInfo, OutcomeSuccess,
		ResourceCustomer, customerID, CategoryBilling, nil,
		"user_id", userID,
		"customer_id", customerID,
	)
}

// ──────────────────────────────────────────────────
// Webhook lifecycle hooks
// ──────────────────────────────────────────────────

// OnWebhookIgnored implements plugin.OnWebhookIgnored.
func (e *Extension) OnWebhookIgnored(ctx context.Context, eventType, reason string) error {
	return e.record(ctx, ActionWebhookIgnored, SeverityInfo, OutcomePartial,
		ResourceWebhook, "", CategoryIntegration, nil,
		"event_type", eventType,
		"reason", reason,
	)
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// OnJobCreated implements plugin.OnJobCreated.
func (e *Extension) OnJobCreated(ctx context.Context, _ interface{}) error {
	return e.record(ctx, ActionJobCreated, SeverityInfo, OutcomeSuccess,
		ResourceJob, "", CategoryContent, nil,
		"event", "job_created",
	)
}

// OnDuplicateJob implements plugin.OnDuplicateJob.
func (e *Extension) OnDuplicateJob(ctx context.Context, ownerID, title string) error {
	return e.record(ctx, ActionJobDuplicate, SeverityInfo, OutcomePartial,
		ResourceJob, "", CategoryContent, nil,
		"owner_id", ownerID,
		"title", title,
	)
}

// ──────────────────────────────────────────────────
// Rate limit hooks
// ──────────────────────────────────────────────────

// OnRateLimitDenied implements plugin.OnRateLimitDenied.
func (e *Extension) OnRateLimitDenied(ctx context.Context, key string, _ interface{}) error {
	return e.record(ctx, ActionRateLimitDenied, SeverityWarning, OutcomeFailure,
		ResourceRateLimit, key, CategoryAccess, nil,
		"key", key,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
