// Package observability provides a metrics extension for Entitle that records
// lifecycle event counts via a MetricFactory.
package observability

import (
	"context"

	"github.com/jobdeck/entitle/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin               = (*MetricsExtension)(nil)
	_ plugin.OnInit               = (*MetricsExtension)(nil)
	_ plugin.OnEntitlementGranted = (*MetricsExtension)(nil)
	_ plugin.OnEntitlementRevoked = (*MetricsExtension)(nil)
	_ plugin.OnCustomerLinked     = (*MetricsExtension)(nil)
	_ plugin.OnWebhookReceived    = (*MetricsExtension)(nil)
	_ plugin.OnWebhookIgnored     = (*MetricsExtension)(nil)
	_ plugin.OnJobCreated         = (*MetricsExtension)(nil)
	_ plugin.OnDuplicateJob       = (*MetricsExtension)(nil)
	_ plugin.OnRateLimitDenied    = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as an Engine plugin to automatically track entitlement metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Entitlement metrics
	EntitlementGranted Counter
	EntitlementRevoked Counter
	CustomerLinked     Counter

	// Webhook metrics
	WebhookReceived Counter
	WebhookIgnored  Counter
	WebhookPayload  Histogram

	// Job metrics
	JobCreated    Counter
	DuplicateJobs Counter

	// Rate limit metrics
	RateLimitDenied Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Entitlement metrics
		EntitlementGranted: factory.Counter("entitle.entitlement.granted"),
		EntitlementRevoked: factory.Counter("entitle.entitlement.revoked"),
		CustomerLinked:     factory.Counter("entitle.customer.linked"),

		// Webhook metrics
		WebhookReceived: factory.Counter("entitle.webhook.received"),
		WebhookIgnored:  factory.Counter("entitle.webhook.ignored"),
		WebhookPayload:  factory.Histogram("entitle.webhook.payload_bytes"),

		// Job metrics
		JobCreated:    factory.Counter("entitle.job.created"),
		DuplicateJobs: factory.Counter("entitle.job.duplicates"),

		// Rate limit metrics
		RateLimitDenied: factory.Counter("entitle.ratelimit.denied"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Entitlement lifecycle hooks
// ──────────────────────────────────────────────────

// OnEntitlementGranted implements plugin.OnEntitlementGranted.
func (m *MetricsExtension) OnEntitlementGranted(_ context.Context, _, _, _ string) error {
	m.EntitlementGranted.Inc()
	return nil
}

// OnEntitlementRevoked implements plugin.OnEntitlementRevoked.
func (m *MetricsExtension) OnEntitlementRevoked(_ context.Context, _, _ string) error {
	m.EntitlementRevoked.Inc()
	return nil
}

// OnCustomerLinked implements plugin.OnCustomerLinked.
func (m *MetricsExtension) OnCustomerLinked(_ context.Context, _, _ string) error {
	m.CustomerLinked.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Webhook lifecycle hooks
// ──────────────────────────────────────────────────

// OnWebhookReceived implements plugin.OnWebhookReceived.
func (m *MetricsExtension) OnWebhookReceived(_ context.Context, _ string, payload []byte) error {
	m.WebhookReceived.Inc()
	m.WebhookPayload.Observe(float64(len(payload)))
	return nil
}

// OnWebhookIgnored implements plugin.OnWebhookIgnored.
func (m *MetricsExtension) OnWebhookIgnored(_ context.Context, _, _ string) error {
	m.WebhookIgnored.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// OnJobCreated implements plugin.OnJobCreated.
func (m *MetricsExtension) OnJobCreated(_ context.Context, _ interface{}) error {
	m.JobCreated.Inc()
	return nil
}

// OnDuplicateJob implements plugin.OnDuplicateJob.
func (m *MetricsExtension) OnDuplicateJob(_ context.Context, _, _ string) error {
	m.DuplicateJobs.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Rate limit hooks
// ──────────────────────────────────────────────────

// OnRateLimitDenied implements plugin.OnRateLimitDenied.
func (m *MetricsExtension) OnRateLimitDenied(_ context.Context, _ string, _ interface{}) error {
	m.RateLimitDenied.Inc()
	return nil
}
