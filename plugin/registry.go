package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit               []OnInit
	onShutdown           []OnShutdown
	onEntitlementGranted []OnEntitlementGranted
	onEntitlementRevoked []OnEntitlementRevoked
	onCustomerLinked     []OnCustomerLinked
	onWebhookReceived    []OnWebhookReceived
	onWebhookIgnored     []OnWebhookIgnored
	onJobCreated         []OnJobCreated
	onDuplicateJob       []OnDuplicateJob
	onRateLimitDenied    []OnRateLimitDenied
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnEntitlementGranted); ok {
		r.onEntitlementGranted = append(r.onEntitlementGranted, v)
	}
	if v, ok := p.(OnEntitlementRevoked); ok {
		r.onEntitlementRevoked = append(r.onEntitlementRevoked, v)
	}
	if v, ok := p.(OnCustomerLinked); ok {
		r.onCustomerLinked = append(r.onCustomerLinked, v)
	}
	if v, ok := p.(OnWebhookReceived); ok {
		r.onWebhookReceived = append(r.onWebhookReceived, v)
	}
	if v, ok := p.(OnWebhookIgnored); ok {
		r.onWebhookIgnored = append(r.onWebhookIgnored, v)
	}
	if v, ok := p.(OnJobCreated); ok {
		r.onJobCreated = append(r.onJobCreated, v)
	}
	if v, ok := p.(OnDuplicateJob); ok {
		r.onDuplicateJob = append(r.onDuplicateJob, v)
	}
	if v, ok := p.(OnRateLimitDenied); ok {
		r.onRateLimitDenied = append(r.onRateLimitDenied, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	// Check each interface
	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	// List all interfaces to check
	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnEntitlementGranted)(nil)).Elem(), "OnEntitlementGranted")
	checkInterface(reflect.TypeOf((*OnEntitlementRevoked)(nil)).Elem(), "OnEntitlementRevoked")
	checkInterface(reflect.TypeOf((*OnCustomerLinked)(nil)).Elem(), "OnCustomerLinked")
	checkInterface(reflect.TypeOf((*OnWebhookReceived)(nil)).Elem(), "OnWebhookReceived")
	checkInterface(reflect.TypeOf((*OnWebhookIgnored)(nil)).Elem(), "OnWebhookIgnored")
	checkInterface(reflect.TypeOf((*OnJobCreated)(nil)).Elem(), "OnJobCreated")
	checkInterface(reflect.TypeOf((*OnDuplicateJob)(nil)).Elem(), "OnDuplicateJob")
	checkInterface(reflect.TypeOf((*OnRateLimitDenied)(nil)).Elem(), "OnRateLimitDenied")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitEntitlementGranted emits an entitlement granted event.
func (r *Registry) EmitEntitlementGranted(ctx context.Context, userID, subscriptionID, status string) {
	r.mu.RLock()
	plugins := r.onEntitlementGranted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnEntitlementGranted(ctx, userID, subscriptionID, status)
		}); err != nil {
			r.logger.Warn("plugin OnEntitlementGranted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitEntitlementRevoked emits an entitlement revoked event.
func (r *Registry) EmitEntitlementRevoked(ctx context.Context, userID, subscriptionID string) {
	r.mu.RLock()
	plugins := r.onEntitlementRevoked
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnEntitlementRevoked(ctx, userID, subscriptionID)
		}); err != nil {
			r.logger.Warn("plugin OnEntitlementRevoked failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCustomerLinked emits a customer linked event.
func (r *Registry) EmitCustomerLinked(ctx context.Context, userID, customerID string) {
	r.mu.RLock()
	plugins := r.onCustomerLinked
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCustomerLinked(ctx, userID, customerID)
		}); err != nil {
			r.logger.Warn("plugin OnCustomerLinked failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitWebhookReceived emits a webhook received event.
func (r *Registry) EmitWebhookReceived(ctx context.Context, eventType string, payload []byte) {
	r.mu.RLock()
	plugins := r.onWebhookReceived
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnWebhookReceived(ctx, eventType, payload)
		}); err != nil {
			r.logger.Warn("plugin OnWebhookReceived failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitWebhookIgnored emits a webhook ignored event.
func (r *Registry) EmitWebhookIgnored(ctx context.Context, eventType, reason string) {
	r.mu.RLock()
	plugins := r.onWebhookIgnored
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnWebhookIgnored(ctx, eventType, reason)
		}); err != nil {
			r.logger.Warn("plugin OnWebhookIgnored failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitJobCreated emits a job created event.
func (r *Registry) EmitJobCreated(ctx context.Context, job interface{}) {
	r.mu.RLock()
	plugins := r.onJobCreated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnJobCreated(ctx, job)
		}); err != nil {
			r.logger.Warn("plugin OnJobCreated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitDuplicateJob emits a duplicate job event.
func (r *Registry) EmitDuplicateJob(ctx context.Context, ownerID, title string) {
	r.mu.RLock()
	plugins := r.onDuplicateJob
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnDuplicateJob(ctx, ownerID, title)
		}); err != nil {
			r.logger.Warn("plugin OnDuplicateJob failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitRateLimitDenied emits a rate limit denied event.
func (r *Registry) EmitRateLimitDenied(ctx context.Context, key string, result interface{}) {
	r.mu.RLock()
	plugins := r.onRateLimitDenied
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnRateLimitDenied(ctx, key, result)
		}); err != nil {
			r.logger.Warn("plugin OnRateLimitDenied failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the reconciliation pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
