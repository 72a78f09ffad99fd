package extension

import "time"

// Config holds the Entitle extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.entitle" or "entitle" keys).
type Config struct {
	// WebhookSecret is the billing provider's endpoint signing secret.
	// Without it the webhook route is not registered.
	WebhookSecret string `json:"webhook_secret" mapstructure:"webhook_secret" yaml:"webhook_secret"`

	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for entitle routes (default: "/entitle").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// IdempotencyWindow is the duplicate-job lookback window (default: 5m).
	IdempotencyWindow time.Duration `json:"idempotency_window" mapstructure:"idempotency_window" yaml:"idempotency_window"`

	// RateLimitMaxRequests is the number of export requests allowed per user
	// per window (default: 5). Zero after merge denies all exports.
	RateLimitMaxRequests int `json:"rate_limit_max_requests" mapstructure:"rate_limit_max_requests" yaml:"rate_limit_max_requests"`

	// RateLimitWindow is the sliding window length (default: 1h).
	RateLimitWindow time.Duration `json:"rate_limit_window" mapstructure:"rate_limit_window" yaml:"rate_limit_window"`

	// RateLimitMaxKeys bounds the in-memory limiter's tracked key space
	// (default: 10000).
	RateLimitMaxKeys int `json:"rate_limit_max_keys" mapstructure:"rate_limit_max_keys" yaml:"rate_limit_max_keys"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:             "/entitle",
		IdempotencyWindow:    5 * time.Minute,
		RateLimitMaxRequests: 5,
		RateLimitWindow:      time.Hour,
		RateLimitMaxKeys:     10000,
	}
}
