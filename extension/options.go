package extension

import (
	"time"

	entitle "github.com/jobdeck/entitle"
	"github.com/jobdeck/entitle/claims"
	"github.com/jobdeck/entitle/plugin"
	"github.com/jobdeck/entitle/ratelimit"
	"github.com/jobdeck/entitle/store"
)

// Option configures the Entitle Forge extension.
type Option func(*Extension)

// WithStore sets the document store for the engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithClaimsStore sets the claims store for the engine.
func WithClaimsStore(cs claims.Store) Option {
	return func(e *Extension) {
		e.claims = cs
	}
}

// WithRateLimiter sets the export rate limiter. When unset, an in-memory
// limiter is built from the resolved config.
func WithRateLimiter(l ratelimit.Limiter) Option {
	return func(e *Extension) {
		e.limiter = l
	}
}

// WithEngineOption passes an entitle.Option through to the underlying engine.
func WithEngineOption(opt entitle.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers an entitle plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, entitle.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithWebhookSecret sets the billing provider's endpoint signing secret.
func WithWebhookSecret(secret string) Option {
	return func(e *Extension) { e.config.WebhookSecret = secret }
}

// WithDisableRoutes prevents HTTP route registration.
func WithDisableRoutes() Option {
	return func(e *Extension) { e.config.DisableRoutes = true }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithBasePath sets the URL prefix for entitle routes.
func WithBasePath(path string) Option {
	return func(e *Extension) { e.config.BasePath = path }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithIdempotencyWindow sets the duplicate-job lookback window.
func WithIdempotencyWindow(d time.Duration) Option {
	return func(e *Extension) { e.config.IdempotencyWindow = d }
}

// WithRateLimit sets the export rate limit parameters.
func WithRateLimit(maxRequests int, window time.Duration) Option {
	return func(e *Extension) {
		e.config.RateLimitMaxRequests = maxRequests
		e.config.RateLimitWindow = window
	}
}
