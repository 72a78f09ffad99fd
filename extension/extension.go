// Package extension provides the Forge extension adapter for Entitle.
//
// It implements the forge.Extension interface to integrate Entitle
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.entitle" or "entitle" keys.
package extension

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	entitle "github.com/jobdeck/entitle"
	"github.com/jobdeck/entitle/claims"
	"github.com/jobdeck/entitle/ratelimit"
	"github.com/jobdeck/entitle/rest"
	"github.com/jobdeck/entitle/store"
	"github.com/jobdeck/entitle/store/memory"
	"github.com/jobdeck/entitle/webhook"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "entitle"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Billing-driven entitlement reconciliation engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Entitle as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *entitle.Engine
	store      store.Store
	claims     claims.Store
	limiter    ratelimit.Limiter
	engineOpts []entitle.Option
	handler    http.Handler
}

// New creates a new Entitle Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Entitle instance.
// This is nil until Register is called.
func (e *Extension) Engine() *entitle.Engine { return e.engine }

// Handler returns the HTTP handler serving the job board and webhook routes,
// rooted at the configured base path. It is nil until Register is called, and
// stays nil when routes are disabled.
func (e *Extension) Handler() http.Handler { return e.handler }

// Register implements [forge.Extension]. It loads configuration,
// initializes the entitle engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory stores if none were provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}
	if e.claims == nil {
		e.claims = claims.NewMemoryStore()
	}

	limitCfg := ratelimit.Config{
		MaxRequests: e.config.RateLimitMaxRequests,
		Window:      e.config.RateLimitWindow,
		MaxKeys:     e.config.RateLimitMaxKeys,
	}
	if e.limiter == nil {
		e.limiter = ratelimit.NewMemoryLimiter(limitCfg)
	}

	// Build entitle options from resolved config.
	opts := e.buildEngineOpts()

	eng := entitle.New(e.store, e.claims, opts...)
	e.engine = eng

	if !e.config.DisableRoutes {
		e.handler = e.buildHandler(limitCfg)
	}

	return vessel.Provide(fapp.Container(), func() (*entitle.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("entitle: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("entitle: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs entitle.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []entitle.Option {
	opts := make([]entitle.Option, 0, len(e.engineOpts)+2)

	if e.config.IdempotencyWindow > 0 {
		opts = append(opts, entitle.WithIdempotencyWindow(e.config.IdempotencyWindow))
	}

	opts = append(opts, entitle.WithRateLimiter(e.limiter))

	// Append any pass-through entitle options.
	opts = append(opts, e.engineOpts...)

	return opts
}

// buildHandler composes the REST routes and, when a signing secret is
// configured, the billing webhook endpoint under the base path.
func (e *Extension) buildHandler(limitCfg ratelimit.Config) http.Handler {
	logger := slog.Default().With("component", "entitle")

	mux := http.NewServeMux()
	mux.Handle("/", rest.New(e.engine, limitCfg, logger).Mux())

	if e.config.WebhookSecret != "" {
		verifier := webhook.NewVerifier(e.config.WebhookSecret)
		mux.Handle("POST /webhooks/billing", webhook.NewHandler(verifier, e.engine, logger))
	}

	return http.StripPrefix(e.config.BasePath, mux)
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("entitle: configuration is required but not found in config files; " +
				"ensure 'extensions.entitle' or 'entitle' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("entitle: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("idempotency_window", e.config.IdempotencyWindow),
		forge.F("rate_limit_max_requests", e.config.RateLimitMaxRequests),
		forge.F("rate_limit_window", e.config.RateLimitWindow),
		forge.F("webhook_secret_set", e.config.WebhookSecret != ""),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.entitle" first (namespaced pattern).
	if cm.IsSet("extensions.entitle") {
		if err := cm.Bind("extensions.entitle", &cfg); err == nil {
			e.Logger().Debug("entitle: loaded config from file",
				forge.F("key", "extensions.entitle"),
			)
			return cfg, true
		}
		e.Logger().Warn("entitle: failed to bind extensions.entitle config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "entitle" key.
	if cm.IsSet("entitle") {
		if err := cm.Bind("entitle", &cfg); err == nil {
			e.Logger().Debug("entitle: loaded config from file",
				forge.F("key", "entitle"),
			)
			return cfg, true
		}
		e.Logger().Warn("entitle: failed to bind entitle config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.IdempotencyWindow == 0 {
		cfg.IdempotencyWindow = defaults.IdempotencyWindow
	}
	if cfg.RateLimitMaxRequests == 0 {
		cfg.RateLimitMaxRequests = defaults.RateLimitMaxRequests
	}
	if cfg.RateLimitWindow == 0 {
		cfg.RateLimitWindow = defaults.RateLimitWindow
	}
	if cfg.RateLimitMaxKeys == 0 {
		cfg.RateLimitMaxKeys = defaults.RateLimitMaxKeys
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.BasePath == "" && programmaticConfig.BasePath != "" {
		yamlConfig.BasePath = programmaticConfig.BasePath
	}
	if yamlConfig.WebhookSecret == "" && programmaticConfig.WebhookSecret != "" {
		yamlConfig.WebhookSecret = programmaticConfig.WebhookSecret
	}

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.IdempotencyWindow == 0 && programmaticConfig.IdempotencyWindow != 0 {
		yamlConfig.IdempotencyWindow = programmaticConfig.IdempotencyWindow
	}
	if yamlConfig.RateLimitMaxRequests == 0 && programmaticConfig.RateLimitMaxRequests != 0 {
		yamlConfig.RateLimitMaxRequests = programmaticConfig.RateLimitMaxRequests
	}
	if yamlConfig.RateLimitWindow == 0 && programmaticConfig.RateLimitWindow != 0 {
		yamlConfig.RateLimitWindow = programmaticConfig.RateLimitWindow
	}
	if yamlConfig.RateLimitMaxKeys == 0 && programmaticConfig.RateLimitMaxKeys != 0 {
		yamlConfig.RateLimitMaxKeys = programmaticConfig.RateLimitMaxKeys
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
