package entitle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jobdeck/entitle/claims"
	"github.com/jobdeck/entitle/event"
	"github.com/jobdeck/entitle/id"
	"github.com/jobdeck/entitle/job"
	"github.com/jobdeck/entitle/plugin"
	"github.com/jobdeck/entitle/ratelimit"
	"github.com/jobdeck/entitle/store"
	"github.com/jobdeck/entitle/types"
	"github.com/jobdeck/entitle/user"
)

// DefaultIdempotencyWindow is how far back the duplicate-job query looks.
const DefaultIdempotencyWindow = 5 * time.Minute

// Engine is the entitlement reconciliation engine. It keeps the claims
// store and the document store in agreement with the billing provider's
// view of each customer, guards job creation against duplicate
// submissions, and rate-limits export requests.
type Engine struct {
	store   store.Store
	claims  claims.Store
	limiter ratelimit.Limiter
	plugins *plugin.Registry
	logger  *slog.Logger

	clock             func() time.Time
	idempotencyWindow time.Duration
}

// New creates a new Engine instance.
func New(s store.Store, cs claims.Store, opts ...Option) *Engine {
	e := &Engine{
		store:             s,
		claims:            cs,
		plugins:           plugin.NewRegistry(),
		logger:            slog.Default(),
		clock:             func() time.Time { return time.Now().UTC() },
		idempotencyWindow: DefaultIdempotencyWindow,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine instance.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithRateLimiter sets the limiter used by the export path. Without one,
// exports are unlimited.
func WithRateLimiter(l ratelimit.Limiter) Option {
	return func(e *Engine) {
		e.limiter = l
	}
}

// WithIdempotencyWindow overrides the duplicate-job lookback window.
func WithIdempotencyWindow(d time.Duration) Option {
	return func(e *Engine) {
		e.idempotencyWindow = d
	}
}

// WithClock injects a time source for tests.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// Start migrates the store and initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("entitle started",
		"idempotency_window", e.idempotencyWindow,
		"rate_limited", e.limiter != nil,
	)

	return nil
}

// Stop shuts down the Engine.
func (e *Engine) Stop() error {
	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// ──────────────────────────────────────────────────
// Webhook event reconciliation
// ──────────────────────────────────────────────────

// HandleEvent applies a verified provider event to the user's entitlement
// state. Unhandled event types and events for unknown customers are logged
// no-ops, never errors: the provider's retry loop cannot repair them.
//
// Entitlement is granted on subscription created/updated events carrying an
// entitling status, but only ever revoked by subscription deleted. A
// non-entitling update (past_due, incomplete, ...) leaves the user's access
// untouched so transient payment trouble does not flap access off and on.
func (e *Engine) HandleEvent(ctx context.Context, ev *event.Event) error {
	e.plugins.EmitWebhookReceived(ctx, string(ev.Type), ev.Raw)

	switch ev.Type {
	case event.TypeSubscriptionCreated, event.TypeSubscriptionUpdated:
		sub, err := ev.Subscription()
		if err != nil {
			return err
		}
		return e.reconcileSubscription(ctx, ev, sub)

	case event.TypeSubscriptionDeleted:
		sub, err := ev.Subscription()
		if err != nil {
			return err
		}
		return e.revokeEntitlement(ctx, ev, sub)

	case event.TypeCheckoutCompleted:
		session, err := ev.CheckoutSession()
		if err != nil {
			return err
		}
		return e.linkCustomer(ctx, ev, session)

	default:
		e.logger.Info("webhook ignored",
			"event_id", ev.ID,
			"type", string(ev.Type),
			"reason", "unhandled type",
		)
		e.plugins.EmitWebhookIgnored(ctx, string(ev.Type), "unhandled type")
		return nil
	}
}

func (e *Engine) reconcileSubscription(ctx context.Context, ev *event.Event, sub *event.Subscription) error {
	if !event.StatusEntitles(sub.Status) {
		e.logger.Info("subscription event left entitlement unchanged",
			"event_id", ev.ID,
			"type", string(ev.Type),
			"subscription_id", sub.ID,
			"status", sub.Status,
		)
		e.plugins.EmitWebhookIgnored(ctx, string(ev.Type), "non-entitling status")
		return nil
	}

	u, err := e.store.GetUserByBillingCustomerID(ctx, sub.Customer)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.logger.Warn("subscription event matched no user",
				"event_id", ev.ID,
				"type", string(ev.Type),
				"customer_id", sub.Customer,
			)
			e.plugins.EmitWebhookIgnored(ctx, string(ev.Type), "no user for customer")
			return nil
		}
		return err
	}

	return e.applyEntitlement(ctx, u.ID, user.Entitlement{
		SubActive:          true,
		BillingCustomerID:  sub.Customer,
		SubscriptionID:     sub.ID,
		SubscriptionStatus: sub.Status,
	}, func() {
		e.plugins.EmitEntitlementGranted(ctx, u.ID, sub.ID, sub.Status)
	})
}

func (e *Engine) revokeEntitlement(ctx context.Context, ev *event.Event, sub *event.Subscription) error {
	u, err := e.store.GetUserByBillingCustomerID(ctx, sub.Customer)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.logger.Warn("subscription deletion matched no user",
				"event_id", ev.ID,
				"customer_id", sub.Customer,
			)
			e.plugins.EmitWebhookIgnored(ctx, string(ev.Type), "no user for customer")
			return nil
		}
		return err
	}

	return e.applyEntitlement(ctx, u.ID, user.Entitlement{
		SubActive:          false,
		BillingCustomerID:  sub.Customer,
		SubscriptionID:     "",
		SubscriptionStatus: user.StatusCanceled,
	}, func() {
		e.plugins.EmitEntitlementRevoked(ctx, u.ID, sub.ID)
	})
}

// applyEntitlement performs the dual write: claims store first, then the
// document-store mirror. The writes are sequential with no transaction
// across systems, so a mirror failure after a successful claims write
// leaves the claims authoritative and relies on the provider's next event
// (or re-delivery) to converge the mirror.
func (e *Engine) applyEntitlement(ctx context.Context, userID string, ent user.Entitlement, emit func()) error {
	existing, err := e.claims.Get(ctx, userID)
	if err != nil {
		return err
	}

	merged := claims.Merge(existing, claims.Update{
		SubActive:         ent.SubActive,
		BillingCustomerID: ent.BillingCustomerID,
		SubscriptionID:    ent.SubscriptionID,
	}, e.clock())

	if err := e.claims.Set(ctx, userID, merged); err != nil {
		return err
	}

	if err := e.store.SetUserEntitlement(ctx, userID, ent); err != nil {
		e.logger.Error("entitlement mirror write failed after claims update",
			"user_id", userID,
			"sub_active", ent.SubActive,
			"error", err,
		)
		return err
	}

	e.logger.Info("entitlement updated",
		"user_id", userID,
		"sub_active", ent.SubActive,
		"subscription_status", ent.SubscriptionStatus,
	)
	emit()
	return nil
}

// linkCustomer records the user-to-billing-customer association carried by
// a completed checkout session. Linkage is all this event does; the
// entitlement itself arrives on the subscription events, which Stripe may
// deliver before or after this one.
func (e *Engine) linkCustomer(ctx context.Context, ev *event.Event, session *event.CheckoutSession) error {
	userID := session.ClientReferenceID
	if userID == "" {
		userID = session.Metadata["userId"]
	}
	if userID == "" || session.Customer == "" {
		e.logger.Warn("checkout session missing linkage fields",
			"event_id", ev.ID,
			"session_id", session.ID,
			"has_user", userID != "",
			"has_customer", session.Customer != "",
		)
		e.plugins.EmitWebhookIgnored(ctx, string(ev.Type), "missing linkage fields")
		return nil
	}

	if err := e.store.LinkBillingCustomer(ctx, userID, session.Customer); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.logger.Warn("checkout session referenced unknown user",
				"event_id", ev.ID,
				"user_id", userID,
			)
			e.plugins.EmitWebhookIgnored(ctx, string(ev.Type), "no such user")
			return nil
		}
		return err
	}

	e.logger.Info("billing customer linked",
		"user_id", userID,
		"customer_id", session.Customer,
	)
	e.plugins.EmitCustomerLinked(ctx, userID, session.Customer)
	return nil
}

// ──────────────────────────────────────────────────
// User management
// ──────────────────────────────────────────────────

// CreateUser registers a user document.
func (e *Engine) CreateUser(ctx context.Context, u *user.User) error {
	if u.ID == "" {
		return ValidationError{Field: "id", Message: "must not be empty"}
	}
	now := e.clock()
	u.Entity = types.Entity{CreatedAt: now, UpdatedAt: now}

	return e.store.CreateUser(ctx, u)
}

// GetUser retrieves a user by ID.
func (e *Engine) GetUser(ctx context.Context, userID string) (*user.User, error) {
	return e.store.GetUser(ctx, userID)
}

// IsEntitled reports whether the user's claims mark them as entitled.
// This is the read the authorization middleware performs; it consults the
// claims store only, never the document-store mirror.
func (e *Engine) IsEntitled(ctx context.Context, userID string) (bool, error) {
	c, err := e.claims.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return c.SubActive(), nil
}

// ──────────────────────────────────────────────────
// Job management
// ──────────────────────────────────────────────────

// CreateJob creates a job posting behind the idempotency guard. A second
// submission with the same owner and exact title inside the lookback
// window returns the existing posting with AlreadyExists set instead of
// creating a duplicate. A failed duplicate query fails the request: a
// broken store must not be mistaken for "no duplicate".
func (e *Engine) CreateJob(ctx context.Context, j *job.Job) (*job.CreateResult, error) {
	if j.OwnerID == "" {
		return nil, ValidationError{Field: "owner_id", Message: "must not be empty"}
	}
	if j.Title == "" {
		return nil, ValidationError{Field: "title", Message: "must not be empty"}
	}

	since := e.clock().Add(-e.idempotencyWindow)
	existing, err := e.store.FindRecentJobByOwnerTitle(ctx, j.OwnerID, j.Title, since)
	switch {
	case err == nil:
		e.logger.Info("duplicate job submission absorbed",
			"owner_id", j.OwnerID,
			"title", j.Title,
			"existing_id", existing.ID.String(),
		)
		e.plugins.EmitDuplicateJob(ctx, j.OwnerID, j.Title)
		return &job.CreateResult{Job: existing, AlreadyExists: true}, nil

	case errors.Is(err, ErrJobNotFound):
		// No duplicate, proceed with creation.

	default:
		return nil, errors.Join(ErrDuplicateCheckFailed, err)
	}

	if j.ID.IsNil() {
		j.ID = id.NewJobID()
	}
	if j.Status == "" {
		j.Status = job.StatusOpen
	}
	now := e.clock()
	j.Entity = types.Entity{CreatedAt: now, UpdatedAt: now}

	if err := e.store.CreateJob(ctx, j); err != nil {
		return nil, err
	}

	e.plugins.EmitJobCreated(ctx, j)
	return &job.CreateResult{Job: j}, nil
}

// GetJob retrieves a job by ID.
func (e *Engine) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return e.store.GetJob(ctx, jobID)
}

// ListJobs lists an owner's job postings.
func (e *Engine) ListJobs(ctx context.Context, ownerID string, opts job.ListOpts) ([]*job.Job, error) {
	return e.store.ListJobsByOwner(ctx, ownerID, opts)
}

// ──────────────────────────────────────────────────
// Export
// ──────────────────────────────────────────────────

// Export returns all of the owner's postings, subject to the per-user
// rate limit. On denial the returned Result carries the retry metadata
// alongside ErrRateLimited.
func (e *Engine) Export(ctx context.Context, ownerID string) ([]*job.Job, ratelimit.Result, error) {
	var res ratelimit.Result
	if e.limiter != nil {
		var err error
		res, err = e.limiter.Check(ctx, ownerID)
		if err != nil {
			return nil, res, err
		}
		if !res.Allowed {
			e.logger.Info("export denied by rate limit",
				"owner_id", ownerID,
				"current", res.Current,
			)
			e.plugins.EmitRateLimitDenied(ctx, ownerID, res)
			return nil, res, ErrRateLimited
		}
	}

	jobs, err := e.store.ListJobsByOwner(ctx, ownerID, job.ListOpts{})
	if err != nil {
		return nil, res, err
	}
	return jobs, res, nil
}

// ExportStatus reports the owner's remaining export quota without
// consuming any of it.
func (e *Engine) ExportStatus(ctx context.Context, ownerID string) (ratelimit.Result, error) {
	if e.limiter == nil {
		return ratelimit.Result{Allowed: true}, nil
	}
	return e.limiter.Status(ctx, ownerID)
}
