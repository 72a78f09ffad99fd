// Package entitle keeps job-board access rights in sync with a billing
// provider's subscription lifecycle.
//
// Entitle is designed as a library, not a service. Import it directly into
// your Go application. It provides:
//
//   - Webhook verification and dispatch for billing subscription events
//   - Deterministic reconciliation of subscription state into user claims
//   - Dual-write mirroring of entitlement into the document store
//   - Idempotent job creation with a sliding duplicate-detection window
//   - Sliding-window export rate limiting with bounded key tracking
//   - Pluggable hooks for audit trails and metrics
//
// # Quick Start
//
// Create an engine with your preferred stores:
//
//	import (
//	    "github.com/jobdeck/entitle"
//	    "github.com/jobdeck/entitle/claims"
//	    "github.com/jobdeck/entitle/store/postgres"
//	)
//
//	// Initialize stores
//	store := postgres.New(db)
//	cs := claims.NewMemoryStore()
//
//	// Create the engine
//	e := entitle.New(store, cs)
//
//	// Start the engine (runs migrations, fires init hooks)
//	if err := e.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer e.Stop()
//
// # Core Concepts
//
// Subscription events drive entitlement. The engine consumes verified
// billing events and reconciles them into durable state:
//
//	err := e.HandleEvent(ctx, ev)
//
// Only active and trialing subscriptions grant access; access is revoked
// solely on subscription deletion, so transient payment trouble never
// flaps a user's entitlement.
//
// Entitlement checks read the claims store, the authoritative fast path:
//
//	ok, err := e.IsEntitled(ctx, userID)
//
// Job creation is idempotent within a sliding window, so a double-submitted
// posting returns the original instead of a duplicate:
//
//	res, err := e.CreateJob(ctx, j)
//	if res.AlreadyExists {
//	    // return the prior posting
//	}
//
// # Integration
//
// Entitle integrates with the Forgery ecosystem via the extension package:
//
//   - Forge: extension lifecycle and configuration binding
//   - Vessel: DI container registration
//
// The webhook package verifies provider signatures before any event reaches
// the engine, and the rest package serves the job-board HTTP surface.
//
// # TypeID
//
// Entities owned by this module use TypeID for globally unique, type-safe
// identifiers:
//
//	job_01h2xcejqtf2nbrexx3vqjhp41  // Job ID
//	exp_01h455vb4pex5vsknk084sn02q  // Export receipt ID
//
// User IDs come from the hosted identity platform and customer,
// subscription, and event IDs from the billing provider, so those stay
// plain strings.
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package entitle
