package entitle_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	entitle "github.com/jobdeck/entitle"
	"github.com/jobdeck/entitle/claims"
	"github.com/jobdeck/entitle/event"
	"github.com/jobdeck/entitle/job"
	"github.com/jobdeck/entitle/ratelimit"
	"github.com/jobdeck/entitle/store/memory"
	"github.com/jobdeck/entitle/user"
)

// TestDocumentationExamples verifies that all examples in the documentation compile
func TestDocumentationExamples(t *testing.T) {
	// Test Quick Start example from README
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create stores (memory for demo, use PostgreSQL in production)
		store := memory.New()
		cs := claims.NewMemoryStore()

		// Initialize the engine
		e := entitle.New(store, cs,
			entitle.WithLogger(slog.Default()),
			entitle.WithIdempotencyWindow(5*time.Minute),
		)

		// Start the engine
		ctx := context.Background()
		if err := e.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer e.Stop()

		// Create a user and link a billing customer
		u := &user.User{ID: "user_docs", Email: "docs@example.com", Role: "employer"}
		if err := e.CreateUser(ctx, u); err != nil {
			t.Fatal(err)
		}
		if err := store.LinkBillingCustomer(ctx, u.ID, "cus_docs"); err != nil {
			t.Fatal(err)
		}

		// A verified subscription event grants entitlement
		raw, err := json.Marshal(event.Subscription{
			ID:       "sub_docs",
			Customer: "cus_docs",
			Status:   "active",
		})
		if err != nil {
			t.Fatal(err)
		}
		ev := &event.Event{ID: "evt_docs_1", Type: event.TypeSubscriptionCreated, Raw: raw}
		if err := e.HandleEvent(ctx, ev); err != nil {
			t.Fatal(err)
		}

		ok, err := e.IsEntitled(ctx, u.ID)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatal("expected user to be entitled after active subscription event")
		}

		// Job creation is idempotent
		res, err := e.CreateJob(ctx, &job.Job{OwnerID: u.ID, Title: "Staff Engineer"})
		if err != nil {
			t.Fatal(err)
		}
		if res.AlreadyExists {
			t.Fatal("first creation must not report a duplicate")
		}
	})

	t.Run("RateLimitedExport", func(t *testing.T) {
		store := memory.New()
		cs := claims.NewMemoryStore()

		limiter := ratelimit.NewMemoryLimiter(ratelimit.Config{
			MaxRequests: 1,
			Window:      time.Hour,
			MaxKeys:     100,
		})

		e := entitle.New(store, cs, entitle.WithRateLimiter(limiter))

		ctx := context.Background()
		if err := e.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer e.Stop()

		u := &user.User{ID: "user_export", Email: "export@example.com", Role: "employer"}
		if err := e.CreateUser(ctx, u); err != nil {
			t.Fatal(err)
		}

		if _, _, err := e.Export(ctx, u.ID); err != nil {
			t.Fatalf("first export: %v", err)
		}
		if _, _, err := e.Export(ctx, u.ID); err == nil {
			t.Fatal("second export within the window should be limited")
		}
	})
}
