package entitle_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	entitle "github.com/jobdeck/entitle"
	"github.com/jobdeck/entitle/claims"
	"github.com/jobdeck/entitle/event"
	"github.com/jobdeck/entitle/job"
	"github.com/jobdeck/entitle/ratelimit"
	"github.com/jobdeck/entitle/store"
	"github.com/jobdeck/entitle/store/memory"
	"github.com/jobdeck/entitle/user"
)

type fixture struct {
	engine *entitle.Engine
	store  *memory.Store
	claims *claims.MemoryStore
	now    time.Time
}

func newFixture(t *testing.T, opts ...entitle.Option) *fixture {
	t.Helper()

	f := &fixture{
		store:  memory.New(),
		claims: claims.NewMemoryStore(),
		now:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	opts = append(opts, entitle.WithClock(func() time.Time { return f.now }))
	f.engine = entitle.New(f.store, f.claims, opts...)
	return f
}

// seedUser creates a user already linked to a billing customer.
func (f *fixture) seedUser(t *testing.T, userID, customerID string) {
	t.Helper()

	u := &user.User{ID: userID, Email: userID + "@example.com", Role: "employer"}
	if err := f.engine.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if customerID != "" {
		if err := f.store.LinkBillingCustomer(context.Background(), userID, customerID); err != nil {
			t.Fatalf("LinkBillingCustomer: %v", err)
		}
	}
}

func subscriptionEvent(t *testing.T, typ event.Type, subID, customerID, status string) *event.Event {
	t.Helper()

	raw, err := json.Marshal(event.Subscription{
		ID:       subID,
		Customer: customerID,
		Status:   status,
	})
	if err != nil {
		t.Fatalf("marshal subscription: %v", err)
	}
	return &event.Event{ID: "evt_" + subID + "_" + status, Type: typ, Raw: raw}
}

func checkoutEvent(t *testing.T, sessionID, customerID, clientRef string) *event.Event {
	t.Helper()

	raw, err := json.Marshal(event.CheckoutSession{
		ID:                sessionID,
		Customer:          customerID,
		Subscription:      "sub_checkout",
		ClientReferenceID: clientRef,
	})
	if err != nil {
		t.Fatalf("marshal checkout session: %v", err)
	}
	return &event.Event{ID: "evt_" + sessionID, Type: event.TypeCheckoutCompleted, Raw: raw}
}

func TestSubscriptionCreatedGrantsEntitlement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "user_1", "cus_1")

	ev := subscriptionEvent(t, event.TypeSubscriptionCreated, "sub_1", "cus_1", "active")
	if err := f.engine.HandleEvent(ctx, ev); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	entitled, err := f.engine.IsEntitled(ctx, "user_1")
	if err != nil {
		t.Fatalf("IsEntitled: %v", err)
	}
	if !entitled {
		t.Fatal("expected user to be entitled after active subscription")
	}

	u, err := f.store.GetUser(ctx, "user_1")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !u.SubActive || u.SubscriptionID != "sub_1" || u.SubscriptionStatus != "active" {
		t.Fatalf("mirror not updated: %+v", u)
	}
}

func TestTrialingGrantsFullEntitlement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "user_1", "cus_1")

	ev := subscriptionEvent(t, event.TypeSubscriptionCreated, "sub_1", "cus_1", "trialing")
	if err := f.engine.HandleEvent(ctx, ev); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	entitled, err := f.engine.IsEntitled(ctx, "user_1")
	if err != nil {
		t.Fatalf("IsEntitled: %v", err)
	}
	if !entitled {
		t.Fatal("expected trialing subscription to entitle")
	}
}

func TestNonEntitlingUpdateLeavesAccessUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "user_1", "cus_1")

	if err := f.engine.HandleEvent(ctx, subscriptionEvent(t, event.TypeSubscriptionCreated, "sub_1", "cus_1", "active")); err != nil {
		t.Fatalf("HandleEvent created: %v", err)
	}

	// Payment trouble surfaces as an update with a non-entitling status.
	// Access must not flap off; only deletion revokes.
	if err := f.engine.HandleEvent(ctx, subscriptionEvent(t, event.TypeSubscriptionUpdated, "sub_1", "cus_1", "past_due")); err != nil {
		t.Fatalf("HandleEvent past_due: %v", err)
	}

	entitled, err := f.engine.IsEntitled(ctx, "user_1")
	if err != nil {
		t.Fatalf("IsEntitled: %v", err)
	}
	if !entitled {
		t.Fatal("past_due update must not revoke entitlement")
	}

	u, _ := f.store.GetUser(ctx, "user_1")
	if !u.SubActive {
		t.Fatal("mirror must be untouched by non-entitling update")
	}
}

func TestDeletedRevokesAndPreservesUnrelatedClaims(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "user_1", "cus_1")

	// Another subsystem owns the role claim.
	if err := f.claims.Set(ctx, "user_1", claims.Claims{claims.KeyRole: "admin"}); err != nil {
		t.Fatalf("seed claims: %v", err)
	}

	if err := f.engine.HandleEvent(ctx, subscriptionEvent(t, event.TypeSubscriptionCreated, "sub_1", "cus_1", "active")); err != nil {
		t.Fatalf("HandleEvent created: %v", err)
	}
	if err := f.engine.HandleEvent(ctx, subscriptionEvent(t, event.TypeSubscriptionDeleted, "sub_1", "cus_1", "canceled")); err != nil {
		t.Fatalf("HandleEvent deleted: %v", err)
	}

	c, err := f.claims.Get(ctx, "user_1")
	if err != nil {
		t.Fatalf("claims Get: %v", err)
	}
	if c.SubActive() {
		t.Fatal("expected entitlement revoked after deletion")
	}
	if c[claims.KeyRole] != "admin" {
		t.Fatalf("role claim must survive entitlement updates, got %v", c[claims.KeyRole])
	}
	if v, ok := c[claims.KeySubscriptionID]; !ok || v != nil {
		t.Fatalf("subscriptionId must be cleared to explicit nil, got %v (present=%v)", v, ok)
	}

	u, _ := f.store.GetUser(ctx, "user_1")
	if u.SubActive || u.SubscriptionID != "" || u.SubscriptionStatus != user.StatusCanceled {
		t.Fatalf("mirror not revoked: %+v", u)
	}
}

func TestDeletedRedeliveryIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "user_1", "cus_1")

	if err := f.engine.HandleEvent(ctx, subscriptionEvent(t, event.TypeSubscriptionCreated, "sub_1", "cus_1", "active")); err != nil {
		t.Fatalf("HandleEvent created: %v", err)
	}

	deleted := subscriptionEvent(t, event.TypeSubscriptionDeleted, "sub_1", "cus_1", "canceled")
	for i := 0; i < 3; i++ {
		if err := f.engine.HandleEvent(ctx, deleted); err != nil {
			t.Fatalf("HandleEvent deleted (delivery %d): %v", i+1, err)
		}
	}

	c, _ := f.claims.Get(ctx, "user_1")
	if c.SubActive() {
		t.Fatal("expected entitlement revoked")
	}
	u, _ := f.store.GetUser(ctx, "user_1")
	if u.SubActive {
		t.Fatal("expected mirror revoked")
	}
}

func TestUnknownCustomerIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "user_1", "cus_1")

	ev := subscriptionEvent(t, event.TypeSubscriptionCreated, "sub_x", "cus_unknown", "active")
	if err := f.engine.HandleEvent(ctx, ev); err != nil {
		t.Fatalf("expected no-op for unknown customer, got %v", err)
	}

	entitled, _ := f.engine.IsEntitled(ctx, "user_1")
	if entitled {
		t.Fatal("unrelated user must not gain entitlement")
	}
}

func TestUnknownEventTypeIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ev := &event.Event{ID: "evt_1", Type: "invoice.payment_succeeded", Raw: []byte(`{}`)}
	if err := f.engine.HandleEvent(ctx, ev); err != nil {
		t.Fatalf("expected no-op for unhandled type, got %v", err)
	}
}

func TestCheckoutCompletedLinksCustomerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "user_1", "")

	if err := f.engine.HandleEvent(ctx, checkoutEvent(t, "cs_1", "cus_1", "user_1")); err != nil {
		t.Fatalf("HandleEvent checkout: %v", err)
	}

	u, err := f.store.GetUserByBillingCustomerID(ctx, "cus_1")
	if err != nil {
		t.Fatalf("user not linked: %v", err)
	}
	if u.ID != "user_1" {
		t.Fatalf("linked wrong user: %s", u.ID)
	}

	// Linkage is not entitlement; that arrives on the subscription events.
	entitled, _ := f.engine.IsEntitled(ctx, "user_1")
	if entitled {
		t.Fatal("checkout completion must not grant entitlement")
	}
}

func TestCheckoutMissingFieldsIsNoOp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "user_1", "")

	t.Run("NoClientReference", func(t *testing.T) {
		if err := f.engine.HandleEvent(ctx, checkoutEvent(t, "cs_1", "cus_1", "")); err != nil {
			t.Fatalf("expected no-op, got %v", err)
		}
		if _, err := f.store.GetUserByBillingCustomerID(ctx, "cus_1"); !errors.Is(err, entitle.ErrUserNotFound) {
			t.Fatal("no linkage should have happened")
		}
	})

	t.Run("NoCustomer", func(t *testing.T) {
		if err := f.engine.HandleEvent(ctx, checkoutEvent(t, "cs_2", "", "user_1")); err != nil {
			t.Fatalf("expected no-op, got %v", err)
		}
		u, _ := f.store.GetUser(ctx, "user_1")
		if u.BillingCustomerID != "" {
			t.Fatal("no linkage should have happened")
		}
	})

	t.Run("UnknownUser", func(t *testing.T) {
		if err := f.engine.HandleEvent(ctx, checkoutEvent(t, "cs_3", "cus_1", "user_ghost")); err != nil {
			t.Fatalf("expected no-op, got %v", err)
		}
	})
}

func TestCreateJobIdempotency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.engine.CreateJob(ctx, &job.Job{OwnerID: "user_1", Title: "Backend Engineer"})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if first.AlreadyExists {
		t.Fatal("first submission must not be flagged as duplicate")
	}

	t.Run("DuplicateWithinWindow", func(t *testing.T) {
		f.now = f.now.Add(2 * time.Minute)

		res, err := f.engine.CreateJob(ctx, &job.Job{OwnerID: "user_1", Title: "Backend Engineer"})
		if err != nil {
			t.Fatalf("CreateJob duplicate: %v", err)
		}
		if !res.AlreadyExists {
			t.Fatal("expected duplicate to be absorbed")
		}
		if res.Job.ID != first.Job.ID {
			t.Fatalf("expected original job returned, got %s want %s", res.Job.ID, first.Job.ID)
		}

		count, _ := f.store.CountJobsByOwner(ctx, "user_1")
		if count != 1 {
			t.Fatalf("expected 1 job, got %d", count)
		}
	})

	t.Run("DifferentTitleNotDuplicate", func(t *testing.T) {
		res, err := f.engine.CreateJob(ctx, &job.Job{OwnerID: "user_1", Title: "Backend Engineer II"})
		if err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
		if res.AlreadyExists {
			t.Fatal("different title must not be treated as duplicate")
		}
	})

	t.Run("OutsideWindowCreatesNew", func(t *testing.T) {
		f.now = f.now.Add(6 * time.Minute)

		res, err := f.engine.CreateJob(ctx, &job.Job{OwnerID: "user_1", Title: "Backend Engineer"})
		if err != nil {
			t.Fatalf("CreateJob: %v", err)
		}
		if res.AlreadyExists {
			t.Fatal("submission outside the window must create a new posting")
		}
		if res.Job.ID == first.Job.ID {
			t.Fatal("expected a fresh posting")
		}
	})
}

// failingStore breaks the duplicate query to exercise the fail-closed path.
type failingStore struct {
	store.Store
}

func (f *failingStore) FindRecentJobByOwnerTitle(context.Context, string, string, time.Time) (*job.Job, error) {
	return nil, errors.New("store offline")
}

func TestCreateJobFailsClosedOnDuplicateCheckError(t *testing.T) {
	broken := &failingStore{Store: memory.New()}
	engine := entitle.New(broken, claims.NewMemoryStore())

	_, err := engine.CreateJob(context.Background(), &job.Job{OwnerID: "user_1", Title: "Backend Engineer"})
	if !errors.Is(err, entitle.ErrDuplicateCheckFailed) {
		t.Fatalf("expected ErrDuplicateCheckFailed, got %v", err)
	}

	count, _ := broken.CountJobsByOwner(context.Background(), "user_1")
	if count != 0 {
		t.Fatal("no job may be created when the duplicate check fails")
	}
}

func TestCreateJobValidation(t *testing.T) {
	f := newFixture(t)

	if _, err := f.engine.CreateJob(context.Background(), &job.Job{Title: "No Owner"}); err == nil {
		t.Fatal("expected validation error for missing owner")
	}
	if _, err := f.engine.CreateJob(context.Background(), &job.Job{OwnerID: "user_1"}); err == nil {
		t.Fatal("expected validation error for missing title")
	}
}

func TestExportRateLimited(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter := ratelimit.NewMemoryLimiter(ratelimit.Config{
		MaxRequests: 2,
		Window:      time.Hour,
		MaxKeys:     100,
	}).WithClock(func() time.Time { return now })

	f := newFixture(t, entitle.WithRateLimiter(limiter))
	ctx := context.Background()

	if _, err := f.engine.CreateJob(ctx, &job.Job{OwnerID: "user_1", Title: "Backend Engineer"}); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	for i := 0; i < 2; i++ {
		jobs, _, err := f.engine.Export(ctx, "user_1")
		if err != nil {
			t.Fatalf("Export %d: %v", i+1, err)
		}
		if len(jobs) != 1 {
			t.Fatalf("Export %d: expected 1 job, got %d", i+1, len(jobs))
		}
	}

	_, res, err := f.engine.Export(ctx, "user_1")
	if !errors.Is(err, entitle.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if res.Allowed {
		t.Fatal("denial must carry Allowed=false")
	}
	if got := res.RetryAfter(now); got <= 0 || got > time.Hour {
		t.Fatalf("unexpected retry-after: %v", got)
	}

	// Status is read-only and must not consume quota.
	status, err := f.engine.ExportStatus(ctx, "user_1")
	if err != nil {
		t.Fatalf("ExportStatus: %v", err)
	}
	if status.Remaining != 0 {
		t.Fatalf("expected exhausted quota, remaining=%d", status.Remaining)
	}
}
