package claims_test

import (
	"context"
	"testing"
	"time"

	"github.com/jobdeck/entitle/claims"
)

func TestMergePreservesUnrelatedClaims(t *testing.T) {
	existing := claims.Claims{
		claims.KeyRole: "admin",
		"betaFeatures": true,
	}

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	merged := claims.Merge(existing, claims.Update{
		SubActive:         true,
		BillingCustomerID: "cus_123",
		SubscriptionID:    "sub_456",
	}, at)

	if merged[claims.KeyRole] != "admin" {
		t.Errorf("role = %v, want admin", merged[claims.KeyRole])
	}
	if merged["betaFeatures"] != true {
		t.Errorf("betaFeatures = %v, want true", merged["betaFeatures"])
	}
	if !merged.SubActive() {
		t.Error("expected subActive=true after merge")
	}
	if merged[claims.KeyBillingCustomerID] != "cus_123" {
		t.Errorf("billingCustomerId = %v, want cus_123", merged[claims.KeyBillingCustomerID])
	}
	if merged[claims.KeySubscriptionID] != "sub_456" {
		t.Errorf("subscriptionId = %v, want sub_456", merged[claims.KeySubscriptionID])
	}
	if merged[claims.KeyUpdatedAt] != at.UnixMilli() {
		t.Errorf("updatedAt = %v, want %d", merged[claims.KeyUpdatedAt], at.UnixMilli())
	}
}

func TestMergeClearsSubscriptionID(t *testing.T) {
	existing := claims.Claims{
		claims.KeySubActive:      true,
		claims.KeySubscriptionID: "sub_456",
		claims.KeyRole:           "employer",
	}

	merged := claims.Merge(existing, claims.Update{
		SubActive:         false,
		BillingCustomerID: "cus_123",
	}, time.Now())

	if merged.SubActive() {
		t.Error("expected subActive=false after merge")
	}
	if v, ok := merged[claims.KeySubscriptionID]; !ok || v != nil {
		t.Errorf("subscriptionId = %v, want explicit nil", v)
	}
	if merged[claims.KeyRole] != "employer" {
		t.Errorf("role = %v, want employer", merged[claims.KeyRole])
	}
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	existing := claims.Claims{claims.KeyRole: "admin"}

	claims.Merge(existing, claims.Update{SubActive: true}, time.Now())

	if len(existing) != 1 {
		t.Errorf("input claims mutated: %v", existing)
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := claims.NewMemoryStore()

	got, err := store.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty claims for unknown user, got %v", got)
	}

	if err := store.Set(ctx, "user-1", claims.Claims{claims.KeyRole: "admin"}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err = store.Get(ctx, "user-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got[claims.KeyRole] != "admin" {
		t.Errorf("role = %v, want admin", got[claims.KeyRole])
	}

	// Mutating the returned map must not leak into the store.
	got[claims.KeyRole] = "intruder"
	again, _ := store.Get(ctx, "user-1")
	if again[claims.KeyRole] != "admin" {
		t.Error("store leaked internal map to caller")
	}
}
