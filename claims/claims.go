// Package claims models the authorization-claims side of the entitlement
// dual write.
//
// Claims are a small key-value payload attached to a user's session token by
// the hosted identity platform and consulted on every authenticated request.
// The platform API only supports full overwrite of the claims map, so merge
// semantics live here: callers read the current claims, apply an update that
// preserves unrelated keys, and write the whole map back.
package claims

import (
	"context"
	"time"
)

// Well-known claim keys written by the entitlement state machine.
// All other keys (notably "role") are owned by other subsystems and must
// survive entitlement updates untouched.
const (
	KeySubActive         = "subActive"
	KeyBillingCustomerID = "billingCustomerId"
	KeySubscriptionID    = "subscriptionId"
	KeyRole              = "role"
	KeyUpdatedAt         = "updatedAt"
)

// Claims is the full authorization payload for one user.
type Claims map[string]any

// Clone returns a shallow copy of the claims map. Nested values are shared;
// the state machine only ever writes scalar values for its own keys.
func (c Claims) Clone() Claims {
	if c == nil {
		return Claims{}
	}
	out := make(Claims, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// SubActive reports whether the claims mark the user as entitled.
func (c Claims) SubActive() bool {
	v, ok := c[KeySubActive].(bool)
	return ok && v
}

// Update is the set of entitlement fields the state machine owns.
type Update struct {
	SubActive         bool
	BillingCustomerID string
	SubscriptionID    string
}

// Merge applies an entitlement update on top of existing claims, preserving
// every key the update does not own. An empty SubscriptionID is written as an
// explicit nil so token consumers see the association cleared rather than a
// stale value.
func Merge(existing Claims, u Update, at time.Time) Claims {
	merged := existing.Clone()
	merged[KeySubActive] = u.SubActive
	merged[KeyBillingCustomerID] = u.BillingCustomerID
	if u.SubscriptionID != "" {
		merged[KeySubscriptionID] = u.SubscriptionID
	} else {
		merged[KeySubscriptionID] = nil
	}
	merged[KeyUpdatedAt] = at.UTC().UnixMilli()
	return merged
}

// Store is the claims read-modify-write API consumed from the identity
// platform. Set overwrites the entire claims map; there is no partial
// update, which is why Merge exists.
type Store interface {
	// Get returns the current claims for a user. A user with no claims yet
	// returns an empty map, not an error.
	Get(ctx context.Context, userID string) (Claims, error)

	// Set replaces the user's claims with the given map.
	Set(ctx context.Context, userID string, c Claims) error
}
