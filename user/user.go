// Package user defines the user document mirrored in the queryable store.
//
// The document is the second system of record for entitlement: the claims
// store is authoritative for request-time gating, while this document is the
// only place a user can be found by billing customer ID.
package user

import (
	"github.com/jobdeck/entitle/types"
)

// Subscription status strings mirrored into the user document for human
// consumption. The state machine derives them from provider statuses.
const (
	StatusActive   = "active"
	StatusTrialing = "trialing"
	StatusCanceled = "canceled"
)

// User is the per-user document in the document store.
type User struct {
	types.Entity
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`

	// Billing linkage, written by the checkout-completed handler.
	BillingCustomerID string `json:"billing_customer_id,omitempty"`

	// Entitlement mirror, written by the subscription state machine.
	SubscriptionID     string `json:"subscription_id,omitempty"`
	SubActive          bool   `json:"sub_active"`
	SubscriptionStatus string `json:"subscription_status,omitempty"`
}

// Entitlement is the mirror-write payload applied to a user document when a
// subscription transition lands.
type Entitlement struct {
	SubActive          bool
	BillingCustomerID  string
	SubscriptionID     string
	SubscriptionStatus string
}
