// Package event models verified billing-provider events.
//
// Events are transient: they are parsed from the verified webhook payload,
// dispatched to the state machine, and never persisted. Payload structs are
// deliberately minimal decodes of the provider objects; unknown fields are
// ignored.
package event

import (
	"encoding/json"
	"fmt"
)

// Type is the provider event type string.
type Type string

// Event types the state machine switches on. Anything else is a logged no-op.
const (
	TypeSubscriptionCreated Type = "customer.subscription.created"
	TypeSubscriptionUpdated Type = "customer.subscription.updated"
	TypeSubscriptionDeleted Type = "customer.subscription.deleted"
	TypeCheckoutCompleted   Type = "checkout.session.completed"
)

// Event is a verified billing-provider event.
type Event struct {
	ID   string          `json:"id"`
	Type Type            `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// Subscription is a minimal representation of a provider subscription object.
type Subscription struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Status            string            `json:"status"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
	Metadata          map[string]string `json:"metadata"`
}

// CheckoutSession is a minimal representation of a provider checkout session.
// ClientReferenceID carries the internal user ID attached at session creation.
type CheckoutSession struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Subscription      string            `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

// Subscription decodes the event payload as a subscription object.
func (e *Event) Subscription() (*Subscription, error) {
	var sub Subscription
	if err := json.Unmarshal(e.Raw, &sub); err != nil {
		return nil, fmt.Errorf("event: decode subscription from %s: %w", e.Type, err)
	}
	return &sub, nil
}

// CheckoutSession decodes the event payload as a checkout session object.
func (e *Event) CheckoutSession() (*CheckoutSession, error) {
	var session CheckoutSession
	if err := json.Unmarshal(e.Raw, &session); err != nil {
		return nil, fmt.Errorf("event: decode checkout session from %s: %w", e.Type, err)
	}
	return &session, nil
}

// StatusEntitles reports whether a provider subscription status grants
// access. Trialing is a full entitlement, not a lesser state: downgrading
// trials would flicker access for every new customer. Every other status
// (incomplete, past_due, canceled, unpaid, ...) is non-entitling by omission.
func StatusEntitles(status string) bool {
	return status == "active" || status == "trialing"
}
