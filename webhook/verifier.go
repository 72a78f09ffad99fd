// Package webhook verifies and decodes billing provider webhook events.
//
// Verification delegates to the stripe-go constructor, which checks the
// v1 HMAC signature and the timestamp tolerance before any payload is
// trusted. Events that fail verification never reach the engine.
package webhook

import (
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82/webhook"

	entitle "github.com/jobdeck/entitle"
	"github.com/jobdeck/entitle/event"
)

// Verifier checks webhook signatures against a shared endpoint secret.
type Verifier struct {
	secret string
}

// NewVerifier creates a verifier for the given endpoint secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Verify checks the signature header against the raw payload and returns
// the decoded event. The payload bytes must be the exact bytes received
// on the wire; any re-serialization breaks the signature.
func (v *Verifier) Verify(payload []byte, sigHeader string) (*event.Event, error) {
	if strings.TrimSpace(sigHeader) == "" {
		return nil, entitle.ErrMissingSignature
	}

	stripeEvent, err := webhook.ConstructEventWithOptions(payload, sigHeader, v.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entitle.ErrInvalidSignature, err)
	}

	return &event.Event{
		ID:   stripeEvent.ID,
		Type: event.Type(stripeEvent.Type),
		Raw:  []byte(stripeEvent.Data.Raw),
	}, nil
}
