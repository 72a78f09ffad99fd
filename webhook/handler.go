package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/jobdeck/entitle/event"
)

const bodyLimit = 1024 * 1024 // 1 MiB

// Processor consumes verified events. The engine implements this.
type Processor interface {
	HandleEvent(ctx context.Context, e *event.Event) error
}

// Handler is the HTTP endpoint for incoming webhook deliveries.
//
// Signature failures are rejected with 400: re-delivering the same
// unverifiable input cannot succeed, so the rejection is final.
// Once a payload is verified the delivery is always acknowledged with
// 200, even when processing fails: the provider's retry loop cannot fix
// a processing bug, and unacked deliveries pile up until the endpoint
// is disabled. Failures are logged for operators instead.
type Handler struct {
	verifier  *Verifier
	processor Processor
	logger    *slog.Logger
}

type errorResponse struct {
	Error string `json:"error"`
}

type receivedResponse struct {
	Received bool `json:"received"`
}

// NewHandler creates a webhook HTTP handler.
func NewHandler(verifier *Verifier, processor Processor, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		verifier:  verifier,
		processor: processor,
		logger:    logger,
	}
}

// ServeHTTP verifies the signature and dispatches the event.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read request body"})
		return
	}

	e, err := h.verifier.Verify(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid signature"})
		return
	}

	if err := h.processor.HandleEvent(r.Context(), e); err != nil {
		h.logger.Error("webhook processing failed",
			"event_id", e.ID,
			"type", string(e.Type),
			"error", err,
		)
	}

	writeJSON(w, http.StatusOK, receivedResponse{Received: true})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // best-effort
}
