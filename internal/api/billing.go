package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/launchkit/polarbridge/internal/auth"
	apperrors "github.com/launchkit/polarbridge/internal/errors"
	"github.com/launchkit/polarbridge/internal/logger"
	"github.com/launchkit/polarbridge/internal/models"
)

// webhook bodies are small; the cap guards against a misdirected upload
const maxWebhookBody = 1 << 20

type webhookAck struct {
	Message string `json:"message"`
}

// createCheckoutSession starts a hosted checkout for the caller
func (h *Handler) createCheckoutSession(w http.ResponseWriter, r *http.Request) {
	identity := auth.GetIdentity(r.Context())
	if identity == nil {
		h.writeErrorResponse(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body struct {
		PriceID string `json:"priceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "invalid json")
		return
	}

	url, err := h.billing.CreateCheckoutSession(r.Context(), *identity, body.PriceID)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrInvalidInput):
			h.writeErrorResponse(w, r, http.StatusBadRequest, err.Error())
		case errors.Is(err, apperrors.ErrNotFound):
			h.writeErrorResponse(w, r, http.StatusNotFound, err.Error())
		default:
			logger.WithContext(r.Context()).Error("Failed to create checkout session", "error", err)
			h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]string{"url": url})
}

// getPlans returns the billable catalog
func (h *Handler) getPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.billing.GetAvailablePlans(r.Context())
	if err != nil {
		logger.WithContext(r.Context()).Error("Failed to list plans", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	h.writeJSONResponse(w, http.StatusOK, plans)
}

// getSubscriptionStatus answers the frontend's feature gate. The
// subject comes from the verified identity by default; an explicit
// user_id query parameter overrides it. With neither the answer is
// false, not an error.
func (h *Handler) getSubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	var userID string
	if identity := auth.GetIdentity(r.Context()); identity != nil {
		userID = identity.Subject
	}
	if q := r.URL.Query().Get("user_id"); q != "" {
		userID = q
	}

	status := h.billing.CheckSubscriptionStatus(r.Context(), userID)
	h.writeJSONResponse(w, http.StatusOK, status)
}

// getSubscription returns the caller's subscription record, or null
func (h *Handler) getSubscription(w http.ResponseWriter, r *http.Request) {
	identity := auth.GetIdentity(r.Context())
	if identity == nil {
		h.writeErrorResponse(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	sub, err := h.billing.FetchUserSubscription(r.Context(), identity.Subject)
	if err != nil {
		logger.WithContext(r.Context()).Error("Failed to fetch subscription", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, sub)
}

// createCustomerPortal mints a provider-hosted portal URL
func (h *Handler) createCustomerPortal(w http.ResponseWriter, r *http.Request) {
	identity := auth.GetIdentity(r.Context())
	if identity == nil {
		h.writeErrorResponse(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	url, err := h.billing.CreateCustomerPortal(r.Context(), *identity)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			h.writeErrorResponse(w, r, http.StatusBadRequest, "no billing customer for user")
			return
		}
		logger.WithContext(r.Context()).Error("Failed to create portal session", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSONResponse(w, http.StatusOK, map[string]string{"url": url})
}

// billingWebhook receives provider events. The response bodies are part
// of the provider contract: 200 acknowledges, 403 asks for a redelivery
// after a signature failure, 400 flags a processing failure.
func (h *Handler) billingWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.writeJSONResponse(w, http.StatusBadRequest, webhookAck{Message: "Webhook failed"})
		return
	}

	if err := h.webhooks.Verify(payload, r.Header); err != nil {
		logger.WithContext(ctx).Warn("Webhook signature verification failed")
		h.writeJSONResponse(w, http.StatusForbidden, webhookAck{Message: "Webhook verification failed"})
		return
	}

	var envelope models.EventEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		logger.WithContext(ctx).Error("Webhook payload is not valid JSON", "error", err)
		h.writeJSONResponse(w, http.StatusBadRequest, webhookAck{Message: "Webhook failed"})
		return
	}

	if err := h.applier.Apply(ctx, envelope); err != nil {
		logger.WithContext(ctx).Error("Failed to apply webhook event", "type", envelope.Type, "error", err)
		h.writeJSONResponse(w, http.StatusBadRequest, webhookAck{Message: "Webhook failed"})
		return
	}

	h.writeJSONResponse(w, http.StatusOK, webhookAck{Message: "Webhook received!"})
}
