package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/launchkit/polarbridge/internal/auth"
	"github.com/launchkit/polarbridge/internal/billing"
	middlewares "github.com/launchkit/polarbridge/internal/middleware"
	"github.com/launchkit/polarbridge/internal/ratelimit"
	"github.com/launchkit/polarbridge/internal/store"
	"github.com/launchkit/polarbridge/internal/webhook"
)

// Handler handles HTTP requests for the API
type Handler struct {
	store     store.Store
	billing   *billing.Service
	applier   *billing.Applier
	verifier  auth.Verifier
	webhooks  *webhook.Verifier
	limiter   *ratelimit.Manager
	version   string
	buildTime string
	gitCommit string
	startTime time.Time
}

// NewHandler creates a new API handler
func NewHandler(st store.Store, svc *billing.Service, applier *billing.Applier, verifier auth.Verifier, webhooks *webhook.Verifier, limiter *ratelimit.Manager, version, buildTime, gitCommit string) *Handler {
	return &Handler{
		store:     st,
		billing:   svc,
		applier:   applier,
		verifier:  verifier,
		webhooks:  webhooks,
		limiter:   limiter,
		version:   version,
		buildTime: buildTime,
		gitCommit: gitCommit,
		startTime: time.Now(),
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Route("/v1", func(r chi.Router) {
		// Health check endpoints
		r.Get("/health", h.healthHandler)
		r.Get("/health/ready", h.readinessHandler)
		r.Get("/health/live", h.livenessHandler)

		r.Route("/billing", func(r chi.Router) {
			// Webhook ingress authenticates by signature, not token
			r.Post("/webhook", h.billingWebhook)

			r.With(middlewares.RateLimit(h.limiter)).Group(func(r chi.Router) {
				// Read paths resolve identity when a token is sent but
				// stay open to anonymous callers
				r.With(middlewares.ClerkAuthOptional(h.verifier)).Group(func(r chi.Router) {
					r.Get("/plans", h.getPlans)
					r.Get("/status", h.getSubscriptionStatus)
				})

				r.With(middlewares.ClerkAuth(h.verifier)).Group(func(r chi.Router) {
					r.Post("/checkout", h.createCheckoutSession)
					r.Get("/subscription", h.getSubscription)
					r.Post("/portal", h.createCustomerPortal)
				})
			})
		})

		// System info
		r.Get("/version", h.versionHandler)
	})

	// Root health check
	r.Get("/health", h.healthHandler)
}

// healthHandler provides basic health check
func (h *Handler) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"version":   h.version,
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// readinessHandler checks if the application is ready to serve traffic
func (h *Handler) readinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := map[string]string{
		"store": "ok",
	}

	statusCode := http.StatusOK

	if err := h.store.Health(ctx); err != nil {
		checks["store"] = "error: " + err.Error()
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	}

	h.writeJSONResponse(w, statusCode, response)
}

// livenessHandler checks if the application is alive
func (h *Handler) livenessHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// versionHandler returns version information
func (h *Handler) versionHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"version":    h.version,
		"build_time": h.buildTime,
		"git_commit": h.gitCommit,
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// writeJSONResponse writes a JSON response
func (h *Handler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeErrorResponse writes a standardized error response
func (h *Handler) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	response := ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   message,
		Timestamp: time.Now().UTC(),
		RequestID: r.Header.Get("X-Request-ID"),
	}

	h.writeJSONResponse(w, statusCode, response)
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}
